package consensus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boreallogic/delphi-app/pkg/models"
)

func score(v int) *int { return &v }

type ratingOpt func(*models.Rating)

func withPriority(v int) ratingOpt {
	return func(r *models.Rating) { r.Scores.Priority = score(v) }
}

func withValidity(v int) ratingOpt {
	return func(r *models.Rating) { r.Scores.Validity = score(v) }
}

func withFeasibility(v int) ratingOpt {
	return func(r *models.Rating) { r.Scores.Feasibility = score(v) }
}

func withDissent() ratingOpt {
	return func(r *models.Rating) { r.DissentFlag = true }
}

func withRole(role models.Role) ratingOpt {
	return func(r *models.Rating) { r.RoleAtSubmission = role }
}

func newRating(participantID, itemID uuid.UUID, opts ...ratingOpt) *models.Rating {
	r := &models.Rating{
		ID:            uuid.New(),
		ParticipantID: participantID,
		ItemID:        itemID,
		RoundNumber:   1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func baseInput(ratings ...*models.Rating) Input {
	return Input{
		StudyID:            uuid.MustParse("00000000-0000-0000-0000-0000000000a1"),
		RoundID:            uuid.MustParse("00000000-0000-0000-0000-0000000000b1"),
		RoundNumber:        1,
		ConsensusThreshold: 1.0,
		Ratings:            ratings,
		ParticipantRoles:   map[uuid.UUID]models.Role{},
		RoleSource:         RoleSourceSnapshot,
		Now:                time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAnalyzeRound_EmptyInput(t *testing.T) {
	summaries := AnalyzeRound(baseInput())
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)
}

// Scenario A
func TestAnalyzeRound_ThreeRatings(t *testing.T) {
	item := uuid.New()
	in := baseInput(
		newRating(uuid.New(), item, withPriority(1)),
		newRating(uuid.New(), item, withPriority(3)),
		newRating(uuid.New(), item, withPriority(5)),
	)

	summaries := AnalyzeRound(in)
	require.Len(t, summaries, 1)
	s := summaries[0]

	require.NotNil(t, s.Priority.Median)
	assert.Equal(t, 3.0, *s.Priority.Median)
	assert.Equal(t, 3.0, *s.Priority.Mean)
	assert.Equal(t, 4.0, *s.Priority.IQR)
	assert.Equal(t, 1.0, *s.Priority.Min)
	assert.Equal(t, 5.0, *s.Priority.Max)
	assert.False(t, s.ConsensusReached)
	assert.Equal(t, 3, s.ResponseCount)
	assert.Equal(t, 0, s.DissentCount)
}

// Scenario B / P4: null scores are excluded but still counted as responses.
func TestAnalyzeRound_NullExclusion(t *testing.T) {
	item := uuid.New()
	in := baseInput(
		newRating(uuid.New(), item, withPriority(2), withDissent()),
		newRating(uuid.New(), item, withDissent()),
	)

	summaries := AnalyzeRound(in)
	require.Len(t, summaries, 1)
	s := summaries[0]

	assert.Equal(t, 2, s.ResponseCount)
	assert.Equal(t, 2, s.DissentCount)
	require.NotNil(t, s.Priority.Mean)
	assert.Equal(t, 2.0, *s.Priority.Mean)
	assert.Equal(t, 1, s.Priority.N)

	// Validity and feasibility have no scores at all.
	assert.True(t, s.Validity.IsEmpty())
	assert.Nil(t, s.Validity.Mean)
	assert.Nil(t, s.Validity.Median)
	assert.Nil(t, s.Validity.Std)
	assert.Nil(t, s.Validity.IQR)
	assert.Nil(t, s.Feasibility.Min)
	assert.Nil(t, s.Feasibility.Max)
}

func TestAnalyzeRound_AllNullPrimaryNeverReachesConsensus(t *testing.T) {
	item := uuid.New()
	in := baseInput(
		newRating(uuid.New(), item, withValidity(3)),
		newRating(uuid.New(), item, withValidity(3)),
	)

	s := AnalyzeRound(in)[0]
	assert.Nil(t, s.Priority.IQR)
	assert.False(t, s.ConsensusReached)
	require.NotNil(t, s.Validity.IQR)
	assert.Equal(t, 0.0, *s.Validity.IQR)
}

// P5: consensus is IQR <= threshold, inclusive at the boundary.
func TestAnalyzeRound_ConsensusThresholdBoundary(t *testing.T) {
	item := uuid.New()
	ratings := []*models.Rating{
		newRating(uuid.New(), item, withPriority(1)),
		newRating(uuid.New(), item, withPriority(1)),
		newRating(uuid.New(), item, withPriority(2)),
		newRating(uuid.New(), item, withPriority(2)),
	}

	in := baseInput(ratings...)
	in.ConsensusThreshold = 1.0
	s := AnalyzeRound(in)[0]
	require.NotNil(t, s.Priority.IQR)
	assert.Equal(t, 1.0, *s.Priority.IQR)
	assert.True(t, s.ConsensusReached, "IQR equal to threshold reaches consensus")

	in.ConsensusThreshold = 0.99
	s = AnalyzeRound(in)[0]
	assert.False(t, s.ConsensusReached, "IQR just above threshold does not")
}

func TestAnalyzeRound_DimensionsIndependent(t *testing.T) {
	item := uuid.New()
	in := baseInput(
		newRating(uuid.New(), item, withPriority(3), withValidity(1)),
		newRating(uuid.New(), item, withPriority(3), withFeasibility(2)),
		newRating(uuid.New(), item, withValidity(3), withFeasibility(2)),
	)

	s := AnalyzeRound(in)[0]
	assert.Equal(t, 2, s.Priority.N)
	assert.Equal(t, 3.0, *s.Priority.Mean)
	assert.Equal(t, 2, s.Validity.N)
	assert.Equal(t, 2.0, *s.Validity.Median)
	assert.Equal(t, 2, s.Feasibility.N)
	assert.Equal(t, 0.0, *s.Feasibility.Std)
	assert.True(t, s.ConsensusReached)
}

func TestAnalyzeRound_PartitionsByItemAndOrdersByID(t *testing.T) {
	itemA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	itemB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	itemUnrated := uuid.MustParse("00000000-0000-0000-0000-00000000000c")

	in := baseInput(
		newRating(uuid.New(), itemB, withPriority(3)),
		newRating(uuid.New(), itemA, withPriority(1)),
		newRating(uuid.New(), itemB, withPriority(2)),
	)
	in.ItemTiers = map[uuid.UUID]models.ItemTier{itemUnrated: models.ItemTierFullyRated}

	summaries := AnalyzeRound(in)
	require.Len(t, summaries, 2, "items without ratings are absent")
	assert.Equal(t, itemA, summaries[0].ItemID)
	assert.Equal(t, 1, summaries[0].ResponseCount)
	assert.Equal(t, itemB, summaries[1].ItemID)
	assert.Equal(t, 2, summaries[1].ResponseCount)
	assert.Equal(t, 2.5, *summaries[1].Priority.Median)
}

func TestAnalyzeRound_RoleStratification(t *testing.T) {
	item := uuid.New()
	expert1, expert2, provider, unsure := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	in := baseInput(
		newRating(expert1, item, withPriority(3), withValidity(2)),
		newRating(expert2, item, withPriority(2), withValidity(2)),
		newRating(provider, item, withPriority(1)),
		newRating(unsure, item, withDissent()),
	)
	in.ParticipantRoles = map[uuid.UUID]models.Role{
		expert1:  models.RoleExpertGBV,
		expert2:  models.RoleExpertGBV,
		provider: models.RoleServiceProvider,
		unsure:   models.RolePolicyMaker,
	}

	s := AnalyzeRound(in)[0]

	require.Len(t, s.PriorityByRole, 2, "roles without scores are omitted")
	assert.Equal(t, models.RoleStats{Mean: 2.5, Median: 2.5}, s.PriorityByRole[models.RoleExpertGBV])
	assert.Equal(t, models.RoleStats{Mean: 1, Median: 1}, s.PriorityByRole[models.RoleServiceProvider])
	_, hasPolicy := s.PriorityByRole[models.RolePolicyMaker]
	assert.False(t, hasPolicy)

	require.Len(t, s.ValidityByRole, 1)
	assert.Equal(t, models.RoleStats{Mean: 2, Median: 2}, s.ValidityByRole[models.RoleExpertGBV])
}

func TestAnalyzeRound_RoleSource(t *testing.T) {
	item := uuid.New()
	panelist := uuid.New()
	legacy := uuid.New()

	ratings := []*models.Rating{
		newRating(panelist, item, withPriority(3), withRole(models.RoleLivedExperience)),
		newRating(legacy, item, withPriority(1)),
	}
	roles := map[uuid.UUID]models.Role{
		panelist: models.RoleCommunityMember, // changed after submission
		legacy:   models.RoleMedicalProfessional,
	}

	t.Run("snapshot keeps role at submission", func(t *testing.T) {
		in := baseInput(ratings...)
		in.ParticipantRoles = roles
		in.RoleSource = RoleSourceSnapshot

		s := AnalyzeRound(in)[0]
		assert.Contains(t, s.PriorityByRole, models.RoleLivedExperience)
		assert.NotContains(t, s.PriorityByRole, models.RoleCommunityMember)
		// legacy rating without a snapshot falls back to the current role
		assert.Contains(t, s.PriorityByRole, models.RoleMedicalProfessional)
	})

	t.Run("current re-attributes to live role", func(t *testing.T) {
		in := baseInput(ratings...)
		in.ParticipantRoles = roles
		in.RoleSource = RoleSourceCurrent

		s := AnalyzeRound(in)[0]
		assert.Contains(t, s.PriorityByRole, models.RoleCommunityMember)
		assert.NotContains(t, s.PriorityByRole, models.RoleLivedExperience)
	})
}

func TestAnalyzeRound_CommentOnlyItem(t *testing.T) {
	item := uuid.New()
	in := baseInput(
		newRating(uuid.New(), item, withPriority(3), withDissent()),
		newRating(uuid.New(), item),
	)
	in.ItemTiers = map[uuid.UUID]models.ItemTier{item: models.ItemTierCommentOnly}

	s := AnalyzeRound(in)[0]
	assert.Equal(t, 2, s.ResponseCount)
	assert.Equal(t, 1, s.DissentCount)
	assert.True(t, s.Priority.IsEmpty())
	assert.False(t, s.ConsensusReached)
	assert.Empty(t, s.PriorityByRole)
}

// P3: identical input yields byte-identical output regardless of input order.
func TestAnalyzeRound_Idempotent(t *testing.T) {
	itemA, itemB := uuid.New(), uuid.New()
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()
	ratings := []*models.Rating{
		newRating(p1, itemA, withPriority(1), withValidity(2), withRole(models.RoleExpertGBV)),
		newRating(p2, itemA, withPriority(3), withDissent(), withRole(models.RolePolicyMaker)),
		newRating(p3, itemA, withFeasibility(2), withRole(models.RoleExpertGBV)),
		newRating(p1, itemB, withPriority(2), withRole(models.RoleExpertGBV)),
		newRating(p2, itemB, withPriority(2), withRole(models.RolePolicyMaker)),
	}

	first := AnalyzeRound(baseInput(ratings...))

	reversed := make([]*models.Rating, len(ratings))
	for i, r := range ratings {
		reversed[len(ratings)-1-i] = r
	}
	second := AnalyzeRound(baseInput(reversed...))

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, a, b)
}

func TestSummaryID_Stable(t *testing.T) {
	study, item := uuid.New(), uuid.New()
	assert.Equal(t, SummaryID(study, 1, item), SummaryID(study, 1, item))
	assert.NotEqual(t, SummaryID(study, 1, item), SummaryID(study, 2, item))
}
