package models

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from RoundStatus
		to   RoundStatus
		want bool
	}{
		{RoundStatusPending, RoundStatusOpen, true},
		{RoundStatusOpen, RoundStatusClosed, true},
		{RoundStatusClosed, RoundStatusAnalyzed, true},
		{RoundStatusPending, RoundStatusClosed, false},
		{RoundStatusOpen, RoundStatusPending, false},
		{RoundStatusClosed, RoundStatusOpen, false},
		{RoundStatusAnalyzed, RoundStatusOpen, false},
		{RoundStatusAnalyzed, RoundStatusAnalyzed, false},
		{RoundStatus("ARCHIVED"), RoundStatusOpen, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestEnums_IsValid(t *testing.T) {
	assert.True(t, StudyStatusPaused.IsValid())
	assert.False(t, StudyStatus("DRAFT").IsValid())
	assert.True(t, RoundStatusAnalyzed.IsValid())
	assert.False(t, RoundStatus("").IsValid())
	assert.True(t, ItemTierCommentOnly.IsValid())
	assert.False(t, ItemTier("OPTIONAL").IsValid())
	assert.True(t, IsValidRole(RoleLivedExperience))
	assert.False(t, IsValidRole("OBSERVER"))
	assert.True(t, ActionAnalyzeRound.IsValid())
	assert.False(t, StudyAction("ARCHIVE").IsValid())
	assert.False(t, StudyAction("REANALYZE_ROUND").IsValid())
	assert.False(t, StudyAction("close_round").IsValid())
}

func TestStudyAction_RunsAggregation(t *testing.T) {
	assert.True(t, ActionAnalyzeRound.RunsAggregation())
	assert.False(t, ActionCloseRound.RunsAggregation())
}

func TestItemTier_HasScores(t *testing.T) {
	assert.True(t, ItemTierFullyRated.HasScores())
	assert.False(t, ItemTierCommentOnly.HasScores())
}

func TestScores(t *testing.T) {
	p := 2
	s := Scores{Priority: &p}

	require.NotNil(t, s.Get(DimensionPriority))
	assert.Equal(t, 2, *s.Get(DimensionPriority))
	assert.Nil(t, s.Get(DimensionFeasibility))
	assert.Nil(t, s.Get(Dimension("clarity")))
	assert.False(t, s.IsEmpty())
	assert.True(t, Scores{}.IsEmpty())
}

func TestActor_Validate(t *testing.T) {
	assert.NoError(t, Actor{Type: ActorFacilitator, ID: uuid.New()}.Validate())
	assert.NoError(t, SystemActor.Validate())
	assert.Error(t, Actor{Type: ActorPanelist}.Validate())
	assert.Error(t, Actor{Type: "ADMIN", ID: uuid.New()}.Validate())
}

func TestActor_IDPtr(t *testing.T) {
	assert.Nil(t, SystemActor.IDPtr())

	id := uuid.New()
	got := Actor{Type: ActorPanelist, ID: id}.IDPtr()
	require.NotNil(t, got)
	assert.Equal(t, id, *got)
}

func TestActorContext(t *testing.T) {
	_, ok := GetActor(context.Background())
	assert.False(t, ok)

	a := Actor{Type: ActorFacilitator, ID: uuid.New()}
	got, ok := GetActor(WithActor(context.Background(), a))
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestStudy_HasNextRound(t *testing.T) {
	assert.True(t, (&Study{CurrentRound: 1, TotalRounds: 3}).HasNextRound())
	assert.False(t, (&Study{CurrentRound: 3, TotalRounds: 3}).HasNextRound())
}

func TestStudyState_CurrentRound(t *testing.T) {
	var nilState *StudyState
	assert.Nil(t, nilState.CurrentRound())

	r2 := &Round{RoundNumber: 2, Status: RoundStatusOpen}
	state := &StudyState{
		Study:  &Study{CurrentRound: 2, TotalRounds: 2},
		Rounds: []*Round{{RoundNumber: 1, Status: RoundStatusAnalyzed}, r2},
	}
	assert.Same(t, r2, state.CurrentRound())
	assert.True(t, state.CurrentRound().IsOpen())
}
