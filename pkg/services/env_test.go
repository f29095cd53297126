package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/models"
)

var (
	testFacilitator = models.Actor{Type: models.ActorFacilitator, ID: uuid.MustParse("6f1c2a9e-0d4b-4c1e-9a43-2b7f3e1d5c00")}
	testAppliedAt   = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
)

// testEnv wires every service against one memStore.
type testEnv struct {
	store     *memStore
	publisher *recordingPublisher
	audit     AuditService
	studies   StudyService
	lifecycle StudyLifecycleService
	ratings   RatingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	repos := store.repositories()
	txm := memTxManager{store: store}
	pub := &recordingPublisher{}
	logger := zap.NewNop()
	settings := DefaultSettings()

	audit := NewAuditService(repos.Audit, txm, logger)
	lc := NewStudyLifecycleService(txm, repos, audit, pub, settings, logger)
	lc.(*studyLifecycleService).now = func() time.Time { return testAppliedAt }

	return &testEnv{
		store:     store,
		publisher: pub,
		audit:     audit,
		studies:   NewStudyService(txm, repos, audit, settings, logger),
		lifecycle: lc,
		ratings:   NewRatingService(txm, repos, audit, settings, logger),
	}
}

// createStudy creates a study with the given number of fully rated items and
// one participant per role.
func (e *testEnv) createStudy(t *testing.T, totalRounds, items int, roles ...models.Role) *models.StudyState {
	t.Helper()

	input := CreateStudyInput{
		Name:        "Indicator prioritization",
		TotalRounds: totalRounds,
	}
	for i := 0; i < items; i++ {
		input.Items = append(input.Items, ItemInput{
			ExternalID: fmt.Sprintf("IND-%02d", i+1),
			Name:       fmt.Sprintf("Indicator %d", i+1),
			Domain:     "Safety",
		})
	}
	for i, role := range roles {
		input.Participants = append(input.Participants, ParticipantInput{
			Email: fmt.Sprintf("panelist%d@example.org", i+1),
			Name:  fmt.Sprintf("Panelist %d", i+1),
			Role:  role,
		})
	}

	state, err := e.studies.CreateStudy(context.Background(), input, testFacilitator)
	require.NoError(t, err)
	return state
}

func (e *testEnv) apply(t *testing.T, studyID uuid.UUID, actions ...models.StudyAction) *models.StudyState {
	t.Helper()
	var state *models.StudyState
	for _, a := range actions {
		var err error
		state, err = e.lifecycle.ApplyAction(context.Background(), studyID, a, testFacilitator)
		require.NoError(t, err, "action %s", a)
	}
	return state
}

func (e *testEnv) items(t *testing.T, studyID uuid.UUID) []*models.Item {
	t.Helper()
	items, err := e.studies.ListItems(context.Background(), studyID)
	require.NoError(t, err)
	return items
}

func (e *testEnv) participants(t *testing.T, studyID uuid.UUID) []*models.Participant {
	t.Helper()
	ps, err := e.studies.ListParticipants(context.Background(), studyID)
	require.NoError(t, err)
	return ps
}

func (e *testEnv) rate(t *testing.T, participantID, itemID uuid.UUID, round int, priority *int) {
	t.Helper()
	_, err := e.ratings.SubmitRating(context.Background(), participantID, RatingInput{
		ItemID:      itemID,
		RoundNumber: round,
		Scores:      models.Scores{Priority: priority, Validity: priority},
	})
	require.NoError(t, err)
}

func score(v int) *int { return &v }
