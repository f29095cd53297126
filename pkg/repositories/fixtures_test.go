//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/boreallogic/delphi-app/pkg/models"
	"github.com/boreallogic/delphi-app/pkg/testhelpers"
)

// studyFixture is a freshly inserted study with its rounds, items and participants.
// Each test creates its own study so tests never share rows.
type studyFixture struct {
	ctx          context.Context
	study        *models.Study
	rounds       []*models.Round
	items        []*models.Item
	participants []*models.Participant
}

func newStudyFixture(t *testing.T, totalRounds, itemCount, participantCount int) *studyFixture {
	t.Helper()

	testDB := testhelpers.GetTestDB(t)
	ctx := testhelpers.ScopedContext(t, testDB)

	study := &models.Study{
		Name:               "Fixture " + uuid.NewString()[:8],
		Status:             models.StudyStatusSetup,
		TotalRounds:        totalRounds,
		ConsensusThreshold: 1.0,
		AllowDissent:       true,
	}
	require.NoError(t, NewStudyRepository().Create(ctx, study))

	fx := &studyFixture{ctx: ctx, study: study}

	for n := 1; n <= totalRounds; n++ {
		fx.rounds = append(fx.rounds, &models.Round{StudyID: study.ID, RoundNumber: n})
	}
	require.NoError(t, NewRoundRepository().CreateBatch(ctx, fx.rounds))

	for i := 0; i < itemCount; i++ {
		fx.items = append(fx.items, &models.Item{
			StudyID:    study.ID,
			ExternalID: fmt.Sprintf("IND-%02d", i+1),
			Name:       fmt.Sprintf("Indicator %d", i+1),
		})
	}
	require.NoError(t, NewItemRepository().CreateBatch(ctx, fx.items))

	participants := NewParticipantRepository()
	for i := 0; i < participantCount; i++ {
		p := &models.Participant{
			StudyID: study.ID,
			Email:   fmt.Sprintf("panelist%d@example.org", i+1),
			Name:    fmt.Sprintf("Panelist %d", i+1),
			Role:    models.ValidRoles[i%len(models.ValidRoles)],
		}
		require.NoError(t, participants.Create(ctx, p))
		fx.participants = append(fx.participants, p)
	}

	return fx
}

func intPtr(v int) *int { return &v }
