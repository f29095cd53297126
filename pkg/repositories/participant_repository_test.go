//go:build integration

package repositories

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
	"github.com/boreallogic/delphi-app/pkg/models"
)

func TestParticipantRepository_DuplicateEmailConflicts(t *testing.T) {
	fx := newStudyFixture(t, 1, 0, 1)

	err := NewParticipantRepository().Create(fx.ctx, &models.Participant{
		StudyID: fx.study.ID,
		Email:   fx.participants[0].Email,
		Role:    models.RoleCommunityMember,
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestParticipantRepository_UpdateRole(t *testing.T) {
	fx := newStudyFixture(t, 1, 0, 1)
	repo := NewParticipantRepository()
	p := fx.participants[0]

	require.NoError(t, repo.UpdateRole(fx.ctx, p.ID, models.RolePolicyMaker))

	got, err := repo.GetByID(fx.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RolePolicyMaker, got.Role)

	err = repo.UpdateRole(fx.ctx, uuid.New(), models.RolePolicyMaker)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestParticipantRepository_ListByStudy(t *testing.T) {
	fx := newStudyFixture(t, 1, 0, 3)

	got, err := NewParticipantRepository().ListByStudy(fx.ctx, fx.study.ID)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestItemRepository_ListAndGet(t *testing.T) {
	fx := newStudyFixture(t, 1, 3, 0)
	repo := NewItemRepository()

	items, err := repo.ListByStudy(fx.ctx, fx.study.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "IND-01", items[0].ExternalID)
	assert.Equal(t, models.ItemTierFullyRated, items[0].Tier)

	got, err := repo.GetByID(fx.ctx, fx.items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, fx.items[1].Name, got.Name)

	_, err = repo.GetByID(fx.ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRoundRepository_UpdateAndList(t *testing.T) {
	fx := newStudyFixture(t, 3, 0, 0)
	repo := NewRoundRepository()

	rounds, err := repo.ListByStudy(fx.ctx, fx.study.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	for i, r := range rounds {
		assert.Equal(t, i+1, r.RoundNumber)
		assert.Equal(t, models.RoundStatusPending, r.Status)
	}

	first := rounds[0]
	first.Status = models.RoundStatusOpen
	opened := first.UpdatedAt
	first.OpensAt = &opened
	require.NoError(t, repo.Update(fx.ctx, first))

	rounds, err = repo.ListByStudy(fx.ctx, fx.study.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusOpen, rounds[0].Status)
	assert.NotNil(t, rounds[0].OpensAt)
	assert.Nil(t, rounds[0].ClosesAt)
}
