package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// StudyRepository provides data access for studies.
type StudyRepository interface {
	Create(ctx context.Context, study *models.Study) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Study, error)

	// GetForUpdate loads the study and locks its row until the surrounding
	// transaction ends. Concurrent lifecycle actions on the same study queue here.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Study, error)

	// GetForShare loads the study with a shared lock. Rating writers take it so
	// they serialize against lifecycle actions but not against each other.
	GetForShare(ctx context.Context, id uuid.UUID) (*models.Study, error)

	// List returns studies ordered by creation time (newest first).
	List(ctx context.Context, limit int) ([]*models.Study, error)

	// UpdateState persists status and current_round.
	UpdateState(ctx context.Context, study *models.Study) error
}

type studyRepository struct{}

// NewStudyRepository creates a new StudyRepository.
func NewStudyRepository() StudyRepository {
	return &studyRepository{}
}

var _ StudyRepository = (*studyRepository)(nil)

const studyColumns = `id, name, description, status, current_round, total_rounds,
		       consensus_threshold, allow_dissent, created_at, updated_at`

func (r *studyRepository) Create(ctx context.Context, study *models.Study) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	now := time.Now()
	if study.ID == uuid.Nil {
		study.ID = uuid.New()
	}
	study.CreatedAt = now
	study.UpdatedAt = now

	query := `
		INSERT INTO studies (
			id, name, description, status, current_round, total_rounds,
			consensus_threshold, allow_dissent, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := scope.Conn.Exec(ctx, query,
		study.ID,
		study.Name,
		study.Description,
		study.Status,
		study.CurrentRound,
		study.TotalRounds,
		study.ConsensusThreshold,
		study.AllowDissent,
		study.CreatedAt,
		study.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create study: %w", err)
	}

	return nil
}

func (r *studyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Study, error) {
	return r.get(ctx, id, "")
}

func (r *studyRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Study, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *studyRepository) GetForShare(ctx context.Context, id uuid.UUID) (*models.Study, error) {
	return r.get(ctx, id, " FOR SHARE")
}

func (r *studyRepository) get(ctx context.Context, id uuid.UUID, lockClause string) (*models.Study, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT ` + studyColumns + ` FROM studies WHERE id = $1` + lockClause

	study, err := scanStudy(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get study: %w", err)
	}
	return study, nil
}

func (r *studyRepository) List(ctx context.Context, limit int) ([]*models.Study, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + studyColumns + ` FROM studies ORDER BY created_at DESC LIMIT $1`

	rows, err := scope.Conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list studies: %w", err)
	}
	defer rows.Close()

	var studies []*models.Study
	for rows.Next() {
		study, err := scanStudy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan study: %w", err)
		}
		studies = append(studies, study)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating studies: %w", err)
	}

	return studies, nil
}

func (r *studyRepository) UpdateState(ctx context.Context, study *models.Study) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	study.UpdatedAt = time.Now()

	query := `
		UPDATE studies
		SET status = $2, current_round = $3, updated_at = $4
		WHERE id = $1`

	tag, err := scope.Conn.Exec(ctx, query, study.ID, study.Status, study.CurrentRound, study.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update study: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanStudy(row pgx.Row) (*models.Study, error) {
	var s models.Study
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Description,
		&s.Status,
		&s.CurrentRound,
		&s.TotalRounds,
		&s.ConsensusThreshold,
		&s.AllowDissent,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
