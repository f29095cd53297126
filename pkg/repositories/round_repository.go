package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// RoundRepository provides data access for study rounds.
type RoundRepository interface {
	// CreateBatch inserts all rounds of a newly created study.
	CreateBatch(ctx context.Context, rounds []*models.Round) error

	// ListByStudy returns the study's rounds ordered by round number.
	ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*models.Round, error)

	// Update persists status and timestamps of a round.
	Update(ctx context.Context, round *models.Round) error
}

type roundRepository struct{}

// NewRoundRepository creates a new RoundRepository.
func NewRoundRepository() RoundRepository {
	return &roundRepository{}
}

var _ RoundRepository = (*roundRepository)(nil)

func (r *roundRepository) CreateBatch(ctx context.Context, rounds []*models.Round) error {
	if len(rounds) == 0 {
		return nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	now := time.Now()
	batch := &pgx.Batch{}
	query := `
		INSERT INTO rounds (id, study_id, round_number, status, opens_at, closes_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, rd := range rounds {
		if rd.ID == uuid.Nil {
			rd.ID = uuid.New()
		}
		if rd.Status == "" {
			rd.Status = models.RoundStatusPending
		}
		rd.CreatedAt = now
		rd.UpdatedAt = now

		batch.Queue(query,
			rd.ID, rd.StudyID, rd.RoundNumber, rd.Status,
			rd.OpensAt, rd.ClosesAt, rd.CreatedAt, rd.UpdatedAt,
		)
	}

	br := scope.Conn.SendBatch(ctx, batch)
	defer br.Close()

	for range rounds {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch insert round: %w", err)
		}
	}

	return nil
}

func (r *roundRepository) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*models.Round, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT id, study_id, round_number, status, opens_at, closes_at, created_at, updated_at
		FROM rounds
		WHERE study_id = $1
		ORDER BY round_number`

	rows, err := scope.Conn.Query(ctx, query, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		var rd models.Round
		if err := rows.Scan(
			&rd.ID, &rd.StudyID, &rd.RoundNumber, &rd.Status,
			&rd.OpensAt, &rd.ClosesAt, &rd.CreatedAt, &rd.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, &rd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rounds: %w", err)
	}

	return rounds, nil
}

func (r *roundRepository) Update(ctx context.Context, round *models.Round) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	round.UpdatedAt = time.Now()

	query := `
		UPDATE rounds
		SET status = $2, opens_at = $3, closes_at = $4, updated_at = $5
		WHERE id = $1`

	tag, err := scope.Conn.Exec(ctx, query, round.ID, round.Status, round.OpensAt, round.ClosesAt, round.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
