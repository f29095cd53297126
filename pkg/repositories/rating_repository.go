package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// RatingRepository provides data access for panelist ratings.
type RatingRepository interface {
	// Upsert writes the rating for (participant, item, round) in a single
	// statement. A resubmission overwrites the previous row; last write wins.
	Upsert(ctx context.Context, rating *models.Rating) error

	// ListByRound returns every rating in one round of a study.
	ListByRound(ctx context.Context, studyID uuid.UUID, roundNumber int) ([]*models.Rating, error)

	// ListByParticipant returns a participant's ratings, optionally limited to one round.
	ListByParticipant(ctx context.Context, participantID uuid.UUID, roundNumber *int) ([]*models.Rating, error)
}

type ratingRepository struct{}

// NewRatingRepository creates a new RatingRepository.
func NewRatingRepository() RatingRepository {
	return &ratingRepository{}
}

var _ RatingRepository = (*ratingRepository)(nil)

const ratingColumns = `id, study_id, participant_id, item_id, round_number,
		       priority, validity, feasibility, reasoning, threshold_suggestion,
		       weight_suggestion, general_comments, dissent_flag, dissent_reason,
		       revised_from_previous, role_at_submission, created_at, updated_at`

func (r *ratingRepository) Upsert(ctx context.Context, rating *models.Rating) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	now := time.Now()
	if rating.ID == uuid.Nil {
		rating.ID = uuid.New()
	}

	// The original id and created_at survive an overwrite.
	query := `
		INSERT INTO ratings (` + ratingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
		ON CONFLICT (participant_id, item_id, round_number) DO UPDATE SET
			priority = EXCLUDED.priority,
			validity = EXCLUDED.validity,
			feasibility = EXCLUDED.feasibility,
			reasoning = EXCLUDED.reasoning,
			threshold_suggestion = EXCLUDED.threshold_suggestion,
			weight_suggestion = EXCLUDED.weight_suggestion,
			general_comments = EXCLUDED.general_comments,
			dissent_flag = EXCLUDED.dissent_flag,
			dissent_reason = EXCLUDED.dissent_reason,
			revised_from_previous = EXCLUDED.revised_from_previous,
			role_at_submission = EXCLUDED.role_at_submission,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		rating.ID,
		rating.StudyID,
		rating.ParticipantID,
		rating.ItemID,
		rating.RoundNumber,
		rating.Scores.Priority,
		rating.Scores.Validity,
		rating.Scores.Feasibility,
		rating.Reasoning,
		rating.ThresholdSuggestion,
		rating.WeightSuggestion,
		rating.GeneralComments,
		rating.DissentFlag,
		rating.DissentReason,
		rating.RevisedFromPrevious,
		rating.RoleAtSubmission,
		now,
	).Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}

	return nil
}

func (r *ratingRepository) ListByRound(ctx context.Context, studyID uuid.UUID, roundNumber int) ([]*models.Rating, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT ` + ratingColumns + `
		FROM ratings
		WHERE study_id = $1 AND round_number = $2
		ORDER BY item_id, participant_id`

	rows, err := scope.Conn.Query(ctx, query, studyID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return collectRatings(rows)
}

func (r *ratingRepository) ListByParticipant(ctx context.Context, participantID uuid.UUID, roundNumber *int) ([]*models.Rating, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT ` + ratingColumns + `
		FROM ratings
		WHERE participant_id = $1 AND ($2::int IS NULL OR round_number = $2)
		ORDER BY round_number, item_id`

	rows, err := scope.Conn.Query(ctx, query, participantID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list participant ratings: %w", err)
	}
	return collectRatings(rows)
}

func collectRatings(rows pgx.Rows) ([]*models.Rating, error) {
	defer rows.Close()

	var ratings []*models.Rating
	for rows.Next() {
		var rt models.Rating
		if err := rows.Scan(
			&rt.ID,
			&rt.StudyID,
			&rt.ParticipantID,
			&rt.ItemID,
			&rt.RoundNumber,
			&rt.Scores.Priority,
			&rt.Scores.Validity,
			&rt.Scores.Feasibility,
			&rt.Reasoning,
			&rt.ThresholdSuggestion,
			&rt.WeightSuggestion,
			&rt.GeneralComments,
			&rt.DissentFlag,
			&rt.DissentReason,
			&rt.RevisedFromPrevious,
			&rt.RoleAtSubmission,
			&rt.CreatedAt,
			&rt.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, &rt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ratings: %w", err)
	}

	return ratings, nil
}
