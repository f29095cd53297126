package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// RoundSummaryRepository provides data access for per-item round aggregates.
type RoundSummaryRepository interface {
	// ReplaceForRound deletes every summary of the round and inserts the given set.
	// Callers run it inside a transaction so readers never see a partial set.
	ReplaceForRound(ctx context.Context, studyID uuid.UUID, roundNumber int, summaries []*models.RoundSummary) error

	// ListByRound returns the round's summaries ordered by item.
	ListByRound(ctx context.Context, studyID uuid.UUID, roundNumber int) ([]*models.RoundSummary, error)
}

type roundSummaryRepository struct{}

// NewRoundSummaryRepository creates a new RoundSummaryRepository.
func NewRoundSummaryRepository() RoundSummaryRepository {
	return &roundSummaryRepository{}
}

var _ RoundSummaryRepository = (*roundSummaryRepository)(nil)

const roundSummaryColumns = `id, study_id, round_id, item_id, round_number,
		       priority, validity, feasibility, consensus_reached, dissent_count,
		       response_count, priority_by_role, validity_by_role, created_at`

func (r *roundSummaryRepository) ReplaceForRound(ctx context.Context, studyID uuid.UUID, roundNumber int, summaries []*models.RoundSummary) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	if _, err := scope.Conn.Exec(ctx,
		`DELETE FROM round_summaries WHERE study_id = $1 AND round_number = $2`,
		studyID, roundNumber); err != nil {
		return fmt.Errorf("failed to delete round summaries: %w", err)
	}

	if len(summaries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO round_summaries (` + roundSummaryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	for _, s := range summaries {
		if s.StudyID != studyID || s.RoundNumber != roundNumber {
			return fmt.Errorf("summary for item %s belongs to study %s round %d", s.ItemID, s.StudyID, s.RoundNumber)
		}

		encoded, err := encodeSummaryJSON(s)
		if err != nil {
			return err
		}

		batch.Queue(query,
			s.ID, s.StudyID, s.RoundID, s.ItemID, s.RoundNumber,
			encoded.priority, encoded.validity, encoded.feasibility,
			s.ConsensusReached, s.DissentCount, s.ResponseCount,
			encoded.priorityByRole, encoded.validityByRole,
			s.CreatedAt,
		)
	}

	br := scope.Conn.SendBatch(ctx, batch)
	defer br.Close()

	for range summaries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch insert round summary: %w", err)
		}
	}

	return nil
}

func (r *roundSummaryRepository) ListByRound(ctx context.Context, studyID uuid.UUID, roundNumber int) ([]*models.RoundSummary, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT ` + roundSummaryColumns + `
		FROM round_summaries
		WHERE study_id = $1 AND round_number = $2
		ORDER BY item_id::text`

	rows, err := scope.Conn.Query(ctx, query, studyID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list round summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.RoundSummary
	for rows.Next() {
		var (
			s                               models.RoundSummary
			priority, validity, feasibility []byte
			priorityByRole, validityByRole  []byte
		)
		if err := rows.Scan(
			&s.ID, &s.StudyID, &s.RoundID, &s.ItemID, &s.RoundNumber,
			&priority, &validity, &feasibility,
			&s.ConsensusReached, &s.DissentCount, &s.ResponseCount,
			&priorityByRole, &validityByRole,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan round summary: %w", err)
		}

		for _, f := range []struct {
			raw  []byte
			dest any
			name string
		}{
			{priority, &s.Priority, "priority"},
			{validity, &s.Validity, "validity"},
			{feasibility, &s.Feasibility, "feasibility"},
			{priorityByRole, &s.PriorityByRole, "priority_by_role"},
			{validityByRole, &s.ValidityByRole, "validity_by_role"},
		} {
			if err := json.Unmarshal(f.raw, f.dest); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s: %w", f.name, err)
			}
		}

		summaries = append(summaries, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating round summaries: %w", err)
	}

	return summaries, nil
}

type encodedSummary struct {
	priority, validity, feasibility []byte
	priorityByRole, validityByRole  []byte
}

func encodeSummaryJSON(s *models.RoundSummary) (*encodedSummary, error) {
	var (
		out encodedSummary
		err error
	)
	if out.priority, err = json.Marshal(s.Priority); err != nil {
		return nil, fmt.Errorf("marshal priority stats: %w", err)
	}
	if out.validity, err = json.Marshal(s.Validity); err != nil {
		return nil, fmt.Errorf("marshal validity stats: %w", err)
	}
	if out.feasibility, err = json.Marshal(s.Feasibility); err != nil {
		return nil, fmt.Errorf("marshal feasibility stats: %w", err)
	}
	if out.priorityByRole, err = json.Marshal(roleStatsOrEmpty(s.PriorityByRole)); err != nil {
		return nil, fmt.Errorf("marshal priority_by_role: %w", err)
	}
	if out.validityByRole, err = json.Marshal(roleStatsOrEmpty(s.ValidityByRole)); err != nil {
		return nil, fmt.Errorf("marshal validity_by_role: %w", err)
	}
	return &out, nil
}

func roleStatsOrEmpty(m map[models.Role]models.RoleStats) map[models.Role]models.RoleStats {
	if m == nil {
		return map[models.Role]models.RoleStats{}
	}
	return m
}
