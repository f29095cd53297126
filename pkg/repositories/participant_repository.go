package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// ParticipantRepository provides data access for study panelists.
type ParticipantRepository interface {
	// Create inserts a participant. Returns apperrors.ErrConflict if the email
	// is already enrolled in the study.
	Create(ctx context.Context, p *models.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*models.Participant, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error
}

type participantRepository struct{}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository() ParticipantRepository {
	return &participantRepository{}
}

var _ ParticipantRepository = (*participantRepository)(nil)

const participantColumns = `id, study_id, email, name, role, created_at, updated_at`

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

func (r *participantRepository) Create(ctx context.Context, p *models.Participant) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	now := time.Now()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `INSERT INTO participants (` + participantColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := scope.Conn.Exec(ctx, query,
		p.ID, p.StudyID, p.Email, p.Name, p.Role, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}

	return nil
}

func (r *participantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`

	p, err := scanParticipant(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (r *participantRepository) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*models.Participant, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT ` + participantColumns + ` FROM participants WHERE study_id = $1 ORDER BY created_at, id`

	rows, err := scope.Conn.Query(ctx, query, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return participants, nil
}

func (r *participantRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	tag, err := scope.Conn.Exec(ctx,
		`UPDATE participants SET role = $2, updated_at = $3 WHERE id = $1`,
		id, role, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update participant role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	if err := row.Scan(&p.ID, &p.StudyID, &p.Email, &p.Name, &p.Role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
