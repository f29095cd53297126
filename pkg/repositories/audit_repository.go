package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// AuditRepository provides data access for the append-only audit log.
type AuditRepository interface {
	// Create inserts a new audit log entry.
	Create(ctx context.Context, entry *models.AuditLogEntry) error

	// ListByStudy returns a study's audit log entries, newest first.
	ListByStudy(ctx context.Context, studyID uuid.UUID, limit int) ([]*models.AuditLogEntry, error)
}

type auditRepository struct{}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, study_id, action, actor_type, actor_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = scope.Conn.Exec(ctx, query,
		entry.ID,
		entry.StudyID,
		entry.Action,
		entry.ActorType,
		entry.ActorID,
		metadataJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}

	return nil
}

func (r *auditRepository) ListByStudy(ctx context.Context, studyID uuid.UUID, limit int) ([]*models.AuditLogEntry, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, study_id, action, actor_type, actor_id, metadata, created_at
		FROM audit_log
		WHERE study_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := scope.Conn.Query(ctx, query, studyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log entries: %w", err)
	}

	return entries, nil
}

func scanAuditLogEntry(row pgx.Row) (*models.AuditLogEntry, error) {
	var (
		entry        models.AuditLogEntry
		metadataJSON []byte
	)
	err := row.Scan(
		&entry.ID,
		&entry.StudyID,
		&entry.Action,
		&entry.ActorType,
		&entry.ActorID,
		&metadataJSON,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
		}
	}

	return &entry, nil
}
