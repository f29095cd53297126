package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/models"
	"github.com/boreallogic/delphi-app/pkg/repositories"
)

// AuditService writes the append-only audit trail.
// A failed audit write never fails the operation being audited: the entry is
// written inside its own savepoint, so the failure discards only the entry.
type AuditService interface {
	// Record writes one audit entry. The returned error is informational;
	// callers log it and carry on.
	Record(ctx context.Context, studyID uuid.UUID, action models.AuditAction, actor models.Actor, metadata map[string]any) error

	// ListByStudy returns a study's audit entries, newest first.
	ListByStudy(ctx context.Context, studyID uuid.UUID, limit int) ([]*models.AuditLogEntry, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	txm    database.TxManager
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, txm database.TxManager, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		txm:    txm,
		logger: logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Record(ctx context.Context, studyID uuid.UUID, action models.AuditAction, actor models.Actor, metadata map[string]any) error {
	if err := actor.Validate(); err != nil {
		// Don't fail the operation - audit logging shouldn't break the main operation
		s.logger.Warn("Skipping audit entry with invalid actor",
			zap.String("study_id", studyID.String()),
			zap.String("action", string(action)),
			zap.Error(err))
		return nil
	}

	entry := &models.AuditLogEntry{
		StudyID:   studyID,
		Action:    action,
		ActorType: actor.Type,
		ActorID:   actor.IDPtr(),
		Metadata:  metadata,
	}

	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, entry)
	})
	if err != nil {
		s.logger.Error("Failed to create audit log entry",
			zap.String("study_id", studyID.String()),
			zap.String("action", string(action)),
			zap.String("actor_type", string(actor.Type)),
			zap.Error(err))
		return fmt.Errorf("create audit log entry: %w", err)
	}

	return nil
}

func (s *auditService) ListByStudy(ctx context.Context, studyID uuid.UUID, limit int) ([]*models.AuditLogEntry, error) {
	entries, err := s.repo.ListByStudy(ctx, studyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return entries, nil
}
