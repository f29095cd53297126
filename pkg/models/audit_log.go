package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names an audited event.
type AuditAction string

const (
	AuditActionStudyCreated        AuditAction = "STUDY_CREATED"
	AuditActionRoundStarted        AuditAction = "ROUND_STARTED"
	AuditActionRoundClosed         AuditAction = "ROUND_CLOSED"
	AuditActionRoundAnalyzed       AuditAction = "ROUND_ANALYZED"
	AuditActionSummariesRecomputed AuditAction = "SUMMARIES_RECOMPUTED"
	AuditActionStudyCompleted      AuditAction = "STUDY_COMPLETED"
	AuditActionStudyPaused         AuditAction = "STUDY_PAUSED"
	AuditActionStudyResumed        AuditAction = "STUDY_RESUMED"
	AuditActionResponseSaved       AuditAction = "RESPONSE_SAVED"
	AuditActionParticipantAdded    AuditAction = "PARTICIPANT_ADDED"
	AuditActionParticipantRoleSet  AuditAction = "PARTICIPANT_ROLE_CHANGED"
)

// AuditLogEntry is an immutable record of a state change.
// Stored in audit_log; rows are never updated or deleted.
type AuditLogEntry struct {
	ID        uuid.UUID      `json:"id"`
	StudyID   uuid.UUID      `json:"study_id"`
	Action    AuditAction    `json:"action"`
	ActorType ActorType      `json:"actor_type"`
	ActorID   *uuid.UUID     `json:"actor_id,omitempty"` // nil for system actions
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
