package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundStatus represents where a round is in its lifecycle.
type RoundStatus string

const (
	RoundStatusPending  RoundStatus = "PENDING"
	RoundStatusOpen     RoundStatus = "OPEN"
	RoundStatusClosed   RoundStatus = "CLOSED"
	RoundStatusAnalyzed RoundStatus = "ANALYZED"
)

// IsValid returns true if the status is a known round status.
func (s RoundStatus) IsValid() bool {
	switch s {
	case RoundStatusPending, RoundStatusOpen, RoundStatusClosed, RoundStatusAnalyzed:
		return true
	default:
		return false
	}
}

// CanTransitionTo returns true if moving from this status to target keeps rounds monotonic.
// ANALYZED is terminal.
func (s RoundStatus) CanTransitionTo(target RoundStatus) bool {
	switch s {
	case RoundStatusPending:
		return target == RoundStatusOpen
	case RoundStatusOpen:
		return target == RoundStatusClosed
	case RoundStatusClosed:
		return target == RoundStatusAnalyzed
	default:
		return false
	}
}

// Round is one elicitation cycle of a study. All rounds exist from study creation.
type Round struct {
	ID          uuid.UUID   `json:"id"`
	StudyID     uuid.UUID   `json:"study_id"`
	RoundNumber int         `json:"round_number"`        // 1-based
	Status      RoundStatus `json:"status"`
	OpensAt     *time.Time  `json:"opens_at,omitempty"`
	ClosesAt    *time.Time  `json:"closes_at,omitempty"` // informational only, never auto-closes
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsOpen returns true if the round accepts ratings.
func (r *Round) IsOpen() bool {
	return r.Status == RoundStatusOpen
}
