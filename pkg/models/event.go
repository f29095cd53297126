package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an observable lifecycle change for downstream subscribers
// (notification delivery lives outside this service).
type EventType string

const (
	EventRoundOpened         EventType = "round.opened"
	EventRoundClosed         EventType = "round.closed"
	EventRoundAnalyzed       EventType = "round.analyzed"
	EventSummariesRecomputed EventType = "round.summaries_recomputed"
	EventStudyPaused         EventType = "study.paused"
	EventStudyResumed        EventType = "study.resumed"
	EventStudyCompleted      EventType = "study.completed"
)

// RoundEvent is published after a lifecycle transition commits.
type RoundEvent struct {
	ID          uuid.UUID   `json:"id"`
	Type        EventType   `json:"type"`
	StudyID     uuid.UUID   `json:"study_id"`
	RoundNumber int         `json:"round_number"`
	StudyStatus StudyStatus `json:"study_status"`
	RoundStatus RoundStatus `json:"round_status,omitempty"`
	ActorType   ActorType   `json:"actor_type"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
