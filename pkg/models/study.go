// Package models contains domain types for the Delphi consensus engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// StudyStatus represents the lifecycle status of a Delphi study.
type StudyStatus string

const (
	StudyStatusSetup    StudyStatus = "SETUP"
	StudyStatusActive   StudyStatus = "ACTIVE"
	StudyStatusPaused   StudyStatus = "PAUSED"
	StudyStatusComplete StudyStatus = "COMPLETE"
)

// ValidStudyStatuses contains all valid study status values.
var ValidStudyStatuses = []StudyStatus{
	StudyStatusSetup,
	StudyStatusActive,
	StudyStatusPaused,
	StudyStatusComplete,
}

// IsValid returns true if the status is a known study status.
func (s StudyStatus) IsValid() bool {
	for _, v := range ValidStudyStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Study is a single Delphi exercise. Round count and item set are fixed at creation.
type Study struct {
	ID                 uuid.UUID   `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description,omitempty"`
	Status             StudyStatus `json:"status"`
	CurrentRound       int         `json:"current_round"`       // 0 before round 1 starts
	TotalRounds        int         `json:"total_rounds"`
	ConsensusThreshold float64     `json:"consensus_threshold"` // IQR cutoff on the primary dimension
	AllowDissent       bool        `json:"allow_dissent"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// HasNextRound reports whether a round exists after the current one.
func (s *Study) HasNextRound() bool {
	return s.CurrentRound < s.TotalRounds
}

// StudyState is the observable result of a lifecycle operation.
type StudyState struct {
	Study      *Study          `json:"study"`
	Rounds     []*Round        `json:"rounds"`
	Transition *TransitionInfo `json:"transition,omitempty"`
	Summaries  []*RoundSummary `json:"summaries,omitempty"`
}

// CurrentRound returns the round matching the study's current round number, or nil.
func (s *StudyState) CurrentRound() *Round {
	if s == nil || s.Study == nil {
		return nil
	}
	for _, r := range s.Rounds {
		if r.RoundNumber == s.Study.CurrentRound {
			return r
		}
	}
	return nil
}

// TransitionInfo describes which action was applied and what it changed.
type TransitionInfo struct {
	Action         StudyAction `json:"action"`
	FromStatus     StudyStatus `json:"from_status"`
	ToStatus       StudyStatus `json:"to_status"`
	RoundNumber    int         `json:"round_number"`
	RoundStatus    RoundStatus `json:"round_status,omitempty"`
	Event          EventType   `json:"event,omitempty"`
	ItemsAnalyzed  int         `json:"items_analyzed,omitempty"`
	ConsensusCount int         `json:"consensus_count,omitempty"`
	AppliedAt      time.Time   `json:"applied_at"`
	Actor          Actor       `json:"actor"`
}
