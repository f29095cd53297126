package models

import (
	"time"

	"github.com/google/uuid"
)

// DimensionStats holds summary statistics for one dimension of one item.
// All fields are nil when no non-null score was submitted.
type DimensionStats struct {
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	Std    *float64 `json:"std"`
	IQR    *float64 `json:"iqr"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	N      int      `json:"n"`
}

// IsEmpty returns true if the dimension had no scores.
func (d DimensionStats) IsEmpty() bool {
	return d.N == 0
}

// RoleStats is the reduced per-role breakdown (mean and median only).
type RoleStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// RoundSummary is the derived aggregate for one item in one round.
// It is never edited; re-analysis deletes and recreates the round's summaries.
type RoundSummary struct {
	ID          uuid.UUID `json:"id"`
	StudyID     uuid.UUID `json:"study_id"`
	RoundID     uuid.UUID `json:"round_id"`
	ItemID      uuid.UUID `json:"item_id"`
	RoundNumber int       `json:"round_number"`

	Priority    DimensionStats `json:"priority"`
	Validity    DimensionStats `json:"validity"`
	Feasibility DimensionStats `json:"feasibility"`

	ConsensusReached bool `json:"consensus_reached"`
	DissentCount     int  `json:"dissent_count"`
	ResponseCount    int  `json:"response_count"`

	PriorityByRole map[Role]RoleStats `json:"priority_by_role"`
	ValidityByRole map[Role]RoleStats `json:"validity_by_role"`

	CreatedAt time.Time `json:"created_at"`
}

// Stats returns the statistics for the given dimension.
func (s *RoundSummary) Stats(d Dimension) DimensionStats {
	switch d {
	case DimensionPriority:
		return s.Priority
	case DimensionValidity:
		return s.Validity
	case DimensionFeasibility:
		return s.Feasibility
	default:
		return DimensionStats{}
	}
}
