package models

import (
	"time"

	"github.com/google/uuid"
)

// Dimension identifies one of the ordinal scores on a rating.
type Dimension string

const (
	DimensionPriority    Dimension = "priority" // primary dimension for consensus
	DimensionValidity    Dimension = "validity"
	DimensionFeasibility Dimension = "feasibility"
)

// Dimensions lists the rated dimensions in order; the first is primary.
var Dimensions = []Dimension{DimensionPriority, DimensionValidity, DimensionFeasibility}

// PrimaryDimension is the dimension whose IQR decides consensus.
const PrimaryDimension = DimensionPriority

// Scores holds the ordinal scores of a rating. A nil score means "unsure"
// and is excluded from statistics, never coerced to zero.
type Scores struct {
	Priority    *int `json:"priority"`
	Validity    *int `json:"validity"`
	Feasibility *int `json:"feasibility"`
}

// Get returns the score for a dimension.
func (s Scores) Get(d Dimension) *int {
	switch d {
	case DimensionPriority:
		return s.Priority
	case DimensionValidity:
		return s.Validity
	case DimensionFeasibility:
		return s.Feasibility
	default:
		return nil
	}
}

// IsEmpty returns true if every score is nil.
func (s Scores) IsEmpty() bool {
	return s.Priority == nil && s.Validity == nil && s.Feasibility == nil
}

// Rating is one participant's response to one item in one round.
// (ParticipantID, ItemID, RoundNumber) is unique; resubmission overwrites.
type Rating struct {
	ID                  uuid.UUID `json:"id"`
	StudyID             uuid.UUID `json:"study_id"`
	ParticipantID       uuid.UUID `json:"participant_id"`
	ItemID              uuid.UUID `json:"item_id"`
	RoundNumber         int       `json:"round_number"`
	Scores              Scores    `json:"scores"`
	Reasoning           string    `json:"reasoning,omitempty"`
	ThresholdSuggestion string    `json:"threshold_suggestion,omitempty"`
	WeightSuggestion    *float64  `json:"weight_suggestion,omitempty"`
	GeneralComments     string    `json:"general_comments,omitempty"`
	DissentFlag         bool      `json:"dissent_flag"`
	DissentReason       string    `json:"dissent_reason,omitempty"`
	RevisedFromPrevious bool      `json:"revised_from_previous"`

	// RoleAtSubmission snapshots the participant's role when the rating was written.
	// Empty on rows written before snapshots existed.
	RoleAtSubmission Role `json:"role_at_submission,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
