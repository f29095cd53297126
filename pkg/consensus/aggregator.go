// Package consensus computes per-item Delphi round statistics: central tendency,
// dispersion, role-stratified breakdowns, dissent counts and consensus classification.
package consensus

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/boreallogic/delphi-app/pkg/models"
)

// RoleSource selects which role a rating is stratified under.
type RoleSource string

const (
	// RoleSourceSnapshot uses the role recorded on the rating at submission time,
	// falling back to the participant's current role for ratings without one.
	RoleSourceSnapshot RoleSource = "snapshot"
	// RoleSourceCurrent always uses the participant's current role.
	RoleSourceCurrent RoleSource = "current"
)

// IsValid returns true if the role source is known.
func (r RoleSource) IsValid() bool {
	return r == RoleSourceSnapshot || r == RoleSourceCurrent
}

// Input is everything needed to analyze one round of one study.
type Input struct {
	StudyID            uuid.UUID
	RoundID            uuid.UUID
	RoundNumber        int
	ConsensusThreshold float64
	Ratings            []*models.Rating
	ParticipantRoles   map[uuid.UUID]models.Role
	ItemTiers          map[uuid.UUID]models.ItemTier // items absent from the map are fully rated
	RoleSource         RoleSource
	Now                time.Time
}

// AnalyzeRound returns one summary per item that has at least one rating,
// ordered by item ID. The output depends only on the input set: identical
// input yields identical summaries, including IDs.
func AnalyzeRound(in Input) []*models.RoundSummary {
	byItem := make(map[uuid.UUID][]*models.Rating)
	for _, r := range in.Ratings {
		if r == nil {
			continue
		}
		byItem[r.ItemID] = append(byItem[r.ItemID], r)
	}

	itemIDs := make([]uuid.UUID, 0, len(byItem))
	for id := range byItem {
		itemIDs = append(itemIDs, id)
	}
	sort.Slice(itemIDs, func(i, j int) bool {
		return itemIDs[i].String() < itemIDs[j].String()
	})

	summaries := make([]*models.RoundSummary, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		summaries = append(summaries, summarizeItem(in, itemID, byItem[itemID]))
	}
	return summaries
}

func summarizeItem(in Input, itemID uuid.UUID, ratings []*models.Rating) *models.RoundSummary {
	s := &models.RoundSummary{
		ID:             SummaryID(in.StudyID, in.RoundNumber, itemID),
		StudyID:        in.StudyID,
		RoundID:        in.RoundID,
		ItemID:         itemID,
		RoundNumber:    in.RoundNumber,
		ResponseCount:  len(ratings),
		PriorityByRole: map[models.Role]models.RoleStats{},
		ValidityByRole: map[models.Role]models.RoleStats{},
		CreatedAt:      in.Now,
	}

	for _, r := range ratings {
		if r.DissentFlag {
			s.DissentCount++
		}
	}

	tier, ok := in.ItemTiers[itemID]
	if ok && !tier.HasScores() {
		return s
	}

	s.Priority = dimensionStats(ratings, models.DimensionPriority)
	s.Validity = dimensionStats(ratings, models.DimensionValidity)
	s.Feasibility = dimensionStats(ratings, models.DimensionFeasibility)

	s.ConsensusReached = IsConsensus(s.Stats(models.PrimaryDimension), in.ConsensusThreshold)

	s.PriorityByRole = byRole(in, ratings, models.DimensionPriority)
	s.ValidityByRole = byRole(in, ratings, models.DimensionValidity)

	return s
}

// IsConsensus reports whether the dimension's IQR is at or below threshold.
// A dimension without scores never reaches consensus.
func IsConsensus(stats models.DimensionStats, threshold float64) bool {
	if stats.IQR == nil {
		return false
	}
	return *stats.IQR <= threshold
}

// SummaryID derives a stable summary ID from its natural key.
func SummaryID(studyID uuid.UUID, roundNumber int, itemID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(studyID, []byte(fmt.Sprintf("round-summary/%d/%s", roundNumber, itemID)))
}

func collect(ratings []*models.Rating, d models.Dimension) []float64 {
	values := make([]float64, 0, len(ratings))
	for _, r := range ratings {
		if v := r.Scores.Get(d); v != nil {
			values = append(values, float64(*v))
		}
	}
	return values
}

func dimensionStats(ratings []*models.Rating, d models.Dimension) models.DimensionStats {
	st, ok := Calculate(collect(ratings, d))
	if !ok {
		return models.DimensionStats{}
	}
	return models.DimensionStats{
		Mean:   ptr(st.Mean),
		Median: ptr(st.Median),
		Std:    ptr(st.Std),
		IQR:    ptr(st.IQR),
		Min:    ptr(st.Min),
		Max:    ptr(st.Max),
		N:      st.N,
	}
}

func byRole(in Input, ratings []*models.Rating, d models.Dimension) map[models.Role]models.RoleStats {
	grouped := make(map[models.Role][]float64)
	for _, r := range ratings {
		v := r.Scores.Get(d)
		if v == nil {
			continue
		}
		role := resolveRole(in, r)
		if role == "" {
			continue
		}
		grouped[role] = append(grouped[role], float64(*v))
	}

	out := make(map[models.Role]models.RoleStats, len(grouped))
	for role, values := range grouped {
		mean, median, ok := MeanMedian(values)
		if !ok {
			continue
		}
		out[role] = models.RoleStats{Mean: mean, Median: median}
	}
	return out
}

func resolveRole(in Input, r *models.Rating) models.Role {
	current := in.ParticipantRoles[r.ParticipantID]
	if in.RoleSource == RoleSourceCurrent {
		if current != "" {
			return current
		}
		return r.RoleAtSubmission
	}
	if r.RoleAtSubmission != "" {
		return r.RoleAtSubmission
	}
	return current
}

func ptr(v float64) *float64 {
	return &v
}
