// Package lifecycle decides which study and round status changes a facilitator
// action produces. It performs no I/O: callers load a Snapshot, ask for a Plan,
// and apply the resulting Transition inside a single transaction.
package lifecycle

import (
	"fmt"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// Snapshot is the state a plan is validated against.
type Snapshot struct {
	StudyStatus  models.StudyStatus
	CurrentRound int
	TotalRounds  int

	// CurrentRoundStatus is empty when the current round does not exist (currentRound == 0).
	CurrentRoundStatus models.RoundStatus
	// NextRoundStatus is empty when there is no round after the current one.
	NextRoundStatus models.RoundStatus
}

// NewSnapshot builds a Snapshot from a study and its rounds.
func NewSnapshot(study *models.Study, rounds []*models.Round) Snapshot {
	snap := Snapshot{
		StudyStatus:  study.Status,
		CurrentRound: study.CurrentRound,
		TotalRounds:  study.TotalRounds,
	}
	for _, r := range rounds {
		switch r.RoundNumber {
		case study.CurrentRound:
			snap.CurrentRoundStatus = r.Status
		case study.CurrentRound + 1:
			if r.RoundNumber <= study.TotalRounds {
				snap.NextRoundStatus = r.Status
			}
		}
	}
	return snap
}

func (s Snapshot) hasNextRound() bool {
	return s.NextRoundStatus != "" && s.CurrentRound+1 <= s.TotalRounds
}

// RoundChange is a status change to a single round.
type RoundChange struct {
	RoundNumber int
	From        models.RoundStatus
	To          models.RoundStatus
	StampOpens  bool
	StampCloses bool
}

// Transition is the full set of effects of a valid action.
type Transition struct {
	Action models.StudyAction

	FromStatus models.StudyStatus
	ToStatus   models.StudyStatus

	FromRound int
	ToRound   int

	// RoundChange is nil for actions that only touch the study (pause, resume, complete).
	RoundChange *RoundChange

	// Aggregate is true when the round's summaries must be recomputed and replaced.
	Aggregate      bool
	AggregateRound int

	AuditAction models.AuditAction
	ActorType   models.ActorType
	Event       models.EventType
}

// StudyChanged returns true if the study row must be written.
func (t *Transition) StudyChanged() bool {
	return t.FromStatus != t.ToStatus || t.FromRound != t.ToRound
}

// EventRound returns the round number the emitted event refers to.
func (t *Transition) EventRound() int {
	if t.RoundChange != nil {
		return t.RoundChange.RoundNumber
	}
	return t.ToRound
}

// Plan validates action against snap and returns its effects.
// It returns *apperrors.UnknownActionError for unknown actions and
// *apperrors.TransitionError naming the failed precondition otherwise.
func Plan(snap Snapshot, action models.StudyAction) (*Transition, error) {
	t := &Transition{
		Action:     action,
		FromStatus: snap.StudyStatus,
		ToStatus:   snap.StudyStatus,
		FromRound:  snap.CurrentRound,
		ToRound:    snap.CurrentRound,
		ActorType:  models.ActorFacilitator,
	}

	switch action {
	case models.ActionStartRound1:
		if snap.StudyStatus != models.StudyStatusSetup {
			return nil, invalid(action, "study status is %s, want %s", snap.StudyStatus, models.StudyStatusSetup)
		}
		if snap.CurrentRound != 0 {
			return nil, invalid(action, "current round is %d, want 0", snap.CurrentRound)
		}
		if snap.TotalRounds < 1 || snap.NextRoundStatus != models.RoundStatusPending {
			return nil, invalid(action, "round 1 is not pending")
		}
		t.ToStatus = models.StudyStatusActive
		t.ToRound = 1
		t.RoundChange = &RoundChange{RoundNumber: 1, From: models.RoundStatusPending, To: models.RoundStatusOpen, StampOpens: true}
		t.AuditAction = models.AuditActionRoundStarted
		t.Event = models.EventRoundOpened

	case models.ActionCloseRound:
		if snap.CurrentRoundStatus != models.RoundStatusOpen {
			return nil, invalid(action, "current round status is %s, want %s", roundStatus(snap), models.RoundStatusOpen)
		}
		t.RoundChange = &RoundChange{RoundNumber: snap.CurrentRound, From: models.RoundStatusOpen, To: models.RoundStatusClosed, StampCloses: true}
		t.AuditAction = models.AuditActionRoundClosed
		t.Event = models.EventRoundClosed

	case models.ActionAnalyzeRound:
		if snap.CurrentRoundStatus != models.RoundStatusClosed {
			return nil, invalid(action, "current round status is %s, want %s", roundStatus(snap), models.RoundStatusClosed)
		}
		t.RoundChange = &RoundChange{RoundNumber: snap.CurrentRound, From: models.RoundStatusClosed, To: models.RoundStatusAnalyzed}
		t.Aggregate = true
		t.AggregateRound = snap.CurrentRound
		t.AuditAction = models.AuditActionRoundAnalyzed
		t.ActorType = models.ActorSystem
		t.Event = models.EventRoundAnalyzed

	case models.ActionStartNextRound:
		if snap.CurrentRoundStatus != models.RoundStatusAnalyzed {
			return nil, invalid(action, "current round status is %s, want %s", roundStatus(snap), models.RoundStatusAnalyzed)
		}
		if !snap.hasNextRound() {
			return nil, invalid(action, "no round after round %d of %d", snap.CurrentRound, snap.TotalRounds)
		}
		if snap.NextRoundStatus != models.RoundStatusPending {
			return nil, invalid(action, "round %d status is %s, want %s", snap.CurrentRound+1, snap.NextRoundStatus, models.RoundStatusPending)
		}
		t.ToRound = snap.CurrentRound + 1
		t.RoundChange = &RoundChange{RoundNumber: t.ToRound, From: models.RoundStatusPending, To: models.RoundStatusOpen, StampOpens: true}
		t.AuditAction = models.AuditActionRoundStarted
		t.Event = models.EventRoundOpened

	case models.ActionCompleteStudy:
		if snap.CurrentRoundStatus != models.RoundStatusAnalyzed {
			return nil, invalid(action, "current round status is %s, want %s", roundStatus(snap), models.RoundStatusAnalyzed)
		}
		if snap.hasNextRound() {
			return nil, invalid(action, "round %d of %d has not run", snap.CurrentRound+1, snap.TotalRounds)
		}
		if snap.StudyStatus == models.StudyStatusComplete {
			return nil, invalid(action, "study is already %s", models.StudyStatusComplete)
		}
		t.ToStatus = models.StudyStatusComplete
		t.AuditAction = models.AuditActionStudyCompleted
		t.Event = models.EventStudyCompleted

	case models.ActionPauseStudy:
		if snap.StudyStatus != models.StudyStatusActive {
			return nil, invalid(action, "study status is %s, want %s", snap.StudyStatus, models.StudyStatusActive)
		}
		t.ToStatus = models.StudyStatusPaused
		t.AuditAction = models.AuditActionStudyPaused
		t.Event = models.EventStudyPaused

	case models.ActionResumeStudy:
		if snap.StudyStatus != models.StudyStatusPaused {
			return nil, invalid(action, "study status is %s, want %s", snap.StudyStatus, models.StudyStatusPaused)
		}
		t.ToStatus = models.StudyStatusActive
		t.AuditAction = models.AuditActionStudyResumed
		t.Event = models.EventStudyResumed

	default:
		return nil, &apperrors.UnknownActionError{Action: string(action)}
	}

	if t.RoundChange != nil && !t.RoundChange.From.CanTransitionTo(t.RoundChange.To) {
		return nil, invalid(action, "round %d cannot move from %s to %s", t.RoundChange.RoundNumber, t.RoundChange.From, t.RoundChange.To)
	}
	if t.ToRound > snap.TotalRounds {
		return nil, invalid(action, "round %d exceeds total rounds %d", t.ToRound, snap.TotalRounds)
	}

	return t, nil
}

func invalid(action models.StudyAction, format string, args ...any) error {
	return &apperrors.TransitionError{
		Action:       string(action),
		Precondition: fmt.Sprintf(format, args...),
	}
}

func roundStatus(snap Snapshot) string {
	if snap.CurrentRoundStatus == "" {
		return "none"
	}
	return string(snap.CurrentRoundStatus)
}
