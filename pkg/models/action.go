package models

// StudyAction is a facilitator-issued lifecycle command.
type StudyAction string

const (
	ActionStartRound1    StudyAction = "START_ROUND_1"
	ActionCloseRound     StudyAction = "CLOSE_ROUND"
	ActionAnalyzeRound   StudyAction = "ANALYZE_ROUND"
	ActionStartNextRound StudyAction = "START_NEXT_ROUND"
	ActionCompleteStudy  StudyAction = "COMPLETE_STUDY"
	ActionPauseStudy     StudyAction = "PAUSE_STUDY"
	ActionResumeStudy    StudyAction = "RESUME_STUDY"
)

// ValidStudyActions contains every action the state machine understands.
// Names are matched exactly; anything else is an unknown action.
var ValidStudyActions = []StudyAction{
	ActionStartRound1,
	ActionCloseRound,
	ActionAnalyzeRound,
	ActionStartNextRound,
	ActionCompleteStudy,
	ActionPauseStudy,
	ActionResumeStudy,
}

// IsValid returns true if the action is known.
func (a StudyAction) IsValid() bool {
	for _, v := range ValidStudyActions {
		if v == a {
			return true
		}
	}
	return false
}

// RunsAggregation returns true if applying the action recomputes round summaries.
func (a StudyAction) RunsAggregation() bool {
	return a == ActionAnalyzeRound
}
