package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
	"github.com/boreallogic/delphi-app/pkg/consensus"
	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/events"
	"github.com/boreallogic/delphi-app/pkg/lifecycle"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// publishTimeout bounds post-commit event delivery, retries included.
const publishTimeout = 10 * time.Second

// StudyLifecycleService applies facilitator actions to a study's state machine.
type StudyLifecycleService interface {
	// ApplyAction validates action against the study's current state and applies
	// every effect atomically. On error nothing has changed.
	//
	// Errors: apperrors.ErrUnknownAction, apperrors.ErrInvalidTransition,
	// apperrors.ErrNotFound, apperrors.ErrValidation (bad actor) and
	// apperrors.ErrPersistence for storage failures.
	ApplyAction(ctx context.Context, studyID uuid.UUID, action models.StudyAction, actor models.Actor) (*models.StudyState, error)

	// RecomputeRoundSummaries reruns aggregation for an already analyzed round
	// and replaces its summaries. Round and study status are untouched.
	// The study must not be COMPLETE.
	RecomputeRoundSummaries(ctx context.Context, studyID uuid.UUID, roundNumber int, actor models.Actor) ([]*models.RoundSummary, error)
}

type studyLifecycleService struct {
	txm       database.TxManager
	repos     Repositories
	audit     AuditService
	publisher events.Publisher
	settings  Settings
	now       func() time.Time
	logger    *zap.Logger
}

// NewStudyLifecycleService creates a new StudyLifecycleService.
func NewStudyLifecycleService(
	txm database.TxManager,
	repos Repositories,
	audit AuditService,
	publisher events.Publisher,
	settings Settings,
	logger *zap.Logger,
) StudyLifecycleService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &studyLifecycleService{
		txm:       txm,
		repos:     repos,
		audit:     audit,
		publisher: publisher,
		settings:  settings,
		now:       time.Now,
		logger:    logger.Named("study-lifecycle"),
	}
}

var _ StudyLifecycleService = (*studyLifecycleService)(nil)

func (s *studyLifecycleService) ApplyAction(ctx context.Context, studyID uuid.UUID, action models.StudyAction, actor models.Actor) (*models.StudyState, error) {
	if !action.IsValid() {
		return nil, &apperrors.UnknownActionError{Action: string(action)}
	}
	if err := actor.Validate(); err != nil {
		return nil, &apperrors.ValidationError{Field: "actor", Message: err.Error()}
	}

	var (
		state      *models.StudyState
		transition *lifecycle.Transition
	)

	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		study, err := s.repos.Studies.GetForUpdate(ctx, studyID)
		if err != nil {
			return err
		}

		rounds, err := s.repos.Rounds.ListByStudy(ctx, studyID)
		if err != nil {
			return fmt.Errorf("load rounds: %w", err)
		}

		fromStatus := study.Status
		transition, err = lifecycle.Plan(lifecycle.NewSnapshot(study, rounds), action)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if transition.StudyChanged() {
			study.Status = transition.ToStatus
			study.CurrentRound = transition.ToRound
			if err := s.repos.Studies.UpdateState(ctx, study); err != nil {
				return fmt.Errorf("update study: %w", err)
			}
		}

		if rc := transition.RoundChange; rc != nil {
			round := findRound(rounds, rc.RoundNumber)
			if round == nil {
				return fmt.Errorf("round %d of study %s missing", rc.RoundNumber, studyID)
			}
			round.Status = rc.To
			if rc.StampOpens {
				round.OpensAt = &now
			}
			if rc.StampCloses {
				round.ClosesAt = &now
			}
			if err := s.repos.Rounds.Update(ctx, round); err != nil {
				return fmt.Errorf("update round %d: %w", rc.RoundNumber, err)
			}
		}

		state = &models.StudyState{Study: study, Rounds: rounds}

		info := &models.TransitionInfo{
			Action:      action,
			FromStatus:  fromStatus,
			ToStatus:    study.Status,
			RoundNumber: transition.EventRound(),
			Event:       transition.Event,
			AppliedAt:   now,
			Actor:       actor,
		}
		if r := findRound(rounds, transition.EventRound()); r != nil {
			info.RoundStatus = r.Status
		}
		state.Transition = info

		if transition.Aggregate {
			summaries, err := s.aggregate(ctx, study, rounds, transition.AggregateRound, now)
			if err != nil {
				return err
			}
			state.Summaries = summaries
			info.ItemsAnalyzed = len(summaries)
			info.ConsensusCount = consensusCount(summaries)
		}

		auditActor := actor
		if transition.ActorType == models.ActorSystem {
			auditActor = models.SystemActor
		}
		if err := s.audit.Record(ctx, studyID, transition.AuditAction, auditActor, auditMetadata(transition, actor, info)); err != nil {
			s.logger.Warn("Lifecycle transition applied without audit entry",
				zap.String("study_id", studyID.String()),
				zap.String("action", string(action)),
				zap.Error(err))
		}

		return nil
	})
	if err != nil {
		if apperrors.IsDomain(err) {
			s.logger.Info("Lifecycle action rejected",
				zap.String("study_id", studyID.String()),
				zap.String("action", string(action)),
				zap.Error(err))
			return nil, err
		}
		s.logger.Error("Lifecycle action failed",
			zap.String("study_id", studyID.String()),
			zap.String("action", string(action)),
			zap.Error(err))
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("apply %s", action), err)
	}

	s.logger.Info("Lifecycle action applied",
		zap.String("study_id", studyID.String()),
		zap.String("action", string(action)),
		zap.String("study_status", string(state.Study.Status)),
		zap.Int("current_round", state.Study.CurrentRound),
		zap.String("actor_type", string(actor.Type)))

	s.publish(ctx, &models.RoundEvent{
		ID:          uuid.New(),
		Type:        transition.Event,
		StudyID:     state.Study.ID,
		RoundNumber: transition.EventRound(),
		StudyStatus: state.Study.Status,
		RoundStatus: state.Transition.RoundStatus,
		ActorType:   transition.ActorType,
		OccurredAt:  state.Transition.AppliedAt,
	})

	return state, nil
}

func (s *studyLifecycleService) RecomputeRoundSummaries(ctx context.Context, studyID uuid.UUID, roundNumber int, actor models.Actor) ([]*models.RoundSummary, error) {
	if err := actor.Validate(); err != nil {
		return nil, &apperrors.ValidationError{Field: "actor", Message: err.Error()}
	}

	var (
		summaries []*models.RoundSummary
		study     *models.Study
		now       time.Time
	)

	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		study, err = s.repos.Studies.GetForUpdate(ctx, studyID)
		if err != nil {
			return err
		}
		if roundNumber < 1 || roundNumber > study.TotalRounds {
			return &apperrors.ValidationError{
				Field:   "round",
				Message: fmt.Sprintf("round must be between 1 and %d", study.TotalRounds),
			}
		}
		if study.Status == models.StudyStatusComplete {
			return fmt.Errorf("%w: study is %s", apperrors.ErrInvalidTransition, study.Status)
		}

		rounds, err := s.repos.Rounds.ListByStudy(ctx, studyID)
		if err != nil {
			return fmt.Errorf("load rounds: %w", err)
		}
		round := findRound(rounds, roundNumber)
		if round == nil {
			return fmt.Errorf("round %d of study %s missing", roundNumber, studyID)
		}
		if round.Status != models.RoundStatusAnalyzed {
			return fmt.Errorf("%w: round %d status is %s, want %s",
				apperrors.ErrInvalidTransition, roundNumber, round.Status, models.RoundStatusAnalyzed)
		}

		now = s.now().UTC()
		summaries, err = s.aggregate(ctx, study, rounds, roundNumber, now)
		if err != nil {
			return err
		}

		md := map[string]any{
			"roundNumber":    roundNumber,
			"itemsAnalyzed":  len(summaries),
			"consensusCount": consensusCount(summaries),
		}
		if actor.Type != models.ActorSystem {
			md["requestedBy"] = string(actor.Type)
			md["requestedById"] = actor.ID.String()
		}
		if err := s.audit.Record(ctx, studyID, models.AuditActionSummariesRecomputed, models.SystemActor, md); err != nil {
			s.logger.Warn("Summaries recomputed without audit entry",
				zap.String("study_id", studyID.String()),
				zap.Int("round", roundNumber),
				zap.Error(err))
		}
		return nil
	})
	if err != nil {
		if apperrors.IsDomain(err) {
			s.logger.Info("Summary recompute rejected",
				zap.String("study_id", studyID.String()),
				zap.Int("round", roundNumber),
				zap.Error(err))
			return nil, err
		}
		s.logger.Error("Summary recompute failed",
			zap.String("study_id", studyID.String()),
			zap.Int("round", roundNumber),
			zap.Error(err))
		return nil, apperrors.NewPersistenceError("recompute round summaries", err)
	}

	s.logger.Info("Round summaries recomputed",
		zap.String("study_id", studyID.String()),
		zap.Int("round", roundNumber),
		zap.Int("items", len(summaries)))

	s.publish(ctx, &models.RoundEvent{
		ID:          uuid.New(),
		Type:        models.EventSummariesRecomputed,
		StudyID:     studyID,
		RoundNumber: roundNumber,
		StudyStatus: study.Status,
		RoundStatus: models.RoundStatusAnalyzed,
		ActorType:   models.ActorSystem,
		OccurredAt:  now,
	})

	return summaries, nil
}

// aggregate recomputes and replaces the summaries of one round.
func (s *studyLifecycleService) aggregate(ctx context.Context, study *models.Study, rounds []*models.Round, roundNumber int, now time.Time) ([]*models.RoundSummary, error) {
	round := findRound(rounds, roundNumber)
	if round == nil {
		return nil, fmt.Errorf("round %d of study %s missing", roundNumber, study.ID)
	}

	ratings, err := s.repos.Ratings.ListByRound(ctx, study.ID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}

	participants, err := s.repos.Participants.ListByStudy(ctx, study.ID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	roles := make(map[uuid.UUID]models.Role, len(participants))
	for _, p := range participants {
		roles[p.ID] = p.Role
	}

	items, err := s.repos.Items.ListByStudy(ctx, study.ID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	tiers := make(map[uuid.UUID]models.ItemTier, len(items))
	for _, it := range items {
		tiers[it.ID] = it.Tier
	}

	if len(ratings) == 0 {
		s.logger.Warn("Analyzing round with no ratings",
			zap.String("study_id", study.ID.String()),
			zap.Int("round", roundNumber))
	}

	summaries := consensus.AnalyzeRound(consensus.Input{
		StudyID:            study.ID,
		RoundID:            round.ID,
		RoundNumber:        roundNumber,
		ConsensusThreshold: study.ConsensusThreshold,
		Ratings:            ratings,
		ParticipantRoles:   roles,
		ItemTiers:          tiers,
		RoleSource:         s.settings.RoleSource,
		Now:                now,
	})

	if err := s.repos.Summaries.ReplaceForRound(ctx, study.ID, roundNumber, summaries); err != nil {
		return nil, fmt.Errorf("replace round summaries: %w", err)
	}

	return summaries, nil
}

// publish emits a committed change. Delivery failure is logged and otherwise ignored.
func (s *studyLifecycleService) publish(ctx context.Context, event *models.RoundEvent) {
	if event.Type == "" {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.logger.Warn("Failed to publish round event",
			zap.String("study_id", event.StudyID.String()),
			zap.String("event_type", string(event.Type)),
			zap.Int("round", event.RoundNumber),
			zap.Error(err))
	}
}

func auditMetadata(t *lifecycle.Transition, actor models.Actor, info *models.TransitionInfo) map[string]any {
	md := map[string]any{
		"action":      string(t.Action),
		"roundNumber": t.EventRound(),
		"fromStatus":  string(t.FromStatus),
		"toStatus":    string(t.ToStatus),
	}
	if t.Aggregate {
		md["itemsAnalyzed"] = info.ItemsAnalyzed
		md["consensusCount"] = info.ConsensusCount
	}
	if t.ActorType == models.ActorSystem && actor.Type != models.ActorSystem {
		md["requestedBy"] = string(actor.Type)
		if actor.ID != uuid.Nil {
			md["requestedById"] = actor.ID.String()
		}
	}
	return md
}

func consensusCount(summaries []*models.RoundSummary) int {
	n := 0
	for _, sm := range summaries {
		if sm.ConsensusReached {
			n++
		}
	}
	return n
}

func findRound(rounds []*models.Round, number int) *models.Round {
	for _, r := range rounds {
		if r.RoundNumber == number {
			return r
		}
	}
	return nil
}
