package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// RatingInput is one panelist response to one item.
type RatingInput struct {
	// StudyID is optional; when set it must match the participant's study.
	StudyID             uuid.UUID     `json:"study_id"`
	ItemID              uuid.UUID     `json:"item_id" validate:"required"`
	RoundNumber         int           `json:"round_number" validate:"gte=1"`
	Scores              models.Scores `json:"scores"`
	Reasoning           string        `json:"reasoning" validate:"max=10000"`
	ThresholdSuggestion string        `json:"threshold_suggestion" validate:"max=2000"`
	WeightSuggestion    *float64      `json:"weight_suggestion" validate:"omitempty,gte=0,lte=100"`
	GeneralComments     string        `json:"general_comments" validate:"max=10000"`
	DissentFlag         bool          `json:"dissent_flag"`
	DissentReason       string        `json:"dissent_reason" validate:"max=10000"`
	RevisedFromPrevious bool          `json:"revised_from_previous"`
}

// RatingService records panelist responses for the open round.
type RatingService interface {
	// SubmitRating creates or overwrites the participant's rating for
	// (item, round). The study must be ACTIVE and the round its current, OPEN round.
	SubmitRating(ctx context.Context, participantID uuid.UUID, input RatingInput) (*models.Rating, error)

	// ListRatings returns a participant's ratings, optionally for one round.
	ListRatings(ctx context.Context, participantID uuid.UUID, roundNumber *int) ([]*models.Rating, error)
}

type ratingService struct {
	txm      database.TxManager
	repos    Repositories
	audit    AuditService
	settings Settings
	logger   *zap.Logger
}

// NewRatingService creates a new RatingService.
func NewRatingService(txm database.TxManager, repos Repositories, audit AuditService, settings Settings, logger *zap.Logger) RatingService {
	return &ratingService{
		txm:      txm,
		repos:    repos,
		audit:    audit,
		settings: settings,
		logger:   logger.Named("rating-service"),
	}
}

var _ RatingService = (*ratingService)(nil)

func (s *ratingService) SubmitRating(ctx context.Context, participantID uuid.UUID, input RatingInput) (*models.Rating, error) {
	if participantID == uuid.Nil {
		return nil, &apperrors.ValidationError{Field: "participant", Message: "is required"}
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	for _, d := range models.Dimensions {
		if err := validateScore("scores."+string(d), input.Scores.Get(d), s.settings.RatingMin, s.settings.RatingMax); err != nil {
			return nil, err
		}
	}

	var rating *models.Rating
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		participant, err := s.repos.Participants.GetByID(ctx, participantID)
		if err != nil {
			return err
		}
		if input.StudyID != uuid.Nil && input.StudyID != participant.StudyID {
			return apperrors.ErrNotFound
		}

		study, err := s.repos.Studies.GetForShare(ctx, participant.StudyID)
		if err != nil {
			return err
		}

		item, err := s.repos.Items.GetByID(ctx, input.ItemID)
		if err != nil {
			return err
		}
		if item.StudyID != study.ID {
			return &apperrors.ValidationError{Field: "item_id", Message: "item does not belong to the participant's study"}
		}

		if study.Status != models.StudyStatusActive {
			return fmt.Errorf("%w: study is %s", apperrors.ErrRoundNotOpen, study.Status)
		}
		if input.RoundNumber != study.CurrentRound {
			return fmt.Errorf("%w: round %d is not the current round (%d)", apperrors.ErrRoundNotOpen, input.RoundNumber, study.CurrentRound)
		}

		rounds, err := s.repos.Rounds.ListByStudy(ctx, study.ID)
		if err != nil {
			return fmt.Errorf("load rounds: %w", err)
		}
		round := findRound(rounds, input.RoundNumber)
		if round == nil || !round.IsOpen() {
			return fmt.Errorf("%w: round %d", apperrors.ErrRoundNotOpen, input.RoundNumber)
		}

		if !item.Tier.HasScores() && !input.Scores.IsEmpty() {
			return &apperrors.ValidationError{Field: "scores", Message: "comment-only items take no scores"}
		}
		if input.DissentFlag && !study.AllowDissent {
			return &apperrors.ValidationError{Field: "dissent_flag", Message: "dissent is disabled for this study"}
		}

		rating = &models.Rating{
			StudyID:             study.ID,
			ParticipantID:       participant.ID,
			ItemID:              item.ID,
			RoundNumber:         input.RoundNumber,
			Scores:              input.Scores,
			Reasoning:           input.Reasoning,
			ThresholdSuggestion: input.ThresholdSuggestion,
			WeightSuggestion:    input.WeightSuggestion,
			GeneralComments:     input.GeneralComments,
			DissentFlag:         input.DissentFlag,
			DissentReason:       input.DissentReason,
			RevisedFromPrevious: input.RevisedFromPrevious,
			RoleAtSubmission:    participant.Role,
		}
		if err := s.repos.Ratings.Upsert(ctx, rating); err != nil {
			return fmt.Errorf("upsert rating: %w", err)
		}

		actor := models.Actor{Type: models.ActorPanelist, ID: participant.ID}
		if err := s.audit.Record(ctx, study.ID, models.AuditActionResponseSaved, actor, map[string]any{
			"itemId":      item.ID.String(),
			"roundNumber": input.RoundNumber,
			"dissent":     input.DissentFlag,
		}); err != nil {
			s.logger.Warn("Rating saved without audit entry",
				zap.String("participant_id", participantID.String()),
				zap.Error(err))
		}
		return nil
	})
	if err != nil {
		if apperrors.IsDomain(err) {
			s.logger.Debug("Rating rejected",
				zap.String("participant_id", participantID.String()),
				zap.String("item_id", input.ItemID.String()),
				zap.Int("round", input.RoundNumber),
				zap.Error(err))
			return nil, err
		}
		s.logger.Error("Failed to save rating",
			zap.String("participant_id", participantID.String()),
			zap.Error(err))
		return nil, apperrors.NewPersistenceError("submit rating", err)
	}

	return rating, nil
}

func (s *ratingService) ListRatings(ctx context.Context, participantID uuid.UUID, roundNumber *int) ([]*models.Rating, error) {
	if _, err := s.repos.Participants.GetByID(ctx, participantID); err != nil {
		return nil, apperrors.WrapPersistence("get participant", err)
	}
	ratings, err := s.repos.Ratings.ListByParticipant(ctx, participantID, roundNumber)
	if err != nil {
		return nil, apperrors.WrapPersistence("list ratings", err)
	}
	return ratings, nil
}
