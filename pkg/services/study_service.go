package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/logging"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// CreateStudyInput defines a new study with its fixed item set and initial panel.
type CreateStudyInput struct {
	Name               string             `json:"name" yaml:"name" validate:"required,min=1,max=200"`
	Description        string             `json:"description" yaml:"description" validate:"max=5000"`
	TotalRounds        int                `json:"total_rounds" yaml:"total_rounds" validate:"gte=1,lte=10"`
	ConsensusThreshold *float64           `json:"consensus_threshold" yaml:"consensus_threshold" validate:"omitempty,gte=0,lte=5"`
	AllowDissent       *bool              `json:"allow_dissent" yaml:"allow_dissent"`
	Items              []ItemInput        `json:"items" yaml:"items" validate:"unique=ExternalID,dive"`
	Participants       []ParticipantInput `json:"participants" yaml:"participants" validate:"unique=Email,dive"`
}

// ItemInput defines one item of a new study.
type ItemInput struct {
	ExternalID string          `json:"external_id" yaml:"external_id" validate:"required,max=64"`
	Name       string          `json:"name" yaml:"name" validate:"required"`
	Category   string          `json:"category" yaml:"category"`
	Domain     string          `json:"domain" yaml:"domain"`
	DomainCode string          `json:"domain_code" yaml:"domain_code" validate:"max=32"`
	Definition string          `json:"definition" yaml:"definition"`
	Tier       models.ItemTier `json:"tier" yaml:"tier" validate:"omitempty,oneof=FULLY_RATED COMMENT_ONLY"`
}

// ParticipantInput enrolls one panelist.
type ParticipantInput struct {
	Email string      `json:"email" yaml:"email" validate:"required,email,max=320"`
	Name  string      `json:"name" yaml:"name"`
	Role  models.Role `json:"role" yaml:"role" validate:"required,oneof=EXPERT_GBV LIVED_EXPERIENCE SERVICE_PROVIDER POLICY_MAKER COMMUNITY_MEMBER MEDICAL_PROFESSIONAL"`
}

// StudyService manages study setup, enrollment and read access.
type StudyService interface {
	// CreateStudy creates the study in SETUP with every round PENDING.
	CreateStudy(ctx context.Context, input CreateStudyInput, actor models.Actor) (*models.StudyState, error)

	GetStudy(ctx context.Context, id uuid.UUID) (*models.Study, error)

	// GetState returns the study together with its rounds.
	GetState(ctx context.Context, id uuid.UUID) (*models.StudyState, error)

	ListStudies(ctx context.Context, limit int) ([]*models.Study, error)
	ListItems(ctx context.Context, studyID uuid.UUID) ([]*models.Item, error)
	ListParticipants(ctx context.Context, studyID uuid.UUID) ([]*models.Participant, error)

	AddParticipant(ctx context.Context, studyID uuid.UUID, input ParticipantInput, actor models.Actor) (*models.Participant, error)

	// UpdateParticipantRole changes a panelist's role. Ratings already written
	// keep the role they were submitted under.
	UpdateParticipantRole(ctx context.Context, studyID, participantID uuid.UUID, role models.Role, actor models.Actor) (*models.Participant, error)

	// GetRoundSummaries returns the stored summaries of one round, ordered by item.
	GetRoundSummaries(ctx context.Context, studyID uuid.UUID, roundNumber int) ([]*models.RoundSummary, error)

	GetAuditLog(ctx context.Context, studyID uuid.UUID, limit int) ([]*models.AuditLogEntry, error)
}

type studyService struct {
	txm      database.TxManager
	repos    Repositories
	audit    AuditService
	settings Settings
	logger   *zap.Logger
}

// NewStudyService creates a new StudyService.
func NewStudyService(txm database.TxManager, repos Repositories, audit AuditService, settings Settings, logger *zap.Logger) StudyService {
	return &studyService{
		txm:      txm,
		repos:    repos,
		audit:    audit,
		settings: settings,
		logger:   logger.Named("study-service"),
	}
}

var _ StudyService = (*studyService)(nil)

func (s *studyService) CreateStudy(ctx context.Context, input CreateStudyInput, actor models.Actor) (*models.StudyState, error) {
	if err := actor.Validate(); err != nil {
		return nil, &apperrors.ValidationError{Field: "actor", Message: err.Error()}
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.TotalRounds == 0 {
		input.TotalRounds = s.settings.DefaultTotalRounds
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	threshold := s.settings.DefaultConsensusThreshold
	if input.ConsensusThreshold != nil {
		threshold = *input.ConsensusThreshold
	}
	allowDissent := true
	if input.AllowDissent != nil {
		allowDissent = *input.AllowDissent
	}

	study := &models.Study{
		Name:               input.Name,
		Description:        input.Description,
		Status:             models.StudyStatusSetup,
		CurrentRound:       0,
		TotalRounds:        input.TotalRounds,
		ConsensusThreshold: threshold,
		AllowDissent:       allowDissent,
	}

	state := &models.StudyState{Study: study}

	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Studies.Create(ctx, study); err != nil {
			return err
		}

		rounds := make([]*models.Round, 0, study.TotalRounds)
		for n := 1; n <= study.TotalRounds; n++ {
			rounds = append(rounds, &models.Round{
				StudyID:     study.ID,
				RoundNumber: n,
				Status:      models.RoundStatusPending,
			})
		}
		if err := s.repos.Rounds.CreateBatch(ctx, rounds); err != nil {
			return err
		}
		state.Rounds = rounds

		items := make([]*models.Item, 0, len(input.Items))
		for _, in := range input.Items {
			tier := in.Tier
			if tier == "" {
				tier = models.ItemTierFullyRated
			}
			items = append(items, &models.Item{
				StudyID:    study.ID,
				ExternalID: in.ExternalID,
				Name:       in.Name,
				Category:   in.Category,
				Domain:     in.Domain,
				DomainCode: in.DomainCode,
				Definition: in.Definition,
				Tier:       tier,
			})
		}
		if err := s.repos.Items.CreateBatch(ctx, items); err != nil {
			return err
		}

		for _, in := range input.Participants {
			p := &models.Participant{
				StudyID: study.ID,
				Email:   strings.ToLower(strings.TrimSpace(in.Email)),
				Name:    in.Name,
				Role:    in.Role,
			}
			if err := s.repos.Participants.Create(ctx, p); err != nil {
				return err
			}
		}

		if err := s.audit.Record(ctx, study.ID, models.AuditActionStudyCreated, actor, map[string]any{
			"name":         study.Name,
			"totalRounds":  study.TotalRounds,
			"items":        len(items),
			"participants": len(input.Participants),
		}); err != nil {
			s.logger.Warn("Study created without audit entry",
				zap.String("study_id", study.ID.String()),
				zap.Error(err))
		}

		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create study",
			zap.String("name", study.Name),
			logging.Error(err))
		return nil, apperrors.WrapPersistence("create study", err)
	}

	s.logger.Info("Study created",
		zap.String("study_id", study.ID.String()),
		zap.Int("total_rounds", study.TotalRounds),
		zap.Int("items", len(input.Items)),
		zap.Int("participants", len(input.Participants)))

	return state, nil
}

func (s *studyService) GetStudy(ctx context.Context, id uuid.UUID) (*models.Study, error) {
	study, err := s.repos.Studies.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.WrapPersistence("get study", err)
	}
	return study, nil
}

func (s *studyService) GetState(ctx context.Context, id uuid.UUID) (*models.StudyState, error) {
	study, err := s.repos.Studies.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.WrapPersistence("get study", err)
	}

	rounds, err := s.repos.Rounds.ListByStudy(ctx, id)
	if err != nil {
		return nil, apperrors.WrapPersistence("list rounds", err)
	}

	return &models.StudyState{Study: study, Rounds: rounds}, nil
}

func (s *studyService) ListStudies(ctx context.Context, limit int) ([]*models.Study, error) {
	studies, err := s.repos.Studies.List(ctx, limit)
	if err != nil {
		return nil, apperrors.WrapPersistence("list studies", err)
	}
	return studies, nil
}

func (s *studyService) ListItems(ctx context.Context, studyID uuid.UUID) ([]*models.Item, error) {
	if _, err := s.GetStudy(ctx, studyID); err != nil {
		return nil, err
	}
	items, err := s.repos.Items.ListByStudy(ctx, studyID)
	if err != nil {
		return nil, apperrors.WrapPersistence("list items", err)
	}
	return items, nil
}

func (s *studyService) ListParticipants(ctx context.Context, studyID uuid.UUID) ([]*models.Participant, error) {
	if _, err := s.GetStudy(ctx, studyID); err != nil {
		return nil, err
	}
	participants, err := s.repos.Participants.ListByStudy(ctx, studyID)
	if err != nil {
		return nil, apperrors.WrapPersistence("list participants", err)
	}
	return participants, nil
}

func (s *studyService) AddParticipant(ctx context.Context, studyID uuid.UUID, input ParticipantInput, actor models.Actor) (*models.Participant, error) {
	if err := actor.Validate(); err != nil {
		return nil, &apperrors.ValidationError{Field: "actor", Message: err.Error()}
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	p := &models.Participant{
		StudyID: studyID,
		Email:   strings.ToLower(strings.TrimSpace(input.Email)),
		Name:    input.Name,
		Role:    input.Role,
	}

	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		study, err := s.repos.Studies.GetForShare(ctx, studyID)
		if err != nil {
			return err
		}
		if study.Status == models.StudyStatusComplete {
			return &apperrors.ValidationError{Field: "study", Message: "study is complete"}
		}

		if err := s.repos.Participants.Create(ctx, p); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, studyID, models.AuditActionParticipantAdded, actor, map[string]any{
			"participantId": p.ID.String(),
			"role":          string(p.Role),
		}); err != nil {
			s.logger.Warn("Participant added without audit entry", zap.Error(err))
		}
		return nil
	})
	if err != nil {
		s.logger.Info("Participant not added",
			zap.String("study_id", studyID.String()),
			logging.Email("email", p.Email),
			logging.Error(err))
		return nil, apperrors.WrapPersistence("add participant", err)
	}

	s.logger.Info("Participant added",
		zap.String("study_id", studyID.String()),
		zap.String("participant_id", p.ID.String()),
		logging.Email("email", p.Email),
		zap.String("role", string(p.Role)))

	return p, nil
}

func (s *studyService) UpdateParticipantRole(ctx context.Context, studyID, participantID uuid.UUID, role models.Role, actor models.Actor) (*models.Participant, error) {
	if err := actor.Validate(); err != nil {
		return nil, &apperrors.ValidationError{Field: "actor", Message: err.Error()}
	}
	if !models.IsValidRole(role) {
		return nil, &apperrors.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}

	var updated *models.Participant
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repos.Participants.GetByID(ctx, participantID)
		if err != nil {
			return err
		}
		if p.StudyID != studyID {
			return apperrors.ErrNotFound
		}

		previous := p.Role
		if previous == role {
			updated = p
			return nil
		}

		if err := s.repos.Participants.UpdateRole(ctx, participantID, role); err != nil {
			return err
		}
		p.Role = role
		updated = p

		if err := s.audit.Record(ctx, studyID, models.AuditActionParticipantRoleSet, actor, map[string]any{
			"participantId": participantID.String(),
			"fromRole":      string(previous),
			"toRole":        string(role),
		}); err != nil {
			s.logger.Warn("Role changed without audit entry", zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.WrapPersistence("update participant role", err)
	}

	return updated, nil
}

func (s *studyService) GetRoundSummaries(ctx context.Context, studyID uuid.UUID, roundNumber int) ([]*models.RoundSummary, error) {
	study, err := s.GetStudy(ctx, studyID)
	if err != nil {
		return nil, err
	}
	if roundNumber < 1 || roundNumber > study.TotalRounds {
		return nil, &apperrors.ValidationError{
			Field:   "round",
			Message: fmt.Sprintf("must be between 1 and %d", study.TotalRounds),
		}
	}

	summaries, err := s.repos.Summaries.ListByRound(ctx, studyID, roundNumber)
	if err != nil {
		return nil, apperrors.WrapPersistence("list round summaries", err)
	}
	return summaries, nil
}

func (s *studyService) GetAuditLog(ctx context.Context, studyID uuid.UUID, limit int) ([]*models.AuditLogEntry, error) {
	if _, err := s.GetStudy(ctx, studyID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByStudy(ctx, studyID, limit)
	if err != nil {
		return nil, apperrors.WrapPersistence("list audit log", err)
	}
	return entries, nil
}
