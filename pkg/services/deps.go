package services

import (
	"github.com/boreallogic/delphi-app/pkg/config"
	"github.com/boreallogic/delphi-app/pkg/consensus"
	"github.com/boreallogic/delphi-app/pkg/repositories"
)

// Repositories bundles the data access layer shared by the services.
type Repositories struct {
	Studies      repositories.StudyRepository
	Rounds       repositories.RoundRepository
	Items        repositories.ItemRepository
	Participants repositories.ParticipantRepository
	Ratings      repositories.RatingRepository
	Summaries    repositories.RoundSummaryRepository
	Audit        repositories.AuditRepository
}

// NewRepositories wires the PostgreSQL repositories.
func NewRepositories() Repositories {
	return Repositories{
		Studies:      repositories.NewStudyRepository(),
		Rounds:       repositories.NewRoundRepository(),
		Items:        repositories.NewItemRepository(),
		Participants: repositories.NewParticipantRepository(),
		Ratings:      repositories.NewRatingRepository(),
		Summaries:    repositories.NewRoundSummaryRepository(),
		Audit:        repositories.NewAuditRepository(),
	}
}

// Settings are the study defaults and scoring rules the services enforce.
type Settings struct {
	RatingMin                 int
	RatingMax                 int
	DefaultTotalRounds        int
	DefaultConsensusThreshold float64
	RoleSource                consensus.RoleSource
}

// DefaultSettings matches the defaults of config.DelphiConfig.
func DefaultSettings() Settings {
	return Settings{
		RatingMin:                 1,
		RatingMax:                 3,
		DefaultTotalRounds:        3,
		DefaultConsensusThreshold: 1.0,
		RoleSource:                consensus.RoleSourceSnapshot,
	}
}

// SettingsFromConfig converts the delphi config section.
func SettingsFromConfig(cfg config.DelphiConfig) Settings {
	return Settings{
		RatingMin:                 cfg.RatingMin,
		RatingMax:                 cfg.RatingMax,
		DefaultTotalRounds:        cfg.DefaultTotalRounds,
		DefaultConsensusThreshold: cfg.DefaultConsensusThreshold,
		RoleSource:                consensus.RoleSource(cfg.RoleSource),
	}
}
