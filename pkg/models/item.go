package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemTier tags how an item is rated. The aggregator skips dimension
// statistics for comment-only items with a single lookup.
type ItemTier string

const (
	ItemTierFullyRated  ItemTier = "FULLY_RATED"
	ItemTierCommentOnly ItemTier = "COMMENT_ONLY"
)

// IsValid returns true if the tier is known.
func (t ItemTier) IsValid() bool {
	return t == ItemTierFullyRated || t == ItemTierCommentOnly
}

// HasScores returns true if ratings on this tier carry ordinal scores.
func (t ItemTier) HasScores() bool {
	return t != ItemTierCommentOnly
}

// Item is a rated entity ("indicator"). Immutable once its study is created.
type Item struct {
	ID         uuid.UUID `json:"id"`
	StudyID    uuid.UUID `json:"study_id"`
	ExternalID string    `json:"external_id,omitempty"`
	Name       string    `json:"name"`
	Category   string    `json:"category,omitempty"`
	Domain     string    `json:"domain,omitempty"`
	DomainCode string    `json:"domain_code,omitempty"`
	Definition string    `json:"definition,omitempty"`
	Tier       ItemTier  `json:"tier"`
	CreatedAt  time.Time `json:"created_at"`
}
