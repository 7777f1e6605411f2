package models

import (
	"time"

	"github.com/avolkov/cardbinder/internal/common"
)

// CollectionEntry is one profile's ownership record for a catalog card.
// A profile may hold several entries for the same card; each row represents
// distinct physical copies. ProfileID and CatalogItemID are immutable after
// creation; quantity, condition, and notes may be edited.
type CollectionEntry struct {
	ID            string    `json:"id"`
	ProfileID     string    `json:"profileId"`
	CatalogItemID string    `json:"catalogItemId"`
	Quantity      int       `json:"quantity"`
	Condition     Condition `json:"condition"`
	AddedAt       time.Time `json:"addedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Notes         *string   `json:"notes,omitempty"`
}

// Validate checks the invariants enforced before any write, local or remote.
func (e *CollectionEntry) Validate() error {
	if e.Quantity <= 0 {
		return common.ErrInvalidQuantity
	}
	if !e.Condition.Valid() {
		return common.ErrInvalidCondition
	}
	return nil
}
