// Package remote implements the client for the hosted relational store that
// owns profiles and collection entries. It is a thin CRUD layer: no caching,
// no retries. Errors are classified retryable/non-retryable for the sync
// engine via Retryable.
package remote

import (
	"context"

	"github.com/avolkov/cardbinder/internal/models"
)

// Store is the remote-store surface consumed by the sync engine.
type Store interface {
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	ListProfiles(ctx context.Context) ([]models.Profile, error)
	CreateProfile(ctx context.Context, name string, avatar *string) (*models.Profile, error)

	ListEntries(ctx context.Context, profileID string) ([]models.CollectionEntry, error)

	// CreateEntry inserts a new collection entry and returns the canonical
	// server row. If e.ID is a plain UUID (queue replay), the insert reuses
	// it as an idempotency key: replaying an already-applied create returns
	// the existing row instead of duplicating it. An empty e.ID lets the
	// server assign one.
	CreateEntry(ctx context.Context, e models.CollectionEntry) (*models.CollectionEntry, error)

	// UpdateEntry rewrites quantity, condition, and notes for e.ID and
	// returns the canonical row. Ownership and catalog reference are
	// immutable and never sent.
	UpdateEntry(ctx context.Context, e models.CollectionEntry) (*models.CollectionEntry, error)

	// DeleteEntry removes an entry. Deleting an id the store no longer has
	// succeeds, so delete replays are idempotent.
	DeleteEntry(ctx context.Context, entryID string) error
}
