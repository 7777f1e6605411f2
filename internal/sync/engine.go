// Package sync implements the engine that orchestrates reads and writes
// across the local cache and the remote store. It is the only mutation API
// the rest of the system is allowed to call.
//
// Every collection-entry mutation follows the same lifecycle: the local cache
// is updated optimistically before any network attempt, then the matching
// remote call either confirms the write (the cache is reconciled to the
// server's canonical row) or fails. Retryable failures are queued for replay;
// non-retryable ones roll the optimistic write back and surface to the
// caller.
package sync

import (
	"context"
	"fmt"
	"strings"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/cardbinder/internal/cache"
	"github.com/avolkov/cardbinder/internal/common"
	"github.com/avolkov/cardbinder/internal/logging"
	"github.com/avolkov/cardbinder/internal/models"
	"github.com/avolkov/cardbinder/internal/remote"
)

const (
	// tempIDPrefix marks locally-generated ids assigned to entries created
	// before the server could confirm them.
	tempIDPrefix = "local-"

	defaultProbeTimeout = 2 * time.Second
)

// Engine coordinates the local cache and the remote store.
type Engine struct {
	remote remote.Store
	cache  *cache.Store
	log    logging.Logger

	probeTimeout time.Duration
	now          func() time.Time
	newID        func() string

	mu           stdsync.Mutex
	status       Status
	listeners    map[int]func(Status)
	nextListener int

	locksMu    stdsync.Mutex
	entryLocks map[string]*stdsync.Mutex

	// replayMu admits one replay / full-sync pass at a time.
	replayMu stdsync.Mutex
}

// New builds an engine. Each engine owns its own status value and listener
// set; independent instances do not share state.
func New(store remote.Store, localCache *cache.Store, log logging.Logger) *Engine {
	return &Engine{
		remote:       store,
		cache:        localCache,
		log:          log,
		probeTimeout: defaultProbeTimeout,
		now:          time.Now,
		newID:        uuid.NewString,
		status:       StatusIdle,
		listeners:    make(map[int]func(Status)),
		entryLocks:   make(map[string]*stdsync.Mutex),
	}
}

// SetProbeTimeout overrides the reachability probe timeout. Call before the
// engine starts serving requests.
func (e *Engine) SetProbeTimeout(d time.Duration) {
	if d > 0 {
		e.probeTimeout = d
	}
}

func (e *Engine) tempID() string {
	return tempIDPrefix + e.newID()
}

func isTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// online probes the remote store with a short timeout.
func (e *Engine) online(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()
	return e.remote.Ping(probeCtx) == nil
}

func (e *Engine) pendingOp(kind models.OperationKind, entry models.CollectionEntry) models.PendingOperation {
	return models.PendingOperation{
		ID:       e.newID(),
		Kind:     kind,
		Entry:    entry,
		QueuedAt: e.now(),
	}
}

// CreateEntry adds a card to a profile's collection. The entry appears in the
// local cache immediately; when the remote store is reachable the temporary
// id is replaced by the server-assigned one before returning.
func (e *Engine) CreateEntry(ctx context.Context, profileID, catalogItemID string, quantity int, condition models.Condition, notes *string) (*models.CollectionEntry, error) {
	now := e.now()
	entry := models.CollectionEntry{
		ID:            e.tempID(),
		ProfileID:     profileID,
		CatalogItemID: catalogItemID,
		Quantity:      quantity,
		Condition:     condition,
		AddedAt:       now,
		UpdatedAt:     now,
		Notes:         notes,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	unlock := e.lockEntry(entry.ID)
	defer unlock()

	previous, _ := e.cache.Collection(ctx, profileID)
	optimistic := prependEntry(previous, entry)

	if !e.online(ctx) {
		op := e.pendingOp(models.OpCreate, entry)
		if err := e.cache.SetCollectionAndEnqueue(ctx, profileID, optimistic, op); err != nil {
			return nil, err
		}
		return &entry, nil
	}

	if err := e.cache.SetCollection(ctx, profileID, optimistic); err != nil {
		return nil, err
	}

	request := entry
	request.ID = "" // the server assigns the canonical id
	created, err := e.remote.CreateEntry(ctx, request)
	if err == nil {
		reconciled := replaceEntry(optimistic, entry.ID, *created)
		if err := e.cache.SetCollection(ctx, profileID, reconciled); err != nil {
			e.log.Warn(ctx, "failed to reconcile created entry", "entry", created.ID, "error", err)
		}
		return created, nil
	}

	if !remote.Retryable(err) {
		if rbErr := e.cache.SetCollection(ctx, profileID, previous); rbErr != nil {
			e.log.Warn(ctx, "failed to roll back optimistic create", "entry", entry.ID, "error", rbErr)
		}
		return nil, err
	}

	e.log.Warn(ctx, "create not confirmed, queueing for replay", "entry", entry.ID, "error", err)
	if qErr := e.cache.AppendPendingOperation(ctx, e.pendingOp(models.OpCreate, entry)); qErr != nil {
		return nil, qErr
	}
	return &entry, nil
}

// UpdateEntry edits quantity, condition, and notes of an existing entry.
// Returns common.ErrNotFound when the entry is not present locally.
func (e *Engine) UpdateEntry(ctx context.Context, profileID, entryID string, quantity int, condition models.Condition, notes *string) (*models.CollectionEntry, error) {
	unlock := e.lockEntry(entryID)
	defer unlock()

	previous, _ := e.cache.Collection(ctx, profileID)
	idx := indexOfEntry(previous, entryID)
	if idx < 0 {
		return nil, common.ErrNotFound
	}

	updated := previous[idx]
	updated.Quantity = quantity
	updated.Condition = condition
	updated.Notes = notes
	updated.UpdatedAt = e.now()
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	optimistic := replaceEntry(previous, entryID, updated)

	// An entry the server has never seen cannot be updated remotely; the
	// queued update replays after its create, with the temporary id remapped.
	if isTempID(entryID) || !e.online(ctx) {
		op := e.pendingOp(models.OpUpdate, updated)
		if err := e.cache.SetCollectionAndEnqueue(ctx, profileID, optimistic, op); err != nil {
			return nil, err
		}
		return &updated, nil
	}

	if err := e.cache.SetCollection(ctx, profileID, optimistic); err != nil {
		return nil, err
	}

	canonical, err := e.remote.UpdateEntry(ctx, updated)
	if err == nil {
		reconciled := replaceEntry(optimistic, entryID, *canonical)
		if err := e.cache.SetCollection(ctx, profileID, reconciled); err != nil {
			e.log.Warn(ctx, "failed to reconcile updated entry", "entry", canonical.ID, "error", err)
		}
		return canonical, nil
	}

	if !remote.Retryable(err) {
		if rbErr := e.cache.SetCollection(ctx, profileID, previous); rbErr != nil {
			e.log.Warn(ctx, "failed to roll back optimistic update", "entry", entryID, "error", rbErr)
		}
		return nil, err
	}

	e.log.Warn(ctx, "update not confirmed, queueing for replay", "entry", entryID, "error", err)
	if qErr := e.cache.AppendPendingOperation(ctx, e.pendingOp(models.OpUpdate, updated)); qErr != nil {
		return nil, qErr
	}
	return &updated, nil
}

// DeleteEntry removes an entry from a profile's collection. The entry
// disappears from the local cache immediately; if the remote delete cannot be
// confirmed the operation is queued. Returns common.ErrNotFound when the
// entry is not present locally.
func (e *Engine) DeleteEntry(ctx context.Context, profileID, entryID string) error {
	unlock := e.lockEntry(entryID)
	defer unlock()

	previous, _ := e.cache.Collection(ctx, profileID)
	idx := indexOfEntry(previous, entryID)
	if idx < 0 {
		return common.ErrNotFound
	}
	removed := previous[idx]
	remaining := removeEntry(previous, entryID)

	// Deleting an entry the server has never seen just cancels its queued
	// operations; replaying a delete for an id the server does not know
	// would be pointless.
	if isTempID(entryID) {
		if err := e.cache.SetCollection(ctx, profileID, remaining); err != nil {
			return err
		}
		if err := e.cache.RemovePendingOperationsForEntry(ctx, entryID); err != nil {
			e.log.Warn(ctx, "failed to cancel pending ops for deleted entry", "entry", entryID, "error", err)
		}
		return nil
	}

	if !e.online(ctx) {
		op := e.pendingOp(models.OpDelete, removed)
		return e.cache.SetCollectionAndEnqueue(ctx, profileID, remaining, op)
	}

	if err := e.cache.SetCollection(ctx, profileID, remaining); err != nil {
		return err
	}

	err := e.remote.DeleteEntry(ctx, entryID)
	if err == nil {
		return nil
	}

	if !remote.Retryable(err) {
		if rbErr := e.cache.SetCollection(ctx, profileID, previous); rbErr != nil {
			e.log.Warn(ctx, "failed to restore entry after rejected delete", "entry", entryID, "error", rbErr)
		}
		return err
	}

	e.log.Warn(ctx, "delete not confirmed, queueing for replay", "entry", entryID, "error", err)
	return e.cache.AppendPendingOperation(ctx, e.pendingOp(models.OpDelete, removed))
}

// SyncProfiles refreshes the profile mirror from the server when reachable,
// falling back to the cached list otherwise. With no network and no cache it
// returns common.ErrNoLocalData.
func (e *Engine) SyncProfiles(ctx context.Context) ([]models.Profile, error) {
	if e.online(ctx) {
		profiles, err := e.remote.ListProfiles(ctx)
		if err == nil {
			if cErr := e.cache.SetProfiles(ctx, profiles); cErr != nil {
				e.log.Warn(ctx, "failed to cache profiles", "error", cErr)
			}
			return profiles, nil
		}
		e.log.Warn(ctx, "profile fetch failed, falling back to cache", "error", err)
	}

	if cached, ok := e.cache.Profiles(ctx); ok {
		return cached, nil
	}
	return nil, common.ErrNoLocalData
}

// SyncCollection refreshes a profile's collection from the server when
// reachable, replacing the cached snapshot wholesale; otherwise it falls back
// to the cache, and raises common.ErrNoLocalData when neither is available.
func (e *Engine) SyncCollection(ctx context.Context, profileID string) ([]models.CollectionEntry, error) {
	if e.online(ctx) {
		entries, err := e.remote.ListEntries(ctx, profileID)
		if err == nil {
			if cErr := e.cache.SetCollection(ctx, profileID, entries); cErr != nil {
				e.log.Warn(ctx, "failed to cache collection", "profile", profileID, "error", cErr)
			}
			return entries, nil
		}
		e.log.Warn(ctx, "collection fetch failed, falling back to cache", "profile", profileID, "error", err)
	}

	if cached, ok := e.cache.Collection(ctx, profileID); ok {
		return cached, nil
	}
	return nil, common.ErrNoLocalData
}

// CreateProfile creates a profile on the remote store. Profiles are
// remote-owned and have no pending queue, so this requires connectivity.
func (e *Engine) CreateProfile(ctx context.Context, name string, avatar *string) (*models.Profile, error) {
	if name == "" {
		return nil, fmt.Errorf("profile name must not be empty")
	}
	if !e.online(ctx) {
		return nil, common.ErrOffline
	}

	profile, err := e.remote.CreateProfile(ctx, name, avatar)
	if err != nil {
		return nil, err
	}

	cached, _ := e.cache.Profiles(ctx)
	if cErr := e.cache.SetProfiles(ctx, append(cached, *profile)); cErr != nil {
		e.log.Warn(ctx, "failed to cache created profile", "profile", profile.ID, "error", cErr)
	}
	return profile, nil
}

func prependEntry(entries []models.CollectionEntry, entry models.CollectionEntry) []models.CollectionEntry {
	out := make([]models.CollectionEntry, 0, len(entries)+1)
	out = append(out, entry)
	return append(out, entries...)
}

func indexOfEntry(entries []models.CollectionEntry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

func replaceEntry(entries []models.CollectionEntry, id string, replacement models.CollectionEntry) []models.CollectionEntry {
	out := make([]models.CollectionEntry, len(entries))
	copy(out, entries)
	if i := indexOfEntry(out, id); i >= 0 {
		out[i] = replacement
	}
	return out
}

func removeEntry(entries []models.CollectionEntry, id string) []models.CollectionEntry {
	out := make([]models.CollectionEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
