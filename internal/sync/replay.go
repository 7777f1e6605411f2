package sync

import (
	"context"
	"fmt"

	"github.com/avolkov/cardbinder/internal/common"
	"github.com/avolkov/cardbinder/internal/models"
	"github.com/avolkov/cardbinder/internal/remote"
)

// ReplayPending replays the queued operations in insertion order. Each
// operation is removed from the queue as soon as it succeeds, so one failing
// operation never blocks the ones that already went through. A retryable
// failure halts the pass (the failing operation and everything after it stay
// queued); a non-retryable failure drops the operation, compensates the
// cache, and continues.
func (e *Engine) ReplayPending(ctx context.Context) error {
	e.replayMu.Lock()
	defer e.replayMu.Unlock()
	return e.replayLocked(ctx)
}

func (e *Engine) replayLocked(ctx context.Context) error {
	ops := e.cache.PendingOperations(ctx)
	if len(ops) == 0 {
		return nil
	}

	e.setStatus(StatusSyncing)

	// Maps temporary local ids to the server ids assigned when their create
	// replays, so later updates/deletes of the same entry target the right
	// row.
	serverIDs := make(map[string]string)
	dropped := false

	for _, op := range ops {
		err := e.replayOne(ctx, op, serverIDs)
		if err == nil {
			if rmErr := e.cache.RemovePendingOperation(ctx, op.ID); rmErr != nil {
				e.log.Warn(ctx, "failed to remove replayed operation", "op", op.ID, "error", rmErr)
			}
			continue
		}

		if remote.Retryable(err) {
			if op.Kind == models.OpDelete {
				// The delete did not happen remotely; put the entry back so
				// the cache does not claim otherwise.
				e.restoreEntry(ctx, op.Entry)
			}
			e.setStatus(StatusOffline)
			return fmt.Errorf("replay halted at %s of %s: %w", op.Kind, op.Entry.ID, err)
		}

		e.log.Error(ctx, "dropping pending operation that can never succeed",
			"op", op.ID, "kind", op.Kind, "entry", op.Entry.ID, "error", err)
		e.compensate(ctx, op)
		if rmErr := e.cache.RemovePendingOperation(ctx, op.ID); rmErr != nil {
			e.log.Warn(ctx, "failed to remove dropped operation", "op", op.ID, "error", rmErr)
		}
		dropped = true
	}

	if dropped {
		e.setStatus(StatusError)
	} else {
		e.setStatus(StatusIdle)
	}
	return nil
}

func (e *Engine) replayOne(ctx context.Context, op models.PendingOperation, serverIDs map[string]string) error {
	switch op.Kind {
	case models.OpCreate:
		request := op.Entry
		tempID := request.ID
		// The operation id doubles as an idempotency key: a create that
		// already applied on a previous pass returns the existing row.
		request.ID = op.ID
		created, err := e.remote.CreateEntry(ctx, request)
		if err != nil {
			return err
		}
		serverIDs[tempID] = created.ID
		e.reconcileEntry(ctx, op.Entry.ProfileID, tempID, *created)
		// Later queued operations on this entry must outlive a restart, so the
		// remap is persisted, not just held in serverIDs.
		if err := e.cache.RemapPendingEntryID(ctx, tempID, created.ID); err != nil {
			e.log.Warn(ctx, "failed to remap queued operations", "entry", tempID, "error", err)
		}
		return nil

	case models.OpUpdate:
		request := op.Entry
		localID := request.ID
		if isTempID(localID) {
			mapped, ok := serverIDs[localID]
			if !ok {
				return fmt.Errorf("no server id for %s: %w", localID, common.ErrInvalidOperation)
			}
			request.ID = mapped
		}
		canonical, err := e.remote.UpdateEntry(ctx, request)
		if err != nil {
			return err
		}
		// The cached row already carries the server id when an earlier create
		// in this pass reconciled it, so look it up by the id that was sent.
		e.reconcileEntry(ctx, op.Entry.ProfileID, request.ID, *canonical)
		return nil

	case models.OpDelete:
		id := op.Entry.ID
		if isTempID(id) {
			mapped, ok := serverIDs[id]
			if !ok {
				// The create this delete was chasing never reached the
				// server; there is nothing to delete remotely.
				return nil
			}
			id = mapped
		}
		return e.remote.DeleteEntry(ctx, id)

	default:
		return fmt.Errorf("unknown operation kind %q: %w", op.Kind, common.ErrInvalidOperation)
	}
}

// reconcileEntry replaces a cached row (looked up by its pre-replay id) with
// the server's canonical version.
func (e *Engine) reconcileEntry(ctx context.Context, profileID, oldID string, canonical models.CollectionEntry) {
	col, ok := e.cache.Collection(ctx, profileID)
	if !ok {
		return
	}
	if err := e.cache.SetCollection(ctx, profileID, replaceEntry(col, oldID, canonical)); err != nil {
		e.log.Warn(ctx, "failed to reconcile replayed entry", "entry", canonical.ID, "error", err)
	}
}

// restoreEntry puts a removed entry back into its profile's cached
// collection.
func (e *Engine) restoreEntry(ctx context.Context, entry models.CollectionEntry) {
	col, _ := e.cache.Collection(ctx, entry.ProfileID)
	if indexOfEntry(col, entry.ID) >= 0 {
		return
	}
	if err := e.cache.SetCollection(ctx, entry.ProfileID, prependEntry(col, entry)); err != nil {
		e.log.Warn(ctx, "failed to restore entry after failed delete replay", "entry", entry.ID, "error", err)
	}
}

// compensate unwinds the optimistic cache state of an operation that will
// never succeed remotely. Creates lose their temporary row; updates and
// deletes are left to the next successful pull, which overwrites the cache
// with the server's canonical state.
func (e *Engine) compensate(ctx context.Context, op models.PendingOperation) {
	if op.Kind != models.OpCreate {
		return
	}
	col, ok := e.cache.Collection(ctx, op.Entry.ProfileID)
	if !ok {
		return
	}
	if err := e.cache.SetCollection(ctx, op.Entry.ProfileID, removeEntry(col, op.Entry.ID)); err != nil {
		e.log.Warn(ctx, "failed to remove dropped create from cache", "entry", op.Entry.ID, "error", err)
	}
}

// FullSync drains local writes toward the server, then pulls fresh profiles
// and the target profile's collection. The pull is skipped entirely when the
// replay pass could not drain the queue, so stale server data can never
// overwrite unsynced local state.
func (e *Engine) FullSync(ctx context.Context, profileID string) error {
	e.replayMu.Lock()
	defer e.replayMu.Unlock()

	if err := e.replayLocked(ctx); err != nil {
		return err
	}

	e.setStatus(StatusSyncing)
	if _, err := e.SyncProfiles(ctx); err != nil {
		e.setStatus(StatusError)
		return err
	}
	if _, err := e.SyncCollection(ctx, profileID); err != nil {
		e.setStatus(StatusError)
		return err
	}
	e.setStatus(StatusIdle)
	return nil
}
