package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avolkov/cardbinder/internal/dbx"
	"github.com/avolkov/cardbinder/internal/models"
)

// PendingOperations returns the queued mutations in insertion order.
// Storage failures and corrupt rows degrade to an empty (or shortened) queue.
func (s *Store) PendingOperations(ctx context.Context) []models.PendingOperation {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, payload, queued_at FROM pending_operations ORDER BY seq`)
	if err != nil {
		s.log.Warn(ctx, "pending queue read failed, treating as empty", "error", err)
		return nil
	}
	defer rows.Close()

	var ops []models.PendingOperation
	for rows.Next() {
		var (
			op       models.PendingOperation
			kind     string
			payload  []byte
			queuedAt string
		)
		if err := rows.Scan(&op.ID, &kind, &payload, &queuedAt); err != nil {
			s.log.Warn(ctx, "pending queue row unreadable, skipping", "error", err)
			continue
		}
		if err := json.Unmarshal(payload, &op.Entry); err != nil {
			s.log.Warn(ctx, "pending queue payload corrupt, skipping", "id", op.ID, "error", err)
			continue
		}
		op.Kind = models.OperationKind(kind)
		if ts, err := time.Parse(time.RFC3339Nano, queuedAt); err == nil {
			op.QueuedAt = ts
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn(ctx, "pending queue iteration failed", "error", err)
	}
	return ops
}

// AppendPendingOperation adds an operation to the tail of the queue.
func (s *Store) AppendPendingOperation(ctx context.Context, op models.PendingOperation) error {
	return s.appendPending(ctx, s.db, op)
}

func (s *Store) appendPending(ctx context.Context, q dbx.DBTX, op models.PendingOperation) error {
	payload, err := json.Marshal(op.Entry)
	if err != nil {
		return fmt.Errorf("pending payload marshal error: %w", err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO pending_operations (id, entry_id, kind, payload, queued_at) VALUES (?, ?, ?, ?, ?)`,
		op.ID, op.Entry.ID, string(op.Kind), payload, op.QueuedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("pending enqueue error: %w", err)
	}
	return nil
}

// SetCollectionAndEnqueue applies an optimistic collection snapshot and its
// matching pending operation in one transaction, so a crash cannot leave the
// optimistic state behind without the queued replay that justifies it.
func (s *Store) SetCollectionAndEnqueue(ctx context.Context, profileID string, entries []models.CollectionEntry, op models.PendingOperation) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.setJSON(ctx, tx, keyCollectionPrefix+profileID, entries); err != nil {
			return err
		}
		return s.appendPending(ctx, tx, op)
	})
}

// RemovePendingOperation deletes a single operation after a successful (or
// permanently failed) replay.
func (s *Store) RemovePendingOperation(ctx context.Context, opID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE id = ?`, opID); err != nil {
		return fmt.Errorf("pending remove error: %w", err)
	}
	return nil
}

// RemovePendingOperationsForEntry drops every queued operation that targets
// the given entry id. Used when a locally-created entry is deleted before it
// ever reached the remote store.
func (s *Store) RemovePendingOperationsForEntry(ctx context.Context, entryID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("pending remove-for-entry error: %w", err)
	}
	return nil
}

// RemapPendingEntryID rewrites queued operations that still target oldID so
// they reference newID instead. Called when a replayed create is confirmed:
// follow-up updates and deletes queued under the temporary id must survive a
// restart with the server-assigned id.
func (s *Store) RemapPendingEntryID(ctx context.Context, oldID, newID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, payload FROM pending_operations WHERE entry_id = ?`, oldID)
		if err != nil {
			return fmt.Errorf("pending remap read error: %w", err)
		}
		defer rows.Close()

		type patch struct {
			opID    string
			payload []byte
		}
		var patches []patch
		for rows.Next() {
			var (
				opID    string
				payload []byte
			)
			if err := rows.Scan(&opID, &payload); err != nil {
				return fmt.Errorf("pending remap scan error: %w", err)
			}
			var entry models.CollectionEntry
			if err := json.Unmarshal(payload, &entry); err != nil {
				return fmt.Errorf("pending remap payload error: %w", err)
			}
			entry.ID = newID
			updated, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("pending remap marshal error: %w", err)
			}
			patches = append(patches, patch{opID: opID, payload: updated})
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("pending remap iteration error: %w", err)
		}

		for _, p := range patches {
			if _, err := tx.ExecContext(ctx,
				`UPDATE pending_operations SET entry_id = ?, payload = ? WHERE id = ?`,
				newID, p.payload, p.opID); err != nil {
				return fmt.Errorf("pending remap write error: %w", err)
			}
		}
		return nil
	})
}

// ClearPendingOperations empties the queue wholesale.
func (s *Store) ClearPendingOperations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations`); err != nil {
		return fmt.Errorf("pending clear error: %w", err)
	}
	return nil
}
