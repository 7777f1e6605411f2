// Package cache implements the on-device store: a SQLite-backed key-value
// space holding the profile mirror, per-profile collection snapshots, expiring
// catalog lookups, and the pending-operation queue.
//
// Every read accessor degrades to "no data" instead of returning an error
// when the underlying storage is unavailable or holds corrupt data. Callers
// must treat absence as a legitimate, recoverable state.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/avolkov/cardbinder/internal/cache/migrations"
	"github.com/avolkov/cardbinder/internal/dbx"
	"github.com/avolkov/cardbinder/internal/logging"
	"github.com/avolkov/cardbinder/internal/models"
)

// Default cache lifetimes. Search results go stale faster than immutable
// item facts, so their lifetime is shorter.
const (
	DefaultSearchLifetime = 1 * time.Hour
	DefaultItemLifetime   = 24 * time.Hour
)

const (
	keyProfiles         = "profiles"
	keyCollectionPrefix = "collection:"
	keySearchPrefix     = "search:"
	keyItemPrefix       = "item:"
)

// lookup is the persisted envelope for expiring catalog lookups.
type lookup[T any] struct {
	Data      T         `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Store provides typed accessors over the local SQLite cache.
type Store struct {
	db             *sql.DB
	log            logging.Logger
	searchLifetime time.Duration
	itemLifetime   time.Duration
	now            func() time.Time
}

// New wraps an already-open database. Zero lifetimes fall back to the
// defaults.
func New(db *sql.DB, log logging.Logger, searchLifetime, itemLifetime time.Duration) *Store {
	if searchLifetime <= 0 {
		searchLifetime = DefaultSearchLifetime
	}
	if itemLifetime <= 0 {
		itemLifetime = DefaultItemLifetime
	}
	return &Store{
		db:             db,
		log:            log,
		searchLifetime: searchLifetime,
		itemLifetime:   itemLifetime,
		now:            time.Now,
	}
}

// Open opens (or creates) the cache database at dsn and applies migrations.
func Open(ctx context.Context, dsn string, log logging.Logger, searchLifetime, itemLifetime time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache open error: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cache pragma error: %w", err)
		}
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache migration error: %w", err)
	}

	return New(db, log, searchLifetime, itemLifetime), nil
}

// RunMigrations applies the embedded cache schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NormalizeQuery case-normalizes and collapses whitespace in a search query
// to form a stable cache key.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// getRaw reads a kv value. Any failure is logged and reported as absence.
func (s *Store) getRaw(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.log.Warn(ctx, "cache read failed, treating as absent", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

func (s *Store) setRaw(ctx context.Context, q dbx.DBTX, key string, value []byte) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("cache write error for %q: %w", key, err)
	}
	return nil
}

// getJSON unmarshals the value under key into out. Corrupt data is logged
// and reported as absence.
func (s *Store) getJSON(ctx context.Context, key string, out any) bool {
	raw, ok := s.getRaw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn(ctx, "cache value corrupt, treating as absent", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) setJSON(ctx context.Context, q dbx.DBTX, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache marshal error for %q: %w", key, err)
	}
	return s.setRaw(ctx, q, key, raw)
}

// Profiles returns the cached profile mirror, or absence.
func (s *Store) Profiles(ctx context.Context) ([]models.Profile, bool) {
	var profiles []models.Profile
	if !s.getJSON(ctx, keyProfiles, &profiles) {
		return nil, false
	}
	return profiles, true
}

// SetProfiles replaces the cached profile list wholesale.
func (s *Store) SetProfiles(ctx context.Context, profiles []models.Profile) error {
	return s.setJSON(ctx, s.db, keyProfiles, profiles)
}

// Collection returns the cached collection snapshot for a profile.
func (s *Store) Collection(ctx context.Context, profileID string) ([]models.CollectionEntry, bool) {
	var entries []models.CollectionEntry
	if !s.getJSON(ctx, keyCollectionPrefix+profileID, &entries) {
		return nil, false
	}
	return entries, true
}

// SetCollection replaces a profile's cached collection wholesale.
func (s *Store) SetCollection(ctx context.Context, profileID string, entries []models.CollectionEntry) error {
	return s.setJSON(ctx, s.db, keyCollectionPrefix+profileID, entries)
}

// CachedSearch returns a cached search result set. Entries older than the
// search lifetime are treated as absent.
func (s *Store) CachedSearch(ctx context.Context, query string) ([]models.CatalogItem, bool) {
	var l lookup[[]models.CatalogItem]
	if !s.getJSON(ctx, keySearchPrefix+NormalizeQuery(query), &l) {
		return nil, false
	}
	if s.now().Sub(l.Timestamp) >= s.searchLifetime {
		return nil, false
	}
	return l.Data, true
}

// SetCachedSearch stores a search result set stamped with the current time.
func (s *Store) SetCachedSearch(ctx context.Context, query string, items []models.CatalogItem) error {
	l := lookup[[]models.CatalogItem]{Data: items, Timestamp: s.now()}
	return s.setJSON(ctx, s.db, keySearchPrefix+NormalizeQuery(query), l)
}

// CachedItem returns a cached catalog item. Entries older than the item
// lifetime are treated as absent.
func (s *Store) CachedItem(ctx context.Context, itemID string) (*models.CatalogItem, bool) {
	var l lookup[models.CatalogItem]
	if !s.getJSON(ctx, keyItemPrefix+itemID, &l) {
		return nil, false
	}
	if s.now().Sub(l.Timestamp) >= s.itemLifetime {
		return nil, false
	}
	return &l.Data, true
}

// SetCachedItem stores a catalog item stamped with the current time.
func (s *Store) SetCachedItem(ctx context.Context, item models.CatalogItem) error {
	l := lookup[models.CatalogItem]{Data: item, Timestamp: s.now()}
	return s.setJSON(ctx, s.db, keyItemPrefix+item.ID, l)
}
