package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/avolkov/cardbinder/internal/common"
	"github.com/avolkov/cardbinder/internal/models"
	"github.com/avolkov/cardbinder/internal/remote/migrations"
)

const entryColumns = `id, profile_id, catalog_item_id, quantity, condition, added_at, updated_at, notes`

// PostgresStore implements Store over a pgx stdlib connection.
type PostgresStore struct {
	db *sql.DB

	migrateMu sync.Mutex
	migrated  bool
}

// New wraps an already-open database handle. Used by tests; migrations are
// assumed to be applied.
func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, migrated: true}
}

// NewPostgresStore opens the remote database and attempts to apply
// migrations. An unreachable database is not fatal: the store is returned
// alongside the error, and migrations are retried on the first successful
// reachability probe. The caller only has to abort when the store is nil.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.ensureMigrated(ctx); err != nil {
		return s, fmt.Errorf("migration deferred: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) ensureMigrated(ctx context.Context) error {
	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()
	if s.migrated {
		return nil
	}
	if err := RunMigrations(ctx, s.db); err != nil {
		return err
	}
	s.migrated = true
	return nil
}

// RunMigrations applies the embedded Postgres schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping reports reachability of the remote store. The first probe that gets
// through also applies any schema migrations deferred at startup.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	return s.ensureMigrated(ctx)
}

// ListProfiles returns all profiles, oldest first.
func (s *PostgresStore) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, avatar FROM profiles ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to select profiles: %w", err)
	}
	defer rows.Close()

	var result []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.Avatar); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateProfile inserts a profile and returns the server row.
func (s *PostgresStore) CreateProfile(ctx context.Context, name string, avatar *string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO profiles (name, avatar) VALUES ($1, $2)
		 RETURNING id, name, created_at, avatar`,
		name, avatar).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.Avatar)
	if err != nil {
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}
	return &p, nil
}

// ListEntries returns a profile's collection, most recently added first.
func (s *PostgresStore) ListEntries(ctx context.Context, profileID string) ([]models.CollectionEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM collection_entries WHERE profile_id = $1 ORDER BY added_at DESC`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []models.CollectionEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateEntry inserts a collection entry. See Store.CreateEntry for the
// idempotency contract around e.ID.
func (s *PostgresStore) CreateEntry(ctx context.Context, e models.CollectionEntry) (*models.CollectionEntry, error) {
	if e.ID == "" {
		row := s.db.QueryRowContext(ctx,
			`INSERT INTO collection_entries (profile_id, catalog_item_id, quantity, condition, notes)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+entryColumns,
			e.ProfileID, e.CatalogItemID, e.Quantity, string(e.Condition), e.Notes)
		created, err := scanEntry(row)
		if err != nil {
			return nil, fmt.Errorf("failed to insert entry: %w", err)
		}
		return created, nil
	}

	// Replay path: the caller supplies the id, so re-running an
	// already-applied create is a no-op followed by a fetch.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_entries (id, profile_id, catalog_item_id, quantity, condition, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.ProfileID, e.CatalogItemID, e.Quantity, string(e.Condition), e.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to insert entry: %w", err)
	}

	return s.getEntry(ctx, e.ID)
}

// UpdateEntry rewrites the mutable columns and returns the canonical row.
// Returns common.ErrNotFound when the entry no longer exists.
func (s *PostgresStore) UpdateEntry(ctx context.Context, e models.CollectionEntry) (*models.CollectionEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE collection_entries SET quantity = $2, condition = $3, notes = $4
		 WHERE id = $1
		 RETURNING `+entryColumns,
		e.ID, e.Quantity, string(e.Condition), e.Notes)
	updated, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}
	return updated, nil
}

// DeleteEntry removes an entry. A missing row is treated as success so delete
// replays are idempotent.
func (s *PostgresStore) DeleteEntry(ctx context.Context, entryID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM collection_entries WHERE id = $1`, entryID); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) getEntry(ctx context.Context, id string) (*models.CollectionEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM collection_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select entry: %w", err)
	}
	return e, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.CollectionEntry, error) {
	var (
		e    models.CollectionEntry
		cond string
	)
	err := row.Scan(&e.ID, &e.ProfileID, &e.CatalogItemID, &e.Quantity, &cond,
		&e.AddedAt, &e.UpdatedAt, &e.Notes)
	if err != nil {
		return nil, err
	}
	e.Condition = models.Condition(cond)
	return &e, nil
}
