package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqliteDirPerms is used when creating the database directory.
const sqliteDirPerms = 0o700

// SQLiteStore keeps the values in a small SQLite database. Useful when the
// data directory is shared with other tooling that prefers a database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), sqliteDirPerms); err != nil {
		return nil, fmt.Errorf("store: creating database directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}

	// A single connection serializes writers; the table holds two rows.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("store: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("store: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the stored value for key or "".
func (s *SQLiteStore) Get(key Key) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}

	var value string

	err := s.db.QueryRow(`SELECT value FROM client_state WHERE key = ?`, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("store: reading %s: %w", key, err)
	}

	return value, nil
}

// Set upserts key. An empty value clears it.
func (s *SQLiteStore) Set(key Key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if value == "" {
		return s.Clear(key)
	}

	_, err := s.db.Exec(
		`INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(key), value, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: writing %s: %w", key, err)
	}

	return nil
}

// Clear deletes key.
func (s *SQLiteStore) Clear(key Key) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if _, err := s.db.Exec(`DELETE FROM client_state WHERE key = ?`, string(key)); err != nil {
		return fmt.Errorf("store: clearing %s: %w", key, err)
	}

	return nil
}
