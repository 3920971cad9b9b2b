// Package database persists measurement datasets in SQLite under the
// hierarchical key {measurement}/{settings_key}/{timestamp}-{sample_id}, with
// per-pixel result arrays as children and a secondary index from sample ids
// to dataset leaves.
//
// The store is single-writer: a file lock next to the database file rejects a
// second opener, and callers serialize mutating calls (during a run only the
// experiment worker writes).
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"cohesivm/internal/logging"
)

var (
	// ErrFormat marks a database path without a recognized extension.
	ErrFormat = errors.New("database format error")
	// ErrStorage marks an I/O or consistency failure in the store. No retries
	// happen here; the orchestration layer decides whether to repeat a step.
	ErrStorage = errors.New("database storage error")
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on schema changes; existing files with another
// version are rejected rather than migrated.
const schemaVersion = 1

var recognizedExtensions = map[string]struct{}{
	".db":     {},
	".sqlite": {},
}

// Database is a file-backed hierarchical dataset store.
type Database struct {
	db     *sql.DB
	lock   *flock.Flock
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last string // previously issued timestamp
}

// Open creates or opens the backing file. The path must end in ".db" or
// ".sqlite"; missing parent directories are created.
func Open(path string, logger *slog.Logger) (*Database, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	ext := filepath.Ext(path)
	if _, ok := recognizedExtensions[ext]; !ok {
		return nil, fmt.Errorf("%w: path must have a .db or .sqlite suffix, got %q", ErrFormat, path)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: %q is a directory", ErrStorage, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: ensure parent directory: %w", ErrStorage, err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: acquire database lock: %w", ErrStorage, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: database %q is locked by another process", ErrStorage, path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("%w: open sqlite db: %w", ErrStorage, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("%w: apply pragma %q: %w", ErrStorage, pragma, execErr)
		}
	}

	store := &Database{db: db, lock: lock, path: path, logger: logger}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Path returns the backing file location.
func (d *Database) Path() string { return d.path }

// Close closes the connection and releases the file lock.
func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	err := d.db.Close()
	if d.lock != nil {
		if unlockErr := d.lock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}

func (d *Database) initSchema(ctx context.Context) error {
	var tableExists int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("%w: check schema_version table: %w", ErrStorage, err)
	}

	if tableExists == 0 {
		return d.createSchema(ctx)
	}

	var version int
	if err := d.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("%w: read schema version: %w", ErrStorage, err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has schema version %d, expected %d", ErrStorage, version, schemaVersion)
	}
	return nil
}

func (d *Database) createSchema(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin schema tx: %w", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: create schema: %w", ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("%w: record schema version: %w", ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit schema: %w", ErrStorage, err)
	}
	d.logger.Debug("database schema created", logging.String("path", d.path))
	return nil
}
