package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"thumbcache/internal/logging"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// SQLiteBackend stores values in a single SQLite table.
type SQLiteBackend struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteBackend opens (creating if needed) the database file at dbPath.
// The parent directory is created when missing.
func NewSQLiteBackend(ctx context.Context, dbPath string) (*SQLiteBackend, error) {
	logging.Info("Thumbnail cache database path: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// busy_timeout helps prevent "database is locked" errors when a cleanup
	// pass and a generation write land together
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	b := &SQLiteBackend{db: db, dbPath: dbPath}
	if err := b.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Thumbnail cache database initialized at %s", dbPath)
	return b, nil
}

func (b *SQLiteBackend) initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := b.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS thumbnail_cache (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	`)
	return err
}

func (b *SQLiteBackend) Name() string { return "sqlite" }

func (b *SQLiteBackend) Get(ctx context.Context, key string) (value string, found bool, err error) {
	start := time.Now()
	defer func() { observeOp(b.Name(), "get", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = b.db.QueryRowContext(ctx, "SELECT value FROM thumbnail_cache WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *SQLiteBackend) Set(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	defer func() { observeOp(b.Name(), "set", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO thumbnail_cache (key, value, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { observeOp(b.Name(), "delete", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = b.db.ExecContext(ctx, "DELETE FROM thumbnail_cache WHERE key = ?", key)
	return err
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
