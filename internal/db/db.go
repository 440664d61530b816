package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// DB wraps the host's SQLite database.
type DB struct {
	*sql.DB
	path string
	opts Options

	busyRetries atomic.Int64
}

// Options tunes how the store handles write contention.
type Options struct {
	// BusyTimeout is how long SQLite waits on a locked database before a
	// statement fails with SQLITE_BUSY. Zero means the default.
	BusyTimeout time.Duration

	// WriteAttempts bounds how often a busy write transaction is run.
	WriteAttempts int

	// RetryBackoff is the pause before the first retry; it doubles after
	// each busy attempt.
	RetryBackoff time.Duration
}

// DefaultOptions returns the store's default contention settings.
func DefaultOptions() Options {
	return Options{
		BusyTimeout:   defaultBusyTimeout,
		WriteAttempts: defaultWriteAttempts,
		RetryBackoff:  defaultRetryBackoff,
	}
}

// Open opens the database at path with DefaultOptions.
func Open(path string) (*DB, error) {
	return OpenWithOptions(path, DefaultOptions())
}

// OpenWithOptions opens (and creates if needed) the database at path. An
// empty path or ":memory:" opens a private in-memory database.
func OpenWithOptions(path string, opts Options) (*DB, error) {
	if opts.WriteAttempts <= 0 {
		opts.WriteAttempts = defaultWriteAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}

	path = strings.TrimSpace(path)
	var dsn string
	switch path {
	case "", ":memory:":
		path = ":memory:"
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)",
			path, opts.BusyTimeout.Milliseconds())
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open host database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{DB: sqlDB, path: path, opts: opts}
	if err := db.ensureSchema(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database location.
func (db *DB) Path() string {
	return db.path
}

// Transaction runs fn inside a transaction, committing on success.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			is_group INTEGER NOT NULL DEFAULT 0,
			ai_active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			from_me INTEGER NOT NULL DEFAULT 0,
			type TEXT NOT NULL DEFAULT 'chat',
			body TEXT NOT NULL DEFAULT '',
			caption TEXT NOT NULL DEFAULT '',
			mimetype TEXT NOT NULL DEFAULT '',
			extra_json TEXT,
			timestamp_ms INTEGER NOT NULL,
			is_ai INTEGER NOT NULL DEFAULT 0,
			is_follow_up INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages(chat_id, timestamp_ms, id)`,
		`CREATE TABLE IF NOT EXISTS follow_ups (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			scheduled_ms INTEGER NOT NULL,
			message TEXT NOT NULL,
			sequence INTEGER NOT NULL DEFAULT 1,
			total INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_follow_ups_chat ON follow_ups(chat_id, scheduled_ms)`,
		`CREATE TABLE IF NOT EXISTS follow_up_checks (
			chat_id TEXT PRIMARY KEY REFERENCES chats(id) ON DELETE CASCADE,
			check_ms INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS interventions (
			chat_id TEXT PRIMARY KEY REFERENCES chats(id) ON DELETE CASCADE,
			is_manual INTEGER NOT NULL DEFAULT 0,
			expires_ms INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS pushes (
			id TEXT PRIMARY KEY,
			sent_ms INTEGER NOT NULL,
			name TEXT NOT NULL,
			chat_id TEXT NOT NULL DEFAULT '',
			payload_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pushes_sent ON pushes(sent_ms, id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure host schema: %w", err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
