// Package db provides SQLite storage for the reference host.
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	defaultBusyTimeout   = 5 * time.Second
	defaultWriteAttempts = 3
	defaultRetryBackoff  = 50 * time.Millisecond
)

// WriteTx runs fn in a transaction. A transaction that fails because another
// writer holds the database is rolled back and run again, up to the store's
// WriteAttempts.
func (db *DB) WriteTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return db.retryBusy(ctx, func() error {
		return db.Transaction(ctx, fn)
	})
}

// exec runs a single write statement with the same busy handling as WriteTx.
func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := db.retryBusy(ctx, func() error {
		var err error
		res, err = db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// BusyRetries counts writes that were run again after SQLITE_BUSY.
func (db *DB) BusyRetries() int64 {
	return db.busyRetries.Load()
}

func (db *DB) retryBusy(ctx context.Context, fn func() error) error {
	backoff := db.opts.RetryBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil || !IsBusy(err) || attempt >= db.opts.WriteAttempts {
			return err
		}

		db.busyRetries.Add(1)
		if err := sleepWithContext(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
}

// IsBusy reports whether err is SQLite refusing a write because the database
// is locked by another connection.
func IsBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	default:
		return false
	}
}

func sleepWithContext(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
