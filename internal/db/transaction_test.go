package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// holdWriteLock takes the database's write lock from a second connection
// and returns a func that releases it.
func holdWriteLock(t *testing.T, path string) func() {
	t.Helper()
	ctx := context.Background()

	other, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	conn, err := other.Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE")
	require.NoError(t, err)

	var once sync.Once
	release := func() {
		once.Do(func() {
			_, _ = conn.ExecContext(ctx, "COMMIT")
			_ = conn.Close()
			_ = other.Close()
		})
	}
	t.Cleanup(release)
	return release
}

func openContended(t *testing.T, attempts int) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "host.db")
	db, err := OpenWithOptions(path, Options{
		BusyTimeout:   time.Millisecond,
		WriteAttempts: attempts,
		RetryBackoff:  10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func TestFollowUpCreateRetriesWhileLocked(t *testing.T) {
	db, path := openContended(t, 10)
	seedChat(t, db, "c1", false)
	repo := NewFollowUpRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.SetCheck(ctx, "c1", time.UnixMilli(1_700_000_000_000)))

	release := holdWriteLock(t, path)
	timer := time.AfterFunc(50*time.Millisecond, release)
	defer timer.Stop()

	f := &FollowUp{ChatID: "c1", ScheduledAt: time.UnixMilli(1_700_000_600_000), Message: "still there?"}
	require.NoError(t, repo.Create(ctx, f))
	require.Positive(t, db.BusyRetries())

	got, err := repo.Get(ctx, "c1", f.ID)
	require.NoError(t, err)
	require.Equal(t, "still there?", got.Message)

	check, err := repo.GetCheck(ctx, "c1")
	require.NoError(t, err)
	require.Nil(t, check, "creating a follow-up drops the pending check")
}

func TestSetCheckGivesUpWhileLockHeld(t *testing.T) {
	db, path := openContended(t, 3)
	seedChat(t, db, "c1", false)
	holdWriteLock(t, path)

	err := NewFollowUpRepository(db).SetCheck(context.Background(), "c1", time.UnixMilli(1_700_000_000_000))
	require.Error(t, err)
	require.True(t, IsBusy(err))
	require.Equal(t, int64(2), db.BusyRetries())
}

func TestWriteTxDoesNotRetryOtherErrors(t *testing.T) {
	db, _ := openContended(t, 5)

	attempts := 0
	err := db.WriteTx(context.Background(), func(tx *sql.Tx) error {
		attempts++
		return ErrInvalidFollowUp
	})
	require.ErrorIs(t, err, ErrInvalidFollowUp)
	require.Equal(t, 1, attempts)
	require.Zero(t, db.BusyRetries())
}

func TestWriteTxStopsOnCancel(t *testing.T) {
	db, _ := openContended(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.WriteTx(ctx, func(tx *sql.Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsBusyNeedsSQLiteCode(t *testing.T) {
	require.False(t, IsBusy(nil))
	require.False(t, IsBusy(errors.New("database is locked")))
	require.False(t, IsBusy(ErrFollowUpNotFound))
}
