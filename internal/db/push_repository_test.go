package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushRepositoryAppendAndGet(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	repo := NewPushRepository(db)

	push := &Push{Name: "new-message", ChatID: "c1", Payload: json.RawMessage(`{"chatId":"c1"}`)}
	require.NoError(t, repo.Append(ctx, push))
	require.NotEmpty(t, push.ID)
	require.False(t, push.SentAt.IsZero())

	got, err := repo.Get(ctx, push.ID)
	require.NoError(t, err)
	require.Equal(t, "new-message", got.Name)
	require.Equal(t, "c1", got.ChatID)
	require.JSONEq(t, `{"chatId":"c1"}`, string(got.Payload))

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrPushNotFound)

	require.ErrorIs(t, repo.Append(ctx, &Push{Name: " "}), ErrInvalidPush)
}

func TestPushRepositoryQueryPaginates(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	repo := NewPushRepository(db)

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"new-message", "status-update", "new-message", "new-message"} {
		require.NoError(t, repo.Append(ctx, &Push{Name: name, ChatID: "c1", SentAt: base.Add(time.Duration(i) * time.Second)}))
	}

	page, err := repo.Query(ctx, PushQuery{Name: "new-message", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Pushes, 2)
	require.NotEmpty(t, page.NextCursor)
	require.True(t, page.Pushes[0].SentAt.Equal(base))

	page, err = repo.Query(ctx, PushQuery{Name: "new-message", Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Pushes, 1)
	require.Empty(t, page.NextCursor)
	require.True(t, page.Pushes[0].SentAt.Equal(base.Add(3*time.Second)))

	since := base.Add(time.Second)
	page, err = repo.Query(ctx, PushQuery{Since: &since})
	require.NoError(t, err)
	require.Len(t, page.Pushes, 3)
}

func TestPushRepositoryDeleteExcess(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	repo := NewPushRepository(db)

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(ctx, &Push{Name: "status-update", SentAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	n, err := repo.DeleteExcess(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	recent, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.True(t, recent[0].SentAt.Equal(base.Add(2*time.Minute)))
	require.True(t, recent[2].SentAt.Equal(base.Add(4*time.Minute)))

	n, err = repo.DeleteExcess(ctx, 3)
	require.NoError(t, err)
	require.Zero(t, n)
}
