package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "host.db"))
	require.NoError(t, err)
	return db
}

func seedChat(t *testing.T, db *DB, id string, group bool) {
	t.Helper()
	require.NoError(t, NewChatRepository(db).Upsert(context.Background(), &Chat{ID: id, Name: "Chat " + id, IsGroup: group, AIActive: true}))
}

func TestOpenInMemory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.Equal(t, ":memory:", db.Path())

	seedChat(t, db, "c1", false)
	chat, err := NewChatRepository(db).Get(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, chat.AIActive)
}

func TestChatRepository_ListWithLastMessage(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedChat(t, db, "c1", false)
	seedChat(t, db, "g1", true)

	msgs := NewMessageRepository(db)
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, msgs.Create(ctx, &Message{ChatID: "c1", Body: "first", Timestamp: base}))
	require.NoError(t, msgs.Create(ctx, &Message{ChatID: "c1", Body: "second", FromMe: true, Timestamp: base.Add(time.Minute)}))

	chats, err := NewChatRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	require.Equal(t, "c1", chats[0].ID)
	require.NotNil(t, chats[0].LastMessage)
	require.Equal(t, "second", chats[0].LastMessage.Body)
	require.True(t, chats[0].LastMessage.FromMe)
	require.Nil(t, chats[1].LastMessage)

	// Groups never start with AI enabled.
	require.False(t, chats[1].AIActive)
}

func TestMessageRepository_ListByChatKeepsLatest(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	seedChat(t, db, "c1", false)

	msgs := NewMessageRepository(db)
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, msgs.Create(ctx, &Message{ChatID: "c1", Body: string(rune('a' + i)), Timestamp: base.Add(time.Duration(i) * time.Minute)}))
	}

	got, err := msgs.ListByChat(ctx, "c1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []string{"c", "d", "e"}, []string{got[0].Body, got[1].Body, got[2].Body})

	require.ErrorIs(t, msgs.Create(ctx, &Message{Body: "orphan"}), ErrInvalidMessage)
}

func TestFollowUpRepository_CreateClearsCheck(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	seedChat(t, db, "c1", false)

	repo := NewFollowUpRepository(db)
	at := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetCheck(ctx, "c1", at))

	check, err := repo.GetCheck(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, check)
	require.True(t, at.Equal(check.CheckAt))

	f := &FollowUp{ChatID: "c1", ScheduledAt: at.Add(time.Hour), Message: "still there?"}
	require.NoError(t, repo.Create(ctx, f))
	require.NotEmpty(t, f.ID)
	require.Equal(t, 1, f.Total)

	check, err = repo.GetCheck(ctx, "c1")
	require.NoError(t, err)
	require.Nil(t, check)

	due, err := repo.ListDue(ctx, at.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, repo.Delete(ctx, "c1", f.ID))
	require.ErrorIs(t, repo.Delete(ctx, "c1", f.ID), ErrFollowUpNotFound)
}

func TestInterventionRepository_Expiry(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	seedChat(t, db, "c1", false)
	seedChat(t, db, "c2", false)

	repo := NewInterventionRepository(db)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Set(ctx, Intervention{ChatID: "c1", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, repo.Set(ctx, Intervention{ChatID: "c2", Manual: true}))

	active, err := repo.ListActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 2)

	active, err = repo.ListActive(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "c2", active[0].ChatID)

	iv, err := repo.Get(ctx, "c1", now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Nil(t, iv)
}

func TestChatRepository_Clear(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	seedChat(t, db, "c1", false)

	require.NoError(t, NewMessageRepository(db).Create(ctx, &Message{ChatID: "c1", Body: "hi"}))
	require.NoError(t, NewFollowUpRepository(db).Create(ctx, &FollowUp{ChatID: "c1", ScheduledAt: time.Now().Add(time.Hour), Message: "ping"}))

	chats := NewChatRepository(db)
	require.NoError(t, chats.Clear(ctx, "c1"))
	require.ErrorIs(t, chats.Clear(ctx, "missing"), ErrChatNotFound)

	msgs, err := NewMessageRepository(db).ListByChat(ctx, "c1", 0)
	require.NoError(t, err)
	require.Empty(t, msgs)

	active, err := NewFollowUpRepository(db).ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}
