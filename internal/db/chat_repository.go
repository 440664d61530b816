package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Chat repository errors.
var (
	ErrChatNotFound = errors.New("chat not found")
	ErrInvalidChat  = errors.New("invalid chat")
)

// Chat is a stored conversation.
type Chat struct {
	ID        string
	Name      string
	IsGroup   bool
	AIActive  bool
	CreatedAt time.Time
}

// ChatSummary is a chat with its most recent message.
type ChatSummary struct {
	Chat
	LastMessage *Message
}

// ChatRepository handles chat persistence.
type ChatRepository struct {
	db *DB
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(db *DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Upsert creates a chat or updates its name and group flag.
func (r *ChatRepository) Upsert(ctx context.Context, chat *Chat) error {
	if strings.TrimSpace(chat.ID) == "" {
		return ErrInvalidChat
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chats (id, name, is_group, ai_active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, is_group = excluded.is_group
	`, chat.ID, chat.Name, boolInt(chat.IsGroup), boolInt(chat.AIActive && !chat.IsGroup), chat.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert chat: %w", err)
	}
	return nil
}

// Get retrieves a chat by ID.
func (r *ChatRepository) Get(ctx context.Context, id string) (*Chat, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, is_group, ai_active, created_at FROM chats WHERE id = ?
	`, id)

	var (
		chat      Chat
		isGroup   int
		aiActive  int
		createdMs int64
	)
	if err := row.Scan(&chat.ID, &chat.Name, &isGroup, &aiActive, &createdMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	chat.IsGroup = isGroup != 0
	chat.AIActive = aiActive != 0
	chat.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &chat, nil
}

// List returns every chat with its latest message.
func (r *ChatRepository) List(ctx context.Context) ([]ChatSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.is_group, c.ai_active, c.created_at,
			m.id, m.from_me, m.type, m.body, m.caption, m.mimetype, m.timestamp_ms
		FROM chats c
		LEFT JOIN messages m ON m.id = (
			SELECT id FROM messages WHERE chat_id = c.id
			ORDER BY timestamp_ms DESC, id DESC LIMIT 1
		)
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var out []ChatSummary
	for rows.Next() {
		var (
			s         ChatSummary
			isGroup   int
			aiActive  int
			createdMs int64
			msgID     sql.NullString
			fromMe    sql.NullInt64
			msgType   sql.NullString
			body      sql.NullString
			caption   sql.NullString
			mimetype  sql.NullString
			tsMs      sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Name, &isGroup, &aiActive, &createdMs,
			&msgID, &fromMe, &msgType, &body, &caption, &mimetype, &tsMs); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		s.IsGroup = isGroup != 0
		s.AIActive = aiActive != 0
		s.CreatedAt = time.UnixMilli(createdMs).UTC()
		if msgID.Valid {
			s.LastMessage = &Message{
				ID:        msgID.String,
				ChatID:    s.ID,
				FromMe:    fromMe.Int64 != 0,
				Type:      msgType.String,
				Body:      body.String,
				Caption:   caption.String,
				MimeType:  mimetype.String,
				Timestamp: time.UnixMilli(tsMs.Int64).UTC(),
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chats: %w", err)
	}
	return out, nil
}

// SetAIActive stores the AI responder flag.
func (r *ChatRepository) SetAIActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET ai_active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to set ai mode: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Clear removes a chat's messages, follow-ups, check and intervention. The
// chat itself stays listed.
func (r *ChatRepository) Clear(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return r.db.WriteTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM messages WHERE chat_id = ?`,
			`DELETE FROM follow_ups WHERE chat_id = ?`,
			`DELETE FROM follow_up_checks WHERE chat_id = ?`,
			`DELETE FROM interventions WHERE chat_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to clear chat: %w", err)
			}
		}
		return nil
	})
}
