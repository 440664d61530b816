package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidMessage is returned for messages missing required fields.
var ErrInvalidMessage = errors.New("invalid message")

// Message is a stored chat message.
type Message struct {
	ID         string
	ChatID     string
	FromMe     bool
	Type       string
	Body       string
	Caption    string
	MimeType   string
	Extra      json.RawMessage
	Timestamp  time.Time
	IsAI       bool
	IsFollowUp bool
}

// MessageRepository handles message persistence.
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores a message, assigning an ID and timestamp when missing.
func (r *MessageRepository) Create(ctx context.Context, msg *Message) error {
	if strings.TrimSpace(msg.ChatID) == "" {
		return ErrInvalidMessage
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.Type == "" {
		msg.Type = "chat"
	}

	var extra *string
	if len(msg.Extra) > 0 {
		s := string(msg.Extra)
		extra = &s
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, chat_id, from_me, type, body, caption, mimetype, extra_json,
			timestamp_ms, is_ai, is_follow_up
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.ChatID,
		boolInt(msg.FromMe),
		msg.Type,
		msg.Body,
		msg.Caption,
		msg.MimeType,
		extra,
		msg.Timestamp.UnixMilli(),
		boolInt(msg.IsAI),
		boolInt(msg.IsFollowUp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListByChat returns the latest limit messages of a chat, oldest first.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, from_me, type, body, caption, mimetype, extra_json,
			timestamp_ms, is_ai, is_follow_up
		FROM (
			SELECT * FROM messages WHERE chat_id = ?
			ORDER BY timestamp_ms DESC, id DESC LIMIT ?
		)
		ORDER BY timestamp_ms, id
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m          Message
			fromMe     int
			extra      *string
			tsMs       int64
			isAI       int
			isFollowUp int
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &fromMe, &m.Type, &m.Body, &m.Caption, &m.MimeType,
			&extra, &tsMs, &isAI, &isFollowUp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.FromMe = fromMe != 0
		m.IsAI = isAI != 0
		m.IsFollowUp = isFollowUp != 0
		m.Timestamp = time.UnixMilli(tsMs).UTC()
		if extra != nil {
			m.Extra = json.RawMessage(*extra)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return out, nil
}
