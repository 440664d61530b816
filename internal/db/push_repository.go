package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Push journal errors.
var (
	ErrPushNotFound = errors.New("push not found")
	ErrInvalidPush  = errors.New("invalid push")
)

// Push is one event the host sent to its clients.
type Push struct {
	ID      string
	Name    string
	ChatID  string
	Payload json.RawMessage
	SentAt  time.Time
}

// PushQuery defines filters for reading the journal.
type PushQuery struct {
	Name   string     // Filter by event name
	ChatID string     // Filter by chat
	Since  *time.Time // Pushes at or after this time (inclusive)
	Cursor string     // Pagination cursor (push ID)
	Limit  int        // Max results to return
}

// PushPage is a page of journal entries.
type PushPage struct {
	Pushes     []*Push
	NextCursor string
}

// PushRepository records every push so a developer can see what clients
// were told.
type PushRepository struct {
	db *DB
}

type pushExecer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// NewPushRepository creates a new PushRepository.
func NewPushRepository(db *DB) *PushRepository {
	return &PushRepository{db: db}
}

// Append adds a push to the journal.
func (r *PushRepository) Append(ctx context.Context, push *Push) error {
	return r.appendWithExecutor(ctx, r.db, push)
}

// AppendWithTx adds a push using an existing transaction.
func (r *PushRepository) AppendWithTx(ctx context.Context, tx *sql.Tx, push *Push) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	return r.appendWithExecutor(ctx, tx, push)
}

func (r *PushRepository) appendWithExecutor(ctx context.Context, execer pushExecer, push *Push) error {
	if strings.TrimSpace(push.Name) == "" {
		return ErrInvalidPush
	}
	if push.ID == "" {
		push.ID = uuid.New().String()
	}
	if push.SentAt.IsZero() {
		push.SentAt = time.Now().UTC()
	}

	var payload *string
	if len(push.Payload) > 0 {
		s := string(push.Payload)
		payload = &s
	}

	_, err := execer.ExecContext(ctx, `
		INSERT INTO pushes (id, sent_ms, name, chat_id, payload_json)
		VALUES (?, ?, ?, ?, ?)
	`, push.ID, push.SentAt.UnixMilli(), push.Name, push.ChatID, payload)
	if err != nil {
		return fmt.Errorf("failed to insert push: %w", err)
	}
	return nil
}

// Get retrieves a push by ID.
func (r *PushRepository) Get(ctx context.Context, id string) (*Push, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, sent_ms, name, chat_id, payload_json FROM pushes WHERE id = ?
	`, id)
	push, err := scanPush(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPushNotFound
	}
	return push, err
}

// Query reads pushes in send order with cursor-based pagination.
func (r *PushRepository) Query(ctx context.Context, q PushQuery) (*PushPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, sent_ms, name, chat_id, payload_json FROM pushes WHERE 1=1`
	args := []any{}

	if q.Name != "" {
		query += ` AND name = ?`
		args = append(args, q.Name)
	}
	if q.ChatID != "" {
		query += ` AND chat_id = ?`
		args = append(args, q.ChatID)
	}
	if q.Since != nil {
		query += ` AND sent_ms >= ?`
		args = append(args, q.Since.UnixMilli())
	}
	if q.Cursor != "" {
		query += ` AND (sent_ms, id) > (SELECT sent_ms, id FROM pushes WHERE id = ?)`
		args = append(args, q.Cursor)
	}

	query += ` ORDER BY sent_ms, id LIMIT ?`
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pushes: %w", err)
	}
	defer rows.Close()

	var pushes []*Push
	for rows.Next() {
		push, err := scanPush(rows)
		if err != nil {
			return nil, err
		}
		pushes = append(pushes, push)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pushes: %w", err)
	}

	page := &PushPage{Pushes: pushes}
	if len(pushes) > limit {
		page.Pushes = pushes[:limit]
		page.NextCursor = pushes[limit-1].ID
	}
	return page, nil
}

// Recent returns the newest pushes, oldest first.
func (r *PushRepository) Recent(ctx context.Context, limit int) ([]*Push, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sent_ms, name, chat_id, payload_json FROM (
			SELECT * FROM pushes ORDER BY sent_ms DESC, id DESC LIMIT ?
		) ORDER BY sent_ms, id
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent pushes: %w", err)
	}
	defer rows.Close()

	var pushes []*Push
	for rows.Next() {
		push, err := scanPush(rows)
		if err != nil {
			return nil, err
		}
		pushes = append(pushes, push)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pushes: %w", err)
	}
	return pushes, nil
}

// Count returns the number of journaled pushes.
func (r *PushRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pushes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pushes: %w", err)
	}
	return count, nil
}

// DeleteExcess trims the oldest pushes beyond maxCount and returns how many
// were removed.
func (r *PushRepository) DeleteExcess(ctx context.Context, maxCount int) (int64, error) {
	if maxCount <= 0 {
		return 0, nil
	}

	total, err := r.Count(ctx)
	if err != nil {
		return 0, err
	}
	excess := total - int64(maxCount)
	if excess <= 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pushes WHERE id IN (
			SELECT id FROM pushes ORDER BY sent_ms, id LIMIT ?
		)
	`, excess)
	if err != nil {
		return 0, fmt.Errorf("failed to delete excess pushes: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPush(row rowScanner) (*Push, error) {
	var (
		push    Push
		sentMs  int64
		payload sql.NullString
	)
	if err := row.Scan(&push.ID, &sentMs, &push.Name, &push.ChatID, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan push: %w", err)
	}
	push.SentAt = time.UnixMilli(sentMs).UTC()
	if payload.Valid {
		push.Payload = json.RawMessage(payload.String)
	}
	return &push, nil
}
