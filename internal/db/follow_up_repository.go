package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Follow-up repository errors.
var (
	ErrFollowUpNotFound = errors.New("follow-up not found")
	ErrInvalidFollowUp  = errors.New("invalid follow-up")
)

// FollowUp is a stored pending follow-up.
type FollowUp struct {
	ID          string
	ChatID      string
	ScheduledAt time.Time
	Message     string
	Sequence    int
	Total       int
}

// Check is a stored eligibility check.
type Check struct {
	ChatID  string
	CheckAt time.Time
}

// FollowUpRepository handles follow-up and eligibility check persistence.
type FollowUpRepository struct {
	db *DB
}

// NewFollowUpRepository creates a new FollowUpRepository.
func NewFollowUpRepository(db *DB) *FollowUpRepository {
	return &FollowUpRepository{db: db}
}

// Create stores a follow-up and drops the chat's pending check, in one
// transaction.
func (r *FollowUpRepository) Create(ctx context.Context, f *FollowUp) error {
	if strings.TrimSpace(f.ChatID) == "" || f.ScheduledAt.IsZero() || strings.TrimSpace(f.Message) == "" {
		return ErrInvalidFollowUp
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.Sequence <= 0 {
		f.Sequence = 1
	}
	if f.Total < f.Sequence {
		f.Total = f.Sequence
	}

	return r.db.WriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO follow_ups (id, chat_id, scheduled_ms, message, sequence, total)
			VALUES (?, ?, ?, ?, ?, ?)
		`, f.ID, f.ChatID, f.ScheduledAt.UnixMilli(), f.Message, f.Sequence, f.Total); err != nil {
			return fmt.Errorf("failed to insert follow-up: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM follow_up_checks WHERE chat_id = ?`, f.ChatID); err != nil {
			return fmt.Errorf("failed to clear check: %w", err)
		}
		return nil
	})
}

// Get retrieves a follow-up by chat and ID.
func (r *FollowUpRepository) Get(ctx context.Context, chatID, id string) (*FollowUp, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, chat_id, scheduled_ms, message, sequence, total
		FROM follow_ups WHERE id = ? AND chat_id = ?
	`, id, chatID)

	var (
		f  FollowUp
		ms int64
	)
	if err := row.Scan(&f.ID, &f.ChatID, &ms, &f.Message, &f.Sequence, &f.Total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFollowUpNotFound
		}
		return nil, fmt.Errorf("failed to get follow-up: %w", err)
	}
	f.ScheduledAt = time.UnixMilli(ms).UTC()
	return &f, nil
}

// ListActive returns every pending follow-up, earliest first.
func (r *FollowUpRepository) ListActive(ctx context.Context) ([]FollowUp, error) {
	return r.query(ctx, `
		SELECT id, chat_id, scheduled_ms, message, sequence, total
		FROM follow_ups ORDER BY scheduled_ms, sequence, id
	`)
}

// ListDue returns follow-ups scheduled at or before now.
func (r *FollowUpRepository) ListDue(ctx context.Context, now time.Time) ([]FollowUp, error) {
	return r.query(ctx, `
		SELECT id, chat_id, scheduled_ms, message, sequence, total
		FROM follow_ups WHERE scheduled_ms <= ? ORDER BY scheduled_ms, sequence, id
	`, now.UnixMilli())
}

func (r *FollowUpRepository) query(ctx context.Context, query string, args ...any) ([]FollowUp, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list follow-ups: %w", err)
	}
	defer rows.Close()

	var out []FollowUp
	for rows.Next() {
		var (
			f  FollowUp
			ms int64
		)
		if err := rows.Scan(&f.ID, &f.ChatID, &ms, &f.Message, &f.Sequence, &f.Total); err != nil {
			return nil, fmt.Errorf("failed to scan follow-up: %w", err)
		}
		f.ScheduledAt = time.UnixMilli(ms).UTC()
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating follow-ups: %w", err)
	}
	return out, nil
}

// Delete removes one follow-up.
func (r *FollowUpRepository) Delete(ctx context.Context, chatID, id string) error {
	res, err := r.db.exec(ctx, `DELETE FROM follow_ups WHERE id = ? AND chat_id = ?`, id, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete follow-up: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFollowUpNotFound
	}
	return nil
}

// DeleteByChat removes every follow-up of a chat and returns how many.
func (r *FollowUpRepository) DeleteByChat(ctx context.Context, chatID string) (int, error) {
	res, err := r.db.exec(ctx, `DELETE FROM follow_ups WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete follow-ups: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SetCheck schedules the chat's eligibility check, replacing any other.
func (r *FollowUpRepository) SetCheck(ctx context.Context, chatID string, at time.Time) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO follow_up_checks (chat_id, check_ms) VALUES (?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET check_ms = excluded.check_ms
	`, chatID, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set check: %w", err)
	}
	return nil
}

// GetCheck returns the chat's check, or nil when none is scheduled.
func (r *FollowUpRepository) GetCheck(ctx context.Context, chatID string) (*Check, error) {
	var ms int64
	err := r.db.QueryRowContext(ctx, `SELECT check_ms FROM follow_up_checks WHERE chat_id = ?`, chatID).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check: %w", err)
	}
	return &Check{ChatID: chatID, CheckAt: time.UnixMilli(ms).UTC()}, nil
}

// ClearCheck drops the chat's check.
func (r *FollowUpRepository) ClearCheck(ctx context.Context, chatID string) error {
	if _, err := r.db.exec(ctx, `DELETE FROM follow_up_checks WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to clear check: %w", err)
	}
	return nil
}

// ListDueChecks returns checks scheduled at or before now.
func (r *FollowUpRepository) ListDueChecks(ctx context.Context, now time.Time) ([]Check, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, check_ms FROM follow_up_checks WHERE check_ms <= ? ORDER BY check_ms, chat_id
	`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	defer rows.Close()

	var out []Check
	for rows.Next() {
		var (
			c  Check
			ms int64
		)
		if err := rows.Scan(&c.ChatID, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		c.CheckAt = time.UnixMilli(ms).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checks: %w", err)
	}
	return out, nil
}
