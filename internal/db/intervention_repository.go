package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Intervention is a stored human takeover. Manual interventions have no
// expiry.
type Intervention struct {
	ChatID    string
	Manual    bool
	ExpiresAt time.Time
}

// Active reports whether the intervention is still in force at now.
func (i Intervention) Active(now time.Time) bool {
	return i.Manual || now.Before(i.ExpiresAt)
}

// InterventionRepository handles intervention persistence.
type InterventionRepository struct {
	db *DB
}

// NewInterventionRepository creates a new InterventionRepository.
func NewInterventionRepository(db *DB) *InterventionRepository {
	return &InterventionRepository{db: db}
}

// Set stores the chat's intervention, replacing any other.
func (r *InterventionRepository) Set(ctx context.Context, iv Intervention) error {
	var expires int64
	if !iv.Manual {
		expires = iv.ExpiresAt.UnixMilli()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO interventions (chat_id, is_manual, expires_ms) VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET is_manual = excluded.is_manual, expires_ms = excluded.expires_ms
	`, iv.ChatID, boolInt(iv.Manual), expires)
	if err != nil {
		return fmt.Errorf("failed to set intervention: %w", err)
	}
	return nil
}

// Get returns the chat's intervention if it is active at now.
func (r *InterventionRepository) Get(ctx context.Context, chatID string, now time.Time) (*Intervention, error) {
	var (
		manual  int
		expires int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT is_manual, expires_ms FROM interventions WHERE chat_id = ?
	`, chatID).Scan(&manual, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intervention: %w", err)
	}
	iv := &Intervention{ChatID: chatID, Manual: manual != 0}
	if !iv.Manual {
		iv.ExpiresAt = time.UnixMilli(expires).UTC()
	}
	if !iv.Active(now) {
		return nil, nil
	}
	return iv, nil
}

// Clear ends the chat's intervention.
func (r *InterventionRepository) Clear(ctx context.Context, chatID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM interventions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to clear intervention: %w", err)
	}
	return nil
}

// ListActive returns interventions in force at now and deletes expired ones.
func (r *InterventionRepository) ListActive(ctx context.Context, now time.Time) ([]Intervention, error) {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM interventions WHERE is_manual = 0 AND expires_ms <= ?
	`, now.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to expire interventions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, is_manual, expires_ms FROM interventions ORDER BY chat_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list interventions: %w", err)
	}
	defer rows.Close()

	var out []Intervention
	for rows.Next() {
		var (
			iv      Intervention
			manual  int
			expires int64
		)
		if err := rows.Scan(&iv.ChatID, &manual, &expires); err != nil {
			return nil, fmt.Errorf("failed to scan intervention: %w", err)
		}
		iv.Manual = manual != 0
		if !iv.Manual {
			iv.ExpiresAt = time.UnixMilli(expires).UTC()
		}
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interventions: %w", err)
	}
	return out, nil
}
