package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertSuppression records (or extends) a trigger suppression window for
// a feature. The trigger engine decides whether a trigger may be
// suppressed at all; the store just keeps the window.
func (s *Store) UpsertSuppression(ctx context.Context, feature, triggerID string, until time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppressions (feature, trigger_id, until_ts)
		VALUES (?, ?, ?)
		ON CONFLICT(feature, trigger_id) DO UPDATE SET until_ts = excluded.until_ts
	`, feature, triggerID, formatTime(until))
	if err != nil {
		return fmt.Errorf("upsert suppression: %w", err)
	}
	return nil
}

// GetSuppression returns the suppression window end for a trigger.
// Absence is ok=false with a nil error.
func (s *Store) GetSuppression(ctx context.Context, feature, triggerID string) (time.Time, bool, error) {
	var until string
	err := s.db.QueryRowContext(ctx, `
		SELECT until_ts FROM suppressions
		WHERE feature = ? AND trigger_id = ?
	`, feature, triggerID).Scan(&until)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get suppression: %w", err)
	}

	t, err := parseTime(until)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get suppression: %w", err)
	}
	return t, true, nil
}
