package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fernworks/docket/internal/todo"
)

// AppendChange appends an entry to the feature's change log and returns it
// with its assigned id, seq, and timestamp.
//
// Assignment happens inside a transaction: seq is the previous entry's
// seq + 1, and the timestamp is the wall clock bumped past the previous
// entry's timestamp when they would collide. Per feature, seq and
// timestamp are therefore both strictly increasing for any interleaving
// of appends, including same-instant calls.
//
// The log is append-only: no update or delete operations exist.
func (s *Store) AppendChange(ctx context.Context, feature string, entry todo.ChangeLogEntry) (todo.ChangeLogEntry, error) {
	if !todo.ValidChangeTypes[entry.ChangeType] {
		return todo.ChangeLogEntry{}, todo.NewValidationError(feature, entry.TodoID, "change_type",
			fmt.Sprintf("unknown change type %q", entry.ChangeType))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return todo.ChangeLogEntry{}, fmt.Errorf("append change: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var (
		lastSeq int64
		lastTS  string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT seq, ts FROM changelog
		WHERE feature = ?
		ORDER BY seq DESC LIMIT 1
	`, feature).Scan(&lastSeq, &lastTS)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return todo.ChangeLogEntry{}, fmt.Errorf("append change: read tail: %w", err)
	}

	entry.Seq = lastSeq + 1
	entry.ID = fmt.Sprintf("c-%d", entry.Seq)

	ts := s.now().UTC()
	if lastTS != "" {
		prev, err := parseTime(lastTS)
		if err != nil {
			return todo.ChangeLogEntry{}, fmt.Errorf("append change: %w", err)
		}
		// Clock skew or same-instant appends: keep ts strictly increasing.
		if !ts.After(prev) {
			ts = prev.Add(time.Nanosecond)
		}
	}
	entry.Timestamp = ts

	before, err := marshalSnapshot(entry.Before)
	if err != nil {
		return todo.ChangeLogEntry{}, fmt.Errorf("append change: %w", err)
	}
	after, err := marshalSnapshot(entry.After)
	if err != nil {
		return todo.ChangeLogEntry{}, fmt.Errorf("append change: %w", err)
	}
	related, err := marshalStrings(entry.RelatedChanges)
	if err != nil {
		return todo.ChangeLogEntry{}, fmt.Errorf("append change: %w", err)
	}

	var todoID any
	if entry.TodoID != "" {
		todoID = entry.TodoID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO changelog
		(feature, id, seq, ts, change_type, tier, todo_id, before, after,
		 reason, propagation_triggered, related_changes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		feature, entry.ID, entry.Seq, formatTime(entry.Timestamp),
		string(entry.ChangeType), string(entry.Tier), todoID, before, after,
		entry.Reason, entry.PropagationTriggered, related,
	)
	if err != nil {
		return todo.ChangeLogEntry{}, fmt.Errorf("append change: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return todo.ChangeLogEntry{}, fmt.Errorf("append change: commit: %w", err)
	}

	return entry, nil
}

const changeLogColumns = `id, seq, ts, change_type, tier, todo_id, before, after,
		       reason, propagation_triggered, related_changes`

// ReadChanges returns the feature's change log, oldest first.
// Returns an empty slice (not nil) if no entries exist.
func (s *Store) ReadChanges(ctx context.Context, feature string) ([]todo.ChangeLogEntry, error) {
	return s.readChanges(ctx, `
		SELECT `+changeLogColumns+`
		FROM changelog
		WHERE feature = ?
		ORDER BY seq ASC
	`, feature)
}

// ReadChangesSince returns entries with a timestamp strictly after the
// given instant, oldest first.
func (s *Store) ReadChangesSince(ctx context.Context, feature string, since time.Time) ([]todo.ChangeLogEntry, error) {
	return s.readChanges(ctx, `
		SELECT `+changeLogColumns+`
		FROM changelog
		WHERE feature = ? AND ts > ?
		ORDER BY seq ASC
	`, feature, formatTime(since))
}

// ReadChangesForTodo returns the entries recorded against one todo after
// the given instant, oldest first. Rollback conflict detection and trigger
// conditions both scan this range.
func (s *Store) ReadChangesForTodo(ctx context.Context, feature, todoID string, since time.Time) ([]todo.ChangeLogEntry, error) {
	return s.readChanges(ctx, `
		SELECT `+changeLogColumns+`
		FROM changelog
		WHERE feature = ? AND todo_id = ? AND ts > ?
		ORDER BY seq ASC
	`, feature, todoID, formatTime(since))
}

// GetChange returns one entry by id. Absence is ok=false with a nil error.
func (s *Store) GetChange(ctx context.Context, feature, id string) (todo.ChangeLogEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+changeLogColumns+`
		FROM changelog
		WHERE feature = ? AND id = ?
	`, feature, id)

	entry, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return todo.ChangeLogEntry{}, false, nil
	}
	if err != nil {
		return todo.ChangeLogEntry{}, false, fmt.Errorf("get change: %w", err)
	}
	return entry, true, nil
}

func (s *Store) readChanges(ctx context.Context, query string, args ...any) ([]todo.ChangeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read changes: %w", err)
	}
	defer rows.Close()

	var entries []todo.ChangeLogEntry
	for rows.Next() {
		entry, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("read changes: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read changes: %w", err)
	}

	if entries == nil {
		entries = []todo.ChangeLogEntry{}
	}
	return entries, nil
}

func scanChange(row rowScanner) (todo.ChangeLogEntry, error) {
	var (
		entry      todo.ChangeLogEntry
		ts         string
		changeType string
		tier       string
		todoID     sql.NullString
		before     sql.NullString
		after      sql.NullString
		related    string
	)

	err := row.Scan(&entry.ID, &entry.Seq, &ts, &changeType, &tier, &todoID,
		&before, &after, &entry.Reason, &entry.PropagationTriggered, &related)
	if err != nil {
		return todo.ChangeLogEntry{}, err
	}

	entry.ChangeType = todo.ChangeType(changeType)
	entry.Tier = todo.Tier(tier)
	if todoID.Valid {
		entry.TodoID = todoID.String
	}

	if entry.Timestamp, err = parseTime(ts); err != nil {
		return todo.ChangeLogEntry{}, err
	}
	if entry.Before, err = unmarshalSnapshot(before); err != nil {
		return todo.ChangeLogEntry{}, err
	}
	if entry.After, err = unmarshalSnapshot(after); err != nil {
		return todo.ChangeLogEntry{}, err
	}
	if entry.RelatedChanges, err = unmarshalStrings(related); err != nil {
		return todo.ChangeLogEntry{}, err
	}

	return entry, nil
}
