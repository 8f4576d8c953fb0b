package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fernworks/docket/internal/todo"
)

// InsertState persists a previous-state snapshot. Ids are content-addressed
// (todo.StateID), so re-snapshotting identical state is a no-op:
// ON CONFLICT DO NOTHING keeps the insert idempotent.
func (s *Store) InsertState(ctx context.Context, feature string, ps todo.PreviousState) error {
	state, err := marshalState(ps.State)
	if err != nil {
		return fmt.Errorf("insert state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO previous_states
		(feature, id, todo_id, ts, state, changelog_id, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feature, id) DO NOTHING
	`,
		feature, ps.ID, ps.TodoID, formatTime(ps.Timestamp), state, ps.ChangeLogID, ps.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert state: %w", err)
	}
	return nil
}

// GetState returns one snapshot by id. Absence is ok=false with a nil error.
func (s *Store) GetState(ctx context.Context, feature, stateID string) (todo.PreviousState, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, todo_id, ts, state, changelog_id, reason
		FROM previous_states
		WHERE feature = ? AND id = ?
	`, feature, stateID)

	ps, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return todo.PreviousState{}, false, nil
	}
	if err != nil {
		return todo.PreviousState{}, false, fmt.Errorf("get state: %w", err)
	}
	return ps, true, nil
}

// ListStates returns a todo's snapshots, newest first.
func (s *Store) ListStates(ctx context.Context, feature, todoID string) ([]todo.PreviousState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, todo_id, ts, state, changelog_id, reason
		FROM previous_states
		WHERE feature = ? AND todo_id = ?
		ORDER BY ts DESC, id COLLATE BINARY ASC
	`, feature, todoID)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var states []todo.PreviousState
	for rows.Next() {
		ps, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("list states: %w", err)
		}
		states = append(states, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}

	if states == nil {
		states = []todo.PreviousState{}
	}
	return states, nil
}

func scanState(row rowScanner) (todo.PreviousState, error) {
	var (
		ps    todo.PreviousState
		ts    string
		state string
	)

	err := row.Scan(&ps.ID, &ps.TodoID, &ts, &state, &ps.ChangeLogID, &ps.Reason)
	if err != nil {
		return todo.PreviousState{}, err
	}

	if ps.Timestamp, err = parseTime(ts); err != nil {
		return todo.PreviousState{}, err
	}
	if ps.State, err = unmarshalState(state); err != nil {
		return todo.PreviousState{}, err
	}
	return ps, nil
}

// InsertRollback records a rollback attempt with its final status and any
// detected conflicts. Rollback records are write-once.
func (s *Store) InsertRollback(ctx context.Context, feature string, r todo.Rollback) error {
	fields, err := marshalStrings(r.Fields)
	if err != nil {
		return fmt.Errorf("insert rollback: %w", err)
	}
	conflicts, err := marshalConflicts(r.Conflicts)
	if err != nil {
		return fmt.Errorf("insert rollback: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rollbacks
		(feature, id, todo_id, rolled_back_from, rolled_back_to, type,
		 fields, conflicts, status, created_at, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		feature, r.ID, r.TodoID, r.RolledBackFrom, r.RolledBackTo, string(r.Type),
		fields, conflicts, string(r.Status), formatTime(r.CreatedAt), r.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert rollback: %w", err)
	}
	return nil
}

// ListRollbacks returns rollback records for the feature, newest first,
// optionally filtered to one todo (empty todoID means all).
func (s *Store) ListRollbacks(ctx context.Context, feature, todoID string) ([]todo.Rollback, error) {
	query := `
		SELECT id, todo_id, rolled_back_from, rolled_back_to, type,
		       fields, conflicts, status, created_at, reason
		FROM rollbacks
		WHERE feature = ?`
	args := []any{feature}
	if todoID != "" {
		query += ` AND todo_id = ?`
		args = append(args, todoID)
	}
	query += `
		ORDER BY created_at DESC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rollbacks: %w", err)
	}
	defer rows.Close()

	var rollbacks []todo.Rollback
	for rows.Next() {
		var (
			r         todo.Rollback
			rtype     string
			fields    string
			conflicts string
			status    string
			createdAt string
		)
		err := rows.Scan(&r.ID, &r.TodoID, &r.RolledBackFrom, &r.RolledBackTo, &rtype,
			&fields, &conflicts, &status, &createdAt, &r.Reason)
		if err != nil {
			return nil, fmt.Errorf("list rollbacks: %w", err)
		}

		r.Type = todo.RollbackType(rtype)
		r.Status = todo.RollbackStatus(status)
		if r.Fields, err = unmarshalStrings(fields); err != nil {
			return nil, fmt.Errorf("list rollbacks: %w", err)
		}
		if r.Conflicts, err = unmarshalConflicts(conflicts); err != nil {
			return nil, fmt.Errorf("list rollbacks: %w", err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("list rollbacks: %w", err)
		}

		rollbacks = append(rollbacks, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rollbacks: %w", err)
	}

	if rollbacks == nil {
		rollbacks = []todo.Rollback{}
	}
	return rollbacks, nil
}
