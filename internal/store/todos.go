package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fernworks/docket/internal/todo"
)

// GetTodo returns the todo with the given id in the feature partition.
// Absence is an explicit result, not an error: ok=false with a nil error.
func (s *Store) GetTodo(ctx context.Context, feature, id string) (todo.Todo, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, status, tier, parent_id,
		       created_at, updated_at, blocked_by, blocks, tags, scope
		FROM todos
		WHERE feature = ? AND id = ?
	`, feature, id)

	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return todo.Todo{}, false, nil
	}
	if err != nil {
		return todo.Todo{}, false, fmt.Errorf("get todo: %w", err)
	}
	return t, true, nil
}

// SaveTodo validates and upserts a todo in one statement, so concurrent
// readers never observe a half-written record.
//
// Validation:
//   - the id parses and its tier prefix matches the record's tier
//   - status is a known value
//   - a non-feature todo has a parent; the parent exists and its tier
//     immediately precedes the child's (InvalidHierarchy otherwise)
//
// SaveTodo refreshes UpdatedAt (and sets CreatedAt on first save) and
// returns the persisted record. It never writes to the change log; callers
// wanting auditability append an entry explicitly.
func (s *Store) SaveTodo(ctx context.Context, feature string, t todo.Todo) (todo.Todo, error) {
	idTier, _, err := todo.ParseID(t.ID)
	if err != nil {
		return todo.Todo{}, todo.NewValidationError(feature, t.ID, "id", err.Error())
	}
	if idTier != t.Tier {
		return todo.Todo{}, todo.NewValidationError(feature, t.ID, "tier",
			fmt.Sprintf("id encodes tier %q but record claims %q", idTier, t.Tier))
	}
	if !t.Status.Valid() {
		return todo.Todo{}, todo.NewValidationError(feature, t.ID, "status",
			fmt.Sprintf("unknown status %q", t.Status))
	}

	if err := s.validateParent(ctx, feature, &t); err != nil {
		return todo.Todo{}, err
	}

	now := s.now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	blockedBy, err := marshalStrings(t.BlockedBy)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("save todo: %w", err)
	}
	blocks, err := marshalStrings(t.Blocks)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("save todo: %w", err)
	}
	tags, err := marshalStrings(t.Tags)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("save todo: %w", err)
	}
	scope, err := marshalScope(t.Scope)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("save todo: %w", err)
	}

	var parentID any
	if t.ParentID != "" {
		parentID = t.ParentID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO todos
		(feature, id, title, description, status, tier, parent_id,
		 created_at, updated_at, blocked_by, blocks, tags, scope)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feature, id) DO UPDATE SET
			title       = excluded.title,
			description = excluded.description,
			status      = excluded.status,
			tier        = excluded.tier,
			parent_id   = excluded.parent_id,
			updated_at  = excluded.updated_at,
			blocked_by  = excluded.blocked_by,
			blocks      = excluded.blocks,
			tags        = excluded.tags,
			scope       = excluded.scope
	`,
		feature, t.ID, t.Title, t.Description, string(t.Status), string(t.Tier), parentID,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt), blockedBy, blocks, tags, scope,
	)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("save todo: %w", err)
	}

	return t, nil
}

// validateParent enforces the tier adjacency invariant against the stored
// parent record.
func (s *Store) validateParent(ctx context.Context, feature string, t *todo.Todo) error {
	if t.ParentID == "" {
		if t.Tier != todo.TierFeature {
			return todo.NewInvalidHierarchy(feature, t.ID,
				fmt.Sprintf("%s todo requires a parent one tier up", t.Tier))
		}
		return nil
	}

	if t.Tier == todo.TierFeature {
		return todo.NewInvalidHierarchy(feature, t.ID, "feature root must not have a parent")
	}

	parent, ok, err := s.GetTodo(ctx, feature, t.ParentID)
	if err != nil {
		return fmt.Errorf("save todo: load parent: %w", err)
	}
	if !ok {
		return todo.NewInvalidHierarchy(feature, t.ID,
			fmt.Sprintf("parent %q does not exist", t.ParentID))
	}

	expected, _ := parent.Tier.Child()
	if expected != t.Tier {
		return todo.NewInvalidHierarchy(feature, t.ID,
			fmt.Sprintf("parent %q is tier %s; its children must be tier %s, got %s",
				t.ParentID, parent.Tier, expected, t.Tier))
	}
	return nil
}

// ListTodos returns every todo in the feature partition, ordered by tier
// depth and then id so output is deterministic.
func (s *Store) ListTodos(ctx context.Context, feature string) ([]todo.Todo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, status, tier, parent_id,
		       created_at, updated_at, blocked_by, blocks, tags, scope
		FROM todos
		WHERE feature = ?
		ORDER BY CASE tier
			WHEN 'feature' THEN 0
			WHEN 'phase' THEN 1
			WHEN 'session' THEN 2
			ELSE 3
		END ASC, id COLLATE BINARY ASC
	`, feature)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	var todos []todo.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("list todos: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}

	if todos == nil {
		todos = []todo.Todo{}
	}
	return todos, nil
}

// ListChildren returns the direct children of a todo, same ordering as
// ListTodos.
func (s *Store) ListChildren(ctx context.Context, feature, parentID string) ([]todo.Todo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, status, tier, parent_id,
		       created_at, updated_at, blocked_by, blocks, tags, scope
		FROM todos
		WHERE feature = ? AND parent_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, feature, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var todos []todo.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("list children: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}

	if todos == nil {
		todos = []todo.Todo{}
	}
	return todos, nil
}

// DeleteTodo removes a todo row. Cancellation is the normal end state;
// deletion is reserved for callers that have already appended a `deleted`
// change-log entry for the todo.
func (s *Store) DeleteTodo(ctx context.Context, feature, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM todos WHERE feature = ? AND id = ?
	`, feature, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo: rows affected: %w", err)
	}
	if n == 0 {
		return todo.NewNotFound(feature, "todo", id)
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (todo.Todo, error) {
	var (
		t          todo.Todo
		status     string
		tier       string
		parentID   sql.NullString
		createdAt  string
		updatedAt  string
		blockedBy  string
		blocks     string
		tags       string
		scopeJSON  sql.NullString
	)

	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &tier, &parentID,
		&createdAt, &updatedAt, &blockedBy, &blocks, &tags, &scopeJSON)
	if err != nil {
		return todo.Todo{}, err
	}

	t.Status = todo.Status(status)
	t.Tier = todo.Tier(tier)
	if parentID.Valid {
		t.ParentID = parentID.String
	}

	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return todo.Todo{}, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return todo.Todo{}, err
	}
	if t.BlockedBy, err = unmarshalStrings(blockedBy); err != nil {
		return todo.Todo{}, err
	}
	if t.Blocks, err = unmarshalStrings(blocks); err != nil {
		return todo.Todo{}, err
	}
	if t.Tags, err = unmarshalStrings(tags); err != nil {
		return todo.Todo{}, err
	}
	if t.Scope, err = unmarshalScope(scopeJSON); err != nil {
		return todo.Todo{}, err
	}

	return t, nil
}
