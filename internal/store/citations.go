package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fernworks/docket/internal/todo"
)

const citationColumns = `id, todo_id, changelog_id, type, priority, context,
		       created_at, reviewed_at, dismissed_at, reason, impact,
		       affected_todos, requires_review, review_deadline, related_citations`

// InsertCitation persists a new citation. Citation ids are caller-assigned
// (uuid); a duplicate id is an error, not an upsert.
func (s *Store) InsertCitation(ctx context.Context, feature string, c todo.Citation) error {
	contexts, err := marshalContexts(c.Context)
	if err != nil {
		return fmt.Errorf("insert citation: %w", err)
	}
	affected, err := marshalStrings(c.AffectedTodos)
	if err != nil {
		return fmt.Errorf("insert citation: %w", err)
	}
	related, err := marshalStrings(c.RelatedCitations)
	if err != nil {
		return fmt.Errorf("insert citation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO citations
		(feature, id, todo_id, changelog_id, type, priority, context,
		 created_at, reviewed_at, dismissed_at, reason, impact,
		 affected_todos, requires_review, review_deadline, related_citations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		feature, c.ID, c.TodoID, c.ChangeLogID, string(c.Type), string(c.Priority), contexts,
		formatTime(c.CreatedAt), formatNullableTime(c.ReviewedAt), formatNullableTime(c.DismissedAt),
		c.Reason, c.Impact, affected, c.RequiresReview,
		formatNullableTime(c.ReviewDeadline), related,
	)
	if err != nil {
		return fmt.Errorf("insert citation: %w", err)
	}
	return nil
}

// GetCitation returns one citation by id, scoped to a todo.
// Absence is ok=false with a nil error.
func (s *Store) GetCitation(ctx context.Context, feature, todoID, citationID string) (todo.Citation, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+citationColumns+`
		FROM citations
		WHERE feature = ? AND todo_id = ? AND id = ?
	`, feature, todoID, citationID)

	c, err := scanCitation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return todo.Citation{}, false, nil
	}
	if err != nil {
		return todo.Citation{}, false, fmt.Errorf("get citation: %w", err)
	}
	return c, true, nil
}

// ListCitationsForTodo returns every citation attached to a todo, including
// dismissed ones, oldest first. The citation engine filters lifecycle state.
func (s *Store) ListCitationsForTodo(ctx context.Context, feature, todoID string) ([]todo.Citation, error) {
	return s.listCitations(ctx, `
		SELECT `+citationColumns+`
		FROM citations
		WHERE feature = ? AND todo_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, feature, todoID)
}

// ListCitations returns every citation in the feature partition, oldest
// first. Used by feature-wide reporting queries.
func (s *Store) ListCitations(ctx context.Context, feature string) ([]todo.Citation, error) {
	return s.listCitations(ctx, `
		SELECT `+citationColumns+`
		FROM citations
		WHERE feature = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, feature)
}

// MarkCitationReviewed sets reviewed_at if not already set. Idempotent:
// reviewing twice leaves the original review instant in place.
func (s *Store) MarkCitationReviewed(ctx context.Context, feature, todoID, citationID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE citations
		SET reviewed_at = COALESCE(reviewed_at, ?)
		WHERE feature = ? AND todo_id = ? AND id = ?
	`, formatTime(s.now()), feature, todoID, citationID)
	if err != nil {
		return fmt.Errorf("mark citation reviewed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark citation reviewed: rows affected: %w", err)
	}
	if n == 0 {
		return todo.NewNotFound(feature, "citation", citationID)
	}
	return nil
}

// MarkCitationDismissed sets dismissed_at. Terminal: dismissed citations
// are excluded from lookups and trigger activation forever.
func (s *Store) MarkCitationDismissed(ctx context.Context, feature, todoID, citationID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE citations
		SET dismissed_at = COALESCE(dismissed_at, ?)
		WHERE feature = ? AND todo_id = ? AND id = ?
	`, formatTime(s.now()), feature, todoID, citationID)
	if err != nil {
		return fmt.Errorf("mark citation dismissed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark citation dismissed: rows affected: %w", err)
	}
	if n == 0 {
		return todo.NewNotFound(feature, "citation", citationID)
	}
	return nil
}

func (s *Store) listCitations(ctx context.Context, query string, args ...any) ([]todo.Citation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}
	defer rows.Close()

	var citations []todo.Citation
	for rows.Next() {
		c, err := scanCitation(rows)
		if err != nil {
			return nil, fmt.Errorf("list citations: %w", err)
		}
		citations = append(citations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}

	if citations == nil {
		citations = []todo.Citation{}
	}
	return citations, nil
}

func scanCitation(row rowScanner) (todo.Citation, error) {
	var (
		c          todo.Citation
		ctype      string
		priority   string
		contexts   string
		createdAt  string
		reviewedAt sql.NullString
		dismissed  sql.NullString
		affected   string
		deadline   sql.NullString
		related    string
	)

	err := row.Scan(&c.ID, &c.TodoID, &c.ChangeLogID, &ctype, &priority, &contexts,
		&createdAt, &reviewedAt, &dismissed, &c.Reason, &c.Impact,
		&affected, &c.RequiresReview, &deadline, &related)
	if err != nil {
		return todo.Citation{}, err
	}

	c.Type = todo.CitationType(ctype)
	c.Priority = todo.Priority(priority)

	if c.Context, err = unmarshalContexts(contexts); err != nil {
		return todo.Citation{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return todo.Citation{}, err
	}
	if c.ReviewedAt, err = parseNullableTime(reviewedAt); err != nil {
		return todo.Citation{}, err
	}
	if c.DismissedAt, err = parseNullableTime(dismissed); err != nil {
		return todo.Citation{}, err
	}
	if c.AffectedTodos, err = unmarshalStrings(affected); err != nil {
		return todo.Citation{}, err
	}
	if c.ReviewDeadline, err = parseNullableTime(deadline); err != nil {
		return todo.Citation{}, err
	}
	if c.RelatedCitations, err = unmarshalStrings(related); err != nil {
		return todo.Citation{}, err
	}

	return c, nil
}
