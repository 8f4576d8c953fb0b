package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fernworks/docket/internal/todo"
)

// Timestamps are stored as RFC 3339 TEXT with a fixed-width nine-digit
// fraction in UTC. The width matters: RFC3339Nano trims trailing zeros, and
// a trimmed "...00Z" sorts after "...00.000000001Z" ('.' < 'Z'), which would
// break the `ts > ?` range scans. With every fraction padded to nine digits,
// lexicographic comparison of the stored form agrees with instant order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// marshalStrings serializes a string list column. nil marshals to "[]" so
// columns keep their NOT NULL DEFAULT shape.
func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		return "[]", nil
	}
	data, err := json.Marshal(ss)
	if err != nil {
		return "", fmt.Errorf("marshal string list: %w", err)
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(data), &ss); err != nil {
		return nil, fmt.Errorf("unmarshal string list: %w", err)
	}
	return ss, nil
}

func marshalContexts(ctxs []todo.CitationContext) (string, error) {
	if ctxs == nil {
		return "[]", nil
	}
	data, err := json.Marshal(ctxs)
	if err != nil {
		return "", fmt.Errorf("marshal contexts: %w", err)
	}
	return string(data), nil
}

func unmarshalContexts(data string) ([]todo.CitationContext, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ctxs []todo.CitationContext
	if err := json.Unmarshal([]byte(data), &ctxs); err != nil {
		return nil, fmt.Errorf("unmarshal contexts: %w", err)
	}
	return ctxs, nil
}

// marshalScope serializes an optional scope to a nullable column.
func marshalScope(sc *todo.Scope) (any, error) {
	if sc == nil {
		return nil, nil
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal scope: %w", err)
	}
	return string(data), nil
}

func unmarshalScope(data sql.NullString) (*todo.Scope, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var sc todo.Scope
	if err := json.Unmarshal([]byte(data.String), &sc); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	return &sc, nil
}

// marshalSnapshot serializes a partial before/after snapshot to a nullable
// column. Empty snapshots store NULL rather than "{}".
func marshalSnapshot(snap map[string]any) (any, error) {
	if len(snap) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

func unmarshalSnapshot(data sql.NullString) (map[string]any, error) {
	if !data.Valid || data.String == "" || data.String == "{}" {
		return nil, nil
	}
	var snap map[string]any
	if err := json.Unmarshal([]byte(data.String), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func marshalConflicts(cs []todo.RollbackConflict) (string, error) {
	if cs == nil {
		return "[]", nil
	}
	data, err := json.Marshal(cs)
	if err != nil {
		return "", fmt.Errorf("marshal conflicts: %w", err)
	}
	return string(data), nil
}

func unmarshalConflicts(data string) ([]todo.RollbackConflict, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var cs []todo.RollbackConflict
	if err := json.Unmarshal([]byte(data), &cs); err != nil {
		return nil, fmt.Errorf("unmarshal conflicts: %w", err)
	}
	return cs, nil
}

// marshalState serializes a full todo snapshot for the previous_states table.
func marshalState(t todo.Todo) (string, error) {
	// Citations are engine decoration, not snapshot state.
	t.Citations = nil
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return string(data), nil
}

func unmarshalState(data string) (todo.Todo, error) {
	var t todo.Todo
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return todo.Todo{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return t, nil
}
