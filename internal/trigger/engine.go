package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/fernworks/docket/internal/citation"
	"github.com/fernworks/docket/internal/store"
	"github.com/fernworks/docket/internal/todo"
)

// defaultStatusWindow bounds status_changed conditions that leave
// within_hours unset.
const defaultStatusWindow = 24 * time.Hour

// Context carries the workflow state a junction is evaluated against.
type Context struct {
	// TodoID is the todo at the junction (the session being started, the
	// task being completed, ...).
	TodoID string
}

// Engine evaluates trigger definitions against live citation and
// change-log state.
type Engine struct {
	store     *store.Store
	citations *citation.Engine
	defs      []todo.TriggerDefinition
	now       func() time.Time
}

// NewEngine creates a trigger engine with the built-in definitions.
func NewEngine(s *store.Store, citations *citation.Engine) *Engine {
	return NewEngineWithDefinitions(s, citations, DefaultDefinitions())
}

// NewEngineWithDefinitions creates a trigger engine with an explicit
// definition set (e.g. loaded from YAML).
func NewEngineWithDefinitions(s *store.Store, citations *citation.Engine, defs []todo.TriggerDefinition) *Engine {
	return &Engine{store: s, citations: citations, defs: defs, now: time.Now}
}

// SetClock replaces the engine's wall clock for deterministic tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Definitions returns the configured trigger definitions.
func (e *Engine) Definitions() []todo.TriggerDefinition {
	return e.defs
}

// Detect returns the triggers that fire at the junction: junction matches,
// every condition holds, and no suppression window is active.
func (e *Engine) Detect(ctx context.Context, feature string, junction todo.CitationContext, tc Context) ([]todo.TriggerDefinition, error) {
	if !todo.ValidContexts[junction] {
		return nil, todo.NewValidationError(feature, tc.TodoID, "junction",
			fmt.Sprintf("unknown junction %q", junction))
	}

	fired := []todo.TriggerDefinition{}
	for _, def := range e.defs {
		if def.Junction != junction {
			continue
		}

		suppressed, err := e.suppressed(ctx, feature, def.ID)
		if err != nil {
			return nil, err
		}
		if suppressed {
			continue
		}

		all := true
		for _, cond := range def.Conditions {
			holds, err := e.holds(ctx, feature, junction, cond, tc)
			if err != nil {
				return nil, err
			}
			if !holds {
				all = false
				break
			}
		}
		if all {
			fired = append(fired, def)
		}
	}
	return fired, nil
}

// Activate returns the concrete citations that justify a firing, for
// display. Citations irrelevant to the trigger's conditions are filtered
// out; dismissed citations never appear.
func (e *Engine) Activate(ctx context.Context, feature string, def todo.TriggerDefinition, tc Context) ([]todo.Citation, error) {
	live, err := e.citations.Lookup(ctx, feature, tc.TodoID, def.Junction)
	if err != nil {
		return nil, fmt.Errorf("activate trigger: %w", err)
	}

	justifying := []todo.Citation{}
	for _, c := range live {
		for _, cond := range def.Conditions {
			if citationJustifies(cond, c, e.now().UTC()) {
				justifying = append(justifying, c)
				break
			}
		}
	}
	return justifying, nil
}

// Suppress records a suppression window for a trigger. Non-suppressible
// triggers reject the request.
func (e *Engine) Suppress(ctx context.Context, feature, triggerID string, durationHours int) error {
	var def *todo.TriggerDefinition
	for i := range e.defs {
		if e.defs[i].ID == triggerID {
			def = &e.defs[i]
			break
		}
	}
	if def == nil {
		return todo.NewNotFound(feature, "trigger", triggerID)
	}
	if !def.Suppressible {
		return todo.NewNotSuppressible(feature, triggerID)
	}
	if durationHours <= 0 {
		return todo.NewValidationError(feature, "", "duration",
			"suppression duration must be positive")
	}

	until := e.now().UTC().Add(time.Duration(durationHours) * time.Hour)
	return e.store.UpsertSuppression(ctx, feature, triggerID, until)
}

// suppressed reports whether a trigger's suppression window is active.
func (e *Engine) suppressed(ctx context.Context, feature, triggerID string) (bool, error) {
	until, ok, err := e.store.GetSuppression(ctx, feature, triggerID)
	if err != nil {
		return false, fmt.Errorf("detect triggers: %w", err)
	}
	return ok && e.now().UTC().Before(until), nil
}

// holds is the single dispatcher over the closed condition set.
func (e *Engine) holds(ctx context.Context, feature string, junction todo.CitationContext, cond todo.TriggerCondition, tc Context) (bool, error) {
	switch cond.Type {
	case todo.CondUnreviewedCitations:
		live, err := e.citations.Lookup(ctx, feature, tc.TodoID, junction)
		if err != nil {
			return false, fmt.Errorf("evaluate %s: %w", cond.Type, err)
		}
		min := cond.MinPriority
		if min == "" {
			min = todo.PriorityLow
		}
		for _, c := range live {
			if !c.Reviewed() && c.Priority.AtLeast(min) {
				return true, nil
			}
		}
		return false, nil

	case todo.CondRollbackConflicts:
		rollbacks, err := e.store.ListRollbacks(ctx, feature, tc.TodoID)
		if err != nil {
			return false, fmt.Errorf("evaluate %s: %w", cond.Type, err)
		}
		min := cond.MinSeverity
		if min == "" {
			min = todo.PriorityHigh
		}
		for _, rb := range rollbacks {
			if rb.Status != todo.RollbackConflicted {
				continue
			}
			for _, c := range rb.Conflicts {
				if c.Severity.AtLeast(min) {
					return true, nil
				}
			}
		}
		return false, nil

	case todo.CondStatusChanged:
		subjects, err := e.statusSubjects(ctx, feature, cond.Relation, tc.TodoID)
		if err != nil {
			return false, err
		}
		window := defaultStatusWindow
		if cond.WithinHours > 0 {
			window = time.Duration(cond.WithinHours) * time.Hour
		}
		since := e.now().UTC().Add(-window)
		for _, subject := range subjects {
			entries, err := e.store.ReadChangesForTodo(ctx, feature, subject, since)
			if err != nil {
				return false, fmt.Errorf("evaluate %s: %w", cond.Type, err)
			}
			for _, entry := range entries {
				if entry.ChangeType == todo.ChangeStatusChanged {
					return true, nil
				}
			}
		}
		return false, nil

	case todo.CondCitationOverdue:
		live, err := e.citations.Lookup(ctx, feature, tc.TodoID, junction)
		if err != nil {
			return false, fmt.Errorf("evaluate %s: %w", cond.Type, err)
		}
		now := e.now().UTC()
		for _, c := range live {
			if c.Overdue(now) {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, todo.NewValidationError(feature, tc.TodoID, "condition",
			fmt.Sprintf("unknown condition type %q", cond.Type))
	}
}

// statusSubjects resolves which todos a status_changed condition inspects.
func (e *Engine) statusSubjects(ctx context.Context, feature string, rel todo.Relation, todoID string) ([]string, error) {
	switch rel {
	case todo.RelationSelf, "":
		return []string{todoID}, nil

	case todo.RelationParent:
		t, ok, err := e.store.GetTodo(ctx, feature, todoID)
		if err != nil {
			return nil, fmt.Errorf("evaluate status_changed: %w", err)
		}
		if !ok || t.ParentID == "" {
			return nil, nil
		}
		return []string{t.ParentID}, nil

	case todo.RelationChild:
		children, err := e.store.ListChildren(ctx, feature, todoID)
		if err != nil {
			return nil, fmt.Errorf("evaluate status_changed: %w", err)
		}
		ids := make([]string, len(children))
		for i, c := range children {
			ids[i] = c.ID
		}
		return ids, nil

	default:
		return nil, todo.NewValidationError(feature, todoID, "relation",
			fmt.Sprintf("unknown relation %q", rel))
	}
}

// citationJustifies reports whether a citation is evidence for a
// condition's firing.
func citationJustifies(cond todo.TriggerCondition, c todo.Citation, now time.Time) bool {
	switch cond.Type {
	case todo.CondUnreviewedCitations:
		min := cond.MinPriority
		if min == "" {
			min = todo.PriorityLow
		}
		return !c.Reviewed() && c.Priority.AtLeast(min)
	case todo.CondCitationOverdue:
		return c.Overdue(now)
	case todo.CondStatusChanged:
		return c.Type == todo.CitationStatusChange
	case todo.CondRollbackConflicts:
		return c.Type == todo.CitationRollback
	default:
		return false
	}
}
