package citation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fernworks/docket/internal/store"
	"github.com/fernworks/docket/internal/todo"
)

// Engine is the citation engine for one opened store.
type Engine struct {
	store *store.Store
	now   func() time.Time
}

// NewEngine creates a citation engine over the store.
func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s, now: time.Now}
}

// SetClock replaces the engine's wall clock for deterministic tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Metadata carries the optional citation fields.
type Metadata struct {
	Reason           string
	Impact           string
	AffectedTodos    []string
	RequiresReview   bool
	ReviewDeadline   *time.Time
	RelatedCitations []string
}

// Create attaches a citation to a todo, referencing a change-log entry.
// The entry must exist; the citation id is assigned here.
func (e *Engine) Create(ctx context.Context, feature, todoID, changeLogID string,
	ctype todo.CitationType, contexts []todo.CitationContext, priority todo.Priority,
	meta *Metadata) (todo.Citation, error) {

	if !priority.Valid() {
		return todo.Citation{}, todo.NewValidationError(feature, todoID, "priority",
			fmt.Sprintf("unknown priority %q", priority))
	}
	for _, junction := range contexts {
		if !todo.ValidContexts[junction] {
			return todo.Citation{}, todo.NewValidationError(feature, todoID, "context",
				fmt.Sprintf("unknown junction %q", junction))
		}
	}

	if _, ok, err := e.store.GetChange(ctx, feature, changeLogID); err != nil {
		return todo.Citation{}, fmt.Errorf("create citation: %w", err)
	} else if !ok {
		return todo.Citation{}, todo.NewNotFound(feature, "changelog entry", changeLogID)
	}

	c := todo.Citation{
		ID:          uuid.NewString(),
		TodoID:      todoID,
		ChangeLogID: changeLogID,
		Type:        ctype,
		Priority:    priority,
		Context:     contexts,
		CreatedAt:   e.now().UTC(),
	}
	if meta != nil {
		c.Reason = meta.Reason
		c.Impact = meta.Impact
		c.AffectedTodos = meta.AffectedTodos
		c.RequiresReview = meta.RequiresReview
		c.ReviewDeadline = meta.ReviewDeadline
		c.RelatedCitations = meta.RelatedCitations
	}

	if err := e.store.InsertCitation(ctx, feature, c); err != nil {
		return todo.Citation{}, fmt.Errorf("create citation: %w", err)
	}
	return c, nil
}

// CreateFromChange creates a citation whose type and priority are inferred
// from the referenced entry via the citability table. Returns nil (and no
// error) when the entry's change type is not citation-worthy.
//
// Entries that triggered propagation escalate the base priority one step.
func (e *Engine) CreateFromChange(ctx context.Context, feature, todoID, changeLogID string,
	contexts []todo.CitationContext) (*todo.Citation, error) {

	entry, ok, err := e.store.GetChange(ctx, feature, changeLogID)
	if err != nil {
		return nil, fmt.Errorf("create citation from change: %w", err)
	}
	if !ok {
		return nil, todo.NewNotFound(feature, "changelog entry", changeLogID)
	}

	rule, known := citability[entry.ChangeType]
	if !known || !rule.Citable {
		return nil, nil
	}

	priority := rule.Priority
	if entry.PropagationTriggered {
		priority = bumpPriority(priority)
	}

	meta := &Metadata{
		Reason:         entry.Reason,
		RequiresReview: priority.AtLeast(todo.PriorityHigh),
	}

	c, err := e.Create(ctx, feature, todoID, changeLogID, rule.Type, contexts, priority, meta)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Lookup returns a todo's live citations, oldest first, optionally
// filtered to one junction (empty junction means all). Dismissed
// citations never appear.
func (e *Engine) Lookup(ctx context.Context, feature, todoID string, junction todo.CitationContext) ([]todo.Citation, error) {
	all, err := e.store.ListCitationsForTodo(ctx, feature, todoID)
	if err != nil {
		return nil, fmt.Errorf("lookup citations: %w", err)
	}

	citations := []todo.Citation{}
	for _, c := range all {
		if c.Dismissed() {
			continue
		}
		if junction != "" && !c.InContext(junction) {
			continue
		}
		citations = append(citations, c)
	}
	return citations, nil
}

// Review marks a citation reviewed. Idempotent: the first review instant
// is kept. Reviewing a dismissed citation is rejected.
func (e *Engine) Review(ctx context.Context, feature, todoID, citationID string) error {
	c, ok, err := e.store.GetCitation(ctx, feature, todoID, citationID)
	if err != nil {
		return fmt.Errorf("review citation: %w", err)
	}
	if !ok {
		return todo.NewNotFound(feature, "citation", citationID)
	}
	if c.Dismissed() {
		return todo.NewValidationError(feature, todoID, "citation",
			fmt.Sprintf("citation %q is dismissed and cannot be reviewed", citationID))
	}
	return e.store.MarkCitationReviewed(ctx, feature, todoID, citationID)
}

// Dismiss terminally dismisses a citation. Idempotent.
func (e *Engine) Dismiss(ctx context.Context, feature, todoID, citationID string) error {
	_, ok, err := e.store.GetCitation(ctx, feature, todoID, citationID)
	if err != nil {
		return fmt.Errorf("dismiss citation: %w", err)
	}
	if !ok {
		return todo.NewNotFound(feature, "citation", citationID)
	}
	return e.store.MarkCitationDismissed(ctx, feature, todoID, citationID)
}

// QueryFilter selects citations for feature-wide reporting.
// Zero values mean "no constraint".
type QueryFilter struct {
	TodoID           string
	Type             todo.CitationType
	MinPriority      todo.Priority
	Reviewed         *bool
	IncludeDismissed bool
}

// Query returns the feature's citations matching the filter, oldest first.
// Reporting only; gating decisions go through Lookup and the trigger engine.
func (e *Engine) Query(ctx context.Context, feature string, filter QueryFilter) ([]todo.Citation, error) {
	all, err := e.store.ListCitations(ctx, feature)
	if err != nil {
		return nil, fmt.Errorf("query citations: %w", err)
	}

	citations := []todo.Citation{}
	for _, c := range all {
		if !filter.IncludeDismissed && c.Dismissed() {
			continue
		}
		if filter.TodoID != "" && c.TodoID != filter.TodoID {
			continue
		}
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if filter.MinPriority != "" && !c.Priority.AtLeast(filter.MinPriority) {
			continue
		}
		if filter.Reviewed != nil && c.Reviewed() != *filter.Reviewed {
			continue
		}
		citations = append(citations, c)
	}
	return citations, nil
}
