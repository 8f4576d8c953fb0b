package todo

import "time"

// CitationContext names a workflow junction at which citations surface and
// triggers are evaluated. Closed enumeration shared with the change log and
// the trigger package.
type CitationContext string

const (
	ContextSessionStart CitationContext = "session-start"
	ContextSessionEnd   CitationContext = "session-end"
	ContextPhaseStart   CitationContext = "phase-start"
	ContextPhaseEnd     CitationContext = "phase-end"
	ContextTaskStart    CitationContext = "task-start"
	ContextTaskComplete CitationContext = "task-complete"
)

// ValidContexts is the closed set of workflow junctions.
var ValidContexts = map[CitationContext]bool{
	ContextSessionStart: true,
	ContextSessionEnd:   true,
	ContextPhaseStart:   true,
	ContextPhaseEnd:     true,
	ContextTaskStart:    true,
	ContextTaskComplete: true,
}

// CitationType categorizes what kind of upstream change a citation carries.
type CitationType string

const (
	CitationStatusChange    CitationType = "status_change"
	CitationContentChange   CitationType = "content_change"
	CitationStructureChange CitationType = "structure_change"
	CitationPropagation     CitationType = "propagation"
	CitationRollback        CitationType = "rollback"
)

// Citation is a directed edge from a todo to a change-log entry it should
// be aware of.
//
// Lifecycle: created alongside (or shortly after) the triggering entry;
// reviewed sets ReviewedAt and is idempotent; dismissed is terminal and
// permanently excludes the citation from lookups and trigger activation.
type Citation struct {
	ID          string            `json:"id"`
	TodoID      string            `json:"todo_id"`
	ChangeLogID string            `json:"changelog_id"`
	Type        CitationType      `json:"type"`
	Priority    Priority          `json:"priority"`
	Context     []CitationContext `json:"context"`
	CreatedAt   time.Time         `json:"created_at"`
	ReviewedAt  *time.Time        `json:"reviewed_at,omitempty"`
	DismissedAt *time.Time        `json:"dismissed_at,omitempty"`

	// Optional metadata.
	Reason           string     `json:"reason,omitempty"`
	Impact           string     `json:"impact,omitempty"`
	AffectedTodos    []string   `json:"affected_todos,omitempty"`
	RequiresReview   bool       `json:"requires_review,omitempty"`
	ReviewDeadline   *time.Time `json:"review_deadline,omitempty"`
	RelatedCitations []string   `json:"related_citations,omitempty"`
}

// Reviewed reports whether the citation has been reviewed.
func (c *Citation) Reviewed() bool { return c.ReviewedAt != nil }

// Dismissed reports whether the citation is terminally dismissed.
func (c *Citation) Dismissed() bool { return c.DismissedAt != nil }

// InContext reports whether the citation is relevant at the given junction.
// A citation with no contexts is relevant everywhere.
func (c *Citation) InContext(junction CitationContext) bool {
	if len(c.Context) == 0 {
		return true
	}
	for _, ctx := range c.Context {
		if ctx == junction {
			return true
		}
	}
	return false
}

// Overdue reports whether the citation has an elapsed review deadline and
// is still unreviewed.
func (c *Citation) Overdue(now time.Time) bool {
	return c.ReviewDeadline != nil && !c.Reviewed() && !c.Dismissed() && now.After(*c.ReviewDeadline)
}
