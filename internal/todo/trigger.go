package todo

// TriggerAction is what the caller should do when a trigger fires.
type TriggerAction string

const (
	// ActionShowCitations surfaces the justifying citations for display.
	ActionShowCitations TriggerAction = "show_citations"
	// ActionBlockUntilReview tells the caller to hold the workflow until
	// the justifying citations are reviewed.
	ActionBlockUntilReview TriggerAction = "block_until_review"
)

// ConditionType discriminates the condition variants a trigger may carry.
// The set is closed: the trigger package evaluates each type in a single
// dispatcher, so every variant is handled exhaustively there.
type ConditionType string

const (
	// CondUnreviewedCitations holds when the todo has unreviewed,
	// undismissed citations at or above MinPriority.
	CondUnreviewedCitations ConditionType = "unreviewed_citations"
	// CondRollbackConflicts holds when the todo has rollback records with
	// unresolved conflicts at or above MinSeverity.
	CondRollbackConflicts ConditionType = "rollback_conflicts"
	// CondStatusChanged holds when the todo (or its parent/children, per
	// Relation) had a status change within WithinHours.
	CondStatusChanged ConditionType = "status_changed"
	// CondCitationOverdue holds when the todo has an unreviewed citation
	// whose review deadline has elapsed.
	CondCitationOverdue ConditionType = "citation_overdue"
)

// Relation selects whose changes a status_changed condition inspects.
type Relation string

const (
	RelationSelf   Relation = "self"
	RelationParent Relation = "parent"
	RelationChild  Relation = "child"
)

// TriggerCondition is a tagged variant: Type selects which payload fields
// apply. Unused fields stay at their zero values.
type TriggerCondition struct {
	Type ConditionType `json:"type" yaml:"type"`

	// MinPriority applies to unreviewed_citations.
	MinPriority Priority `json:"min_priority,omitempty" yaml:"min_priority,omitempty"`
	// MinSeverity applies to rollback_conflicts.
	MinSeverity Priority `json:"min_severity,omitempty" yaml:"min_severity,omitempty"`
	// Relation and WithinHours apply to status_changed.
	Relation    Relation `json:"relation,omitempty" yaml:"relation,omitempty"`
	WithinHours int      `json:"within_hours,omitempty" yaml:"within_hours,omitempty"`
}

// TriggerDefinition declares a trigger evaluated at one workflow junction.
// Definitions are static configuration, not per-feature state.
type TriggerDefinition struct {
	ID           string             `json:"id" yaml:"id"`
	Name         string             `json:"name" yaml:"name"`
	Junction     CitationContext    `json:"junction" yaml:"junction"`
	Conditions   []TriggerCondition `json:"conditions" yaml:"conditions"`
	Priority     Priority           `json:"priority" yaml:"priority"`
	Suppressible bool               `json:"suppressible" yaml:"suppressible"`
	Action       TriggerAction      `json:"action" yaml:"action"`
}
