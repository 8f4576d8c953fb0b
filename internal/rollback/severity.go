package rollback

import "github.com/fernworks/docket/internal/todo"

// DefaultSeverity maps each snapshot field to the severity of losing a
// concurrent change to it during rollback. The mapping is configuration,
// not inference: overrides come in through NewEngineWithSeverity.
//
// Status and hierarchy moves change what work means and who owns it, so
// clobbering them blocks. Prose and labels are recoverable.
func DefaultSeverity() map[string]todo.Priority {
	return map[string]todo.Priority{
		todo.FieldStatus:      todo.PriorityHigh,
		todo.FieldParentID:    todo.PriorityHigh,
		todo.FieldTitle:       todo.PriorityMedium,
		todo.FieldBlockedBy:   todo.PriorityMedium,
		todo.FieldBlocks:      todo.PriorityMedium,
		todo.FieldScope:       todo.PriorityMedium,
		todo.FieldDescription: todo.PriorityLow,
		todo.FieldTags:        todo.PriorityLow,
	}
}

// severityOf returns the configured severity for a field, defaulting to
// medium for fields missing from the table.
func (e *Engine) severityOf(field string) todo.Priority {
	if sev, ok := e.severity[field]; ok {
		return sev
	}
	return todo.PriorityMedium
}
