package trigger

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fernworks/docket/internal/todo"
)

// DefaultDefinitions returns the built-in trigger set. Callers can replace
// or extend it with LoadDefinitions.
func DefaultDefinitions() []todo.TriggerDefinition {
	return []todo.TriggerDefinition{
		{
			ID:       "session-start-unreviewed",
			Name:     "Unreviewed citations at session start",
			Junction: todo.ContextSessionStart,
			Conditions: []todo.TriggerCondition{
				{Type: todo.CondUnreviewedCitations, MinPriority: todo.PriorityMedium},
			},
			Priority:     todo.PriorityHigh,
			Suppressible: true,
			Action:       todo.ActionShowCitations,
		},
		{
			ID:       "session-start-critical",
			Name:     "Critical citations block session start",
			Junction: todo.ContextSessionStart,
			Conditions: []todo.TriggerCondition{
				{Type: todo.CondUnreviewedCitations, MinPriority: todo.PriorityCritical},
			},
			Priority:     todo.PriorityCritical,
			Suppressible: false,
			Action:       todo.ActionBlockUntilReview,
		},
		{
			ID:       "phase-start-conflicts",
			Name:     "Unresolved rollback conflicts at phase start",
			Junction: todo.ContextPhaseStart,
			Conditions: []todo.TriggerCondition{
				{Type: todo.CondRollbackConflicts, MinSeverity: todo.PriorityHigh},
			},
			Priority:     todo.PriorityHigh,
			Suppressible: false,
			Action:       todo.ActionBlockUntilReview,
		},
		{
			ID:       "task-start-parent-status",
			Name:     "Parent status changed before task start",
			Junction: todo.ContextTaskStart,
			Conditions: []todo.TriggerCondition{
				{Type: todo.CondStatusChanged, Relation: todo.RelationParent, WithinHours: 24},
			},
			Priority:     todo.PriorityMedium,
			Suppressible: true,
			Action:       todo.ActionShowCitations,
		},
		{
			ID:       "session-end-overdue",
			Name:     "Overdue citation reviews at session end",
			Junction: todo.ContextSessionEnd,
			Conditions: []todo.TriggerCondition{
				{Type: todo.CondCitationOverdue},
			},
			Priority:     todo.PriorityMedium,
			Suppressible: true,
			Action:       todo.ActionShowCitations,
		},
	}
}

// LoadDefinitions reads trigger definitions from a YAML file.
// The file holds a list of definitions; every entry is validated.
func LoadDefinitions(path string) ([]todo.TriggerDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load trigger definitions: %w", err)
	}

	var defs []todo.TriggerDefinition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("load trigger definitions: parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(defs))
	for i := range defs {
		if err := ValidateDefinition(&defs[i]); err != nil {
			return nil, fmt.Errorf("load trigger definitions: %s: %w", path, err)
		}
		if seen[defs[i].ID] {
			return nil, fmt.Errorf("load trigger definitions: %s: duplicate trigger id %q", path, defs[i].ID)
		}
		seen[defs[i].ID] = true
	}
	return defs, nil
}

// ValidateDefinition checks a definition's enums and condition payloads.
func ValidateDefinition(def *todo.TriggerDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("trigger definition missing id")
	}
	if !todo.ValidContexts[def.Junction] {
		return fmt.Errorf("trigger %q: unknown junction %q", def.ID, def.Junction)
	}
	if !def.Priority.Valid() {
		return fmt.Errorf("trigger %q: unknown priority %q", def.ID, def.Priority)
	}
	switch def.Action {
	case todo.ActionShowCitations, todo.ActionBlockUntilReview:
	default:
		return fmt.Errorf("trigger %q: unknown action %q", def.ID, def.Action)
	}
	if len(def.Conditions) == 0 {
		return fmt.Errorf("trigger %q: at least one condition required", def.ID)
	}
	for _, cond := range def.Conditions {
		if err := validateCondition(def.ID, cond); err != nil {
			return err
		}
	}
	return nil
}

func validateCondition(triggerID string, cond todo.TriggerCondition) error {
	switch cond.Type {
	case todo.CondUnreviewedCitations:
		if cond.MinPriority != "" && !cond.MinPriority.Valid() {
			return fmt.Errorf("trigger %q: unknown min_priority %q", triggerID, cond.MinPriority)
		}
	case todo.CondRollbackConflicts:
		if cond.MinSeverity != "" && !cond.MinSeverity.Valid() {
			return fmt.Errorf("trigger %q: unknown min_severity %q", triggerID, cond.MinSeverity)
		}
	case todo.CondStatusChanged:
		switch cond.Relation {
		case todo.RelationSelf, todo.RelationParent, todo.RelationChild, "":
		default:
			return fmt.Errorf("trigger %q: unknown relation %q", triggerID, cond.Relation)
		}
		if cond.WithinHours < 0 {
			return fmt.Errorf("trigger %q: negative within_hours", triggerID)
		}
	case todo.CondCitationOverdue:
		// No payload.
	default:
		return fmt.Errorf("trigger %q: unknown condition type %q", triggerID, cond.Type)
	}
	return nil
}
