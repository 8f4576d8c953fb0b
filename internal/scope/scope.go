package scope

import (
	"fmt"

	"github.com/fernworks/docket/internal/todo"
)

// EnforceMode selects the policy applied when validation finds violations.
type EnforceMode string

const (
	// ModeWarn attaches violations to the todo's scope; the save proceeds.
	ModeWarn EnforceMode = "warn"
	// ModeBlock rejects the todo with a validation error.
	ModeBlock EnforceMode = "block"
)

// ValidateEnforceMode checks that mode is warn or block.
// Empty defaults to warn.
func ValidateEnforceMode(mode string) error {
	switch EnforceMode(mode) {
	case ModeWarn, ModeBlock, "":
		return nil
	default:
		return fmt.Errorf("invalid enforce mode %q: must be warn or block", mode)
	}
}

// tierPolicy fixes the default scope per tier. Abstraction and detail
// level are monotonically non-increasing in coarseness down the tree.
// Forbidden lists what the tier's own text may not contain; the detail
// budget (AllowedDetails) starts at everything and only parents narrow it.
type tierPolicy struct {
	abstraction todo.Abstraction
	detailLevel todo.DetailLevel
	forbidden   []todo.DetailType
}

var tierPolicies = map[todo.Tier]tierPolicy{
	todo.TierFeature: {
		abstraction: todo.AbstractionHigh,
		detailLevel: todo.DetailHighLevel,
		forbidden: []todo.DetailType{
			todo.DetailFilePath, todo.DetailCodeIdentifier,
			todo.DetailLineReference, todo.DetailShellCommand,
		},
	},
	todo.TierPhase: {
		abstraction: todo.AbstractionMediumHigh,
		detailLevel: todo.DetailHighLevel,
		forbidden: []todo.DetailType{
			todo.DetailFilePath, todo.DetailCodeIdentifier,
			todo.DetailLineReference, todo.DetailShellCommand,
		},
	},
	todo.TierSession: {
		abstraction: todo.AbstractionMedium,
		detailLevel: todo.DetailFocused,
		// A session may name the component API it focuses on, but file
		// paths, line numbers, and commands stay at task grain.
		forbidden: []todo.DetailType{
			todo.DetailFilePath, todo.DetailLineReference, todo.DetailShellCommand,
		},
	},
	todo.TierTask: {
		abstraction: todo.AbstractionLow,
		detailLevel: todo.DetailGranular,
		forbidden:   nil,
	},
}

// DefaultScope returns the scope a bare todo of the given tier gets.
func DefaultScope(tier todo.Tier) todo.Scope {
	policy := tierPolicies[tier]
	return todo.Scope{
		Level:            tier,
		Abstraction:      policy.abstraction,
		DetailLevel:      policy.detailLevel,
		AllowedDetails:   append([]todo.DetailType(nil), todo.AllDetailTypes...),
		ForbiddenDetails: append([]todo.DetailType(nil), policy.forbidden...),
	}
}

// AssignScope derives a todo's scope from its tier, narrowing the detail
// budget to a subset of the parent's. Scope only ever narrows going down
// the tree, never widens.
func AssignScope(t *todo.Todo, parent *todo.Todo) todo.Scope {
	sc := DefaultScope(t.Tier)
	if parent != nil && parent.Scope != nil {
		sc.AllowedDetails = intersectDetails(sc.AllowedDetails, parent.Scope.AllowedDetails)
		sc.InheritedFrom = parent.ID
	}
	return sc
}

// DetectScopeCreep scans a todo's title and description for markers of a
// finer-grained tier than the todo's scope allows. Pure function, no side
// effects; the todo is not modified.
func DetectScopeCreep(t *todo.Todo, sc todo.Scope) []todo.ScopeViolation {
	var violations []todo.ScopeViolation
	for _, field := range []struct {
		name string
		text string
	}{
		{todo.FieldTitle, t.Title},
		{todo.FieldDescription, t.Description},
	} {
		for _, f := range scanText(field.text) {
			switch {
			case sc.Forbids(f.detail):
				violations = append(violations, todo.ScopeViolation{
					Type:       todo.ViolationForbiddenDetail,
					DetailType: f.detail,
					Field:      field.name,
					Offset:     f.offset,
					Excerpt:    f.excerpt,
					Description: fmt.Sprintf("%s %q is below %s-tier grain",
						f.detail, f.excerpt, sc.Level),
				})
			case !sc.Allows(f.detail):
				violations = append(violations, todo.ScopeViolation{
					Type:       todo.ViolationDisallowedDetail,
					DetailType: f.detail,
					Field:      field.name,
					Offset:     f.offset,
					Excerpt:    f.excerpt,
					Description: fmt.Sprintf("%s %q was narrowed out of this subtree's detail budget",
						f.detail, f.excerpt),
				})
			}
		}
	}
	return violations
}

// Validate checks a todo against its scope (assigning a default scope if
// the todo carries none) and returns the findings. Never errors; an empty
// result means the content fits the tier.
func Validate(t *todo.Todo, parent *todo.Todo) []todo.ScopeViolation {
	sc := effectiveScope(t, parent)
	return DetectScopeCreep(t, sc)
}

// EnforceScope validates and applies the policy for the given mode.
//
// Block mode: any violation rejects the todo with a validation error
// carrying the findings; the todo is not modified.
//
// Warn mode: findings are attached to the todo's scope for later review
// and the caller proceeds with the save. A clean todo gets its violations
// cleared.
func EnforceScope(feature string, t *todo.Todo, parent *todo.Todo, mode EnforceMode) error {
	sc := effectiveScope(t, parent)
	violations := DetectScopeCreep(t, sc)

	if mode == ModeBlock && len(violations) > 0 {
		return todo.NewScopeError(feature, t.ID, violations)
	}

	sc.Violations = violations
	t.Scope = &sc
	return nil
}

func effectiveScope(t *todo.Todo, parent *todo.Todo) todo.Scope {
	if t.Scope != nil {
		return *t.Scope
	}
	return AssignScope(t, parent)
}

func intersectDetails(a, b []todo.DetailType) []todo.DetailType {
	inB := make(map[todo.DetailType]bool, len(b))
	for _, d := range b {
		inB[d] = true
	}
	var out []todo.DetailType
	for _, d := range a {
		if inB[d] {
			out = append(out, d)
		}
	}
	return out
}
