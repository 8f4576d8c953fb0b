package todo

import (
	"fmt"
	"strings"
)

// Todo ids follow the dotted hierarchy format: `{tier}-{identifier}`.
// The feature root carries the feature name with no numeric suffix
// (`feature-auth`); lower tiers carry dotted numeric identifiers whose
// depth matches the tier: `phase-2`, `session-2.1`, `task-2.1.3`.

// ParseID splits a todo id into its tier prefix and identifier, validating
// that the identifier's dotted depth agrees with the tier.
func ParseID(id string) (Tier, string, error) {
	tierStr, ident, ok := strings.Cut(id, "-")
	if !ok || ident == "" {
		return "", "", fmt.Errorf("malformed todo id %q: want {tier}-{identifier}", id)
	}

	tier := Tier(tierStr)
	if !tier.Valid() {
		return "", "", fmt.Errorf("malformed todo id %q: unknown tier %q", id, tierStr)
	}

	if tier == TierFeature {
		// Feature roots are named, not numbered.
		if isDottedNumeric(ident) {
			return "", "", fmt.Errorf("malformed todo id %q: feature identifier must not be numeric", id)
		}
		return tier, ident, nil
	}

	segments := strings.Split(ident, ".")
	if len(segments) != tier.Depth() {
		return "", "", fmt.Errorf("malformed todo id %q: %s identifier needs %d dotted segment(s), got %d",
			id, tier, tier.Depth(), len(segments))
	}
	for _, seg := range segments {
		if !isNumeric(seg) {
			return "", "", fmt.Errorf("malformed todo id %q: non-numeric segment %q", id, seg)
		}
	}
	return tier, ident, nil
}

// FormatID builds a todo id from a tier and identifier.
func FormatID(tier Tier, ident string) string {
	return string(tier) + "-" + ident
}

// StructuralParentID derives the parent todo id encoded in a dotted id by
// dropping the last segment: task-2.1.3 → session-2.1, session-2.1 → phase-2.
// Returns ("", false) for feature roots and for phases, whose parent is the
// named feature root and cannot be derived from the numeric identifier.
func StructuralParentID(id string) (string, bool) {
	tier, ident, err := ParseID(id)
	if err != nil {
		return "", false
	}
	parentTier, ok := tier.Parent()
	if !ok || parentTier == TierFeature {
		return "", false
	}
	idx := strings.LastIndex(ident, ".")
	if idx < 0 {
		return "", false
	}
	return FormatID(parentTier, ident[:idx]), true
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isDottedNumeric(s string) bool {
	for _, seg := range strings.Split(s, ".") {
		if !isNumeric(seg) {
			return false
		}
	}
	return true
}
