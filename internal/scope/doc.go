// Package scope validates that a todo's content matches the abstraction
// level its tier implies, preventing implementation detail from leaking
// across tiers (a phase description naming a concrete file path belongs at
// task granularity).
//
// The package depends only on the tier hierarchy in internal/todo - no
// store, no change log. Detection is pure text scanning: todo text is
// NFC-normalized, then matched against per-category markers, and findings
// are filtered through the tier's detail policy.
//
// Enforcement has two modes: warn attaches the findings to the todo's
// scope for later review; block rejects the save with a validation error
// carrying the findings.
package scope
