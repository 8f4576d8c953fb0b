// Package trigger evaluates declarative trigger definitions against a
// todo's citations and recent changes to decide which triggers fire at a
// workflow junction (session-start, phase-end, ...).
//
// A definition's conditions are tagged variants dispatched by a single
// evaluator per condition type, keeping the condition set closed and
// exhaustively checked. Detection consults the citation engine and the
// change log live; nothing is cached between calls.
//
// Suppression windows are persisted per (feature, trigger). A suppressed
// trigger is skipped by Detect until the window elapses; definitions that
// opt out of suppression reject Suppress with a NotSuppressible error.
package trigger
