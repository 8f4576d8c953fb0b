// Package citation creates, queries, reviews, and dismisses the citations
// that link a todo to change-log entries it should be aware of.
//
// Automatic creation runs through an explicit citability table
// (see table.go): every change type is either citation-worthy with a fixed
// type and base priority, or deliberately not. The table is the single
// reviewable source for that mapping; nothing is inferred ad hoc.
//
// Lifecycle rules enforced here:
//   - review is idempotent (the first review instant wins)
//   - dismissal is terminal; dismissed citations never come back from
//     Lookup, regardless of context filters, and cannot be reviewed
package citation
