// Package todo provides the canonical record types for the docket core.
//
// This package contains type definitions only. All other internal packages
// import todo; todo imports nothing internal. This keeps the record layer
// foundational with no circular dependencies.
//
// Key design constraints:
//   - All JSON tags use snake_case
//   - Timestamps are time.Time in memory, RFC 3339 (nanoseconds, UTC) at rest
//   - Change-log ordering combines timestamps with a per-feature seq counter
//     so same-instant appends remain strictly ordered
//   - ChangeType, CitationContext, and CitationType are closed enumerations
//     shared by the store, citation, and trigger packages; adding a value
//     means updating all three
package todo
