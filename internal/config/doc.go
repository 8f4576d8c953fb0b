// Package config handles configuration loading and defaults.
//
// Configuration comes from a TOML file (docket.toml in the working
// directory unless overridden with --config) layered over built-in
// defaults. Everything is optional; a missing file means defaults.
//
// Settings:
//   - storage.path: SQLite database path
//   - scope.enforcement: "warn" or "block"
//   - rollback.severity: per-field severity overrides for rollback
//     conflict detection
//   - triggers.definitions: path to a YAML trigger definition file
//     replacing the built-in trigger set
package config
