package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"

	"github.com/fernworks/docket/internal/scope"
	"github.com/fernworks/docket/internal/todo"
)

// DefaultFile is the config file searched in the working directory.
const DefaultFile = "docket.toml"

// Config is the tool configuration.
type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Scope    ScopeConfig    `toml:"scope"`
	Rollback RollbackConfig `toml:"rollback"`
	Triggers TriggersConfig `toml:"triggers"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	// Path is the SQLite database file.
	Path string `toml:"path"`
}

// ScopeConfig configures scope enforcement.
type ScopeConfig struct {
	// Enforcement is "warn" or "block".
	Enforcement string `toml:"enforcement"`
}

// RollbackConfig configures rollback conflict detection.
type RollbackConfig struct {
	// Severity overrides the per-field conflict severity table,
	// e.g. severity = { description = "medium" }.
	Severity map[string]string `toml:"severity"`
}

// TriggersConfig configures the trigger engine.
type TriggersConfig struct {
	// Definitions is a YAML file replacing the built-in trigger set.
	Definitions string `toml:"definitions"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{Path: "docket.db"},
		Scope:   ScopeConfig{Enforcement: string(scope.ModeWarn)},
	}
}

// Load reads the config file at path, layered over defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	_, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enum-valued settings.
func (c *Config) Validate() error {
	if err := scope.ValidateEnforceMode(c.Scope.Enforcement); err != nil {
		return err
	}
	for field, sev := range c.Rollback.Severity {
		if !todo.Priority(sev).Valid() {
			return fmt.Errorf("rollback.severity.%s: unknown severity %q", field, sev)
		}
	}
	return nil
}

// EnforceMode returns the configured scope enforcement mode.
func (c *Config) EnforceMode() scope.EnforceMode {
	if c.Scope.Enforcement == "" {
		return scope.ModeWarn
	}
	return scope.EnforceMode(c.Scope.Enforcement)
}

// SeverityOverrides returns the rollback severity overrides as typed
// priorities. Validate must have accepted the config first.
func (c *Config) SeverityOverrides() map[string]todo.Priority {
	if len(c.Rollback.Severity) == 0 {
		return nil
	}
	overrides := make(map[string]todo.Priority, len(c.Rollback.Severity))
	for field, sev := range c.Rollback.Severity {
		overrides[field] = todo.Priority(sev)
	}
	return overrides
}
