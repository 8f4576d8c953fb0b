package cli

import (
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fernworks/docket/internal/citation"
	"github.com/fernworks/docket/internal/config"
	"github.com/fernworks/docket/internal/rollback"
	"github.com/fernworks/docket/internal/store"
	"github.com/fernworks/docket/internal/trigger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DB         string // overrides storage.path from config
	Feature    string
	Verbose    bool
	Format     string // "json" | "text"

	Logger *charmlog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the docket CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docket",
		Short: "docket - hierarchical todo audit core",
		Long: "Tracks feature/phase/session/task todos with an append-only change log,\n" +
			"citations, versioned rollback, and tier scope enforcement.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Feature == "" {
				return fmt.Errorf("--feature is required")
			}

			opts.Logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
				ReportTimestamp: false,
			})
			if opts.Verbose {
				opts.Logger.SetLevel(charmlog.DebugLevel)
			} else {
				opts.Logger.SetLevel(charmlog.WarnLevel)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultFile, "config file path")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database path (overrides config)")
	cmd.PersistentFlags().StringVarP(&opts.Feature, "feature", "f", "", "feature partition to operate on")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewTodoCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewCiteCommand(opts))
	cmd.AddCommand(NewTriggerCommand(opts))
	cmd.AddCommand(NewRollbackCommand(opts))
	cmd.AddCommand(NewScopeCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Env bundles the opened store and engines for one command invocation.
// Constructed when a command starts, closed when it completes.
type Env struct {
	Config    config.Config
	Store     *store.Store
	Citations *citation.Engine
	Triggers  *trigger.Engine
	Rollbacks *rollback.Engine
}

// openEnv loads config, opens the store, and wires the engines.
func openEnv(opts *RootOptions) (*Env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading config", err)
	}

	dbPath := cfg.Storage.Path
	if opts.DB != "" {
		dbPath = opts.DB
	}
	opts.Logger.Debug("opening store", "path", dbPath, "feature", opts.Feature)

	s, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening store", err)
	}

	defs := trigger.DefaultDefinitions()
	if cfg.Triggers.Definitions != "" {
		defs, err = trigger.LoadDefinitions(cfg.Triggers.Definitions)
		if err != nil {
			s.Close()
			return nil, WrapExitError(ExitCommandError, "loading trigger definitions", err)
		}
	}

	citations := citation.NewEngine(s)
	return &Env{
		Config:    cfg,
		Store:     s,
		Citations: citations,
		Triggers:  trigger.NewEngineWithDefinitions(s, citations, defs),
		Rollbacks: rollback.NewEngineWithSeverity(s, cfg.SeverityOverrides()),
	}, nil
}

// Close releases the environment's store.
func (e *Env) Close() error {
	return e.Store.Close()
}

// formatter builds the output formatter for a command.
func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}
