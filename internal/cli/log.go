package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fernworks/docket/internal/todo"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	TodoID string
	Since  string
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the feature's change log",
		Long: `Show the feature's append-only change log in order.

Example:
  docket log -f auth --since 2026-08-01T00:00:00Z
  docket log -f auth --todo task-1.2.3`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showLog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TodoID, "todo", "", "restrict to one todo")
	cmd.Flags().StringVar(&opts.Since, "since", "", "only entries after this RFC 3339 timestamp")

	return cmd
}

func showLog(opts *LogOptions, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	ctx := cmd.Context()
	out := formatter(opts.RootOptions, cmd)

	var since time.Time
	if opts.Since != "" {
		since, err = time.Parse(time.RFC3339, opts.Since)
		if err != nil {
			return WrapExitError(ExitFailure, "invalid --since timestamp", err)
		}
	}

	var entries []todo.ChangeLogEntry
	switch {
	case opts.TodoID != "":
		entries, err = env.Store.ReadChangesForTodo(ctx, opts.Feature, opts.TodoID, since)
	case opts.Since != "":
		entries, err = env.Store.ReadChangesSince(ctx, opts.Feature, since)
	default:
		entries, err = env.Store.ReadChanges(ctx, opts.Feature)
	}
	if err != nil {
		return reportError(out, err)
	}

	return out.Success(entries, func(w io.Writer) {
		RenderChangeLog(w, entries)
	})
}

// RenderChangeLog writes the text rendering of a change-log slice, one
// entry per line plus indented field diffs.
func RenderChangeLog(w io.Writer, entries []todo.ChangeLogEntry) {
	for _, e := range entries {
		flags := ""
		if e.PropagationTriggered {
			flags = " [propagated]"
		}
		fmt.Fprintf(w, "%s  %s  %-19s %s%s\n",
			e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.ChangeType, e.TodoID, flags)
		for _, f := range e.ChangedFields() {
			fmt.Fprintf(w, "    %s: %v -> %v\n", f, e.Before[f], e.After[f])
		}
		if e.Reason != "" {
			fmt.Fprintf(w, "    reason: %s\n", e.Reason)
		}
		if len(e.RelatedChanges) > 0 {
			fmt.Fprintf(w, "    related: %s\n", strings.Join(e.RelatedChanges, ", "))
		}
	}
}
