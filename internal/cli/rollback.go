package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fernworks/docket/internal/todo"
)

// RollbackOptions holds flags for the rollback command group.
type RollbackOptions struct {
	*RootOptions
	Reason string
	Fields []string
	Force  bool
}

// NewRollbackCommand creates the rollback command group.
func NewRollbackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RollbackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Snapshot and restore prior todo states",
	}

	snapshot := &cobra.Command{
		Use:   "snapshot <todo-id>",
		Short: "Capture a todo's current state as a rollback point",
		Long: `Capture a todo's current state as a rollback point.

Mutating commands snapshot automatically; this captures an explicit
checkpoint before risky external edits.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return takeSnapshot(opts, args[0], cmd)
		},
	}
	snapshot.Flags().StringVar(&opts.Reason, "reason", "", "why the snapshot was taken")

	states := &cobra.Command{
		Use:           "states <todo-id>",
		Short:         "List a todo's snapshots, newest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listStates(opts, args[0], cmd)
		},
	}

	apply := &cobra.Command{
		Use:   "apply <todo-id> <state-id>",
		Short: "Restore a todo to a snapshot",
		Long: `Restore a todo to a snapshot.

Conflicting changes made since the snapshot block the rollback at high
severity. --fields restores only the named fields; --force proceeds past
blocking conflicts, keeping the conflicting fields at their current
values.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyRollback(opts, args[0], args[1], cmd)
		},
	}
	apply.Flags().StringVar(&opts.Reason, "reason", "", "why the rollback happened")
	apply.Flags().StringSliceVar(&opts.Fields, "fields", nil, "restore only these fields")
	apply.Flags().BoolVar(&opts.Force, "force", false, "proceed past blocking conflicts")

	history := &cobra.Command{
		Use:           "history [todo-id]",
		Short:         "Show rollback records, newest first",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			todoID := ""
			if len(args) == 1 {
				todoID = args[0]
			}
			return rollbackHistory(opts, todoID, cmd)
		},
	}

	cmd.AddCommand(snapshot, states, apply, history)
	return cmd
}

func takeSnapshot(opts *RollbackOptions, todoID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	ctx := cmd.Context()
	out := formatter(opts.RootOptions, cmd)

	t, ok, err := env.Store.GetTodo(ctx, opts.Feature, todoID)
	if err != nil {
		return reportError(out, err)
	}
	if !ok {
		return reportError(out, todo.NewNotFound(opts.Feature, "todo", todoID))
	}

	ps, err := env.Rollbacks.StoreState(ctx, opts.Feature, t, "", opts.Reason)
	if err != nil {
		return reportError(out, err)
	}
	return out.Success(ps, func(w io.Writer) {
		fmt.Fprintf(w, "Snapshot %s of %s\n", ps.ID, todoID)
	})
}

func listStates(opts *RollbackOptions, todoID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	out := formatter(opts.RootOptions, cmd)

	states, err := env.Rollbacks.GetStates(cmd.Context(), opts.Feature, todoID)
	if err != nil {
		return reportError(out, err)
	}
	return out.Success(states, func(w io.Writer) {
		for _, ps := range states {
			fmt.Fprintf(w, "%s  %s  [%s]  %s\n",
				ps.ID, ps.Timestamp.UTC().Format(time.RFC3339Nano), ps.State.Status, ps.Reason)
		}
	})
}

func applyRollback(opts *RollbackOptions, todoID, stateID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	ctx := cmd.Context()
	out := formatter(opts.RootOptions, cmd)

	var rb todo.Rollback
	switch {
	case len(opts.Fields) > 0 && opts.Force:
		return fmt.Errorf("--fields and --force are mutually exclusive")
	case len(opts.Fields) > 0:
		rb, err = env.Rollbacks.RollbackFields(ctx, opts.Feature, todoID, stateID, opts.Fields, opts.Reason)
	case opts.Force:
		rb, err = env.Rollbacks.ForceRollback(ctx, opts.Feature, todoID, stateID, opts.Reason)
	default:
		rb, err = env.Rollbacks.Rollback(ctx, opts.Feature, todoID, stateID, opts.Reason)
	}
	if err != nil {
		if todo.IsConflict(err) {
			out.Failure(string(todo.ErrCodeConflict), err.Error(), rb.Conflicts)
			return WrapExitError(ExitFailure, "rollback blocked by conflicts", err)
		}
		return reportError(out, err)
	}

	return out.Success(rb, func(w io.Writer) {
		fmt.Fprintf(w, "Rolled back %s to %s (%s, %s)\n", todoID, stateID, rb.Type, rb.Status)
		for _, c := range rb.Conflicts {
			fmt.Fprintf(w, "  skipped %s: %s\n", c.Field, c.Description)
		}
	})
}

func rollbackHistory(opts *RollbackOptions, todoID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	out := formatter(opts.RootOptions, cmd)

	records, err := env.Rollbacks.GetRollbackHistory(cmd.Context(), opts.Feature, todoID)
	if err != nil {
		return reportError(out, err)
	}
	return out.Success(records, func(w io.Writer) {
		for _, rb := range records {
			fields := ""
			if len(rb.Fields) > 0 {
				fields = "  fields: " + strings.Join(rb.Fields, ", ")
			}
			fmt.Fprintf(w, "%s  %s  %-9s %-9s %s -> %s%s\n",
				rb.ID, rb.CreatedAt.UTC().Format(time.RFC3339), rb.Type, rb.Status,
				rb.TodoID, rb.RolledBackTo, fields)
		}
	})
}
