package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fernworks/docket/internal/scope"
	"github.com/fernworks/docket/internal/todo"
)

// ScopeOptions holds flags for the scope command group.
type ScopeOptions struct {
	*RootOptions
}

// NewScopeCommand creates the scope command group.
func NewScopeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScopeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Check todo text against tier scope rules",
	}

	check := &cobra.Command{
		Use:   "check <todo-id>",
		Short: "Report scope violations for a stored todo",
		Long: `Report scope violations for a stored todo.

Each tier tolerates a different level of detail: features and phases
stay abstract, sessions may name code identifiers, tasks may carry file
paths, line references, and commands.

Example:
  docket scope check phase-1 -f auth`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkScope(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(check)
	return cmd
}

func checkScope(opts *ScopeOptions, todoID string, cmd *cobra.Command) error {
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

	var parent *todo.Todo
	if t.ParentID != "" {
		p, ok, err := env.Store.GetTodo(ctx, opts.Feature, t.ParentID)
		if err != nil {
			return reportError(out, err)
		}
		if ok {
			parent = &p
		}
	}

	violations := scope.Validate(&t, parent)
	renderErr := out.Success(violations, func(w io.Writer) {
		if len(violations) == 0 {
			fmt.Fprintf(w, "%s: no scope violations\n", todoID)
			return
		}
		for _, v := range violations {
			fmt.Fprintf(w, "%s  %s in %s at %d: %q\n",
				v.Type, v.DetailType, v.Field, v.Offset, v.Excerpt)
		}
	})
	if renderErr != nil {
		return renderErr
	}
	if len(violations) > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d scope violation(s)", len(violations)), nil)
	}
	return nil
}
