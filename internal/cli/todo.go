package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fernworks/docket/internal/scope"
	"github.com/fernworks/docket/internal/todo"
)

// TodoOptions holds flags for the todo command group.
type TodoOptions struct {
	*RootOptions
	Title       string
	Description string
	BlockedBy   []string
	Blocks      []string
	Tags        []string
	Reason      string
}

// NewTodoCommand creates the todo command group.
func NewTodoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TodoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Create and inspect todos",
	}

	add := &cobra.Command{
		Use:   "add <todo-id>",
		Short: "Add a todo",
		Long: `Add a todo under its structural parent.

The id encodes tier and position: feature-auth, phase-1, session-1.2,
task-1.2.3. The parent must already exist (except for the feature root).

Example:
  docket todo add task-1.2.3 -f auth --title "Wire refresh tokens"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addTodo(opts, args[0], cmd)
		},
	}
	add.Flags().StringVar(&opts.Title, "title", "", "todo title (required)")
	add.Flags().StringVar(&opts.Description, "description", "", "todo description")
	add.Flags().StringSliceVar(&opts.BlockedBy, "blocked-by", nil, "todo ids this todo waits on")
	add.Flags().StringSliceVar(&opts.Blocks, "blocks", nil, "todo ids waiting on this todo")
	add.Flags().StringSliceVar(&opts.Tags, "tags", nil, "freeform tags")

	show := &cobra.Command{
		Use:           "show <todo-id>",
		Short:         "Show a todo",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showTodo(opts, args[0], cmd)
		},
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List the feature's todos in hierarchy order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTodos(opts, cmd)
		},
	}

	status := &cobra.Command{
		Use:   "status <todo-id> <status>",
		Short: "Change a todo's status",
		Long: `Change a todo's status (pending|in_progress|completed|cancelled|blocked).

The transition is logged, the prior state is snapshotted for rollback,
and dependents listed in the todo's blocks field receive propagation
citations.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return setStatus(opts, args[0], args[1], cmd)
		},
	}
	status.Flags().StringVar(&opts.Reason, "reason", "", "why the status changed")

	cmd.AddCommand(add, show, list, status)
	return cmd
}

func addTodo(opts *TodoOptions, id string, cmd *cobra.Command) error {
	if opts.Title == "" {
		return fmt.Errorf("--title is required")
	}

	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	ctx := cmd.Context()
	out := formatter(opts.RootOptions, cmd)

	tier, _, err := todo.ParseID(id)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid todo id", err)
	}

	t := todo.Todo{
		ID:          id,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      todo.StatusPending,
		Tier:        tier,
		BlockedBy:   opts.BlockedBy,
		Blocks:      opts.Blocks,
		Tags:        opts.Tags,
	}
	if parentID, ok := todo.StructuralParentID(id); ok {
		t.ParentID = parentID
	}

	parent, err := loadParent(env, opts, &t, cmd)
	if err != nil {
		return err
	}
	if err := scope.EnforceScope(opts.Feature, &t, parent, env.Config.EnforceMode()); err != nil {
		return reportError(out, err)
	}
	if t.Scope != nil {
		for _, v := range t.Scope.Violations {
			opts.Logger.Warn("scope violation", "todo", t.ID, "field", v.Field, "detail", v.DetailType)
		}
	}

	saved, err := env.Store.SaveTodo(ctx, opts.Feature, t)
	if err != nil {
		return reportError(out, err)
	}

	entry, err := env.Store.AppendChange(ctx, opts.Feature, todo.ChangeLogEntry{
		ChangeType: todo.ChangeCreated,
		Tier:       saved.Tier,
		TodoID:     saved.ID,
		After:      saved.Snapshot(),
		Reason:     "created via cli",
	})
	if err != nil {
		return reportError(out, err)
	}
	if _, err := env.Citations.CreateFromChange(ctx, opts.Feature, saved.ID, entry.ID, nil); err != nil {
		return reportError(out, err)
	}

	return out.Success(saved, func(w io.Writer) {
		fmt.Fprintf(w, "Added %s (%s)\n", saved.ID, saved.Title)
	})
}

// loadParent resolves the structural parent for scope assignment. The
// feature root has none.
func loadParent(env *Env, opts *TodoOptions, t *todo.Todo, cmd *cobra.Command) (*todo.Todo, error) {
	if t.ParentID == "" {
		return nil, nil
	}
	parent, ok, err := env.Store.GetTodo(cmd.Context(), opts.Feature, t.ParentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil // SaveTodo reports the hierarchy error
	}
	return &parent, nil
}

func showTodo(opts *TodoOptions, id string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	out := formatter(opts.RootOptions, cmd)

	t, ok, err := env.Store.GetTodo(cmd.Context(), opts.Feature, id)
	if err != nil {
		return reportError(out, err)
	}
	if !ok {
		return reportError(out, todo.NewNotFound(opts.Feature, "todo", id))
	}

	return out.Success(t, func(w io.Writer) {
		fmt.Fprintf(w, "%s  [%s]  %s\n", t.ID, t.Status, t.Title)
		if t.Description != "" {
			fmt.Fprintf(w, "  %s\n", t.Description)
		}
		if t.ParentID != "" {
			fmt.Fprintf(w, "  parent: %s\n", t.ParentID)
		}
		if len(t.BlockedBy) > 0 {
			fmt.Fprintf(w, "  blocked by: %s\n", strings.Join(t.BlockedBy, ", "))
		}
		if len(t.Blocks) > 0 {
			fmt.Fprintf(w, "  blocks: %s\n", strings.Join(t.Blocks, ", "))
		}
		if len(t.Tags) > 0 {
			fmt.Fprintf(w, "  tags: %s\n", strings.Join(t.Tags, ", "))
		}
	})
}

func listTodos(opts *TodoOptions, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	out := formatter(opts.RootOptions, cmd)

	todos, err := env.Store.ListTodos(cmd.Context(), opts.Feature)
	if err != nil {
		return reportError(out, err)
	}

	return out.Success(todos, func(w io.Writer) {
		for _, t := range todos {
			indent := strings.Repeat("  ", t.Tier.Depth())
			fmt.Fprintf(w, "%s%s  [%s]  %s\n", indent, t.ID, t.Status, t.Title)
		}
	})
}

func setStatus(opts *TodoOptions, id, status string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	ctx := cmd.Context()
	out := formatter(opts.RootOptions, cmd)

	next := todo.Status(status)
	if !next.Valid() {
		return reportError(out, todo.NewValidationError(opts.Feature, id, todo.FieldStatus,
			fmt.Sprintf("unknown status %q", status)))
	}

	t, ok, err := env.Store.GetTodo(ctx, opts.Feature, id)
	if err != nil {
		return reportError(out, err)
	}
	if !ok {
		return reportError(out, todo.NewNotFound(opts.Feature, "todo", id))
	}
	if t.Status == next {
		return out.Success(t, func(w io.Writer) {
			fmt.Fprintf(w, "%s already %s\n", t.ID, next)
		})
	}

	prior := t
	entry, err := env.Store.AppendChange(ctx, opts.Feature, todo.ChangeLogEntry{
		ChangeType: todo.ChangeStatusChanged,
		Tier:       t.Tier,
		TodoID:     t.ID,
		Before:     map[string]any{todo.FieldStatus: prior.Status},
		After:      map[string]any{todo.FieldStatus: next},
		Reason:     opts.Reason,
	})
	if err != nil {
		return reportError(out, err)
	}
	if _, err := env.Rollbacks.StoreState(ctx, opts.Feature, prior, entry.ID, opts.Reason); err != nil {
		return reportError(out, err)
	}

	t.Status = next
	saved, err := env.Store.SaveTodo(ctx, opts.Feature, t)
	if err != nil {
		return reportError(out, err)
	}

	if _, err := env.Citations.CreateFromChange(ctx, opts.Feature, saved.ID, entry.ID, nil); err != nil {
		return reportError(out, err)
	}
	if err := propagateStatus(env, opts, &saved, entry.ID, cmd); err != nil {
		return reportError(out, err)
	}

	return out.Success(saved, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %s -> %s\n", saved.ID, prior.Status, saved.Status)
	})
}

// propagateStatus logs a propagation_update for each dependent in the
// todo's blocks list and attaches an escalated citation to it.
func propagateStatus(env *Env, opts *TodoOptions, t *todo.Todo, causeID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	for _, depID := range t.Blocks {
		dep, ok, err := env.Store.GetTodo(ctx, opts.Feature, depID)
		if err != nil {
			return err
		}
		if !ok {
			opts.Logger.Warn("dependent not found, skipping propagation", "todo", t.ID, "dependent", depID)
			continue
		}
		entry, err := env.Store.AppendChange(ctx, opts.Feature, todo.ChangeLogEntry{
			ChangeType:           todo.ChangePropagationUpdate,
			Tier:                 dep.Tier,
			TodoID:               dep.ID,
			Reason:               fmt.Sprintf("%s changed status to %s", t.ID, t.Status),
			PropagationTriggered: true,
			RelatedChanges:       []string{causeID},
		})
		if err != nil {
			return err
		}
		if _, err := env.Citations.CreateFromChange(ctx, opts.Feature, dep.ID, entry.ID, nil); err != nil {
			return err
		}
	}
	return nil
}
