package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fernworks/docket/internal/citation"
	"github.com/fernworks/docket/internal/todo"
)

// CiteOptions holds flags for the cite command group.
type CiteOptions struct {
	*RootOptions
	Type        string
	Priority    string
	Contexts    []string
	Reason      string
	Impact      string
	Auto        bool
	Junction    string
	MinPriority string
	Reviewed    string
	Dismissed   bool
	TodoID      string
}

// NewCiteCommand creates the cite command group.
func NewCiteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CiteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cite",
		Short: "Attach and review change citations",
	}

	add := &cobra.Command{
		Use:   "add <todo-id> <changelog-id>",
		Short: "Attach a citation to a todo",
		Long: `Attach a citation to a todo, referencing a change-log entry.

With --auto the citation's type and priority are derived from the
referenced entry; otherwise --type and --priority are required.

Example:
  docket cite add task-1.2.3 c-7 -f auth --auto
  docket cite add task-1.2.3 c-7 -f auth --type content_change --priority low`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addCitation(opts, args[0], args[1], cmd)
		},
	}
	add.Flags().BoolVar(&opts.Auto, "auto", false, "derive type and priority from the change entry")
	add.Flags().StringVar(&opts.Type, "type", "", "citation type")
	add.Flags().StringVar(&opts.Priority, "priority", "", "citation priority (low|medium|high|critical)")
	add.Flags().StringSliceVar(&opts.Contexts, "context", nil, "junctions the citation surfaces at (default: all)")
	add.Flags().StringVar(&opts.Reason, "reason", "", "why the citation matters")
	add.Flags().StringVar(&opts.Impact, "impact", "", "what the change affects")

	list := &cobra.Command{
		Use:           "list <todo-id>",
		Short:         "List a todo's live citations",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCitations(opts, args[0], cmd)
		},
	}
	list.Flags().StringVar(&opts.Junction, "context", "", "filter to one junction")

	review := &cobra.Command{
		Use:           "review <todo-id> <citation-id>",
		Short:         "Mark a citation reviewed",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reviewCitation(opts, args[0], args[1], cmd)
		},
	}

	dismiss := &cobra.Command{
		Use:           "dismiss <todo-id> <citation-id>",
		Short:         "Dismiss a citation permanently",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dismissCitation(opts, args[0], args[1], cmd)
		},
	}

	query := &cobra.Command{
		Use:           "query",
		Short:         "Query the feature's citations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryCitations(opts, cmd)
		},
	}
	query.Flags().StringVar(&opts.TodoID, "todo", "", "filter to one todo")
	query.Flags().StringVar(&opts.Type, "type", "", "filter by citation type")
	query.Flags().StringVar(&opts.MinPriority, "min-priority", "", "minimum priority")
	query.Flags().StringVar(&opts.Reviewed, "reviewed", "", "filter by review state (true|false)")
	query.Flags().BoolVar(&opts.Dismissed, "include-dismissed", false, "include dismissed citations")

	cmd.AddCommand(add, list, review, dismiss, query)
	return cmd
}

func addCitation(opts *CiteOptions, todoID, changeLogID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	ctx := cmd.Context()
	out := formatter(opts.RootOptions, cmd)

	contexts := make([]todo.CitationContext, 0, len(opts.Contexts))
	for _, c := range opts.Contexts {
		contexts = append(contexts, todo.CitationContext(c))
	}

	if opts.Auto {
		c, err := env.Citations.CreateFromChange(ctx, opts.Feature, todoID, changeLogID, contexts)
		if err != nil {
			return reportError(out, err)
		}
		if c == nil {
			return out.Success(nil, func(w io.Writer) {
				fmt.Fprintf(w, "change %s is not citation-worthy, nothing attached\n", changeLogID)
			})
		}
		return out.Success(c, func(w io.Writer) {
			fmt.Fprintf(w, "Cited %s on %s (%s, %s)\n", c.ID, todoID, c.Type, c.Priority)
		})
	}

	if opts.Type == "" || opts.Priority == "" {
		return fmt.Errorf("--type and --priority are required without --auto")
	}
	meta := &citation.Metadata{Reason: opts.Reason, Impact: opts.Impact}
	c, err := env.Citations.Create(ctx, opts.Feature, todoID, changeLogID,
		todo.CitationType(opts.Type), contexts, todo.Priority(opts.Priority), meta)
	if err != nil {
		return reportError(out, err)
	}
	return out.Success(c, func(w io.Writer) {
		fmt.Fprintf(w, "Cited %s on %s (%s, %s)\n", c.ID, todoID, c.Type, c.Priority)
	})
}

func listCitations(opts *CiteOptions, todoID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	out := formatter(opts.RootOptions, cmd)

	citations, err := env.Citations.Lookup(cmd.Context(), opts.Feature, todoID,
		todo.CitationContext(opts.Junction))
	if err != nil {
		return reportError(out, err)
	}
	return out.Success(citations, func(w io.Writer) {
		renderCitations(w, citations)
	})
}

func reviewCitation(opts *CiteOptions, todoID, citationID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	out := formatter(opts.RootOptions, cmd)

	if err := env.Citations.Review(cmd.Context(), opts.Feature, todoID, citationID); err != nil {
		return reportError(out, err)
	}
	return out.Success(map[string]string{"citation_id": citationID, "state": "reviewed"},
		func(w io.Writer) {
			fmt.Fprintf(w, "Reviewed %s\n", citationID)
		})
}

func dismissCitation(opts *CiteOptions, todoID, citationID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	out := formatter(opts.RootOptions, cmd)

	if err := env.Citations.Dismiss(cmd.Context(), opts.Feature, todoID, citationID); err != nil {
		return reportError(out, err)
	}
	return out.Success(map[string]string{"citation_id": citationID, "state": "dismissed"},
		func(w io.Writer) {
			fmt.Fprintf(w, "Dismissed %s\n", citationID)
		})
}

func queryCitations(opts *CiteOptions, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	out := formatter(opts.RootOptions, cmd)

	filter := citation.QueryFilter{
		TodoID:           opts.TodoID,
		Type:             todo.CitationType(opts.Type),
		MinPriority:      todo.Priority(opts.MinPriority),
		IncludeDismissed: opts.Dismissed,
	}
	switch opts.Reviewed {
	case "":
	case "true":
		v := true
		filter.Reviewed = &v
	case "false":
		v := false
		filter.Reviewed = &v
	default:
		return fmt.Errorf("invalid --reviewed %q: must be true or false", opts.Reviewed)
	}

	citations, err := env.Citations.Query(cmd.Context(), opts.Feature, filter)
	if err != nil {
		return reportError(out, err)
	}
	return out.Success(citations, func(w io.Writer) {
		renderCitations(w, citations)
	})
}

func renderCitations(w io.Writer, citations []todo.Citation) {
	for _, c := range citations {
		state := "unreviewed"
		switch {
		case c.Dismissed():
			state = "dismissed"
		case c.Reviewed():
			state = "reviewed"
		}
		fmt.Fprintf(w, "%s  %s  %-16s %-8s %s  %s\n",
			c.ID, c.CreatedAt.UTC().Format(time.RFC3339), c.Type, c.Priority, c.TodoID, state)
		if c.Reason != "" {
			fmt.Fprintf(w, "    reason: %s\n", c.Reason)
		}
	}
}
