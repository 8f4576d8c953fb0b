package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fernworks/docket/internal/todo"
	"github.com/fernworks/docket/internal/trigger"
)

// TriggerOptions holds flags for the trigger command group.
type TriggerOptions struct {
	*RootOptions
	TodoID string
	Hours  int
}

// NewTriggerCommand creates the trigger command group.
func NewTriggerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TriggerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Evaluate workflow junction triggers",
	}

	detect := &cobra.Command{
		Use:   "detect <junction>",
		Short: "Detect triggers firing at a junction",
		Long: `Detect which triggers fire at a workflow junction and surface the
citations that justify them.

Junctions: session-start, session-end, phase-start, phase-end,
task-start, task-complete.

Example:
  docket trigger detect session-start -f auth --todo session-1.2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return detectTriggers(opts, args[0], cmd)
		},
	}
	detect.Flags().StringVar(&opts.TodoID, "todo", "", "todo at the junction")

	suppress := &cobra.Command{
		Use:           "suppress <trigger-id>",
		Short:         "Suppress a trigger for a number of hours",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return suppressTrigger(opts, args[0], cmd)
		},
	}
	suppress.Flags().IntVar(&opts.Hours, "hours", 24, "suppression duration in hours")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List the configured trigger definitions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTriggers(opts, cmd)
		},
	}

	cmd.AddCommand(detect, suppress, list)
	return cmd
}

// detection pairs a fired trigger with its justifying citations.
type detection struct {
	Trigger   todo.TriggerDefinition `json:"trigger"`
	Citations []todo.Citation        `json:"citations"`
}

func detectTriggers(opts *TriggerOptions, junction string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	ctx := cmd.Context()
	out := formatter(opts.RootOptions, cmd)

	tc := trigger.Context{TodoID: opts.TodoID}
	fired, err := env.Triggers.Detect(ctx, opts.Feature, todo.CitationContext(junction), tc)
	if err != nil {
		return reportError(out, err)
	}

	detections := make([]detection, 0, len(fired))
	blocked := false
	for _, def := range fired {
		citations, err := env.Triggers.Activate(ctx, opts.Feature, def, tc)
		if err != nil {
			return reportError(out, err)
		}
		detections = append(detections, detection{Trigger: def, Citations: citations})
		if def.Action == todo.ActionBlockUntilReview {
			blocked = true
		}
	}

	renderErr := out.Success(detections, func(w io.Writer) {
		if len(detections) == 0 {
			fmt.Fprintf(w, "no triggers fired at %s\n", junction)
			return
		}
		for _, d := range detections {
			fmt.Fprintf(w, "%s  (%s, %s)\n", d.Trigger.ID, d.Trigger.Action, d.Trigger.Priority)
			renderCitations(w, d.Citations)
		}
	})
	if renderErr != nil {
		return renderErr
	}
	if blocked {
		return WrapExitError(ExitFailure, "blocking trigger fired: review required", nil)
	}
	return nil
}

func suppressTrigger(opts *TriggerOptions, triggerID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	out := formatter(opts.RootOptions, cmd)

	if err := env.Triggers.Suppress(cmd.Context(), opts.Feature, triggerID, opts.Hours); err != nil {
		return reportError(out, err)
	}
	return out.Success(map[string]any{"trigger_id": triggerID, "hours": opts.Hours},
		func(w io.Writer) {
			fmt.Fprintf(w, "Suppressed %s for %dh\n", triggerID, opts.Hours)
		})
}

func listTriggers(opts *TriggerOptions, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()
	out := formatter(opts.RootOptions, cmd)

	defs := env.Triggers.Definitions()
	return out.Success(defs, func(w io.Writer) {
		for _, d := range defs {
			suppressible := "suppressible"
			if !d.Suppressible {
				suppressible = "not suppressible"
			}
			fmt.Fprintf(w, "%-28s %-20s %-18s %s (%s)\n",
				d.ID, d.Junction, d.Action, d.Priority, suppressible)
		}
	})
}
