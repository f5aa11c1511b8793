package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"studydesk/internal/bootstrap"
	plannerdto "studydesk/internal/modules/planner/dto"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	plan := &cobra.Command{Use: "plan", Short: "Study plans and daily task slots"}

	var totalDays, perDay int
	var tasks []string
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a study plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.PlannerCLI.Create(ctx, args[0], totalDays, perDay, tasks)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s): %d tasks over %d days\n", out.Name, out.ID, out.Total, out.TotalDays)
				return nil
			})
		},
	}
	createCmd.Flags().IntVar(&totalDays, "days", 7, "number of days")
	createCmd.Flags().IntVar(&perDay, "per-day", 2, "task slots per day")
	createCmd.Flags().StringArrayVarP(&tasks, "task", "t", nil, "task name (repeatable, in order)")
	plan.AddCommand(createCmd)

	plan.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List study plans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				plans := app.PlannerCLI.List(ctx)
				out := cmd.OutOrStdout()
				if len(plans) == 0 {
					_, _ = fmt.Fprintln(out, "no plans")
					return nil
				}
				for _, p := range plans {
					_, _ = fmt.Fprintf(out, "%s  %-24s day %d/%d  %d/%d done\n", shortID(p.ID), p.Name, p.CurrentDay, p.TotalDays, p.Completed, p.Total)
				}
				return nil
			})
		},
	})

	plan.AddCommand(&cobra.Command{
		Use:   "show <plan>",
		Short: "Show all tasks of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				p, err := app.PlannerCLI.Show(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "%s (%s)  %d days × %d per day  current day %d\n", p.Name, p.ID, p.TotalDays, p.TasksPerDay, p.CurrentDay)
				printTasks(out, p.Tasks)
				return nil
			})
		},
	})

	plan.AddCommand(&cobra.Command{
		Use:   "day <plan> [n]",
		Short: "Show the task slots of a day (default: current day)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			day := 0
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 1 {
					return fmt.Errorf("day must be a positive number, got %q", args[1])
				}
				day = n
			}
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				d, err := app.PlannerCLI.Day(ctx, args[0], day)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "%s day %d/%d  (%d/%d done)\n", d.PlanName, d.Day, d.TotalDays, d.Completed, d.Total)
				if len(d.Tasks) == 0 {
					_, _ = fmt.Fprintln(out, "  nothing scheduled")
					return nil
				}
				printTasks(out, d.Tasks)
				return nil
			})
		},
	})

	plan.AddCommand(newCompleteCmd(opts, "done", "Mark a task completed", true))
	plan.AddCommand(newCompleteCmd(opts, "undo", "Mark a task not completed", false))

	plan.AddCommand(&cobra.Command{
		Use:   "reorder <plan> <from> <to>",
		Short: "Move a task to another position (1-based)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("from must be a number: %w", err)
			}
			to, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("to must be a number: %w", err)
			}
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				p, err := app.PlannerCLI.Reorder(ctx, args[0], from, to)
				if err != nil {
					return err
				}
				printTasks(cmd.OutOrStdout(), p.Tasks)
				return nil
			})
		},
	})

	plan.AddCommand(&cobra.Command{
		Use:   "add <plan> <task>",
		Short: "Append a task to a plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				p, err := app.PlannerCLI.AddTask(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %q to %s (%d tasks)\n", args[1], p.Name, p.Total)
				return nil
			})
		},
	})

	plan.AddCommand(&cobra.Command{
		Use:   "delete <plan>",
		Short: "Delete a study plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.PlannerCLI.Delete(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	})
	return plan
}

func newCompleteCmd(opts *rootOptions, use, short string, done bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <plan> <task>",
		Short: short,
		Long:  "<task> is a task id, its 1-based position, or its name.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				p, err := app.PlannerCLI.SetCompleted(ctx, args[0], args[1], done)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d done, current day %d\n", p.Name, p.Completed, p.Total, p.CurrentDay)
				return nil
			})
		},
	}
}

func printTasks(out io.Writer, tasks []plannerdto.TaskOutput) {
	for _, t := range tasks {
		box := "[ ]"
		if t.Completed {
			box = "[x]"
		}
		_, _ = fmt.Fprintf(out, "  %3d %s %s\n", t.Position, box, t.Name)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
