package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"studydesk/internal/bootstrap"
	sessiondto "studydesk/internal/modules/session/dto"
	uiapp "studydesk/internal/ui/app"
)

func newSessionCmd(opts *rootOptions) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Study session timer"}

	var subjectID, subjectName, taskID, taskLabel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a study session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				status, err := app.SessionCLI.Start(ctx, subjectID, subjectName, taskID, taskLabel)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "started %s at %s\n",
					status.Active.Label, status.Active.StartTime.Local().Format("15:04:05"))
				return nil
			})
		},
	}
	startCmd.Flags().StringVar(&subjectID, "subject-id", "", "subject id")
	startCmd.Flags().StringVar(&subjectName, "subject", "", "subject name")
	startCmd.Flags().StringVar(&taskID, "task-id", "", "linked planner task id (requires --task)")
	startCmd.Flags().StringVar(&taskLabel, "task", "", "task label")

	session.AddCommand(startCmd)
	session.AddCommand(newTransitionCmd(opts, "pause", "Pause the running session", func(ctx context.Context, app *bootstrap.App) (sessiondto.Status, error) {
		return app.SessionCLI.Pause(ctx)
	}))
	session.AddCommand(newTransitionCmd(opts, "continue", "Continue a paused session", func(ctx context.Context, app *bootstrap.App) (sessiondto.Status, error) {
		return app.SessionCLI.Continue(ctx)
	}))

	session.AddCommand(&cobra.Command{
		Use:   "end",
		Short: "End the session and append it to the log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				record, err := app.SessionCLI.End(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "logged %s: %.1f min (%s)\n", record.Label, record.DurationMinutes, record.ID)
				return nil
			})
		},
	})

	session.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				printStatus(cmd.OutOrStdout(), app.SessionCLI.Status(ctx))
				return nil
			})
		},
	})

	var interval time.Duration
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the elapsed time until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
				defer stop()
				for status := range app.SessionCLI.Watch(ctx, interval) {
					printStatus(cmd.OutOrStdout(), status)
				}
				return nil
			})
		},
	}
	watchCmd.Flags().DurationVar(&interval, "interval", time.Second, "refresh interval")
	session.AddCommand(watchCmd)

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List finished sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				records := app.SessionCLI.History(ctx)
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					_, _ = fmt.Fprintln(out, "no sessions")
					return nil
				}
				for i, r := range records {
					if limit > 0 && i >= limit {
						break
					}
					_, _ = fmt.Fprintf(out, "%s  %6.1f min  %s\n", r.StartTime.Local().Format("2006-01-02 15:04"), r.DurationMinutes, r.Label)
				}
				return nil
			})
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "maximum rows (0 for all)")
	session.AddCommand(historyCmd)

	var days int
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Total study time per subject",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				var since time.Time
				if days > 0 {
					since = time.Now().AddDate(0, 0, -days)
				}
				summary := app.SessionCLI.Summary(ctx, since)
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "%d sessions, %.1f min\n", summary.Sessions, summary.Minutes)
				for _, s := range summary.Subjects {
					_, _ = fmt.Fprintf(out, "  %-24s %3d  %7.1f min\n", s.Subject, s.Sessions, s.Minutes)
				}
				return nil
			})
		},
	}
	summaryCmd.Flags().IntVar(&days, "days", 7, "look back this many days (0 for all time)")
	session.AddCommand(summaryCmd)

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the session log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the session log without --yes")
			}
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.SessionCLI.ClearHistory(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "session log cleared")
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	session.AddCommand(clearCmd)

	session.AddCommand(&cobra.Command{
		Use:   "export <dir>",
		Short: "Write each logged session as a markdown note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SessionCLI.Export(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %d notes to %s\n", len(out.Paths), out.Dir)
				return nil
			})
		},
	})
	return session
}

func newTransitionCmd(opts *rootOptions, use, short string, fn func(context.Context, *bootstrap.App) (sessiondto.Status, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				status, err := fn(ctx, app)
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func printStatus(out io.Writer, status sessiondto.Status) {
	if status.Active == nil {
		_, _ = fmt.Fprintln(out, "idle")
		return
	}
	state := "running"
	if status.IsPaused {
		state = "paused"
	}
	_, _ = fmt.Fprintf(out, "%s  %s  %s\n", uiapp.FormatElapsed(status.ElapsedSeconds), state, status.Active.Label)
}
