package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"studydesk/internal/bootstrap"
	"studydesk/internal/platform/config"
	"studydesk/internal/platform/logging"
)

// logoutTimeout bounds how long a command waits for pending remote saves.
const logoutTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	overrides config.Overrides
	logger    *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "studydesk",
		Short:         "Study timer and planner with cloud-synced state",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := logging.New(opts.overrides.Verbose)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.overrides.DataDir, "data-dir", "", "data directory (default ~/.studydesk)")
	flags.StringVar(&opts.overrides.UserID, "user", "", "signed-in user id (or STUDYDESK_USER)")
	flags.StringVar(&opts.overrides.ConfigFile, "config", "", "config file (default <data-dir>/config.yaml)")
	flags.BoolVarP(&opts.overrides.Verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(newSyncCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newDataCmd(opts))
	root.AddCommand(newSessionCmd(opts))
	root.AddCommand(newPlanCmd(opts))
	root.AddCommand(newTUICmd(opts))
	return root
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	return config.Load(o.overrides)
}

// withApp signs in, runs fn and signs out again, waiting for pending saves.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := bootstrap.Login(ctx, cfg, o.logger)
	if err != nil {
		return err
	}
	runErr := fn(ctx, app)

	logoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()
	if err := app.Logout(logoutCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the study timer terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(_ context.Context, app *bootstrap.App) error {
				return bootstrap.RunTUI(app)
			})
		},
	}
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Merge the remote user document into local state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(_ context.Context, app *bootstrap.App) error {
				out := cmd.OutOrStdout()
				report := app.LoginSync
				if report.RemoteErr != nil {
					_, _ = fmt.Fprintf(out, "remote unavailable, local data kept: %v\n", report.RemoteErr)
					return nil
				}
				for _, o := range report.Outcomes {
					if all || o.Decision == "adopt" {
						_, _ = fmt.Fprintf(out, "%-7s %-18s %s\n", o.Decision, o.Key, o.Reason)
					}
				}
				_, _ = fmt.Fprintf(out, "synced %s: %d adopted\n", report.UserID, len(report.Adopted()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list kept keys too")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var fromExport string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upload legacy unscoped entries into the user document",
		Long: "Legacy entries are migrated automatically at sign-in. --from-export first " +
			"imports a JSON object of legacy key/value pairs into the local cache.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if fromExport != "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				n, err := bootstrap.ImportLegacyExport(cmd.Context(), cfg, fromExport)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "imported %d legacy entries\n", n)
			}
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				// the login already ran the migration; err is its outcome
				report, err := app.SyncCLI.Migrate(ctx)
				if report.Scanned == 0 {
					if err == nil {
						_, _ = fmt.Fprintln(out, "no legacy entries")
					}
					return err
				}
				if len(report.Fields) > 0 && !report.Uploaded {
					_, _ = fmt.Fprintf(out, "upload of %d fields failed; local entries kept for the next sign-in\n", len(report.Fields))
				} else {
					_, _ = fmt.Fprintf(out, "scanned %d, uploaded %d fields, removed %d local entries\n",
						report.Scanned, len(report.Fields), report.Deleted)
				}
				if len(report.Fields) > 0 {
					_, _ = fmt.Fprintf(out, "fields: %s\n", strings.Join(report.Fields, ", "))
				}
				if len(report.Collisions) > 0 {
					_, _ = fmt.Fprintf(out, "not uploaded (name collision): %s\n", strings.Join(report.Collisions, ", "))
				}
				if len(report.Skipped) > 0 {
					_, _ = fmt.Fprintf(out, "skipped (invalid field name): %s\n", strings.Join(report.Skipped, ", "))
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&fromExport, "from-export", "", "JSON file of legacy key/value pairs to import first")
	return cmd
}

func newDataCmd(opts *rootOptions) *cobra.Command {
	data := &cobra.Command{Use: "data", Short: "Inspect and edit synced keys"}

	data.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				value, err := app.SyncCLI.Get(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	})

	data.AddCommand(&cobra.Command{
		Use:   "set <key> <json>",
		Short: "Replace the value of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.SyncCLI.Set(ctx, args[0], args[1]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "set %s\n", args[0])
				return nil
			})
		},
	})

	data.AddCommand(&cobra.Command{
		Use:   "clear <key>",
		Short: "Reset a key to null",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.SyncCLI.Clear(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
				return nil
			})
		},
	})
	return data
}
