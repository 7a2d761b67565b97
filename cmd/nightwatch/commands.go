package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vortechron/nightwatch-testing/internal/api"
	"github.com/vortechron/nightwatch-testing/internal/bulk"
	"github.com/vortechron/nightwatch-testing/internal/config"
	"github.com/vortechron/nightwatch-testing/internal/diagnostic"
	"github.com/vortechron/nightwatch-testing/internal/domain"
	"github.com/vortechron/nightwatch-testing/internal/platform/database"
	"github.com/vortechron/nightwatch-testing/internal/platform/logger"
)

// Flag names shared by several commands
const (
	flagConfig               = "config"
	flagMigrate              = "migrate"
	flagSkipMail             = bulk.OptSkipMail
	flagSkipNotifications    = bulk.OptSkipNotifications
	flagSkipException        = bulk.OptSkipException
	flagSkipFailingJob       = bulk.OptSkipFailingJob
	flagSkipRequests         = "skip-requests"
	flagSkipInternalRequests = "skip-internal-requests"
)

// skipFlag is a boolean flag that suppresses one kind of event.
type skipFlag struct {
	name  string
	usage string
}

var (
	testSkipFlags = []skipFlag{
		{flagSkipMail, "Skip the mail checks."},
		{flagSkipException, "Skip the exception check."},
		{flagSkipRequests, "Skip the outgoing request jobs."},
		{flagSkipInternalRequests, "Skip requests to this service's own endpoints."},
		{flagSkipFailingJob, "Skip the failing job."},
		{flagSkipNotifications, "Skip the notification check."},
	}
	bulkSkipFlags = []skipFlag{
		{flagSkipMail, "Skip mail generation."},
		{flagSkipNotifications, "Skip notification generation."},
		{flagSkipException, "Skip exception generation."},
		{flagSkipFailingJob, "Only dispatch jobs that succeed."},
	}
)

func registerSkipFlags(fs *pflag.FlagSet, flags []skipFlag) {
	for _, f := range flags {
		fs.Bool(f.name, false, f.usage)
	}
}

// setSkipFlags returns the names of the skip flags set to true.
func setSkipFlags(fs *pflag.FlagSet, flags []skipFlag) bulk.Options {
	opts := bulk.Options{}
	for _, f := range flags {
		if set, _ := fs.GetBool(f.name); set {
			opts[f.name] = true
		}
	}
	return opts
}

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands are registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nightwatch",
		Short: "nightwatch generates traffic for an application monitoring agent.",
		Long: `nightwatch generates traffic for an application monitoring agent.

It serves test endpoints, runs a one-shot diagnostic suite that triggers one
event of every kind, and bulk-generates queries, cache operations, jobs, mail,
notifications and exceptions.

Settings are read from nightwatch.yaml (or the file given with --config) and
from NIGHTWATCH_* environment variables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String(flagConfig, "", "Path to a config file.")
	cmd.PersistentFlags().Bool(flagMigrate, false, "Apply database migrations before running.")

	cmd.AddCommand(
		serveCmd(),
		testCmd(),
		bulkCmd(),
		migrateCmd(),
		seedUserCmd(),
	)

	return cmd
}

// setup loads the configuration and builds the logger for cmd.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.Setup(logger.LoggerConfig{
		Level:  cfg.Server.LogLevel,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// withApplication builds the application, runs fn and releases the
// application afterwards.
func withApplication(cmd *cobra.Command, fn func(ctx context.Context, app *application) error) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}

	if migrate, _ := cmd.Flags().GetBool(flagMigrate); migrate {
		if _, err := database.Migrate(ctx, app.db, log); err != nil {
			_ = app.cleanup(context.Background())
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	return fn(ctx, app)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the test endpoints.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, func(ctx context.Context, app *application) error {
				return app.serve(ctx)
			})
		},
	}
}

// Trigger one event of every kind and print whether each was triggered.
func testCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Trigger one event of every kind and report the outcome of each.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			skip := setSkipFlags(cmd.Flags(), testSkipFlags)
			opts := diagnostic.Options{
				SkipMail:             skip.Has(flagSkipMail),
				SkipException:        skip.Has(flagSkipException),
				SkipRequests:         skip.Has(flagSkipRequests),
				SkipInternalRequests: skip.Has(flagSkipInternalRequests),
				SkipFailingJob:       skip.Has(flagSkipFailingJob),
				SkipNotifications:    skip.Has(flagSkipNotifications),
			}

			out := cmd.OutOrStdout()
			return withApplication(cmd, func(ctx context.Context, app *application) (err error) {
				defer func() {
					if ferr := app.finish(); ferr != nil && err == nil {
						err = ferr
					}
				}()

				suite, err := app.suite()
				if err != nil {
					return err
				}
				opts.OnResult = resultPrinter(out)
				report := suite.Run(ctx, opts)
				printSummary(out, report)
				return nil
			})
		},
	}

	registerSkipFlags(cmd.Flags(), testSkipFlags)

	return cmd
}

// resultPrinter prints a section heading before the first result of each
// section, followed by one line per check.
func resultPrinter(out io.Writer) func(diagnostic.CheckResult) {
	section := ""
	return func(c diagnostic.CheckResult) {
		if c.Section != section {
			section = c.Section
			fmt.Fprintf(out, "\n== %s ==\n", section)
		}
		status := "OK  "
		switch {
		case c.Skipped:
			status = "SKIP"
		case !c.OK:
			status = "FAIL"
		}
		if c.Detail != "" {
			fmt.Fprintf(out, "  [%s] %s: %s\n", status, c.Label, c.Detail)
			return
		}
		fmt.Fprintf(out, "  [%s] %s\n", status, c.Label)
	}
}

func printSummary(out io.Writer, report diagnostic.Report) {
	fmt.Fprintf(out, "\n======= SUMMARY =======\n")
	fmt.Fprintf(out, "Ran %d check(s) in %s\n", len(report.Results), report.FinishedAt.Sub(report.StartedAt))
	fmt.Fprintf(out, "Passed: %d\n", report.Passed())
	fmt.Fprintf(out, "Failed: %d\n", report.Failed())
	fmt.Fprintf(out, "Skipped: %d\n", report.Skipped())
}

// Generate a number of events of one category.
func bulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk <type> <count>",
		Short: "Generate count events of type (queries, cache, jobs, mail, notifications, exceptions or all).",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, ok := bulk.ParseCategory(args[0])
			if !ok {
				return fmt.Errorf("unknown type %q", args[0])
			}

			opts := setSkipFlags(cmd.Flags(), bulkSkipFlags)

			out := cmd.OutOrStdout()
			return withApplication(cmd, func(ctx context.Context, app *application) (err error) {
				defer func() {
					if ferr := app.finish(); ferr != nil && err == nil {
						err = ferr
					}
				}()

				count := api.ClampCount(args[1], app.config.Bulk.MaxCount)
				fmt.Fprintf(out, "Generating %d %s event(s)\n", count, category)

				progress := 0
				generated, err := app.generator.Generate(ctx, category, count, opts, func() {
					progress++
					fmt.Fprintf(out, "\r%d", progress)
				})
				if progress > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "Generated %d event(s)\n", generated)
				return err
			})
		},
	}

	registerSkipFlags(cmd.Flags(), bulkSkipFlags)

	return cmd
}

// openDatabase connects to the configured database for the commands that
// need nothing else.
func openDatabase(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, db *database.DB, log *slog.Logger) error) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	return fn(ctx, cfg, db, log)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return openDatabase(cmd, func(ctx context.Context, _ *config.Config, db *database.DB, log *slog.Logger) error {
				applied, err := database.Migrate(ctx, db, log)
				if err != nil {
					return err
				}
				version, err := database.MigrationVersion(ctx, db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s), now at version %d\n", applied, version)
				return nil
			})
		},
	}
}

// Create the user that receives notifications and authenticated requests.
func seedUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Create a user for notifications and authenticated requests.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			return openDatabase(cmd, func(ctx context.Context, cfg *config.Config, db *database.DB, log *slog.Logger) error {
				table := cfg.User.Table
				if table == "" {
					table = defaultUserTable
				}
				if migrate, _ := cmd.Flags().GetBool(flagMigrate); migrate {
					if _, err := database.Migrate(ctx, db, log); err != nil {
						return fmt.Errorf("failed to apply migrations: %w", err)
					}
				}

				users := database.NewUserDirectory(db, table)
				existing, err := users.FindByEmail(ctx, email)
				switch {
				case err == nil:
					fmt.Fprintf(cmd.OutOrStdout(), "User %d <%s> already exists\n", existing.ID, existing.Email)
					if !database.CheckPassword(existing, password) {
						log.Warn("existing user has a different password", "email", existing.Email)
					}
					return nil
				case !errors.Is(err, domain.ErrNotFound):
					return fmt.Errorf("failed to look up user: %w", err)
				}

				user, err := users.Seed(ctx, name, email, password)
				if err != nil {
					return fmt.Errorf("failed to seed user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %d <%s>\n", user.ID, user.Email)
				return nil
			})
		},
	}

	cmd.Flags().String("name", "Nightwatch Test User", "Name of the user.")
	cmd.Flags().String("email", "nightwatch-user@example.com", "Email of the user.")
	cmd.Flags().String("password", "nightwatch-password", "Password of the user.")

	return cmd
}
