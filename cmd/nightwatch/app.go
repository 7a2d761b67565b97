package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/vortechron/nightwatch-testing/internal/api"
	"github.com/vortechron/nightwatch-testing/internal/auth"
	"github.com/vortechron/nightwatch-testing/internal/bulk"
	"github.com/vortechron/nightwatch-testing/internal/config"
	"github.com/vortechron/nightwatch-testing/internal/diagnostic"
	"github.com/vortechron/nightwatch-testing/internal/metrics"
	"github.com/vortechron/nightwatch-testing/internal/platform/cache"
	"github.com/vortechron/nightwatch-testing/internal/platform/database"
	"github.com/vortechron/nightwatch-testing/internal/platform/mail"
	"github.com/vortechron/nightwatch-testing/internal/platform/telemetry"
	"github.com/vortechron/nightwatch-testing/internal/probe"
	"github.com/vortechron/nightwatch-testing/internal/reporting"
	"github.com/vortechron/nightwatch-testing/internal/task"
)

// defaultUserTable is queried when no user table is configured.
const defaultUserTable = "users"

// application holds the shared dependencies of every command so they can be
// released together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	db         *database.DB
	metrics    *metrics.Metrics
	reporter   *reporting.Reporter
	cache      cache.Store
	taskRunner *task.TaskRunner
	dispatcher *task.Dispatcher
	mailer     *mail.Mailer
	queries    *database.QueryExecutor
	users      *database.UserDirectory
	notifier   *database.NotificationChannel
	tokens     auth.TokenService
	generator  *bulk.Generator

	closers []func(context.Context) error
}

// newApplication connects every collaborator described by cfg. On error the
// resources acquired so far are released before returning.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *application, err error) {
	app = &application{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			if cerr := app.cleanup(context.Background()); cerr != nil {
				logger.Error("cleanup after failed start", "error", cerr)
			}
			app = nil
		}
	}()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Logger:      logger,
	})
	if err != nil {
		return app, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	app.closers = append(app.closers, shutdown)

	app.metrics = metrics.New(nil)
	app.reporter, err = reporting.NewReporter(logger, nil, app.metrics)
	if err != nil {
		return app, fmt.Errorf("failed to create error reporter: %w", err)
	}

	app.db, err = database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return app, fmt.Errorf("failed to open database: %w", err)
	}
	app.closers = append(app.closers, func(context.Context) error { return app.db.Close() })

	store, closeCache, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		return app, fmt.Errorf("failed to create cache store: %w", err)
	}
	app.cache = cache.WithObserver(store, app.metrics)
	app.closers = append(app.closers, func(context.Context) error { return closeCache() })

	app.taskRunner, err = setupTaskRunner(app)
	if err != nil {
		return app, err
	}

	app.dispatcher, err = task.NewDispatcher(app.taskRunner, task.NoRedirectClient(task.OutgoingRequestTimeout), logger)
	if err != nil {
		return app, fmt.Errorf("failed to create job dispatcher: %w", err)
	}

	transport, err := newTransport(cfg.Mail, logger)
	if err != nil {
		return app, err
	}
	app.mailer, err = mail.NewMailer(transport, app.taskRunner, cfg.Mail.From, logger)
	if err != nil {
		return app, fmt.Errorf("failed to create mailer: %w", err)
	}

	table := cfg.User.Table
	if table == "" {
		table = defaultUserTable
	}
	app.queries = database.NewQueryExecutor(app.db, table)
	if cfg.User.Table != "" {
		app.users = database.NewUserDirectory(app.db, cfg.User.Table)
		app.notifier = database.NewNotificationChannel(app.db)
	}

	app.tokens, err = auth.NewGuard(cfg.Auth)
	if err != nil {
		return app, fmt.Errorf("failed to configure auth guard: %w", err)
	}
	if app.tokens != nil {
		logger.Info("auth guard configured",
			"guard", cfg.Auth.Guard,
			"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)
	}

	deps := bulk.Dependencies{
		Queries:  app.queries,
		Cache:    app.cache,
		Jobs:     app.dispatcher,
		Mailer:   app.mailer,
		Reporter: app.reporter,
		Recorder: app.metrics,
	}
	if app.users != nil {
		deps.Users = app.users
		deps.Notifier = app.notifier
	}
	app.generator, err = bulk.NewGenerator(deps, bulk.Config{
		SlowQueryInterval: cfg.Bulk.SlowQueryInterval,
		SlowQueryDelay:    cfg.Bulk.SlowQueryDelay,
		MailTo:            []string{cfg.Mail.To},
	}, logger)
	if err != nil {
		return app, fmt.Errorf("failed to create bulk generator: %w", err)
	}

	logger.Info("application initialized",
		"database", app.db.Driver(),
		"cache", cfg.Cache.Driver,
		"mail", cfg.Mail.Driver)
	return app, nil
}

// setupTaskRunner starts the job queue. Failed jobs are reported and every
// settled job is counted.
func setupTaskRunner(app *application) (*task.TaskRunner, error) {
	runner := task.NewTaskRunner(task.NewMemoryTaskStore(), task.TaskRunnerConfig{
		WorkerCount:  app.config.Task.WorkerCount,
		QueueSize:    app.config.Task.QueueSize,
		PollInterval: app.config.Task.PollInterval,
	}, app.logger)
	runner.SetErrorHandler(app.reporter.TaskFailed)
	runner.SetOutcomeHook(app.metrics.TaskSettled)

	if err := runner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}
	return runner, nil
}

func newTransport(cfg config.MailConfig, logger *slog.Logger) (mail.Transport, error) {
	switch cfg.Driver {
	case "smtp":
		t, err := mail.NewSMTPTransport(cfg.SMTPAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to create smtp transport: %w", err)
		}
		return t, nil
	case "log":
		return mail.NewLogTransport(logger), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", cfg.Driver)
	}
}

// suite builds the diagnostic suite, probing the service at its configured
// base URL.
func (app *application) suite() (*diagnostic.Suite, error) {
	prober, err := probe.NewProber(app.config.Server.BaseURL, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create prober: %w", err)
	}

	deps := diagnostic.Dependencies{
		Queries:  app.queries,
		Cache:    app.cache,
		Jobs:     app.dispatcher,
		Mailer:   app.mailer,
		Reporter: app.reporter,
		Prober:   prober,
		Tokens:   app.tokens,
	}
	if app.users != nil {
		deps.Users = app.users
		deps.Notifier = app.notifier
	}

	return diagnostic.NewSuite(deps, diagnostic.Config{
		Probes:          app.config.Probes,
		OutgoingBaseURL: app.config.Outgoing.BaseURL,
		MailTo:          app.config.Mail.To,
		MailCc:          app.config.Mail.Cc,
		SlowQueryDelay:  app.config.Bulk.SlowQueryDelay,
	}, app.logger)
}

// handler builds the HTTP handler tree.
func (app *application) handler() (*api.Handler, error) {
	return api.NewHandler(app.generator, app.dispatcher, app.reporter, nil, api.HandlerConfig{
		OutgoingBaseURL: app.config.Outgoing.BaseURL,
		MaxCount:        app.config.Bulk.MaxCount,
		Guard:           app.config.Auth.Guard,
	}, app.logger)
}

// drainTimeout bounds how long one-shot commands wait for queued jobs. It
// leaves room for the 10s outgoing request timeout.
const drainTimeout = 15 * time.Second

// finish waits for queued jobs to run, then releases the application.
func (app *application) finish() error {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := app.taskRunner.Drain(ctx); err != nil {
		app.logger.Warn("stopping with jobs outstanding", "error", err)
	}
	return app.cleanup(ctx)
}

// cleanup stops the job queue, then releases the remaining resources in
// reverse order of acquisition.
func (app *application) cleanup(ctx context.Context) error {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	var result *multierror.Error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	app.closers = nil
	return result.ErrorOrNil()
}
