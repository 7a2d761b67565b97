package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vortechron/nightwatch-testing/internal/platform/telemetry"
	"github.com/vortechron/nightwatch-testing/internal/redact"
)

// Defaults applied by NewGenerator when Config leaves a field unset.
const (
	DefaultCacheTTL = 60 * time.Second
)

// Errors returned by NewGenerator
var (
	ErrMissingCollaborator = errors.New("missing collaborator")
	ErrNilLogger           = errors.New("logger cannot be nil")
)

// Dependencies are the host collaborators a Generator drives.
// Users may be nil, which turns notification generation into a no-op.
type Dependencies struct {
	Queries  QueryExecutor
	Cache    CacheStore
	Jobs     JobDispatcher
	Mailer   Mailer
	Users    UserDirectory
	Notifier Notifier
	Reporter ErrorReporter
	Recorder Recorder
}

// Config tunes the producers.
type Config struct {
	// SlowQueryInterval makes every Nth query iteration slow. Zero or less
	// disables slow queries.
	SlowQueryInterval int

	// SlowQueryDelay is the length of each slow query.
	SlowQueryDelay time.Duration

	// MailTo receives every generated mail.
	MailTo []string

	// CacheTTL is the lifetime of generated cache entries.
	CacheTTL time.Duration
}

// Generator produces synthetic events for the monitoring agent.
type Generator struct {
	deps   Dependencies
	config Config
	logger *slog.Logger

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	suffix func() string
}

// NewGenerator validates the collaborators and returns a Generator.
func NewGenerator(deps Dependencies, config Config, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}

	required := []struct {
		name    string
		missing bool
	}{
		{"query executor", deps.Queries == nil},
		{"cache store", deps.Cache == nil},
		{"job dispatcher", deps.Jobs == nil},
		{"mailer", deps.Mailer == nil},
		{"error reporter", deps.Reporter == nil},
		{"notifier", deps.Users != nil && deps.Notifier == nil},
	}
	for _, r := range required {
		if r.missing {
			return nil, fmt.Errorf("%w: %s", ErrMissingCollaborator, r.name)
		}
	}

	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}

	return &Generator{
		deps:   deps,
		config: config,
		logger: logger.With("component", "bulk_generator"),
		now:    time.Now,
		sleep:  sleepContext,
		suffix: uniqueSuffix,
	}, nil
}

// Generate produces count units of category and returns how many were
// generated. Unknown categories and suppressed categories yield 0 without
// side effects. When a collaborator fails the units produced so far are
// returned together with the error.
func (g *Generator) Generate(
	ctx context.Context,
	category Category,
	count int,
	opts Options,
	onProgress ProgressFunc,
) (generated int, err error) {
	if onProgress == nil {
		onProgress = func() {}
	}

	ctx, span := telemetry.Tracer().Start(ctx, "bulk.generate", trace.WithAttributes(
		attribute.String("bulk.category", string(category)),
		attribute.Int("bulk.count", count),
	))
	defer func() {
		span.SetAttributes(attribute.Int("bulk.generated", generated))
		telemetry.End(span, err)
	}()

	if category == CategoryAll {
		total := 0
		for _, c := range Categories {
			n, err := g.Generate(ctx, c, count, opts, onProgress)
			total += n
			if err != nil {
				return total, err
			}
		}
		return total, nil
	}

	produce, ok := g.producer(category)
	if !ok {
		g.logger.Debug("ignoring unknown category", "category", category)
		return 0, nil
	}

	n, err := produce(ctx, count, opts, onProgress)
	if g.deps.Recorder != nil && n > 0 {
		g.deps.Recorder.Generated(category, n)
	}
	if err != nil {
		g.logger.Error("bulk generation aborted",
			"category", category,
			"requested", count,
			"generated", n,
			redact.ErrorAttr(err))
		return n, fmt.Errorf("generate %s: %w", category, err)
	}

	g.logger.Info("bulk generation finished", "category", category, "generated", n)
	return n, nil
}

type producerFunc func(ctx context.Context, count int, opts Options, onProgress ProgressFunc) (int, error)

func (g *Generator) producer(category Category) (producerFunc, bool) {
	switch category {
	case CategoryQueries:
		return g.generateQueries, true
	case CategoryCache:
		return g.generateCache, true
	case CategoryJobs:
		return g.generateJobs, true
	case CategoryMail:
		return g.generateMail, true
	case CategoryNotifications:
		return g.generateNotifications, true
	case CategoryExceptions:
		return g.generateExceptions, true
	default:
		return nil, false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func uniqueSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
}
