// Package diagnostic runs the one-shot test suite: a fixed sequence of
// checks that each trigger one kind of event (notification, query, cache
// operation, job, mail, request, exception) and report whether triggering
// it succeeded.
package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vortechron/nightwatch-testing/internal/auth"
	"github.com/vortechron/nightwatch-testing/internal/bulk"
	"github.com/vortechron/nightwatch-testing/internal/config"
	"github.com/vortechron/nightwatch-testing/internal/platform/cache"
	"github.com/vortechron/nightwatch-testing/internal/platform/mail"
	"github.com/vortechron/nightwatch-testing/internal/platform/telemetry"
	"github.com/vortechron/nightwatch-testing/internal/probe"
	"github.com/vortechron/nightwatch-testing/internal/redact"
	"github.com/vortechron/nightwatch-testing/internal/task"
)

// Defaults applied by NewSuite when Config leaves a field unset.
const (
	DefaultSlowQueryDelay = 500 * time.Millisecond
	DefaultCacheTTL       = 60 * time.Second
	DefaultMailDelay      = 5 * time.Second
)

// Errors returned by NewSuite
var (
	ErrMissingCollaborator = errors.New("missing collaborator")
	ErrNilLogger           = errors.New("logger cannot be nil")
)

// QueryRunner runs the database checks against the users table.
type QueryRunner interface {
	Count(ctx context.Context) (int64, error)
	FindByID(ctx context.Context, id int64) (bool, error)
	SelectLimited(ctx context.Context, limit uint) (int, error)
	CountAndMax(ctx context.Context) error
	Sleep(ctx context.Context, d time.Duration) error
	SupportsSleep() bool
}

// JobDispatcher queues the jobs used by the job and outgoing request checks.
type JobDispatcher interface {
	DispatchTest(ctx context.Context, message string) error
	DispatchReleasing(ctx context.Context, message string) error
	DispatchFailing(ctx context.Context, message string) error
	DispatchOutgoingRequest(ctx context.Context, payload task.OutgoingRequestPayload) error
}

// Mailer sends, queues and delays mail.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
	Queue(ctx context.Context, msg mail.Message) error
	Later(ctx context.Context, msg mail.Message, delay time.Duration) error
}

// Prober requests the service's own endpoints.
type Prober interface {
	Success(ctx context.Context, ep config.Endpoint) probe.Result
	Redirect(ctx context.Context, ep config.Endpoint) probe.Result
	ClientError(ctx context.Context, ep config.Endpoint) probe.Result
	Authenticated(ctx context.Context, ep config.Endpoint, token string) probe.Result
}

// Dependencies are the collaborators exercised by the suite. Users,
// Notifier, Prober and Tokens are optional; checks needing a missing one
// are reported as failed or skipped.
type Dependencies struct {
	Queries  QueryRunner
	Cache    cache.Store
	Jobs     JobDispatcher
	Mailer   Mailer
	Users    bulk.UserDirectory
	Notifier bulk.Notifier
	Reporter bulk.ErrorReporter
	Prober   Prober
	Tokens   auth.TokenService
}

// Config tunes the checks.
type Config struct {
	Probes          config.ProbesConfig
	OutgoingBaseURL string
	MailTo          string
	MailCc          string
	SlowQueryDelay  time.Duration
	CacheTTL        time.Duration
	MailDelay       time.Duration
}

// Options select which sections run.
type Options struct {
	SkipMail             bool
	SkipException        bool
	SkipRequests         bool
	SkipInternalRequests bool
	SkipFailingJob       bool
	SkipNotifications    bool

	// OnResult, when set, sees each result as soon as it is recorded.
	OnResult func(CheckResult)
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Section string `json:"section"`
	Label   string `json:"label"`
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped"`
	Detail  string `json:"detail,omitempty"`
}

// Report collects the results of one run.
type Report struct {
	Results    []CheckResult `json:"results"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Passed counts checks that ran and succeeded.
func (r Report) Passed() int {
	return r.count(func(c CheckResult) bool { return !c.Skipped && c.OK })
}

// Failed counts checks that ran and failed.
func (r Report) Failed() int {
	return r.count(func(c CheckResult) bool { return !c.Skipped && !c.OK })
}

// Skipped counts skipped checks.
func (r Report) Skipped() int {
	return r.count(func(c CheckResult) bool { return c.Skipped })
}

// Section returns the results recorded for section, in order.
func (r Report) Section(section string) []CheckResult {
	var out []CheckResult
	for _, c := range r.Results {
		if c.Section == section {
			out = append(out, c)
		}
	}
	return out
}

func (r Report) count(match func(CheckResult) bool) int {
	n := 0
	for _, c := range r.Results {
		if match(c) {
			n++
		}
	}
	return n
}

// Suite runs the diagnostic checks.
type Suite struct {
	deps   Dependencies
	config Config
	logger *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSuite validates the collaborators and returns a Suite.
func NewSuite(deps Dependencies, cfg Config, logger *slog.Logger) (*Suite, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	required := []struct {
		name    string
		missing bool
	}{
		{"query runner", deps.Queries == nil},
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

	if cfg.SlowQueryDelay <= 0 {
		cfg.SlowQueryDelay = DefaultSlowQueryDelay
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MailDelay <= 0 {
		cfg.MailDelay = DefaultMailDelay
	}

	return &Suite{
		deps:   deps,
		config: cfg,
		logger: logger.With("component", "diagnostic"),
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}

// run carries the state of one Run call.
type run struct {
	suite  *Suite
	opts   Options
	report *Report
}

// Run executes every section in order. Individual check failures never
// abort the run.
func (s *Suite) Run(ctx context.Context, opts Options) Report {
	report := Report{StartedAt: s.now()}
	r := &run{suite: s, opts: opts, report: &report}

	sections := []struct {
		name string
		fn   func(s *Suite, ctx context.Context, r *run)
	}{
		{SectionNotifications, (*Suite).checkNotifications},
		{SectionQueries, (*Suite).checkQueries},
		{SectionCache, (*Suite).checkCache},
		{SectionJobs, (*Suite).checkJobs},
		{SectionMail, (*Suite).checkMail},
		{SectionInternalRequests, (*Suite).checkInternalRequests},
		{SectionAuthenticatedRequests, (*Suite).checkAuthenticatedRequests},
		{SectionExceptions, (*Suite).checkExceptions},
		{SectionOutgoingRequests, (*Suite).checkOutgoingRequests},
	}

	for _, sec := range sections {
		sctx, span := telemetry.Tracer().Start(ctx, "diagnostic.section",
			trace.WithAttributes(attribute.String("diagnostic.section", sec.name)))
		sec.fn(s, sctx, r)
		telemetry.End(span, nil)
	}

	report.FinishedAt = s.now()
	s.logger.Info("diagnostic run finished",
		"passed", report.Passed(),
		"failed", report.Failed(),
		"skipped", report.Skipped(),
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return report
}

func (r *run) add(c CheckResult) {
	r.report.Results = append(r.report.Results, c)
	if !c.OK && !c.Skipped {
		r.suite.logger.Warn("diagnostic check failed",
			"section", c.Section,
			"label", c.Label,
			"detail", c.Detail)
	}
	if r.opts.OnResult != nil {
		r.opts.OnResult(c)
	}
}

// check records the outcome of an operation that either fails with an
// error or succeeds.
func (r *run) check(section, label string, fn func() error) {
	r.verify(section, label, func() (bool, error) {
		return true, fn()
	})
}

// verify records an operation whose success also depends on what it
// observed.
func (r *run) verify(section, label string, fn func() (bool, error)) {
	ok, err := fn()
	c := CheckResult{Section: section, Label: label, OK: ok && err == nil}
	if err != nil {
		c.Detail = redact.Error(err)
	}
	r.add(c)
}

func (r *run) skip(section, label, reason string) {
	r.add(CheckResult{Section: section, Label: label, Skipped: true, Detail: reason})
}

func (r *run) fail(section, label, reason string) {
	r.add(CheckResult{Section: section, Label: label, Detail: reason})
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
