// Package reporting is the error sink of the harness. Reported errors are
// logged, attached to a trace span as an exception event and counted, which
// gives a monitoring agent three independent places to capture them.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vortechron/nightwatch-testing/internal/bulk"
	"github.com/vortechron/nightwatch-testing/internal/platform/logger"
	"github.com/vortechron/nightwatch-testing/internal/platform/telemetry"
	"github.com/vortechron/nightwatch-testing/internal/redact"
	"github.com/vortechron/nightwatch-testing/internal/task"
)

// Error kinds used as log attribute and metric label
const (
	KindSynthetic  = "synthetic"
	KindJobFailure = "job_failure"
	KindUnhandled  = "unhandled"
)

// Counter counts reported errors by kind.
type Counter interface {
	ErrorReported(kind string)
}

// ErrNilLogger is returned when NewReporter is given no logger.
var ErrNilLogger = errors.New("logger cannot be nil")

// Reporter implements bulk.ErrorReporter.
type Reporter struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	counter Counter
}

// NewReporter creates a Reporter. A nil tracer uses the global tracer and a
// nil counter disables counting.
func NewReporter(logger *slog.Logger, tracer trace.Tracer, counter Counter) (*Reporter, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	if tracer == nil {
		tracer = telemetry.Tracer()
	}
	return &Reporter{
		logger:  logger.With("component", "error_reporter"),
		tracer:  tracer,
		counter: counter,
	}, nil
}

// Report records err. It never fails; reporting is the last stop for an
// error that has already been handled.
func (r *Reporter) Report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	kind := Classify(err)

	ctx, span := r.tracer.Start(ctx, "nightwatch.exception",
		trace.WithAttributes(attribute.String("error.kind", kind)))
	telemetry.End(span, err)

	logger.FromContextOrDefault(ctx, r.logger).ErrorContext(ctx, "exception reported",
		redact.ErrorAttr(err),
		slog.String("kind", kind),
		slog.String("error_type", fmt.Sprintf("%T", err)),
	)

	if r.counter != nil {
		r.counter.ErrorReported(kind)
	}
}

// TaskFailed reports a task that ended in the failed state. It matches the
// task runner's error handler signature.
func (r *Reporter) TaskFailed(t task.Task, err error) {
	r.Report(context.Background(), fmt.Errorf("task %s (%s) failed: %w", t.ID(), t.Type(), err))
}

// Classify names the kind of a reported error.
func Classify(err error) string {
	var synthetic *bulk.SyntheticError
	switch {
	case errors.As(err, &synthetic):
		return KindSynthetic
	case errors.Is(err, task.ErrIntentionalFailure):
		return KindJobFailure
	default:
		return KindUnhandled
	}
}
