// Package metrics exposes Prometheus counters for the events the harness
// generates, so a scrape of /metrics can be compared with what the
// monitoring agent captured.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vortechron/nightwatch-testing/internal/bulk"
	"github.com/vortechron/nightwatch-testing/internal/task"
)

// Prefix is prepended to every metric name.
const Prefix = "nightwatch_"

const (
	categoryLabel = "category"
	typeLabel     = "type"
	statusLabel   = "status"
	eventLabel    = "event"
	kindLabel     = "kind"
	routeLabel    = "route"
	methodLabel   = "method"
	codeLabel     = "code"
)

// Metrics holds the harness collectors. Build one per registry with New.
type Metrics struct {
	registry      prometheus.Gatherer
	generated     *prometheus.CounterVec
	tasks         *prometheus.CounterVec
	cacheEvents   *prometheus.CounterVec
	errors        *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New registers the harness collectors on reg. A nil reg gets a fresh
// private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		generated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: Prefix + "bulk_generated_total",
				Help: "Number of units produced by bulk generation grouped by category",
			},
			[]string{categoryLabel},
		),
		tasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: Prefix + "tasks_total",
				Help: "Number of processed tasks grouped by type and final status",
			},
			[]string{typeLabel, statusLabel},
		),
		cacheEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: Prefix + "cache_events_total",
				Help: "Number of cache operations grouped by outcome",
			},
			[]string{eventLabel},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: Prefix + "reported_errors_total",
				Help: "Number of errors handed to the error reporter grouped by kind",
			},
			[]string{kindLabel},
		),
		httpDurations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    Prefix + "http_request_duration_seconds",
				Help:    "Latency of HTTP requests served by the harness",
				Buckets: prometheus.DefBuckets,
			},
			[]string{routeLabel, methodLabel, codeLabel},
		),
	}
}

// Generated implements bulk.Recorder.
func (m *Metrics) Generated(category bulk.Category, n int) {
	if n <= 0 {
		return
	}
	m.generated.With(prometheus.Labels{categoryLabel: string(category)}).Add(float64(n))
}

// TaskSettled matches task.OutcomeFunc.
func (m *Metrics) TaskSettled(t task.Task, status task.TaskStatus) {
	m.tasks.With(prometheus.Labels{typeLabel: t.Type(), statusLabel: string(status)}).Inc()
}

// CacheEvent implements cache.Observer.
func (m *Metrics) CacheEvent(event string) {
	m.cacheEvents.With(prometheus.Labels{eventLabel: event}).Inc()
}

// ErrorReported counts one reported error of the given kind.
func (m *Metrics) ErrorReported(kind string) {
	m.errors.With(prometheus.Labels{kindLabel: kind}).Inc()
}

// ObserveHTTP records the duration of one served request.
func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	m.httpDurations.With(prometheus.Labels{
		routeLabel:  route,
		methodLabel: method,
		codeLabel:   strconv.Itoa(code),
	}).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
