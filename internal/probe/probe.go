// Package probe issues HTTP requests against the harness's own endpoints so
// that incoming requests of every status class show up in monitoring.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/vortechron/nightwatch-testing/internal/config"
	"github.com/vortechron/nightwatch-testing/internal/redact"
)

// Timeout bounds every probe request.
const Timeout = 5 * time.Second

// DefaultClientErrorStatuses are accepted by a client error probe that
// lists no expected statuses.
var DefaultClientErrorStatuses = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusUnprocessableEntity,
}

// ErrEmptyBaseURL is returned by NewProber without a base URL.
var ErrEmptyBaseURL = errors.New("probe base URL is empty")

// Result is the outcome of one probe request.
type Result struct {
	Status int
	OK     bool
	Err    error
}

// Detail summarizes the result for display.
func (r Result) Detail() string {
	if r.Err != nil {
		return redact.Error(r.Err)
	}
	return fmt.Sprintf("status %d", r.Status)
}

// Prober sends requests to endpoints relative to a base URL.
type Prober struct {
	baseURL    string
	client     *http.Client
	noRedirect *http.Client
	logger     *slog.Logger
}

// NewProber creates a Prober for the service reachable at baseURL.
func NewProber(baseURL string, logger *slog.Logger) (*Prober, error) {
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: Timeout},
		noRedirect: &http.Client{
			Timeout: Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.With("component", "prober"),
	}, nil
}

// Success expects a 2xx response.
func (p *Prober) Success(ctx context.Context, ep config.Endpoint) Result {
	return p.check(ctx, p.client, ep, nil, isSuccess)
}

// Redirect expects a 3xx response, which is not followed.
func (p *Prober) Redirect(ctx context.Context, ep config.Endpoint) Result {
	return p.check(ctx, p.noRedirect, ep, nil, func(status int) bool {
		return status >= 300 && status < 400
	})
}

// ClientError expects one of the endpoint's expected statuses, or a
// common 4xx when none are listed. The request asks for JSON.
func (p *Prober) ClientError(ctx context.Context, ep config.Endpoint) Result {
	expected := ep.ExpectedStatus
	if len(expected) == 0 {
		expected = DefaultClientErrorStatuses
	}
	header := http.Header{"Accept": []string{"application/json"}}
	return p.check(ctx, p.client, ep, header, func(status int) bool {
		return slices.Contains(expected, status)
	})
}

// Authenticated sends token as a bearer credential and expects a 2xx.
func (p *Prober) Authenticated(ctx context.Context, ep config.Endpoint, token string) Result {
	header := http.Header{
		"Accept":        []string{"application/json"},
		"Authorization": []string{"Bearer " + token},
	}
	return p.check(ctx, p.client, ep, header, isSuccess)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func (p *Prober) check(
	ctx context.Context,
	client *http.Client,
	ep config.Endpoint,
	header http.Header,
	accept func(int) bool,
) Result {
	method := ep.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), p.baseURL+ep.Path, nil)
	if err != nil {
		return Result{Err: fmt.Errorf("build probe request: %w", err)}
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		p.logger.Warn("probe request failed",
			"method", req.Method,
			"path", ep.Path,
			redact.ErrorAttr(err))
		return Result{Err: err}
	}
	_ = resp.Body.Close()

	ok := accept(resp.StatusCode)
	p.logger.Debug("probe request completed",
		"method", req.Method,
		"path", ep.Path,
		"status", resp.StatusCode,
		"ok", ok)
	return Result{Status: resp.StatusCode, OK: ok}
}
