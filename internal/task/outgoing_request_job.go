package task

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// OutgoingRequestTimeout bounds each outgoing request made by the job.
const OutgoingRequestTimeout = 10 * time.Second

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OutgoingRequestPayload describes the request the job performs.
type OutgoingRequestPayload struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Label  string `json:"label"`
}

// OutgoingRequestJob performs one HTTP request and logs the outcome.
// Request failures are logged, never returned.
type OutgoingRequestJob struct {
	*Base
	payload OutgoingRequestPayload
	client  HTTPDoer
	logger  *slog.Logger
}

// NewOutgoingRequestJob creates an outgoing request job. A nil client uses
// a client that does not follow redirects.
func NewOutgoingRequestJob(payload OutgoingRequestPayload, client HTTPDoer, logger *slog.Logger) (*OutgoingRequestJob, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	if client == nil {
		client = NoRedirectClient(OutgoingRequestTimeout)
	}
	if payload.Method == "" {
		payload.Method = http.MethodGet
	}
	return &OutgoingRequestJob{
		Base:    NewBase(TaskTypeOutgoingRequest),
		payload: payload,
		client:  client,
		logger:  logger,
	}, nil
}

// NoRedirectClient returns an HTTP client that reports redirects instead of
// following them.
func NoRedirectClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Payload returns the task data as a byte slice
func (j *OutgoingRequestJob) Payload() []byte {
	return mustMarshal(j.payload)
}

// Execute runs the task logic
func (j *OutgoingRequestJob) Execute(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, OutgoingRequestTimeout)
	defer cancel()

	status, err := j.do(ctx)
	if err != nil {
		j.logger.Warn(fmt.Sprintf("Nightwatch outgoing request failed: %s", j.payload.Label),
			"url", j.payload.URL,
			"method", j.payload.Method,
			"error", err)
		return nil
	}

	j.logger.Info(fmt.Sprintf("Nightwatch outgoing request: %s", j.payload.Label),
		"url", j.payload.URL,
		"method", j.payload.Method,
		"status", status)
	return nil
}

func (j *OutgoingRequestJob) do(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, j.payload.Method, j.payload.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode, nil
}
