package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vortechron/nightwatch-testing/internal/api/middleware"
	"github.com/vortechron/nightwatch-testing/internal/api/shared"
	"github.com/vortechron/nightwatch-testing/internal/bulk"
	"github.com/vortechron/nightwatch-testing/internal/task"
)

// DefaultMaxCount caps bulk generation when no limit is configured.
const DefaultMaxCount = 1000

// BulkGenerator produces synthetic events.
type BulkGenerator interface {
	Generate(ctx context.Context, category bulk.Category, count int, opts bulk.Options, onProgress bulk.ProgressFunc) (int, error)
}

// AuthenticatedJobDispatcher queues the authenticated job.
type AuthenticatedJobDispatcher interface {
	DispatchAuthenticated(ctx context.Context, payload task.AuthenticatedPayload) error
}

// HandlerConfig carries the settings used by the handlers.
type HandlerConfig struct {
	// OutgoingBaseURL is the status-echo service called by /outgoing.
	OutgoingBaseURL string
	// MaxCount caps the count accepted by /bulk.
	MaxCount int
	// Guard names the configured auth guard, recorded on authenticated jobs.
	Guard string
}

// Handler serves the test endpoints.
type Handler struct {
	generator BulkGenerator
	jobs      AuthenticatedJobDispatcher
	reporter  bulk.ErrorReporter
	client    task.HTTPDoer
	config    HandlerConfig
	logger    *slog.Logger
	now       func() time.Time
}

// ErrMissingDependency is returned by NewHandler when a collaborator is nil.
var ErrMissingDependency = errors.New("missing handler dependency")

// NewHandler creates a Handler. client defaults to a no-redirect client
// with the outgoing request timeout.
func NewHandler(
	generator BulkGenerator,
	jobs AuthenticatedJobDispatcher,
	reporter bulk.ErrorReporter,
	client task.HTTPDoer,
	cfg HandlerConfig,
	logger *slog.Logger,
) (*Handler, error) {
	switch {
	case generator == nil:
		return nil, fmt.Errorf("%w: bulk generator", ErrMissingDependency)
	case jobs == nil:
		return nil, fmt.Errorf("%w: job dispatcher", ErrMissingDependency)
	case reporter == nil:
		return nil, fmt.Errorf("%w: error reporter", ErrMissingDependency)
	case logger == nil:
		return nil, fmt.Errorf("%w: logger", ErrMissingDependency)
	}
	if client == nil {
		client = task.NoRedirectClient(task.OutgoingRequestTimeout)
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = DefaultMaxCount
	}
	cfg.OutgoingBaseURL = strings.TrimRight(cfg.OutgoingBaseURL, "/")

	return &Handler{
		generator: generator,
		jobs:      jobs,
		reporter:  reporter,
		client:    client,
		config:    cfg,
		logger:    logger.With("component", "api"),
		now:       time.Now,
	}, nil
}

func (h *Handler) timestamp() string {
	return h.now().Format(time.RFC3339)
}

// Public handles GET /public.
func (h *Handler) Public(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"message":   "Nightwatch public test endpoint",
		"timestamp": h.timestamp(),
	})
}

// Outgoing handles GET /outgoing by calling the status-echo service.
func (h *Handler) Outgoing(w http.ResponseWriter, r *http.Request) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, h.config.OutgoingBaseURL+"/status/200", nil)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to build outgoing request", err)
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway, "Outgoing request failed", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"message":         "Nightwatch outgoing request test",
		"outgoing_status": resp.StatusCode,
		"timestamp":       h.timestamp(),
	})
}

// Bulk handles GET /bulk/{type}/{count}. The router restricts type to the
// known categories and count to digits; the count is clamped here.
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	category, ok := bulk.ParseCategory(chi.URLParam(r, "type"))
	if !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "Unknown bulk type")
		return
	}
	count := ClampCount(chi.URLParam(r, "count"), h.config.MaxCount)

	generated, err := h.generator.Generate(r.Context(), category, count, nil, nil)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), "Bulk generation failed", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"message":         "Bulk entries generated successfully",
		"type":            string(category),
		"requested_count": count,
		"generated_count": generated,
		"timestamp":       h.timestamp(),
	})
}

// ClampCount parses a digit string and caps it at max. Values too large
// to parse are treated as max; anything else unparsable is zero.
func ClampCount(raw string, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(raw, "-") {
			return max
		}
		return 0
	}
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

// Authenticated handles GET /authenticated.
func (h *Handler) Authenticated(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"message":   "Nightwatch authenticated test endpoint",
		"user_id":   userID(r),
		"timestamp": h.timestamp(),
	})
}

// AuthenticatedJob handles POST /authenticated-job.
func (h *Handler) AuthenticatedJob(w http.ResponseWriter, r *http.Request) {
	payload := task.AuthenticatedPayload{
		Message: "Nightwatch authenticated job dispatched at " + h.now().Format(time.DateTime),
		Guard:   h.config.Guard,
	}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		payload.UserID = strconv.FormatInt(claims.UserID, 10)
		payload.Email = claims.Email
	}

	if err := h.jobs.DispatchAuthenticated(r.Context(), payload); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"message":   "Nightwatch authenticated job dispatched",
		"user_id":   userID(r),
		"timestamp": h.timestamp(),
	})
}

// AuthenticatedException handles GET /authenticated-exception. It reports
// an error carrying the user's identity and answers 500.
func (h *Handler) AuthenticatedException(w http.ResponseWriter, r *http.Request) {
	who := "unknown"
	if id := userID(r); id != nil {
		who = strconv.FormatInt(*id, 10)
	}
	err := fmt.Errorf("Nightwatch authenticated exception test for user %s", who)

	h.reporter.Report(r.Context(), err)
	shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Internal server error", err)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("failed to write health check response", "error", err)
	}
}

// userID returns the authenticated user's ID, or nil so the JSON field
// encodes as null.
func userID(r *http.Request) *int64 {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil
	}
	id := claims.UserID
	return &id
}
