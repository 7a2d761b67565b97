package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	route  string
	method string
	code   int
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveHTTP(route, method string, code int, _ time.Duration) {
	o.seen = append(o.seen, observation{route: route, method: method, code: code})
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	obs := &recordingObserver{}
	r := chi.NewRouter()
	r.Use(NewMetricsMiddleware(obs))
	r.Get("/bulk/{type}/{count}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bulk/cache/5", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Len(t, obs.seen, 2)
	assert.Equal(t, observation{route: "/bulk/{type}/{count}", method: http.MethodGet, code: http.StatusAccepted}, obs.seen[0])
	assert.Equal(t, unmatchedRoute, obs.seen[1].route)
	assert.Equal(t, http.StatusNotFound, obs.seen[1].code)
}
