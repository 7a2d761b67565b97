package task

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobs_NilLogger(t *testing.T) {
	_, err := NewTestJob("msg", nil)
	assert.ErrorIs(t, err, ErrNilLogger)

	_, err = NewReleasingJob("msg", nil)
	assert.ErrorIs(t, err, ErrNilLogger)

	_, err = NewAuthenticatedJob(AuthenticatedPayload{}, nil)
	assert.ErrorIs(t, err, ErrNilLogger)

	_, err = NewOutgoingRequestJob(OutgoingRequestPayload{}, nil, nil)
	assert.ErrorIs(t, err, ErrNilLogger)
}

func TestTestJob(t *testing.T) {
	job, err := NewTestJob("Nightwatch test job executed", setupTestLogger())
	require.NoError(t, err)

	assert.Equal(t, TaskTypeTest, job.Type())
	assert.Equal(t, TaskStatusPending, job.Status())
	assert.JSONEq(t, `{"message":"Nightwatch test job executed"}`, string(job.Payload()))
	assert.NoError(t, job.Execute(context.Background()))
}

func TestReleasingJob(t *testing.T) {
	job, err := NewReleasingJob("Bulk releasing job #0", setupTestLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, job.AttemptCount())

	// First attempt releases with the attempt recorded in the copy
	err = job.Execute(context.Background())
	var release *ReleaseError
	require.True(t, errors.As(err, &release))
	assert.Equal(t, ReleaseDelay, release.Delay)

	next, ok := release.Next.(*ReleasingJob)
	require.True(t, ok)
	assert.Equal(t, job.ID(), next.ID())
	assert.Equal(t, 1, next.AttemptCount())
	assert.Equal(t, 0, job.AttemptCount(), "original payload must not change")

	var payload ReleasingPayload
	require.NoError(t, json.Unmarshal(next.Payload(), &payload))
	assert.Equal(t, 1, payload.AttemptCount)
	assert.Equal(t, 3, payload.MaxTries)

	// Second attempt completes
	assert.NoError(t, next.Execute(context.Background()))
	assert.Equal(t, 2, next.AttemptCount())
}

func TestReleasingJob_MaxTries(t *testing.T) {
	job, err := NewReleasingJob("msg", setupTestLogger())
	require.NoError(t, err)
	job.payload.AttemptCount = 3

	err = job.Execute(context.Background())
	assert.ErrorIs(t, err, ErrMaxTriesExceeded)
}

func TestFailingJob(t *testing.T) {
	job := NewFailingJob("Bulk failing job #5")
	job.now = func() time.Time { return time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC) }

	err := job.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntentionalFailure)
	assert.Contains(t, err.Error(), "Bulk failing job #5 - intentionally failed at 2025-06-01 14:30:00")
	assert.JSONEq(t, `{"message":"Bulk failing job #5","max_tries":1}`, string(job.Payload()))
}

func TestAuthenticatedJob(t *testing.T) {
	job, err := NewAuthenticatedJob(AuthenticatedPayload{
		Message: "Nightwatch authenticated job executed",
		UserID:  "7",
		Email:   "user@example.com",
		Guard:   "jwt",
	}, setupTestLogger())
	require.NoError(t, err)

	assert.Equal(t, TaskTypeAuthenticated, job.Type())
	assert.NoError(t, job.Execute(context.Background()))
}

func TestOutgoingRequestJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status/301" {
			http.Redirect(w, r, "/elsewhere", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	t.Run("logs status without following redirects", func(t *testing.T) {
		job, err := NewOutgoingRequestJob(OutgoingRequestPayload{
			URL:   server.URL + "/status/301",
			Label: "Outgoing 3XX",
		}, nil, setupTestLogger())
		require.NoError(t, err)

		assert.Equal(t, "GET", job.payload.Method)
		assert.NoError(t, job.Execute(context.Background()))
	})

	t.Run("server error is not a job failure", func(t *testing.T) {
		job, err := NewOutgoingRequestJob(OutgoingRequestPayload{
			Method: http.MethodGet,
			URL:    server.URL + "/status/500",
			Label:  "Outgoing 5XX",
		}, server.Client(), setupTestLogger())
		require.NoError(t, err)

		assert.NoError(t, job.Execute(context.Background()))
	})

	t.Run("transport failure is swallowed", func(t *testing.T) {
		job, err := NewOutgoingRequestJob(OutgoingRequestPayload{
			URL:   "http://127.0.0.1:0/unreachable",
			Label: "Unreachable",
		}, nil, setupTestLogger())
		require.NoError(t, err)

		assert.NoError(t, job.Execute(context.Background()))
	})
}

func TestNoRedirectClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/target", http.StatusFound)
	}))
	defer server.Close()

	resp, err := NoRedirectClient(time.Second).Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}
