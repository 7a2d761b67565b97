package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispatcher_NilLogger(t *testing.T) {
	_, err := NewDispatcher(&recordingSubmitter{}, nil, nil)
	assert.ErrorIs(t, err, ErrNilLogger)
}

func TestDispatcher_BuildsTypedJobs(t *testing.T) {
	submitter := &recordingSubmitter{}
	dispatcher, err := NewDispatcher(submitter, nil, setupTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, dispatcher.DispatchTest(ctx, "Bulk test job #0"))
	require.NoError(t, dispatcher.DispatchReleasing(ctx, "Bulk releasing job #0"))
	require.NoError(t, dispatcher.DispatchFailing(ctx, "Bulk failing job #0"))
	require.NoError(t, dispatcher.DispatchAuthenticated(ctx, AuthenticatedPayload{Message: "auth", Guard: "jwt"}))
	require.NoError(t, dispatcher.DispatchOutgoingRequest(ctx, OutgoingRequestPayload{URL: "http://example.com/status/200"}))

	var types []string
	for _, task := range submitter.tasks {
		types = append(types, task.Type())
	}
	assert.Equal(t, []string{
		TaskTypeTest,
		TaskTypeReleasing,
		TaskTypeFailing,
		TaskTypeAuthenticated,
		TaskTypeOutgoingRequest,
	}, types)
	assert.JSONEq(t, `{"message":"Bulk test job #0"}`, string(submitter.tasks[0].Payload()))
}

func TestDispatcher_DispatchLater(t *testing.T) {
	submitter := &recordingSubmitter{}
	dispatcher, err := NewDispatcher(submitter, nil, setupTestLogger())
	require.NoError(t, err)

	require.NoError(t, dispatcher.DispatchLater(context.Background(), newStubTask(), 5*time.Second))
	assert.Equal(t, []time.Duration{5 * time.Second}, submitter.delays)
}

func TestDispatcher_SubmitError(t *testing.T) {
	submitter := &recordingSubmitter{err: ErrQueueFull}
	dispatcher, err := NewDispatcher(submitter, nil, setupTestLogger())
	require.NoError(t, err)

	err = dispatcher.DispatchFailing(context.Background(), "msg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Contains(t, err.Error(), "failed to dispatch nightwatch_failing")
}
