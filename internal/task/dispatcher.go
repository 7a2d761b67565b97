package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Dispatcher builds jobs and hands them to a Submitter.
type Dispatcher struct {
	submitter Submitter
	client    HTTPDoer
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. client is used by outgoing request
// jobs; nil selects a default client.
func NewDispatcher(submitter Submitter, client HTTPDoer, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &Dispatcher{
		submitter: submitter,
		client:    client,
		logger:    logger.With("component", "job_dispatcher"),
	}, nil
}

// DispatchTest queues a job that logs message.
func (d *Dispatcher) DispatchTest(ctx context.Context, message string) error {
	job, err := NewTestJob(message, d.logger)
	if err != nil {
		return err
	}
	return d.submit(ctx, job)
}

// DispatchReleasing queues a job that releases itself once before completing.
func (d *Dispatcher) DispatchReleasing(ctx context.Context, message string) error {
	job, err := NewReleasingJob(message, d.logger)
	if err != nil {
		return err
	}
	return d.submit(ctx, job)
}

// DispatchFailing queues a job that always fails.
func (d *Dispatcher) DispatchFailing(ctx context.Context, message string) error {
	return d.submit(ctx, NewFailingJob(message))
}

// DispatchAuthenticated queues a job recording the dispatching identity.
func (d *Dispatcher) DispatchAuthenticated(ctx context.Context, payload AuthenticatedPayload) error {
	job, err := NewAuthenticatedJob(payload, d.logger)
	if err != nil {
		return err
	}
	return d.submit(ctx, job)
}

// DispatchOutgoingRequest queues a job that performs one HTTP request.
func (d *Dispatcher) DispatchOutgoingRequest(ctx context.Context, payload OutgoingRequestPayload) error {
	job, err := NewOutgoingRequestJob(payload, d.client, d.logger)
	if err != nil {
		return err
	}
	return d.submit(ctx, job)
}

// DispatchLater submits an already built task after delay.
func (d *Dispatcher) DispatchLater(ctx context.Context, task Task, delay time.Duration) error {
	if err := d.submitter.SubmitAfter(ctx, task, delay); err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", task.Type(), err)
	}
	return nil
}

func (d *Dispatcher) submit(ctx context.Context, task Task) error {
	if err := d.submitter.Submit(ctx, task); err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", task.Type(), err)
	}
	return nil
}
