package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Errors returned by Enqueue and TryEnqueue
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// TaskQueue is the bounded buffer between Submit and the worker pool.
// Enqueue waits for room so a burst larger than the buffer is absorbed at
// the pace of the workers; TryEnqueue rejects instead.
type TaskQueue struct {
	mu      sync.RWMutex
	jobs    chan Task
	done    chan struct{}
	closing sync.Once
	closed  bool
	logger  *slog.Logger
}

// NewTaskQueue creates a queue holding at most size jobs.
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	return &TaskQueue{
		jobs:   make(chan Task, size),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Enqueue adds a job, blocking while the queue is full.
func (q *TaskQueue) Enqueue(ctx context.Context, job Task) error {
	// Close takes the write lock, so the channel stays open while we send.
	// It closes done first to release senders parked on a full queue.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return fmt.Errorf("waiting for room in task queue: %w", ctx.Err())
	}

	q.logQueued(job)
	return nil
}

// TryEnqueue adds a job only if there is room right now.
func (q *TaskQueue) TryEnqueue(job Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
	default:
		return fmt.Errorf("%w: %d jobs waiting", ErrQueueFull, cap(q.jobs))
	}

	q.logQueued(job)
	return nil
}

func (q *TaskQueue) logQueued(job Task) {
	q.logger.Debug("job queued",
		"task_id", job.ID(),
		"task_type", job.Type(),
		"depth", len(q.jobs))
}

// Close stops accepting jobs. Jobs already queued are still delivered.
func (q *TaskQueue) Close() {
	q.closing.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
		q.logger.Info("task queue closed", "pending", len(q.jobs))
	})
}

// Len returns the number of queued jobs.
func (q *TaskQueue) Len() int {
	return len(q.jobs)
}

// GetChannel exposes the queue to the worker pool.
func (q *TaskQueue) GetChannel() <-chan Task {
	return q.jobs
}
