package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// drainPollInterval is how often Drain checks for outstanding jobs.
const drainPollInterval = 20 * time.Millisecond

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// PollInterval defines how often released and delayed tasks are
	// checked for being due. If zero, defaults to 1 second.
	PollInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:  2,
		QueueSize:    1000,
		PollInterval: time.Second,
	}
}

// OutcomeFunc observes the final state of every processed task.
type OutcomeFunc func(task Task, status TaskStatus)

// TaskRunner manages background task processing
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	pool       *WorkerPool
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
	outcome    OutcomeFunc
	now        func() time.Time

	// outstanding counts jobs on the queue or executing.
	outstanding atomic.Int64
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("component", "task_runner")

	r := &TaskRunner{
		store:      store,
		queue:      NewTaskQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			// Default error handler just logs the error
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
		outcome: func(Task, TaskStatus) {},
		now:     time.Now,
	}
	r.pool = NewWorkerPool(r.queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, r.runQueued, logger)
	return r
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// SetOutcomeHook registers a function called after each task settles.
func (r *TaskRunner) SetOutcomeHook(fn OutcomeFunc) {
	r.outcome = fn
}

// Submit adds a new task to the queue. While the queue is full it waits for
// a worker to free a slot, until ctx is done.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	// Count the task before a worker can pick it up and settle it.
	r.outstanding.Add(1)
	if err := r.queue.Enqueue(ctx, task); err != nil {
		r.outstanding.Add(-1)
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark rejected task as failed",
				"task_id", task.ID(),
				"error", updateErr)
		}
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// SubmitAfter schedules a task to be enqueued once delay has elapsed.
// A non-positive delay is the same as Submit.
func (r *TaskRunner) SubmitAfter(ctx context.Context, task Task, delay time.Duration) error {
	if delay <= 0 {
		return r.Submit(ctx, task)
	}

	if err := r.store.ScheduleTask(ctx, task, r.now().Add(delay)); err != nil {
		return fmt.Errorf("failed to schedule task: %w", err)
	}
	r.logger.Debug("task scheduled",
		"task_id", task.ID(),
		"task_type", task.Type(),
		"delay", delay)
	return nil
}

// Start launches the worker pool and the release poller
func (r *TaskRunner) Start() error {
	r.pool.Start()

	r.wg.Add(1)
	go r.releasePoller()

	r.logger.Info("task runner started",
		"worker_count", r.config.WorkerCount,
		"queue_size", r.config.QueueSize,
		"poll_interval", r.config.PollInterval)
	return nil
}

// Stop gracefully shuts down the task runner. Tasks still scheduled for
// later stay in the store.
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.pool.Stop()
	r.queue.Close()
}

// Drain blocks until no job is queued or executing, or ctx is done. Jobs
// scheduled for later are not waited for.
func (r *TaskRunner) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for r.outstanding.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d job(s) still outstanding: %w", r.outstanding.Load(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

func (r *TaskRunner) runQueued(ctx context.Context, task Task, workerID int) {
	defer r.outstanding.Add(-1)
	r.processTask(ctx, task, workerID)
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(ctx context.Context, task Task, workerID int) {
	logger := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, ""); err != nil {
		logger.Error("failed to update task status to processing", "error", err)
		return
	}
	setStatus(task, TaskStatusProcessing)

	logger.Debug("processing task")

	err := task.Execute(ctx)

	var release *ReleaseError
	switch {
	case errors.As(err, &release):
		next := release.Next
		if next == nil {
			next = task
		}
		logger.Info("task released back to queue", "delay", release.Delay)
		if schedErr := r.store.ScheduleTask(ctx, next, r.now().Add(release.Delay)); schedErr != nil {
			logger.Error("failed to schedule released task", "error", schedErr)
		}
		r.settle(task, TaskStatusReleased)

	case err != nil:
		logger.Error("task execution failed", "error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			logger.Error("failed to update task status to failed", "error", updateErr)
		}
		r.settle(task, TaskStatusFailed)
		r.errHandler(task, err)

	default:
		logger.Info("task completed successfully")
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusCompleted, ""); updateErr != nil {
			logger.Error("failed to update task status to completed", "error", updateErr)
		}
		r.settle(task, TaskStatusCompleted)
	}
}

func (r *TaskRunner) settle(task Task, status TaskStatus) {
	setStatus(task, status)
	r.outcome(task, status)
}

// releasePoller periodically moves due tasks from the store onto the queue
func (r *TaskRunner) releasePoller() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.enqueueDue(r.ctx)
		}
	}
}

// enqueueDue claims every due task and puts it on the queue. Tasks that do
// not fit are scheduled again for the next poll.
func (r *TaskRunner) enqueueDue(ctx context.Context) int {
	now := r.now()
	due, err := r.store.ClaimDueTasks(ctx, now)
	if err != nil {
		r.logger.Error("failed to claim due tasks", "error", err)
		return 0
	}

	enqueued := 0
	for _, task := range due {
		setStatus(task, TaskStatusPending)
		r.outstanding.Add(1)
		if err := r.queue.TryEnqueue(task); err != nil {
			r.outstanding.Add(-1)
			r.logger.Error("failed to requeue due task",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
			if schedErr := r.store.ScheduleTask(ctx, task, now.Add(r.config.PollInterval)); schedErr != nil {
				r.logger.Error("failed to reschedule due task", "task_id", task.ID(), "error", schedErr)
			}
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		r.logger.Debug("requeued due tasks", "count", enqueued)
	}
	return enqueued
}
