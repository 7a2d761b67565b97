package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusReleased   TaskStatus = "released"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task type constants
const (
	TaskTypeTest            = "nightwatch_test"
	TaskTypeReleasing       = "nightwatch_releasing"
	TaskTypeFailing         = "nightwatch_failing"
	TaskTypeAuthenticated   = "nightwatch_authenticated"
	TaskTypeOutgoingRequest = "nightwatch_outgoing_request"
	TaskTypeQueuedMail      = "nightwatch_queued_mail"
)

// Common errors
var (
	ErrNilLogger = errors.New("logger cannot be nil")
)

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte

	// Status returns the current task status
	Status() TaskStatus

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// TaskQueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue
// allowing services to enqueue tasks for processing
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue for processing, waiting for room
	// while the queue is full. It returns an error once ctx is done or the
	// queue is closed.
	Enqueue(ctx context.Context, task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// TaskStore defines the interface for tracking task state
type TaskStore interface {
	// SaveTask records a newly submitted task as pending
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus updates the status of a task
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	// ScheduleTask records a task that must not run before availableAt.
	// A task with an existing ID replaces the stored one.
	ScheduleTask(ctx context.Context, task Task, availableAt time.Time) error

	// ClaimDueTasks returns scheduled tasks whose time has come and marks
	// them pending so they are claimed only once.
	ClaimDueTasks(ctx context.Context, now time.Time) ([]Task, error)

	// GetTasksByStatus retrieves all tasks currently in the given status
	GetTasksByStatus(ctx context.Context, status TaskStatus) ([]Task, error)
}

// Submitter hands tasks to the queue.
type Submitter interface {
	// Submit enqueues a task for immediate processing
	Submit(ctx context.Context, task Task) error

	// SubmitAfter schedules a task to be enqueued once delay has elapsed
	SubmitAfter(ctx context.Context, task Task, delay time.Duration) error
}

// ReleaseError is returned by Execute when a task asks to be put back on
// the queue. Next is the task to run later; it carries the updated payload.
type ReleaseError struct {
	Next  Task
	Delay time.Duration
}

// Error implements the error interface
func (e *ReleaseError) Error() string {
	return fmt.Sprintf("task released back to queue for %s", e.Delay)
}

// Release builds the error a task returns to be re-run after delay.
func Release(next Task, delay time.Duration) error {
	return &ReleaseError{Next: next, Delay: delay}
}

// Base carries the identity and status shared by every job type.
// Jobs embed *Base and supply Payload and Execute.
type Base struct {
	id       uuid.UUID
	taskType string

	mu     sync.RWMutex
	status TaskStatus
}

// NewBase creates a pending Base with a fresh ID.
func NewBase(taskType string) *Base {
	return NewBaseWithID(uuid.New(), taskType)
}

// NewBaseWithID creates a pending Base reusing an existing ID, used when a
// released task is rebuilt with its next payload.
func NewBaseWithID(id uuid.UUID, taskType string) *Base {
	return &Base{id: id, taskType: taskType, status: TaskStatusPending}
}

// ID returns the task's unique identifier
func (b *Base) ID() uuid.UUID {
	return b.id
}

// Type returns the task type identifier
func (b *Base) Type() string {
	return b.taskType
}

// Status returns the current task status
func (b *Base) Status() TaskStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// SetStatus records a status transition made by the runner.
func (b *Base) SetStatus(status TaskStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

// statusSetter is implemented by tasks that embed *Base.
type statusSetter interface {
	SetStatus(status TaskStatus)
}

func setStatus(t Task, status TaskStatus) {
	if s, ok := t.(statusSetter); ok {
		s.SetStatus(status)
	}
}
