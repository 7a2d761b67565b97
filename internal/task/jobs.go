package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Releasing job behaviour
const (
	// ReleaseDelay is how long a releasing job waits before its retry
	ReleaseDelay = 5 * time.Second

	// releasingMaxTries bounds the attempts a releasing job is allowed
	releasingMaxTries = 3

	// failingMaxTries is the single attempt given to a failing job
	failingMaxTries = 1
)

// ErrIntentionalFailure marks the error returned by the failing job.
var ErrIntentionalFailure = errors.New("intentional job failure")

// ErrMaxTriesExceeded is returned when a job is attempted more often than allowed.
var ErrMaxTriesExceeded = errors.New("job attempted too many times")

// MessagePayload is the payload of jobs that only carry a message.
type MessagePayload struct {
	Message string `json:"message"`
}

// TestJob logs its message and completes.
type TestJob struct {
	*Base
	payload MessagePayload
	logger  *slog.Logger
}

// NewTestJob creates a job that logs message when executed.
func NewTestJob(message string, logger *slog.Logger) (*TestJob, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &TestJob{
		Base:    NewBase(TaskTypeTest),
		payload: MessagePayload{Message: message},
		logger:  logger,
	}, nil
}

// Payload returns the task data as a byte slice
func (j *TestJob) Payload() []byte {
	return mustMarshal(j.payload)
}

// Execute runs the task logic
func (j *TestJob) Execute(_ context.Context) error {
	j.logger.Info(j.payload.Message, "task_id", j.ID(), "task_type", j.Type())
	return nil
}

// ReleasingPayload carries the attempt count across releases.
type ReleasingPayload struct {
	Message      string `json:"message"`
	AttemptCount int    `json:"attempt_count"`
	MaxTries     int    `json:"max_tries"`
}

// ReleasingJob releases itself back to the queue on its first attempt and
// completes on the second.
type ReleasingJob struct {
	*Base
	payload ReleasingPayload
	logger  *slog.Logger
}

// NewReleasingJob creates a releasing job that has not been attempted yet.
func NewReleasingJob(message string, logger *slog.Logger) (*ReleasingJob, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &ReleasingJob{
		Base:    NewBase(TaskTypeReleasing),
		payload: ReleasingPayload{Message: message, MaxTries: releasingMaxTries},
		logger:  logger,
	}, nil
}

// Payload returns the task data as a byte slice
func (j *ReleasingJob) Payload() []byte {
	return mustMarshal(j.payload)
}

// AttemptCount reports how many attempts the payload records.
func (j *ReleasingJob) AttemptCount() int {
	return j.payload.AttemptCount
}

// Execute runs the task logic. The first attempt returns a ReleaseError
// whose Next job keeps the ID and records the attempt.
func (j *ReleasingJob) Execute(_ context.Context) error {
	attempt := j.payload.AttemptCount + 1
	if j.payload.MaxTries > 0 && attempt > j.payload.MaxTries {
		return fmt.Errorf("%w: attempt %d of %d", ErrMaxTriesExceeded, attempt, j.payload.MaxTries)
	}

	if attempt < 2 {
		j.logger.Info(fmt.Sprintf("%s - releasing back to queue (attempt %d)", j.payload.Message, attempt),
			"task_id", j.ID())

		next := &ReleasingJob{
			Base:    NewBaseWithID(j.ID(), j.Type()),
			payload: j.payload,
			logger:  j.logger,
		}
		next.payload.AttemptCount = attempt
		return Release(next, ReleaseDelay)
	}

	j.payload.AttemptCount = attempt
	j.logger.Info(fmt.Sprintf("%s - completed after %d attempts", j.payload.Message, attempt),
		"task_id", j.ID())
	return nil
}

// FailingPayload is the payload of a failing job.
type FailingPayload struct {
	Message  string `json:"message"`
	MaxTries int    `json:"max_tries"`
}

// FailingJob always returns an error so the runner's failure path runs.
type FailingJob struct {
	*Base
	payload FailingPayload
	now     func() time.Time
}

// NewFailingJob creates a job that fails every time it is executed.
func NewFailingJob(message string) *FailingJob {
	return &FailingJob{
		Base:    NewBase(TaskTypeFailing),
		payload: FailingPayload{Message: message, MaxTries: failingMaxTries},
		now:     time.Now,
	}
}

// Payload returns the task data as a byte slice
func (j *FailingJob) Payload() []byte {
	return mustMarshal(j.payload)
}

// Execute runs the task logic
func (j *FailingJob) Execute(_ context.Context) error {
	return fmt.Errorf("%s - intentionally failed at %s: %w",
		j.payload.Message, j.now().Format(time.DateTime), ErrIntentionalFailure)
}

// AuthenticatedPayload records the user that dispatched the job.
type AuthenticatedPayload struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Guard   string `json:"guard"`
}

// AuthenticatedJob logs the identity it was dispatched with.
type AuthenticatedJob struct {
	*Base
	payload AuthenticatedPayload
	logger  *slog.Logger
}

// NewAuthenticatedJob creates a job carrying the dispatching user's identity.
func NewAuthenticatedJob(payload AuthenticatedPayload, logger *slog.Logger) (*AuthenticatedJob, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &AuthenticatedJob{
		Base:    NewBase(TaskTypeAuthenticated),
		payload: payload,
		logger:  logger,
	}, nil
}

// Payload returns the task data as a byte slice
func (j *AuthenticatedJob) Payload() []byte {
	return mustMarshal(j.payload)
}

// Execute runs the task logic
func (j *AuthenticatedJob) Execute(_ context.Context) error {
	j.logger.Info(j.payload.Message,
		"task_id", j.ID(),
		"user_id", j.payload.UserID,
		"email", j.payload.Email,
		"auth_check", j.payload.UserID != "",
		"guard", j.payload.Guard)
	return nil
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// payload types are plain structs of strings and ints
		panic(fmt.Sprintf("task: marshal payload: %v", err))
	}
	return data
}
