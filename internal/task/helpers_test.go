package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// stubTask implements the Task interface for testing
type stubTask struct {
	*Base
	payload []byte
	execFn  func(ctx context.Context) error
}

func (s *stubTask) Payload() []byte {
	return s.payload
}

func (s *stubTask) Execute(ctx context.Context) error {
	if s.execFn != nil {
		return s.execFn(ctx)
	}
	return nil
}

func newStubTask() *stubTask {
	return &stubTask{
		Base:    NewBase("stub"),
		payload: []byte(`{"message":"stub"}`),
	}
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// recordingSubmitter captures submitted tasks in order.
type recordingSubmitter struct {
	mu     sync.Mutex
	tasks  []Task
	delays []time.Duration
	err    error
}

func (r *recordingSubmitter) Submit(ctx context.Context, task Task) error {
	return r.SubmitAfter(ctx, task, 0)
}

func (r *recordingSubmitter) SubmitAfter(_ context.Context, task Task, delay time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, task)
	r.delays = append(r.delays, delay)
	return nil
}
