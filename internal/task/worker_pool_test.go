package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// mockTaskQueue implements TaskQueueReader for testing
type mockTaskQueue struct {
	ch chan Task
}

func newMockTaskQueue() *mockTaskQueue {
	return &mockTaskQueue{
		ch: make(chan Task, 10),
	}
}

func (m *mockTaskQueue) GetChannel() <-chan Task {
	return m.ch
}

func TestNewWorkerPool(t *testing.T) {
	logger := setupTestLogger()
	taskQueue := newMockTaskQueue()
	noop := func(context.Context, Task, int) {}

	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 5}, noop, logger)

	assert.NotNil(t, pool)
	assert.Equal(t, 5, pool.size)
	assert.NotNil(t, pool.ctx)
	assert.NotNil(t, pool.cancel)

	// Invalid worker counts default to 1
	pool = NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 0}, noop, logger)
	assert.Equal(t, 1, pool.size)

	pool = NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: -5}, noop, logger)
	assert.Equal(t, 1, pool.size)
}

func TestWorkerPoolProcessesTasks(t *testing.T) {
	taskQueue := newMockTaskQueue()

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	wg.Add(3)

	process := func(_ context.Context, task Task, _ int) {
		mu.Lock()
		seen[task.ID().String()] = true
		mu.Unlock()
		wg.Done()
	}

	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 2}, process, setupTestLogger())
	pool.Start()
	defer pool.Stop()

	tasks := []*stubTask{newStubTask(), newStubTask(), newStubTask()}
	for _, task := range tasks {
		taskQueue.ch <- task
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tasks to be processed")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, task := range tasks {
		assert.True(t, seen[task.ID().String()])
	}
}

func TestWorkerPoolStopsOnClosedChannel(t *testing.T) {
	taskQueue := newMockTaskQueue()
	pool := NewWorkerPool(taskQueue, DefaultWorkerPoolConfig(), func(context.Context, Task, int) {}, setupTestLogger())
	pool.Start()

	close(taskQueue.ch)

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not stop")
	}
}
