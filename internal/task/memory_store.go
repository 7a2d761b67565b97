package task

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTaskNotFound is returned when a task ID is not tracked by the store.
var ErrTaskNotFound = errors.New("task not found")

// TaskRecord is the state the store keeps for one task.
type TaskRecord struct {
	Task        Task
	Status      TaskStatus
	Error       string
	AvailableAt time.Time
	UpdatedAt   time.Time
}

// MemoryTaskStore keeps task state in process memory. Tasks that settle as
// completed or failed are dropped, so only queued, running and scheduled
// tasks take up space.
type MemoryTaskStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*TaskRecord
	now     func() time.Time
}

// NewMemoryTaskStore creates an empty MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		records: make(map[uuid.UUID]*TaskRecord),
		now:     time.Now,
	}
}

// SaveTask records a newly submitted task as pending
func (s *MemoryTaskStore) SaveTask(_ context.Context, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.records[task.ID()] = &TaskRecord{
		Task:        task,
		Status:      TaskStatusPending,
		AvailableAt: now,
		UpdatedAt:   now,
	}
	return nil
}

// UpdateTaskStatus updates the status of a task. A terminal status removes
// the record.
func (s *MemoryTaskStore) UpdateTaskStatus(_ context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if status == TaskStatusCompleted || status == TaskStatusFailed {
		delete(s.records, taskID)
		return nil
	}
	rec.Status = status
	rec.Error = errorMsg
	rec.UpdatedAt = s.now()
	return nil
}

// ScheduleTask records a task as released until availableAt
func (s *MemoryTaskStore) ScheduleTask(_ context.Context, task Task, availableAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[task.ID()] = &TaskRecord{
		Task:        task,
		Status:      TaskStatusReleased,
		AvailableAt: availableAt,
		UpdatedAt:   s.now(),
	}
	return nil
}

// ClaimDueTasks returns released tasks available at or before now, oldest
// first, and marks them pending
func (s *MemoryTaskStore) ClaimDueTasks(_ context.Context, now time.Time) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*TaskRecord
	for _, rec := range s.records {
		if rec.Status == TaskStatusReleased && !rec.AvailableAt.After(now) {
			due = append(due, rec)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].AvailableAt.Before(due[j].AvailableAt)
	})

	tasks := make([]Task, 0, len(due))
	for _, rec := range due {
		rec.Status = TaskStatusPending
		rec.UpdatedAt = s.now()
		tasks = append(tasks, rec.Task)
	}
	return tasks, nil
}

// GetTasksByStatus retrieves all tasks currently in the given status
func (s *MemoryTaskStore) GetTasksByStatus(_ context.Context, status TaskStatus) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []Task
	for _, rec := range s.records {
		if rec.Status == status {
			tasks = append(tasks, rec.Task)
		}
	}
	return tasks, nil
}

// Len returns the number of tracked tasks.
func (s *MemoryTaskStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns a copy of the record for taskID.
func (s *MemoryTaskStore) Get(taskID uuid.UUID) (TaskRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[taskID]
	if !ok {
		return TaskRecord{}, false
	}
	return *rec, true
}
