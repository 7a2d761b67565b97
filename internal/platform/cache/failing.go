package cache

import (
	"context"
	"time"
)

// FailingStore rejects every write and misses every read.
type FailingStore struct{}

// NewFailingStore creates a FailingStore.
func NewFailingStore() FailingStore {
	return FailingStore{}
}

// Put implements Store
func (FailingStore) Put(context.Context, string, string, time.Duration) error {
	return ErrWriteRejected
}

// Get implements Store
func (FailingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, nil
}

// Add implements Store
func (FailingStore) Add(context.Context, string, string, time.Duration) (bool, error) {
	return false, ErrWriteRejected
}

// Forget implements Store
func (FailingStore) Forget(context.Context, string) error {
	return ErrWriteRejected
}
