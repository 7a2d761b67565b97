package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	items  *gocache.Cache
	prefix string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		items:  gocache.New(gocache.NoExpiration, 5*time.Minute),
		prefix: prefix,
	}
}

func expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

// Put implements Store
func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.items.Set(s.prefix+key, value, expiry(ttl))
	return nil
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.items.Get(s.prefix + key)
	if !ok {
		return "", false, nil
	}
	str, _ := v.(string)
	return str, true, nil
}

// Add implements Store
func (s *MemoryStore) Add(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	// go-cache reports an existing key as an error
	if err := s.items.Add(s.prefix+key, value, expiry(ttl)); err != nil {
		return false, nil
	}
	return true, nil
}

// Forget implements Store
func (s *MemoryStore) Forget(_ context.Context, key string) error {
	s.items.Delete(s.prefix + key)
	return nil
}

// Len returns the number of unexpired items.
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}
