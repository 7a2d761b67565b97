package cache

import (
	"context"
	"time"
)

// Cache event names passed to an Observer
const (
	EventWrite  = "write"
	EventHit    = "hit"
	EventMiss   = "miss"
	EventDelete = "delete"
	EventError  = "error"
)

// Observer is told about every cache event.
type Observer interface {
	CacheEvent(event string)
}

type observedStore struct {
	Store
	obs Observer
}

// WithObserver wraps s so each operation is reported to obs.
func WithObserver(s Store, obs Observer) Store {
	return &observedStore{Store: s, obs: obs}
}

func (o *observedStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	err := o.Store.Put(ctx, key, value, ttl)
	o.report(EventWrite, err)
	return err
}

func (o *observedStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := o.Store.Get(ctx, key)
	event := EventMiss
	if ok {
		event = EventHit
	}
	o.report(event, err)
	return v, ok, err
}

func (o *observedStore) Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	added, err := o.Store.Add(ctx, key, value, ttl)
	if added || err != nil {
		o.report(EventWrite, err)
	}
	return added, err
}

func (o *observedStore) Forget(ctx context.Context, key string) error {
	err := o.Store.Forget(ctx, key)
	o.report(EventDelete, err)
	return err
}

func (o *observedStore) report(event string, err error) {
	if err != nil {
		event = EventError
	}
	o.obs.CacheEvent(event)
}
