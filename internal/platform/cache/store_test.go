package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortechron/nightwatch-testing/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

// exerciseStore runs the behaviour every working store shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "key", "value", time.Minute))

	v, ok, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	added, err := s.Add(ctx, "key", "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, added, "add must not overwrite")

	added, err = s.Add(ctx, "fresh", "new", time.Minute)
	require.NoError(t, err)
	assert.True(t, added)

	require.NoError(t, Forever(ctx, s, "forever", "always"))
	v, ok, err = s.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "always", v)

	require.NoError(t, s.Forget(ctx, "key"))
	_, ok, err = s.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	calls := 0
	compute := func() (string, error) {
		calls++
		return "computed", nil
	}
	v, err = Remember(ctx, s, "remembered", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", v)
	v, err = Remember(ctx, s, "remembered", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", v)
	assert.Equal(t, 1, calls, "second call should hit the cache")
}

func TestRedisStore(t *testing.T) {
	server, client := withRedis(t)
	s := NewRedisStore(client, "nw:")

	exerciseStore(t, s)

	assert.True(t, server.Exists("nw:forever"), "keys are prefixed")
	assert.Equal(t, time.Duration(0), server.TTL("nw:forever"))
	assert.Equal(t, time.Minute, server.TTL("nw:fresh"))
}

func TestRedisStore_Expiry(t *testing.T) {
	server, client := withRedis(t)
	s := NewRedisStore(client, "")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "short", "v", time.Second))
	server.FastForward(2 * time.Second)

	_, ok, err := s.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_ServerDown(t *testing.T) {
	server, client := withRedis(t)
	s := NewRedisStore(client, "")
	server.Close()

	err := s.Put(context.Background(), "k", "v", time.Minute)
	assert.Error(t, err)
	_, _, err = s.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("nw:")
	exerciseStore(t, s)
	assert.Equal(t, 3, s.Len())
}

func TestFailingStore(t *testing.T) {
	ctx := context.Background()
	s := NewFailingStore()

	assert.ErrorIs(t, s.Put(ctx, "k", "v", time.Minute), ErrWriteRejected)
	assert.ErrorIs(t, s.Forget(ctx, "k"), ErrWriteRejected)
	_, err := s.Add(ctx, "k", "v", time.Minute)
	assert.ErrorIs(t, err, ErrWriteRejected)

	_, ok, err := s.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = Remember(ctx, s, "k", time.Minute, func() (string, error) { return "v", nil })
	assert.ErrorIs(t, err, ErrWriteRejected)

	_, err = Remember(ctx, NewMemoryStore(""), "k", time.Minute, func() (string, error) {
		return "", errors.New("compute failed")
	})
	assert.EqualError(t, err, "compute failed")
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.CacheConfig
		want    any
		wantErr error
	}{
		{"memory", config.CacheConfig{Driver: DriverMemory}, &MemoryStore{}, nil},
		{"failing", config.CacheConfig{Driver: DriverFailing}, FailingStore{}, nil},
		{"redis", config.CacheConfig{Driver: DriverRedis, RedisAddr: server.Addr()}, &RedisStore{}, nil},
		{"unknown", config.CacheConfig{Driver: "memcached"}, nil, ErrUnsupportedDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, closeFn, err := New(ctx, tt.cfg, testLogger())
			require.NotNil(t, closeFn)
			defer func() { _ = closeFn() }()

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestNew_RedisUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, _, err := New(context.Background(), config.CacheConfig{Driver: DriverRedis, RedisAddr: addr}, testLogger())
	assert.Error(t, err)
}

type countingObserver map[string]int

func (c countingObserver) CacheEvent(event string) { c[event]++ }

func TestWithObserver(t *testing.T) {
	ctx := context.Background()
	obs := countingObserver{}
	s := WithObserver(NewMemoryStore(""), obs)

	require.NoError(t, s.Put(ctx, "k", "v", time.Minute))
	_, _, _ = s.Get(ctx, "k")
	_, _, _ = s.Get(ctx, "nope")
	_, _ = s.Add(ctx, "k", "v", time.Minute)
	require.NoError(t, s.Forget(ctx, "k"))

	assert.Equal(t, countingObserver{EventWrite: 1, EventHit: 1, EventMiss: 1, EventDelete: 1}, obs)

	failing := countingObserver{}
	_ = WithObserver(NewFailingStore(), failing).Put(ctx, "k", "v", time.Minute)
	assert.Equal(t, countingObserver{EventError: 1}, failing)
}
