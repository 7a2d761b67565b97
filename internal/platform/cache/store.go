package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vortechron/nightwatch-testing/internal/config"
)

// Cache drivers
const (
	DriverRedis   = "redis"
	DriverMemory  = "memory"
	DriverFailing = "failing"
)

// Errors returned by stores
var (
	ErrUnsupportedDriver = errors.New("unsupported cache driver")
	ErrWriteRejected     = errors.New("cache write rejected")
)

// Store is a key-value cache. A ttl of zero or less stores the value
// without expiry.
type Store interface {
	// Put stores value under key.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Add stores value only when key is absent and reports whether it did.
	Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Forget removes key.
	Forget(ctx context.Context, key string) error
}

// Forever stores value without expiry.
func Forever(ctx context.Context, s Store, key, value string) error {
	return s.Put(ctx, key, value, 0)
}

// Remember returns the cached value for key, computing and storing it with
// fn on a miss.
func Remember(ctx context.Context, s Store, key string, ttl time.Duration, fn func() (string, error)) (string, error) {
	if v, ok, err := s.Get(ctx, key); err != nil {
		return "", err
	} else if ok {
		return v, nil
	}

	v, err := fn()
	if err != nil {
		return "", err
	}
	if err := s.Put(ctx, key, v, ttl); err != nil {
		return "", err
	}
	return v, nil
}

// New builds the store selected by cfg.Driver. The returned close function
// releases any connection held by the store.
func New(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("cache store ready", "driver", cfg.Driver, "addr", cfg.RedisAddr)
		return NewRedisStore(client, cfg.Prefix), client.Close, nil

	case DriverMemory:
		logger.Info("cache store ready", "driver", cfg.Driver)
		return NewMemoryStore(cfg.Prefix), noop, nil

	case DriverFailing:
		logger.Warn("cache store rejects all writes", "driver", cfg.Driver)
		return NewFailingStore(), noop, nil

	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}
