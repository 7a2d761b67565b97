package bulk

import (
	"context"
	"time"

	"github.com/vortechron/nightwatch-testing/internal/domain"
	"github.com/vortechron/nightwatch-testing/internal/platform/mail"
)

// QueryExecutor runs the lookups issued by the query producer against the
// users table.
type QueryExecutor interface {
	// FirstAfter fetches the first row whose id is greater than id.
	FirstAfter(ctx context.Context, id int64) error

	// CountAndMax runs a COUNT(*), MAX(id) aggregate.
	CountAndMax(ctx context.Context) error

	// Count returns the number of rows.
	Count(ctx context.Context) (int64, error)

	// Sleep executes a database-side sleep statement.
	Sleep(ctx context.Context, d time.Duration) error

	// SupportsSleep reports whether Sleep is available on this database.
	SupportsSleep() bool
}

// CacheStore is the key-value store exercised by the cache producer.
type CacheStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Forget(ctx context.Context, key string) error
}

// JobDispatcher queues the job kinds used by the job producer.
type JobDispatcher interface {
	DispatchTest(ctx context.Context, message string) error
	DispatchReleasing(ctx context.Context, message string) error
	DispatchFailing(ctx context.Context, message string) error
}

// Mailer delivers mail now or through the queue.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
	Queue(ctx context.Context, msg mail.Message) error
}

// UserDirectory finds a notifiable user. FirstUser returns nil, nil when
// there are no users.
type UserDirectory interface {
	FirstUser(ctx context.Context) (*domain.User, error)
}

// Notifier delivers a notification to a user.
type Notifier interface {
	Notify(ctx context.Context, user *domain.User, n domain.Notification) error
}

// ErrorReporter receives errors that were handled locally.
type ErrorReporter interface {
	Report(ctx context.Context, err error)
}

// Recorder observes how many units each category produced.
type Recorder interface {
	Generated(category Category, n int)
}
