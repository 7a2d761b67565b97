package bulk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/vortechron/nightwatch-testing/internal/domain"
	"github.com/vortechron/nightwatch-testing/internal/platform/mail"
)

var errUnreachable = errors.New("collaborator unreachable")

type fakeQueries struct {
	mu          sync.Mutex
	calls       []string
	nativeSleep bool
	failAt      int
}

func (f *fakeQueries) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.failAt > 0 && len(f.calls) >= f.failAt {
		return errUnreachable
	}
	return nil
}

func (f *fakeQueries) FirstAfter(context.Context, int64) error { return f.record("first") }
func (f *fakeQueries) CountAndMax(context.Context) error       { return f.record("aggregate") }
func (f *fakeQueries) Count(context.Context) (int64, error)    { return 0, f.record("count") }
func (f *fakeQueries) Sleep(context.Context, time.Duration) error {
	return f.record("sleep")
}
func (f *fakeQueries) SupportsSleep() bool { return f.nativeSleep }

func (f *fakeQueries) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

type cacheCall struct {
	op  string
	key string
	hit bool
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string]string
	calls  []cacheCall
	putErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (f *fakeCache) Put(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cacheCall{op: "put", key: key})
	if f.putErr != nil {
		return f.putErr
	}
	f.data[key] = value
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	f.calls = append(f.calls, cacheCall{op: "get", key: key, hit: ok})
	return v, ok, nil
}

func (f *fakeCache) Forget(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cacheCall{op: "forget", key: key})
	delete(f.data, key)
	return nil
}

type fakeJobs struct {
	mu        sync.Mutex
	test      []string
	releasing []string
	failing   []string
	err       error
}

func (f *fakeJobs) DispatchTest(_ context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.test = append(f.test, msg)
	return nil
}

func (f *fakeJobs) DispatchReleasing(_ context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releasing = append(f.releasing, msg)
	return nil
}

func (f *fakeJobs) DispatchFailing(_ context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = append(f.failing, msg)
	return nil
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []mail.Message
	queued []mail.Message
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) Queue(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, msg)
	return nil
}

type fakeUsers struct {
	user  *domain.User
	err   error
	calls int
}

func (f *fakeUsers) FirstUser(context.Context) (*domain.User, error) {
	f.calls++
	return f.user, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, _ *domain.User, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

type fakeReporter struct {
	mu       sync.Mutex
	reported []error
}

func (f *fakeReporter) Report(_ context.Context, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reported = append(f.reported, err)
}

type fakeRecorder struct {
	mu     sync.Mutex
	counts map[Category]int
	order  []Category
}

func (f *fakeRecorder) Generated(c Category, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = make(map[Category]int)
	}
	f.counts[c] += n
	f.order = append(f.order, c)
}

type fixture struct {
	queries  *fakeQueries
	cache    *fakeCache
	jobs     *fakeJobs
	mailer   *fakeMailer
	users    *fakeUsers
	notifier *fakeNotifier
	reporter *fakeReporter
	recorder *fakeRecorder
	slept    []time.Duration
	gen      *Generator
}

func newFixture() *fixture {
	f := &fixture{
		queries:  &fakeQueries{},
		cache:    newFakeCache(),
		jobs:     &fakeJobs{},
		mailer:   &fakeMailer{},
		users:    &fakeUsers{user: &domain.User{ID: 1, Name: "Test", Email: "test@example.com"}},
		notifier: &fakeNotifier{},
		reporter: &fakeReporter{},
		recorder: &fakeRecorder{},
	}
	f.gen = f.build(Dependencies{
		Queries:  f.queries,
		Cache:    f.cache,
		Jobs:     f.jobs,
		Mailer:   f.mailer,
		Users:    f.users,
		Notifier: f.notifier,
		Reporter: f.reporter,
		Recorder: f.recorder,
	})
	return f
}

func (f *fixture) build(deps Dependencies) *Generator {
	gen, err := NewGenerator(deps, Config{
		SlowQueryInterval: 5,
		SlowQueryDelay:    300 * time.Millisecond,
		MailTo:            []string{"nightwatch-test@example.com"},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		panic(err)
	}
	gen.now = func() time.Time { return time.Date(2025, 5, 4, 13, 14, 15, 0, time.UTC) }
	gen.sleep = func(_ context.Context, d time.Duration) error {
		f.slept = append(f.slept, d)
		return nil
	}
	return gen
}

// totalCalls counts every collaborator call made so far.
func (f *fixture) totalCalls() int {
	return len(f.queries.calls) + len(f.cache.calls) +
		len(f.jobs.test) + len(f.jobs.releasing) + len(f.jobs.failing) +
		len(f.mailer.sent) + len(f.mailer.queued) +
		len(f.notifier.sent) + len(f.reporter.reported)
}
