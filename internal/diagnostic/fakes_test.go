package diagnostic

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vortechron/nightwatch-testing/internal/config"
	"github.com/vortechron/nightwatch-testing/internal/domain"
	"github.com/vortechron/nightwatch-testing/internal/platform/mail"
	"github.com/vortechron/nightwatch-testing/internal/probe"
	"github.com/vortechron/nightwatch-testing/internal/task"
)

var errBoom = errors.New("boom")

type fakeQueries struct {
	sleepSupported bool
	sleepErr       error
	countErr       error

	counts, lookups, selects, aggregates, sleeps int
}

func (q *fakeQueries) Count(context.Context) (int64, error) {
	q.counts++
	return 1, q.countErr
}

func (q *fakeQueries) FindByID(context.Context, int64) (bool, error) {
	q.lookups++
	return true, nil
}

func (q *fakeQueries) SelectLimited(context.Context, uint) (int, error) {
	q.selects++
	return 1, nil
}

func (q *fakeQueries) CountAndMax(context.Context) error {
	q.aggregates++
	return nil
}

func (q *fakeQueries) Sleep(context.Context, time.Duration) error {
	q.sleeps++
	return q.sleepErr
}

func (q *fakeQueries) SupportsSleep() bool { return q.sleepSupported }

type fakeJobs struct {
	mu       sync.Mutex
	tests    []string
	releases []string
	failing  []string
	outgoing []task.OutgoingRequestPayload
	err      error
}

func (j *fakeJobs) DispatchTest(_ context.Context, msg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tests = append(j.tests, msg)
	return j.err
}

func (j *fakeJobs) DispatchReleasing(_ context.Context, msg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.releases = append(j.releases, msg)
	return j.err
}

func (j *fakeJobs) DispatchFailing(_ context.Context, msg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failing = append(j.failing, msg)
	return j.err
}

func (j *fakeJobs) DispatchOutgoingRequest(_ context.Context, p task.OutgoingRequestPayload) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outgoing = append(j.outgoing, p)
	return j.err
}

type fakeMailer struct {
	sent    []mail.Message
	queued  []mail.Message
	delayed []time.Duration
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) Queue(_ context.Context, msg mail.Message) error {
	m.queued = append(m.queued, msg)
	return nil
}

func (m *fakeMailer) Later(_ context.Context, msg mail.Message, d time.Duration) error {
	m.queued = append(m.queued, msg)
	m.delayed = append(m.delayed, d)
	return nil
}

type fakeUsers struct {
	user *domain.User
	err  error
}

func (u fakeUsers) FirstUser(context.Context) (*domain.User, error) {
	return u.user, u.err
}

type fakeNotifier struct {
	sent []domain.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, _ *domain.User, note domain.Notification) error {
	n.sent = append(n.sent, note)
	return nil
}

type fakeReporter struct {
	errs []error
}

func (r *fakeReporter) Report(_ context.Context, err error) {
	r.errs = append(r.errs, err)
}

type fakeProber struct {
	results map[string]probe.Result
	tokens  []string
}

func (p *fakeProber) result(ep config.Endpoint) probe.Result {
	if res, ok := p.results[ep.Path]; ok {
		return res
	}
	return probe.Result{Status: 200, OK: true}
}

func (p *fakeProber) Success(_ context.Context, ep config.Endpoint) probe.Result {
	return p.result(ep)
}

func (p *fakeProber) Redirect(_ context.Context, ep config.Endpoint) probe.Result {
	return p.result(ep)
}

func (p *fakeProber) ClientError(_ context.Context, ep config.Endpoint) probe.Result {
	return p.result(ep)
}

func (p *fakeProber) Authenticated(_ context.Context, ep config.Endpoint, token string) probe.Result {
	p.tokens = append(p.tokens, token)
	return p.result(ep)
}
