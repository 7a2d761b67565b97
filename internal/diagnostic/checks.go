package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vortechron/nightwatch-testing/internal/config"
	"github.com/vortechron/nightwatch-testing/internal/domain"
	"github.com/vortechron/nightwatch-testing/internal/platform/cache"
	"github.com/vortechron/nightwatch-testing/internal/platform/mail"
	"github.com/vortechron/nightwatch-testing/internal/probe"
	"github.com/vortechron/nightwatch-testing/internal/redact"
	"github.com/vortechron/nightwatch-testing/internal/task"
)

// Section names in run order
const (
	SectionNotifications         = "Notifications"
	SectionQueries               = "Database Queries"
	SectionCache                 = "Cache Operations"
	SectionJobs                  = "Jobs"
	SectionMail                  = "Mail"
	SectionInternalRequests      = "Internal API Requests (Incoming)"
	SectionAuthenticatedRequests = "Authenticated API Requests"
	SectionExceptions            = "Exceptions"
	SectionOutgoingRequests      = "Outgoing HTTP Requests (Jobs)"
)

// SecondRecipient is added to the multi-recipient mail check.
const SecondRecipient = "recipient2@example.com"

// OutgoingRequests are dispatched as jobs against the outgoing base URL,
// one per status class plus a timeout.
var OutgoingRequests = []config.Endpoint{
	{Method: http.MethodGet, Path: "/status/200", Label: "Request 2XX (200 OK)"},
	{Method: http.MethodGet, Path: "/status/301", Label: "Request 3XX (301 Moved Permanently)"},
	{Method: http.MethodGet, Path: "/status/404", Label: "Request 4XX (404 Not Found)"},
	{Method: http.MethodGet, Path: "/status/500", Label: "Request 5XX (500 Internal Server Error)"},
	{Method: http.MethodGet, Path: "/delay/10", Label: "Request Timeout (10s delay)"},
}

var errNoUser = errors.New("no user found")

func (s *Suite) stamp() string {
	return s.now().Format(time.DateTime)
}

func (s *Suite) checkNotifications(ctx context.Context, r *run) {
	const label = "Send notification"
	if r.opts.SkipNotifications {
		r.skip(SectionNotifications, label, "skip-notifications")
		return
	}
	if s.deps.Users == nil {
		r.fail(SectionNotifications, label, "no user table configured")
		return
	}

	r.check(SectionNotifications, label, func() error {
		user, err := s.deps.Users.FirstUser(ctx)
		if err != nil {
			return err
		}
		if user == nil {
			return errNoUser
		}
		n := domain.NewTestNotification(user.ID, "Test notification at "+s.stamp(), s.now())
		return s.deps.Notifier.Notify(ctx, user, n)
	})
}

func (s *Suite) checkQueries(ctx context.Context, r *run) {
	q := s.deps.Queries

	r.check(SectionQueries, "Fast query (simple count)", func() error {
		_, err := q.Count(ctx)
		return err
	})
	r.check(SectionQueries, "Fast query (indexed lookup)", func() error {
		_, err := q.FindByID(ctx, 1)
		return err
	})
	r.check(SectionQueries, "Fast query (limited select)", func() error {
		_, err := q.SelectLimited(ctx, 5)
		return err
	})
	r.check(SectionQueries, "Slow query (with sleep)", func() error {
		if q.SupportsSleep() {
			return q.Sleep(ctx, s.config.SlowQueryDelay)
		}
		if err := s.sleep(ctx, s.config.SlowQueryDelay); err != nil {
			return err
		}
		_, err := q.Count(ctx)
		return err
	})
	r.check(SectionQueries, "Slow query (complex aggregation)", func() error {
		return q.CountAndMax(ctx)
	})
}

func (s *Suite) checkCache(ctx context.Context, r *run) {
	c := s.deps.Cache
	ttl := s.config.CacheTTL
	stamp := s.now().Unix()
	testKey := fmt.Sprintf("nightwatch_test_%d", stamp)
	missingKey := fmt.Sprintf("nightwatch_missing_%d", stamp)

	for _, suffix := range []string{"", "_forever", "_add", "_hit1", "_hit2", "_hit3"} {
		if err := c.Forget(ctx, testKey+suffix); err != nil {
			s.logger.Debug("cache pre-clean failed", "key", testKey+suffix, redact.ErrorAttr(err))
		}
	}

	expect := func(key, want string) func() (bool, error) {
		return func() (bool, error) {
			v, ok, err := c.Get(ctx, key)
			return ok && v == want, err
		}
	}
	absent := func(key string) func() (bool, error) {
		return func() (bool, error) {
			_, ok, err := c.Get(ctx, key)
			return !ok, err
		}
	}

	r.check(SectionCache, "Cache WRITE (put)", func() error {
		return c.Put(ctx, testKey, "test_value", ttl)
	})
	r.check(SectionCache, "Cache WRITE (forever)", func() error {
		return cache.Forever(ctx, c, testKey+"_forever", "permanent_value")
	})
	r.verify(SectionCache, "Cache WRITE (add - new key)", func() (bool, error) {
		return c.Add(ctx, testKey+"_add", "added_value", ttl)
	})
	r.check(SectionCache, "Cache WRITE (keys for hit testing)", func() error {
		for i := 1; i <= 3; i++ {
			if err := c.Put(ctx, fmt.Sprintf("%s_hit%d", testKey, i), fmt.Sprintf("hit_value_%d", i), ttl); err != nil {
				return err
			}
		}
		return nil
	})

	r.verify(SectionCache, "Cache HIT (get main key)", expect(testKey, "test_value"))
	r.verify(SectionCache, "Cache HIT (get forever key)", expect(testKey+"_forever", "permanent_value"))
	r.verify(SectionCache, "Cache HIT (get added key)", expect(testKey+"_add", "added_value"))
	r.verify(SectionCache, "Cache HIT (get hit1 key)", expect(testKey+"_hit1", "hit_value_1"))
	r.verify(SectionCache, "Cache HIT (get hit2 key)", expect(testKey+"_hit2", "hit_value_2"))
	r.verify(SectionCache, "Cache HIT (get hit3 key)", expect(testKey+"_hit3", "hit_value_3"))
	r.check(SectionCache, "Cache HIT (multiple reads same key)", func() error {
		for i := 0; i < 3; i++ {
			if _, _, err := c.Get(ctx, testKey); err != nil {
				return err
			}
		}
		return nil
	})
	r.verify(SectionCache, "Cache HIT (pull - get then delete)", func() (bool, error) {
		v, ok, err := c.Get(ctx, testKey+"_hit3")
		if err != nil {
			return false, err
		}
		return ok && v == "hit_value_3", c.Forget(ctx, testKey+"_hit3")
	})

	r.verify(SectionCache, "Cache MISS (get non-existent)", absent(missingKey))
	r.verify(SectionCache, "Cache MISS (get another non-existent)", absent(missingKey+"_does_not_exist"))
	r.verify(SectionCache, "Cache MISS (get with default)", func() (bool, error) {
		v, ok, err := c.Get(ctx, missingKey+"_with_default")
		if !ok {
			v = "default_value"
		}
		return v == "default_value", err
	})

	rememberKey := missingKey + "_remember"
	r.verify(SectionCache, "Cache MISS then WRITE (remember new)", func() (bool, error) {
		v, err := cache.Remember(ctx, c, rememberKey, ttl, func() (string, error) {
			return "new_remembered_value", nil
		})
		return v == "new_remembered_value", err
	})
	r.verify(SectionCache, "Cache HIT (remember existing)", func() (bool, error) {
		v, err := cache.Remember(ctx, c, rememberKey, ttl, func() (string, error) {
			return "should_not_be_called", nil
		})
		return v == "new_remembered_value", err
	})

	r.check(SectionCache, "Cache DELETE (forget)", func() error {
		return c.Forget(ctx, testKey)
	})
	r.check(SectionCache, "Cache DELETE (forget forever key)", func() error {
		return c.Forget(ctx, testKey+"_forever")
	})
	r.check(SectionCache, "Cache DELETE (cleanup remaining keys)", func() error {
		var errs []error
		for _, key := range []string{testKey + "_add", testKey + "_hit1", testKey + "_hit2", rememberKey} {
			errs = append(errs, c.Forget(ctx, key))
		}
		return errors.Join(errs...)
	})
}

func (s *Suite) checkJobs(ctx context.Context, r *run) {
	j := s.deps.Jobs

	r.check(SectionJobs, "Job PROCESSED (dispatch successful)", func() error {
		return j.DispatchTest(ctx, "Nightwatch test - successful job at "+s.stamp())
	})
	r.check(SectionJobs, "Job PROCESSED (dispatch another)", func() error {
		return j.DispatchTest(ctx, "Nightwatch test - another successful job")
	})
	r.check(SectionJobs, "Job RELEASED (dispatch releasing job)", func() error {
		return j.DispatchReleasing(ctx, "Nightwatch test - releasing job")
	})

	const failing = "Job FAILED (dispatch failing job)"
	if r.opts.SkipFailingJob {
		r.skip(SectionJobs, failing, "skip-failing-job")
		return
	}
	r.check(SectionJobs, failing, func() error {
		return j.DispatchFailing(ctx, "Nightwatch test - failing job")
	})
}

func (s *Suite) checkMail(ctx context.Context, r *run) {
	if r.opts.SkipMail {
		r.skip(SectionMail, "Mail", "skip-mail")
		return
	}
	m := s.deps.Mailer
	to := []string{s.config.MailTo}

	r.check(SectionMail, "Mail SENT (synchronous)", func() error {
		msg, err := mail.NewTestMail(to, "Sync email at "+s.stamp())
		if err != nil {
			return err
		}
		return m.Send(ctx, msg)
	})
	r.check(SectionMail, "Mail QUEUED (async)", func() error {
		msg, err := mail.NewQueuedMail(to, "Queued email at "+s.stamp())
		if err != nil {
			return err
		}
		return m.Queue(ctx, msg)
	})
	r.check(SectionMail, "Mail SENT (multiple recipients)", func() error {
		msg, err := mail.NewTestMail([]string{s.config.MailTo, SecondRecipient}, "Multi-recipient email")
		if err != nil {
			return err
		}
		if s.config.MailCc != "" {
			msg = msg.WithCc(s.config.MailCc)
		}
		return m.Send(ctx, msg)
	})
	r.check(SectionMail, "Mail QUEUED (with delay)", func() error {
		msg, err := mail.NewQueuedMail(to, "Delayed queued email")
		if err != nil {
			return err
		}
		return m.Later(ctx, msg, s.config.MailDelay)
	})
}

func endpointLabel(class string, ep config.Endpoint) string {
	return fmt.Sprintf("Internal %s (%s %s)", class, strings.ToUpper(ep.Method), ep.Path)
}

func (s *Suite) checkInternalRequests(ctx context.Context, r *run) {
	if r.opts.SkipInternalRequests {
		r.skip(SectionInternalRequests, "Internal requests", "skip-internal-requests")
		return
	}
	if s.deps.Prober == nil {
		r.skip(SectionInternalRequests, "Internal requests", "no prober configured")
		return
	}
	p := s.deps.Prober
	eps := s.config.Probes.Internal

	record := func(label string, res probe.Result) {
		r.add(CheckResult{Section: SectionInternalRequests, Label: label, OK: res.OK, Detail: res.Detail()})
	}
	for _, ep := range eps.Success {
		record(endpointLabel("2XX", ep), p.Success(ctx, ep))
	}
	for _, ep := range eps.Redirect {
		record(endpointLabel("3XX", ep), p.Redirect(ctx, ep))
	}
	for _, ep := range eps.ClientError {
		record(endpointLabel("4XX", ep), p.ClientError(ctx, ep))
	}
}

func (s *Suite) checkAuthenticatedRequests(ctx context.Context, r *run) {
	const section = SectionAuthenticatedRequests
	const label = "Authenticated requests"
	switch {
	case r.opts.SkipInternalRequests:
		r.skip(section, label, "skip-internal-requests")
		return
	case len(s.config.Probes.Authenticated) == 0:
		r.skip(section, label, "no authenticated endpoints configured")
		return
	case s.deps.Prober == nil:
		r.skip(section, label, "no prober configured")
		return
	case s.deps.Tokens == nil:
		r.skip(section, label, "no auth guard configured")
		return
	case s.deps.Users == nil:
		r.skip(section, label, "no user table configured")
		return
	}

	user, err := s.deps.Users.FirstUser(ctx)
	if err != nil {
		r.check(section, label, func() error { return err })
		return
	}
	if user == nil {
		r.skip(section, label, errNoUser.Error())
		return
	}

	token, err := s.deps.Tokens.GenerateToken(ctx, user)
	if err != nil {
		r.check(section, "Issue test token", func() error { return err })
		return
	}

	for _, ep := range s.config.Probes.Authenticated {
		l := ep.Label
		if l == "" {
			l = fmt.Sprintf("Authenticated (%s %s)", strings.ToUpper(ep.Method), ep.Path)
		}
		res := s.deps.Prober.Authenticated(ctx, ep, token)
		r.add(CheckResult{Section: section, Label: l, OK: res.OK, Detail: res.Detail()})
	}
}

func (s *Suite) checkExceptions(ctx context.Context, r *run) {
	const label = "Trigger exception"
	if r.opts.SkipException {
		r.skip(SectionExceptions, label, "skip-exception")
		return
	}
	r.check(SectionExceptions, label, func() error {
		s.deps.Reporter.Report(ctx, errors.New("Nightwatch test exception at "+s.stamp()))
		return nil
	})
}

func (s *Suite) checkOutgoingRequests(ctx context.Context, r *run) {
	if r.opts.SkipRequests {
		r.skip(SectionOutgoingRequests, "Outgoing requests", "skip-requests")
		return
	}
	base := strings.TrimRight(s.config.OutgoingBaseURL, "/")
	for _, req := range OutgoingRequests {
		r.check(SectionOutgoingRequests, "Dispatch job: "+req.Label, func() error {
			return s.deps.Jobs.DispatchOutgoingRequest(ctx, task.OutgoingRequestPayload{
				Method: req.Method,
				URL:    base + req.Path,
				Label:  req.Label,
			})
		})
	}
}
