package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/vortechron/nightwatch-testing/internal/domain"
	"github.com/vortechron/nightwatch-testing/internal/platform/mail"
)

func (g *Generator) generateQueries(ctx context.Context, count int, _ Options, onProgress ProgressFunc) (int, error) {
	q := g.deps.Queries

	for i := 0; i < count; i++ {
		if err := q.FirstAfter(ctx, int64(i)); err != nil {
			return i, fmt.Errorf("point lookup: %w", err)
		}
		if err := q.CountAndMax(ctx); err != nil {
			return i, fmt.Errorf("aggregate lookup: %w", err)
		}

		if g.config.SlowQueryInterval > 0 && i%g.config.SlowQueryInterval == 0 {
			if err := g.slowQuery(ctx); err != nil {
				return i, err
			}
		}

		onProgress()
	}

	return count, nil
}

func (g *Generator) slowQuery(ctx context.Context) error {
	q := g.deps.Queries
	delay := g.config.SlowQueryDelay

	if q.SupportsSleep() {
		if err := q.Sleep(ctx, delay); err != nil {
			return fmt.Errorf("sleep query: %w", err)
		}
		return nil
	}

	if err := g.sleep(ctx, delay); err != nil {
		return err
	}
	if _, err := q.Count(ctx); err != nil {
		return fmt.Errorf("count after delay: %w", err)
	}
	return nil
}

func (g *Generator) generateCache(ctx context.Context, count int, _ Options, onProgress ProgressFunc) (int, error) {
	c := g.deps.Cache

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("nightwatch_bulk_%d_%d_%s", i, g.now().Unix(), g.suffix())

		if err := c.Put(ctx, key, fmt.Sprintf("value_%d", i), g.config.CacheTTL); err != nil {
			return i, fmt.Errorf("cache write: %w", err)
		}
		if _, _, err := c.Get(ctx, key); err != nil {
			return i, fmt.Errorf("cache hit: %w", err)
		}
		if _, _, err := c.Get(ctx, fmt.Sprintf("missing_%d_%s", i, g.suffix())); err != nil {
			return i, fmt.Errorf("cache miss: %w", err)
		}
		if err := c.Forget(ctx, key); err != nil {
			return i, fmt.Errorf("cache delete: %w", err)
		}

		onProgress()
	}

	return count, nil
}

func (g *Generator) generateJobs(ctx context.Context, count int, opts Options, onProgress ProgressFunc) (int, error) {
	jobs := g.deps.Jobs
	skipFailing := opts.Has(OptSkipFailingJob)

	for i := 0; i < count; i++ {
		if err := jobs.DispatchTest(ctx, fmt.Sprintf("Bulk job #%d", i)); err != nil {
			return i, err
		}
		if i%3 == 0 {
			if err := jobs.DispatchReleasing(ctx, fmt.Sprintf("Bulk release #%d", i)); err != nil {
				return i, err
			}
		}
		if i%5 == 0 && !skipFailing {
			if err := jobs.DispatchFailing(ctx, fmt.Sprintf("Bulk fail #%d", i)); err != nil {
				return i, err
			}
		}

		onProgress()
	}

	return count, nil
}

func (g *Generator) generateMail(ctx context.Context, count int, opts Options, onProgress ProgressFunc) (int, error) {
	if opts.Has(OptSkipMail) {
		return 0, nil
	}

	m := g.deps.Mailer

	for i := 0; i < count; i++ {
		text := fmt.Sprintf("Nightwatch Bulk Test #%d - %s", i, g.now().Format(time.TimeOnly))

		if i%2 == 0 {
			msg, err := mail.NewTestMail(g.config.MailTo, text)
			if err != nil {
				return i, err
			}
			if err := m.Send(ctx, msg); err != nil {
				return i, fmt.Errorf("send mail: %w", err)
			}
		} else {
			msg, err := mail.NewQueuedMail(g.config.MailTo, text)
			if err != nil {
				return i, err
			}
			if err := m.Queue(ctx, msg); err != nil {
				return i, fmt.Errorf("queue mail: %w", err)
			}
		}

		onProgress()
	}

	return count, nil
}

func (g *Generator) generateNotifications(ctx context.Context, count int, opts Options, onProgress ProgressFunc) (int, error) {
	if count <= 0 || opts.Has(OptSkipNotifications) || g.deps.Users == nil {
		return 0, nil
	}

	user, err := g.deps.Users.FirstUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		g.logger.Debug("no user found, skipping notifications")
		return 0, nil
	}

	for i := 0; i < count; i++ {
		n := domain.NewTestNotification(user.ID, fmt.Sprintf("Bulk notification #%d", i), g.now())
		if err := g.deps.Notifier.Notify(ctx, user, n); err != nil {
			return i, fmt.Errorf("notify user: %w", err)
		}

		onProgress()
	}

	return count, nil
}

func (g *Generator) generateExceptions(ctx context.Context, count int, opts Options, onProgress ProgressFunc) (int, error) {
	if opts.Has(OptSkipException) {
		return 0, nil
	}

	for i := 0; i < count; i++ {
		err := raise(i, g.now())
		g.deps.Reporter.Report(ctx, err)

		onProgress()
	}

	return count, nil
}
