package bulk

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortechron/nightwatch-testing/internal/task"
)

func TestGenerate_JobsAtMaxCountThroughTaskRunner(t *testing.T) {
	const count = 1000

	small := task.DefaultTaskRunnerConfig()
	small.QueueSize = 1

	cases := []struct {
		name   string
		config task.TaskRunnerConfig
	}{
		{"default config", task.DefaultTaskRunnerConfig()},
		{"single slot queue", small},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			runner := task.NewTaskRunner(task.NewMemoryTaskStore(), tc.config, logger)

			var mu sync.Mutex
			outcomes := make(map[task.TaskStatus]int)
			runner.SetOutcomeHook(func(_ task.Task, status task.TaskStatus) {
				mu.Lock()
				defer mu.Unlock()
				outcomes[status]++
			})
			runner.SetErrorHandler(func(task.Task, error) {})

			require.NoError(t, runner.Start())
			defer runner.Stop()

			dispatcher, err := task.NewDispatcher(runner, nil, logger)
			require.NoError(t, err)

			f := newFixture()
			f.gen = f.build(Dependencies{
				Queries:  f.queries,
				Cache:    f.cache,
				Jobs:     dispatcher,
				Mailer:   f.mailer,
				Users:    f.users,
				Notifier: f.notifier,
				Reporter: f.reporter,
				Recorder: f.recorder,
			})

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			n, err := f.gen.Generate(ctx, CategoryJobs, count, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, count, n)

			require.NoError(t, runner.Drain(ctx))

			mu.Lock()
			defer mu.Unlock()
			// Released jobs come back after ReleaseDelay, which a slow run
			// may reach before Stop.
			assert.GreaterOrEqual(t, outcomes[task.TaskStatusCompleted], count)
			assert.Equal(t, 200, outcomes[task.TaskStatusFailed])
			assert.GreaterOrEqual(t, outcomes[task.TaskStatusReleased], 334)
		})
	}
}
