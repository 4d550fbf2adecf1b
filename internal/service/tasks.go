package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tasks runs best-effort side effects off the request path.
// Each task gets its own deadline and survives cancellation of the request that started it.
type Tasks struct {
	wg      sync.WaitGroup
	timeout time.Duration
	log     *slog.Logger
}

// NewTasks creates a task runner with the given per-task timeout
func NewTasks(timeout time.Duration, log *slog.Logger) *Tasks {
	return &Tasks{
		timeout: timeout,
		log:     log,
	}
}

// Go starts fn in the background. Failures are logged, never returned.
func (t *Tasks) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	t.wg.Add(1)

	go func() {
		defer t.wg.Done()

		taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()

		if err := fn(taskCtx); err != nil {
			t.log.Error("background task failed", "task", name, "error", err)
		}
	}()
}

// Wait blocks until every started task has finished
func (t *Tasks) Wait() {
	t.wg.Wait()
}
