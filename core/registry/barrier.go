package registry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type cleanupTask struct {
	name string
	fn   func(context.Context) error
}

// Barrier collects bounded cleanup tasks during scope teardown. It
// accepts registrations only until the registry begins waiting; tasks
// then run concurrently, each with panic containment. Per-task failures
// are counted but never propagated, so teardown always completes.
type Barrier struct {
	log *slog.Logger

	mu     sync.Mutex
	sealed bool
	tasks  []cleanupTask

	failed atomic.Int32
}

func newBarrier(log *slog.Logger) *Barrier {
	return &Barrier{log: log}
}

// Add registers a cleanup task. Returns false once the barrier has been
// sealed; a late registration is a logged anomaly, not an error.
func (b *Barrier) Add(name string, fn func(context.Context) error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		b.log.Warn("cleanup task rejected, barrier sealed", slog.String("task", name))
		return false
	}
	b.tasks = append(b.tasks, cleanupTask{name: name, fn: fn})
	return true
}

// Pending returns the number of registered tasks.
func (b *Barrier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tasks)
}

type barrierResult struct {
	completed bool
	failed    int
}

// wait seals the barrier, runs all registered tasks and waits for them
// up to timeout. A timeout downgrades completed, nothing more; tasks
// still running are left to finish on their own.
func (b *Barrier) wait(ctx context.Context, timeout time.Duration) barrierResult {
	b.mu.Lock()
	b.sealed = true
	tasks := b.tasks
	b.mu.Unlock()

	if len(tasks) == 0 {
		return barrierResult{completed: true}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t cleanupTask) {
			defer wg.Done()
			b.run(runCtx, t)
		}(t)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return barrierResult{completed: true, failed: int(b.failed.Load())}
	case <-runCtx.Done():
		b.log.Warn("cleanup barrier timed out",
			slog.Duration("timeout", timeout),
			slog.Int("tasks", len(tasks)))
		return barrierResult{completed: false, failed: int(b.failed.Load())}
	}
}

func (b *Barrier) run(ctx context.Context, t cleanupTask) {
	defer func() {
		if r := recover(); r != nil {
			b.failed.Add(1)
			b.log.Error("cleanup task panicked",
				slog.String("task", t.name), slog.Any("recovered", r))
		}
	}()
	if err := t.fn(ctx); err != nil {
		b.failed.Add(1)
		b.log.Warn("cleanup task failed",
			slog.String("task", t.name), slog.Any("error", err))
	}
}
