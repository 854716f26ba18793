package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/troupe-go/core/actor"
	"github.com/codewandler/troupe-go/core/troupe"
)

type Increment struct{}

func counterFactory(t *testing.T) Factory {
	t.Helper()
	return func(ScopeID) (*actor.Actor, error) {
		return actor.New(actor.Options{Context: testContext(t), InitialState: 0},
			actor.OnEvent[Increment](func(c *actor.Ctx, _ Increment) error {
				c.EmitUpdate(actor.WithState(c.State().(int) + 1))
				return nil
			}),
		)
	}
}

func TestRegistry_duplicate_registration(t *testing.T) {
	r := NewTestRegistry(t)

	require.NoError(t, r.Register("counter", counterFactory(t), Permanent))

	err := r.Register("counter", counterFactory(t), Leased)
	var ce *troupe.ConfigError
	require.ErrorAs(t, err, &ce)
	require.ErrorContains(t, err, "duplicate registration")
}

func TestRegistry_resolve_unregistered(t *testing.T) {
	r := NewTestRegistry(t)

	_, err := r.Resolve("ghost")
	var ce *troupe.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestRegistry_permanent_singleton(t *testing.T) {
	r := NewTestRegistry(t)
	require.NoError(t, r.Register("counter", counterFactory(t), Permanent))

	a1, err := r.Resolve("counter")
	require.NoError(t, err)
	a2, err := r.Resolve("counter")
	require.NoError(t, err)
	require.Same(t, a1, a2)

	d, err := r.Diagnostics("counter")
	require.NoError(t, err)
	require.True(t, d.Active)
}

func TestRegistry_resolve_leased_rejected(t *testing.T) {
	r := NewTestRegistry(t)
	require.NoError(t, r.Register("counter", counterFactory(t), Leased))

	_, err := r.Resolve("counter")
	var ce *troupe.ConfigError
	require.ErrorAs(t, err, &ce)
	require.ErrorContains(t, err, "use Lease")
}

func TestRegistry_lease_refcount(t *testing.T) {
	r := NewTestRegistry(t)
	require.NoError(t, r.Register("counter", counterFactory(t), Leased))

	l1, err := r.Lease("counter")
	require.NoError(t, err)
	l2, err := r.Lease("counter")
	require.NoError(t, err)
	require.Same(t, l1.Actor(), l2.Actor())

	l1.Release()
	d, err := r.Diagnostics("counter")
	require.NoError(t, err)
	require.True(t, d.Active)
	require.Equal(t, 1, d.Leases)
	require.False(t, l2.Actor().Closed())

	l2.Release()
	d, err = r.Diagnostics("counter")
	require.NoError(t, err)
	require.False(t, d.Active)
	require.Equal(t, 0, d.Leases)
	require.True(t, l2.Actor().Closed())
}

func TestRegistry_lease_release_idempotent(t *testing.T) {
	r := NewTestRegistry(t)
	require.NoError(t, r.Register("counter", counterFactory(t), Leased))

	l1, err := r.Lease("counter")
	require.NoError(t, err)
	l2, err := r.Lease("counter")
	require.NoError(t, err)

	// double release of the same lease must not steal l2's reference
	l1.Release()
	l1.Release()

	d, err := r.Diagnostics("counter")
	require.NoError(t, err)
	require.True(t, d.Active)
	require.Equal(t, 1, d.Leases)

	l2.Release()
}

func TestRegistry_lease_recreates_after_disposal(t *testing.T) {
	r := NewTestRegistry(t)
	require.NoError(t, r.Register("counter", counterFactory(t), Leased))

	l1, err := r.Lease("counter")
	require.NoError(t, err)
	first := l1.Actor()
	l1.Release()
	require.True(t, first.Closed())

	// a fresh lease never returns a closed actor
	l2, err := r.Lease("counter")
	require.NoError(t, err)
	require.NotSame(t, first, l2.Actor())
	require.False(t, l2.Actor().Closed())
	l2.Release()
}

func TestRegistry_feature_requires_scope(t *testing.T) {
	r := NewTestRegistry(t)

	err := r.Register("feat", counterFactory(t), Feature)
	var ce *troupe.ConfigError
	require.ErrorAs(t, err, &ce)
	require.ErrorContains(t, err, "requires a scope")
}

func TestRegistry_scope_ids_monotonic(t *testing.T) {
	r := NewTestRegistry(t)
	require.Equal(t, ScopeID("scope-1"), r.BeginScope())
	require.Equal(t, ScopeID("scope-2"), r.BeginScope())
	require.Equal(t, ScopeID("scope-3"), r.BeginScope())
}

func TestRegistry_endScope_disposes_actors(t *testing.T) {
	r := NewTestRegistry(t)
	scope := r.BeginScope()

	require.NoError(t, r.Register("a", counterFactory(t), Feature, WithScope(scope)))
	require.NoError(t, r.Register("b", counterFactory(t), Feature, WithScope(scope)))

	a, err := r.Resolve("a")
	require.NoError(t, err)
	b, err := r.Resolve("b")
	require.NoError(t, err)

	// one subscriber registers a short cleanup task
	var cleaned bool
	cancel := r.SubscribeScopes(func(ev ScopeEvent) {
		if ev.Kind == ScopeEnding && ev.Scope == scope {
			ev.Barrier.Add("flush", func(context.Context) error {
				time.Sleep(50 * time.Millisecond)
				cleaned = true
				return nil
			})
		}
	})
	defer cancel()

	res, err := r.EndScope(testContext(t), scope)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.True(t, res.CleanupCompleted)
	require.Equal(t, 0, res.Failed)

	require.True(t, cleaned)
	require.True(t, a.Closed())
	require.True(t, b.Closed())

	// resolving in an ended scope fails
	_, err = r.Resolve("a")
	var se *troupe.StateError
	require.ErrorAs(t, err, &se)
}

func TestRegistry_endScope_barrier_timeout(t *testing.T) {
	r := NewTestRegistryWithTimeout(t, 200*time.Millisecond)
	scope := r.BeginScope()
	require.NoError(t, r.Register("a", counterFactory(t), Feature, WithScope(scope)))

	a, err := r.Resolve("a")
	require.NoError(t, err)

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	cancel := r.SubscribeScopes(func(ev ScopeEvent) {
		if ev.Kind == ScopeEnding {
			ev.Barrier.Add("stuck", func(context.Context) error {
				<-block
				return nil
			})
		}
	})
	defer cancel()

	start := time.Now()
	res, err := r.EndScope(testContext(t), scope)
	require.NoError(t, err)
	elapsed := time.Since(start)

	require.True(t, res.Found)
	require.False(t, res.CleanupCompleted)
	require.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	require.Less(t, elapsed, time.Second)

	// timeout only downgrades the flag; disposal still happened
	require.True(t, a.Closed())
}

func TestRegistry_endScope_task_failures_counted(t *testing.T) {
	r := NewTestRegistry(t)
	scope := r.BeginScope()
	require.NoError(t, r.Register("a", counterFactory(t), Feature, WithScope(scope)))
	_, err := r.Resolve("a")
	require.NoError(t, err)

	cancel := r.SubscribeScopes(func(ev ScopeEvent) {
		if ev.Kind == ScopeEnding {
			ev.Barrier.Add("bad", func(context.Context) error { return errors.New("flush failed") })
			ev.Barrier.Add("worse", func(context.Context) error { panic("kaboom") })
			ev.Barrier.Add("fine", func(context.Context) error { return nil })
		}
	})
	defer cancel()

	res, err := r.EndScope(testContext(t), scope)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.True(t, res.CleanupCompleted)
	require.Equal(t, 2, res.Failed)
}

func TestRegistry_barrier_sealed_after_teardown(t *testing.T) {
	r := NewTestRegistry(t)
	scope := r.BeginScope()

	var barrier *Barrier
	cancel := r.SubscribeScopes(func(ev ScopeEvent) {
		if ev.Kind == ScopeEnding {
			barrier = ev.Barrier
			require.True(t, ev.Barrier.Add("flush", func(context.Context) error { return nil }))
		}
	})
	defer cancel()

	res, err := r.EndScope(testContext(t), scope)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.NotNil(t, barrier)
	require.Equal(t, 1, barrier.Pending())

	// once teardown has begun waiting the barrier is sealed; a late
	// registration is rejected, not run
	require.False(t, barrier.Add("late", func(context.Context) error { return nil }))
	require.Equal(t, 1, barrier.Pending())
}

func TestRegistry_endScope_twice(t *testing.T) {
	r := NewTestRegistry(t)
	scope := r.BeginScope()

	res, err := r.EndScope(testContext(t), scope)
	require.NoError(t, err)
	require.True(t, res.Found)

	res, err = r.EndScope(testContext(t), scope)
	require.NoError(t, err)
	require.False(t, res.Found)
}

func TestRegistry_endScope_concurrent_shares_result(t *testing.T) {
	r := NewTestRegistry(t)
	scope := r.BeginScope()
	require.NoError(t, r.Register("a", counterFactory(t), Feature, WithScope(scope)))
	_, err := r.Resolve("a")
	require.NoError(t, err)

	var endings int
	cancel := r.SubscribeScopes(func(ev ScopeEvent) {
		if ev.Kind == ScopeEnding {
			endings++
			ev.Barrier.Add("slow", func(context.Context) error {
				time.Sleep(100 * time.Millisecond)
				return nil
			})
		}
	})
	defer cancel()

	var wg sync.WaitGroup
	results := make([]EndResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.EndScope(context.Background(), scope)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	// both callers observe the same in-flight teardown; the protocol ran once
	require.True(t, results[0].Found)
	require.True(t, results[1].Found)
	require.Equal(t, results[0], results[1])
	require.Equal(t, 1, endings)
}

func TestRegistry_scope_notifications(t *testing.T) {
	r := NewTestRegistry(t)

	var events []ScopeEventKind
	cancel := r.SubscribeScopes(func(ev ScopeEvent) {
		events = append(events, ev.Kind)
		if ev.Kind == ScopeEnded {
			require.True(t, ev.Success)
			require.Greater(t, ev.Elapsed, time.Duration(0))
		}
	})
	defer cancel()

	scope := r.BeginScope()
	_, err := r.EndScope(testContext(t), scope)
	require.NoError(t, err)

	require.Equal(t, []ScopeEventKind{ScopeStarted, ScopeEnding, ScopeEnded}, events)
}

func TestRegistry_subscriber_panic_contained(t *testing.T) {
	r := NewTestRegistry(t)
	cancel := r.SubscribeScopes(func(ScopeEvent) { panic("bad subscriber") })
	defer cancel()

	scope := r.BeginScope()
	res, err := r.EndScope(testContext(t), scope)
	require.NoError(t, err)
	require.True(t, res.Found)
}

func TestRegistry_debugDump(t *testing.T) {
	r := NewTestRegistry(t)
	require.NoError(t, r.Register("counter", counterFactory(t), Leased))
	scope := r.BeginScope()
	require.NoError(t, r.Register("feat", counterFactory(t), Feature, WithScope(scope)))

	l, err := r.Lease("counter")
	require.NoError(t, err)
	defer l.Release()

	dump := r.DebugDump()
	require.Contains(t, dump, "counter")
	require.Contains(t, dump, "leases=1")
	require.Contains(t, dump, "feat")
	require.Contains(t, dump, string(scope))
}

func TestRegistry_close_disposes_everything(t *testing.T) {
	r := New(Options{Context: testContext(t)})
	require.NoError(t, r.Register("perm", counterFactory(t), Permanent))
	require.NoError(t, r.Register("leased", counterFactory(t), Leased))

	p, err := r.Resolve("perm")
	require.NoError(t, err)
	l, err := r.Lease("leased")
	require.NoError(t, err)

	r.Close()
	require.True(t, p.Closed())
	require.True(t, l.Actor().Closed())

	// operations after close fail with StateError
	var se *troupe.StateError
	_, err = r.Resolve("perm")
	require.ErrorAs(t, err, &se)
	err = r.Register("late", counterFactory(t), Permanent)
	require.ErrorAs(t, err, &se)

	// idempotent
	r.Close()
}

func TestRegistry_lease_scenario(t *testing.T) {
	// register leased Counter; lease twice, release once -> {leases:1, active:true};
	// release again -> {active:false}
	r := NewTestRegistry(t)
	require.NoError(t, r.Register("Counter", counterFactory(t), Leased))

	l1, err := r.Lease("Counter")
	require.NoError(t, err)
	l2, err := r.Lease("Counter")
	require.NoError(t, err)

	l1.Release()
	d, err := r.Diagnostics("Counter")
	require.NoError(t, err)
	require.Equal(t, Diag{Active: true, Leases: 1}, d)

	l2.Release()
	d, err = r.Diagnostics("Counter")
	require.NoError(t, err)
	require.False(t, d.Active)
}
