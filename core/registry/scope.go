package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codewandler/troupe-go/core/actor"
)

// ScopeID identifies a scope group. Ids come from a monotonic counter,
// so they are deterministic and collision-free within one registry.
type ScopeID string

// ScopeEventKind tags a scope lifecycle notification.
type ScopeEventKind int

const (
	ScopeStarted ScopeEventKind = iota
	ScopeEnding
	ScopeEnded
)

func (k ScopeEventKind) String() string {
	switch k {
	case ScopeStarted:
		return "started"
	case ScopeEnding:
		return "ending"
	case ScopeEnded:
		return "ended"
	default:
		return fmt.Sprintf("scope_event(%d)", int(k))
	}
}

// ScopeEvent is a scope lifecycle notification.
type ScopeEvent struct {
	Kind  ScopeEventKind
	Scope ScopeID

	// Barrier is set on Ending events only. Subscribers may register
	// cleanup tasks on it during the notification callback.
	Barrier *Barrier

	// Elapsed and Success are set on Ended events only.
	Elapsed time.Duration
	Success bool
}

// SubscribeScopes attaches a callback for scope lifecycle events. The
// callback runs synchronously within the notification turn, which is
// what makes Barrier.Add on Ending events race-free. It must not block
// and must not call back into the registry.
func (r *Registry) SubscribeScopes(fn func(ScopeEvent)) (cancel func()) {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.scopeSubs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.scopeSubs, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) notifyScopes(ev ScopeEvent) {
	r.subMu.Lock()
	subs := make([]func(ScopeEvent), 0, len(r.scopeSubs))
	for _, fn := range r.scopeSubs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()

	for _, fn := range subs {
		r.notifyOne(fn, ev)
	}
}

// notifyOne contains a panicking subscriber so teardown never wedges.
func (r *Registry) notifyOne(fn func(ScopeEvent), ev ScopeEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("scope subscriber panicked",
				slog.String("event", ev.Kind.String()),
				slog.Any("recovered", rec))
		}
	}()
	fn(ev)
}

// BeginScope opens a new scope group and broadcasts Started.
func (r *Registry) BeginScope() ScopeID {
	r.mu.Lock()
	r.scopeSeq++
	id := ScopeID(fmt.Sprintf("scope-%d", r.scopeSeq))
	r.scopes[id] = &scopeState{id: id, state: scopeActive}
	r.mu.Unlock()

	r.log.Debug("scope started", slog.String("scope", string(id)))
	r.notifyScopes(ScopeEvent{Kind: ScopeStarted, Scope: id})
	return id
}

// EndResult reports the outcome of a scope teardown.
type EndResult struct {
	// Found is false when the scope was unknown or already torn down.
	Found bool
	// CleanupCompleted is false when the barrier timed out.
	CleanupCompleted bool
	// Failed counts cleanup tasks that returned an error or panicked.
	Failed  int
	Elapsed time.Duration
}

// EndScope tears down a scope group: Ending notification, bounded
// cleanup barrier, disposal of the scope's actors (regardless of the
// barrier outcome), Ended notification. Concurrent calls for the same
// scope observe one shared in-flight teardown; a later call on an
// already-ended scope returns Found=false.
func (r *Registry) EndScope(ctx context.Context, id ScopeID) (EndResult, error) {
	return r.endFlight.Do(string(id), func() (EndResult, error) {
		return r.endScope(ctx, id)
	})
}

func (r *Registry) endScope(ctx context.Context, id ScopeID) (EndResult, error) {
	r.mu.Lock()
	sc, ok := r.scopes[id]
	if !ok || sc.state != scopeActive {
		r.mu.Unlock()
		return EndResult{Found: false}, nil
	}
	sc.state = scopeEnding
	r.mu.Unlock()

	log := r.log.With(slog.String("scope", string(id)))
	start := time.Now()
	tmr := r.metrics.CleanupDuration()

	b := newBarrier(log)
	r.notifyScopes(ScopeEvent{Kind: ScopeEnding, Scope: id, Barrier: b})

	res := b.wait(ctx, r.barrierTimeout)
	if res.failed > 0 {
		r.metrics.CleanupTaskFailures(res.failed)
	}

	// Disposal happens regardless of the barrier outcome; a timeout only
	// downgrades the success flag.
	victims := r.detachScope(id)
	for _, a := range victims {
		a.Close()
	}

	elapsed := time.Since(start)
	tmr.ObserveDuration()
	success := res.completed && res.failed == 0
	r.metrics.ScopeEnded(success)

	log.Info("scope ended",
		slog.Duration("elapsed", elapsed),
		slog.Bool("success", success),
		slog.Int("actors", len(victims)),
		slog.Int("cleanup_tasks", b.Pending()),
		slog.Int("failed_tasks", res.failed))
	r.notifyScopes(ScopeEvent{Kind: ScopeEnded, Scope: id, Elapsed: elapsed, Success: success})

	return EndResult{
		Found:            true,
		CleanupCompleted: res.completed,
		Failed:           res.failed,
		Elapsed:          elapsed,
	}, nil
}

// detachScope removes the scope and unhooks its actor instances,
// returning them for disposal outside the lock.
func (r *Registry) detachScope(id ScopeID) []*actor.Actor {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.scopes, id)

	var victims []*actor.Actor
	for _, e := range r.entries {
		if e.scope != id {
			continue
		}
		if e.instance != nil {
			victims = append(victims, e.instance)
			e.instance = nil
			r.actorsActive--
		}
		if e.leases > 0 {
			r.leasesActive -= e.leases
			e.leases = 0
		}
	}
	r.metrics.ActorsActive(r.actorsActive)
	r.metrics.LeasesActive(r.leasesActive)
	return victims
}
