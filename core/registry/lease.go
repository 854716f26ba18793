package registry

import (
	"log/slog"
	"sync"

	"github.com/codewandler/troupe-go/core/actor"
)

// Lease is a reference-counted handle on an actor. Multiple leases may
// reference one actor; for Leased lifecycles the actor is disposed
// exactly when the last lease releases. Leases on Permanent or Feature
// actors only track the refcount (a relay holds its endpoints this way)
// and never dispose.
type Lease struct {
	reg  *Registry
	name string
	act  *actor.Actor
	once sync.Once
}

// Actor returns the leased actor.
func (l *Lease) Actor() *actor.Actor { return l.act }

// Release returns the lease. Idempotent; the second call is a no-op.
func (l *Lease) Release() {
	l.once.Do(func() { l.reg.release(l.name) })
}

// Lease acquires a reference-counted handle on the named actor, creating
// it on the first lease. Never returns a closed actor.
func (r *Registry) Lease(name string) (*Lease, error) {
	r.mu.Lock()

	e, err := r.lookupLocked(name)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if err := r.checkScopeLocked(e); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	a, err := r.ensureLocked(e)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	e.leases++
	r.leasesActive++
	r.metrics.LeasesActive(r.leasesActive)
	r.mu.Unlock()

	return &Lease{reg: r, name: name, act: a}, nil
}

func (r *Registry) release(name string) {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok || e.leases == 0 {
		r.mu.Unlock()
		return
	}
	e.leases--
	r.leasesActive--
	r.metrics.LeasesActive(r.leasesActive)

	var victim *actor.Actor
	if e.lifecycle == Leased && e.leases == 0 && e.instance != nil {
		victim = e.instance
		e.instance = nil
		r.actorsActive--
		r.metrics.ActorsActive(r.actorsActive)
	}
	r.mu.Unlock()

	if victim != nil {
		r.log.Debug("disposing leased actor",
			slog.String("type", name), slog.String("id", victim.ID()))
		victim.Close()
	}
}
