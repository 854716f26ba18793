package actor

import (
	"sync"

	"github.com/codewandler/troupe-go/core/status"
)

// subBuffer is the per-subscriber channel capacity. A subscriber that
// stops draining eventually blocks the emitting actor; consumers are
// expected to read promptly or cancel.
const subBuffer = 64

type subscriber struct {
	ch     chan status.Envelope
	done   chan struct{}
	groups []string
	once   sync.Once
}

func (s *subscriber) matches(env status.Envelope) bool {
	if len(s.groups) == 0 {
		return true
	}
	for _, g := range s.groups {
		if env.HasGroup(g) {
			return true
		}
	}
	return false
}

// Subscribe returns a channel of the actor's status emissions, in
// emission order, with no replay of past emissions. With groups given,
// only envelopes tagged with at least one of them are delivered. The
// returned cancel func detaches the subscription; the channel is closed
// when the actor closes.
func (a *Actor) Subscribe(groups ...string) (<-chan status.Envelope, func()) {
	s := &subscriber{
		ch:     make(chan status.Envelope, subBuffer),
		done:   make(chan struct{}),
		groups: groups,
	}

	a.subMu.Lock()
	if a.subsClosed {
		a.subMu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	id := a.nextSub
	a.nextSub++
	a.subs[id] = s
	a.subMu.Unlock()

	cancel := func() {
		s.once.Do(func() { close(s.done) })
		a.subMu.Lock()
		delete(a.subs, id)
		a.subMu.Unlock()
	}
	return s.ch, cancel
}

// broadcast delivers env to all matching subscribers. Called only from
// the event loop goroutine, so per-subscriber emission order is the
// emission order.
func (a *Actor) broadcast(env status.Envelope) {
	a.subMu.Lock()
	subs := make([]*subscriber, 0, len(a.subs))
	for _, s := range a.subs {
		subs = append(subs, s)
	}
	a.subMu.Unlock()

	for _, s := range subs {
		if !s.matches(env) {
			continue
		}
		select {
		case s.ch <- env:
		case <-s.done:
		}
	}
}
