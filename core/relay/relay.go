// Package relay provides a one-way bridge translating one actor's status
// emissions into another actor's events.
//
// Initialization is two-phase: construct with [New], then call
// [Relay.Start]. A relay closed before Start never attaches a
// subscription, which removes the historical race between deferred
// initialization and teardown. The bridge holds both endpoints through
// registry leases, so its own lifetime participates in refcounting.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codewandler/troupe-go/core/registry"
	"github.com/codewandler/troupe-go/core/status"
	"github.com/codewandler/troupe-go/core/troupe"
)

// Transform maps a source emission to a destination event. Returning a
// nil event forwards nothing. An error (or panic) closes the relay, so a
// failing bridge never silently wedges.
type Transform func(status.Envelope) (any, error)

type Config struct {
	// Source and Dest name registrations in the registry.
	Source string
	Dest   string

	Transform Transform
	Logger    *slog.Logger
}

type Relay struct {
	log       *slog.Logger
	transform Transform
	src       *registry.Lease
	dst       *registry.Lease

	done chan struct{}

	mu        sync.Mutex
	closed    bool
	started   bool
	cancelSub func()
}

// New leases both endpoints and builds the bridge without subscribing.
// Call [Relay.Start] to attach.
func New(reg *registry.Registry, cfg Config) (*Relay, error) {
	if cfg.Transform == nil {
		return nil, troupe.NewConfigError("relay %s->%s: nil transform", cfg.Source, cfg.Dest)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	src, err := reg.Lease(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("relay: lease source %s: %w", cfg.Source, err)
	}
	dst, err := reg.Lease(cfg.Dest)
	if err != nil {
		src.Release()
		return nil, fmt.Errorf("relay: lease dest %s: %w", cfg.Dest, err)
	}

	return &Relay{
		log: cfg.Logger.With(
			slog.String("source", cfg.Source),
			slog.String("dest", cfg.Dest)),
		transform: cfg.Transform,
		src:       src,
		dst:       dst,
		done:      make(chan struct{}),
	}, nil
}

// Start attaches the subscription and begins forwarding. It checks the
// closed flag first: Close before Start leaves no live subscription and
// forwards nothing. Starting twice is a no-op.
func (r *Relay) Start() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return troupe.NewStateError("relay is closed")
	}
	if r.started {
		r.mu.Unlock()
		return nil
	}
	ch, cancel := r.src.Actor().Subscribe()
	r.cancelSub = cancel
	r.started = true
	r.mu.Unlock()

	go r.pump(ch)
	return nil
}

// Close is idempotent under repeated and concurrent calls. It cancels
// the subscription (if any) and releases both leases.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	cancelSub := r.cancelSub
	r.mu.Unlock()

	close(r.done)
	if cancelSub != nil {
		cancelSub()
	}
	r.src.Release()
	r.dst.Release()
}

func (r *Relay) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// pump forwards emissions in emission order; the transform runs exactly
// once per source emission. Forwarded events still serialize through the
// destination's own queue.
func (r *Relay) pump(ch <-chan status.Envelope) {
	for {
		select {
		case <-r.done:
			return
		case env, ok := <-ch:
			if !ok {
				// source closed
				r.Close()
				return
			}
			if !r.forward(env) {
				r.Close()
				return
			}
		}
	}
}

// forward returns false when the relay must self-close.
func (r *Relay) forward(env status.Envelope) bool {
	if r.isClosed() {
		return false
	}

	event, err := r.safeTransform(env)
	if err != nil {
		r.log.Error("relay transform failed",
			slog.String("kind", env.Kind.String()),
			slog.Any("error", err))
		return false
	}
	if event == nil {
		return true
	}

	dst := r.dst.Actor()
	if dst.Closed() {
		r.log.Debug("relay destination closed, shutting down")
		return false
	}
	if err := dst.Send(context.Background(), event); err != nil {
		r.log.Warn("relay forward failed", slog.Any("error", err))
		return false
	}
	return true
}

func (r *Relay) safeTransform(env status.Envelope) (event any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("transform panicked: %v", rec)
		}
	}()
	return r.transform(env)
}
