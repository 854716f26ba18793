package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/troupe-go/core/reflector"
	"github.com/codewandler/troupe-go/core/status"
	"github.com/codewandler/troupe-go/core/troupe"
)

// DefaultAwaitTimeout bounds [Actor.SendAwait] when no timeout is given.
const DefaultAwaitTimeout = 5 * time.Second

// RouteFunc is the navigation side channel. Route resolution is external;
// the runtime only forwards the name and arguments an emission carries.
type RouteFunc func(name string, args map[string]any)

type Options struct {
	// ID identifies the actor in logs and metrics. Generated if empty.
	ID           string
	Context      context.Context
	Logger       *slog.Logger
	MailboxSize  int
	InitialState any
	Metrics      Metrics
	// OnError receives every handler error as a *troupe.HandlerError and
	// every illegal post-close operation as a *troupe.StateError.
	OnError func(error)
	Router  RouteFunc
}

type delivery struct {
	typeName string
	event    any
	cancel   *troupe.Cancellation
}

type Actor struct {
	id      string
	ctx     context.Context
	log     *slog.Logger
	metrics Metrics
	onError func(error)
	router  RouteFunc

	mailbox chan delivery
	stop    chan struct{}
	done    chan struct{}
	torn    chan struct{}

	// handlers is immutable after New; entry.instance is touched only by
	// the loop goroutine and, after the loop exits, by Close.
	handlers map[string]*handlerEntry

	mu      sync.Mutex
	closing bool // Close has been called; new sends are rejected
	closed  bool // the loop has exited; emissions are rejected
	state   any
	prev    any

	subMu      sync.Mutex
	subs       map[int]*subscriber
	nextSub    int
	subsClosed bool
}

// New creates and starts an actor. It fails with a *troupe.ConfigError
// when two registrations target the same event type.
func New(opts Options, regs ...Registration) (*Actor, error) {
	if opts.ID == "" {
		opts.ID = fmt.Sprintf("actor-%s", gonanoid.Must(8))
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = 1024
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics()
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}

	t := &table{entries: make(map[string]*handlerEntry)}
	if err := passThrough()(t); err != nil {
		return nil, err
	}
	for _, r := range regs {
		if err := r(t); err != nil {
			return nil, err
		}
	}

	a := &Actor{
		id:       opts.ID,
		ctx:      opts.Context,
		log:      opts.Logger.With(slog.String("actor", opts.ID)),
		metrics:  opts.Metrics,
		onError:  opts.OnError,
		router:   opts.Router,
		mailbox:  make(chan delivery, opts.MailboxSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		torn:     make(chan struct{}),
		handlers: t.entries,
		state:    opts.InitialState,
		subs:     make(map[int]*subscriber),
	}

	go a.loop()
	return a, nil
}

// ID returns the actor's identity.
func (a *Actor) ID() string { return a.id }

// Done is closed when the event loop stops.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Closed reports whether Close has been called.
func (a *Actor) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closing
}

// CurrentState returns the current state snapshot.
func (a *Actor) CurrentState() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// PreviousState returns the state before the last transition.
func (a *Actor) PreviousState() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prev
}

// Send enqueues an event (blocking until enqueued or ctx is canceled).
// Sends to a closed actor are logged and dropped without error.
func (a *Actor) Send(ctx context.Context, event any) error {
	return a.send(ctx, event, nil)
}

// SendWithCancel is Send with a cooperative cancellation token the
// handler can observe via [Ctx.Canceled].
func (a *Actor) SendWithCancel(ctx context.Context, event any, c *troupe.Cancellation) error {
	return a.send(ctx, event, c)
}

func (a *Actor) send(ctx context.Context, event any, c *troupe.Cancellation) error {
	d := delivery{typeName: reflector.NameOf(event), event: event, cancel: c}
	if a.Closed() {
		a.log.Debug("send dropped, actor closed", slog.String("event", d.typeName))
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("send failed: %w", ctx.Err())
	case <-a.stop:
		a.log.Debug("send dropped, actor closed", slog.String("event", d.typeName))
		return nil
	case <-a.done:
		a.log.Debug("send dropped, actor stopped", slog.String("event", d.typeName))
		return nil
	case a.mailbox <- d:
		a.metrics.MailboxDepth(a.id, len(a.mailbox))
		return nil
	}
}

// SendAwait enqueues an event and blocks until the actor's next
// non-Waiting status emission, the timeout (default
// [DefaultAwaitTimeout]) or ctx cancellation. Unlike Send it fails with
// a *troupe.StateError on a closed actor, since the caller explicitly
// asked for a result.
func (a *Actor) SendAwait(ctx context.Context, event any, timeout time.Duration) (status.Envelope, error) {
	if timeout <= 0 {
		timeout = DefaultAwaitTimeout
	}
	if a.Closed() {
		return status.Envelope{}, troupe.NewStateError("actor %s is closed", a.id)
	}

	// Subscribe before sending so the terminal emission cannot slip by.
	ch, cancel := a.Subscribe()
	defer cancel()

	if err := a.send(ctx, event, nil); err != nil {
		return status.Envelope{}, err
	}

	tmr := time.NewTimer(timeout)
	defer tmr.Stop()
	for {
		select {
		case <-ctx.Done():
			return status.Envelope{}, ctx.Err()
		case <-tmr.C:
			return status.Envelope{}, &troupe.TimeoutError{Op: "await status", After: timeout}
		case env, ok := <-ch:
			if !ok {
				return status.Envelope{}, troupe.NewStateError("actor %s closed while awaiting status", a.id)
			}
			if env.Kind.Terminal() {
				return env, nil
			}
		}
	}
}

// Close stops the actor: new sends are dropped, the in-flight handler
// (if any) runs to completion, cached stateful handler singletons are
// closed, subscriber channels are closed. Idempotent; concurrent callers
// all block until teardown finished. Events still queued at close time
// are dropped.
func (a *Actor) Close() {
	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		<-a.torn
		return
	}
	a.closing = true
	a.mu.Unlock()

	close(a.stop)
	<-a.done

	// Emissions stay legal until the loop has exited, so a handler that
	// was mid-event when Close began still lands its transition.
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	if n := len(a.mailbox); n > 0 {
		a.log.Debug("dropping queued events on close", slog.Int("count", n))
	}

	for _, e := range a.handlers {
		if e.factory == nil || e.instance == nil {
			continue
		}
		if err := e.instance.close(context.Background()); err != nil {
			a.log.Warn("stateful handler close failed",
				slog.String("event", e.eventType), slog.Any("error", err))
		}
		e.instance = nil
	}

	a.subMu.Lock()
	a.subsClosed = true
	subs := a.subs
	a.subs = make(map[int]*subscriber)
	a.subMu.Unlock()
	for _, s := range subs {
		close(s.ch)
	}

	close(a.torn)
}

// ---- event loop ----

func (a *Actor) loop() {
	defer close(a.done)
	for {
		select {
		case <-a.stop:
			return
		case <-a.ctx.Done():
			return
		case d := <-a.mailbox:
			a.process(d)
			a.metrics.MailboxDepth(a.id, len(a.mailbox))
		}
	}
}

func (a *Actor) process(d delivery) {
	c := &Ctx{
		Context: a.ctx,
		actor:   a,
		log:     a.log.With(slog.String("event", d.typeName)),
		event:   d.event,
		cancel:  d.cancel,
	}

	e, ok := a.handlers[d.typeName]
	if !ok {
		a.failHandler(d, troupe.NewConfigError("no handler registered for event %s", d.typeName))
		return
	}

	tmr := a.metrics.HandlerDuration(d.typeName)
	err := a.safeHandle(e, c, d)
	tmr.ObserveDuration()

	if err != nil {
		a.metrics.HandlerProcessed(d.typeName, false)
		a.failHandler(d, err)
		return
	}
	a.metrics.HandlerProcessed(d.typeName, true)
}

// safeHandle runs the handler with crash containment, lazily creating
// the stateful singleton instance on first use.
func (a *Actor) safeHandle(e *handlerEntry, c *Ctx, d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.metrics.HandlerPanic(d.typeName)
			a.log.Error("handler panicked",
				slog.Any("recovered", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	if e.factory != nil {
		if e.instance == nil {
			inst := e.factory()
			if ierr := inst.init(c); ierr != nil {
				return fmt.Errorf("init handler: %w", ierr)
			}
			e.instance = inst
		}
		return e.instance.handle(c, d.event)
	}
	return e.handle(c, d.event)
}

// failHandler converts a handler error into the actor's failure surface:
// structured log, error hook, Failure emission. The queue keeps going.
func (a *Actor) failHandler(d delivery, err error) {
	herr := &troupe.HandlerError{ActorID: a.id, EventType: d.typeName, Err: err}
	a.log.Error("event handler failed",
		slog.String("event", d.typeName),
		slog.Any("prior_state", a.CurrentState()),
		slog.Any("error", err))
	a.onError(herr)
	a.emit(status.Failure, d.event, emitOpts{err: herr, trace: debug.Stack()})
}

// ---- emission ----

func (a *Actor) emit(kind status.Kind, event any, o emitOpts) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.log.Warn("emission dropped, actor closed", slog.String("kind", kind.String()))
		a.onError(troupe.NewStateError("actor %s: emission after close", a.id))
		return
	}

	cur, prev := a.state, a.prev
	newState := cur
	if o.setState {
		if o.skipIfSame && status.SameState(o.state, cur) {
			a.mu.Unlock()
			return
		}
		prev = cur
		newState = o.state
		a.prev = cur
		a.state = o.state
	} else if o.skipIfSame {
		// candidate state is the unchanged current state
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	env := status.Envelope{
		Kind:   kind,
		State:  newState,
		Prev:   prev,
		Event:  event,
		Err:    o.err,
		Trace:  o.trace,
		Groups: o.groups,
	}
	a.metrics.EmissionsTotal(kind.String())
	a.broadcast(env)

	if o.route != nil && a.router != nil {
		a.router(o.route.Name, o.route.Args)
	}
}
