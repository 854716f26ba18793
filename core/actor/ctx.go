package actor

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/codewandler/troupe-go/core/status"
	"github.com/codewandler/troupe-go/core/troupe"
)

// Ctx is the emission context handed to a handler, scoped to one actor
// and one event. It is only valid for the duration of the handler call.
type Ctx struct {
	context.Context
	actor  *Actor
	log    *slog.Logger
	event  any
	cancel *troupe.Cancellation
}

func (c *Ctx) Log() *slog.Logger { return c.log }

// ActorID returns the identity of the actor processing the event.
func (c *Ctx) ActorID() string { return c.actor.id }

// State returns the actor's current state snapshot.
func (c *Ctx) State() any { return c.actor.CurrentState() }

// Prev returns the actor's previous state snapshot.
func (c *Ctx) Prev() any { return c.actor.PreviousState() }

// Event returns the event that triggered this handler.
func (c *Ctx) Event() any { return c.event }

// Cancellation returns the event's cancellation token. Never nil; events
// sent without a token get one that is never canceled.
func (c *Ctx) Cancellation() *troupe.Cancellation {
	if c.cancel == nil {
		return troupe.Never()
	}
	return c.cancel
}

// Canceled reports whether the event's cancellation token is set. A
// handler observing true should emit Canceling and return.
func (c *Ctx) Canceled() bool { return c.Cancellation().Canceled() }

// EmitUpdate emits a normal state transition. [WithState] replaces the
// state (default: unchanged); [SkipIfSame] suppresses the emission when
// the candidate state equals the current state.
func (c *Ctx) EmitUpdate(opts ...EmitOption) {
	c.actor.emit(status.Updating, c.event, buildOpts(opts))
}

// EmitWaiting signals an async operation is pending.
func (c *Ctx) EmitWaiting(opts ...EmitOption) {
	c.actor.emit(status.Waiting, c.event, buildOpts(opts))
}

// EmitCancel signals the operation was aborted cooperatively.
func (c *Ctx) EmitCancel(opts ...EmitOption) {
	c.actor.emit(status.Canceling, c.event, buildOpts(opts))
}

// EmitFailure emits a Failure envelope carrying err and the call stack.
func (c *Ctx) EmitFailure(err error, opts ...EmitOption) {
	o := buildOpts(opts)
	o.err = err
	o.trace = debug.Stack()
	c.actor.emit(status.Failure, c.event, o)
}

// Route invokes the navigation side channel directly, outside an
// emission. Prefer [WithRoute] on an emission when a transition and a
// navigation belong together.
func (c *Ctx) Route(name string, args map[string]any) {
	if c.actor.router != nil {
		c.actor.router(name, args)
	}
}

// ---- emission options ----

type emitOpts struct {
	setState   bool
	state      any
	skipIfSame bool
	groups     []string
	route      *troupe.RouteCall
	err        error
	trace      []byte
}

// EmitOption configures a single emission.
type EmitOption func(*emitOpts)

func buildOpts(opts []EmitOption) emitOpts {
	var o emitOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithState replaces the actor's state as part of the emission.
func WithState(s any) EmitOption {
	return func(o *emitOpts) {
		o.setState = true
		o.state = s
	}
}

// WithGroups tags the emission with rebuild groups for selective
// invalidation by subscribers.
func WithGroups(groups ...string) EmitOption {
	return func(o *emitOpts) {
		o.groups = append(o.groups, groups...)
	}
}

// SkipIfSame suppresses the emission entirely when the candidate state
// structurally equals the current state. Only meaningful on EmitUpdate.
func SkipIfSame() EmitOption {
	return func(o *emitOpts) {
		o.skipIfSame = true
	}
}

// WithRoute attaches a navigation trigger to the emission. The route
// handler table is external to this runtime.
func WithRoute(name string, args map[string]any) EmitOption {
	return func(o *emitOpts) {
		o.route = &troupe.RouteCall{Name: name, Args: args}
	}
}
