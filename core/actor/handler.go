package actor

import (
	"context"
	"fmt"

	"github.com/codewandler/troupe-go/core/reflector"
	"github.com/codewandler/troupe-go/core/troupe"
)

type (
	// Registration adds a handler for one event type to an actor's
	// dispatch table. Create these with [OnEvent] or [OnEventStateful].
	Registration func(*table) error

	// Handler is a stateful event handler. The actor creates at most one
	// instance per event type, lazily on the first matching event, and
	// calls Close when the actor closes.
	Handler[E any] interface {
		Init(*Ctx) error
		Handle(*Ctx, E) error
		Close(context.Context) error
	}
)

type table struct {
	entries map[string]*handlerEntry
}

type handlerEntry struct {
	eventType string

	// stateless
	handle func(*Ctx, any) error

	// stateful: instance is created lazily by the event loop and is
	// only touched by it until the loop has exited
	factory  func() statefulRuntime
	instance statefulRuntime
}

type statefulRuntime interface {
	init(*Ctx) error
	handle(*Ctx, any) error
	close(context.Context) error
}

func (t *table) add(name string, e *handlerEntry) error {
	if _, dup := t.entries[name]; dup {
		return troupe.NewConfigError("duplicate handler registration for event %s", name)
	}
	e.eventType = name
	t.entries[name] = e
	return nil
}

// decode asserts the delivered payload to the registered event type,
// accepting both E and *E.
func decode[E any](ev any) (E, error) {
	if e, ok := ev.(E); ok {
		return e, nil
	}
	if p, ok := ev.(*E); ok && p != nil {
		return *p, nil
	}
	var zero E
	return zero, fmt.Errorf("unexpected event payload type %T", ev)
}

// OnEvent registers a stateless handler func for event type E.
func OnEvent[E any](h func(*Ctx, E) error) Registration {
	return func(t *table) error {
		return t.add(reflector.NameFor[E](), &handlerEntry{
			handle: func(c *Ctx, ev any) error {
				e, err := decode[E](ev)
				if err != nil {
					return err
				}
				return h(c, e)
			},
		})
	}
}

// OnEventStateful registers a factory for a singleton [Handler] handling
// event type E.
func OnEventStateful[E any](factory func() Handler[E]) Registration {
	return func(t *table) error {
		return t.add(reflector.NameFor[E](), &handlerEntry{
			factory: func() statefulRuntime {
				return &statefulAdapter[E]{h: factory()}
			},
		})
	}
}

type statefulAdapter[E any] struct {
	h Handler[E]
}

func (s *statefulAdapter[E]) init(c *Ctx) error { return s.h.Init(c) }

func (s *statefulAdapter[E]) handle(c *Ctx, ev any) error {
	e, err := decode[E](ev)
	if err != nil {
		return err
	}
	return s.h.Handle(c, e)
}

func (s *statefulAdapter[E]) close(ctx context.Context) error { return s.h.Close(ctx) }

// SetState is the built-in pass-through event: an explicit state plus
// optional rebuild groups and a navigation trigger, for trivial updates
// without a dedicated handler. It is the legacy path; state mutation
// should go through a purpose-built handler per event type.
type SetState struct {
	State  any
	Groups []string
	Route  *troupe.RouteCall
}

// passThrough registers the built-in [SetState] handler; every actor
// gets it.
func passThrough() Registration {
	return OnEvent[SetState](func(c *Ctx, ev SetState) error {
		opts := []EmitOption{WithState(ev.State)}
		if len(ev.Groups) > 0 {
			opts = append(opts, WithGroups(ev.Groups...))
		}
		if ev.Route != nil {
			opts = append(opts, WithRoute(ev.Route.Name, ev.Route.Args))
		}
		c.EmitUpdate(opts...)
		return nil
	})
}
