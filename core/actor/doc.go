// Package actor provides a mailbox-based actor runtime: stateful units
// that process one event at a time and emit tagged state-transition
// records on a broadcast status channel.
//
// Each actor:
//   - Has a unique identity
//   - Processes events sequentially from its mailbox, in send order
//   - Holds a current and previous state snapshot
//   - Emits [status.Envelope] records observed by subscribers in
//     emission order
//
// # Creating Actors
//
//	counter, err := actor.New(actor.Options{InitialState: 0},
//	    actor.OnEvent[Increment](func(c *actor.Ctx, ev Increment) error {
//	        c.EmitUpdate(actor.WithState(c.State().(int) + 1))
//	        return nil
//	    }),
//	)
//
// # Handlers
//
//   - [OnEvent] registers a stateless handler func for one event type
//   - [OnEventStateful] registers a factory for a singleton [Handler]
//     instance, created lazily on the first event of that type and torn
//     down when the actor closes
//   - Registering two handlers for the same event type fails at [New]
//
// Handlers emit through their [Ctx]: EmitUpdate, EmitWaiting, EmitCancel
// and EmitFailure. EmitUpdate accepts [SkipIfSame] to suppress emissions
// whose candidate state equals the current state.
//
// Handler errors and panics are caught at the loop boundary, logged with
// the actor and event context, routed to the actor's error hook and
// surfaced as a Failure emission. The queue keeps processing.
//
// # Sending
//
// [Actor.Send] is fire-and-forget. Sends to a closed actor are logged
// and dropped, not errors: teardown races across a large actor graph are
// expected. [Actor.SendAwait] blocks until the first non-Waiting status
// arrives or the timeout expires.
//
// # Cancellation
//
// Cancellation is cooperative. [Actor.SendWithCancel] attaches a
// [troupe.Cancellation] token; the handler observes it via
// [Ctx.Canceled], emits a Canceling status and returns. The runtime
// never interrupts a running handler.
package actor
