package troupe

import "sync"

// Cancellation is a first-class cooperative cancellation token. A handler
// receives the token alongside its event and is expected to check it at
// suspension points, emit a Canceling status and return; the runtime never
// force-interrupts a running handler.
type Cancellation struct {
	once sync.Once
	done chan struct{}
}

// NewCancellation creates an unset token.
func NewCancellation() *Cancellation {
	return &Cancellation{done: make(chan struct{})}
}

// Cancel sets the token. Idempotent.
func (c *Cancellation) Cancel() {
	c.once.Do(func() { close(c.done) })
}

// Canceled reports whether the token has been set.
func (c *Cancellation) Canceled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token is set, for use in selects.
func (c *Cancellation) Done() <-chan struct{} { return c.done }

// never is a token that is never canceled, handed to handlers whose event
// was sent without one.
var never = NewCancellation()

// Never returns a shared token that is never canceled.
func Never() *Cancellation { return never }
