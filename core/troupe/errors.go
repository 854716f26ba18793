// Package troupe holds the shared kernel of the runtime: the error
// taxonomy, the cooperative cancellation token and the route side-channel
// payload. It imports nothing from the other core packages.
package troupe

import (
	"fmt"
	"time"
)

// ConfigError reports a wiring mistake: unregistered or duplicate type,
// missing scope, invalid handler registration. Always raised synchronously
// to the caller.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

// NewConfigError creates a ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// StateError reports an operation against a closed actor or a scope that
// is mid-teardown.
type StateError struct {
	msg string
}

func (e *StateError) Error() string { return e.msg }

// NewStateError creates a StateError with a formatted message.
func NewStateError(format string, args ...any) *StateError {
	return &StateError{msg: fmt.Sprintf(format, args...)}
}

// TimeoutError reports a blocking-send or cleanup-barrier deadline.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

// HandlerError wraps an error raised inside an event handler, carrying
// the actor and event type as context. The runtime never lets a handler
// error escape the event loop; it surfaces through the actor's error
// hook and a Failure emission instead.
type HandlerError struct {
	ActorID   string
	EventType string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed: actor=%s event=%s: %v", e.ActorID, e.EventType, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// RouteCall is the navigation side-channel payload: a named route plus
// arguments. Route resolution lives outside this runtime.
type RouteCall struct {
	Name string
	Args map[string]any
}
