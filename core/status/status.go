// Package status defines the tagged state-transition record emitted by
// actors, and an exhaustive dispatch helper over its four variants.
package status

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind is the variant tag of an [Envelope].
type Kind int

const (
	// Updating is a normal state transition.
	Updating Kind = iota
	// Waiting signals an async operation is pending.
	Waiting
	// Canceling signals an operation was aborted cooperatively.
	Canceling
	// Failure carries an error, with optional cause and stack trace.
	Failure
)

func (k Kind) String() string {
	switch k {
	case Updating:
		return "updating"
	case Waiting:
		return "waiting"
	case Canceling:
		return "canceling"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Terminal reports whether the kind ends a wait (everything but Waiting).
func (k Kind) Terminal() bool { return k != Waiting }

// Envelope is one state-transition record. Envelopes are immutable once
// emitted; consumers must not mutate State, Prev or Groups.
type Envelope struct {
	Kind  Kind
	State any // state after the transition
	Prev  any // state before the transition
	Event any // triggering event, nil for spontaneous emissions

	// Failure only.
	Err   error
	Trace []byte

	// Groups are opaque rebuild tags consumers use for selective
	// invalidation. Empty means untagged.
	Groups []string
}

// Equal reports structural equality. Errors compare by message so that
// envelopes stay comparable across error wrapping.
func (e Envelope) Equal(o Envelope) bool {
	if e.Kind != o.Kind {
		return false
	}
	if !reflect.DeepEqual(e.State, o.State) ||
		!reflect.DeepEqual(e.Prev, o.Prev) ||
		!reflect.DeepEqual(e.Event, o.Event) {
		return false
	}
	if !reflect.DeepEqual(e.Groups, o.Groups) {
		return false
	}
	if (e.Err == nil) != (o.Err == nil) {
		return false
	}
	if e.Err != nil && e.Err.Error() != o.Err.Error() {
		return false
	}
	return true
}

// SameState reports structural equality of two state values. The runtime
// uses it for skip-if-same emission suppression.
func SameState(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// HasGroup reports whether the envelope is tagged with the given group.
func (e Envelope) HasGroup(tag string) bool {
	for _, g := range e.Groups {
		if g == tag {
			return true
		}
	}
	return false
}

func (e Envelope) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s state=%v prev=%v", e.Kind, e.State, e.Prev)
	if e.Event != nil {
		fmt.Fprintf(&sb, " event=%T", e.Event)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, " err=%v", e.Err)
	}
	if len(e.Groups) > 0 {
		fmt.Fprintf(&sb, " groups=%v", e.Groups)
	}
	return sb.String()
}

// Cases holds one handler per envelope variant. All four must be set for
// [Match] to run; Go has no sum types, so exhaustiveness is checked at
// call time instead of compile time.
type Cases struct {
	Updating  func(Envelope) error
	Waiting   func(Envelope) error
	Canceling func(Envelope) error
	Failure   func(Envelope) error
}

// Match dispatches e to the case matching its kind. It fails before
// dispatching if any case is missing, so a caller cannot silently ignore
// a variant.
func Match(e Envelope, c Cases) error {
	var missing []string
	if c.Updating == nil {
		missing = append(missing, "Updating")
	}
	if c.Waiting == nil {
		missing = append(missing, "Waiting")
	}
	if c.Canceling == nil {
		missing = append(missing, "Canceling")
	}
	if c.Failure == nil {
		missing = append(missing, "Failure")
	}
	if len(missing) > 0 {
		return fmt.Errorf("status: non-exhaustive match, missing cases: %s", strings.Join(missing, ", "))
	}

	switch e.Kind {
	case Updating:
		return c.Updating(e)
	case Waiting:
		return c.Waiting(e)
	case Canceling:
		return c.Canceling(e)
	case Failure:
		return c.Failure(e)
	default:
		return fmt.Errorf("status: unknown kind %d", int(e.Kind))
	}
}
