// Package sf wraps golang.org/x/sync/singleflight with a typed result.
// The registry uses it to make concurrent EndScope calls for the same
// scope observe one shared teardown instead of racing two.
package sf

import "golang.org/x/sync/singleflight"

// Singleflight deduplicates concurrent calls with the same key. Only the
// first caller executes fn; the rest block and receive the same result.
type Singleflight[T any] struct {
	group singleflight.Group
}

// New creates a Singleflight for result type T.
func New[T any]() *Singleflight[T] {
	return &Singleflight[T]{}
}

// Do executes fn for key, deduplicating concurrent calls. fn runs at most
// once per key at any given time; duplicate callers wait and get the same
// (T, error) pair.
func (s *Singleflight[T]) Do(key string, fn func() (T, error)) (T, error) {
	v, err, _ := s.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
