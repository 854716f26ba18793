package registry

import (
	"context"
	"testing"
	"time"
)

// testContext emulates t.Context from Go 1.24 on older Go versions: the
// context is canceled during test cleanup.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// NewTestRegistry creates a registry bound to the test's context and
// closed via t.Cleanup.
func NewTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New(Options{Context: testContext(t)})
	t.Cleanup(r.Close)
	return r
}

// NewTestRegistryWithTimeout is NewTestRegistry with a custom cleanup
// barrier timeout, for teardown tests that should not wait the default.
func NewTestRegistryWithTimeout(t *testing.T, barrierTimeout time.Duration) *Registry {
	t.Helper()
	r := New(Options{Context: testContext(t), BarrierTimeout: barrierTimeout})
	t.Cleanup(r.Close)
	return r
}
