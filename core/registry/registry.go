package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codewandler/troupe-go/core/actor"
	"github.com/codewandler/troupe-go/core/sf"
	"github.com/codewandler/troupe-go/core/troupe"
)

// DefaultBarrierTimeout bounds scope cleanup when Options leave it unset.
const DefaultBarrierTimeout = 2 * time.Second

// Lifecycle classifies how the registry manages an actor's lifetime.
type Lifecycle int

const (
	// Permanent actors are lazily created singletons that live until the
	// registry closes.
	Permanent Lifecycle = iota
	// Feature actors belong to a scope group and are disposed when the
	// scope ends.
	Feature
	// Leased actors are reference counted and disposed when the last
	// lease releases.
	Leased
)

func (l Lifecycle) String() string {
	switch l {
	case Permanent:
		return "permanent"
	case Feature:
		return "feature"
	case Leased:
		return "leased"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
}

// Factory creates the actor for a registration. It must not call back
// into the registry; creation runs under the registry lock.
type Factory func(scope ScopeID) (*actor.Actor, error)

type Options struct {
	Context context.Context
	Logger  *slog.Logger
	Metrics Metrics
	// BarrierTimeout bounds cleanup-task waiting during EndScope.
	BarrierTimeout time.Duration
}

type entry struct {
	name      string
	factory   Factory
	lifecycle Lifecycle
	scope     ScopeID
	instance  *actor.Actor
	leases    int
}

type scopeStatus int

const (
	scopeActive scopeStatus = iota
	scopeEnding
)

type scopeState struct {
	id    ScopeID
	state scopeStatus
}

// Registry creates, resolves, leases and disposes actors. One explicit
// instance per composition root; there is no package-level default.
type Registry struct {
	log            *slog.Logger
	ctx            context.Context
	metrics        Metrics
	barrierTimeout time.Duration

	mu           sync.Mutex
	entries      map[string]*entry
	scopes       map[ScopeID]*scopeState
	scopeSeq     uint64
	closed       bool
	actorsActive int
	leasesActive int

	subMu     sync.Mutex
	scopeSubs map[int]func(ScopeEvent)
	nextSub   int

	endFlight *sf.Singleflight[EndResult]
}

// New creates a registry. Zero-value options get defaults.
func New(opts Options) *Registry {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics()
	}
	if opts.BarrierTimeout <= 0 {
		opts.BarrierTimeout = DefaultBarrierTimeout
	}
	return &Registry{
		log:            opts.Logger,
		ctx:            opts.Context,
		metrics:        opts.Metrics,
		barrierTimeout: opts.BarrierTimeout,
		entries:        make(map[string]*entry),
		scopes:         make(map[ScopeID]*scopeState),
		scopeSubs:      make(map[int]func(ScopeEvent)),
		endFlight:      sf.New[EndResult](),
	}
}

// RegisterOption configures a registration.
type RegisterOption func(*entry)

// WithScope binds the registration to a scope group. Required for
// Feature registrations; optional for Leased ones, whose actor then also
// falls with the scope.
func WithScope(id ScopeID) RegisterOption {
	return func(e *entry) { e.scope = id }
}

// Register adds a named actor registration. Duplicate names fail with a
// *troupe.ConfigError.
func (r *Registry) Register(name string, factory Factory, lc Lifecycle, opts ...RegisterOption) error {
	if factory == nil {
		return troupe.NewConfigError("register %s: nil factory", name)
	}

	e := &entry{name: name, factory: factory, lifecycle: lc}
	for _, o := range opts {
		o(e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return troupe.NewStateError("registry is closed")
	}
	if _, dup := r.entries[name]; dup {
		return troupe.NewConfigError("duplicate registration for type %s", name)
	}
	if lc == Feature && e.scope == "" {
		return troupe.NewConfigError("register %s: feature lifecycle requires a scope", name)
	}
	if e.scope != "" {
		sc, ok := r.scopes[e.scope]
		if !ok {
			return troupe.NewConfigError("register %s: unknown scope %s", name, e.scope)
		}
		if sc.state != scopeActive {
			return troupe.NewStateError("register %s: scope %s is ending", name, e.scope)
		}
	}

	r.entries[name] = e
	r.log.Debug("registered actor type",
		slog.String("type", name), slog.String("lifecycle", lc.String()))
	return nil
}

// Resolve returns the actor for a Permanent or Feature registration,
// creating it lazily. Leased registrations must go through [Registry.Lease].
func (r *Registry) Resolve(name string) (*actor.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookupLocked(name)
	if err != nil {
		return nil, err
	}
	if e.lifecycle == Leased {
		return nil, troupe.NewConfigError("type %s is leased, use Lease", name)
	}
	if err := r.checkScopeLocked(e); err != nil {
		return nil, err
	}
	return r.ensureLocked(e)
}

func (r *Registry) lookupLocked(name string) (*entry, error) {
	if r.closed {
		return nil, troupe.NewStateError("registry is closed")
	}
	e, ok := r.entries[name]
	if !ok {
		return nil, troupe.NewConfigError("type %s is not registered", name)
	}
	return e, nil
}

func (r *Registry) checkScopeLocked(e *entry) error {
	if e.scope == "" {
		return nil
	}
	sc, ok := r.scopes[e.scope]
	if !ok {
		return troupe.NewStateError("type %s: scope %s has ended", e.name, e.scope)
	}
	if sc.state != scopeActive {
		return troupe.NewStateError("type %s: scope %s is ending", e.name, e.scope)
	}
	return nil
}

// ensureLocked returns the live instance, creating one when there is
// none or the cached one was closed behind our back.
func (r *Registry) ensureLocked(e *entry) (*actor.Actor, error) {
	if e.instance != nil && !e.instance.Closed() {
		return e.instance, nil
	}
	a, err := e.factory(e.scope)
	if err != nil {
		return nil, fmt.Errorf("create actor %s: %w", e.name, err)
	}
	e.instance = a
	r.actorsActive++
	r.metrics.ActorsActive(r.actorsActive)
	r.log.Debug("created actor",
		slog.String("type", e.name), slog.String("id", a.ID()),
		slog.String("lifecycle", e.lifecycle.String()))
	return a, nil
}

// Diag is the diagnostic view of one registration.
type Diag struct {
	Active bool
	Leases int
}

// Diagnostics exposes per-registration state for tests and debugging.
func (r *Registry) Diagnostics(name string) (Diag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return Diag{}, troupe.NewConfigError("type %s is not registered", name)
	}
	return Diag{
		Active: e.instance != nil && !e.instance.Closed(),
		Leases: e.leases,
	}, nil
}

// DebugDump renders the registry state as a human-readable string.
func (r *Registry) DebugDump() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "registry: %d types, %d scopes, %d active actors, %d leases\n",
		len(r.entries), len(r.scopes), r.actorsActive, r.leasesActive)
	for _, e := range r.entries {
		active := e.instance != nil && !e.instance.Closed()
		fmt.Fprintf(&sb, "  %s lifecycle=%s active=%t leases=%d", e.name, e.lifecycle, active, e.leases)
		if e.scope != "" {
			fmt.Fprintf(&sb, " scope=%s", e.scope)
		}
		sb.WriteString("\n")
	}
	for id, sc := range r.scopes {
		state := "active"
		if sc.state == scopeEnding {
			state = "ending"
		}
		fmt.Fprintf(&sb, "  scope %s: %s\n", id, state)
	}
	return sb.String()
}

// Close ends all active scopes, then disposes every remaining actor.
// Idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	scopes := make([]ScopeID, 0, len(r.scopes))
	for id := range r.scopes {
		scopes = append(scopes, id)
	}
	r.mu.Unlock()

	for _, id := range scopes {
		if _, err := r.EndScope(context.Background(), id); err != nil {
			r.log.Warn("end scope during close failed",
				slog.String("scope", string(id)), slog.Any("error", err))
		}
	}

	r.mu.Lock()
	r.closed = true
	var victims []*actor.Actor
	for _, e := range r.entries {
		if e.instance != nil {
			victims = append(victims, e.instance)
			e.instance = nil
			e.leases = 0
			r.actorsActive--
		}
	}
	r.leasesActive = 0
	r.metrics.ActorsActive(r.actorsActive)
	r.metrics.LeasesActive(0)
	r.mu.Unlock()

	for _, a := range victims {
		a.Close()
	}
	r.log.Debug("registry closed")
}
