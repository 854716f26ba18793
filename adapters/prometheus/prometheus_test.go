package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActorMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewActorMetrics(reg)

	require.NotNil(t, m)

	timer := m.HandlerDuration("MyEvent")
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	m.HandlerProcessed("MyEvent", true)
	m.HandlerProcessed("MyEvent", false)
	m.HandlerPanic("MyEvent")
	m.EmissionsTotal("updating")
	m.MailboxDepth("actor-123", 10)

	// Verify metrics were registered
	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}

	assert.True(t, names["troupe_actor_handler_duration_seconds"])
	assert.True(t, names["troupe_actor_handlers_total"])
	assert.True(t, names["troupe_actor_emissions_total"])
	assert.True(t, names["troupe_actor_mailbox_depth"])
}

func TestNewRegistryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistryMetrics(reg)

	require.NotNil(t, m)

	m.ActorsActive(3)
	m.LeasesActive(2)

	timer := m.CleanupDuration()
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	m.CleanupTaskFailures(1)
	m.ScopeEnded(true)
	m.ScopeEnded(false)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}

	assert.True(t, names["troupe_registry_actors_active"])
	assert.True(t, names["troupe_registry_cleanup_duration_seconds"])
	assert.True(t, names["troupe_registry_scopes_ended_total"])
}

func TestNewAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAllMetrics(reg)

	require.NotNil(t, m)
	require.NotNil(t, m.Actor)
	require.NotNil(t, m.Registry)

	// All metrics should be usable
	m.Actor.HandlerProcessed("test", true)
	m.Registry.ScopeEnded(true)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestBoolToStr(t *testing.T) {
	assert.Equal(t, "true", boolToStr(true))
	assert.Equal(t, "false", boolToStr(false))
}
