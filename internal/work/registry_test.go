package work

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, string) error { return nil }

func TestRegistry_TypesOrderedByPriority(t *testing.T) {
	r := NewRegistry()
	r.Register(&WorkType{ID: "snapshot", Priority: PriorityLow, Execute: noop})
	r.Register(&WorkType{ID: "trading:cycle", Priority: PriorityCritical, MarketTiming: DuringMarketOpen, Execute: noop})
	r.Register(&WorkType{ID: "reconcile", Priority: PriorityMedium, MaxRetries: 2, Execute: noop})
	r.Register(&WorkType{ID: "cache:warm", Priority: PriorityLow, Execute: noop})

	types := r.Types()
	require.Len(t, types, 4)
	assert.Equal(t, "trading:cycle", types[0].ID)
	assert.Equal(t, "Critical", types[0].Priority)
	assert.Equal(t, "DuringMarketOpen", types[0].MarketTiming)
	assert.Equal(t, "reconcile", types[1].ID)
	assert.Equal(t, 2, types[1].MaxRetries)
	assert.Equal(t, "cache:warm", types[2].ID)
	assert.Equal(t, "snapshot", types[3].ID)
}

func TestRegistry_ReplaceAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(&WorkType{ID: "a", Priority: PriorityLow, Execute: noop})
	r.Register(&WorkType{ID: "a", Priority: PriorityHigh, Execute: noop})

	assert.Equal(t, 1, r.Count())
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("b"))
	assert.Equal(t, PriorityHigh, r.Get("a").Priority)
	assert.Nil(t, r.Get("b"))
}

func TestRegistry_RejectsInvalidTypes(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.Register(&WorkType{Execute: noop}) })
	assert.Panics(t, func() { r.Register(&WorkType{ID: "x"}) })
	assert.Panics(t, func() { r.Register(nil) })
}
