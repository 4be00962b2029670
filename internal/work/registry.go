package work

import (
	"fmt"
	"sort"
	"sync"
)

// TypeInfo describes a registered work type for status reporting.
type TypeInfo struct {
	ID           string `json:"id"`
	Priority     string `json:"priority"`
	MarketTiming string `json:"market_timing"`
	MaxRetries   int    `json:"max_retries"`
}

// Registry maps work type IDs to their definitions.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*WorkType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*WorkType)}
}

// Register adds wt, replacing any earlier type with the same ID. A type
// without an ID or an Execute func is a programming error and panics.
func (r *Registry) Register(wt *WorkType) {
	if wt == nil || wt.ID == "" {
		panic("work: Register called without a work type ID")
	}
	if wt.Execute == nil {
		panic(fmt.Sprintf("work: work type %q has no Execute func", wt.ID))
	}

	r.mu.Lock()
	r.types[wt.ID] = wt
	r.mu.Unlock()
}

// Get returns the type registered under id, or nil.
func (r *Registry) Get(id string) *WorkType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[id]
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	return r.Get(id) != nil
}

// Count returns the number of registered work types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Types lists registered types, highest priority first, then by ID.
func (r *Registry) Types() []TypeInfo {
	r.mu.RLock()
	out := make([]TypeInfo, 0, len(r.types))
	prio := make(map[string]Priority, len(r.types))
	for _, wt := range r.types {
		out = append(out, TypeInfo{
			ID:           wt.ID,
			Priority:     wt.Priority.String(),
			MarketTiming: wt.MarketTiming.String(),
			MaxRetries:   wt.MaxRetries,
		})
		prio[wt.ID] = wt.Priority
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		pi, pj := prio[out[i].ID], prio[out[j].ID]
		if pi != pj {
			return pi > pj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
