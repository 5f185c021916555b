package store

import (
	"sync"
)

// InFlightGuard admits at most one outstanding mutation per entity id
// ARCHITECTURAL DISCOVERY: Per-id state with explicit release mirrors the
// per-client tracking of a rate limiter; a busy id is refused, never queued
type InFlightGuard struct {
	mu      sync.Mutex
	pending map[int64]struct{}
}

// NewInFlightGuard creates an empty guard
func NewInFlightGuard() *InFlightGuard {
	return &InFlightGuard{
		pending: make(map[int64]struct{}),
	}
}

// TryAcquire marks id as in flight. It returns false when id is already busy.
func (g *InFlightGuard) TryAcquire(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.pending[id]; busy {
		return false
	}
	g.pending[id] = struct{}{}
	return true
}

// Release clears the in-flight mark for id
func (g *InFlightGuard) Release(id int64) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}

// IsUpdating reports whether id has a mutation in flight
func (g *InFlightGuard) IsUpdating(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.pending[id]
	return busy
}

// Pending returns the number of ids currently in flight
func (g *InFlightGuard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}
