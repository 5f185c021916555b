// Package store holds client-side entity lists and the optimistic mutation
// primitive shared by every entity type.
package store

import (
	"sync"
)

// Entity is anything the store can key by a numeric id
type Entity interface {
	EntityID() int64
}

// Store is the in-memory list of entities owned by one manager.
// Every write bumps a version so a rollback can tell whether anything else
// changed the list after its optimistic apply.
type Store[T Entity] struct {
	mu      sync.RWMutex
	items   []T
	version uint64
}

// New creates a store seeded with items
func New[T Entity](items ...T) *Store[T] {
	return &Store[T]{items: clone(items)}
}

// Snapshot returns a copy of the current list
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.items)
}

// Len returns the number of entities held
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Version returns the write counter
func (s *Store[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Get returns the entity with id
func (s *Store[T]) Get(id int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// Replace swaps the whole list, used after an authoritative fetch
func (s *Store[T]) Replace(items []T) {
	s.mu.Lock()
	s.items = clone(items)
	s.version++
	s.mu.Unlock()
}

// Upsert replaces the entity with the same id in place, or appends it
func (s *Store[T]) Upsert(item T) {
	s.mu.Lock()
	s.items = upsert(s.items, item)
	s.version++
	s.mu.Unlock()
}

// Remove drops the entity with id if present
func (s *Store[T]) Remove(id int64) {
	s.mu.Lock()
	if i := indexOf(s.items, id); i >= 0 {
		s.items = append(s.items[:i:i], s.items[i+1:]...)
		s.version++
	}
	s.mu.Unlock()
}

// update captures the current list and commits fn's result in one step.
// fn receives a copy it may modify freely.
func (s *Store[T]) update(fn func([]T) []T) (before []T, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before = clone(s.items)
	s.items = fn(clone(s.items))
	s.version++
	return before, s.version
}

// rollback restores snapshot exactly when nothing else wrote since the
// optimistic apply at appliedVersion. Otherwise only entity id is reverted so
// concurrent changes to other entities survive.
func (s *Store[T]) rollback(snapshot []T, appliedVersion uint64, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version == appliedVersion {
		s.items = snapshot
		s.version++
		return
	}

	orig := indexOf(snapshot, id)
	cur := indexOf(s.items, id)
	switch {
	case orig < 0 && cur >= 0:
		s.items = append(s.items[:cur:cur], s.items[cur+1:]...)
	case orig >= 0 && cur >= 0:
		s.items[cur] = snapshot[orig]
	case orig >= 0 && cur < 0:
		at := orig
		if at > len(s.items) {
			at = len(s.items)
		}
		s.items = append(s.items[:at:at], append([]T{snapshot[orig]}, s.items[at:]...)...)
	}
	s.version++
}

// reconcile applies fn to the current list after a successful remote call
func (s *Store[T]) reconcile(fn func([]T) []T) {
	s.mu.Lock()
	s.items = fn(clone(s.items))
	s.version++
	s.mu.Unlock()
}

func indexOf[T Entity](items []T, id int64) int {
	for i := range items {
		if items[i].EntityID() == id {
			return i
		}
	}
	return -1
}

func upsert[T Entity](items []T, item T) []T {
	if i := indexOf(items, item.EntityID()); i >= 0 {
		items[i] = item
		return items
	}
	return append(items, item)
}

func clone[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

// ReplaceIn returns items with the entity of the same id replaced by item.
// An entity that is no longer in the list is not added back.
func ReplaceIn[T Entity](items []T, item T) []T {
	if i := indexOf(items, item.EntityID()); i >= 0 {
		items[i] = item
	}
	return items
}

// RemoveFrom returns items without the entity with id
func RemoveFrom[T Entity](items []T, id int64) []T {
	if i := indexOf(items, id); i >= 0 {
		return append(items[:i:i], items[i+1:]...)
	}
	return items
}

// Modify applies fn to the entity with id and returns the updated list
func Modify[T Entity](items []T, id int64, fn func(*T)) []T {
	if i := indexOf(items, id); i >= 0 {
		fn(&items[i])
	}
	return items
}
