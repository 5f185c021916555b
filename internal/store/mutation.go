package store

import (
	"context"
	"time"
)

// Outcome reports what RunOptimisticMutation did
type Outcome int

const (
	// Skipped means another mutation for the same id was in flight; nothing ran
	Skipped Outcome = iota
	// Applied means the remote call succeeded and the store was reconciled
	Applied
	// Failed means the remote call failed and the store was rolled back
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Mutation is one optimistic state transition for a single entity
type Mutation[T Entity] struct {
	// Apply computes the optimistic list. It runs before any network I/O.
	Apply func(items []T) []T

	// Remote performs the server call. A nil entity with a nil error means the
	// server sent no representation and the optimistic result stands.
	Remote func(ctx context.Context) (*T, error)

	// Reconcile merges the server representation. Defaults to replacing the
	// entity with the same id; an entity a newer fetch dropped stays dropped.
	Reconcile func(items []T, server T) []T

	// Timeout bounds Remote so a hung request cannot hold the guard forever.
	// Zero means no bound beyond ctx.
	Timeout time.Duration
}

// RunOptimisticMutation applies m locally, calls the server and then either
// reconciles with the server representation or restores the pre-apply
// snapshot. The guard for id is held for the whole call and always released.
func RunOptimisticMutation[T Entity](ctx context.Context, s *Store[T], g *InFlightGuard, id int64, m Mutation[T]) (Outcome, error) {
	if !g.TryAcquire(id) {
		return Skipped, nil
	}
	defer g.Release(id)

	apply := m.Apply
	if apply == nil {
		apply = func(items []T) []T { return items }
	}
	snapshot, appliedVersion := s.update(apply)

	remoteCtx := ctx
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		remoteCtx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	server, err := m.Remote(remoteCtx)
	if err != nil {
		s.rollback(snapshot, appliedVersion, id)
		return Failed, err
	}

	if server != nil {
		reconcile := m.Reconcile
		if reconcile == nil {
			reconcile = ReplaceIn[T]
		}
		s.reconcile(func(items []T) []T {
			return reconcile(items, *server)
		})
	}
	return Applied, nil
}
