// Package poller keeps a value converged with server state by periodic
// re-fetching, for views with no push channel.
package poller

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FetchFunc retrieves the authoritative value
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Poller re-issues a fetch on a fixed interval and replaces the held value
// wholesale with each accepted response.
// ARCHITECTURAL DISCOVERY: Ticks never wait for a slow response, so requests
// overlap; a monotonic sequence number drops any response older than the one
// already applied
type Poller[T any] struct {
	name     string
	interval time.Duration
	jitter   time.Duration
	fetch    FetchFunc[T]
	onUpdate func(T)
	onError  func(error)
	logger   zerolog.Logger

	issued atomic.Uint64

	mu          sync.RWMutex
	lastApplied uint64
	value       T
	hasValue    bool
	lastErr     error
	dropped     int

	// publishMu keeps onUpdate calls in sequence order
	publishMu sync.Mutex

	inflight sync.WaitGroup
}

// Option configures a Poller
type Option[T any] func(*Poller[T])

// WithJitter adds a random delay in [0, d) to every interval
func WithJitter[T any](d time.Duration) Option[T] {
	return func(p *Poller[T]) { p.jitter = d }
}

// WithOnUpdate registers a callback run for each accepted value
func WithOnUpdate[T any](fn func(T)) Option[T] {
	return func(p *Poller[T]) { p.onUpdate = fn }
}

// WithOnError registers a callback run for each failed fetch that is not stale
func WithOnError[T any](fn func(error)) Option[T] {
	return func(p *Poller[T]) { p.onError = fn }
}

// WithLogger sets the logger
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(p *Poller[T]) { p.logger = logger }
}

// New creates a poller; name is used in log lines only
func New[T any](name string, interval time.Duration, fetch FetchFunc[T], opts ...Option[T]) *Poller[T] {
	p := &Poller[T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches immediately and then once per interval until ctx is done.
// It returns ctx.Err() after every in-flight fetch has finished, so no value
// is applied after Run returns.
func (p *Poller[T]) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return ErrInvalidInterval
	}

	p.logger.Debug().Str("poller", p.name).Dur("interval", p.interval).Msg("polling started")
	defer p.logger.Debug().Str("poller", p.name).Msg("polling stopped")

	p.poll(ctx)

	timer := time.NewTimer(p.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.inflight.Wait()
			return ctx.Err()
		case <-timer.C:
			p.poll(ctx)
			timer.Reset(p.nextDelay())
		}
	}
}

// poll issues one fetch in the background tagged with the next sequence number
func (p *Poller[T]) poll(ctx context.Context) {
	seq := p.issued.Add(1)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		value, err := p.fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		p.deliver(seq, value, err)
	}()
}

// deliver applies a response unless a newer one was already applied
func (p *Poller[T]) deliver(seq uint64, value T, err error) {
	p.mu.Lock()
	if seq <= p.lastApplied {
		p.dropped++
		p.mu.Unlock()
		p.logger.Debug().Str("poller", p.name).Uint64("seq", seq).Msg("dropping stale poll response")
		return
	}

	if err != nil {
		p.lastErr = err
		p.mu.Unlock()
		p.logger.Warn().Err(err).Str("poller", p.name).Uint64("seq", seq).Msg("poll failed, keeping previous value")
		if p.onError != nil {
			p.onError(err)
		}
		return
	}

	p.lastApplied = seq
	p.value = value
	p.hasValue = true
	p.lastErr = nil
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.publish(seq, value)
	}
}

// publish hands an accepted value to onUpdate unless a newer one was applied
// in the meantime; a superseded value is never published after a newer one
func (p *Poller[T]) publish(seq uint64, value T) {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	p.mu.RLock()
	current := p.lastApplied
	p.mu.RUnlock()
	if seq != current {
		p.logger.Debug().Str("poller", p.name).Uint64("seq", seq).Msg("skipping superseded update")
		return
	}
	p.onUpdate(value)
}

func (p *Poller[T]) nextDelay() time.Duration {
	if p.jitter <= 0 {
		return p.interval
	}
	return p.interval + rand.N(p.jitter)
}

// Latest returns the last applied value and whether one exists
func (p *Poller[T]) Latest() (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.hasValue
}

// Err returns the error of the most recent non-stale failed fetch, cleared by
// the next accepted value
func (p *Poller[T]) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// Dropped returns how many stale responses were discarded
func (p *Poller[T]) Dropped() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dropped
}
