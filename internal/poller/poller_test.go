package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Functional Validation Tests - Sequence guard

func TestDeliver_DropsStaleResponse(t *testing.T) {
	p := New[int]("test", time.Second, func(context.Context) (int, error) { return 0, nil })

	// request 2 resolves before request 1
	p.deliver(2, 20, nil)
	p.deliver(1, 10, nil)

	v, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, 20, v)
	assert.Equal(t, 1, p.Dropped())
}

func TestDeliver_ErrorKeepsPreviousValue(t *testing.T) {
	var reported []error
	p := New[int]("test", time.Second, func(context.Context) (int, error) { return 0, nil },
		WithOnError[int](func(err error) { reported = append(reported, err) }))

	p.deliver(1, 7, nil)
	boom := errors.New("boom")
	p.deliver(2, 0, boom)

	v, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.ErrorIs(t, p.Err(), boom)
	assert.Len(t, reported, 1)

	p.deliver(3, 9, nil)
	v, _ = p.Latest()
	assert.Equal(t, 9, v)
	assert.NoError(t, p.Err())
}

func TestDeliver_StaleErrorIgnored(t *testing.T) {
	p := New[int]("test", time.Second, func(context.Context) (int, error) { return 0, nil })

	p.deliver(5, 50, nil)
	p.deliver(4, 0, errors.New("late failure"))

	assert.NoError(t, p.Err())
	assert.Equal(t, 1, p.Dropped())
}

func TestDeliver_OnUpdateReceivesAcceptedValuesOnly(t *testing.T) {
	var got []int
	p := New[int]("test", time.Second, func(context.Context) (int, error) { return 0, nil },
		WithOnUpdate[int](func(v int) { got = append(got, v) }))

	p.deliver(1, 1, nil)
	p.deliver(3, 3, nil)
	p.deliver(2, 2, nil)

	assert.Equal(t, []int{1, 3}, got)
}

// Functional Validation Tests - Run loop

func TestDeliver_SlowCallbackNeverEndsOnOlderValue(t *testing.T) {
	var (
		mu        sync.Mutex
		published []int
	)
	p := New[int]("test", time.Second, func(context.Context) (int, error) { return 0, nil },
		WithOnUpdate(func(v int) {
			if v == 2 {
				time.Sleep(50 * time.Millisecond)
			}
			mu.Lock()
			published = append(published, v)
			mu.Unlock()
		}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.deliver(2, 2, nil)
	}()
	require.Eventually(t, func() bool {
		v, ok := p.Latest()
		return ok && v == 2
	}, time.Second, time.Millisecond)

	p.deliver(3, 3, nil)
	<-done

	v, _ := p.Latest()
	assert.Equal(t, 3, v)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, published)
	if last := published[len(published)-1]; last != 3 {
		t.Errorf("last published value = %d, want 3 (order %v)", last, published)
	}
}

func TestRun_FetchesImmediatelyAndRepeatedly(t *testing.T) {
	var calls atomic.Int32
	p := New[int32]("test", 10*time.Millisecond, func(context.Context) (int32, error) {
		return calls.Add(1), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	v, ok := p.Latest()
	require.True(t, ok)
	assert.GreaterOrEqual(t, v, int32(1))
}

func TestRun_SlowResponseDoesNotOverwriteNewer(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	p := New[string]("test", 10*time.Millisecond, func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return "stale", nil
		}
		return "fresh", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		v, ok := p.Latest()
		return ok && v == "fresh"
	}, time.Second, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return p.Dropped() >= 1 }, time.Second, 5*time.Millisecond)

	v, _ := p.Latest()
	assert.Equal(t, "fresh", v)
}

func TestRun_NothingAppliedAfterStop(t *testing.T) {
	var mu sync.Mutex
	var updates int
	started := make(chan struct{})
	p := New[int]("test", time.Hour, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 1, nil
	}, WithOnUpdate[int](func(int) {
		mu.Lock()
		updates++
		mu.Unlock()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	<-started
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, updates)
	_, ok := p.Latest()
	assert.False(t, ok)
}

func TestRun_RejectsNonPositiveInterval(t *testing.T) {
	p := New[int]("test", 0, func(context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, p.Run(context.Background()), ErrInvalidInterval)
}

func TestNextDelay_WithinJitterBounds(t *testing.T) {
	p := New[int]("test", 100*time.Millisecond, nil, WithJitter[int](20*time.Millisecond))
	for i := 0; i < 50; i++ {
		d := p.nextDelay()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 120*time.Millisecond)
	}
}
