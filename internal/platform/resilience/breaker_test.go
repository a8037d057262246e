package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	breaker := NewBreaker(Options{FailureThreshold: 3, ResetTimeout: time.Minute, Now: clock.Now})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, breaker.Do(ctx, fail), errBoom)
	}
	assert.Equal(t, StateOpen, breaker.State())

	called := false
	err := breaker.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	breaker := NewBreaker(Options{FailureThreshold: 2, ResetTimeout: time.Minute})
	ctx := context.Background()

	_ = breaker.Do(ctx, fail)
	require.NoError(t, breaker.Do(ctx, succeed))
	_ = breaker.Do(ctx, fail)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	breaker := NewBreaker(Options{FailureThreshold: 1, ResetTimeout: time.Minute, Now: clock.Now})
	ctx := context.Background()

	_ = breaker.Do(ctx, fail)
	require.Equal(t, StateOpen, breaker.State())

	clock.Advance(time.Minute)
	assert.Equal(t, StateHalfOpen, breaker.State())

	// a failed trial re-opens immediately
	assert.ErrorIs(t, breaker.Do(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, breaker.State())

	clock.Advance(time.Minute)
	require.NoError(t, breaker.Do(ctx, succeed))
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenAllowsSingleTrial(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	breaker := NewBreaker(Options{FailureThreshold: 1, ResetTimeout: time.Second, Now: clock.Now})
	ctx := context.Background()
	_ = breaker.Do(ctx, fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- breaker.Do(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, breaker.Do(ctx, succeed), ErrOpen)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	breaker := NewBreaker(Options{FailureThreshold: 1, ResetTimeout: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := breaker.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerDropsResultsFromEarlierState(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	breaker := NewBreaker(Options{FailureThreshold: 2, ResetTimeout: time.Minute, Now: clock.Now})
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- breaker.Do(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, breaker.Do(ctx, fail), errBoom)
	assert.ErrorIs(t, breaker.Do(ctx, fail), errBoom)
	require.Equal(t, StateOpen, breaker.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateOpen, breaker.State())
	assert.ErrorIs(t, breaker.Do(ctx, succeed), ErrOpen)

}

func TestBreakerIgnoresStaleFailureAfterRecovery(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	breaker := NewBreaker(Options{FailureThreshold: 2, ResetTimeout: time.Minute, Now: clock.Now})
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- breaker.Do(ctx, func(context.Context) error {
			close(started)
			<-release
			return errBoom
		})
	}()
	<-started

	assert.ErrorIs(t, breaker.Do(ctx, fail), errBoom)
	assert.ErrorIs(t, breaker.Do(ctx, fail), errBoom)
	require.Equal(t, StateOpen, breaker.State())
	clock.Advance(time.Minute)
	require.NoError(t, breaker.Do(ctx, succeed))
	require.Equal(t, StateClosed, breaker.State())

	close(release)
	assert.ErrorIs(t, <-done, errBoom)
	assert.ErrorIs(t, breaker.Do(ctx, fail), errBoom)
	assert.Equal(t, StateClosed, breaker.State())
}
