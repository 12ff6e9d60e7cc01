package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

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

func newTestBreaker(clock *fakeClock) *Breaker {
	return New("test", Config{FailureThreshold: 5, ResetTimeout: time.Minute, HalfOpenSuccessRequired: 3}, WithClock(clock.Now))
}

func fail(ctx context.Context) error    { return errBoom }
func succeed(ctx context.Context) error { return nil }

func TestBreaker_OpensAtThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.ErrorIs(t, b.Do(ctx, fail), errBoom)
		require.Equal(t, StateClosed, b.State())
	}
	require.ErrorIs(t, b.Do(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, 5, b.Failures())
}

func TestBreaker_OpenRejectsWithoutInvoking(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = b.Do(ctx, fail)
	}

	calls := 0
	clock.Advance(59 * time.Second)
	err := b.Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 0, calls)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenClosesAfterRequiredSuccesses(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = b.Do(ctx, fail)
	}

	clock.Advance(time.Minute)
	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = b.Do(ctx, fail)
	}

	clock.Advance(time.Minute)
	require.NoError(t, b.Do(ctx, succeed))
	require.ErrorIs(t, b.Do(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, b.State())

	// Reopening restarts the timeout from the new failure.
	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, b.Do(ctx, succeed), ErrOpen)
}

func TestBreaker_ClosedSuccessDoesNotDecay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = b.Do(ctx, fail)
		require.NoError(t, b.Do(ctx, succeed))
	}
	require.Equal(t, StateClosed, b.State())
	_ = b.Do(ctx, fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = b.Do(ctx, fail)
	}
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
	assert.NoError(t, b.Do(ctx, succeed))
}

func TestBreaker_CanceledIsNotAFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := b.Do(ctx, func(ctx context.Context) error {
			return context.Canceled
		})
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestExecute_ReturnsResult(t *testing.T) {
	b := New("exec", DefaultConfig())

	v, err := Execute(context.Background(), b, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Execute(context.Background(), b, func(ctx context.Context) (int, error) {
		return 7, errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, v)
}

func TestBreaker_StateChangeHook(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var transitions []string
	b := New("hook", Config{FailureThreshold: 1, ResetTimeout: time.Second, HalfOpenSuccessRequired: 1},
		WithClock(clock.Now),
		WithStateChange(func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}))
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	clock.Advance(time.Second)
	_ = b.Do(ctx, succeed)

	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}, transitions)
}

func TestNew_AppliesDefaults(t *testing.T) {
	b := New("defaults", Config{})
	assert.Equal(t, DefaultConfig(), b.cfg)
	assert.Equal(t, "defaults", b.Name())
}

func TestBreaker_HalfOpenAdmitsOneTrialAtATime(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = b.Do(ctx, fail)
	}
	clock.Advance(time.Minute)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(ctx, func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	calls := 0
	err := b.Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, ErrOpen)
	assert.Zero(t, calls)
	assert.Equal(t, StateHalfOpen, b.State())

	close(release)
	require.NoError(t, <-done)

	// The finished trial frees the slot for the next one.
	require.NoError(t, b.Do(ctx, succeed))
	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ExcludedErrorsAreNotRecorded(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := New("test", Config{FailureThreshold: 1, ResetTimeout: time.Minute, HalfOpenSuccessRequired: 1}, WithClock(clock.Now))
	ctx := context.Background()
	errMiss := errors.New("nothing to do")

	for i := 0; i < 3; i++ {
		err := b.Do(ctx, func(ctx context.Context) error { return Exclude(errMiss) })
		require.ErrorIs(t, err, errMiss)
		assert.Equal(t, errMiss, err, "the wrapper is removed")
	}
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Failures())

	require.ErrorIs(t, b.Do(ctx, fail), errBoom)
	require.Equal(t, StateOpen, b.State())
	clock.Advance(time.Minute)

	// An excluded trial neither closes nor reopens the circuit.
	require.ErrorIs(t, b.Do(ctx, func(ctx context.Context) error { return Exclude(errMiss) }), errMiss)
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_StaleCallDoesNotDecideHalfOpen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := New("test", Config{FailureThreshold: 1, ResetTimeout: time.Minute, HalfOpenSuccessRequired: 1}, WithClock(clock.Now))
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(ctx, func(ctx context.Context) error {
			close(entered)
			<-release
			return errBoom
		})
	}()
	<-entered

	require.ErrorIs(t, b.Do(ctx, fail), errBoom)
	require.Equal(t, StateOpen, b.State())
	clock.Advance(time.Minute)

	trialEntered := make(chan struct{})
	trialRelease := make(chan struct{})
	trialDone := make(chan error, 1)
	go func() {
		trialDone <- b.Do(ctx, func(ctx context.Context) error {
			close(trialEntered)
			<-trialRelease
			return nil
		})
	}()
	<-trialEntered

	close(release)
	require.ErrorIs(t, <-done, errBoom)
	assert.Equal(t, StateHalfOpen, b.State(), "a call admitted while CLOSED does not reopen")

	close(trialRelease)
	require.NoError(t, <-trialDone)
	assert.Equal(t, StateClosed, b.State())
}
