package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// breakerHarness drives a breaker with a controllable clock.
type breakerHarness struct {
	breaker *Breaker
	now     time.Time
}

func newBreakerHarness(t *testing.T) *breakerHarness {
	t.Helper()
	h := &breakerHarness{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	h.breaker = NewBreaker("test-dep",
		BreakerConfig{
			FailureThreshold:  3,
			ResetTimeout:      60 * time.Second,
			HalfOpenSuccesses: 2,
			CallTimeout:       time.Second,
			Retry:             NoRetry,
		},
		WithClock(func() time.Time { return h.now }),
	)
	return h
}

func (h *breakerHarness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

var errDown = &HTTPError{StatusCode: 400, Message: "permanent failure"}

func (h *breakerHarness) fail(t *testing.T) error {
	t.Helper()
	_, err := Do(context.Background(), h.breaker, func(_ context.Context) (string, error) {
		return "", errDown
	})
	return err
}

func (h *breakerHarness) succeed(t *testing.T) error {
	t.Helper()
	_, err := Do(context.Background(), h.breaker, func(_ context.Context) (string, error) {
		return "ok", nil
	})
	return err
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	h := newBreakerHarness(t)

	for i := 0; i < 3; i++ {
		assert.Equal(t, StateClosed, h.breaker.State())
		require.Error(t, h.fail(t))
	}
	assert.Equal(t, StateOpen, h.breaker.State())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	h := newBreakerHarness(t)

	require.Error(t, h.fail(t))
	require.Error(t, h.fail(t))
	require.NoError(t, h.succeed(t))
	require.Error(t, h.fail(t))
	require.Error(t, h.fail(t))

	// Never hit three in a row, so still closed.
	assert.Equal(t, StateClosed, h.breaker.State())
}

func TestBreaker_OpenShortCircuits(t *testing.T) {
	h := newBreakerHarness(t)
	for i := 0; i < 3; i++ {
		h.fail(t)
	}

	called := false
	_, err := Do(context.Background(), h.breaker, func(_ context.Context) (string, error) {
		called = true
		return "ok", nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "test-dep", openErr.Name)
	assert.Equal(t, h.now.Add(60*time.Second), openErr.RetryAt)
}

func TestBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	h := newBreakerHarness(t)
	for i := 0; i < 3; i++ {
		h.fail(t)
	}

	h.advance(59 * time.Second)
	assert.Equal(t, StateOpen, h.breaker.State())

	h.advance(time.Second)
	assert.Equal(t, StateHalfOpen, h.breaker.State())
}

func TestBreaker_ClosesAfterHalfOpenSuccesses(t *testing.T) {
	h := newBreakerHarness(t)
	for i := 0; i < 3; i++ {
		h.fail(t)
	}
	h.advance(60 * time.Second)

	require.NoError(t, h.succeed(t))
	assert.Equal(t, StateHalfOpen, h.breaker.State())

	require.NoError(t, h.succeed(t))
	assert.Equal(t, StateClosed, h.breaker.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	h := newBreakerHarness(t)
	for i := 0; i < 3; i++ {
		h.fail(t)
	}
	h.advance(60 * time.Second)

	require.NoError(t, h.succeed(t))
	require.Error(t, h.fail(t))

	assert.Equal(t, StateOpen, h.breaker.State())

	// The reset timer restarts from the reopen.
	h.advance(59 * time.Second)
	assert.Equal(t, StateOpen, h.breaker.State())
	h.advance(time.Second)
	assert.Equal(t, StateHalfOpen, h.breaker.State())
}

// TestBreaker_TransientRetryBeforeAccounting verifies that a transient
// blip followed by a successful retry counts as a single success, not a
// failure plus a success.
func TestBreaker_TransientRetryBeforeAccounting(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker("retry-dep",
		BreakerConfig{
			FailureThreshold:  3,
			ResetTimeout:      60 * time.Second,
			HalfOpenSuccesses: 2,
			CallTimeout:       time.Second,
			Retry: RetryConfig{
				MaxAttempts:    2,
				InitialBackoff: time.Millisecond,
				MaxBackoff:     time.Millisecond,
				BackoffFactor:  1.0,
			},
		},
		WithClock(func() time.Time { return now }),
	)

	calls := 0
	val, err := Do(context.Background(), b, func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &HTTPError{StatusCode: 503, Message: "blip"}
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", val)
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateClosed, b.State())

	// Two more permanent failures must not open the breaker: the blip
	// above was recorded as a success.
	for i := 0; i < 2; i++ {
		_, err := Do(context.Background(), b, func(_ context.Context) (string, error) {
			return "", errDown
		})
		require.Error(t, err)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestDoWithFallback_CircuitOpen(t *testing.T) {
	h := newBreakerHarness(t)
	for i := 0; i < 3; i++ {
		h.fail(t)
	}

	val, err := DoWithFallback(context.Background(), h.breaker, []string{"cached"},
		func(_ context.Context) ([]string, error) {
			t.Fatal("must not be called while open")
			return nil, nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"cached"}, val)
}

func TestDoWithFallback_OtherErrorsPropagate(t *testing.T) {
	h := newBreakerHarness(t)

	_, err := DoWithFallback(context.Background(), h.breaker, "fallback",
		func(_ context.Context) (string, error) {
			return "", errDown
		})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_DefaultsApplied(t *testing.T) {
	b := NewBreaker("defaults", BreakerConfig{})
	assert.Equal(t, 3, b.cfg.FailureThreshold)
	assert.Equal(t, 60*time.Second, b.cfg.ResetTimeout)
	assert.Equal(t, 2, b.cfg.HalfOpenSuccesses)
	assert.Equal(t, 30*time.Second, b.cfg.CallTimeout)
	assert.Equal(t, 2, b.cfg.Retry.MaxAttempts)
}

func TestBreaker_CallTimeoutCountsAsFailure(t *testing.T) {
	b := NewBreaker("slow-dep",
		BreakerConfig{
			FailureThreshold:  3,
			ResetTimeout:      60 * time.Second,
			HalfOpenSuccesses: 2,
			CallTimeout:       10 * time.Millisecond,
			Retry:             NoRetry,
		},
	)

	for i := 0; i < 3; i++ {
		_, err := Do(context.Background(), b, func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	}
	assert.Equal(t, StateOpen, b.State())
}
