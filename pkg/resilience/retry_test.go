package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps test backoffs negligible.
var fastRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
	BackoffFactor:  2.0,
}

func TestWithRetry_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	result := WithRetry(context.Background(), fastRetry, func(_ context.Context) (int, error) {
		calls++
		return 42, nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, 42, result.Value)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	result := WithRetry(context.Background(), fastRetry, func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &HTTPError{StatusCode: 503, Message: "overloaded"}
		}
		return "ok", nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "ok", result.Value)
	assert.Equal(t, 2, result.Attempts)
}

func TestWithRetry_PermanentNotRetried(t *testing.T) {
	calls := 0
	result := WithRetry(context.Background(), fastRetry, func(_ context.Context) (int, error) {
		calls++
		return 0, &HTTPError{StatusCode: 400, Message: "bad request"}
	})

	require.Error(t, result.Err)
	assert.Equal(t, 1, calls)

	var catErr *CategorizedError
	require.ErrorAs(t, result.Err, &catErr)
	assert.Equal(t, CategoryPermanent, catErr.Category)
}

func TestWithRetry_MalformedNotRetried(t *testing.T) {
	calls := 0
	result := WithRetry(context.Background(), fastRetry, func(_ context.Context) (int, error) {
		calls++
		return 0, &JSONParseError{Message: "truncated"}
	})

	require.Error(t, result.Err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsMalformed(result.Err))
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	result := WithRetry(context.Background(), fastRetry, func(_ context.Context) (int, error) {
		calls++
		return 0, &HTTPError{StatusCode: 429, Message: "rate limited"}
	})

	require.Error(t, result.Err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, result.Attempts)

	var catErr *CategorizedError
	require.ErrorAs(t, result.Err, &catErr)
	assert.Equal(t, 3, catErr.Retries)
}

func TestWithRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	result := WithRetry(ctx, fastRetry, func(_ context.Context) (int, error) {
		calls++
		return 0, nil
	})

	require.Error(t, result.Err)
	assert.Equal(t, 0, calls)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestWithRetry_CustomRetryableFunc(t *testing.T) {
	cfg := fastRetry
	cfg.RetryableFunc = func(err error) bool { return errors.Is(err, errRetryMe) }

	calls := 0
	result := WithRetry(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errRetryMe
		}
		return 7, nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, 7, result.Value)
	assert.Equal(t, 2, calls)
}

var errRetryMe = errors.New("retry me")
