package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/athletedesk/athletedesk/pkg/graph/observability"
)

// ErrCircuitOpen is returned when a call is short-circuited because the
// breaker is open. Use errors.Is to test for it; the concrete error is a
// *CircuitOpenError carrying the breaker name.
var ErrCircuitOpen = errors.New("circuit open")

// CircuitOpenError reports a short-circuited call.
type CircuitOpenError struct {
	// Name identifies the guarded dependency.
	Name string
	// RetryAt is when the breaker will next allow a trial call.
	RetryAt time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q open until %s", e.Name, e.RetryAt.Format(time.RFC3339))
}

// Unwrap returns ErrCircuitOpen for errors.Is support.
func (e *CircuitOpenError) Unwrap() error {
	return ErrCircuitOpen
}

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// StateClosed passes calls through and counts failures.
	StateClosed BreakerState = iota
	// StateOpen short-circuits calls immediately.
	StateOpen
	// StateHalfOpen allows limited trial calls after the reset timeout.
	StateHalfOpen
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Default: 3.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before allowing
	// trial calls. Default: 60s.
	ResetTimeout time.Duration

	// HalfOpenSuccesses is the number of consecutive successes in
	// half-open that closes the circuit. Default: 2.
	HalfOpenSuccesses int

	// CallTimeout bounds each guarded call; expiry counts as a failure.
	// Default: 30s.
	CallTimeout time.Duration

	// Retry is applied to each call before breaker accounting. Defaults
	// to DefaultRetry (a single retry for transient errors).
	Retry RetryConfig
}

// DefaultBreakerConfig returns the standard breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:  3,
		ResetTimeout:      60 * time.Second,
		HalfOpenSuccesses: 2,
		CallTimeout:       30 * time.Second,
		Retry:             DefaultRetry,
	}
}

// Breaker is a circuit breaker guarding one external dependency.
//
// Construct one Breaker per dependency at process start and share it across
// concurrent turns; per-request breakers have no failure history and are
// useless. All counter updates are serialized under an internal mutex.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu                sync.Mutex
	state             BreakerState
	consecutiveFails  int
	halfOpenSuccesses int
	halfOpenInFlight  int
	openedAt          time.Time

	now     func() time.Time
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithBreakerLogger sets the logger used for state-transition logging.
func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// WithBreakerMetrics records state transitions to the given recorder.
func WithBreakerMetrics(m observability.MetricsRecorder) BreakerOption {
	return func(b *Breaker) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		b.now = now
	}
}

// NewBreaker creates a circuit breaker for the named dependency.
// Zero-valued config fields fall back to defaults.
func NewBreaker(name string, cfg BreakerConfig, opts ...BreakerOption) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = def.HalfOpenSuccesses
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}

	b := &Breaker{
		name:    name,
		cfg:     cfg,
		state:   StateClosed,
		now:     time.Now,
		metrics: observability.NoopMetrics{},
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current breaker state, accounting for reset-timeout
// expiry (an open breaker past its timeout reports half-open).
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// allow decides whether a call may proceed.
// Returns a *CircuitOpenError when the call must be short-circuited.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return &CircuitOpenError{Name: b.name, RetryAt: b.openedAt.Add(b.cfg.ResetTimeout)}
		}
		b.transition(StateHalfOpen)
		b.halfOpenSuccesses = 0
		b.halfOpenInFlight = 1
		return nil

	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenSuccesses {
			return &CircuitOpenError{Name: b.name, RetryAt: b.now()}
		}
		b.halfOpenInFlight++
		return nil
	}

	return nil
}

// record applies one call outcome to the breaker counters.
func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if success {
			b.consecutiveFails = 0
			return
		}
		b.consecutiveFails++
		if b.consecutiveFails >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
			b.openedAt = b.now()
		}

	case StateHalfOpen:
		b.halfOpenInFlight--
		if b.halfOpenInFlight < 0 {
			b.halfOpenInFlight = 0
		}
		if !success {
			// Any failure during half-open reopens immediately
			b.transition(StateOpen)
			b.openedAt = b.now()
			b.consecutiveFails = b.cfg.FailureThreshold
			return
		}
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.HalfOpenSuccesses {
			b.transition(StateClosed)
			b.consecutiveFails = 0
			b.halfOpenInFlight = 0
		}

	case StateOpen:
		// A call that started before the circuit opened; outcome is stale.
	}
}

// transition changes state with logging and metrics. Caller holds the lock.
func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	if b.logger != nil {
		b.logger.Warn("circuit breaker state change",
			slog.String("breaker", b.name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}
	b.metrics.RecordBreakerTransition(context.Background(), b.name, from.String(), to.String())
}

// Do executes fn through the breaker with the configured call timeout and
// a single automatic retry for transient errors. The retry happens before
// the breaker's own failure accounting, so a transient blip counts as one
// outcome, not two.
//
// Returns a *CircuitOpenError (matching ErrCircuitOpen) when the circuit
// short-circuits the call without any network attempt.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if err := b.allow(); err != nil {
		return zero, err
	}

	result := WithRetry(ctx, b.cfg.Retry, func(ctx context.Context) (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
		defer cancel()
		return fn(callCtx)
	})

	b.record(result.Err == nil)

	if result.Err != nil {
		return zero, result.Err
	}
	return result.Value, nil
}

// DoWithFallback executes fn through the breaker like Do, but returns the
// supplied fallback value instead of propagating a circuit-open error.
// Other errors still propagate.
func DoWithFallback[T any](ctx context.Context, b *Breaker, fallback T, fn func(context.Context) (T, error)) (T, error) {
	result, err := Do(ctx, b, fn)
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return fallback, nil
		}
		return result, err
	}
	return result, nil
}
