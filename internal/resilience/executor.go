// Package resilience wraps external calls in a bounded retry/backoff
// discipline. Transient failures are retried with capped exponential
// backoff and seeded jitter; fatal failures and exhausted retries surface
// as a structured CallError rather than an unhandled fault.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker/v2"
)

// Config controls retry and breaker behavior for one Executor.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// JitterSeed makes delay jitter reproducible. Zero seeds from the clock.
	JitterSeed int64

	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

// DefaultConfig returns the retry policy used when no configuration is given.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		BaseDelay:           2 * time.Second,
		MaxDelay:            30 * time.Second,
		BreakerMinRequests:  10,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  30 * time.Second,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = def.BaseDelay
	}
	if out.MaxDelay < out.BaseDelay {
		out.MaxDelay = out.BaseDelay
	}
	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	return out
}

// Executor runs operations under the configured retry policy. Attempt count
// and backoff state are local to one Execute call; the only shared state is
// the jitter source and the per-operation breakers.
type Executor struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewExecutor creates an Executor with the given config and logger.
func NewExecutor(cfg Config, log *slog.Logger) *Executor {
	cfg = cfg.normalize()
	if log == nil {
		log = slog.Default()
	}
	seed := cfg.JitterSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Executor{
		cfg:      cfg,
		log:      log,
		rng:      rand.New(rand.NewSource(seed)),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Execute runs fn under the retry policy. A nil classifier uses
// DefaultClassifier. The returned error, if any, is always a *CallError.
func (e *Executor) Execute(ctx context.Context, op string, fn func(context.Context) error, classify Classifier) *CallError {
	if classify == nil {
		classify = DefaultClassifier
	}

	run := func() error { return e.executeWithRetry(ctx, op, fn, classify) }

	var err error
	if e.cfg.BreakerEnabled {
		_, err = e.breaker(op, classify).Execute(func() (any, error) {
			return nil, run()
		})
	} else {
		err = run()
	}
	if err == nil {
		return nil
	}

	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &CallError{Op: op, Kind: KindServer, Message: err.Error()}
	}
	return &CallError{Op: op, Kind: KindUnknown, Message: err.Error(), Attempts: 1}
}

func (e *Executor) executeWithRetry(ctx context.Context, op string, fn func(context.Context) error, classify Classifier) error {
	attempts := 0

	err := retry.Do(
		func() error {
			attempts++
			return fn(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.cfg.MaxAttempts)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			class := classify(err)
			if class.Transient {
				e.log.Warn("retrying transient failure",
					"op", op, "attempt", attempts, "kind", string(class.Kind), "error", err)
			}
			return class.Transient
		}),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return e.backoff(n)
		}),
	)
	if err == nil {
		return nil
	}

	class := classify(err)
	return &CallError{
		Op:       op,
		Kind:     class.Kind,
		Message:  err.Error(),
		Attempts: attempts,
	}
}

// backoff returns the delay before retry n (0-based): base * 2^n, capped at
// MaxDelay, scaled by a jitter factor in [0.8, 1.3).
func (e *Executor) backoff(n uint) time.Duration {
	delay := e.cfg.BaseDelay
	for i := uint(0); i < n; i++ {
		delay *= 2
		if delay >= e.cfg.MaxDelay {
			delay = e.cfg.MaxDelay
			break
		}
	}

	e.mu.Lock()
	factor := 0.8 + 0.5*e.rng.Float64()
	e.mu.Unlock()

	jittered := time.Duration(float64(delay) * factor)
	if jittered > e.cfg.MaxDelay {
		jittered = e.cfg.MaxDelay
	}
	return jittered
}

func (e *Executor) breaker(op string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if br, ok := e.breakers[op]; ok {
		return br
	}

	settings := gobreaker.Settings{
		Name:    op,
		Timeout: e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= e.cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.log.Warn("circuit breaker state change", "op", name, "from", from.String(), "to", to.String())
		},
	}

	br := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[op] = br
	return br
}

// Call runs fn and returns its value, or the fallback plus a CallError when
// the call is abandoned. Downstream consumers always receive a well-shaped
// value.
func Call[T any](ctx context.Context, e *Executor, op string, fallback T, fn func(context.Context) (T, error)) (T, *CallError) {
	var out T
	cerr := e.Execute(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, nil)
	if cerr != nil {
		return fallback, cerr
	}
	return out, nil
}
