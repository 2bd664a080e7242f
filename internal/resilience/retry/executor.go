// Package retry runs operations against a flaky actuator until they
// succeed, classifying every failure, consulting learned per-target
// statistics, healing between attempts and backing off per policy.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/flakeproof/flakeproof/internal/core/domain"
	"github.com/flakeproof/flakeproof/internal/metrics"
	"github.com/flakeproof/flakeproof/internal/resilience/classify"
	"github.com/flakeproof/flakeproof/internal/resilience/heal"
	"github.com/flakeproof/flakeproof/internal/resilience/learn"
	"github.com/flakeproof/flakeproof/internal/resilience/policy"
)

// Operation is one attempt of the caller's action. Callers are
// responsible for it being safe to re-invoke.
type Operation func(ctx context.Context) error

// ValueOperation is an Operation that yields a value on success.
type ValueOperation[T any] func(ctx context.Context) (T, error)

// Executor drives the attempt loop. It is safe for concurrent use; the
// pattern store is the only shared mutable state and guards itself.
type Executor struct {
	static policy.Policy
	store  *learn.Store
	healer *heal.Healer
	log    *slog.Logger

	sleep     func(context.Context, time.Duration) error
	clock     func() time.Time
	randFloat func() float64
}

// Option configures an Executor.
type Option func(*Executor)

// WithStore shares a pattern store with the executor. Without one,
// learning is disabled regardless of policy.
func WithStore(s *learn.Store) Option {
	return func(e *Executor) { e.store = s }
}

// WithHealer enables self-healing remediation between attempts.
func WithHealer(h *heal.Healer) Option {
	return func(e *Executor) { e.healer = h }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithSleep overrides the backoff sleep, mainly for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) { e.clock = clock }
}

// WithRand overrides the jitter source, mainly for tests.
func WithRand(randFloat func() float64) Option {
	return func(e *Executor) { e.randFloat = randFloat }
}

// NewExecutor builds an executor around a static policy.
func NewExecutor(static policy.Policy, opts ...Option) *Executor {
	e := &Executor{
		static:    static,
		sleep:     sleepCtx,
		clock:     time.Now,
		randFloat: rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Statistics reports the shared store's learning totals.
func (e *Executor) Statistics() learn.Statistics {
	if e.store == nil {
		return learn.Statistics{}
	}
	return e.store.Statistics()
}

// Do runs op under the retry loop. See DoValue for the full contract.
func (e *Executor) Do(ctx context.Context, key domain.TargetKey, op Operation) error {
	_, err := DoValue(ctx, e, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue runs op until it succeeds or retries are exhausted, returning
// op's value on the first success. Failures are classified, recorded
// when learning is on, remediated when self-healing is on, and spaced
// by the policy's backoff. A cancelled or expired caller context aborts
// the loop with the context's error; cancellation is never classified
// and never recorded. Terminal failure is an *ExhaustedError wrapping
// the last attempt's error.
func DoValue[T any](ctx context.Context, e *Executor, key domain.TargetKey, op ValueOperation[T]) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}

	pol := e.static
	learning := pol.Learning && e.store != nil
	if learning {
		pol = policy.Merge(e.static, e.store.Recommended(key))
	}

	maxAttempts := pol.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	start := e.clock()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		e.log.Debug("executing attempt",
			"key", key.String(), "attempt", attempt, "max_attempts", maxAttempts)
		metrics.AttemptsTotal.WithLabelValues(key.Action).Inc()

		val, err := runAttempt(ctx, pol.Timeout, op)
		if err == nil {
			elapsed := e.clock().Sub(start)
			if learning {
				e.store.RecordSuccess(key, elapsed)
			}
			metrics.InvocationDuration.WithLabelValues(key.Action, "success").Observe(elapsed.Seconds())
			return val, nil
		}

		// A dead caller context is cancellation, not a failure of the
		// target; surface it untouched and keep it out of the statistics.
		if ctxErr := ctx.Err(); ctxErr != nil &&
			(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return zero, ctxErr
		}

		kind := classify.Kind(err)

		e.log.Warn("attempt failed",
			"key", key.String(), "attempt", attempt, "kind", kind.String(), "error", err)
		metrics.FailuresTotal.WithLabelValues(key.Action, kind.String()).Inc()

		if learning {
			e.store.RecordFailure(kind, key, attempt, nil)
		}

		if !pol.Retryable(kind) || attempt == maxAttempts {
			elapsed := e.clock().Sub(start)
			metrics.ExhaustedTotal.WithLabelValues(key.Action, kind.String()).Inc()
			metrics.InvocationDuration.WithLabelValues(key.Action, "exhausted").Observe(elapsed.Seconds())
			return zero, &ExhaustedError{Attempts: attempt, LastKind: kind, Err: err}
		}

		if pol.SelfHealing && e.healer != nil {
			if herr := e.healer.Heal(ctx, kind, key); herr != nil {
				e.log.Warn("self-healing failed", "kind", kind.String(), "error", herr)
				metrics.HealingTotal.WithLabelValues(kind.String(), "failure").Inc()
			} else {
				metrics.HealingTotal.WithLabelValues(kind.String(), "success").Inc()
			}
		}

		delay := backoffDelay(pol, attempt-1, e.randFloat)
		e.log.Debug("waiting before retry", "key", key.String(), "delay", delay)
		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// runAttempt invokes op, bounding it by the per-attempt timeout when one
// is configured. An expired attempt deadline surfaces as a timeout
// failure of the target, not as caller cancellation.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op ValueOperation[T]) (T, error) {
	if timeout > 0 {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return op(attemptCtx)
	}
	return op(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
