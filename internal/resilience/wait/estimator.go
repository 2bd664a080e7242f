// Package wait provides a dynamic single-wait alternative to the retry
// loop: it polls a probe until it succeeds, with a timeout estimated
// from the target's recent successful latencies.
package wait

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/flakeproof/flakeproof/internal/core/domain"
	"github.com/flakeproof/flakeproof/internal/metrics"
)

const (
	// historyWindow is deliberately smaller than the learner's
	// 100-sample window; the estimator reacts faster to shifts.
	historyWindow = 50

	defaultTimeout = 10 * time.Second
	minTimeout     = 5 * time.Second
	maxTimeout     = 30 * time.Second
	timeoutFactor  = 2.5

	pollInterval = 100 * time.Millisecond
)

// Probe checks once whether the awaited condition holds.
type Probe func(ctx context.Context) error

type sample struct {
	elapsed time.Duration
	success bool
}

// Stats summarizes one key's wait history.
type Stats struct {
	TotalAttempts      int           `json:"total_attempts"`
	SuccessRate        float64       `json:"success_rate"`
	AvgSuccessTime     time.Duration `json:"avg_success_time"`
	SuccessTimeStddev  time.Duration `json:"success_time_stddev"`
	RecommendedTimeout time.Duration `json:"recommended_timeout"`
}

// Estimator tracks per-key rolling wait performance and derives dynamic
// timeouts from it. Safe for concurrent use.
type Estimator struct {
	mu      sync.Mutex
	history map[domain.TargetKey][]sample

	log   *slog.Logger
	clock func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Estimator) { e.log = log }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Estimator) { e.clock = clock }
}

// WithSleep overrides the poll sleep, mainly for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Estimator) { e.sleep = sleep }
}

// NewEstimator creates an empty estimator.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		history: make(map[domain.TargetKey][]sample),
		clock:   time.Now,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Wait polls probe until it succeeds or the deadline passes. A zero
// timeout asks for the dynamic estimate. The elapsed time and outcome
// feed future estimates; a timeout surfaces as domain.ErrTimeout so the
// caller (and the classifier) can tell it apart from probe failures.
func (e *Estimator) Wait(ctx context.Context, key domain.TargetKey, probe Probe, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = e.DynamicTimeout(key)
	}

	start := e.clock()
	deadline := start.Add(timeout)

	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := probe(ctx)
		if err == nil {
			e.record(key, e.clock().Sub(start), true)
			return nil
		}
		lastErr = err

		if !e.clock().Add(pollInterval).Before(deadline) {
			break
		}
		if err := e.sleep(ctx, pollInterval); err != nil {
			return err
		}
	}

	elapsed := e.clock().Sub(start)
	e.record(key, elapsed, false)
	metrics.WaitTimeoutsTotal.WithLabelValues(key.Action).Inc()
	e.log.Debug("wait timed out", "key", key.String(), "timeout", timeout, "elapsed", elapsed)

	return fmt.Errorf("%w: condition for %s not met within %s (last probe error: %v)",
		domain.ErrTimeout, key.String(), timeout, lastErr)
}

// DynamicTimeout estimates how long key is worth waiting for: 2.5x the
// mean of recent successful waits, clamped to [5s, 30s]. Without history
// it falls back to the default.
func (e *Estimator) DynamicTimeout(key domain.TargetKey) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	mean, n := e.successMeanLocked(key)
	if n == 0 {
		return defaultTimeout
	}

	dynamic := time.Duration(float64(mean) * timeoutFactor)
	if dynamic < minTimeout {
		return minTimeout
	}
	if dynamic > maxTimeout {
		return maxTimeout
	}
	return dynamic
}

// Stats reports key's rolling wait performance.
func (e *Estimator) Stats(key domain.TargetKey) Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	hist := e.history[key]
	if len(hist) == 0 {
		return Stats{RecommendedTimeout: defaultTimeout}
	}

	var successes []time.Duration
	for _, s := range hist {
		if s.success {
			successes = append(successes, s.elapsed)
		}
	}

	st := Stats{
		TotalAttempts: len(hist),
		SuccessRate:   float64(len(successes)) / float64(len(hist)),
	}

	if len(successes) > 0 {
		var total time.Duration
		for _, d := range successes {
			total += d
		}
		st.AvgSuccessTime = total / time.Duration(len(successes))
	}
	if len(successes) > 1 {
		var sum float64
		for _, d := range successes {
			diff := float64(d - st.AvgSuccessTime)
			sum += diff * diff
		}
		st.SuccessTimeStddev = time.Duration(math.Sqrt(sum / float64(len(successes)-1)))
	}

	mean, n := e.successMeanLocked(key)
	if n == 0 {
		st.RecommendedTimeout = defaultTimeout
	} else {
		dynamic := time.Duration(float64(mean) * timeoutFactor)
		switch {
		case dynamic < minTimeout:
			st.RecommendedTimeout = minTimeout
		case dynamic > maxTimeout:
			st.RecommendedTimeout = maxTimeout
		default:
			st.RecommendedTimeout = dynamic
		}
	}

	return st
}

// record appends an observation to key's bounded history.
func (e *Estimator) record(key domain.TargetKey, elapsed time.Duration, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hist := append(e.history[key], sample{elapsed: elapsed, success: success})
	if len(hist) > historyWindow {
		hist = hist[1:]
	}
	e.history[key] = hist
}

// successMeanLocked averages the successful samples. Callers hold e.mu.
func (e *Estimator) successMeanLocked(key domain.TargetKey) (time.Duration, int) {
	var total time.Duration
	n := 0
	for _, s := range e.history[key] {
		if s.success {
			total += s.elapsed
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return total / time.Duration(n), n
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
