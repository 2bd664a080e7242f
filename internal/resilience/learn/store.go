// Package learn keeps per-target rolling statistics about how operations
// against the actuator succeed and fail, and turns them into retry policy
// recommendations. A Store may be shared by concurrently running
// executors; every compound read-modify-write happens under one guard.
package learn

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flakeproof/flakeproof/internal/core/domain"
	"github.com/flakeproof/flakeproof/internal/resilience/policy"
)

// delayWindow bounds the per-target success-delay history. Oldest
// samples are evicted first.
const delayWindow = 100

// targetMetrics is the live state for one target key. Aggregates are
// recomputed on success so reads never see partial updates.
type targetMetrics struct {
	successDelays      []time.Duration
	failureCounts      map[domain.FailureKind]int
	successRate        float64
	avgSuccessDelay    time.Duration
	recommendedTimeout time.Duration
}

func newTargetMetrics() *targetMetrics {
	return &targetMetrics{
		successDelays:      make([]time.Duration, 0, delayWindow),
		failureCounts:      make(map[domain.FailureKind]int),
		successRate:        1.0,
		avgSuccessDelay:    time.Second,
		recommendedTimeout: 10 * time.Second,
	}
}

// Metrics is a caller-facing copy of one target's statistics.
type Metrics struct {
	SuccessDelays      []time.Duration
	FailureCounts      map[domain.FailureKind]int
	SuccessRate        float64
	AvgSuccessDelay    time.Duration
	RecommendedTimeout time.Duration
}

// Statistics summarizes everything the store has observed.
type Statistics struct {
	TotalPatterns       int                        `json:"total_patterns"`
	FailureDistribution map[domain.FailureKind]int `json:"failure_distribution"`
	TrackedKeys         int                        `json:"tracked_keys"`
	AvgSuccessRate      float64                    `json:"avg_success_rate"`
}

// EventSink receives each failure event after it has been recorded.
// Sinks run outside the store guard and must tolerate being called from
// multiple goroutines.
type EventSink func(domain.FailureEvent)

// Store is the concurrency-safe pattern store.
type Store struct {
	mu      sync.Mutex
	metrics map[domain.TargetKey]*targetMetrics
	events  []domain.FailureEvent

	now  func() time.Time
	sink EventSink
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithEventSink forwards recorded failure events, e.g. to a database.
func WithEventSink(sink EventSink) Option {
	return func(s *Store) { s.sink = sink }
}

// NewStore creates an empty pattern store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		metrics: make(map[domain.TargetKey]*targetMetrics),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordFailure appends a failure observation for key.
func (s *Store) RecordFailure(kind domain.FailureKind, key domain.TargetKey, attempt int, context map[string]string) {
	ev := domain.FailureEvent{
		ID:        uuid.New(),
		Kind:      kind,
		Key:       key,
		Timestamp: s.now(),
		Attempt:   attempt,
		Context:   context,
	}

	s.mu.Lock()
	s.events = append(s.events, ev)
	s.metricsFor(key).failureCounts[kind]++
	s.mu.Unlock()

	slog.Debug("recorded failure pattern", "kind", kind, "key", key.String(), "attempt", attempt)

	if s.sink != nil {
		s.sink(ev)
	}
}

// RecordSuccess appends elapsed to key's bounded delay history and
// recomputes the aggregates.
func (s *Store) RecordSuccess(key domain.TargetKey, elapsed time.Duration) {
	s.mu.Lock()
	m := s.metricsFor(key)

	m.successDelays = append(m.successDelays, elapsed)
	if len(m.successDelays) > delayWindow {
		m.successDelays = m.successDelays[1:]
	}

	totalFailures := 0
	for _, n := range m.failureCounts {
		totalFailures += n
	}
	totalAttempts := len(m.successDelays) + totalFailures
	m.successRate = float64(len(m.successDelays)) / float64(totalAttempts)

	m.avgSuccessDelay = meanDuration(m.successDelays)
	if len(m.successDelays) > 1 {
		// Latencies are assumed approximately unimodal; mean + 2 stddev
		// covers the bulk of them without chasing outliers.
		std := stddevDuration(m.successDelays, m.avgSuccessDelay)
		m.recommendedTimeout = m.avgSuccessDelay + 2*std
	}
	s.mu.Unlock()

	slog.Debug("recorded success pattern", "key", key.String(), "elapsed", elapsed)
}

// Recommended derives a retry policy from what has been learned about
// key. Unseen keys get the conservative defaults.
func (s *Store) Recommended(key domain.TargetKey) policy.Policy {
	s.mu.Lock()
	m, ok := s.metrics[key]
	if !ok {
		m = newTargetMetrics()
	}
	rate := m.successRate
	avg := m.avgSuccessDelay
	timeout := m.recommendedTimeout
	dominant, hasDominant := dominantKind(m.failureCounts)
	s.mu.Unlock()

	cfg := policy.Default()

	switch {
	case rate < 0.5:
		cfg.MaxAttempts = 5
	case rate < 0.8:
		cfg.MaxAttempts = 3
	default:
		cfg.MaxAttempts = 2
	}

	cfg.BaseDelay = avg / 2
	if cfg.BaseDelay < 500*time.Millisecond {
		cfg.BaseDelay = 500 * time.Millisecond
	}

	cfg.Timeout = timeout
	if cfg.Timeout < 5*time.Second {
		cfg.Timeout = 5 * time.Second
	}

	if hasDominant {
		switch dominant {
		case domain.KindStaleElement:
			// Stale references resolve quickly once the DOM settles.
			cfg.Strategy = policy.Fixed
			cfg.BaseDelay = 500 * time.Millisecond
		case domain.KindTimeout:
			cfg.Strategy = policy.Exponential
			cfg.BaseDelay = 2 * time.Second
		}
	}

	return cfg
}

// MetricsFor returns a copy of key's statistics.
func (s *Store) MetricsFor(key domain.TargetKey) (Metrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.metrics[key]
	if !ok {
		return Metrics{}, false
	}

	out := Metrics{
		SuccessDelays:      append([]time.Duration(nil), m.successDelays...),
		FailureCounts:      make(map[domain.FailureKind]int, len(m.failureCounts)),
		SuccessRate:        m.successRate,
		AvgSuccessDelay:    m.avgSuccessDelay,
		RecommendedTimeout: m.recommendedTimeout,
	}
	for k, n := range m.failureCounts {
		out.FailureCounts[k] = n
	}
	return out, true
}

// Statistics reports store-wide learning totals.
func (s *Store) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	dist := make(map[domain.FailureKind]int)
	for _, ev := range s.events {
		dist[ev.Kind]++
	}

	var avgRate float64
	if len(s.metrics) > 0 {
		var sum float64
		for _, m := range s.metrics {
			sum += m.successRate
		}
		avgRate = sum / float64(len(s.metrics))
	}

	return Statistics{
		TotalPatterns:       len(s.events),
		FailureDistribution: dist,
		TrackedKeys:         len(s.metrics),
		AvgSuccessRate:      avgRate,
	}
}

// metricsFor returns the live metrics for key, creating them lazily.
// Callers must hold s.mu.
func (s *Store) metricsFor(key domain.TargetKey) *targetMetrics {
	m, ok := s.metrics[key]
	if !ok {
		m = newTargetMetrics()
		s.metrics[key] = m
	}
	return m
}

// dominantKind returns the most frequent failure kind. Ties resolve to
// the first kind in taxonomy order so recommendations stay deterministic.
func dominantKind(counts map[domain.FailureKind]int) (domain.FailureKind, bool) {
	best := domain.KindUnknown
	bestCount := 0
	for _, k := range domain.Kinds() {
		if n := counts[k]; n > bestCount {
			best = k
			bestCount = n
		}
	}
	return best, bestCount > 0
}

func meanDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

func stddevDuration(ds []time.Duration, mean time.Duration) time.Duration {
	if len(ds) < 2 {
		return 0
	}
	var sum float64
	for _, d := range ds {
		diff := float64(d - mean)
		sum += diff * diff
	}
	return time.Duration(math.Sqrt(sum / float64(len(ds)-1)))
}
