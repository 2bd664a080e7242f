package learn

import (
	"time"

	"github.com/flakeproof/flakeproof/internal/core/domain"
)

// Snapshot is a serializable export of the per-target statistics, used
// for warm starts across runs. The event log is not part of it; events
// are streamed to sinks instead.
type Snapshot struct {
	SavedAt time.Time        `json:"saved_at"`
	Targets []TargetSnapshot `json:"targets"`
}

// TargetSnapshot carries one key's learned state.
type TargetSnapshot struct {
	Action        string                     `json:"action"`
	Locator       string                     `json:"locator"`
	SuccessDelays []time.Duration            `json:"success_delays"`
	FailureCounts map[domain.FailureKind]int `json:"failure_counts"`
}

// Snapshot exports the current per-target state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SavedAt: s.now(),
		Targets: make([]TargetSnapshot, 0, len(s.metrics)),
	}
	for key, m := range s.metrics {
		ts := TargetSnapshot{
			Action:        key.Action,
			Locator:       key.Locator,
			SuccessDelays: append([]time.Duration(nil), m.successDelays...),
			FailureCounts: make(map[domain.FailureKind]int, len(m.failureCounts)),
		}
		for k, n := range m.failureCounts {
			ts.FailureCounts[k] = n
		}
		snap.Targets = append(snap.Targets, ts)
	}
	return snap
}

// Restore replaces the store's per-target state with snap, recomputing
// every aggregate from the raw samples. The event log is left alone.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = make(map[domain.TargetKey]*targetMetrics, len(snap.Targets))
	for _, ts := range snap.Targets {
		key := domain.TargetKey{Action: ts.Action, Locator: ts.Locator}
		m := newTargetMetrics()

		delays := ts.SuccessDelays
		if len(delays) > delayWindow {
			delays = delays[len(delays)-delayWindow:]
		}
		m.successDelays = append(m.successDelays, delays...)

		totalFailures := 0
		for k, n := range ts.FailureCounts {
			m.failureCounts[k] = n
			totalFailures += n
		}

		if total := len(m.successDelays) + totalFailures; total > 0 {
			m.successRate = float64(len(m.successDelays)) / float64(total)
		}
		if len(m.successDelays) > 0 {
			m.avgSuccessDelay = meanDuration(m.successDelays)
		}
		if len(m.successDelays) > 1 {
			std := stddevDuration(m.successDelays, m.avgSuccessDelay)
			m.recommendedTimeout = m.avgSuccessDelay + 2*std
		}

		s.metrics[key] = m
	}
}
