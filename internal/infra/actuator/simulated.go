// Package actuator provides a simulated flaky actuator for drills and
// end-to-end tests. It fails attempts with configurable per-kind rates
// and responds to healing requests by lowering the corresponding rate,
// so the full engine loop can be exercised without a real driver.
package actuator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/flakeproof/flakeproof/internal/core/domain"
)

// FaultRates maps failure kinds to the probability, in [0, 1], that an
// attempt fails with that kind. Kinds are tried in declaration order;
// the first one whose roll hits wins the attempt.
type FaultRates map[domain.FailureKind]float64

// Simulated is a fake actuator whose targets flake at configured rates.
// Safe for concurrent use.
type Simulated struct {
	mu    sync.Mutex
	rng   *rand.Rand
	rates map[domain.TargetKey]FaultRates

	// healed halves a kind's rate for a key once healing touched it.
	healed map[domain.TargetKey]map[domain.FailureKind]bool

	// Latency is added to every attempt to make success timings
	// non-trivial for the learner.
	Latency time.Duration
}

// NewSimulated creates a simulator with a deterministic seed.
func NewSimulated(seed int64) *Simulated {
	return &Simulated{
		rng:    rand.New(rand.NewSource(seed)),
		rates:  make(map[domain.TargetKey]FaultRates),
		healed: make(map[domain.TargetKey]map[domain.FailureKind]bool),
	}
}

// SetRates configures key's fault rates, replacing previous ones.
func (s *Simulated) SetRates(key domain.TargetKey, rates FaultRates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(FaultRates, len(rates))
	for k, v := range rates {
		copied[k] = v
	}
	s.rates[key] = copied
	delete(s.healed, key)
}

// Attempt performs one simulated interaction with key. It returns nil on
// success or a sentinel-wrapped error matching the rolled failure kind.
func (s *Simulated) Attempt(ctx context.Context, key domain.TargetKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rates := s.rates[key]
	for _, kind := range domain.Kinds() {
		rate, ok := rates[kind]
		if !ok {
			continue
		}
		if s.healed[key][kind] {
			rate /= 2
		}
		if s.rng.Float64() < rate {
			return fmt.Errorf("simulated %s on %s: %w", kind, key, kindError(kind))
		}
	}
	return nil
}

func kindError(kind domain.FailureKind) error {
	switch kind {
	case domain.KindStaleElement:
		return domain.ErrStaleElement
	case domain.KindNotInteractable:
		return domain.ErrNotInteractable
	case domain.KindClickIntercepted:
		return domain.ErrClickIntercepted
	case domain.KindTimeout:
		return domain.ErrTimeout
	case domain.KindNotFound:
		return domain.ErrNotFound
	case domain.KindNetworkError:
		return domain.ErrNetwork
	default:
		return fmt.Errorf("unexplained failure")
	}
}

func (s *Simulated) markHealed(key domain.TargetKey, kind domain.FailureKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.healed[key] == nil {
		s.healed[key] = make(map[domain.FailureKind]bool)
	}
	s.healed[key][kind] = true
}

// Resolve re-locates the target; in the simulator this heals staleness.
func (s *Simulated) Resolve(ctx context.Context, key domain.TargetKey, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.markHealed(key, domain.KindStaleElement)
	s.markHealed(key, domain.KindNotFound)
	return nil
}

// WaitReady signals readiness immediately.
func (s *Simulated) WaitReady(ctx context.Context, timeout time.Duration) error {
	return ctx.Err()
}

// WaitInteractable makes the target interactable.
func (s *Simulated) WaitInteractable(ctx context.Context, key domain.TargetKey, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.markHealed(key, domain.KindNotInteractable)
	return nil
}

// ScrollTo brings the target into view.
func (s *Simulated) ScrollTo(ctx context.Context, key domain.TargetKey, center bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.markHealed(key, domain.KindClickIntercepted)
	return nil
}

// DismissOverlay removes obstructions for every key.
func (s *Simulated) DismissOverlay(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.rates {
		if s.healed[key] == nil {
			s.healed[key] = make(map[domain.FailureKind]bool)
		}
		s.healed[key][domain.KindClickIntercepted] = true
	}
	return nil
}

// Refresh resets healed state, as a reload would.
func (s *Simulated) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healed = make(map[domain.TargetKey]map[domain.FailureKind]bool)
	return nil
}
