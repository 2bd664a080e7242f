package retry

import (
	"math"
	"time"

	"github.com/flakeproof/flakeproof/internal/resilience/policy"
)

// minDelay floors every computed backoff so jitter can never produce a
// busy loop.
const minDelay = 100 * time.Millisecond

// adaptiveGrowth is deliberately softer than the configured exponential
// multiplier.
const adaptiveGrowth = 1.5

// backoffDelay computes the sleep before retry number attempt (0-based
// for the first retry). The raw strategy value is clamped to MaxDelay,
// then jittered by up to ±10%, then floored at minDelay. randFloat
// supplies a uniform sample in [0,1).
func backoffDelay(pol policy.Policy, attempt int, randFloat func() float64) time.Duration {
	base := float64(pol.BaseDelay)

	var d float64
	switch pol.Strategy {
	case policy.Fixed:
		d = base
	case policy.Linear:
		d = base * float64(attempt+1)
	case policy.Exponential:
		d = base * math.Pow(pol.BackoffMultiplier, float64(attempt))
	case policy.Adaptive:
		d = base * math.Pow(adaptiveGrowth, float64(attempt))
	default:
		d = base
	}

	if maxd := float64(pol.MaxDelay); pol.MaxDelay > 0 && d > maxd {
		d = maxd
	}

	if pol.Jitter {
		jitter := d * 0.1
		d += (randFloat()*2 - 1) * jitter
	}

	if d < float64(minDelay) {
		d = float64(minDelay)
	}

	return time.Duration(d)
}
