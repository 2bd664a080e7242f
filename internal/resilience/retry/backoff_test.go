package retry

import (
	"testing"
	"time"

	"github.com/flakeproof/flakeproof/internal/resilience/policy"
)

func noJitterRand() float64 { return 0.5 } // midpoint: zero jitter offset

func basePolicy(strategy policy.Strategy) policy.Policy {
	p := policy.Default()
	p.Strategy = strategy
	p.Jitter = false
	return p
}

func TestFixedDelayIsExact(t *testing.T) {
	p := basePolicy(policy.Fixed)
	p.BaseDelay = time.Second

	for attempt := 0; attempt < 3; attempt++ {
		if d := backoffDelay(p, attempt, noJitterRand); d != time.Second {
			t.Errorf("attempt %d: delay = %v, want exactly 1s", attempt, d)
		}
	}
}

func TestDelayGrowth(t *testing.T) {
	tests := []struct {
		name     string
		strategy policy.Strategy
		base     time.Duration
		expect   []time.Duration
	}{
		{
			name:     "linear",
			strategy: policy.Linear,
			base:     time.Second,
			expect:   []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second},
		},
		{
			name:     "exponential doubles",
			strategy: policy.Exponential,
			base:     time.Second,
			expect:   []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
		},
		{
			name:     "adaptive grows softer",
			strategy: policy.Adaptive,
			base:     2 * time.Second,
			expect:   []time.Duration{2 * time.Second, 3 * time.Second, 4500 * time.Millisecond, 6750 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePolicy(tt.strategy)
			p.BaseDelay = tt.base
			for i, want := range tt.expect {
				if got := backoffDelay(p, i, noJitterRand); got != want {
					t.Errorf("attempt %d: delay = %v, want %v", i, got, want)
				}
			}
		})
	}
}

// Delays never shrink as the attempt index grows, until the clamp.
func TestDelayNonDecreasing(t *testing.T) {
	for _, strategy := range []policy.Strategy{policy.Linear, policy.Exponential, policy.Adaptive} {
		p := basePolicy(strategy)
		p.BaseDelay = 200 * time.Millisecond
		p.MaxDelay = 10 * time.Second

		prev := time.Duration(0)
		for attempt := 0; attempt < 12; attempt++ {
			d := backoffDelay(p, attempt, noJitterRand)
			if d < prev {
				t.Errorf("%v: delay decreased at attempt %d: %v < %v", strategy, attempt, d, prev)
			}
			if d > p.MaxDelay {
				t.Errorf("%v: delay %v exceeds clamp %v", strategy, d, p.MaxDelay)
			}
			prev = d
		}
	}
}

func TestDelayClampedToMax(t *testing.T) {
	p := basePolicy(policy.Exponential)
	p.BaseDelay = time.Second
	p.MaxDelay = 5 * time.Second

	if d := backoffDelay(p, 10, noJitterRand); d != 5*time.Second {
		t.Errorf("delay = %v, want clamp at 5s", d)
	}
}

func TestJitterStaysWithinTenPercent(t *testing.T) {
	p := basePolicy(policy.Fixed)
	p.BaseDelay = time.Second
	p.Jitter = true

	for _, sample := range []float64{0, 0.25, 0.5, 0.75, 0.999} {
		d := backoffDelay(p, 0, func() float64 { return sample })
		if d < 900*time.Millisecond || d > 1100*time.Millisecond {
			t.Errorf("jittered delay %v outside ±10%% of 1s (sample %f)", d, sample)
		}
	}
}

func TestDelayFloor(t *testing.T) {
	p := basePolicy(policy.Fixed)
	p.BaseDelay = 10 * time.Millisecond
	p.Jitter = true

	// Even the lowest jitter sample cannot push the delay below 100ms.
	if d := backoffDelay(p, 0, func() float64 { return 0 }); d != minDelay {
		t.Errorf("delay = %v, want floor %v", d, minDelay)
	}
}
