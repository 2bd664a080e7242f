// Package policy holds the immutable retry configuration value and the
// merge rules that bound how far learned recommendations may drift from
// the caller's static configuration.
package policy

import (
	"time"

	"github.com/flakeproof/flakeproof/internal/core/domain"
)

// Strategy selects how backoff delays grow between attempts.
type Strategy int

const (
	Fixed Strategy = iota
	Linear
	Exponential
	Adaptive
)

func (s Strategy) String() string {
	switch s {
	case Fixed:
		return "fixed"
	case Linear:
		return "linear"
	case Exponential:
		return "exponential"
	case Adaptive:
		return "adaptive"
	default:
		return "unknown"
	}
}

// ParseStrategy maps config strings to a strategy.
func ParseStrategy(s string) (Strategy, bool) {
	switch s {
	case "fixed":
		return Fixed, true
	case "linear":
		return Linear, true
	case "exponential":
		return Exponential, true
	case "adaptive":
		return Adaptive, true
	}
	return Exponential, false
}

// Policy is treated as immutable once constructed. Executors derive
// merged copies per call but never write back into a caller's value.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Strategy          Strategy
	Jitter            bool
	BackoffMultiplier float64
	Timeout           time.Duration
	SelfHealing       bool
	Learning          bool

	// RetryOn disables retries per kind. Absent kinds are retryable:
	// an unseen failure is presumed possibly transient.
	RetryOn map[domain.FailureKind]bool
}

// Default mirrors the defaults the engine was tuned with.
func Default() Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		Strategy:          Exponential,
		Jitter:            true,
		BackoffMultiplier: 2.0,
		Timeout:           10 * time.Second,
		SelfHealing:       true,
		Learning:          true,
	}
}

// Retryable reports whether kind may be retried under p. Fail-open for
// kinds with no explicit toggle.
func (p Policy) Retryable(kind domain.FailureKind) bool {
	if p.RetryOn == nil {
		return true
	}
	allowed, ok := p.RetryOn[kind]
	if !ok {
		return true
	}
	return allowed
}

// WithoutRetryOn returns a copy of p that never retries the given kinds.
func (p Policy) WithoutRetryOn(kinds ...domain.FailureKind) Policy {
	retryOn := make(map[domain.FailureKind]bool, len(p.RetryOn)+len(kinds))
	for k, v := range p.RetryOn {
		retryOn[k] = v
	}
	for _, k := range kinds {
		retryOn[k] = false
	}
	p.RetryOn = retryOn
	return p
}

// Merge combines a caller's static policy with a learned recommendation.
// Learning adapts pacing and attempt count within guardrails derived
// from the static policy; it can never flip safety toggles:
//
//   - attempts are capped at static+2 to bound upward drift from noisy
//     statistics,
//   - the base delay may shrink to at most half the static floor,
//   - the timeout may grow to at most twice the static value,
//   - the strategy follows the recommendation,
//   - everything else (jitter, multiplier, max delay, healing, learning,
//     per-kind toggles) stays static.
func Merge(static, learned Policy) Policy {
	merged := static

	merged.MaxAttempts = learned.MaxAttempts
	if limit := static.MaxAttempts + 2; merged.MaxAttempts > limit {
		merged.MaxAttempts = limit
	}

	merged.BaseDelay = learned.BaseDelay
	if floor := static.BaseDelay / 2; merged.BaseDelay < floor {
		merged.BaseDelay = floor
	}

	merged.Timeout = learned.Timeout
	if ceil := static.Timeout * 2; merged.Timeout > ceil {
		merged.Timeout = ceil
	}

	merged.Strategy = learned.Strategy

	return merged
}
