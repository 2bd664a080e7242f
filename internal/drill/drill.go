// Package drill exercises the whole engine against a simulated flaky
// actuator, so learned behavior can be observed end to end.
package drill

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flakeproof/flakeproof/internal/control"
	"github.com/flakeproof/flakeproof/internal/core/domain"
	"github.com/flakeproof/flakeproof/internal/infra/actuator"
)

// Config tunes the drill workload.
type Config struct {
	Iterations int
}

// target pairs a key with its injected fault profile.
type target struct {
	key   domain.TargetKey
	rates actuator.FaultRates
}

// Runner drives the configured workload through a session.
type Runner struct {
	session *control.Session
	sim     *actuator.Simulated
	cfg     Config
	log     *slog.Logger
}

// New creates a drill runner.
func New(session *control.Session, sim *actuator.Simulated, cfg Config) *Runner {
	if cfg.Iterations <= 0 {
		cfg.Iterations = 100
	}
	return &Runner{session: session, sim: sim, cfg: cfg, log: slog.Default()}
}

// defaultTargets models a small checkout flow with distinct flake
// profiles per step.
func defaultTargets() []target {
	return []target{
		{
			key: domain.TargetKey{Action: "click", Locator: "#add-to-cart"},
			rates: actuator.FaultRates{
				domain.KindClickIntercepted: 0.30,
				domain.KindStaleElement:     0.10,
			},
		},
		{
			key: domain.TargetKey{Action: "type", Locator: "#promo-code"},
			rates: actuator.FaultRates{
				domain.KindNotInteractable: 0.25,
			},
		},
		{
			key: domain.TargetKey{Action: "click", Locator: "#place-order"},
			rates: actuator.FaultRates{
				domain.KindTimeout:      0.15,
				domain.KindNetworkError: 0.05,
			},
		},
		{
			key: domain.TargetKey{Action: "read", Locator: "#order-confirmation"},
			rates: actuator.FaultRates{
				domain.KindNotFound: 0.20,
			},
		},
	}
}

// Run executes the workload until done or the context is cancelled,
// then logs what the engine learned.
func (r *Runner) Run(ctx context.Context) {
	targets := defaultTargets()
	for _, t := range targets {
		r.sim.SetRates(t.key, t.rates)
	}

	succeeded, exhausted := 0, 0
	for i := 0; i < r.cfg.Iterations; i++ {
		for _, t := range targets {
			key := t.key
			err := r.session.Do(ctx, key, func(ctx context.Context) error {
				return r.sim.Attempt(ctx, key)
			})
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, context.Canceled):
				r.log.Info("Drill cancelled")
				r.report(succeeded, exhausted)
				return
			default:
				exhausted++
				r.log.Warn("Target exhausted retries", "key", key.String(), "error", err)
			}
		}
	}

	r.report(succeeded, exhausted)
}

func (r *Runner) report(succeeded, exhausted int) {
	stats := r.session.Store().Statistics()
	r.log.Info("Drill finished",
		"succeeded", succeeded,
		"exhausted", exhausted,
		"tracked_keys", stats.TrackedKeys,
		"total_failures", stats.TotalPatterns,
		"avg_success_rate", stats.AvgSuccessRate,
	)
	for kind, count := range stats.FailureDistribution {
		r.log.Info("Failure distribution", "kind", kind.String(), "count", count)
	}
}
