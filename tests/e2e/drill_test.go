package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/flakeproof/flakeproof/internal/control"
	"github.com/flakeproof/flakeproof/internal/core/config"
	"github.com/flakeproof/flakeproof/internal/core/domain"
	"github.com/flakeproof/flakeproof/internal/infra/actuator"
)

func fastConfig() *config.AppConfig {
	jitter := false
	return &config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		Policy: config.PolicyConfig{
			MaxAttempts: 4,
			BaseDelay:   5 * time.Millisecond,
			MaxDelay:    20 * time.Millisecond,
			Timeout:     time.Second,
			Jitter:      &jitter,
		},
		Persistence: config.PersistenceConfig{Name: "default"},
	}
}

// A full pass through the engine: flaky targets, healing, learning.
func TestSessionHealsAndLearns(t *testing.T) {
	sim := actuator.NewSimulated(42)
	session, err := control.NewSession(context.Background(), fastConfig(), sim)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	key := domain.TargetKey{Action: "click", Locator: "#submit"}
	sim.SetRates(key, actuator.FaultRates{
		domain.KindClickIntercepted: 0.5,
		domain.KindStaleElement:     0.2,
	})

	succeeded := 0
	for i := 0; i < 50; i++ {
		err := session.Do(context.Background(), key, func(ctx context.Context) error {
			return sim.Attempt(ctx, key)
		})
		if err == nil {
			succeeded++
		}
	}

	// With four attempts, healing and moderate fault rates, the vast
	// majority of invocations must come through.
	if succeeded < 40 {
		t.Errorf("succeeded = %d of 50, want at least 40", succeeded)
	}

	stats := session.Store().Statistics()
	if stats.TrackedKeys != 1 {
		t.Errorf("TrackedKeys = %d, want 1", stats.TrackedKeys)
	}
	if stats.TotalPatterns == 0 {
		t.Error("expected failure events to be recorded")
	}
	if stats.FailureDistribution[domain.KindClickIntercepted] == 0 {
		t.Error("expected click_intercepted failures in the distribution")
	}

	metrics, ok := session.Store().MetricsFor(key)
	if !ok {
		t.Fatal("no metrics for exercised key")
	}
	if metrics.SuccessRate <= 0 || metrics.SuccessRate > 1 {
		t.Errorf("SuccessRate = %f, want in (0, 1]", metrics.SuccessRate)
	}
}

func TestSessionWaitLearnsTimeout(t *testing.T) {
	sim := actuator.NewSimulated(7)
	session, err := control.NewSession(context.Background(), fastConfig(), sim)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	key := domain.TargetKey{Action: "wait", Locator: "#spinner"}

	start := time.Now()
	ready := start.Add(250 * time.Millisecond)
	err = session.Wait(context.Background(), key, func(ctx context.Context) error {
		if time.Now().Before(ready) {
			return domain.ErrNotFound
		}
		return nil
	}, 5*time.Second)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	st := session.Estimator().Stats(key)
	if st.TotalAttempts != 1 || st.SuccessRate != 1 {
		t.Errorf("stats = %+v, want one successful wait", st)
	}
	if st.RecommendedTimeout < 5*time.Second || st.RecommendedTimeout > 30*time.Second {
		t.Errorf("RecommendedTimeout = %v, want within clamp bounds", st.RecommendedTimeout)
	}
}

// Snapshots survive a session hand-off even without a durable backend.
func TestSnapshotCarriesLearningAcrossStores(t *testing.T) {
	sim := actuator.NewSimulated(11)
	first, err := control.NewSession(context.Background(), fastConfig(), sim)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	key := domain.TargetKey{Action: "click", Locator: "#flaky"}
	sim.SetRates(key, actuator.FaultRates{domain.KindTimeout: 0.4})

	for i := 0; i < 30; i++ {
		_ = first.Do(context.Background(), key, func(ctx context.Context) error {
			return sim.Attempt(ctx, key)
		})
	}

	snap := first.Store().Snapshot()

	second, err := control.NewSession(context.Background(), fastConfig(), sim)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	second.Store().Restore(snap)

	got, ok := second.Store().MetricsFor(key)
	if !ok {
		t.Fatal("restored store lost the exercised key")
	}
	want, _ := first.Store().MetricsFor(key)
	if got.SuccessRate != want.SuccessRate {
		t.Errorf("restored SuccessRate = %f, want %f", got.SuccessRate, want.SuccessRate)
	}
}
