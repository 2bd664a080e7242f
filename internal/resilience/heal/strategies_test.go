package heal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flakeproof/flakeproof/internal/core/domain"
)

// recordingActuator counts calls and can be programmed to fail.
type recordingActuator struct {
	resolveCalls      int
	readyCalls        int
	interactableCalls int
	scrollCalls       int
	scrollCentered    bool
	dismissed         []string
	refreshCalls      int

	resolveErr      error
	interactableErr error
	dismissErr      error
	refreshErr      error
}

func (a *recordingActuator) Resolve(ctx context.Context, key domain.TargetKey, timeout time.Duration) error {
	a.resolveCalls++
	return a.resolveErr
}

func (a *recordingActuator) WaitReady(ctx context.Context, timeout time.Duration) error {
	a.readyCalls++
	return nil
}

func (a *recordingActuator) WaitInteractable(ctx context.Context, key domain.TargetKey, timeout time.Duration) error {
	a.interactableCalls++
	return a.interactableErr
}

func (a *recordingActuator) ScrollTo(ctx context.Context, key domain.TargetKey, center bool) error {
	a.scrollCalls++
	a.scrollCentered = center
	return nil
}

func (a *recordingActuator) DismissOverlay(ctx context.Context, selector string) error {
	a.dismissed = append(a.dismissed, selector)
	return a.dismissErr
}

func (a *recordingActuator) Refresh(ctx context.Context) error {
	a.refreshCalls++
	return a.refreshErr
}

func newTestHealer(act Actuator) *Healer {
	h := NewHealer(act, nil)
	h.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return h
}

var key = domain.TargetKey{Action: "click", Locator: "#pay"}

func TestHealStaleElementResolves(t *testing.T) {
	act := &recordingActuator{}
	h := newTestHealer(act)

	if err := h.Heal(context.Background(), domain.KindStaleElement, key); err != nil {
		t.Fatalf("Heal returned %v", err)
	}
	if act.resolveCalls != 1 {
		t.Errorf("resolve calls = %d, want 1", act.resolveCalls)
	}
}

func TestHealNotInteractableFallsBackToScroll(t *testing.T) {
	act := &recordingActuator{interactableErr: errors.New("still hidden")}
	h := newTestHealer(act)

	if err := h.Heal(context.Background(), domain.KindNotInteractable, key); err != nil {
		t.Fatalf("Heal returned %v", err)
	}
	if act.interactableCalls != 1 {
		t.Errorf("interactable waits = %d, want 1", act.interactableCalls)
	}
	if act.scrollCalls != 1 {
		t.Errorf("scroll calls = %d, want 1 (fallback)", act.scrollCalls)
	}
	if act.scrollCentered {
		t.Error("non-interactable recovery should scroll into view, not center")
	}
}

func TestHealNotInteractableSkipsScrollWhenSignaled(t *testing.T) {
	act := &recordingActuator{}
	h := newTestHealer(act)

	if err := h.Heal(context.Background(), domain.KindNotInteractable, key); err != nil {
		t.Fatalf("Heal returned %v", err)
	}
	if act.scrollCalls != 0 {
		t.Errorf("scroll calls = %d, want 0", act.scrollCalls)
	}
}

func TestHealClickInterceptedStopsAtFirstDismissal(t *testing.T) {
	act := &recordingActuator{}
	h := newTestHealer(act)

	if err := h.Heal(context.Background(), domain.KindClickIntercepted, key); err != nil {
		t.Fatalf("Heal returned %v", err)
	}
	if len(act.dismissed) != 1 {
		t.Errorf("dismiss attempts = %d, want 1 (first success wins)", len(act.dismissed))
	}
	if !act.scrollCentered {
		t.Error("click-intercepted recovery should request a centering scroll")
	}
}

func TestHealClickInterceptedTriesAllSelectors(t *testing.T) {
	act := &recordingActuator{dismissErr: errors.New("no overlay")}
	h := newTestHealer(act)

	if err := h.Heal(context.Background(), domain.KindClickIntercepted, key); err != nil {
		t.Fatalf("Heal returned %v", err)
	}
	if len(act.dismissed) != len(overlaySelectors) {
		t.Errorf("dismiss attempts = %d, want %d", len(act.dismissed), len(overlaySelectors))
	}
	if act.scrollCalls != 1 {
		t.Error("should still attempt the centering scroll")
	}
}

func TestHealTimeoutWaitsForReadiness(t *testing.T) {
	act := &recordingActuator{}
	h := newTestHealer(act)

	if err := h.Heal(context.Background(), domain.KindTimeout, key); err != nil {
		t.Fatalf("Heal returned %v", err)
	}
	if act.readyCalls != 1 {
		t.Errorf("readiness waits = %d, want 1", act.readyCalls)
	}
}

func TestHealNotFoundRefreshesThenResolves(t *testing.T) {
	act := &recordingActuator{}
	h := newTestHealer(act)

	if err := h.Heal(context.Background(), domain.KindNotFound, key); err != nil {
		t.Fatalf("Heal returned %v", err)
	}
	if act.refreshCalls != 1 || act.resolveCalls != 1 {
		t.Errorf("refresh=%d resolve=%d, want 1 and 1", act.refreshCalls, act.resolveCalls)
	}
}

func TestHealAbsorbsActuatorErrors(t *testing.T) {
	act := &recordingActuator{refreshErr: errors.New("driver gone")}
	h := newTestHealer(act)

	// An error comes back for observability but nothing panics and the
	// actuator error is returned as-is for the caller to log.
	if err := h.Heal(context.Background(), domain.KindNotFound, key); err == nil {
		t.Error("expected informational error from failed remediation")
	}
}

func TestHealUnknownKindIsNoop(t *testing.T) {
	act := &recordingActuator{}
	h := newTestHealer(act)

	if err := h.Heal(context.Background(), domain.KindUnknown, key); err != nil {
		t.Fatalf("Heal returned %v", err)
	}
	if act.resolveCalls+act.readyCalls+act.scrollCalls+act.refreshCalls+len(act.dismissed) != 0 {
		t.Error("unknown kinds must not touch the actuator")
	}
}
