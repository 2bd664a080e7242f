// Package heal dispatches per-failure-kind remediation against the
// actuator between retry attempts. Remediation is strictly best effort:
// failures here are logged and absorbed, never altering the retry
// loop's outcome.
package heal

import (
	"context"
	"log/slog"
	"time"

	"github.com/flakeproof/flakeproof/internal/core/domain"
)

const (
	settleDelay    = 500 * time.Millisecond
	resolveTimeout = 5 * time.Second
	readyTimeout   = 10 * time.Second
	presenceWait   = 10 * time.Second
)

// overlaySelectors are tried in order; the first successful dismissal
// wins.
var overlaySelectors = []string{
	"button.close",
	"button.modal-close",
	"div.overlay button",
	"div.popup button.close",
	"div.modal button.close",
}

// Healer routes failure kinds to remediation procedures.
type Healer struct {
	act   Actuator
	log   *slog.Logger
	sleep func(context.Context, time.Duration) error
}

// NewHealer wraps act. A nil logger falls back to slog.Default.
func NewHealer(act Actuator, log *slog.Logger) *Healer {
	if log == nil {
		log = slog.Default()
	}
	return &Healer{
		act:   act,
		log:   log,
		sleep: sleepCtx,
	}
}

// Heal runs the remediation for kind against key. The returned error is
// informational only; callers log it but never propagate it.
func (h *Healer) Heal(ctx context.Context, kind domain.FailureKind, key domain.TargetKey) error {
	switch kind {
	case domain.KindStaleElement:
		return h.healStaleElement(ctx, key)
	case domain.KindNotInteractable:
		return h.healNotInteractable(ctx, key)
	case domain.KindClickIntercepted:
		return h.healClickIntercepted(ctx, key)
	case domain.KindTimeout:
		return h.healTimeout(ctx)
	case domain.KindNotFound:
		return h.healNotFound(ctx, key)
	default:
		return nil
	}
}

// Stale references usually fix themselves once the DOM settles; pause
// briefly, then re-resolve.
func (h *Healer) healStaleElement(ctx context.Context, key domain.TargetKey) error {
	h.log.Info("attempting to recover from stale element", "key", key.String())

	if err := h.sleep(ctx, settleDelay); err != nil {
		return err
	}
	if err := h.act.Resolve(ctx, key, resolveTimeout); err != nil {
		h.log.Warn("failed to recover from stale element", "key", key.String(), "error", err)
		return err
	}
	return nil
}

// Wait for the interactable signal; if that never comes, scrolling the
// target into view often unblocks it.
func (h *Healer) healNotInteractable(ctx context.Context, key domain.TargetKey) error {
	h.log.Info("attempting to recover from non-interactable element", "key", key.String())

	if err := h.act.WaitInteractable(ctx, key, resolveTimeout); err == nil {
		return nil
	}
	if err := h.act.ScrollTo(ctx, key, false); err != nil {
		h.log.Warn("failed to make element interactable", "key", key.String(), "error", err)
		return err
	}
	return h.sleep(ctx, settleDelay)
}

// Dismiss whatever overlay is intercepting the click, then center the
// target so the next attempt lands on it.
func (h *Healer) healClickIntercepted(ctx context.Context, key domain.TargetKey) error {
	h.log.Info("attempting to recover from click interception", "key", key.String())

	for _, sel := range overlaySelectors {
		if err := h.act.DismissOverlay(ctx, sel); err == nil {
			h.log.Debug("dismissed overlay", "selector", sel)
			break
		}
	}

	if err := h.act.ScrollTo(ctx, key, true); err != nil {
		h.log.Warn("failed to clear click interception", "key", key.String(), "error", err)
		return err
	}
	return h.sleep(ctx, settleDelay)
}

func (h *Healer) healTimeout(ctx context.Context) error {
	h.log.Info("attempting to recover from timeout")

	if err := h.act.WaitReady(ctx, readyTimeout); err != nil {
		h.log.Warn("failed to recover from timeout", "error", err)
		return err
	}
	return h.sleep(ctx, 2*settleDelay)
}

func (h *Healer) healNotFound(ctx context.Context, key domain.TargetKey) error {
	h.log.Info("attempting to recover from missing element", "key", key.String())

	if err := h.act.Refresh(ctx); err != nil {
		h.log.Warn("failed to refresh for missing element", "key", key.String(), "error", err)
		return err
	}
	if err := h.act.Resolve(ctx, key, presenceWait); err != nil {
		h.log.Warn("element still missing after refresh", "key", key.String(), "error", err)
		return err
	}
	return nil
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
