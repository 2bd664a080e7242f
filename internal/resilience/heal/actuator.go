package heal

import (
	"context"
	"time"

	"github.com/flakeproof/flakeproof/internal/core/domain"
)

// Actuator is the capability surface the engine needs from whatever
// drives the external system. How it talks to that system (browser
// driver, remote agent) is out of scope; the engine only issues these
// best-effort requests between retry attempts.
type Actuator interface {
	// Resolve re-locates the target, waiting up to timeout for presence.
	Resolve(ctx context.Context, key domain.TargetKey, timeout time.Duration) error

	// WaitReady blocks until the driven system signals readiness.
	WaitReady(ctx context.Context, timeout time.Duration) error

	// WaitInteractable blocks until the target accepts interaction.
	WaitInteractable(ctx context.Context, key domain.TargetKey, timeout time.Duration) error

	// ScrollTo brings the target into the viewport; center requests
	// centering rather than minimal scrolling.
	ScrollTo(ctx context.Context, key domain.TargetKey, center bool) error

	// DismissOverlay tries to close an obstructing overlay matching
	// selector. A nil return means one was dismissed.
	DismissOverlay(ctx context.Context, selector string) error

	// Refresh reloads the driven system's state.
	Refresh(ctx context.Context) error
}
