// Package classify maps errors raised by actuator-backed operations onto
// the closed failure taxonomy. Classification is pure and total: the same
// error value always yields the same kind, and anything unrecognized is
// KindUnknown rather than an error.
package classify

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/flakeproof/flakeproof/internal/core/domain"
)

// sentinelKinds pairs each actuator sentinel with its kind, checked in
// taxonomy order.
var sentinelKinds = []struct {
	err  error
	kind domain.FailureKind
}{
	{domain.ErrStaleElement, domain.KindStaleElement},
	{domain.ErrNotInteractable, domain.KindNotInteractable},
	{domain.ErrClickIntercepted, domain.KindClickIntercepted},
	{domain.ErrTimeout, domain.KindTimeout},
	{domain.ErrNotFound, domain.KindNotFound},
	{domain.ErrNetwork, domain.KindNetworkError},
}

// messagePatterns catches errors from drivers that only surface plain
// strings. Checked after the typed matchers, lowercase substring match,
// first hit wins.
var messagePatterns = []struct {
	substr string
	kind   domain.FailureKind
}{
	{"stale element", domain.KindStaleElement},
	{"not interactable", domain.KindNotInteractable},
	{"element not visible", domain.KindNotInteractable},
	{"click intercepted", domain.KindClickIntercepted},
	{"other element would receive the click", domain.KindClickIntercepted},
	{"timed out", domain.KindTimeout},
	{"timeout", domain.KindTimeout},
	{"deadline exceeded", domain.KindTimeout},
	{"no such element", domain.KindNotFound},
	{"unable to locate element", domain.KindNotFound},
	{"connection refused", domain.KindNetworkError},
	{"connection reset", domain.KindNetworkError},
	{"broken pipe", domain.KindNetworkError},
	{"dns", domain.KindNetworkError},
	{"network", domain.KindNetworkError},
}

// Kind classifies err. nil classifies as KindUnknown; callers only
// classify errors from failed attempts.
func Kind(err error) domain.FailureKind {
	if err == nil {
		return domain.KindUnknown
	}

	for _, m := range sentinelKinds {
		if errors.Is(err, m.err) {
			return m.kind
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.KindTimeout
		}
		return domain.KindNetworkError
	}

	// Remote actuators speak gRPC; map their status codes.
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.DeadlineExceeded:
			return domain.KindTimeout
		case codes.NotFound:
			return domain.KindNotFound
		case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
			return domain.KindNetworkError
		}
	}

	msg := strings.ToLower(err.Error())
	for _, p := range messagePatterns {
		if strings.Contains(msg, p.substr) {
			return p.kind
		}
	}

	return domain.KindUnknown
}
