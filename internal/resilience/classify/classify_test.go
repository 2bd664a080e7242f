package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/flakeproof/flakeproof/internal/core/domain"
)

type fakeNetErr struct{ timeout bool }

func (e *fakeNetErr) Error() string   { return "fake net error" }
func (e *fakeNetErr) Timeout() bool   { return e.timeout }
func (e *fakeNetErr) Temporary() bool { return true }

func TestKind(t *testing.T) {
	tests := []struct {
		err    error
		expect domain.FailureKind
	}{
		{domain.ErrStaleElement, domain.KindStaleElement},
		{fmt.Errorf("click failed: %w", domain.ErrStaleElement), domain.KindStaleElement},
		{domain.ErrNotInteractable, domain.KindNotInteractable},
		{domain.ErrClickIntercepted, domain.KindClickIntercepted},
		{domain.ErrTimeout, domain.KindTimeout},
		{domain.ErrNotFound, domain.KindNotFound},
		{domain.ErrNetwork, domain.KindNetworkError},
		{context.DeadlineExceeded, domain.KindTimeout},
		{&fakeNetErr{timeout: true}, domain.KindTimeout},
		{&fakeNetErr{timeout: false}, domain.KindNetworkError},
		{status.Error(codes.DeadlineExceeded, "rpc deadline"), domain.KindTimeout},
		{status.Error(codes.NotFound, "missing"), domain.KindNotFound},
		{status.Error(codes.Unavailable, "down"), domain.KindNetworkError},
		{status.Error(codes.ResourceExhausted, "quota"), domain.KindNetworkError},
		{errors.New("stale element reference: element is not attached"), domain.KindStaleElement},
		{errors.New("element not interactable"), domain.KindNotInteractable},
		{errors.New("element click intercepted: other element would receive the click"), domain.KindClickIntercepted},
		{errors.New("wait timed out after 10s"), domain.KindTimeout},
		{errors.New("no such element: unable to locate element"), domain.KindNotFound},
		{errors.New("connection refused"), domain.KindNetworkError},
		{errors.New("something completely different"), domain.KindUnknown},
		{nil, domain.KindUnknown},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.expect {
			t.Errorf("Kind(%v) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

// Classification must be stable: the same error value yields the same
// kind on every call.
func TestKindIdempotent(t *testing.T) {
	errs := []error{
		domain.ErrStaleElement,
		errors.New("timeout waiting for page"),
		errors.New("opaque driver failure"),
		status.Error(codes.Unavailable, "down"),
	}

	for _, err := range errs {
		first := Kind(err)
		for i := 0; i < 10; i++ {
			if got := Kind(err); got != first {
				t.Fatalf("Kind(%v) changed between calls: %v then %v", err, first, got)
			}
		}
	}
}
