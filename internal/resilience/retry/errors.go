package retry

import (
	"fmt"

	"github.com/flakeproof/flakeproof/internal/core/domain"
)

// ExhaustedError terminates a retry loop once every allowed attempt has
// failed or a non-retryable kind occurred. It keeps the last classified
// kind and the original error so no detail is lost through re-wrapping.
type ExhaustedError struct {
	Attempts int
	LastKind domain.FailureKind
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempt(s), last failure %s: %v",
		e.Attempts, e.LastKind, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
