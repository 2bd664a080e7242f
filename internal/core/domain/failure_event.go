package domain

import (
	"time"

	"github.com/google/uuid"
)

// FailureEvent is one append-only observation of a failed attempt.
type FailureEvent struct {
	ID        uuid.UUID
	Kind      FailureKind
	Key       TargetKey
	Timestamp time.Time
	Attempt   int
	Context   map[string]string
}
