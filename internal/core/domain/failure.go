package domain

import "errors"

// FailureKind classifies why an attempt against the actuator failed.
// Declaration order is the taxonomy order: when two kinds are observed
// equally often, the first-declared kind wins.
type FailureKind int

const (
	KindStaleElement FailureKind = iota
	KindNotInteractable
	KindClickIntercepted
	KindTimeout
	KindNotFound
	KindNetworkError
	KindUnknown
)

// Kinds returns every failure kind in taxonomy order.
func Kinds() []FailureKind {
	return []FailureKind{
		KindStaleElement,
		KindNotInteractable,
		KindClickIntercepted,
		KindTimeout,
		KindNotFound,
		KindNetworkError,
		KindUnknown,
	}
}

func (k FailureKind) String() string {
	switch k {
	case KindStaleElement:
		return "stale_element"
	case KindNotInteractable:
		return "not_interactable"
	case KindClickIntercepted:
		return "click_intercepted"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	case KindNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// ParseKind maps the string form back to a kind. Unrecognized strings
// report ok=false so callers can decide whether to drop or default.
func ParseKind(s string) (FailureKind, bool) {
	for _, k := range Kinds() {
		if k.String() == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// MarshalText lets kinds serve as JSON map keys in snapshots and stats.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *FailureKind) UnmarshalText(text []byte) error {
	kind, ok := ParseKind(string(text))
	if !ok {
		return errors.New("unknown failure kind: " + string(text))
	}
	*k = kind
	return nil
}

// Sentinel errors actuator adapters return (or wrap) so classification
// stays exact instead of falling back to message matching.
var (
	ErrStaleElement     = errors.New("stale element reference")
	ErrNotInteractable  = errors.New("element not interactable")
	ErrClickIntercepted = errors.New("element click intercepted")
	ErrTimeout          = errors.New("operation timed out")
	ErrNotFound         = errors.New("no such element")
	ErrNetwork          = errors.New("network error")
)
