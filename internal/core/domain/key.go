package domain

// TargetKey identifies an (action, target-locator) pair. It buckets the
// learned statistics, so it must be stable across invocations and usable
// as a map key.
type TargetKey struct {
	Action  string
	Locator string
}

func (k TargetKey) String() string {
	return k.Action + ":" + k.Locator
}
