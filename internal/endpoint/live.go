package endpoint

import "sync/atomic"

// LiveMatcher is a Matcher whose rule snapshot can be swapped at runtime,
// used when permission rows change while the service is serving. Match and
// Reload never block each other.
type LiveMatcher struct {
	v atomic.Pointer[Matcher]
}

// NewLiveMatcher starts with a snapshot built from rows.
func NewLiveMatcher(rows []Permission) *LiveMatcher {
	lm := &LiveMatcher{}
	lm.Reload(rows)
	return lm
}

// Match delegates to the current snapshot.
func (lm *LiveMatcher) Match(service, path string, method Method) (Permission, error) {
	return lm.v.Load().Match(service, path, method)
}

// Reload replaces the snapshot with one built from rows.
func (lm *LiveMatcher) Reload(rows []Permission) {
	lm.v.Store(NewMatcher(rows))
}
