package endpoint

import (
	"errors"
	"strings"
)

// ErrUnmapped indicates no endpoint permission covers the requested
// (service, path, method). Callers deny by default.
var ErrUnmapped = errors.New("endpoint: no permission mapped")

// Matcher answers (service, path, method) lookups over a snapshot of rows.
// It holds no mutable state; rebuild it after the underlying rows change.
type Matcher struct {
	byService map[string][]Permission
}

// NewMatcher indexes the given rows, skipping soft-deleted ones.
func NewMatcher(rows []Permission) *Matcher {
	byService := make(map[string][]Permission)
	for _, row := range rows {
		if row.Deleted {
			continue
		}
		key := strings.ToLower(row.Service)
		byService[key] = append(byService[key], row)
	}
	return &Matcher{byService: byService}
}

// Match returns the permission governing the request, or ErrUnmapped.
// When several patterns cover the same path, an exact pattern wins, then the
// most specific wildcard pattern (longest literal prefix, then longest text).
func (m *Matcher) Match(service, path string, method Method) (Permission, error) {
	rows := m.byService[strings.ToLower(strings.TrimSpace(service))]

	var (
		best  Permission
		found bool
	)
	for _, row := range rows {
		if row.Method != method || !row.MatchesPath(path) {
			continue
		}
		if row.Pattern.String() == path {
			return row, nil
		}
		if !found || row.Pattern.moreSpecificThan(best.Pattern) {
			best = row
			found = true
		}
	}
	if !found {
		return Permission{}, ErrUnmapped
	}
	return best, nil
}
