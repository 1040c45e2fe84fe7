package endpoint

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"authhub.org/internal/ids"
)

// Permission maps one (service, pattern, method) endpoint to its access policy.
// Rows are soft-deleted only; mutations bump Version.
type Permission struct {
	ID                  string
	Service             string
	Pattern             Pattern
	Method              Method
	Description         string
	Public              bool
	RequiredPermissions []string
	RequiredRoles       []string
	Version             int64
	Deleted             bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewPermission constructs a fresh endpoint permission row.
func NewPermission(service string, pattern Pattern, method Method, description string,
	public bool, requiredPermissions, requiredRoles []string, now time.Time) (Permission, error) {
	return ReconstructPermission(ids.NewAt(now), service, pattern, method, description,
		public, requiredPermissions, requiredRoles, 0, false, now, now)
}

// ReconstructPermission rebuilds a persisted row, re-validating its invariants.
func ReconstructPermission(id, service string, pattern Pattern, method Method, description string,
	public bool, requiredPermissions, requiredRoles []string, version int64, deleted bool,
	createdAt, updatedAt time.Time) (Permission, error) {
	if strings.TrimSpace(id) == "" {
		return Permission{}, fmt.Errorf("%w: permission id is required", ErrInvalidInput)
	}
	service = strings.TrimSpace(service)
	if service == "" {
		return Permission{}, fmt.Errorf("%w: service name is required", ErrInvalidInput)
	}
	if pattern.IsZero() {
		return Permission{}, fmt.Errorf("%w: url pattern is required", ErrInvalidInput)
	}
	if !method.valid() {
		return Permission{}, fmt.Errorf("%w: unknown http method %q", ErrInvalidInput, method)
	}
	if version < 0 {
		return Permission{}, fmt.Errorf("%w: version cannot be negative", ErrInvalidInput)
	}
	// Permission keys are "resource:action" and role names are single words;
	// a comma would also corrupt the stored set encoding.
	for _, v := range requiredPermissions {
		if strings.ContainsRune(v, ',') {
			return Permission{}, fmt.Errorf("%w: permission key %q contains a comma", ErrInvalidInput, v)
		}
	}
	for _, v := range requiredRoles {
		if strings.ContainsRune(v, ',') {
			return Permission{}, fmt.Errorf("%w: role name %q contains a comma", ErrInvalidInput, v)
		}
	}
	return Permission{
		ID:                  id,
		Service:             service,
		Pattern:             pattern,
		Method:              method,
		Description:         strings.TrimSpace(description),
		Public:              public,
		RequiredPermissions: normalizeSet(requiredPermissions),
		RequiredRoles:       normalizeSet(requiredRoles),
		Version:             version,
		Deleted:             deleted,
		CreatedAt:           createdAt,
		UpdatedAt:           updatedAt,
	}, nil
}

// MatchesPath reports whether the request path is covered by this row.
func (p Permission) MatchesPath(requestPath string) bool {
	return p.Pattern.Matches(requestPath)
}

// CanAccess decides whether a caller holding the given permission keys and
// role names may use this endpoint. Public rows always allow. Protected rows
// allow when the caller satisfies either set (any-of within, OR across).
func (p Permission) CanAccess(userPermissions, userRoles map[string]struct{}) bool {
	if p.Public {
		return true
	}
	return containsAny(p.RequiredPermissions, userPermissions) ||
		containsAny(p.RequiredRoles, userRoles)
}

// IsProtected is the negation of Public.
func (p Permission) IsProtected() bool { return !p.Public }

// WithPolicy returns a copy with updated mutable fields and a bumped version.
func (p Permission) WithPolicy(description string, public bool,
	requiredPermissions, requiredRoles []string, now time.Time) Permission {
	p.Description = strings.TrimSpace(description)
	p.Public = public
	p.RequiredPermissions = normalizeSet(requiredPermissions)
	p.RequiredRoles = normalizeSet(requiredRoles)
	p.Version++
	p.UpdatedAt = now
	return p
}

// MarkDeleted returns a soft-deleted copy with a bumped version.
func (p Permission) MarkDeleted(now time.Time) Permission {
	p.Deleted = true
	p.Version++
	p.UpdatedAt = now
	return p
}

func containsAny(required []string, held map[string]struct{}) bool {
	for _, key := range required {
		if _, ok := held[key]; ok {
			return true
		}
	}
	return false
}

func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
