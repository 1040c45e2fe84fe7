package authz

import (
	"context"
	"strings"
)

type ctxKey string

const identityKey ctxKey = "authz_identity"

// Identity is the caller established from gateway trust headers.
type Identity struct {
	UserID         string
	TenantID       string
	OrganizationID string
	Email          string
	Roles          []string
	Permissions    []string
	// ServiceName is set for service-to-service calls; OriginalUserID then
	// preserves the acting user across the hop.
	ServiceName    string
	OriginalUserID string
}

// ContextWithIdentity attaches the caller identity for downstream handlers
// and audit logging.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller identity, if one was established.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// UserIDFromContext returns the acting user's id. For service calls it
// prefers the original user carried across the hop.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return "", false
	}
	if strings.TrimSpace(id.OriginalUserID) != "" {
		return id.OriginalUserID, true
	}
	if strings.TrimSpace(id.UserID) == "" {
		return "", false
	}
	return id.UserID, true
}
