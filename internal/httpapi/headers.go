package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"authhub.org/internal/authz"
)

// Gateway trust headers. The gateway strips any inbound copies before
// re-emitting them, so a populated header is trusted as-is here.
const (
	headerUserID          = "X-User-Id"
	headerTenantID        = "X-Tenant-Id"
	headerOrganizationID  = "X-Organization-Id"
	headerUserEmail       = "X-User-Email"
	headerUserRoles       = "X-User-Roles"
	headerUserPermissions = "X-User-Permissions"
	headerCorrelationID   = "X-Correlation-Id"

	headerServiceName  = "X-Service-Name"
	headerServiceToken = "X-Service-Token"

	headerOriginalUserID   = "X-Original-User-Id"
	headerOriginalTenantID = "X-Original-Tenant-Id"
)

// IdentityFromHeaders builds the caller identity out of gateway trust headers.
func IdentityFromHeaders(h http.Header) authz.Identity {
	return authz.Identity{
		UserID:         strings.TrimSpace(h.Get(headerUserID)),
		TenantID:       strings.TrimSpace(h.Get(headerTenantID)),
		OrganizationID: strings.TrimSpace(h.Get(headerOrganizationID)),
		Email:          strings.TrimSpace(h.Get(headerUserEmail)),
		Roles:          splitHeaderList(h.Get(headerUserRoles)),
		Permissions:    splitHeaderList(h.Get(headerUserPermissions)),
		ServiceName:    strings.TrimSpace(h.Get(headerServiceName)),
		OriginalUserID: strings.TrimSpace(h.Get(headerOriginalUserID)),
	}
}

// EmitIdentityHeaders writes the identity back out as trust headers for a
// downstream hop.
func EmitIdentityHeaders(h http.Header, id authz.Identity) {
	setIfPresent(h, headerUserID, id.UserID)
	setIfPresent(h, headerTenantID, id.TenantID)
	setIfPresent(h, headerOrganizationID, id.OrganizationID)
	setIfPresent(h, headerUserEmail, id.Email)
	if len(id.Roles) > 0 {
		h.Set(headerUserRoles, strings.Join(id.Roles, ","))
	}
	if len(id.Permissions) > 0 {
		h.Set(headerUserPermissions, strings.Join(id.Permissions, ","))
	}
	setIfPresent(h, headerServiceName, id.ServiceName)
	setIfPresent(h, headerOriginalUserID, id.OriginalUserID)
}

// withIdentity establishes the caller identity from trust headers so handlers
// and audit entries can attribute the request.
func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromHeaders(r.Header)
		next.ServeHTTP(w, r.WithContext(authz.ContextWithIdentity(r.Context(), id)))
	})
}

// withServiceAuth rejects service-to-service calls carrying a bad shared
// secret before any request context is established. Requests without
// X-Service-Name pass through untouched.
func (a *API) withServiceAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.Header.Get(headerServiceName))
		if name == "" {
			next.ServeHTTP(w, r)
			return
		}
		expected, ok := a.serviceTokens[name]
		presented := r.Header.Get(headerServiceToken)
		if !ok || subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1 {
			writeError(w, r, http.StatusUnauthorized, "invalid service token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func splitHeaderList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setIfPresent(h http.Header, key, value string) {
	if strings.TrimSpace(value) != "" {
		h.Set(key, value)
	}
}
