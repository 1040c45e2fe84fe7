package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"authhub.org/internal/authz"
	"authhub.org/internal/endpoint"
)

type endpointRequest struct {
	Service             string   `json:"service"`
	Pattern             string   `json:"pattern"`
	Method              string   `json:"method"`
	Description         string   `json:"description,omitempty"`
	Public              bool     `json:"public,omitempty"`
	RequiredPermissions []string `json:"required_permissions,omitempty"`
	RequiredRoles       []string `json:"required_roles,omitempty"`
}

type endpointResponse struct {
	ID                  string   `json:"id"`
	Service             string   `json:"service"`
	Pattern             string   `json:"pattern"`
	Method              string   `json:"method"`
	Description         string   `json:"description,omitempty"`
	Public              bool     `json:"public"`
	RequiredPermissions []string `json:"required_permissions,omitempty"`
	RequiredRoles       []string `json:"required_roles,omitempty"`
	Version             int64    `json:"version"`
}

// requireService admits only callers that presented a valid
// X-Service-Name/X-Service-Token pair. The admin surface is for backing
// services syncing their route tables, never for end users.
func (a *API) requireService(w http.ResponseWriter, r *http.Request) bool {
	id, ok := authz.IdentityFromContext(r.Context())
	if !ok || id.ServiceName == "" {
		writeError(w, r, http.StatusUnauthorized, "service authentication required")
		return false
	}
	return true
}

func (a *API) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	if a.endpoints == nil {
		writeError(w, r, http.StatusServiceUnavailable, "endpoint administration unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listEndpoints(w, r)
	case http.MethodPut:
		a.upsertEndpoint(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleEndpointByID(w http.ResponseWriter, r *http.Request) {
	if a.endpoints == nil {
		writeError(w, r, http.StatusServiceUnavailable, "endpoint administration unavailable")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	a.deleteEndpoint(w, r)
}

func (a *API) listEndpoints(w http.ResponseWriter, r *http.Request) {
	if !a.requireService(w, r) {
		return
	}
	rows, err := a.endpoints.ListActive(r.Context(), r.URL.Query().Get("service"))
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "endpoint store unavailable")
		return
	}
	out := make([]endpointResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEndpointResponse(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"endpoints": out})
}

func (a *API) upsertEndpoint(w http.ResponseWriter, r *http.Request) {
	if !a.requireService(w, r) {
		return
	}
	var req endpointRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pattern, err := endpoint.NewPattern(req.Pattern)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	method, err := endpoint.ParseMethod(req.Method)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown http method")
		return
	}
	row, err := endpoint.NewPermission(req.Service, pattern, method, req.Description,
		req.Public, req.RequiredPermissions, req.RequiredRoles, a.now())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := a.endpoints.Upsert(r.Context(), row)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "endpoint store unavailable")
		return
	}
	if err := a.reloadMatcher(r.Context()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "endpoint reload failed")
		return
	}

	auditEvent(r, "endpoint.upserted", map[string]any{
		"id":      stored.ID,
		"service": stored.Service,
		"pattern": stored.Pattern.String(),
		"method":  string(stored.Method),
		"version": stored.Version,
	})
	writeJSON(w, http.StatusOK, toEndpointResponse(stored))
}

func (a *API) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	if !a.requireService(w, r) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/endpoints/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusBadRequest, "endpoint id is required")
		return
	}
	if err := a.endpoints.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, endpoint.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "endpoint not found")
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, "endpoint store unavailable")
		return
	}
	if err := a.reloadMatcher(r.Context()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "endpoint reload failed")
		return
	}

	auditEvent(r, "endpoint.deleted", map[string]any{"id": id})
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

func toEndpointResponse(row endpoint.Permission) endpointResponse {
	return endpointResponse{
		ID:                  row.ID,
		Service:             row.Service,
		Pattern:             row.Pattern.String(),
		Method:              string(row.Method),
		Description:         row.Description,
		Public:              row.Public,
		RequiredPermissions: row.RequiredPermissions,
		RequiredRoles:       row.RequiredRoles,
		Version:             row.Version,
	}
}
