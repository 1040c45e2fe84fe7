package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"authhub.org/internal/authz"
	"authhub.org/internal/endpoint"
)

type decisionRequest struct {
	Service string `json:"service"`
	Path    string `json:"path"`
	Method  string `json:"method"`
	// Token may come in the body or via the Authorization header.
	Token    string `json:"token,omitempty"`
	ClientIP string `json:"client_ip,omitempty"`
}

type decisionResponse struct {
	Outcome      string    `json:"outcome"`
	Allowed      bool      `json:"allowed"`
	UserID       string    `json:"user_id,omitempty"`
	Public       bool      `json:"public,omitempty"`
	PermissionID string    `json:"permission_id,omitempty"`
	Roles        []string  `json:"roles,omitempty"`
	Permissions  []string  `json:"permissions,omitempty"`
	RetryAfter   int64     `json:"retry_after_seconds,omitempty"`
	DecidedAt    time.Time `json:"decided_at"`
}

func (a *API) handleDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.decider == nil {
		writeError(w, r, http.StatusServiceUnavailable, "decision pipeline unavailable")
		return
	}

	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	method, err := endpoint.ParseMethod(req.Method)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown http method")
		return
	}
	raw := strings.TrimSpace(req.Token)
	if raw == "" {
		raw, _ = extractBearerToken(r.Header.Get("Authorization"))
	}
	ip := strings.TrimSpace(req.ClientIP)
	if ip == "" {
		ip = clientIP(r)
	}

	dec, err := a.decider.Decide(r.Context(), authz.Request{
		Token:    raw,
		Service:  req.Service,
		Path:     req.Path,
		Method:   method,
		ClientIP: ip,
	})
	if err != nil {
		if errors.Is(err, authz.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, "decision pipeline unavailable")
		return
	}

	if !dec.Outcome.Allowed() {
		auditEvent(r, "decision.denied", map[string]any{
			"outcome": string(dec.Outcome),
			"service": req.Service,
			"path":    req.Path,
			"method":  string(method),
			"user":    dec.UserID,
		})
	}

	status := statusForOutcome(dec.Outcome)
	if dec.Outcome == authz.OutcomeRateLimited && dec.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(dec.RetryAfter.Seconds()), 10))
	}
	writeJSON(w, status, decisionResponse{
		Outcome:      string(dec.Outcome),
		Allowed:      dec.Outcome.Allowed(),
		UserID:       dec.UserID,
		Public:       dec.Public,
		PermissionID: dec.PermissionID,
		Roles:        dec.Roles,
		Permissions:  dec.Permissions,
		RetryAfter:   int64(dec.RetryAfter.Seconds()),
		DecidedAt:    dec.DecidedAt,
	})
}

// statusForOutcome maps each decision code to exactly one HTTP status so
// gateways never have to parse messages.
func statusForOutcome(o authz.Outcome) int {
	switch o {
	case authz.OutcomeAllowed:
		return http.StatusOK
	case authz.OutcomeInvalid, authz.OutcomeRevoked, authz.OutcomeExpired:
		return http.StatusUnauthorized
	case authz.OutcomeForbidden, authz.OutcomeUnmapped:
		return http.StatusForbidden
	case authz.OutcomeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
