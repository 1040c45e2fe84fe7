package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"authhub.org/internal/blacklist"
)

type tokenRequest struct {
	User  string   `json:"user"`
	Roles []string `json:"roles"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type revokeRequest struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

func (a *API) handleTokenIssue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.signer == nil {
		writeError(w, r, http.StatusServiceUnavailable, "token issuance unavailable")
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user := strings.TrimSpace(req.User)
	if user == "" {
		writeError(w, r, http.StatusBadRequest, "user is required")
		return
	}
	roles := make([]string, 0, len(req.Roles))
	for _, role := range req.Roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		roles = append(roles, role)
	}

	pair, err := a.signer.IssuePair(user, roles)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	auditEvent(r, "token.issued", map[string]any{
		"user":       user,
		"roles":      roles,
		"expires_at": pair.Access.ExpiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:      pair.Access.Value,
		RefreshToken:     pair.Refresh.Value,
		TokenType:        "Bearer",
		ExpiresAt:        pair.Access.ExpiresAt,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
	})
}

func (a *API) handleTokenRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.verifier == nil || a.registry == nil {
		writeError(w, r, http.StatusServiceUnavailable, "revocation unavailable")
		return
	}

	var req revokeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	raw := strings.TrimSpace(req.Token)
	if raw == "" {
		raw, _ = extractBearerToken(r.Header.Get("Authorization"))
	}
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	reason := blacklist.ReasonLogout
	if strings.TrimSpace(req.Reason) != "" {
		parsed, err := blacklist.ParseReason(req.Reason)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "unknown revocation reason")
			return
		}
		reason = parsed
	}

	verified, err := a.verifier.Verify(raw)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}

	entry, err := blacklist.NewToken(verified.JTI, verified.ExpiresAt, reason, a.now())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.registry.Add(r.Context(), entry); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "revocation store unavailable")
		return
	}

	auditEvent(r, "token.revoked", map[string]any{
		"jti":    verified.JTI,
		"user":   verified.UserID,
		"reason": string(reason),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"revoked": true,
		"jti":     verified.JTI,
	})
}

func extractBearerToken(header string) (string, error) {
	const bearer = "Bearer "
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	tok := strings.TrimSpace(header[len(bearer):])
	if tok == "" {
		return "", errors.New("missing bearer token")
	}
	return tok, nil
}
