package blacklist

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"authhub.org/internal/ids"
)

var ErrInvalidInput = errors.New("blacklist: invalid input")

// Reason records why a credential was revoked.
type Reason string

const (
	ReasonLogout         Reason = "LOGOUT"
	ReasonSecurityBreach Reason = "SECURITY_BREACH"
	ReasonPasswordChange Reason = "PASSWORD_CHANGE"
	ReasonAdminAction    Reason = "ADMIN_ACTION"
)

// ParseReason converts a stored string into a Reason.
func ParseReason(s string) (Reason, error) {
	switch r := Reason(strings.ToUpper(strings.TrimSpace(s))); r {
	case ReasonLogout, ReasonSecurityBreach, ReasonPasswordChange, ReasonAdminAction:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown blacklist reason %q", ErrInvalidInput, s)
	}
}

func (r Reason) valid() bool {
	switch r {
	case ReasonLogout, ReasonSecurityBreach, ReasonPasswordChange, ReasonAdminAction:
		return true
	default:
		return false
	}
}

// Token is one revoked credential. ExpiresAt mirrors the original token's
// expiry and drives the sweep; once it passes, the entry is garbage.
type Token struct {
	ID            string
	JTI           string
	ExpiresAt     time.Time
	Reason        Reason
	BlacklistedAt time.Time
}

// NewToken records a revocation happening at now.
func NewToken(jti string, expiresAt time.Time, reason Reason, now time.Time) (Token, error) {
	return ReconstructToken(ids.NewAt(now), jti, expiresAt, reason, now)
}

// ReconstructToken rebuilds a persisted entry, re-validating its invariants.
func ReconstructToken(id, jti string, expiresAt time.Time, reason Reason, blacklistedAt time.Time) (Token, error) {
	if strings.TrimSpace(id) == "" {
		return Token{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(jti) == "" {
		return Token{}, fmt.Errorf("%w: jti is required", ErrInvalidInput)
	}
	if expiresAt.IsZero() {
		return Token{}, fmt.Errorf("%w: expiry is required", ErrInvalidInput)
	}
	if !reason.valid() {
		return Token{}, fmt.Errorf("%w: unknown blacklist reason %q", ErrInvalidInput, reason)
	}
	if blacklistedAt.IsZero() {
		return Token{}, fmt.Errorf("%w: blacklisted-at is required", ErrInvalidInput)
	}
	return Token{
		ID:            id,
		JTI:           jti,
		ExpiresAt:     expiresAt,
		Reason:        reason,
		BlacklistedAt: blacklistedAt,
	}, nil
}

// IsExpired reports whether the entry is past the original token's expiry.
func (t Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
