package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"authhub.org/internal/ids"
)

var (
	ErrInvalidInput      = errors.New("token: invalid input")
	ErrInvalidTimestamps = errors.New("token: issued-at must precede expiry")
)

// Type distinguishes access credentials from refresh credentials.
type Type string

const (
	TypeAccess  Type = "ACCESS"
	TypeRefresh Type = "REFRESH"
)

// ParseType converts a stored string into a Type.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToUpper(strings.TrimSpace(s))) {
	case TypeAccess:
		return TypeAccess, nil
	case TypeRefresh:
		return TypeRefresh, nil
	default:
		return "", fmt.Errorf("%w: unknown token type %q", ErrInvalidInput, s)
	}
}

func (t Type) IsAccess() bool  { return t == TypeAccess }
func (t Type) IsRefresh() bool { return t == TypeRefresh }

func (t Type) valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

// Token is the immutable metadata of an issued credential. The signed payload
// itself is opaque here; signing and verification live in Signer and Verifier.
type Token struct {
	ID        string
	UserID    string
	Type      Type
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Create mints token metadata issued at now and expiring after validity.
func Create(userID string, typ Type, value string, validity time.Duration, now time.Time) (Token, error) {
	if validity <= 0 {
		return Token{}, fmt.Errorf("%w: validity must be positive", ErrInvalidInput)
	}
	return Reconstruct(ids.New(), userID, typ, value, now, now.Add(validity))
}

// Reconstruct rebuilds a token from persisted fields. The issued-at/expiry
// invariant is enforced here so a violating record can never circulate.
func Reconstruct(id, userID string, typ Type, value string, issuedAt, expiresAt time.Time) (Token, error) {
	if strings.TrimSpace(id) == "" {
		return Token{}, fmt.Errorf("%w: token id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(userID) == "" {
		return Token{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !typ.valid() {
		return Token{}, fmt.Errorf("%w: unknown token type %q", ErrInvalidInput, typ)
	}
	if !issuedAt.Before(expiresAt) {
		return Token{}, fmt.Errorf("%w (issued=%s, expires=%s)", ErrInvalidTimestamps,
			issuedAt.UTC().Format(time.RFC3339), expiresAt.UTC().Format(time.RFC3339))
	}
	return Token{
		ID:        id,
		UserID:    userID,
		Type:      typ,
		Value:     value,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// IsValid reports whether the token is still usable at the given instant.
func (t Token) IsValid(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// IsExpired is the negation of IsValid.
func (t Token) IsExpired(now time.Time) bool {
	return !t.IsValid(now)
}

// BelongsTo reports whether the token was issued to userID.
func (t Token) BelongsTo(userID string) bool {
	return t.UserID == userID
}

// RemainingValidity returns the time left before expiry, never negative.
func (t Token) RemainingValidity(now time.Time) time.Duration {
	d := t.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Age returns the time elapsed since issuance, never negative.
func (t Token) Age(now time.Time) time.Duration {
	d := now.Sub(t.IssuedAt)
	if d < 0 {
		return 0
	}
	return d
}
