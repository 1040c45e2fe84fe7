package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the raw credential failed signature or claim checks.
var ErrInvalidToken = errors.New("token: invalid token")

// Verified is the trusted view of a credential after signature verification.
// Expiry is deliberately NOT checked here: the authorization pipeline decides
// revocation before expiry, so the verifier only vouches for authenticity.
type Verified struct {
	JTI       string
	UserID    string
	Type      Type
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Token reconstructs lifecycle metadata from the verified claims.
func (v Verified) Token(raw string) (Token, error) {
	return Reconstruct(v.JTI, v.UserID, v.Type, raw, v.IssuedAt, v.ExpiresAt)
}

// Verifier checks RS256 signatures and claim shape.
type Verifier struct {
	publicKey any
	issuer    string
	keyID     string
	now       func() time.Time
	parser    *jwt.Parser
}

// VerifierOption configures Verifier behavior.
type VerifierOption func(*Verifier)

// VerifierIssuer requires the iss claim to match (case-insensitive) when non-empty.
func VerifierIssuer(issuer string) VerifierOption {
	return func(v *Verifier) { v.issuer = strings.TrimSpace(issuer) }
}

// VerifierKeyID pins the expected kid header when non-empty.
func VerifierKeyID(kid string) VerifierOption {
	return func(v *Verifier) { v.keyID = strings.TrimSpace(kid) }
}

// VerifierClock overrides the time source (useful for tests).
func VerifierClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewVerifier parses the PEM public key and constructs a Verifier.
func NewVerifier(publicPEM string, opts ...VerifierOption) (*Verifier, error) {
	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(strings.TrimSpace(publicPEM)))
	if err != nil {
		return nil, fmt.Errorf("token: parse public key: %w", err)
	}
	v := &Verifier{
		publicKey: pub,
		now:       time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			// Expiry is evaluated by the caller via Token.IsValid so revoked
			// tokens are reported as revoked even after they expire.
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks the signature and claim shape of a raw credential.
func (v *Verifier) Verify(raw string) (Verified, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Verified{}, ErrInvalidToken
	}
	parsed, err := v.parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if v.keyID != "" {
			// A pinned kid is mandatory: a token without the header could
			// otherwise sidestep the pin entirely.
			kid, _ := t.Header["kid"].(string)
			if kid != v.keyID {
				return nil, ErrInvalidToken
			}
		}
		return v.publicKey, nil
	})
	if err != nil {
		return Verified{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return Verified{}, ErrInvalidToken
	}
	return v.validate(claims)
}

func (v *Verifier) validate(claims *Claims) (Verified, error) {
	if v.issuer != "" && !strings.EqualFold(claims.Issuer, v.issuer) {
		return Verified{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.ID) == "" {
		return Verified{}, ErrInvalidToken
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Verified{}, ErrInvalidToken
	}
	if !claims.IssuedAt.Time.Before(claims.ExpiresAt.Time) {
		return Verified{}, ErrInvalidToken
	}
	// Small skew allowance for tokens minted by peers with a faster clock.
	if claims.IssuedAt.Time.After(v.now().Add(5 * time.Second)) {
		return Verified{}, ErrInvalidToken
	}
	typ, err := ParseType(claims.TokenType)
	if err != nil {
		return Verified{}, ErrInvalidToken
	}
	return Verified{
		JTI:       claims.ID,
		UserID:    claims.Subject,
		Type:      typ,
		Roles:     claims.Roles,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
