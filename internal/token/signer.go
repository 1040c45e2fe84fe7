package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14

	claimTokenType = "token_type"
)

// ErrSigningUnavailable indicates no private key was configured.
var ErrSigningUnavailable = errors.New("token: signing is not configured")

// Claims carries the JWT payload minted and verified by this package.
type Claims struct {
	TokenType string   `json:"token_type"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Pair bundles a freshly issued access/refresh credential pair.
type Pair struct {
	Access  Token
	Refresh Token
}

// Signer mints RS256-signed token pairs and publishes the verification key set.
type Signer struct {
	privateKey any
	verifier   *Verifier
	keyID      string
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// SignerOption configures Signer behavior.
type SignerOption func(*Signer)

// WithKeyID sets the key identifier embedded into JWT headers and the JWKS.
func WithKeyID(kid string) SignerOption {
	return func(s *Signer) { s.keyID = strings.TrimSpace(kid) }
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) SignerOption {
	return func(s *Signer) { s.issuer = strings.TrimSpace(issuer) }
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) SignerOption {
	return func(s *Signer) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) SignerOption {
	return func(s *Signer) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) SignerOption {
	return func(s *Signer) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSigner parses the PEM key pair and constructs a Signer.
func NewSigner(privatePEM, publicPEM string, opts ...SignerOption) (*Signer, error) {
	privatePEM = strings.TrimSpace(privatePEM)
	publicPEM = strings.TrimSpace(publicPEM)
	if privatePEM == "" || publicPEM == "" {
		return nil, errors.New("token: both private and public keys are required")
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privatePEM))
	if err != nil {
		return nil, fmt.Errorf("token: parse private key: %w", err)
	}
	s := &Signer{
		privateKey: priv,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	verifier, err := NewVerifier(publicPEM, VerifierIssuer(s.issuer), VerifierClock(s.now), VerifierKeyID(s.keyID))
	if err != nil {
		return nil, err
	}
	s.verifier = verifier
	return s, nil
}

// Verifier returns the verification half backed by the signer's public key.
func (s *Signer) Verifier() *Verifier {
	return s.verifier
}

// IssuePair mints an access/refresh pair for the user with the given roles.
func (s *Signer) IssuePair(userID string, roles []string) (Pair, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Pair{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	now := s.now().UTC()
	access, err := s.sign(userID, TypeAccess, roles, now, s.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.sign(userID, TypeRefresh, nil, now, s.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (s *Signer) sign(userID string, typ Type, roles []string, now time.Time, ttl time.Duration) (Token, error) {
	if s.privateKey == nil {
		return Token{}, ErrSigningUnavailable
	}
	jti := uuid.NewString()
	claims := Claims{
		TokenType: string(typ),
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.keyID != "" {
		tok.Header["kid"] = s.keyID
	}
	signed, err := tok.SignedString(s.privateKey)
	if err != nil {
		return Token{}, fmt.Errorf("token: sign: %w", err)
	}
	return Reconstruct(jti, userID, typ, signed, now, now.Add(ttl))
}
