package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authhub.org/internal/endpoint"
	"authhub.org/internal/obs"
	"authhub.org/internal/ratelimit"
	"authhub.org/internal/rbac"
	"authhub.org/internal/token"
)

var ErrInvalidInput = errors.New("authz: invalid input")

// Verifier vouches for a credential's authenticity. Expiry is left to the
// pipeline so revoked-then-expired tokens still surface as revoked.
type Verifier interface {
	Verify(raw string) (token.Verified, error)
}

// Revocations answers whether a jti has been blacklisted.
type Revocations interface {
	Exists(ctx context.Context, jti string) (bool, error)
}

// Limiter enforces windowed counters per rule type.
type Limiter interface {
	Check(ctx context.Context, typ ratelimit.Type, identifier, endpoint string) error
}

// Matcher finds the endpoint rule governing a (service, path, method) triple.
type Matcher interface {
	Match(service, path string, method endpoint.Method) (endpoint.Permission, error)
}

// Resolver loads a user's effective role and permission bindings.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (rbac.Bindings, error)
}

// Request is one authorization question. Token may be empty; public endpoints
// are decided without a credential.
type Request struct {
	Token    string
	Service  string
	Path     string
	Method   endpoint.Method
	ClientIP string
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Service) == "" {
		return fmt.Errorf("%w: service is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Path) == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidInput)
	}
	return nil
}

// Decider runs the authorization pipeline. Each request terminates at its
// first failing step; infrastructure errors propagate to the caller instead
// of degrading into a silent allow or deny.
type Decider struct {
	verifier    Verifier
	revocations Revocations
	limiter     Limiter
	matcher     Matcher
	resolver    Resolver
	now         func() time.Time
}

// DeciderOption configures optional Decider behavior.
type DeciderOption func(*Decider)

// DeciderClock overrides the time source (useful for tests).
func DeciderClock(fn func() time.Time) DeciderOption {
	return func(d *Decider) {
		if fn != nil {
			d.now = fn
		}
	}
}

func NewDecider(verifier Verifier, revocations Revocations, limiter Limiter,
	matcher Matcher, resolver Resolver, opts ...DeciderOption) (*Decider, error) {
	switch {
	case verifier == nil:
		return nil, errors.New("authz: verifier is required")
	case revocations == nil:
		return nil, errors.New("authz: revocation registry is required")
	case limiter == nil:
		return nil, errors.New("authz: rate limiter is required")
	case matcher == nil:
		return nil, errors.New("authz: endpoint matcher is required")
	case resolver == nil:
		return nil, errors.New("authz: binding resolver is required")
	}
	d := &Decider{
		verifier:    verifier,
		revocations: revocations,
		limiter:     limiter,
		matcher:     matcher,
		resolver:    resolver,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Decide answers one authorization request. The returned Decision always has
// an Outcome when err is nil; a non-nil error means the pipeline could not
// complete and the caller must fail the request rather than guess.
func (d *Decider) Decide(ctx context.Context, req Request) (Decision, error) {
	if err := req.validate(); err != nil {
		return Decision{}, err
	}
	dec, err := d.decide(ctx, req)
	if err == nil {
		obs.ObserveDecision(string(dec.Outcome))
	}
	return dec, err
}

func (d *Decider) decide(ctx context.Context, req Request) (Decision, error) {
	now := d.now()

	perm, err := d.matcher.Match(req.Service, req.Path, req.Method)
	if errors.Is(err, endpoint.ErrUnmapped) {
		// Deny-by-default: an endpoint nobody registered is nobody's to call.
		return denied(OutcomeUnmapped, now), nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("authz: match endpoint: %w", err)
	}

	if perm.Public {
		// IP throttling is the only guard on anonymous traffic.
		if req.ClientIP != "" {
			if dec, limited, err := d.checkLimit(ctx, ratelimit.TypeIP, req.ClientIP, req.Path, now); err != nil {
				return Decision{}, err
			} else if limited {
				return dec, nil
			}
		}
		return Decision{
			Outcome:      OutcomeAllowed,
			Public:       true,
			PermissionID: perm.ID,
			DecidedAt:    now,
		}, nil
	}

	verified, err := d.verifier.Verify(req.Token)
	if err != nil {
		return denied(OutcomeInvalid, now), nil
	}

	revoked, err := d.revocations.Exists(ctx, verified.JTI)
	if err != nil {
		return Decision{}, fmt.Errorf("authz: revocation lookup: %w", err)
	}
	if revoked {
		dec := denied(OutcomeRevoked, now)
		dec.UserID = verified.UserID
		return dec, nil
	}

	tok, err := verified.Token(req.Token)
	if err != nil {
		return denied(OutcomeInvalid, now), nil
	}
	if !tok.IsValid(now) {
		dec := denied(OutcomeExpired, now)
		dec.UserID = verified.UserID
		return dec, nil
	}

	// Rate limits come after authenticity, revocation and expiry: a bad
	// credential is reported for what it is even from a throttled source.
	type limitCheck struct {
		typ        ratelimit.Type
		identifier string
	}
	var checks []limitCheck
	if req.ClientIP != "" {
		checks = append(checks, limitCheck{ratelimit.TypeIP, req.ClientIP})
	}
	checks = append(checks,
		limitCheck{ratelimit.TypeUser, verified.UserID},
		limitCheck{ratelimit.TypeEndpoint, req.Service + req.Path},
	)
	for _, check := range checks {
		dec, limited, err := d.checkLimit(ctx, check.typ, check.identifier, req.Path, now)
		if err != nil {
			return Decision{}, err
		}
		if limited {
			dec.UserID = verified.UserID
			return dec, nil
		}
	}

	bindings, err := d.resolver.Resolve(ctx, verified.UserID)
	if err != nil {
		return Decision{}, fmt.Errorf("authz: resolve bindings: %w", err)
	}
	// Roles minted into the credential count alongside stored assignments.
	for _, role := range verified.Roles {
		role = strings.TrimSpace(role)
		if role != "" {
			bindings.Roles[role] = struct{}{}
		}
	}

	dec := Decision{
		UserID:       verified.UserID,
		PermissionID: perm.ID,
		Roles:        setToSlice(bindings.Roles),
		Permissions:  setToSlice(bindings.Permissions),
		DecidedAt:    now,
	}
	if perm.CanAccess(bindings.Permissions, bindings.Roles) {
		dec.Outcome = OutcomeAllowed
	} else {
		dec.Outcome = OutcomeForbidden
	}
	return dec, nil
}

// checkLimit runs one counter check. A rate-limit rejection is a decision,
// not an error; anything else from the limiter is infrastructure failure.
func (d *Decider) checkLimit(ctx context.Context, typ ratelimit.Type, identifier, path string, now time.Time) (Decision, bool, error) {
	err := d.limiter.Check(ctx, typ, identifier, path)
	if err == nil {
		return Decision{}, false, nil
	}
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		obs.ObserveRateLimitRejection(string(typ))
		dec := denied(OutcomeRateLimited, now)
		dec.RetryAfter = time.Duration(exceeded.WindowSeconds) * time.Second
		dec.Limit = exceeded.Limit
		dec.Current = exceeded.Current
		return dec, true, nil
	}
	return Decision{}, false, fmt.Errorf("authz: rate limit check: %w", err)
}

func setToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}
