package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"authhub.org/internal/ids"
)

var ErrInvalidInput = errors.New("ratelimit: invalid input")

// Type selects which request dimension a rule counts.
type Type string

const (
	TypeIP       Type = "IP_BASED"
	TypeUser     Type = "USER_BASED"
	TypeEndpoint Type = "ENDPOINT_BASED"
)

// ParseType converts a stored string into a Type.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToUpper(strings.TrimSpace(s))) {
	case TypeIP:
		return TypeIP, nil
	case TypeUser:
		return TypeUser, nil
	case TypeEndpoint:
		return TypeEndpoint, nil
	default:
		return "", fmt.Errorf("%w: unknown rate limit type %q", ErrInvalidInput, s)
	}
}

func (t Type) IsIPBased() bool       { return t == TypeIP }
func (t Type) IsUserBased() bool     { return t == TypeUser }
func (t Type) IsEndpointBased() bool { return t == TypeEndpoint }

func (t Type) valid() bool {
	return t == TypeIP || t == TypeUser || t == TypeEndpoint
}

// ExceededError reports a rejected request with enough detail for a 429 response.
type ExceededError struct {
	Current       int64
	Limit         int64
	WindowSeconds int64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("ratelimit: exceeded: %d of %d requests in %ds window",
		e.Current, e.Limit, e.WindowSeconds)
}

// Rule is an immutable limit policy: at most Limit requests per Window.
type Rule struct {
	ID        string
	Type      Type
	Limit     int64
	Window    time.Duration
	CreatedAt time.Time
}

// NewRule constructs a rule, rejecting out-of-range limit and window.
func NewRule(typ Type, limit int64, window time.Duration, now time.Time) (Rule, error) {
	return Reconstruct(ids.NewAt(now), typ, limit, window, now)
}

// Reconstruct rebuilds a persisted rule, applying the same validation as NewRule.
func Reconstruct(id string, typ Type, limit int64, window time.Duration, createdAt time.Time) (Rule, error) {
	if strings.TrimSpace(id) == "" {
		return Rule{}, fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}
	if !typ.valid() {
		return Rule{}, fmt.Errorf("%w: unknown rate limit type %q", ErrInvalidInput, typ)
	}
	if limit < 1 {
		return Rule{}, fmt.Errorf("%w: limit must be at least 1, got %d", ErrInvalidInput, limit)
	}
	if window < time.Second {
		return Rule{}, fmt.Errorf("%w: window must be at least 1s, got %s", ErrInvalidInput, window)
	}
	return Rule{ID: id, Type: typ, Limit: limit, Window: window, CreatedAt: createdAt}, nil
}

// WindowSeconds returns the window length in whole seconds.
func (r Rule) WindowSeconds() int64 {
	return int64(r.Window / time.Second)
}

// IsExceeded reports whether a request observing currentCount prior requests
// in the window must be rejected. currentCount must be non-negative.
func (r Rule) IsExceeded(currentCount int64) bool {
	return currentCount >= r.Limit
}

// IsWithinLimit is the negation of IsExceeded.
func (r Rule) IsWithinLimit(currentCount int64) bool {
	return !r.IsExceeded(currentCount)
}

// Remaining returns how many requests are left in the window, never negative.
func (r Rule) Remaining(currentCount int64) int64 {
	if left := r.Limit - currentCount; left > 0 {
		return left
	}
	return 0
}

// EnsureNotExceeded validates currentCount and returns a typed ExceededError
// when the rule rejects the request.
func (r Rule) EnsureNotExceeded(currentCount int64) error {
	if currentCount < 0 {
		return fmt.Errorf("%w: current count cannot be negative: %d", ErrInvalidInput, currentCount)
	}
	if r.IsExceeded(currentCount) {
		return &ExceededError{
			Current:       currentCount,
			Limit:         r.Limit,
			WindowSeconds: r.WindowSeconds(),
		}
	}
	return nil
}

// DefaultRules returns the built-in policy applied when no rule is configured
// for a type: 100 requests/min per IP, 1000 per user, 5000 per endpoint.
func DefaultRules(now time.Time) map[Type]Rule {
	mustRule := func(typ Type, limit int64) Rule {
		rule, err := NewRule(typ, limit, time.Minute, now)
		if err != nil {
			panic(err)
		}
		return rule
	}
	return map[Type]Rule{
		TypeIP:       mustRule(TypeIP, 100),
		TypeUser:     mustRule(TypeUser, 1000),
		TypeEndpoint: mustRule(TypeEndpoint, 5000),
	}
}
