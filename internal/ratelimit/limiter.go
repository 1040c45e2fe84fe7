package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Limiter evaluates configured rules against the shared counter store.
type Limiter struct {
	counter Counter
	rules   map[Type]Rule
}

// NewLimiter builds a limiter from the given rules. Types without an explicit
// rule fall back to the defaults.
func NewLimiter(counter Counter, rules ...Rule) (*Limiter, error) {
	if counter == nil {
		return nil, errors.New("ratelimit: counter is required")
	}
	merged := DefaultRules(time.Now())
	for _, rule := range rules {
		if !rule.Type.valid() {
			return nil, fmt.Errorf("%w: rule %q has unknown type %q", ErrInvalidInput, rule.ID, rule.Type)
		}
		merged[rule.Type] = rule
	}
	return &Limiter{counter: counter, rules: merged}, nil
}

// Rule returns the policy applied for a type.
func (l *Limiter) Rule(typ Type) (Rule, bool) {
	rule, ok := l.rules[typ]
	return rule, ok
}

// Check counts this request against (typ, identifier, endpoint) and returns an
// *ExceededError when the rule rejects it. The count evaluated is the number of
// requests seen before this one, so a rule with limit N admits exactly N
// requests per window.
func (l *Limiter) Check(ctx context.Context, typ Type, identifier, endpoint string) error {
	rule, ok := l.rules[typ]
	if !ok {
		return fmt.Errorf("%w: no rule for type %q", ErrInvalidInput, typ)
	}
	count, err := l.counter.Increment(ctx, typ, identifier, endpoint, rule.Window)
	if err != nil {
		return err
	}
	return rule.EnsureNotExceeded(count - 1)
}
