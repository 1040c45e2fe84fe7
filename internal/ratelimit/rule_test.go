package ratelimit

import (
	"errors"
	"testing"
	"time"
)

var anchor = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func TestNewRuleValidation(t *testing.T) {
	cases := []struct {
		name   string
		typ    Type
		limit  int64
		window time.Duration
		ok     bool
	}{
		{"valid", TypeIP, 100, time.Minute, true},
		{"limit of one", TypeUser, 1, time.Second, true},
		{"zero limit", TypeIP, 0, time.Minute, false},
		{"negative limit", TypeIP, -5, time.Minute, false},
		{"sub-second window", TypeIP, 10, 500 * time.Millisecond, false},
		{"unknown type", Type("GLOBAL"), 10, time.Minute, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRule(tc.typ, tc.limit, tc.window, anchor)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestIsExceededMonotonic(t *testing.T) {
	rule, err := NewRule(TypeUser, 20, time.Minute, anchor)
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	prev := false
	for n := int64(0); n <= 40; n++ {
		got := rule.IsExceeded(n)
		if got != (n >= 20) {
			t.Fatalf("IsExceeded(%d) = %v", n, got)
		}
		if prev && !got {
			t.Fatalf("IsExceeded regressed at %d", n)
		}
		prev = got
	}
}

func TestRemaining(t *testing.T) {
	rule, err := NewRule(TypeIP, 20, time.Minute, anchor)
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	for n, want := range map[int64]int64{0: 20, 5: 15, 19: 1, 20: 0, 100: 0} {
		if got := rule.Remaining(n); got != want {
			t.Errorf("Remaining(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestEnsureNotExceededScenario(t *testing.T) {
	// limit=20, window=60s: counts 1..19 admitted, count 20 rejected.
	rule, err := NewRule(TypeEndpoint, 20, 60*time.Second, anchor)
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	for n := int64(1); n <= 19; n++ {
		if err := rule.EnsureNotExceeded(n); err != nil {
			t.Fatalf("EnsureNotExceeded(%d) = %v, want nil", n, err)
		}
	}
	err = rule.EnsureNotExceeded(20)
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected *ExceededError, got %v", err)
	}
	if exceeded.Limit != 20 || exceeded.WindowSeconds != 60 || exceeded.Current != 20 {
		t.Fatalf("unexpected detail: %+v", exceeded)
	}
}

func TestEnsureNotExceededNegativeCount(t *testing.T) {
	rule, err := NewRule(TypeIP, 10, time.Minute, anchor)
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	if err := rule.EnsureNotExceeded(-1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDefaultRules(t *testing.T) {
	defaults := DefaultRules(anchor)
	for typ, limit := range map[Type]int64{TypeIP: 100, TypeUser: 1000, TypeEndpoint: 5000} {
		rule, ok := defaults[typ]
		if !ok {
			t.Fatalf("missing default for %s", typ)
		}
		if rule.Limit != limit || rule.Window != time.Minute {
			t.Errorf("%s default = %d/%s, want %d/1m", typ, rule.Limit, rule.Window, limit)
		}
	}
}

func TestParseRateLimitType(t *testing.T) {
	for raw, want := range map[string]Type{
		"IP_BASED":       TypeIP,
		"user_based":     TypeUser,
		" endpoint_based": TypeEndpoint,
	} {
		got, err := ParseType(raw)
		if err != nil {
			t.Errorf("ParseType(%q): %v", raw, err)
			continue
		}
		if got != want {
			t.Errorf("ParseType(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := ParseType("global"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
