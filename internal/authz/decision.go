package authz

import "time"

// Outcome is the stable decision code a gateway maps to a transport response.
// Codes are contractual: downstream services branch on them, never on messages.
type Outcome string

const (
	OutcomeAllowed     Outcome = "ALLOWED"
	OutcomeInvalid     Outcome = "DENIED_INVALID"
	OutcomeRevoked     Outcome = "DENIED_REVOKED"
	OutcomeExpired     Outcome = "DENIED_EXPIRED"
	OutcomeRateLimited Outcome = "DENIED_RATE_LIMITED"
	OutcomeForbidden   Outcome = "DENIED_FORBIDDEN"
	OutcomeUnmapped    Outcome = "DENIED_UNMAPPED"
)

// Allowed reports whether the outcome grants access.
func (o Outcome) Allowed() bool { return o == OutcomeAllowed }

// Decision is the terminal result of one authorization request.
type Decision struct {
	Outcome Outcome
	// UserID is set once the credential has been verified, including on
	// denials past that step, so audit trails can attribute the attempt.
	UserID string
	// Public marks decisions that required no credential at all.
	Public bool
	// PermissionID identifies the endpoint rule that matched, when one did.
	PermissionID string
	// RetryAfter, Limit and Current are populated only for OutcomeRateLimited.
	RetryAfter time.Duration
	Limit      int64
	Current    int64
	// Roles and Permissions are the effective bindings used for the check,
	// populated only when the pipeline reached the RBAC step.
	Roles       []string
	Permissions []string
	DecidedAt   time.Time
}

func denied(outcome Outcome, at time.Time) Decision {
	return Decision{Outcome: outcome, DecidedAt: at}
}
