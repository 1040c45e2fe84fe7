package blacklist

import "context"

// Registry tracks revoked token identifiers until their natural expiry.
//
// Implementations must keep the detail record, the membership set and the
// expiry index consistent: once Add returns nil, Exists must report true for
// that jti until RemoveAll takes it out.
type Registry interface {
	// Add records a revocation. Re-adding the same jti is not an error; the
	// stored expiry score and detail record are refreshed.
	Add(ctx context.Context, tok Token) error

	// Exists reports membership in O(1).
	Exists(ctx context.Context, jti string) (bool, error)

	// FindExpiredJtis returns up to limit identifiers whose expiry is at or
	// before maxEpochSeconds, oldest first.
	FindExpiredJtis(ctx context.Context, maxEpochSeconds int64, limit int64) ([]string, error)

	// RemoveAll deletes the given identifiers from all three structures and
	// returns how many were actually members.
	RemoveAll(ctx context.Context, jtis []string) (int64, error)
}
