package endpoint

import (
	"context"
	"errors"
)

// ErrNotFound indicates the row does not exist or is already soft-deleted.
var ErrNotFound = errors.New("endpoint: not found")

// Store persists endpoint permission rows. Rows are unique per
// (service, pattern, method); deletion is always soft.
type Store interface {
	// ListActive returns the non-deleted rows for a service, or all services
	// when service is empty.
	ListActive(ctx context.Context, service string) ([]Permission, error)

	// Upsert inserts the row or, when (service, pattern, method) already
	// exists, updates its policy fields and bumps the stored version.
	Upsert(ctx context.Context, row Permission) (Permission, error)

	// SoftDelete marks the row deleted and bumps its version.
	SoftDelete(ctx context.Context, id string) error
}
