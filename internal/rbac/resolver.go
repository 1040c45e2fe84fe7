package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidInput = errors.New("rbac: invalid input")

// Resolver aggregates a user's role assignments into effective role names and
// permission keys. Pure read pipeline; callers are expected to cache results
// per request since it fans out across four lookups.
type Resolver struct {
	store BindingStore
}

func NewResolver(store BindingStore) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("rbac: binding store is required")
	}
	return &Resolver{store: store}, nil
}

// Resolve returns the user's bindings. A user with no assignments resolves to
// empty sets, not an error.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Bindings, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Bindings{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	assignments, err := r.store.UserRoles(ctx, userID)
	if err != nil {
		return Bindings{}, fmt.Errorf("rbac: load user roles: %w", err)
	}
	if len(assignments) == 0 {
		return emptyBindings(), nil
	}

	roleIDs := make([]string, 0, len(assignments))
	seenRoles := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		if _, ok := seenRoles[a.RoleID]; ok {
			continue
		}
		seenRoles[a.RoleID] = struct{}{}
		roleIDs = append(roleIDs, a.RoleID)
	}

	roles, err := r.store.RolesByIDs(ctx, roleIDs)
	if err != nil {
		return Bindings{}, fmt.Errorf("rbac: load roles: %w", err)
	}
	bindings := emptyBindings()
	for _, role := range roles {
		if role.Deleted {
			continue
		}
		bindings.Roles[role.Name] = struct{}{}
	}

	grants, err := r.store.RolePermissions(ctx, roleIDs)
	if err != nil {
		return Bindings{}, fmt.Errorf("rbac: load role permissions: %w", err)
	}
	if len(grants) == 0 {
		return bindings, nil
	}

	permIDs := make([]string, 0, len(grants))
	seenPerms := make(map[string]struct{}, len(grants))
	for _, g := range grants {
		if _, ok := seenPerms[g.PermissionID]; ok {
			continue
		}
		seenPerms[g.PermissionID] = struct{}{}
		permIDs = append(permIDs, g.PermissionID)
	}

	perms, err := r.store.PermissionsByIDs(ctx, permIDs)
	if err != nil {
		return Bindings{}, fmt.Errorf("rbac: load permissions: %w", err)
	}
	for _, p := range perms {
		if p.Deleted {
			continue
		}
		bindings.Permissions[p.Key] = struct{}{}
	}
	return bindings, nil
}
