package rbac

import "context"

// BindingStore is the read side of the role/permission graph. Implementations
// must exclude soft-deleted roles and permissions.
type BindingStore interface {
	UserRoles(ctx context.Context, userID string) ([]UserRole, error)
	RolesByIDs(ctx context.Context, roleIDs []string) ([]Role, error)
	RolePermissions(ctx context.Context, roleIDs []string) ([]RolePermission, error)
	PermissionsByIDs(ctx context.Context, permissionIDs []string) ([]Permission, error)
}
