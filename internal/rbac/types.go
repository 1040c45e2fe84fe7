package rbac

import "time"

// Role groups permissions under a name such as "ADMIN".
type Role struct {
	ID          string
	Name        string
	Description string
	Scope       string
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is a fine-grained capability keyed "resource:action".
type Permission struct {
	ID          string
	Key         string
	Description string
	Type        string
	Deleted     bool
	CreatedAt   time.Time
}

// UserRole grants a role to a user. It has no life of its own: both
// referenced ids must exist.
type UserRole struct {
	UserID     string
	RoleID     string
	AssignedAt time.Time
}

// RolePermission grants a permission to a role. Modeled as a join record
// rather than object references so each side's lifecycle stays independent.
type RolePermission struct {
	RoleID       string
	PermissionID string
	GrantedAt    time.Time
}

// Bindings is a user's effective role names and permission keys.
type Bindings struct {
	Roles       map[string]struct{}
	Permissions map[string]struct{}
}

// emptyBindings returns a valid zero result with non-nil sets.
func emptyBindings() Bindings {
	return Bindings{
		Roles:       map[string]struct{}{},
		Permissions: map[string]struct{}{},
	}
}

// HasRole reports whether the user holds the role name.
func (b Bindings) HasRole(name string) bool {
	_, ok := b.Roles[name]
	return ok
}

// HasPermission reports whether the user holds the permission key.
func (b Bindings) HasPermission(key string) bool {
	_, ok := b.Permissions[key]
	return ok
}

// IsEmpty reports whether the user has no bindings at all.
func (b Bindings) IsEmpty() bool {
	return len(b.Roles) == 0 && len(b.Permissions) == 0
}
