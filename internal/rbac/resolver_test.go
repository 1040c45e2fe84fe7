package rbac

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeBindingStore struct {
	userRoles map[string][]UserRole
	roles     map[string]Role
	grants    map[string][]RolePermission
	perms     map[string]Permission

	failUserRoles error
	failRolePerms error
}

func (f *fakeBindingStore) UserRoles(_ context.Context, userID string) ([]UserRole, error) {
	if f.failUserRoles != nil {
		return nil, f.failUserRoles
	}
	return f.userRoles[userID], nil
}

func (f *fakeBindingStore) RolesByIDs(_ context.Context, roleIDs []string) ([]Role, error) {
	var out []Role
	for _, id := range roleIDs {
		if r, ok := f.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeBindingStore) RolePermissions(_ context.Context, roleIDs []string) ([]RolePermission, error) {
	if f.failRolePerms != nil {
		return nil, f.failRolePerms
	}
	var out []RolePermission
	for _, id := range roleIDs {
		out = append(out, f.grants[id]...)
	}
	return out, nil
}

func (f *fakeBindingStore) PermissionsByIDs(_ context.Context, permissionIDs []string) ([]Permission, error) {
	var out []Permission
	for _, id := range permissionIDs {
		if p, ok := f.perms[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestResolverAggregatesRolesAndPermissions(t *testing.T) {
	now := time.Now()
	store := &fakeBindingStore{
		userRoles: map[string][]UserRole{
			"u-1": {
				{UserID: "u-1", RoleID: "r-admin", AssignedAt: now},
				{UserID: "u-1", RoleID: "r-auditor", AssignedAt: now},
				{UserID: "u-1", RoleID: "r-admin", AssignedAt: now}, // duplicate assignment
			},
		},
		roles: map[string]Role{
			"r-admin":   {ID: "r-admin", Name: "ADMIN"},
			"r-auditor": {ID: "r-auditor", Name: "AUDITOR"},
		},
		grants: map[string][]RolePermission{
			"r-admin": {
				{RoleID: "r-admin", PermissionID: "p-read"},
				{RoleID: "r-admin", PermissionID: "p-write"},
			},
			"r-auditor": {
				{RoleID: "r-auditor", PermissionID: "p-read"},
			},
		},
		perms: map[string]Permission{
			"p-read":  {ID: "p-read", Key: "user:read"},
			"p-write": {ID: "p-write", Key: "user:write"},
		},
	}
	r, err := NewResolver(store)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	got, err := r.Resolve(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, name := range []string{"ADMIN", "AUDITOR"} {
		if !got.HasRole(name) {
			t.Errorf("expected role %s", name)
		}
	}
	for _, key := range []string{"user:read", "user:write"} {
		if !got.HasPermission(key) {
			t.Errorf("expected permission %s", key)
		}
	}
	if len(got.Roles) != 2 || len(got.Permissions) != 2 {
		t.Errorf("unexpected sizes: roles=%d perms=%d", len(got.Roles), len(got.Permissions))
	}
}

func TestResolverSkipsDeletedRolesAndPermissions(t *testing.T) {
	store := &fakeBindingStore{
		userRoles: map[string][]UserRole{
			"u-1": {{UserID: "u-1", RoleID: "r-old"}},
		},
		roles: map[string]Role{
			"r-old": {ID: "r-old", Name: "LEGACY", Deleted: true},
		},
		grants: map[string][]RolePermission{
			"r-old": {{RoleID: "r-old", PermissionID: "p-old"}},
		},
		perms: map[string]Permission{
			"p-old": {ID: "p-old", Key: "legacy:use", Deleted: true},
		},
	}
	r, _ := NewResolver(store)

	got, err := r.Resolve(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("expected empty bindings, got roles=%v perms=%v", got.Roles, got.Permissions)
	}
}

func TestResolverNoAssignments(t *testing.T) {
	r, _ := NewResolver(&fakeBindingStore{})

	got, err := r.Resolve(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("expected empty bindings for unassigned user")
	}
	if got.Roles == nil || got.Permissions == nil {
		t.Errorf("expected non-nil sets")
	}
}

func TestResolverBlankUserID(t *testing.T) {
	r, _ := NewResolver(&fakeBindingStore{})

	if _, err := r.Resolve(context.Background(), "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResolverPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	r, _ := NewResolver(&fakeBindingStore{failUserRoles: boom})

	if _, err := r.Resolve(context.Background(), "u-1"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
