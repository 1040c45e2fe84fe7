package pg

import (
	"context"
	"errors"
	"fmt"

	"authhub.org/internal/rbac"
)

var _ rbac.BindingStore = (*Store)(nil)

func (s *Store) UserRoles(ctx context.Context, userID string) ([]rbac.UserRole, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select user_id, role_id, assigned_at
		from user_roles
		where user_id = $1
		order by assigned_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rbac.UserRole
	for rows.Next() {
		var ur rbac.UserRole
		if err := rows.Scan(&ur.UserID, &ur.RoleID, &ur.AssignedAt); err != nil {
			return nil, err
		}
		result = append(result, ur)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) RolesByIDs(ctx context.Context, roleIDs []string) ([]rbac.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if len(roleIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		select id, name, coalesce(description, ''), coalesce(scope, ''), deleted, created_at, updated_at
		from roles
		where deleted = false and id in (%s)
		order by name
	`, placeholders(1, len(roleIDs)))
	rows, err := s.db.QueryContext(ctx, query, toArgs(roleIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rbac.Role
	for rows.Next() {
		var r rbac.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Scope, &r.Deleted, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) RolePermissions(ctx context.Context, roleIDs []string) ([]rbac.RolePermission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if len(roleIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		select role_id, permission_id, granted_at
		from role_permissions
		where role_id in (%s)
		order by granted_at
	`, placeholders(1, len(roleIDs)))
	rows, err := s.db.QueryContext(ctx, query, toArgs(roleIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rbac.RolePermission
	for rows.Next() {
		var rp rbac.RolePermission
		if err := rows.Scan(&rp.RoleID, &rp.PermissionID, &rp.GrantedAt); err != nil {
			return nil, err
		}
		result = append(result, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) PermissionsByIDs(ctx context.Context, permissionIDs []string) ([]rbac.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if len(permissionIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		select id, key, coalesce(description, ''), coalesce(type, ''), deleted, created_at
		from permissions
		where deleted = false and id in (%s)
		order by key
	`, placeholders(1, len(permissionIDs)))
	rows, err := s.db.QueryContext(ctx, query, toArgs(permissionIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Description, &p.Type, &p.Deleted, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
