package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"authhub.org/internal/endpoint"
)

var _ endpoint.Store = (*Store)(nil)

func (s *Store) ListActive(ctx context.Context, service string) ([]endpoint.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	query := `
		select id, service, pattern, method, coalesce(description, ''), public,
		       required_permissions, required_roles, version, deleted, created_at, updated_at
		from endpoint_permissions
		where deleted = false
	`
	args := []any{}
	if strings.TrimSpace(service) != "" {
		query += ` and service = $1`
		args = append(args, strings.TrimSpace(service))
	}
	query += ` order by service, pattern`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []endpoint.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) Upsert(ctx context.Context, row endpoint.Permission) (endpoint.Permission, error) {
	if s.db == nil {
		return endpoint.Permission{}, errors.New("database connection unavailable")
	}
	out := s.db.QueryRowContext(ctx, `
		insert into endpoint_permissions
			(id, service, pattern, method, description, public,
			 required_permissions, required_roles, version, deleted, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, 0, false, $9, $9)
		on conflict (service, pattern, method) do update set
			description          = excluded.description,
			public               = excluded.public,
			required_permissions = excluded.required_permissions,
			required_roles       = excluded.required_roles,
			version              = endpoint_permissions.version + 1,
			deleted              = false,
			updated_at           = excluded.updated_at
		returning id, service, pattern, method, coalesce(description, ''), public,
		          required_permissions, required_roles, version, deleted, created_at, updated_at
	`, row.ID, row.Service, row.Pattern.String(), string(row.Method), row.Description, row.Public,
		joinSet(row.RequiredPermissions), joinSet(row.RequiredRoles), row.CreatedAt)

	p, err := scanPermission(out)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return endpoint.Permission{}, fmt.Errorf("pg: endpoint upsert: %w", err)
		}
		return endpoint.Permission{}, err
	}
	return p, nil
}

func (s *Store) SoftDelete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update endpoint_permissions
		set deleted = true, version = version + 1, updated_at = now()
		where id = $1 and deleted = false
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return endpoint.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPermission(row rowScanner) (endpoint.Permission, error) {
	var (
		id, service, rawPattern, rawMethod, description string
		public, deleted                                 bool
		rawPerms, rawRoles                              sql.NullString
		version                                         int64
		createdAt, updatedAt                            sql.NullTime
	)
	if err := row.Scan(&id, &service, &rawPattern, &rawMethod, &description, &public,
		&rawPerms, &rawRoles, &version, &deleted, &createdAt, &updatedAt); err != nil {
		return endpoint.Permission{}, err
	}
	pattern, err := endpoint.NewPattern(rawPattern)
	if err != nil {
		return endpoint.Permission{}, fmt.Errorf("pg: stored pattern %q: %w", rawPattern, err)
	}
	method, err := endpoint.ParseMethod(rawMethod)
	if err != nil {
		return endpoint.Permission{}, fmt.Errorf("pg: stored method %q: %w", rawMethod, err)
	}
	return endpoint.ReconstructPermission(id, service, pattern, method, description,
		public, splitSet(rawPerms.String), splitSet(rawRoles.String), version, deleted,
		createdAt.Time, updatedAt.Time)
}

// Sets are stored as comma-joined text; ReconstructPermission rejects values
// containing commas, so the encoding is unambiguous.
func joinSet(values []string) string { return strings.Join(values, ",") }

func splitSet(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
