package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"authhub.org/internal/endpoint"
)

func permissionColumns() []string {
	return []string{"id", "service", "pattern", "method", "description", "public",
		"required_permissions", "required_roles", "version", "deleted", "created_at", "updated_at"}
}

func TestListActiveForService(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("select id, service, pattern, .*from endpoint_permissions.*deleted = false and service =").
		WithArgs("user-service").
		WillReturnRows(sqlmock.NewRows(permissionColumns()).
			AddRow("ep-1", "user-service", "/api/v1/users/{id}", "GET", "read a user", false,
				"user:read", "ADMIN", 3, false, now, now).
			AddRow("ep-2", "user-service", "/api/v1/health", "GET", "", true,
				"", "", 0, false, now, now))

	got, err := store.ListActive(context.Background(), "user-service")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	first := got[0]
	if first.Pattern.String() != "/api/v1/users/{id}" || first.Method != endpoint.MethodGet {
		t.Errorf("unexpected row: %+v", first)
	}
	if len(first.RequiredPermissions) != 1 || first.RequiredPermissions[0] != "user:read" {
		t.Errorf("unexpected required permissions: %v", first.RequiredPermissions)
	}
	if !got[1].Public {
		t.Errorf("second row should be public")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestListActiveAllServices(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, service, pattern, .*from endpoint_permissions.*deleted = false").
		WillReturnRows(sqlmock.NewRows(permissionColumns()))

	got, err := store.ListActive(context.Background(), "")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if got != nil {
		t.Errorf("expected no rows, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestUpsertReturnsStoredRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, time.February, 1, 8, 0, 0, 0, time.UTC)

	pat, err := endpoint.NewPattern("/api/v1/orders/**")
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}
	row, err := endpoint.NewPermission("order-service", pat, endpoint.MethodPost,
		"create orders", false, []string{"order:write"}, []string{"ADMIN"}, now)
	if err != nil {
		t.Fatalf("NewPermission: %v", err)
	}

	mock.ExpectQuery("insert into endpoint_permissions").
		WithArgs(row.ID, "order-service", "/api/v1/orders/**", "POST", "create orders", false,
			"order:write", "ADMIN", now).
		WillReturnRows(sqlmock.NewRows(permissionColumns()).
			AddRow(row.ID, "order-service", "/api/v1/orders/**", "POST", "create orders", false,
				"order:write", "ADMIN", 4, false, now, now))

	got, err := store.Upsert(context.Background(), row)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got.Version != 4 {
		t.Errorf("version = %d, want 4", got.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestSoftDelete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update endpoint_permissions.*set deleted = true").
		WithArgs("ep-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SoftDelete(context.Background(), "ep-1"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestSoftDeleteMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update endpoint_permissions.*set deleted = true").
		WithArgs("ep-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.SoftDelete(context.Background(), "ep-missing"); !errors.Is(err, endpoint.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
