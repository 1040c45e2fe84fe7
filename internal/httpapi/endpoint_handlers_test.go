package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"authhub.org/internal/endpoint"
)

type memoryEndpointStore struct {
	rows map[string]endpoint.Permission
}

func newMemoryEndpointStore() *memoryEndpointStore {
	return &memoryEndpointStore{rows: map[string]endpoint.Permission{}}
}

func (m *memoryEndpointStore) ListActive(_ context.Context, service string) ([]endpoint.Permission, error) {
	var out []endpoint.Permission
	for _, row := range m.rows {
		if row.Deleted {
			continue
		}
		if service != "" && !strings.EqualFold(row.Service, service) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *memoryEndpointStore) Upsert(_ context.Context, row endpoint.Permission) (endpoint.Permission, error) {
	for id, existing := range m.rows {
		if strings.EqualFold(existing.Service, row.Service) &&
			existing.Pattern.String() == row.Pattern.String() &&
			existing.Method == row.Method {
			updated := existing.WithPolicy(row.Description, row.Public,
				row.RequiredPermissions, row.RequiredRoles, row.UpdatedAt)
			m.rows[id] = updated
			return updated, nil
		}
	}
	m.rows[row.ID] = row
	return row, nil
}

func (m *memoryEndpointStore) SoftDelete(_ context.Context, id string) error {
	row, ok := m.rows[id]
	if !ok || row.Deleted {
		return endpoint.ErrNotFound
	}
	row.Deleted = true
	m.rows[id] = row
	return nil
}

func newAdminAPI(t *testing.T) (*API, *memoryEndpointStore, *endpoint.LiveMatcher) {
	t.Helper()
	store := newMemoryEndpointStore()
	matcher := endpoint.NewLiveMatcher(nil)
	api, _ := newTestAPI(t, newMemoryRegistry(), staticResolver{},
		WithEndpointAdmin(store, matcher))
	return api, store, matcher
}

func asService(req *http.Request) *http.Request {
	req.Header.Set("X-Service-Name", "billing-service")
	req.Header.Set("X-Service-Token", "s3cret")
	return req
}

func TestEndpointUpsertRequiresServiceAuth(t *testing.T) {
	api, _, _ := newAdminAPI(t)

	body := `{"service":"user-service","pattern":"/api/v1/users/{id}","method":"GET"}`
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/endpoints", strings.NewReader(body)))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestEndpointUpsertReloadsMatcher(t *testing.T) {
	api, _, matcher := newAdminAPI(t)

	if _, err := matcher.Match("user-service", "/api/v1/users/42", endpoint.MethodGet); err == nil {
		t.Fatal("expected no mapping before the upsert")
	}

	body := `{"service":"user-service","pattern":"/api/v1/users/{id}","method":"GET","required_roles":["ADMIN"]}`
	rec := httptest.NewRecorder()
	req := asService(httptest.NewRequest(http.MethodPut, "/v1/endpoints", strings.NewReader(body)))
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp endpointResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" || resp.Pattern != "/api/v1/users/{id}" {
		t.Errorf("unexpected response: %+v", resp)
	}

	perm, err := matcher.Match("user-service", "/api/v1/users/42", endpoint.MethodGet)
	if err != nil {
		t.Fatalf("Match after upsert: %v", err)
	}
	if perm.ID != resp.ID {
		t.Errorf("matcher row = %s, want %s", perm.ID, resp.ID)
	}
}

func TestEndpointUpsertBumpsVersion(t *testing.T) {
	api, _, _ := newAdminAPI(t)

	put := func(body string) endpointResponse {
		t.Helper()
		rec := httptest.NewRecorder()
		req := asService(httptest.NewRequest(http.MethodPut, "/v1/endpoints", strings.NewReader(body)))
		api.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var resp endpointResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp
	}

	first := put(`{"service":"user-service","pattern":"/api/v1/users","method":"POST","required_permissions":["user:write"]}`)
	second := put(`{"service":"user-service","pattern":"/api/v1/users","method":"POST","required_permissions":["user:write","user:admin"]}`)

	if second.ID != first.ID {
		t.Errorf("upsert created a new row: %s vs %s", second.ID, first.ID)
	}
	if second.Version != first.Version+1 {
		t.Errorf("version = %d, want %d", second.Version, first.Version+1)
	}
}

func TestEndpointDelete(t *testing.T) {
	api, _, matcher := newAdminAPI(t)

	body := `{"service":"user-service","pattern":"/api/v1/users/{id}","method":"DELETE","required_roles":["ADMIN"]}`
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, asService(httptest.NewRequest(http.MethodPut, "/v1/endpoints", strings.NewReader(body))))
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d", rec.Code)
	}
	var created endpointResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, asService(httptest.NewRequest(http.MethodDelete, "/v1/endpoints/"+created.ID, nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if _, err := matcher.Match("user-service", "/api/v1/users/42", endpoint.MethodDelete); err == nil {
		t.Error("expected mapping to disappear after delete")
	}

	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, asService(httptest.NewRequest(http.MethodDelete, "/v1/endpoints/"+created.ID, nil)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestEndpointList(t *testing.T) {
	api, _, _ := newAdminAPI(t)

	body := `{"service":"user-service","pattern":"/api/v1/health","method":"GET","public":true}`
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, asService(httptest.NewRequest(http.MethodPut, "/v1/endpoints", strings.NewReader(body))))
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, asService(httptest.NewRequest(http.MethodGet, "/v1/endpoints?service=user-service", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed struct {
		Endpoints []endpointResponse `json:"endpoints"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(listed.Endpoints) != 1 || !listed.Endpoints[0].Public {
		t.Errorf("unexpected listing: %+v", listed.Endpoints)
	}
}
