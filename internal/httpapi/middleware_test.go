package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"authhub.org/internal/obs"
)

func TestRateLimitExceeded(t *testing.T) {
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CorrelationID(RateLimit(base, 1, 1))

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req.Clone(context.Background()))
	if rr1.Code != http.StatusOK {
		t.Fatalf("expected first call 200, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req.Clone(context.Background()))
	if rr2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr2.Code)
	}
}

func TestRateLimitConcurrentClients(t *testing.T) {
	// Distinct IPs hammer the limiter at once; the bucket map must hold up
	// under the race detector.
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimit(base, 10, 10)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/limited", nil)
			req.RemoteAddr = fmt.Sprintf("10.0.%d.%d:1234", i/256, i%256)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, rr.Code)
			}
		}(i)
	}
	wg.Wait()
}

func TestCorrelationIDPropagated(t *testing.T) {
	var seen string
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-Id", "corr-from-gateway")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen != "corr-from-gateway" {
		t.Fatalf("context correlation id = %q", seen)
	}
	if rr.Header().Get("X-Correlation-Id") != "corr-from-gateway" {
		t.Fatalf("response header correlation id = %q", rr.Header().Get("X-Correlation-Id"))
	}
}

func TestCorrelationIDMintedWhenAbsent(t *testing.T) {
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rr.Header().Get("X-Correlation-Id") == "" {
		t.Fatal("expected minted correlation id")
	}
}

func TestLoggingJSONEmitsStructuredEntry(t *testing.T) {
	logger := obs.Logger()
	origWriter := logger.Writer()
	logger.SetFlags(0)

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(origWriter)

	handler := CorrelationID(LoggingJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/log-test", nil)
	req.RemoteAddr = "127.0.0.1:1234"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req.Clone(context.Background()))

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log is not valid JSON: %v", err)
	}
	for _, key := range []string{"ts", "level", "msg", "correlation_id", "method", "path", "status", "duration_ms"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected key %q in log entry", key)
		}
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected status: %v", entry["status"])
	}
}

func TestIdentityFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-User-Id", "user-42")
	h.Set("X-Tenant-Id", "tenant-1")
	h.Set("X-User-Roles", "ADMIN, AUDITOR")
	h.Set("X-User-Permissions", "user:read,user:write")
	h.Set("X-Service-Name", "billing-service")
	h.Set("X-Original-User-Id", "user-7")

	id := IdentityFromHeaders(h)
	if id.UserID != "user-42" || id.TenantID != "tenant-1" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if len(id.Roles) != 2 || id.Roles[1] != "AUDITOR" {
		t.Fatalf("roles not split: %v", id.Roles)
	}
	if len(id.Permissions) != 2 {
		t.Fatalf("permissions not split: %v", id.Permissions)
	}
	if id.ServiceName != "billing-service" || id.OriginalUserID != "user-7" {
		t.Fatalf("service fields lost: %+v", id)
	}

	out := http.Header{}
	EmitIdentityHeaders(out, id)
	if out.Get("X-User-Roles") != "ADMIN,AUDITOR" {
		t.Fatalf("emitted roles = %q", out.Get("X-User-Roles"))
	}
	if out.Get("X-Original-User-Id") != "user-7" {
		t.Fatalf("emitted original user = %q", out.Get("X-Original-User-Id"))
	}
}
