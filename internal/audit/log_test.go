package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"authhub.org/internal/authz"
	"authhub.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithCorrelationID(ctx, "corr-123")
	ctx = authz.ContextWithIdentity(ctx, authz.Identity{UserID: "user-42", Roles: []string{"ADMIN"}})

	if err := LogEvent(ctx, "token.revoked", map[string]any{"jti": "jti-9", "reason": "LOGOUT"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "token.revoked" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["correlation_id"] != "corr-123" {
		t.Fatalf("unexpected correlation id: %v", entry["correlation_id"])
	}
	if entry["user_id"] != "user-42" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok {
		t.Fatalf("fields missing: %v", entry["fields"])
	}
	if fields["jti"] != "jti-9" {
		t.Fatalf("unexpected jti field: %v", fields["jti"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for blank event name")
	}
}

func TestLogEventPrefersOriginalUser(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := authz.ContextWithIdentity(context.Background(), authz.Identity{
		ServiceName:    "billing-service",
		OriginalUserID: "user-7",
	})
	if err := LogEvent(ctx, "decision.denied", nil); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["user_id"] != "user-7" {
		t.Fatalf("expected original user id, got %v", entry["user_id"])
	}
	if entry["service"] != "billing-service" {
		t.Fatalf("expected service name, got %v", entry["service"])
	}
}
