package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"authhub.org/internal/authz"
	"authhub.org/internal/obs"
)

type ctxKey string

const correlationIDKey ctxKey = "audit_correlation_id"

// WithCorrelationID attaches the correlation identifier to the context for
// audit logging.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// correlationIDFromContext extracts the correlation id from context if present.
func correlationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and user context.
// Revocations and authorization denials go through here so operators can
// reconstruct who was refused what, and when.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if cid := correlationIDFromContext(ctx); cid != "" {
		entry["correlation_id"] = cid
	}
	if userID, ok := authz.UserIDFromContext(ctx); ok {
		entry["user_id"] = userID
	}
	if id, ok := authz.IdentityFromContext(ctx); ok && id.ServiceName != "" {
		entry["service"] = id.ServiceName
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
