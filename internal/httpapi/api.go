package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"authhub.org/internal/audit"
	"authhub.org/internal/authz"
	"authhub.org/internal/blacklist"
	"authhub.org/internal/endpoint"
	"authhub.org/internal/obs"
	"authhub.org/internal/token"
)

// ReadyProbe checks the external stores the decision pipeline depends on.
type ReadyProbe struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// API is the HTTP layer over the authorization core.
type API struct {
	mux        *http.ServeMux
	signer     *token.Signer
	verifier   *token.Verifier
	decider    *authz.Decider
	registry   blacklist.Registry
	readyProbe ReadyProbe
	version    string
	endpoints  endpoint.Store
	matcher    *endpoint.LiveMatcher
	// serviceTokens maps service name to its shared secret for
	// service-to-service calls.
	serviceTokens map[string]string
	edgeBurst     int
	edgeRate      int
	now           func() time.Time
}

// Option configures optional API behavior.
type Option func(*API)

// WithServiceTokens registers the shared secrets accepted from
// X-Service-Name/X-Service-Token pairs.
func WithServiceTokens(tokens map[string]string) Option {
	return func(a *API) { a.serviceTokens = tokens }
}

// WithEndpointAdmin exposes the endpoint permission admin surface. Writes go
// through store and the live matcher is reloaded so new rules apply without a
// restart.
func WithEndpointAdmin(store endpoint.Store, matcher *endpoint.LiveMatcher) Option {
	return func(a *API) {
		a.endpoints = store
		a.matcher = matcher
	}
}

// WithEdgeRateLimit enables the per-IP token bucket in front of every route.
// Zero values leave it off; the windowed per-rule limits in the decision
// pipeline apply either way.
func WithEdgeRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		a.edgeBurst = burst
		a.edgeRate = perSecond
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(a *API) {
		if fn != nil {
			a.now = fn
		}
	}
}

func New(signer *token.Signer, verifier *token.Verifier, decider *authz.Decider,
	registry blacklist.Registry, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		signer:     signer,
		verifier:   verifier,
		decider:    decider,
		registry:   registry,
		readyProbe: rp,
		version:    version,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/.well-known/jwks.json", a.handleJWKS)
	a.mux.HandleFunc("/v1/authz/decisions", a.handleDecision)
	a.mux.HandleFunc("/v1/tokens", a.handleTokenIssue)
	a.mux.HandleFunc("/v1/tokens/revoke", a.handleTokenRevoke)
	a.mux.HandleFunc("/v1/endpoints", a.handleEndpoints)
	a.mux.HandleFunc("/v1/endpoints/", a.handleEndpointByID)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withServiceAuth(h)
	h = withIdentity(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	if a.edgeBurst > 0 && a.edgeRate > 0 {
		h = RateLimit(h, a.edgeBurst, a.edgeRate)
	}
	h = LoggingJSON(h)
	h = CorrelationID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "authhub-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) handleJWKS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.signer == nil {
		writeJSON(w, http.StatusOK, token.KeySet{Keys: []token.JWK{}})
		return
	}
	writeJSON(w, http.StatusOK, a.signer.JWKS())
}

// reloadMatcher rebuilds the live matcher from the store after a write.
func (a *API) reloadMatcher(ctx context.Context) error {
	if a.matcher == nil {
		return nil
	}
	rows, err := a.endpoints.ListActive(ctx, "")
	if err != nil {
		return err
	}
	a.matcher.Reload(rows)
	return nil
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if cid := CorrelationIDFromContext(r.Context()); cid != "" {
		payload["correlation_id"] = cid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func auditEvent(r *http.Request, event string, fields map[string]any) {
	_ = audit.LogEvent(r.Context(), event, fields)
}
