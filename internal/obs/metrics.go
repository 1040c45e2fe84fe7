package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by every handler.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Authorization pipeline metrics.
var (
	authzDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization decisions by outcome code.",
		},
		[]string{"outcome"},
	)

	rateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the distributed rate limiter.",
		},
		[]string{"type"},
	)

	blacklistSweepRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blacklist_sweep_removed_total",
		Help: "Expired blacklist entries removed by the sweeper.",
	})

	blacklistSweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "blacklist_sweep_duration_seconds",
		Help:    "Duration of a full sweep run.",
		Buckets: prometheus.DefBuckets,
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		authzDecisionsTotal, rateLimitRejectionsTotal,
		blacklistSweepRemoved, blacklistSweepDuration,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDecision records a single authorization decision outcome.
func ObserveDecision(outcome string) {
	authzDecisionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitRejection records a rejection for the given rule type.
func ObserveRateLimitRejection(ruleType string) {
	rateLimitRejectionsTotal.WithLabelValues(ruleType).Inc()
}

// ObserveSweep records the result of one sweep run.
func ObserveSweep(removed int, elapsed time.Duration) {
	blacklistSweepRemoved.Add(float64(removed))
	blacklistSweepDuration.Observe(elapsed.Seconds())
}

// knownPaths is the fixed route set; anything else collapses into a single
// label value so scrapes stay bounded no matter what clients probe.
var knownPaths = map[string]struct{}{
	"/":                      {},
	"/healthz":               {},
	"/readyz":                {},
	"/metrics":               {},
	"/.well-known/jwks.json": {},
	"/v1/authz/decisions":    {},
	"/v1/tokens":             {},
	"/v1/tokens/revoke":      {},
	"/v1/endpoints":          {},
}

// CanonicalPath normalizes a request path into a bounded metric label.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if _, ok := knownPaths[p]; ok {
		return p
	}
	if rest, ok := strings.CutPrefix(p, "/v1/endpoints/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/v1/endpoints/:id"
	}
	return "other"
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
