// Package telemetry provides application-level observability for the
// backoffice.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<INS_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint returns data in the Prometheus text
// exposition format and is intended to be scraped every 15–60 seconds. It is
// NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Lifecycle transition counters for claims and policies
//   - Single-use token redemption counters partitioned by outcome
//   - Login failure and account lockout counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/claims/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as resource IDs.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Lifecycle metrics — recorded by the claim and policy services on every
// committed transition.
//
// TransitionsTotal is a CounterVec with labels {resource, to}. "resource" is
// claim or policy, "to" is the target status. The label set is closed (status
// enums), so cardinality stays bounded.
//
// Example PromQL queries:
//   - Approval rate:     rate(lifecycle_transitions_total{resource="claim",to="APPROVED"}[1h])
//   - Transition volume: sum by (resource) (rate(lifecycle_transitions_total[5m]))
var TransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lifecycle_transitions_total",
		Help: "Total number of committed lifecycle transitions, by resource type and target status.",
	},
	[]string{"resource", "to"},
)

// Token ledger metrics.
//
// TokenRedemptionsTotal is a CounterVec with labels {kind, outcome}. Outcomes
// are ok, not_found, expired, already_used. A rising already_used rate is the
// signal for replayed reset links.
//
// Example PromQL queries:
//   - Replay attempts:  rate(token_redemptions_total{outcome="already_used"}[1h])
var TokenRedemptionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "token_redemptions_total",
		Help: "Total number of action token redemption attempts, by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

// Login security metrics.
//
// LoginFailuresTotal counts failed credential checks; AccountLockoutsTotal
// counts the failures that tripped a lockout. Alert when lockouts spike:
//
//	increase(account_lockouts_total[15m]) > 10
var (
	LoginFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "login_failures_total",
			Help: "Total number of failed login attempts.",
		},
	)

	AccountLockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "account_lockouts_total",
			Help: "Total number of account lockouts tripped by the failed-login threshold.",
		},
	)
)

// AuditShipDuration observes one delivery attempt of an audit batch to the
// configured external destination.
var AuditShipDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "audit_ship_duration_seconds",
		Help:    "Duration of a single audit log shipping attempt.",
		Buckets: prometheus.DefBuckets,
	},
)

// AuditShipErrorsTotal counts failed audit shipping attempts. An alert on
// increase(audit_ship_errors_total[30m]) > 3 catches destination outages.
var AuditShipErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "audit_ship_errors_total",
		Help: "Total number of failed audit log shipping attempts.",
	},
)

// DBOpenConnections is a Gauge that tracks the number of open connections
// currently held by the sql.DB connection pool. It is sampled every 30 seconds
// by StartDBStatsCollector rather than per-request to avoid the overhead of
// sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates the
// DBOpenConnections gauge. The goroutine exits cleanly when the database
// becomes unreachable, which happens when the application shuts down and
// defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
