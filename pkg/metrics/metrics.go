package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts records login attempts by outcome
	// (success|ua_denied|rate_limited|no_user|password_mismatch).
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiond_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// SessionsIssued counts issued sessions by kind (anonymous|authenticated).
	SessionsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiond_sessions_issued_total",
			Help: "Total number of sessions issued",
		},
		[]string{"kind"},
	)

	// SessionsRevoked counts revoked sessions.
	SessionsRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessiond_sessions_revoked_total",
			Help: "Total number of sessions revoked",
		},
	)

	// StoreDegraded reports whether the shared store adapter has flipped to
	// its in-memory fallback (1 = degraded).
	StoreDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessiond_store_degraded",
			Help: "Whether the session store is running on the in-memory fallback",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sessiond_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
