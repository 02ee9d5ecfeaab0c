package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthRequests tracks auth requests by type (register, login, logout) and status.
	AuthRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Total number of auth requests by type and status",
		},
		[]string{"type", "status"},
	)

	// AuthLatency tracks the latency of auth operations.
	AuthLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auth_latency_seconds",
			Help:    "Latency of auth operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// TokenErrors tracks JWT validation failures by kind.
	TokenErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_errors_total",
			Help: "Total number of token validation errors by type",
		},
		[]string{"error_type"},
	)

	// AvatarUploads tracks avatar uploads by outcome.
	AvatarUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_uploads_total",
			Help: "Total number of avatar uploads by status",
		},
		[]string{"status"},
	)
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Status returns StatusSuccess for a nil error and StatusFailure otherwise.
func Status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
