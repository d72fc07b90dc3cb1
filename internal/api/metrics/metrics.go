// Package metrics defines and registers all custom Prometheus metrics for the
// LAN chat server. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on import and
// exposed by the admin HTTP API under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lanchat"

// ── Connection metrics ────────────────────────────────────────────────────────

// ConnectionsAcceptedTotal counts TCP connections accepted by the server.
var ConnectionsAcceptedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_accepted_total",
		Help:      "Total number of TCP connections accepted.",
	},
)

// SessionsActive tracks the number of authenticated sessions in the registry.
var SessionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Current number of authenticated sessions.",
	},
)

// LoginAttemptsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials", "malformed" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ConnectionsClosedTotal counts handler teardowns.
// Label:
//   - reason: "eof", "protocol_error", "network_error", "login_failed",
//     "login_timeout" or "server_stop"
var ConnectionsClosedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_closed_total",
		Help:      "Total number of closed connections, by reason.",
	},
	[]string{"reason"},
)

// ── Broadcast metrics ─────────────────────────────────────────────────────────

// BroadcastsTotal counts broadcasts.
// Label:
//   - kind: "chat" or "system"
var BroadcastsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_total",
		Help:      "Total number of broadcasts, by kind.",
	},
	[]string{"kind"},
)

// DeliveryFailuresTotal counts per-recipient delivery failures.
var DeliveryFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_failures_total",
		Help:      "Total number of frames that could not be queued for a recipient.",
	},
)

// StorageErrorsTotal counts failed store operations.
// Label:
//   - op: "save_message", "recent_messages", "get_user", "add_user"
var StorageErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_errors_total",
		Help:      "Total number of failed storage operations, by operation.",
	},
	[]string{"op"},
)

// BroadcastDuration measures persistence plus fan-out of a single broadcast.
var BroadcastDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "broadcast_duration_seconds",
		Help:      "Duration of a broadcast from timestamping to the last enqueue.",
		Buckets:   prometheus.DefBuckets,
	},
)
