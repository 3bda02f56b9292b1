// Package metrics defines and registers all custom Prometheus metrics for the
// identity system. It is the single source of truth for metric names, labels,
// and help strings.
//
// Collectors are registered with the default registry through promauto when the
// package is imported; both binaries expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── RPC client metrics (gateway) ──────────────────────────────────────────────

// RPCCallsTotal counts outbound commands by outcome.
// Labels:
//   - command: the command tag (e.g. "login")
//   - outcome: "ok", "error" (service replied with an error), "timeout", "transport"
var RPCCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_calls_total",
		Help:      "Total number of RPC calls issued, by command and outcome.",
	},
	[]string{"command", "outcome"},
)

// RPCCallDuration measures the time between publishing a command and receiving its reply.
var RPCCallDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_call_duration_seconds",
		Help:      "Duration of RPC calls from publish to correlated reply.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"command"},
)

// RPCLateRepliesTotal counts replies that arrived after their caller stopped waiting.
var RPCLateRepliesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_late_replies_total",
		Help:      "Total number of replies dropped because no caller was waiting.",
	},
)

// ── RPC server metrics (identity service) ─────────────────────────────────────

// CommandsHandledTotal counts commands handled by the router.
// Labels:
//   - command: the command tag, or "unknown"
//   - status: the reply status code as a string ("200", "401", ...)
var CommandsHandledTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_handled_total",
		Help:      "Total number of commands handled, by command and reply status.",
	},
	[]string{"command", "status"},
)

// CommandDuration measures handler execution time.
var CommandDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "command_duration_seconds",
		Help:      "Duration of command handling from dequeue to reply publish.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"command"},
)

// WorkerQueueDepth tracks the number of commands waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var WorkerQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_queue_depth",
		Help:      "Current number of commands pending in each worker channel.",
	},
	[]string{"worker_id"},
)

// ── Token metrics ─────────────────────────────────────────────────────────────

// TokensIssuedTotal counts token pairs issued on login.
var TokensIssuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of access/refresh token pairs issued.",
	},
)

// TokenRefreshTotal counts access-token renewals.
// Labels:
//   - source: where the tracked refresh token was found: "cache" or "store"
//   - result: "ok" or "rejected"
var TokenRefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refresh_total",
		Help:      "Total number of refresh attempts, by lookup source and result.",
	},
	[]string{"source", "result"},
)
