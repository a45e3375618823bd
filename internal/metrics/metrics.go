// Package metrics provides Prometheus collectors for completions, ledger updates and HTTP traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ytlearn"

// CompletionTransitions counts completion flag changes that produced a ledger event.
var CompletionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "completion_transitions_total",
	Help:      "Video completion flag changes, by event kind.",
}, []string{"kind"})

// CompletionNoops counts completion requests that left the flag as it was.
var CompletionNoops = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "completion_noops_total",
	Help:      "Completion requests that did not change the flag.",
})

// OutboxApplied counts ledger events applied, by kind.
var OutboxApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "outbox_applied_total",
	Help:      "Outbox events applied to the ledger.",
}, []string{"kind"})

// OutboxFailures counts failed attempts, by whether the event will be retried.
var OutboxFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "outbox_failures_total",
	Help:      "Failed outbox event applications.",
}, []string{"outcome"})

// OutboxLag tracks the delay between a completion and its ledger update.
var OutboxLag = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "outbox_lag_seconds",
	Help:      "Seconds from event occurrence to ledger application.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
})

// StreakDecays counts streaks reset by the inactivity check.
var StreakDecays = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "streak_decays_total",
	Help:      "Streaks reset after inactivity.",
})

// PlaylistResets counts playlist changes that wiped progress.
var PlaylistResets = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "playlist_resets_total",
	Help:      "Playlist changes that cleared progress.",
})

// HTTPRequests counts requests by route pattern, method and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "http_requests_total",
	Help:      "HTTP requests handled.",
}, []string{"route", "method", "code"})
