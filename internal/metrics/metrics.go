// Package metrics exposes the package-level Prometheus collectors every
// long-lived component registers into on import, matching the teacher's
// internal/metrics (promauto global vars, no registry threading). Themed
// from Sentinel's single-host update-scan metrics to Core's fleet-wide
// monitor/dispatch/alert surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ServersMonitored is the number of enabled Servers the Status Cache
	// monitor loop (C2) polls each tick.
	ServersMonitored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "komodore_servers_monitored",
		Help: "Number of enabled servers polled by the status cache monitor.",
	})

	// MonitorTickDuration times one full monitor loop pass across every
	// enabled server (C2).
	MonitorTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "komodore_monitor_tick_duration_seconds",
		Help:    "Duration of one status cache monitor tick across all servers.",
		Buckets: prometheus.DefBuckets,
	})

	// MonitorTicksTotal counts completed monitor ticks.
	MonitorTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "komodore_monitor_ticks_total",
		Help: "Total number of status cache monitor ticks performed.",
	})

	// UpdatesTotal counts finalized Updates by operation and success.
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "komodore_updates_total",
		Help: "Total number of finalized updates by operation and outcome.",
	}, []string{"operation", "status"})

	// UpdateDuration times a single Execute call start-to-finalize (C6).
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "komodore_update_duration_seconds",
		Help:    "Duration of a single dispatched update operation.",
		Buckets: prometheus.DefBuckets,
	})

	// QueuedUpdates is the number of Updates currently InProgress (busy
	// flags held in internal/actionstate).
	QueuedUpdates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "komodore_queued_updates",
		Help: "Number of updates currently in progress.",
	})

	// AlertsTotal counts alerts opened/resolved by kind.
	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "komodore_alerts_total",
		Help: "Total number of alerts opened or resolved, by kind and transition.",
	}, []string{"kind", "transition"})

	// AlerterSendErrors counts per-backend alerter delivery failures
	// (internal/alerter's dispatch loop logs-and-continues on these).
	AlerterSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "komodore_alerter_send_errors_total",
		Help: "Total number of alerter backend delivery failures, by backend.",
	}, []string{"backend"})

	// SchedulerFiresTotal counts scheduled-operation dispatches (C8).
	SchedulerFiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "komodore_scheduler_fires_total",
		Help: "Total number of scheduled operations dispatched.",
	})

	// SyncApplyDuration times one Sync Reconciler apply pass (C9).
	SyncApplyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "komodore_sync_apply_duration_seconds",
		Help:    "Duration of a sync reconciler apply pass.",
		Buckets: prometheus.DefBuckets,
	})

	// PruneReclaimedBytes is registered for image space reclaimed by
	// pruning (C12); no code path in this repository increments it.
	PruneReclaimedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "komodore_prune_reclaimed_bytes_total",
		Help: "Total bytes reclaimed by server image pruning.",
	})
)
