package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MutationGateHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rapp_mutation_gate_held",
		Help: "1 if the runtime mutation gate is currently held, 0 otherwise.",
	})
	BusyRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rapp_busy_rejections_total",
		Help: "Total number of requests rejected with BUSY while the mutation gate was held.",
	})
	LogViewsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rapp_log_views_active",
		Help: "Number of live log-view subprocesses currently running.",
	})
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rapp_reconciliations_total",
		Help: "Total number of PUSH reconciliations by outcome.",
	}, []string{"outcome"})
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rapp_updates_total",
		Help: "Total number of pull-and-update cycles by outcome.",
	}, []string{"outcome"})
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rapp_update_duration_seconds",
		Help:    "Duration of pull-and-update cycles.",
		Buckets: prometheus.DefBuckets,
	})
	RemoteAccessExpiries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rapp_remote_access_expiries_total",
		Help: "Total number of remote-access windows reaped for expiry.",
	})
	ConnectorReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rapp_connector_reconnects_total",
		Help: "Total number of reconnect attempts to the controller.",
	})
	AuditDriftTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rapp_audit_drift_total",
		Help: "Total number of invariant-drift findings reported by the audit sweep.",
	})
)
