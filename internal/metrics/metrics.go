package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "channel_subs"

var (
	// UpdatesTotal counts inbound Telegram updates by kind.
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bot",
		Name:      "updates_total",
		Help:      "Inbound Telegram updates by kind.",
	}, []string{"kind"})

	// PaymentsTotal counts successful payments by settlement outcome.
	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "payments_total",
		Help:      "Successful payments by settlement outcome.",
	}, []string{"outcome"})

	SettlementFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "ledger_write_failures_total",
		Help:      "Payments whose ledger write failed after all attempts.",
	})

	FailedSettlementsQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "failed_queue_size",
		Help:      "Failed settlements waiting for the retry worker.",
	})

	// ReconcileActionsTotal counts reminders and revocations per result.
	ReconcileActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "actions_total",
		Help:      "Reconciliation actions by action and result.",
	}, []string{"action", "result"})

	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full reconciliation pass.",
		Buckets:   prometheus.DefBuckets,
	})
)
