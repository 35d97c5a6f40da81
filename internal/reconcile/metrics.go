package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	changesAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hangoutsync",
			Subsystem: "reconcile",
			Name:      "changes_applied_total",
			Help:      "Diff events applied to a cache store.",
		},
		[]string{"collection", "kind"},
	)

	changesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hangoutsync",
			Subsystem: "reconcile",
			Name:      "changes_skipped_total",
			Help:      "Diff events dropped because the document did not decode.",
		},
		[]string{"collection"},
	)

	subscriptionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hangoutsync",
			Subsystem: "reconcile",
			Name:      "subscription_errors_total",
			Help:      "Live subscriptions that ended with a transport error.",
		},
		[]string{"collection"},
	)

	attachedSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hangoutsync",
			Subsystem: "reconcile",
			Name:      "attached_subscriptions",
			Help:      "Live subscriptions currently attached.",
		},
		[]string{"collection"},
	)
)
