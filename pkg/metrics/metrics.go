package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FlowOperations counts engine operations by name and outcome. Outcomes:
// ok, rejected (validation), conflict (lost race), sign_failed, error.
var FlowOperations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signflow",
		Name:      "flow_operations_total",
		Help:      "Signature flow engine operations by outcome.",
	},
	[]string{"operation", "outcome"},
)

// NotificationDispatches counts notification requests handed to the
// dispatcher, by result.
var NotificationDispatches = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signflow",
		Name:      "notification_dispatches_total",
		Help:      "Notification dispatch attempts by result.",
	},
	[]string{"result"},
)
