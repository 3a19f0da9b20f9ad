package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Gateway metrics
	ActiveConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	BroadcastsTotal   *prometheus.CounterVec
	DroppedSends      prometheus.Counter
	IntentErrors      *prometheus.CounterVec

	// Store metrics
	RevisionRetries prometheus.Counter
	CodeGenRetries  prometheus.Counter
	QueueOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_active_connections",
			Help:      "Current number of open websocket connections",
		}),
		ActiveRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_active_rooms",
			Help:      "Current number of rooms with at least one subscriber",
		}),
		BroadcastsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_broadcasts_total",
			Help:      "Total number of room broadcasts by event type",
		}, []string{"event"}),
		DroppedSends: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_dropped_sends_total",
			Help:      "Total number of events dropped for slow or closed clients",
		}),
		IntentErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_intent_errors_total",
			Help:      "Total number of failed inbound intents by type",
		}, []string{"intent"}),
		RevisionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_revision_retries_total",
			Help:      "Total number of compare-and-swap retries on queue writes",
		}),
		CodeGenRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_code_generation_retries_total",
			Help:      "Total number of queue code collisions requiring regeneration",
		}),
		QueueOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_operations_total",
			Help:      "Total number of queue mutations by operation",
		}, []string{"operation"}),
	}
}
