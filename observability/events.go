package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics counts transactions applied by the local host.
type EventMetrics struct {
	applied *prometheus.CounterVec
	globals *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the metrics registry tracking applied transactions.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &EventMetrics{
			applied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shardeum",
				Subsystem: "events",
				Name:      "applied_total",
				Help:      "Count of applied transactions segmented by kind.",
			}, []string{"kind"}),
			globals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shardeum",
				Subsystem: "events",
				Name:      "global_txs_total",
				Help:      "Count of global internal transactions segmented by internal type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.applied, eventRegistry.globals)
	})
	return eventRegistry
}

// RecordApplied increments the applied counter for kind.
func (m *EventMetrics) RecordApplied(kind string) {
	if m == nil {
		return
	}
	m.applied.WithLabelValues(normalizeLabel(kind)).Inc()
}

// RecordGlobal increments the global transaction counter for the internal type name.
func (m *EventMetrics) RecordGlobal(internalType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(internalType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.globals.WithLabelValues(normalized).Inc()
}
