package prometheus

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SE121-UIT/inventory-service/core/es"
	"github.com/SE121-UIT/inventory-service/core/metrics"
)

// esMetrics implements es.ESMetrics using Prometheus.
type esMetrics struct {
	storeAppendDuration  *prometheus.HistogramVec
	concurrencyConflicts *prometheus.CounterVec

	projectionEventDuration *prometheus.HistogramVec
	projectionEvents        *prometheus.CounterVec
	subscriptionLag         *prometheus.GaugeVec
	checkpointsSaved        *prometheus.CounterVec
}

// NewESMetrics creates a new Prometheus implementation of ESMetrics.
func NewESMetrics(reg prometheus.Registerer) es.ESMetrics {
	m := &esMetrics{
		storeAppendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inventory_es_store_append_duration_seconds",
			Help:    "Event store append latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"stream"}),

		concurrencyConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_es_concurrency_conflicts_total",
			Help: "Total number of optimistic lock failures",
		}, []string{"stream"}),

		projectionEventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inventory_es_projection_event_duration_seconds",
			Help:    "Event projection time in seconds",
			Buckets: defaultBuckets,
		}, []string{"event_type", "live"}),

		projectionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_es_projection_events_total",
			Help: "Total number of events projected",
		}, []string{"event_type", "live", "success"}),

		subscriptionLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inventory_es_subscription_lag",
			Help: "Subscription lag (positions behind the log head)",
		}, []string{"subscription"}),

		checkpointsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_es_checkpoints_saved_total",
			Help: "Total number of checkpoint saves",
		}, []string{"subscription"}),
	}

	reg.MustRegister(
		m.storeAppendDuration,
		m.concurrencyConflicts,
		m.projectionEventDuration,
		m.projectionEvents,
		m.subscriptionLag,
		m.checkpointsSaved,
	)

	return m
}

// streamKind collapses per-aggregate stream ids ("inventory-<id>") to the
// kind prefix so the label stays low-cardinality.
func streamKind(streamID string) string {
	if i := strings.IndexByte(streamID, '-'); i > 0 {
		return streamID[:i]
	}
	return streamID
}

func (m *esMetrics) StoreAppendDuration(streamID string) metrics.Timer {
	return newTimer(m.storeAppendDuration.WithLabelValues(streamKind(streamID)))
}

func (m *esMetrics) ConcurrencyConflict(streamID string) {
	m.concurrencyConflicts.WithLabelValues(streamKind(streamID)).Inc()
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (m *esMetrics) ProjectionEventDuration(eventType string, live bool) metrics.Timer {
	return newTimer(m.projectionEventDuration.WithLabelValues(eventType, boolToStr(live)))
}

func (m *esMetrics) ProjectionEventProcessed(eventType string, live bool, success bool) {
	m.projectionEvents.WithLabelValues(eventType, boolToStr(live), boolToStr(success)).Inc()
}

func (m *esMetrics) SubscriptionLag(subscriptionID string, lag int64) {
	m.subscriptionLag.WithLabelValues(subscriptionID).Set(float64(lag))
}

func (m *esMetrics) CheckpointSaved(subscriptionID string) {
	m.checkpointsSaved.WithLabelValues(subscriptionID).Inc()
}

var _ es.ESMetrics = (*esMetrics)(nil)
