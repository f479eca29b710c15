package es

import "github.com/SE121-UIT/inventory-service/core/metrics"

// ESMetrics is the instrumentation surface of the event-sourcing pillar.
// Implementations must be thread-safe.
type ESMetrics interface {
	// Store operations
	StoreAppendDuration(streamID string) metrics.Timer
	ConcurrencyConflict(streamID string)

	// Subscription / projections
	ProjectionEventDuration(eventType string, live bool) metrics.Timer
	ProjectionEventProcessed(eventType string, live bool, success bool)
	SubscriptionLag(subscriptionID string, lag int64)
	CheckpointSaved(subscriptionID string)
}

type nopESMetrics struct{}

func (nopESMetrics) StoreAppendDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopESMetrics) ConcurrencyConflict(string)               {}

func (nopESMetrics) ProjectionEventDuration(string, bool) metrics.Timer { return metrics.NopTimer() }
func (nopESMetrics) ProjectionEventProcessed(string, bool, bool)        {}
func (nopESMetrics) SubscriptionLag(string, int64)                      {}
func (nopESMetrics) CheckpointSaved(string)                             {}

// NopESMetrics returns a no-op ESMetrics implementation.
func NopESMetrics() ESMetrics { return nopESMetrics{} }

// ESMetricsOption sets the metrics for ES components.
type ESMetricsOption struct{ m ESMetrics }

// WithMetrics sets the metrics implementation for ES components.
func WithMetrics(m ESMetrics) ESMetricsOption { return ESMetricsOption{m: m} }

func (o ESMetricsOption) applyToCommandHandlerOpts(c *commandHandlerOpts) { c.metrics = o.m }
func (o ESMetricsOption) applyToSubscriptionOpts(s *subscriptionOpts)     { s.metrics = o.m }
