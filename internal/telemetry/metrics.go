package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "landscape-job-service"

// Metrics holds the OpenTelemetry instruments shared by the service binaries.
type Metrics struct {
	// Lifecycle gate
	TransitionsTotal        metric.Int64Counter
	TransitionFailuresTotal metric.Int64Counter
	RoleCacheHitsTotal      metric.Int64Counter
	RoleCacheMissesTotal    metric.Int64Counter

	// Change feed
	FeedEventsDeliveredTotal metric.Int64Counter
	FeedEventsCoalescedTotal metric.Int64Counter
	FeedSubscribeErrorsTotal metric.Int64Counter
	SilentRefetchTotal       metric.Int64Counter
	FeedActiveChannels       metric.Int64UpDownCounter

	// Relay
	RelayPublishedTotal     metric.Int64Counter
	RelayPublishErrorsTotal metric.Int64Counter
	RelayPublishDuration    metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it against the
// global meter provider on first use.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.TransitionsTotal, _ = meter.Int64Counter(
		"jobs.transitions.total",
		metric.WithDescription("Job status transitions applied, by action"),
		metric.WithUnit("{transition}"),
	)
	m.TransitionFailuresTotal, _ = meter.Int64Counter(
		"jobs.transitions.failures.total",
		metric.WithDescription("Rejected or failed transition requests, by action and kind"),
		metric.WithUnit("{request}"),
	)
	m.RoleCacheHitsTotal, _ = meter.Int64Counter(
		"auth.role_cache.hits.total",
		metric.WithDescription("Role lookups served from cache"),
		metric.WithUnit("{lookup}"),
	)
	m.RoleCacheMissesTotal, _ = meter.Int64Counter(
		"auth.role_cache.misses.total",
		metric.WithDescription("Role lookups that went to the database"),
		metric.WithUnit("{lookup}"),
	)

	m.FeedEventsDeliveredTotal, _ = meter.Int64Counter(
		"realtime.events.delivered.total",
		metric.WithDescription("Change events handed to subscriber handlers"),
		metric.WithUnit("{event}"),
	)
	m.FeedEventsCoalescedTotal, _ = meter.Int64Counter(
		"realtime.events.coalesced.total",
		metric.WithDescription("Change events superseded inside a debounce window"),
		metric.WithUnit("{event}"),
	)
	m.FeedSubscribeErrorsTotal, _ = meter.Int64Counter(
		"realtime.subscribe.errors.total",
		metric.WithDescription("Failed channel subscribe attempts"),
		metric.WithUnit("{error}"),
	)
	m.SilentRefetchTotal, _ = meter.Int64Counter(
		"realtime.refetch.total",
		metric.WithDescription("Background refetches executed"),
		metric.WithUnit("{refetch}"),
	)

	m.RelayPublishedTotal, _ = meter.Int64Counter(
		"relay.published.total",
		metric.WithDescription("Row changes published to the change feed"),
		metric.WithUnit("{event}"),
	)
	m.RelayPublishErrorsTotal, _ = meter.Int64Counter(
		"relay.publish.errors.total",
		metric.WithDescription("Row changes that could not be decoded or published"),
		metric.WithUnit("{error}"),
	)
	m.RelayPublishDuration, _ = meter.Float64Histogram(
		"relay.publish.duration",
		metric.WithDescription("Duration of change feed publish calls"),
		metric.WithUnit("ms"),
	)
	m.FeedActiveChannels, _ = meter.Int64UpDownCounter(
		"realtime.channels.active",
		metric.WithDescription("Open change feed channels"),
		metric.WithUnit("{channel}"),
	)

	return m
}
