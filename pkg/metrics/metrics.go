package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "publishers"

// Metrics contains all Prometheus metrics for the publishers service.
type Metrics struct {
	// Publishers.
	RegistrationsTotal  prometheus.Counter
	ProfileUpdatesTotal prometheus.Counter
	ConfigUpdatesTotal  prometheus.Counter
	KeyRotationsTotal   prometheus.Counter
	WebhooksCreated     prometheus.Counter

	// Auth.
	AuthFailuresTotal *prometheus.CounterVec
	InternalCalls     *prometheus.CounterVec

	// Task service.
	TaskProxyRequestsTotal *prometheus.CounterVec
	TaskProxyDuration      *prometheus.HistogramVec

	// HTTP.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Event streams.
	EventStreamsActive prometheus.Gauge

	// Build info.
	BuildInfo *prometheus.GaugeVec
}

// New creates a new Metrics instance and registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		// Publishers.
		RegistrationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Total number of publisher registrations",
			},
		),
		ProfileUpdatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "profile_updates_total",
				Help:      "Total number of publisher profile updates",
			},
		),
		ConfigUpdatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "configuration_updates_total",
				Help:      "Total number of configuration merges",
			},
		),
		KeyRotationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_key_rotations_total",
				Help:      "Total number of API key regenerations",
			},
		),
		WebhooksCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhooks_created_total",
				Help:      "Total number of webhooks registered",
			},
		),

		// Auth.
		AuthFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total number of rejected credentials by reason",
			},
			[]string{"reason"},
		),
		InternalCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "internal_calls_total",
				Help:      "Total number of requests carrying the internal marker by outcome",
			},
			[]string{"outcome"},
		),

		// Task service.
		TaskProxyRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_proxy_requests_total",
				Help:      "Total number of task service calls",
			},
			[]string{"operation", "outcome"},
		),
		TaskProxyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_proxy_duration_seconds",
				Help:      "Task service call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// HTTP.
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Event streams.
		EventStreamsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_streams_active",
				Help:      "Number of connected publisher event streams",
			},
		),

		// Build info.
		BuildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build information",
			},
			[]string{"version", "commit", "date"},
		),
	}

	return m
}

// SetBuildInfo sets the build info metric.
func (m *Metrics) SetBuildInfo(version, commit, date string) {
	m.BuildInfo.WithLabelValues(version, commit, date).Set(1)
}

// RecordRegistration increments the registrations counter.
func (m *Metrics) RecordRegistration() {
	m.RegistrationsTotal.Inc()
}

// RecordProfileUpdate increments the profile updates counter.
func (m *Metrics) RecordProfileUpdate() {
	m.ProfileUpdatesTotal.Inc()
}

// RecordConfigUpdate increments the configuration updates counter.
func (m *Metrics) RecordConfigUpdate() {
	m.ConfigUpdatesTotal.Inc()
}

// RecordKeyRotation increments the key rotations counter.
func (m *Metrics) RecordKeyRotation() {
	m.KeyRotationsTotal.Inc()
}

// RecordWebhookCreated increments the webhooks counter.
func (m *Metrics) RecordWebhookCreated() {
	m.WebhooksCreated.Inc()
}

// RecordAuthFailure records a rejected credential.
func (m *Metrics) RecordAuthFailure(reason string) {
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordInternalCall records a request that claimed internal trust.
func (m *Metrics) RecordInternalCall(trusted bool) {
	outcome := "rejected"
	if trusted {
		outcome = "trusted"
	}

	m.InternalCalls.WithLabelValues(outcome).Inc()
}

// RecordTaskProxy records a task service call.
func (m *Metrics) RecordTaskProxy(operation, outcome string, duration float64) {
	m.TaskProxyRequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.TaskProxyDuration.WithLabelValues(operation).Observe(duration)
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// EventStreamOpened increments the active event streams gauge.
func (m *Metrics) EventStreamOpened() {
	m.EventStreamsActive.Inc()
}

// EventStreamClosed decrements the active event streams gauge.
func (m *Metrics) EventStreamClosed() {
	m.EventStreamsActive.Dec()
}
