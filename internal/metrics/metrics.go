// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

// Package metrics holds the Prometheus instrumentation for RescueNet:
//
//   - dispatcher operations (count, latency, outcome)
//   - topic fan-out deliveries and drops
//   - WebSocket connections and frames
//   - session store sweeps
//   - event bus mirroring and its circuit breaker
//   - REST request latency and throughput
//
// All collectors are registered on the default registry via promauto and
// exposed at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatcher Metrics
	DispatcherOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_dispatcher_operations_total",
			Help: "Total number of dispatcher operations by outcome",
		},
		[]string{"operation", "result"}, // result: "ok", "validation", "not_found", "internal"
	)

	DispatcherOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "location_dispatcher_operation_duration_seconds",
			Help:    "Duration of dispatcher operations including store access",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// Fan-out Metrics
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_events_delivered_total",
			Help: "Total number of events queued to subscribers",
		},
		[]string{"topic_kind", "event"}, // topic_kind: "session", "emergency"
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_events_dropped_total",
			Help: "Total number of events dropped because a subscriber could not accept them",
		},
		[]string{"topic_kind", "event"},
	)

	// Session Store Metrics
	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "location_sessions_expired_total",
			Help: "Total number of sessions removed by the expiry sweep",
		},
	)

	SessionsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "location_sessions_stored",
			Help: "Number of sessions in the store at the last sweep",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "location_expiry_sweep_duration_seconds",
			Help:    "Duration of expiry sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
		[]string{"type"},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Event Bus Metrics
	EventBusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_messages_published_total",
			Help: "Total number of emergency events mirrored to the event bus",
		},
		[]string{"result"}, // result: "success", "failure", "rejected"
	)

	EventBusDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventbus_messages_dropped_total",
			Help: "Total number of events dropped because the event bus queue was full",
		},
	)

	EventBusQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventbus_queue_depth",
			Help: "Current number of events waiting to be mirrored",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)
)

// RecordDispatcherOperation records one dispatcher call.
func RecordDispatcherOperation(operation, result string, duration time.Duration) {
	DispatcherOperations.WithLabelValues(operation, result).Inc()
	DispatcherOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSweep records the outcome of one expiry sweep.
func RecordSweep(removed, remaining int, duration time.Duration) {
	SessionsExpired.Add(float64(removed))
	if remaining >= 0 {
		SessionsStored.Set(float64(remaining))
	}
	SweepDuration.Observe(duration.Seconds())
}

// RecordCircuitBreakerTransition updates breaker state gauges. States use
// the gobreaker numbering (0=closed, 1=half-open, 2=open).
func RecordCircuitBreakerTransition(name string, from, to int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	CircuitBreakerTransitions.WithLabelValues(name, stateName(from), stateName(to)).Inc()
}

func stateName(state int) string {
	switch state {
	case 0:
		return "closed"
	case 1:
		return "half-open"
	case 2:
		return "open"
	default:
		return strconv.Itoa(state)
	}
}
