package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "softphone"

// Metrics holds all application metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	transitions      *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	sessionsClosed   *prometheus.CounterVec
	callDuration     prometheus.Histogram
	transportEvents  *prometheus.CounterVec
	transportErrors  prometheus.Counter
	ringTimeouts     prometheus.Counter
	recordSinkErrors *prometheus.CounterVec

	// WebSocket metrics
	wsConnections    prometheus.Counter
	wsDisconnections prometheus.Counter
	wsActive         prometheus.Gauge
	wsMessages       prometheus.Counter
	wsErrors         prometheus.Counter

	// Snapshot metrics
	snapshotCycles   prometheus.Counter
	snapshotDuration prometheus.Histogram

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	collectorMu sync.Mutex
	collector   *Collector
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates an isolated metrics set. Tests use it to avoid sharing counters.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Accepted session transitions and flag changes by action",
		}, []string{"action"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_rejections_total",
			Help:      "Rejected operations by operation and error kind",
		}, []string{"op", "kind"}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Closed sessions by outcome and disposition",
		}, []string{"outcome", "disposition"}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Recorded call duration",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		transportEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_events_total",
			Help:      "Transport signals received by type",
		}, []string{"type"}),
		transportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_event_errors_total",
			Help:      "Transport event payloads that could not be decoded",
		}),
		ringTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ring_timeouts_total",
			Help:      "Sessions closed because nobody answered in time",
		}),
		recordSinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_sink_errors_total",
			Help:      "Failed call record deliveries by sink",
		}, []string{"sink"}),
		wsConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_connections_total",
			Help:      "WebSocket connections accepted",
		}),
		wsDisconnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_disconnections_total",
			Help:      "WebSocket connections closed",
		}),
		wsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_active_connections",
			Help:      "Currently open WebSocket connections",
		}),
		wsMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_messages_total",
			Help:      "Messages written to WebSocket clients",
		}),
		wsErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_errors_total",
			Help:      "WebSocket read or write errors",
		}),
		snapshotCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cycles_total",
			Help:      "Dashboard snapshots broadcast",
		}),
		snapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Time to build one dashboard snapshot",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitions,
		m.rejections,
		m.sessionsClosed,
		m.callDuration,
		m.transportEvents,
		m.transportErrors,
		m.ringTimeouts,
		m.recordSinkErrors,
		m.wsConnections,
		m.wsDisconnections,
		m.wsActive,
		m.wsMessages,
		m.wsErrors,
		m.snapshotCycles,
		m.snapshotDuration,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// RegisterCollector adds the scrape-time gauges. Only the first call has an effect.
func (m *Metrics) RegisterCollector(c *Collector) {
	m.collectorMu.Lock()
	defer m.collectorMu.Unlock()
	if m.collector != nil {
		return
	}
	m.collector = c
	m.registry.MustRegister(c)
}

// RecordTransition counts an accepted transition or flag change
func (m *Metrics) RecordTransition(action string) {
	m.transitions.WithLabelValues(action).Inc()
}

// RecordRejection counts a rejected operation
func (m *Metrics) RecordRejection(op, kind string) {
	m.rejections.WithLabelValues(op, kind).Inc()
}

// RecordSessionClosed counts a closed session and observes its duration
func (m *Metrics) RecordSessionClosed(outcome, disposition string, duration float64) {
	m.sessionsClosed.WithLabelValues(outcome, disposition).Inc()
	m.callDuration.Observe(duration)
}

// RecordTransportEvent counts a transport signal
func (m *Metrics) RecordTransportEvent(eventType string) {
	m.transportEvents.WithLabelValues(eventType).Inc()
}

// RecordTransportError counts an undecodable transport payload
func (m *Metrics) RecordTransportError() {
	m.transportErrors.Inc()
}

// RecordRingTimeout counts a ring timeout
func (m *Metrics) RecordRingTimeout() {
	m.ringTimeouts.Inc()
}

// RecordSinkError counts a failed record delivery
func (m *Metrics) RecordSinkError(sink string) {
	m.recordSinkErrors.WithLabelValues(sink).Inc()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.wsConnections.Inc()
	m.wsActive.Inc()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.wsDisconnections.Inc()
	m.wsActive.Dec()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.wsMessages.Inc()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.wsErrors.Inc()
}

// RecordSnapshotCycle records one dashboard snapshot
func (m *Metrics) RecordSnapshotCycle(duration time.Duration) {
	m.snapshotCycles.Inc()
	m.snapshotDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(route string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
