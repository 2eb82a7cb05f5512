package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - A2A task lifecycle transitions and RPC dispatch latency
//   - Agent card cache hit/miss rates
//   - Swarm agent execution durations and swarm outcomes
//   - Gateway transport frame counts and reconnect attempts
//   - Error rates categorized by type and component
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordTaskTransition("submitted", "working")
//	defer metrics.RPCDispatchDuration("message/send").Observe(time.Since(start).Seconds())
type Metrics struct {
	// TaskTransitions counts Task state transitions.
	// Labels: from, to
	TaskTransitions *prometheus.CounterVec

	// TaskActive is a gauge of tasks currently in a non-terminal state.
	ActiveTasks prometheus.Gauge

	// RPCRequestDuration measures JSON-RPC dispatch latency.
	// Labels: method
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s
	RPCRequestDuration *prometheus.HistogramVec

	// RPCRequestCounter counts JSON-RPC requests by method and outcome.
	// Labels: method, status (ok|error)
	RPCRequestCounter *prometheus.CounterVec

	// CardCacheHits counts Agent Card cache lookups by outcome.
	// Labels: result (hit|miss|refresh)
	CardCacheHits *prometheus.CounterVec

	// SwarmsSpawned counts swarms spawned by outcome.
	// Labels: outcome (completed|failed|cancelled)
	SwarmsSpawned *prometheus.CounterVec

	// SwarmDuration measures end-to-end swarm execution time in seconds.
	// Buckets: 1s, 5s, 15s, 30s, 60s, 120s, 300s, 600s
	SwarmDuration prometheus.Histogram

	// SwarmAgentsActive is a gauge of Swarm Agents currently working.
	SwarmAgentsActive prometheus.Gauge

	// SwarmAgentDuration measures a single Swarm Agent's execution time.
	// Labels: role, status (done|failed|cancelled)
	// Buckets: 0.5s, 1s, 5s, 15s, 30s, 60s, 120s, 300s
	SwarmAgentDuration *prometheus.HistogramVec

	// BusMessages counts messages published on the swarm message bus.
	// Labels: kind (direct|topic|broadcast)
	BusMessages *prometheus.CounterVec

	// GatewayConnections is a gauge of open Gateway Transport connections.
	GatewayConnections prometheus.Gauge

	// GatewayFrames counts Gateway Transport frames by direction and type.
	// Labels: direction (inbound|outbound), frame_type (request|response|event)
	GatewayFrames *prometheus.CounterVec

	// GatewayReconnects counts client reconnect attempts by outcome.
	// Labels: outcome (success|exhausted)
	GatewayReconnects *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by type and component.
	// Labels: component (a2a|swarm|gateway|auth), error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available at the /metrics endpoint when using prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		TaskTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_task_transitions_total",
				Help: "Total number of Task state transitions by from and to state",
			},
			[]string{"from", "to"},
		),

		ActiveTasks: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentmesh_active_tasks",
				Help: "Current number of tasks not in a terminal state",
			},
		),

		RPCRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentmesh_rpc_dispatch_duration_seconds",
				Help:    "Duration of JSON-RPC method dispatch in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method"},
		),

		RPCRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_rpc_requests_total",
				Help: "Total number of JSON-RPC requests by method and status",
			},
			[]string{"method", "status"},
		),

		CardCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_card_cache_total",
				Help: "Total number of Agent Card cache lookups by result",
			},
			[]string{"result"},
		),

		SwarmsSpawned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_swarms_total",
				Help: "Total number of swarms by terminal outcome",
			},
			[]string{"outcome"},
		),

		SwarmDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentmesh_swarm_duration_seconds",
				Help:    "End-to-end duration of a swarm run in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),

		SwarmAgentsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentmesh_swarm_agents_active",
				Help: "Current number of Swarm Agents in the working state",
			},
		),

		SwarmAgentDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentmesh_swarm_agent_duration_seconds",
				Help:    "Duration of a single Swarm Agent's execution in seconds",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"role", "status"},
		),

		BusMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_bus_messages_total",
				Help: "Total number of messages published on the swarm message bus by kind",
			},
			[]string{"kind"},
		),

		GatewayConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentmesh_gateway_connections",
				Help: "Current number of open Gateway Transport connections",
			},
		),

		GatewayFrames: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_gateway_frames_total",
				Help: "Total number of Gateway Transport frames by direction and frame type",
			},
			[]string{"direction", "frame_type"},
		),

		GatewayReconnects: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_gateway_reconnects_total",
				Help: "Total number of Gateway Transport client reconnect attempts by outcome",
			},
			[]string{"outcome"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentmesh_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordTaskTransition records a Task moving from one state to another. from
// is empty for the initial transition into submitted.
func (m *Metrics) RecordTaskTransition(from, to string) {
	m.TaskTransitions.WithLabelValues(from, to).Inc()
	if IsTerminalStateName(to) {
		m.ActiveTasks.Dec()
	} else if from == "" {
		m.ActiveTasks.Inc()
	}
}

// RecordRPCDispatch records one JSON-RPC method dispatch.
//
// Example:
//
//	start := time.Now()
//	// ... dispatch method ...
//	metrics.RecordRPCDispatch("message/send", "ok", time.Since(start).Seconds())
func (m *Metrics) RecordRPCDispatch(method, status string, durationSeconds float64) {
	m.RPCRequestCounter.WithLabelValues(method, status).Inc()
	m.RPCRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordCardCacheResult records the outcome of an Agent Card cache lookup.
//
// Example:
//
//	metrics.RecordCardCacheResult("hit")
func (m *Metrics) RecordCardCacheResult(result string) {
	m.CardCacheHits.WithLabelValues(result).Inc()
}

// RecordSwarmCompleted records a swarm reaching a terminal state.
//
// Example:
//
//	metrics.RecordSwarmCompleted("completed", time.Since(start).Seconds())
func (m *Metrics) RecordSwarmCompleted(outcome string, durationSeconds float64) {
	m.SwarmsSpawned.WithLabelValues(outcome).Inc()
	m.SwarmDuration.Observe(durationSeconds)
}

// SwarmAgentStarted increments the active Swarm Agents gauge.
func (m *Metrics) SwarmAgentStarted() {
	m.SwarmAgentsActive.Inc()
}

// RecordSwarmAgentFinished decrements the active Swarm Agents gauge and
// records the agent's execution duration.
//
// Example:
//
//	metrics.RecordSwarmAgentFinished("coder", "done", time.Since(start).Seconds())
func (m *Metrics) RecordSwarmAgentFinished(role, status string, durationSeconds float64) {
	m.SwarmAgentsActive.Dec()
	m.SwarmAgentDuration.WithLabelValues(role, status).Observe(durationSeconds)
}

// RecordBusMessage records one message published on the swarm message bus.
//
// Example:
//
//	metrics.RecordBusMessage("broadcast")
func (m *Metrics) RecordBusMessage(kind string) {
	m.BusMessages.WithLabelValues(kind).Inc()
}

// GatewayConnected increments the open Gateway Transport connections gauge.
func (m *Metrics) GatewayConnected() {
	m.GatewayConnections.Inc()
}

// GatewayDisconnected decrements the open Gateway Transport connections gauge.
func (m *Metrics) GatewayDisconnected() {
	m.GatewayConnections.Dec()
}

// RecordGatewayFrame records one Gateway Transport frame.
//
// Example:
//
//	metrics.RecordGatewayFrame("outbound", "event")
func (m *Metrics) RecordGatewayFrame(direction, frameType string) {
	m.GatewayFrames.WithLabelValues(direction, frameType).Inc()
}

// RecordGatewayReconnect records a client reconnect attempt outcome.
//
// Example:
//
//	metrics.RecordGatewayReconnect("success")
func (m *Metrics) RecordGatewayReconnect(outcome string) {
	m.GatewayReconnects.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records metrics for an HTTP request.
//
// Example:
//
//	start := time.Now()
//	// ... handle HTTP request ...
//	metrics.RecordHTTPRequest("GET", "/.well-known/agent-card.json", "200", time.Since(start).Seconds())
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error type.
//
// Example:
//
//	metrics.RecordError("a2a", "task_not_found")
//	metrics.RecordError("gateway", "timeout")
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// IsTerminalStateName reports whether a task or swarm state name denotes a
// terminal state, without importing the a2a or swarm packages (which would
// create an import cycle with observability).
func IsTerminalStateName(state string) bool {
	switch state {
	case "completed", "failed", "canceled", "cancelled":
		return true
	default:
		return false
	}
}
