// Package observability provides diagnostic event types and emission.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// DiagnosticEventType identifies the type of diagnostic event.
type DiagnosticEventType string

const (
	EventTypeTaskTransition      DiagnosticEventType = "task.transition"
	EventTypeSwarmSpawned        DiagnosticEventType = "swarm.spawned"
	EventTypeSwarmCompleted      DiagnosticEventType = "swarm.completed"
	EventTypeSwarmAgentStarted   DiagnosticEventType = "swarm.agent.started"
	EventTypeSwarmAgentFinished  DiagnosticEventType = "swarm.agent.finished"
	EventTypeGatewayConnected    DiagnosticEventType = "gateway.connected"
	EventTypeGatewayDisconnected DiagnosticEventType = "gateway.disconnected"
	EventTypeGatewayFrame        DiagnosticEventType = "gateway.frame"
	EventTypeDiagnosticHeartbeat DiagnosticEventType = "diagnostic.heartbeat"
)

// DiagnosticEvent is the base event structure.
type DiagnosticEvent struct {
	Type DiagnosticEventType `json:"type"`
	Seq  int64               `json:"seq"`
	Ts   int64               `json:"ts"`
}

// TaskTransitionEvent tracks a Task moving between states.
type TaskTransitionEvent struct {
	DiagnosticEvent
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// SwarmSpawnedEvent tracks a swarm beginning its run.
type SwarmSpawnedEvent struct {
	DiagnosticEvent
	SwarmID    string `json:"swarm_id"`
	Task       string `json:"task,omitempty"`
	AgentCount int    `json:"agent_count"`
}

// SwarmCompletedEvent tracks a swarm reaching a terminal state.
type SwarmCompletedEvent struct {
	DiagnosticEvent
	SwarmID    string `json:"swarm_id"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// SwarmAgentEvent tracks one swarm agent starting or finishing its work.
type SwarmAgentEvent struct {
	DiagnosticEvent
	SwarmID    string `json:"swarm_id"`
	AgentID    string `json:"agent_id"`
	Role       string `json:"role,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// GatewayConnectionEvent tracks a Gateway Transport session connecting or
// disconnecting.
type GatewayConnectionEvent struct {
	DiagnosticEvent
	SessionID string `json:"session_id"`
}

// GatewayFrameEvent tracks one frame crossing a Gateway Transport session.
type GatewayFrameEvent struct {
	DiagnosticEvent
	SessionID string `json:"session_id,omitempty"`
	Direction string `json:"direction"` // "in" or "out"
	FrameType string `json:"frame_type"`
}

// DiagnosticHeartbeatEvent periodically summarizes live orchestration load.
type DiagnosticHeartbeatEvent struct {
	DiagnosticEvent
	ActiveTasks        int `json:"active_tasks"`
	ActiveSwarms       int `json:"active_swarms"`
	GatewayConnections int `json:"gateway_connections"`
}

// DiagnosticEventPayload is a union type for all diagnostic events.
type DiagnosticEventPayload interface {
	EventType() DiagnosticEventType
	Sequence() int64
	Timestamp() int64
}

func (e *DiagnosticEvent) EventType() DiagnosticEventType { return e.Type }
func (e *DiagnosticEvent) Sequence() int64                { return e.Seq }
func (e *DiagnosticEvent) Timestamp() int64               { return e.Ts }

// DiagnosticListener receives diagnostic events.
type DiagnosticListener func(event DiagnosticEventPayload)

// DiagnosticEmitter manages diagnostic event emission.
type DiagnosticEmitter struct {
	mu        sync.RWMutex
	seq       int64
	enabled   bool
	listeners []DiagnosticListener
}

var globalEmitter = &DiagnosticEmitter{}

// SetDiagnosticsEnabled enables or disables diagnostic events.
func SetDiagnosticsEnabled(enabled bool) {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	globalEmitter.enabled = enabled
}

// IsDiagnosticsEnabled returns whether diagnostics are enabled.
func IsDiagnosticsEnabled() bool {
	globalEmitter.mu.RLock()
	defer globalEmitter.mu.RUnlock()
	return globalEmitter.enabled
}

// OnDiagnosticEvent registers a listener for diagnostic events.
func OnDiagnosticEvent(listener DiagnosticListener) func() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	globalEmitter.listeners = append(globalEmitter.listeners, listener)

	id := len(globalEmitter.listeners) - 1
	return func() {
		globalEmitter.mu.Lock()
		defer globalEmitter.mu.Unlock()
		if id < 0 || id >= len(globalEmitter.listeners) {
			return
		}
		globalEmitter.listeners[id] = nil
	}
}

func nextSeq() int64 {
	return atomic.AddInt64(&globalEmitter.seq, 1)
}

func emit(event DiagnosticEventPayload) {
	globalEmitter.mu.RLock()
	if !globalEmitter.enabled {
		globalEmitter.mu.RUnlock()
		return
	}
	listeners := make([]DiagnosticListener, len(globalEmitter.listeners))
	copy(listeners, globalEmitter.listeners)
	globalEmitter.mu.RUnlock()

	for _, listener := range listeners {
		if listener == nil {
			continue
		}
		func() {
			defer func() { recover() }()
			listener(event)
		}()
	}
}

// EmitTaskTransition emits a task state transition event.
func EmitTaskTransition(e *TaskTransitionEvent) {
	e.Type = EventTypeTaskTransition
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitSwarmSpawned emits a swarm-spawned event.
func EmitSwarmSpawned(e *SwarmSpawnedEvent) {
	e.Type = EventTypeSwarmSpawned
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitSwarmCompleted emits a swarm-completed event.
func EmitSwarmCompleted(e *SwarmCompletedEvent) {
	e.Type = EventTypeSwarmCompleted
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitSwarmAgentStarted emits a swarm agent start event.
func EmitSwarmAgentStarted(e *SwarmAgentEvent) {
	e.Type = EventTypeSwarmAgentStarted
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitSwarmAgentFinished emits a swarm agent completion event.
func EmitSwarmAgentFinished(e *SwarmAgentEvent) {
	e.Type = EventTypeSwarmAgentFinished
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitGatewayConnected emits a gateway session connected event.
func EmitGatewayConnected(e *GatewayConnectionEvent) {
	e.Type = EventTypeGatewayConnected
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitGatewayDisconnected emits a gateway session disconnected event.
func EmitGatewayDisconnected(e *GatewayConnectionEvent) {
	e.Type = EventTypeGatewayDisconnected
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitGatewayFrame emits a gateway frame event.
func EmitGatewayFrame(e *GatewayFrameEvent) {
	e.Type = EventTypeGatewayFrame
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitDiagnosticHeartbeat emits a diagnostic heartbeat event.
func EmitDiagnosticHeartbeat(e *DiagnosticHeartbeatEvent) {
	e.Type = EventTypeDiagnosticHeartbeat
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// ResetDiagnosticsForTest resets diagnostic state for testing.
func ResetDiagnosticsForTest() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	atomic.StoreInt64(&globalEmitter.seq, 0)
	globalEmitter.listeners = nil
}
