package swarm

import (
	"time"

	"github.com/haasonsaas/agentmesh/internal/observability"
)

const (
	inboxDefaultReadLimit = 10
	outputPreviewLen      = 500
)

// Runner executes one Swarm Agent's assigned task and returns its output
// text, or an error describing why the agent could not produce output.
type Runner func(agent *Agent) (string, error)

// runtimeAgent pairs an Agent's exported snapshot with the bus subscription
// and synchronization state the Orchestrator and Bus need to drive it. It is
// never exposed directly; callers operate on the embedded *Agent.
type runtimeAgent struct {
	*Agent
	bus         *Bus
	unsubscribe func()
	metrics     *observability.Metrics
	logger      *observability.Logger
	hasTask     bool
}

func newRuntimeAgent(id, swarmID string, role Role, bus *Bus, metrics *observability.Metrics, logger *observability.Logger) *runtimeAgent {
	a := &runtimeAgent{
		Agent: &Agent{
			ID:      id,
			SwarmID: swarmID,
			Role:    role,
			Status:  AgentIdle,
		},
		bus:     bus,
		metrics: metrics,
		logger:  logger,
	}
	a.unsubscribe = bus.Subscribe(id, func(msg Message) {
		a.Inbox = append(a.Inbox, msg)
		a.Counters.Received++
	})
	return a
}

// assignTask assigns t as the agent's current task and resets it to idle.
func (a *runtimeAgent) assignTask(t Task) {
	a.Task = t
	a.hasTask = true
	a.Status = AgentIdle
}

// execute runs the agent's assigned task via runner and returns a Result
// snapshot. It requires a task to already be assigned.
func (a *runtimeAgent) execute(runner Runner) Result {
	if !a.hasTask {
		a.Status = AgentFailed
		a.Output = "Error: " + (&NoAssignedTask{AgentID: a.ID}).Error()
		return a.snapshot()
	}

	a.Status = AgentWorking
	a.StartedAt = time.Now()
	if a.metrics != nil {
		a.metrics.SwarmAgentStarted()
	}

	output, err := runner(a.Agent)
	a.CompletedAt = time.Now()

	if err != nil {
		a.Status = AgentFailed
		a.Output = "Error: " + err.Error()
		a.broadcast("agent:failed", map[string]any{
			"agentId": a.ID,
			"role":    a.Role.ID,
			"reason":  err.Error(),
		})
	} else {
		a.Status = AgentDone
		a.Output = output
		a.broadcast("agent:done", map[string]any{
			"agentId":       a.ID,
			"role":          a.Role.ID,
			"outputPreview": preview(output, outputPreviewLen),
		})
	}

	if a.metrics != nil {
		a.metrics.RecordSwarmAgentFinished(a.Role.ID, string(a.Status), a.CompletedAt.Sub(a.StartedAt).Seconds())
	}
	return a.snapshot()
}

// cancel marks the agent cancelled without running its task, used when a
// deadline expires before the runner is invoked or a dissolve is requested.
func (a *runtimeAgent) timeout() Result {
	a.Status = AgentFailed
	a.Output = "Agent timeout"
	a.CompletedAt = time.Now()
	if a.StartedAt.IsZero() {
		a.StartedAt = a.CompletedAt
	}
	return a.snapshot()
}

func (a *runtimeAgent) snapshot() Result {
	return Result{
		AgentID:     a.ID,
		Role:        a.Role.ID,
		Task:        a.Task,
		Status:      a.Status,
		Output:      a.Output,
		Artifacts:   append([]string(nil), a.Artifacts...),
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
		Counters:    a.Counters,
	}
}

// sendMessage sends a direct message to another agent and increments the
// sent counter.
func (a *runtimeAgent) sendMessage(to, topic string, payload any) Message {
	a.Counters.Sent++
	return a.bus.Send(a.SwarmID, a.ID, to, topic, payload, "")
}

// broadcastMessage broadcasts a message to the rest of the swarm and
// increments the sent counter.
func (a *runtimeAgent) broadcastMessage(topic string, payload any) Message {
	a.Counters.Sent++
	return a.broadcast(topic, payload)
}

func (a *runtimeAgent) broadcast(topic string, payload any) Message {
	return a.bus.Broadcast(a.SwarmID, a.ID, topic, payload)
}

// readInbox returns the most recent limit inbox entries (0 means the
// default of 10), oldest first. The returned slice is a read-only copy.
func (a *runtimeAgent) readInbox(limit int) []Message {
	if limit <= 0 {
		limit = inboxDefaultReadLimit
	}
	return append([]Message(nil), tail(a.Inbox, limit)...)
}

// destroy detaches the agent's bus subscription and forces it to cancelled.
func (a *runtimeAgent) destroy() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	a.Status = AgentCancelled
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
