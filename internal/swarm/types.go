// Package swarm implements the in-process multi-agent execution engine:
// role-based task decomposition, priority-group parallel scheduling, a
// pub/sub message bus, and pluggable result aggregation.
package swarm

import "time"

// Role is one of the eight fixed specializations a Swarm Agent can occupy.
// The set is closed: callers may not register additional roles at runtime.
type Role struct {
	ID               string
	Name             string
	Emoji            string
	Description      string
	SystemPrompt     string
	ToolAllowPattern []string
	Priority         int
}

const (
	RoleArchitect  = "architect"
	RoleCoder      = "coder"
	RoleResearcher = "researcher"
	RoleReviewer   = "reviewer"
	RoleSecurity   = "security"
	RoleTester     = "tester"
	RoleDevops     = "devops"
	RoleAnalyst    = "analyst"
)

// Roles is the closed, ordered table of predefined Swarm Roles. Order
// matters: it is the canonical role order used by merge/chain aggregation
// and by role-suggestion deduplication.
var Roles = []Role{
	{ID: RoleArchitect, Name: "Architect", Emoji: "\U0001F3D7", Description: "Designs system architecture and technical approach", Priority: 1},
	{ID: RoleResearcher, Name: "Researcher", Emoji: "\U0001F50D", Description: "Gathers background information and prior art", Priority: 1},
	{ID: RoleCoder, Name: "Coder", Emoji: "\U0001F4BB", Description: "Implements the solution", Priority: 1},
	{ID: RoleSecurity, Name: "Security", Emoji: "\U0001F512", Description: "Reviews for security issues", Priority: 2},
	{ID: RoleTester, Name: "Tester", Emoji: "\U0001F9EA", Description: "Writes and runs tests", Priority: 2},
	{ID: RoleDevops, Name: "DevOps", Emoji: "⚙", Description: "Handles build, deploy, and infra concerns", Priority: 2},
	{ID: RoleAnalyst, Name: "Analyst", Emoji: "\U0001F4CA", Description: "Analyzes tradeoffs and data", Priority: 2},
	{ID: RoleReviewer, Name: "Reviewer", Emoji: "✅", Description: "Reviews and synthesizes the combined output", Priority: 3},
}

// RoleByID looks up a predefined Role. The second return value is false for
// any id outside the closed set.
func RoleByID(id string) (Role, bool) {
	for _, r := range Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// AgentStatus is the lifecycle state of a Swarm Agent.
type AgentStatus string

const (
	AgentIdle      AgentStatus = "idle"
	AgentWorking   AgentStatus = "working"
	AgentDone      AgentStatus = "done"
	AgentFailed    AgentStatus = "failed"
	AgentCancelled AgentStatus = "cancelled"
)

// SwarmState is the lifecycle state of a Swarm.
type SwarmState string

const (
	SwarmInitializing SwarmState = "initializing"
	SwarmPlanning     SwarmState = "planning"
	SwarmExecuting    SwarmState = "executing"
	SwarmAggregating  SwarmState = "aggregating"
	SwarmCompleted    SwarmState = "completed"
	SwarmFailed       SwarmState = "failed"
	SwarmCancelled    SwarmState = "cancelled"
)

// IsTerminal reports whether a swarm in state s can still make progress.
func (s SwarmState) IsTerminal() bool {
	switch s {
	case SwarmCompleted, SwarmFailed, SwarmCancelled:
		return true
	default:
		return false
	}
}

// Task is a sub-task assigned to a single agent.
type Task struct {
	Description string
	Context     string
	DependsOn   []string
	Priority    int
}

// Counters tracks per-agent message traffic.
type Counters struct {
	Received int
	Sent     int
}

// Result is the immutable snapshot produced when an agent terminates.
type Result struct {
	AgentID     string
	Role        string
	Task        Task
	Status      AgentStatus
	Output      string
	Artifacts   []string
	StartedAt   time.Time
	CompletedAt time.Time
	Counters    Counters
}

// ConsensusStrategy selects how an Aggregator combines agent Results.
type ConsensusStrategy string

const (
	ConsensusMerge ConsensusStrategy = "merge"
	ConsensusVote  ConsensusStrategy = "vote"
	ConsensusChain ConsensusStrategy = "chain"
	ConsensusBest  ConsensusStrategy = "best"
)

// SpawnOptions configures Orchestrator.Spawn. AutoDecompose defaults to true
// when nil, matching callers that omit it entirely (e.g. JSON params with
// the field absent).
type SpawnOptions struct {
	Task          string
	Roles         []string
	Context       string
	AutoDecompose *bool
	Consensus     ConsensusStrategy
}

// autoDecomposeOrDefault returns the effective AutoDecompose value.
func (o SpawnOptions) autoDecomposeOrDefault() bool {
	if o.AutoDecompose == nil {
		return true
	}
	return *o.AutoDecompose
}

// Agent is one worker within a Swarm, bound to a single fixed Role and a
// single assigned Task. It accumulates inbox messages and counters across
// its lifetime; it never outlives its parent Swarm.
type Agent struct {
	ID          string
	SwarmID     string
	Role        Role
	Task        Task
	Status      AgentStatus
	Output      string
	Artifacts   []string
	Inbox       []Message
	Counters    Counters
	StartedAt   time.Time
	CompletedAt time.Time
}

// Swarm is one orchestrated run: the original task, the set of agents
// spawned to work it, and the aggregated result once every agent reaches a
// terminal status.
type Swarm struct {
	ID              string
	Task            string
	Context         string
	Consensus       ConsensusStrategy
	Status          SwarmState
	Agents          []*Agent
	Results         []Result
	AggregatedOutput string
	CreatedAt       time.Time
	CompletedAt     time.Time
}
