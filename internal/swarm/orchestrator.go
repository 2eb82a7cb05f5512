package swarm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/agentmesh/internal/observability"
)

// OrchestratorConfig bounds an Orchestrator's resource usage.
type OrchestratorConfig struct {
	MaxConcurrentSwarms int
	MaxAgentsPerSwarm   int
	AgentTimeout        time.Duration
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.MaxConcurrentSwarms <= 0 {
		c.MaxConcurrentSwarms = 10
	}
	if c.MaxAgentsPerSwarm <= 0 {
		c.MaxAgentsPerSwarm = 8
	}
	if c.AgentTimeout <= 0 {
		c.AgentTimeout = 2 * time.Minute
	}
	return c
}

// Orchestrator creates, runs, and tracks swarms. One Orchestrator owns one
// Bus shared by every swarm it creates.
type Orchestrator struct {
	mu      sync.RWMutex
	swarms  map[string]*orchestratedSwarm
	counter int
	cfg     OrchestratorConfig
	bus     *Bus
	planner *Planner
	agg     *Aggregator
	logger  *observability.Logger
	metrics *observability.Metrics
}

// orchestratedSwarm pairs the exported Swarm snapshot with its live agents.
type orchestratedSwarm struct {
	mu     sync.Mutex
	swarm  *Swarm
	agents map[string]*runtimeAgent
}

// NewOrchestrator builds an Orchestrator around a fresh Bus.
func NewOrchestrator(cfg OrchestratorConfig, logger *observability.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		swarms:  make(map[string]*orchestratedSwarm),
		cfg:     cfg.withDefaults(),
		bus:     NewBus(logger),
		planner: NewPlanner(),
		agg:     NewAggregator(),
		logger:  logger,
		metrics: metrics,
	}
}

func (o *Orchestrator) nonTerminalCount() int {
	count := 0
	for _, s := range o.swarms {
		if !s.swarm.Status.IsTerminal() {
			count++
		}
	}
	return count
}

// Spawn creates a swarm for opts and runs it to completion, invoking runner
// once per agent. It returns the swarm's final (completed or failed)
// snapshot.
func (o *Orchestrator) Spawn(ctx context.Context, opts SpawnOptions, runner Runner) (*Swarm, error) {
	roles, err := o.resolveRoles(opts.Roles, opts.Task)
	if err != nil {
		return nil, err
	}

	os, err := o.create(opts, roles)
	if err != nil {
		return nil, err
	}

	o.run(ctx, os, opts, runner)
	return os.swarm, nil
}

func (o *Orchestrator) resolveRoles(requested []string, task string) ([]string, error) {
	var roles []string
	if len(requested) > 0 {
		for _, id := range requested {
			if _, ok := RoleByID(id); ok {
				roles = append(roles, id)
			}
		}
	} else {
		roles = SuggestRoles(task)
	}
	if len(roles) > o.cfg.MaxAgentsPerSwarm {
		return nil, &TooManyAgents{Requested: len(roles), Limit: o.cfg.MaxAgentsPerSwarm}
	}
	return roles, nil
}

func (o *Orchestrator) create(opts SpawnOptions, roles []string) (*orchestratedSwarm, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.nonTerminalCount() >= o.cfg.MaxConcurrentSwarms {
		return nil, &MaxSwarmsReached{Limit: o.cfg.MaxConcurrentSwarms}
	}

	o.counter++
	id := fmt.Sprintf("swarm-%d-%d", o.counter, nowMs())

	consensus := opts.Consensus
	if consensus == "" {
		consensus = ConsensusMerge
	}

	swarm := &Swarm{
		ID:        id,
		Task:      opts.Task,
		Context:   opts.Context,
		Consensus: consensus,
		Status:    SwarmInitializing,
		CreatedAt: time.Now(),
	}

	os := &orchestratedSwarm{swarm: swarm, agents: make(map[string]*runtimeAgent)}
	for i, roleID := range roles {
		role, _ := RoleByID(roleID)
		agentID := fmt.Sprintf("%s-agent-%d", id, i+1)
		ra := newRuntimeAgent(agentID, id, role, o.bus, o.metrics, o.logger)
		os.agents[agentID] = ra
		swarm.Agents = append(swarm.Agents, ra.Agent)
	}

	o.swarms[id] = os
	return os, nil
}

func (o *Orchestrator) run(ctx context.Context, os *orchestratedSwarm, opts SpawnOptions, runner Runner) {
	s := os.swarm

	s.Status = SwarmPlanning
	tasks := o.planner.Decompose(opts.Task, roleIDs(os.agents), opts.Context, opts.autoDecomposeOrDefault())
	for _, ra := range os.agents {
		if t, ok := tasks[ra.Role.ID]; ok {
			ra.assignTask(t)
		} else {
			ra.assignTask(Task{Description: opts.Task, Context: opts.Context, Priority: ra.Role.Priority})
		}
	}

	s.Status = SwarmExecuting
	o.bus.Broadcast(s.ID, "orchestrator", "swarm:start", map[string]any{
		"task":       opts.Task,
		"agentCount": len(os.agents),
		"roles":      roleIDs(os.agents),
	})
	if observability.IsDiagnosticsEnabled() {
		observability.EmitSwarmSpawned(&observability.SwarmSpawnedEvent{
			SwarmID:    s.ID,
			Task:       opts.Task,
			AgentCount: len(os.agents),
		})
	}

	for _, group := range o.priorityGroups(os.agents) {
		o.runGroup(ctx, os, group, runner)
	}

	s.Status = SwarmAggregating
	s.AggregatedOutput = o.agg.Aggregate(s.Task, s.Consensus, s.Results)

	outcome := "completed"
	if allFailed(s.Results) {
		outcome = "failed"
		s.Status = SwarmFailed
	} else {
		s.Status = SwarmCompleted
	}
	s.CompletedAt = time.Now()
	if o.metrics != nil {
		o.metrics.RecordSwarmCompleted(outcome, s.CompletedAt.Sub(s.CreatedAt).Seconds())
	}
	if observability.IsDiagnosticsEnabled() {
		observability.EmitSwarmCompleted(&observability.SwarmCompletedEvent{
			SwarmID:    s.ID,
			Status:     outcome,
			DurationMs: s.CompletedAt.Sub(s.CreatedAt).Milliseconds(),
		})
	}
}

func allFailed(results []Result) bool {
	if len(results) == 0 {
		return true
	}
	for _, r := range results {
		if r.Status == AgentDone {
			return false
		}
	}
	return true
}

func roleIDs(agents map[string]*runtimeAgent) []string {
	var ids []string
	for _, a := range agents {
		ids = append(ids, a.Role.ID)
	}
	sort.Strings(ids)
	return ids
}

// priorityGroups groups agents by their task's effective priority (falling
// back to role priority) and returns the groups sorted ascending.
func (o *Orchestrator) priorityGroups(agents map[string]*runtimeAgent) [][]*runtimeAgent {
	byPriority := make(map[int][]*runtimeAgent)
	for _, a := range agents {
		p := a.Task.Priority
		if p == 0 {
			p = a.Role.Priority
		}
		byPriority[p] = append(byPriority[p], a)
	}

	var priorities []int
	for p := range byPriority {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)

	groups := make([][]*runtimeAgent, 0, len(priorities))
	for _, p := range priorities {
		group := byPriority[p]
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		groups = append(groups, group)
	}
	return groups
}

func (o *Orchestrator) runGroup(ctx context.Context, os *orchestratedSwarm, group []*runtimeAgent, runner Runner) {
	var wg sync.WaitGroup
	resultsCh := make(chan Result, len(group))

	for _, ra := range group {
		wg.Add(1)
		go func(ra *runtimeAgent) {
			defer wg.Done()
			resultsCh <- o.runAgent(ctx, ra, runner)
		}(ra)
	}
	wg.Wait()
	close(resultsCh)

	os.mu.Lock()
	for r := range resultsCh {
		os.swarm.Results = append(os.swarm.Results, r)
	}
	os.mu.Unlock()

	o.announceResults(os, group)
}

func (o *Orchestrator) runAgent(ctx context.Context, ra *runtimeAgent, runner Runner) Result {
	agentCtx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
	defer cancel()

	started := time.Now()
	if observability.IsDiagnosticsEnabled() {
		observability.EmitSwarmAgentStarted(&observability.SwarmAgentEvent{
			SwarmID: ra.SwarmID,
			AgentID: ra.ID,
			Role:    ra.Role.ID,
		})
	}

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- ra.execute(runner)
	}()

	var result Result
	select {
	case r := <-resultCh:
		result = r
	case <-agentCtx.Done():
		result = ra.timeout()
	}

	if observability.IsDiagnosticsEnabled() {
		observability.EmitSwarmAgentFinished(&observability.SwarmAgentEvent{
			SwarmID:    ra.SwarmID,
			AgentID:    ra.ID,
			Role:       ra.Role.ID,
			Status:     string(result.Status),
			DurationMs: time.Since(started).Milliseconds(),
		})
	}
	return result
}

// announceResults broadcasts one "result:available" message per successful
// result produced by group, so later priority groups can read it from their
// inboxes.
func (o *Orchestrator) announceResults(os *orchestratedSwarm, group []*runtimeAgent) {
	os.mu.Lock()
	results := append([]Result(nil), os.swarm.Results...)
	os.mu.Unlock()

	groupAgentIDs := make(map[string]bool, len(group))
	for _, ra := range group {
		groupAgentIDs[ra.ID] = true
	}

	for _, r := range results {
		if !groupAgentIDs[r.AgentID] || r.Status != AgentDone {
			continue
		}
		o.bus.Broadcast(os.swarm.ID, r.AgentID, "result:available", map[string]any{
			"agentId": r.AgentID,
			"role":    r.Role,
			"preview": preview(r.Output, resultPreviewLen),
		})
	}
}

// GetSwarmInfo returns the current snapshot of swarm id.
func (o *Orchestrator) GetSwarmInfo(id string) (*Swarm, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	os, ok := o.swarms[id]
	if !ok {
		return nil, &SwarmNotFound{SwarmID: id}
	}
	return os.swarm, nil
}

// ListSwarms returns every known swarm sorted by createdAt descending.
func (o *Orchestrator) ListSwarms() []*Swarm {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Swarm, 0, len(o.swarms))
	for _, os := range o.swarms {
		out = append(out, os.swarm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Dissolve destroys every agent in swarm id, transitions it to cancelled,
// and clears its bus history scope.
func (o *Orchestrator) Dissolve(id string) error {
	o.mu.Lock()
	os, ok := o.swarms[id]
	o.mu.Unlock()
	if !ok {
		return &SwarmNotFound{SwarmID: id}
	}

	os.mu.Lock()
	defer os.mu.Unlock()
	if os.swarm.Status.IsTerminal() {
		return &ErrSwarmNotCancelable{SwarmID: id, Status: os.swarm.Status}
	}
	for _, ra := range os.agents {
		ra.destroy()
	}
	os.swarm.Status = SwarmCancelled
	os.swarm.CompletedAt = time.Now()
	o.bus.ClearSwarm(id)
	return nil
}

// SendMessage sends a direct message from "orchestrator" to agentID within
// swarm id.
func (o *Orchestrator) SendMessage(swarmID, agentID, topic string, payload any) error {
	if _, err := o.GetSwarmInfo(swarmID); err != nil {
		return err
	}
	o.bus.Send(swarmID, "orchestrator", agentID, topic, payload, "")
	return nil
}

// BroadcastToSwarm broadcasts a message to every agent in swarm id.
func (o *Orchestrator) BroadcastToSwarm(swarmID, topic string, payload any) error {
	if _, err := o.GetSwarmInfo(swarmID); err != nil {
		return err
	}
	o.bus.Broadcast(swarmID, "orchestrator", topic, payload)
	return nil
}

// GetMessages returns the most recent limit bus messages for swarm id
// (0 means the default of 50).
func (o *Orchestrator) GetMessages(swarmID string, limit int) ([]Message, error) {
	if _, err := o.GetSwarmInfo(swarmID); err != nil {
		return nil, err
	}
	return o.bus.GetHistory(swarmID, limit), nil
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
