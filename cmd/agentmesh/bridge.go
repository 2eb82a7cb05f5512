package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/agentmesh/internal/a2a"
	"github.com/haasonsaas/agentmesh/internal/gatewaytransport"
	"github.com/haasonsaas/agentmesh/internal/observability"
	"github.com/haasonsaas/agentmesh/internal/swarm"
)

// swarmExecuteHook bridges the A2A protocol engine to the swarm orchestrator:
// an incoming task's initial message becomes a swarm's task description, and
// the swarm's aggregated output becomes the task's completing artifact. This
// is the one production implementation of ExecuteTaskHook in the whole
// module; the core a2a package never assumes a swarm backs it.
//
// Each invocation is bracketed by an EventRecorder run so the task's
// replayable timeline (swarm-result artifact, completion/error) can be
// pulled back out of recorder's store for diagnostics.
func swarmExecuteHook(orch *swarm.Orchestrator, tracer *observability.Tracer, recorder *observability.EventRecorder) a2a.ExecuteTaskHook {
	return func(ctx context.Context, tasks *a2a.TaskManager, task *a2a.Task) error {
		started := time.Now()
		ctx = observability.AddSessionID(ctx, task.SessionID)
		_ = recorder.RecordRunStart(ctx, task.ID, map[string]interface{}{"prompt": taskPrompt(task)})

		err := runSwarmTask(ctx, orch, tracer, tasks, task)
		_ = recorder.RecordRunEnd(observability.AddRunID(ctx, task.ID), time.Since(started), err)
		return err
	}
}

func runSwarmTask(ctx context.Context, orch *swarm.Orchestrator, tracer *observability.Tracer, tasks *a2a.TaskManager, task *a2a.Task) error {
	prompt := taskPrompt(task)

	var sw *swarm.Swarm
	err := observability.WithSpan(ctx, tracer, "swarm.execute", func(ctx context.Context, _ trace.Span) error {
		var spawnErr error
		sw, spawnErr = orch.Spawn(ctx, swarm.SpawnOptions{Task: prompt}, placeholderRunner)
		return spawnErr
	})
	if err != nil {
		return err
	}

	if sw.Status == swarm.SwarmFailed {
		return fmt.Errorf("swarm %s failed to produce a result", sw.ID)
	}

	_, err = tasks.AppendArtifact(ctx, task.ID, a2a.Artifact{
		Name:  "swarm-result",
		Parts: []a2a.Part{a2a.TextPart(sw.AggregatedOutput)},
	})
	if err != nil {
		return err
	}

	_, err = tasks.Transition(ctx, task.ID, a2a.TaskCompleted, &a2a.Message{
		Role:  a2a.RoleAgent,
		Parts: []a2a.Part{a2a.TextPart(sw.AggregatedOutput)},
	})
	return err
}

// taskPrompt flattens a task's initial message into the plain-text prompt
// the swarm planner decomposes into role assignments.
func taskPrompt(task *a2a.Task) string {
	if len(task.History) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range task.History[0].Parts {
		if part.Kind == a2a.PartText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// placeholderRunner stands in for the real per-role work a deployment would
// plug in (an LLM call, a tool invocation, ...); the orchestrator itself is
// agnostic to how an agent's output is produced.
func placeholderRunner(agent *swarm.Agent) (string, error) {
	return fmt.Sprintf("[%s] completed: %s", agent.Role.Name, agent.Task.Description), nil
}

// registerGatewayHandlers wires the Gateway Transport's required methods
// (connect, agent, agent_identity, sessions_list, sessions_patch,
// config_get) onto swarm/task primitives.
func registerGatewayHandlers(gw *gatewaytransport.Server, orch *swarm.Orchestrator, tasks *a2a.TaskManager, dispatcher *a2a.Dispatcher, card a2a.Card, authMode string) {
	gw.Handle("connect", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{"accepted": true}, nil
	})

	gw.Handle("agent", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			SessionID string `json:"sessionId"`
			Message   string `json:"message"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}

		resp := dispatcher.DispatchStreaming(ctx, a2a.RPCRequest{
			JSONRPC:   "2.0",
			MethodRaw: a2a.MethodRaw(a2a.MethodMessageSend),
			Params: mustMarshal(a2a.MessageSendParams{
				SessionID: req.SessionID,
				Message:   a2a.Message{Role: a2a.RoleUser, Parts: []a2a.Part{a2a.TextPart(req.Message)}},
			}),
		})
		if resp.Error != nil {
			return nil, fmt.Errorf("%s", resp.Error.Message)
		}
		task, ok := resp.Result.(*a2a.Task)
		if !ok {
			return nil, fmt.Errorf("unexpected dispatch result type %T", resp.Result)
		}

		go streamTaskEvents(gw, tasks, task.ID)
		return map[string]any{"runId": task.ID}, nil
	})

	gw.Handle("agent_identity", func(ctx context.Context, params json.RawMessage) (any, error) {
		return card, nil
	})

	gw.Handle("sessions_list", func(ctx context.Context, params json.RawMessage) (any, error) {
		swarms := orch.ListSwarms()
		out := make([]map[string]any, 0, len(swarms))
		for _, sw := range swarms {
			out = append(out, map[string]any{
				"id":     sw.ID,
				"task":   sw.Task,
				"status": sw.Status,
			})
		}
		return out, nil
	})

	gw.Handle("sessions_patch", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			ID     string `json:"id"`
			Action string `json:"action"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		if req.Action != "close" {
			return nil, fmt.Errorf("unsupported sessions_patch action %q", req.Action)
		}
		if err := orch.Dissolve(req.ID); err != nil {
			return nil, err
		}
		return map[string]any{"id": req.ID, "status": "dissolved"}, nil
	})

	gw.Handle("config_get", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{
			"authMode": authMode,
			"card":     card,
		}, nil
	})
}

// streamTaskEvents forwards a task's SSE-shaped status/artifact updates onto
// the Gateway as "agent" stream-chunk events, finishing with a "chat" event
// once the task reaches a terminal state.
func streamTaskEvents(gw *gatewaytransport.Server, tasks *a2a.TaskManager, taskID string) {
	sub, unsubscribe, err := tasks.Subscribe(taskID)
	if err != nil {
		return
	}
	defer unsubscribe()

	seq := 0
	for event := range sub {
		seq++
		switch event.Type {
		case a2a.StreamEventArtifact:
			if event.Artifact == nil {
				continue
			}
			gw.Broadcast("agent", map[string]any{
				"runId":  taskID,
				"seq":    seq,
				"stream": "text",
				"data":   artifactText(event.Artifact),
			})
		case a2a.StreamEventStatus:
			if event.Final {
				gw.Broadcast("chat", map[string]any{"runId": taskID, "state": event.Status.State})
				return
			}
		}
	}
}

func artifactText(artifact *a2a.Artifact) string {
	var b strings.Builder
	for _, part := range artifact.Parts {
		if part.Kind == a2a.PartText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
