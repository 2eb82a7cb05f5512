package a2a

import (
	"context"
	"encoding/json"
)

// ExecuteTaskHook performs the actual work of a task once it has moved to
// Working. Implementations are expected to call Transition/AppendArtifact on
// the given TaskManager as work progresses and return a non-nil error only
// when the task should be marked Failed.
type ExecuteTaskHook func(ctx context.Context, tasks *TaskManager, task *Task) error

// ToolExecutor runs a named tool against already-validated parameters. The
// core engine never implements this itself; it is supplied by whatever
// embeds the A2A Server.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, params json.RawMessage) (any, error)
}

// SecretResolver resolves a vault reference (as used by KnownAgent.AuthVaultRef)
// to the actual secret value at call time, so secrets never sit in the
// Registry in plaintext for longer than a single RPC.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// PaymentEstimator prices a prospective tool call before it runs, letting a
// caller reject a task on cost grounds.
type PaymentEstimator interface {
	EstimateCost(ctx context.Context, toolName string, params json.RawMessage) (float64, error)
}

// ScanBackend screens a message or artifact for policy violations before it
// is persisted to task history.
type ScanBackend interface {
	Scan(ctx context.Context, content string) (allowed bool, reason string, err error)
}
