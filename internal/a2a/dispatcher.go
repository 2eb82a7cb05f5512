package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/haasonsaas/agentmesh/internal/observability"
)

// jsonRPCVersion is the only accepted value for a request envelope's
// "jsonrpc" field.
const jsonRPCVersion = "2.0"

// Methods the Dispatcher recognizes.
const (
	MethodMessageSend   = "message/send"
	MethodMessageStream = "message/stream"
	MethodTasksGet      = "tasks/get"
	MethodTasksCancel   = "tasks/cancel"
)

// RPCRequest is a JSON-RPC 2.0 request envelope. Method is captured raw
// (rather than as a Go string) so a non-string method in the wire payload is
// a validation failure rather than a JSON decode failure; callers read the
// resolved method name through Method().
type RPCRequest struct {
	JSONRPC   string          `json:"jsonrpc"`
	ID        json.RawMessage `json:"id,omitempty"`
	MethodRaw json.RawMessage `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Method returns the request's method name and whether it was a JSON
// string, as required by the JSON-RPC envelope shape.
func (r RPCRequest) Method() (string, bool) {
	var method string
	if err := json.Unmarshal(r.MethodRaw, &method); err != nil {
		return "", false
	}
	return method, true
}

// MethodRaw marshals a method name into the raw form RPCRequest.MethodRaw
// expects, for callers building a request envelope directly.
func MethodRaw(method string) json.RawMessage {
	b, _ := json.Marshal(method)
	return b
}

// RPCResponse is a JSON-RPC 2.0 response envelope. Exactly one of Result or
// Error is populated.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCErrorBody   `json:"error,omitempty"`
}

// RPCErrorBody is the wire shape of a JSON-RPC error.
type RPCErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MessageSendParams is the params shape for message/send and message/stream.
type MessageSendParams struct {
	TaskID    string  `json:"taskId,omitempty"`
	SessionID string  `json:"sessionId,omitempty"`
	Message   Message `json:"message"`
}

// TaskIDParams is the params shape for tasks/get and tasks/cancel.
type TaskIDParams struct {
	TaskID string `json:"taskId"`
}

// Dispatcher routes JSON-RPC requests to Task Manager operations and
// translates the resulting task-state errors into wire-level RPC errors.
type Dispatcher struct {
	tasks  *TaskManager
	hook   ExecuteTaskHook
	logger *observability.Logger
}

// NewDispatcher wires a Dispatcher against a TaskManager and the hook used
// to actually run a task's work once it moves to Working.
func NewDispatcher(tasks *TaskManager, hook ExecuteTaskHook, logger *observability.Logger) *Dispatcher {
	return &Dispatcher{tasks: tasks, hook: hook, logger: logger}
}

// Dispatch executes one JSON-RPC request against the synchronous RPC route
// and returns the response envelope. Dispatch never returns a Go error:
// failures are always encoded as an RPCResponse.Error so callers can always
// marshal the result directly.
func (d *Dispatcher) Dispatch(ctx context.Context, req RPCRequest) RPCResponse {
	return d.dispatch(ctx, req, true)
}

// DispatchStreaming executes one JSON-RPC request against the streaming RPC
// route: message/send and message/stream both return as soon as the task
// reaches Working, with the ExecuteTaskHook running concurrently with the
// caller's SSE read loop.
func (d *Dispatcher) DispatchStreaming(ctx context.Context, req RPCRequest) RPCResponse {
	return d.dispatch(ctx, req, false)
}

func (d *Dispatcher) dispatch(ctx context.Context, req RPCRequest, blocking bool) RPCResponse {
	resp := RPCResponse{JSONRPC: "2.0", ID: req.ID}

	if err := validateEnvelope(req); err != nil {
		resp.Error = toRPCError(err)
		return resp
	}

	result, err := d.route(ctx, req, blocking)
	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	resp.Result = result
	return resp
}

// validateEnvelope checks the request envelope's shape before any routing
// happens: the jsonrpc version must be exactly "2.0", id (if present) must
// be a JSON string, number, or null, and method must be a JSON string.
func validateEnvelope(req RPCRequest) error {
	if req.JSONRPC != jsonRPCVersion {
		return newProtocolError(CodeInvalidRequest, "invalid jsonrpc version %q, want %q", req.JSONRPC, jsonRPCVersion)
	}
	if !isValidRPCID(req.ID) {
		return newProtocolError(CodeInvalidRequest, "id must be a string, number, or null")
	}
	if _, ok := req.Method(); !ok {
		return newProtocolError(CodeInvalidRequest, "method must be a string")
	}
	return nil
}

func isValidRPCID(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return true
	}
	var s string
	if json.Unmarshal(trimmed, &s) == nil {
		return true
	}
	var n json.Number
	return json.Unmarshal(trimmed, &n) == nil
}

func (d *Dispatcher) route(ctx context.Context, req RPCRequest, blocking bool) (any, error) {
	method, _ := req.Method()
	switch method {
	case MethodMessageSend, MethodMessageStream:
		return d.handleMessageSend(ctx, req.Params, blocking)
	case MethodTasksGet:
		return d.handleTasksGet(req.Params)
	case MethodTasksCancel:
		return d.handleTasksCancel(ctx, req.Params)
	default:
		return nil, newProtocolError(CodeMethodNotFound, "unknown method %q", method)
	}
}

// handleMessageSend creates or resumes a task and transitions it to Working.
// When blocking is true (message/send on the synchronous RPC route) it
// awaits the ExecuteTaskHook before returning the final task state; when
// false (message/stream) the hook runs concurrently with the caller's SSE
// read loop and the task is returned still in Working.
func (d *Dispatcher) handleMessageSend(ctx context.Context, raw json.RawMessage, blocking bool) (*Task, error) {
	var params MessageSendParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, newProtocolError(CodeInvalidParams, "invalid params: %v", err)
	}

	var task *Task
	var err error
	if params.TaskID != "" {
		task, err = d.tasks.Get(params.TaskID)
		if err != nil {
			return nil, err
		}
	} else {
		task, err = d.tasks.CreateTask(params.SessionID, params.Message)
		if err != nil {
			return nil, err
		}
	}

	task, err = d.tasks.Transition(ctx, task.ID, TaskWorking, &params.Message)
	if err != nil {
		return nil, err
	}

	if d.hook == nil {
		return task, nil
	}

	if blocking {
		d.runHook(ctx, task.ID)
		return d.tasks.Get(task.ID)
	}

	go d.runHook(context.WithoutCancel(ctx), task.ID)
	return task, nil
}

func (d *Dispatcher) runHook(ctx context.Context, taskID string) {
	task, err := d.tasks.Get(taskID)
	if err != nil {
		return
	}
	if err := d.hook(ctx, d.tasks, task); err != nil {
		d.logger.Error(ctx, "task execution hook failed", "task_id", taskID, "error", err)
		_, _ = d.tasks.Transition(ctx, taskID, TaskFailed, &Message{
			Role:  RoleAgent,
			Parts: []Part{TextPart("Error: " + err.Error())},
		})
	}
}

func (d *Dispatcher) handleTasksGet(raw json.RawMessage) (*Task, error) {
	var params TaskIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, newProtocolError(CodeInvalidParams, "invalid params: %v", err)
	}
	return d.tasks.Get(params.TaskID)
}

func (d *Dispatcher) handleTasksCancel(ctx context.Context, raw json.RawMessage) (*Task, error) {
	var params TaskIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, newProtocolError(CodeInvalidParams, "invalid params: %v", err)
	}
	return d.tasks.Cancel(ctx, params.TaskID)
}

func toRPCError(err error) *RPCErrorBody {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return &RPCErrorBody{Code: pe.Code, Message: pe.Message}
	}
	var invalid *InvalidTransition
	if errors.As(err, &invalid) {
		return &RPCErrorBody{Code: CodeInvalidRequest, Message: invalid.Error()}
	}
	return &RPCErrorBody{Code: CodeInternalError, Message: err.Error()}
}
