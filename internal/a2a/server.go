package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/haasonsaas/agentmesh/internal/auth"
	"github.com/haasonsaas/agentmesh/internal/observability"
)

const (
	sseHeartbeatInterval = 15 * time.Second
	maxRequestBodyBytes  = 10 << 20 // 10 MiB
)

// Server exposes the A2A JSON-RPC + SSE surface over HTTP.
type Server struct {
	card   Card
	disp   *Dispatcher
	tasks  *TaskManager
	authn  *auth.Authenticator
	logger *observability.Logger
	mux    *http.ServeMux
}

// NewServer wires a Server around the given agent Card and Dispatcher. If
// authn is nil, requests are accepted unauthenticated.
func NewServer(card Card, disp *Dispatcher, tasks *TaskManager, authn *auth.Authenticator, logger *observability.Logger) *Server {
	s := &Server{card: card, disp: disp, tasks: tasks, authn: authn, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/.well-known/agent-card.json", s.handleCard)
	s.mux.HandleFunc("/a2a/messages", s.withAuth(s.handleRPC))
	s.mux.HandleFunc("/a2a/messages:stream", s.withAuth(s.handleSendStream))
	s.mux.HandleFunc("/a2a/tasks/subscribe", s.withAuth(s.handleSubscribe))
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authn == nil {
			next(w, r)
			return
		}
		if err := s.authn.Authenticate(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.card)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
		http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, CodeParseError, "parse error")
		return
	}
	if method, ok := req.Method(); ok && method != MethodMessageSend && method != MethodTasksGet && method != MethodTasksCancel {
		writeRPCError(w, req.ID, CodeMethodNotFound, fmt.Sprintf("unsupported method %q on this route", method))
		return
	}

	resp := s.disp.Dispatch(r.Context(), req)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleSendStream starts a task via message/send or message/stream and
// streams its status/artifact events back as SSE until a terminal event or
// client disconnect.
func (s *Server) handleSendStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, CodeParseError, "parse error")
		return
	}
	if method, ok := req.Method(); ok && method != MethodMessageSend && method != MethodMessageStream {
		writeRPCError(w, req.ID, CodeMethodNotFound, fmt.Sprintf("unsupported method %q on this route", method))
		return
	}

	resp := s.disp.DispatchStreaming(r.Context(), req)
	if resp.Error != nil {
		writeRPCError(w, req.ID, resp.Error.Code, resp.Error.Message)
		return
	}
	task, ok := resp.Result.(*Task)
	if !ok {
		writeRPCError(w, req.ID, CodeInternalError, "unexpected dispatch result")
		return
	}

	s.streamTask(w, r, task.ID, req.ID)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	taskID := r.URL.Query().Get("taskId")
	if taskID == "" {
		http.Error(w, "taskId is required", http.StatusBadRequest)
		return
	}
	s.streamTask(w, r, taskID, nil)
}

// streamTask writes the raw current status immediately, then streams
// subsequent StreamEvents until a terminal event or client disconnect. When
// rpcID is non-nil, each event is wrapped in a JSON-RPC response envelope
// (the message/send:stream contract); otherwise the raw StreamEvent is
// written (the tasks/subscribe contract).
func (s *Server) streamTask(w http.ResponseWriter, r *http.Request, taskID string, rpcID json.RawMessage) {
	task, err := s.tasks.Get(taskID)
	if err != nil {
		writeRPCError(w, rpcID, CodeTaskNotFound, err.Error())
		return
	}

	events, unsubscribe, err := s.tasks.Subscribe(taskID)
	if err != nil {
		writeRPCError(w, rpcID, CodeTaskNotFound, err.Error())
		return
	}
	defer unsubscribe()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	current := StreamEvent{Type: StreamEventStatus, TaskID: task.ID, Status: &task.Status, Final: IsTerminal(task.Status.State)}
	s.writeEvent(w, current, rpcID)
	flusher.Flush()
	if current.Final {
		return
	}

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			s.writeEvent(w, event, rpcID)
			flusher.Flush()
			if event.Final {
				return
			}
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, event StreamEvent, rpcID json.RawMessage) {
	var payload any = event
	if rpcID != nil {
		payload = RPCResponse{JSONRPC: "2.0", ID: rpcID, Result: event}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error(context.Background(), "marshal stream event failed", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCErrorBody{Code: code, Message: message},
	})
}
