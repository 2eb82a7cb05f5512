package gatewaytransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haasonsaas/agentmesh/internal/observability"
)

const (
	maxFramePayloadBytes = 1 << 20
	pongWait             = 45 * time.Second
	writeWait            = 10 * time.Second
	pingInterval         = 20 * time.Second
)

// RequestHandler answers a Request frame's method with a payload or an
// error. It may do blocking work; the server invokes it in its own
// goroutine so slow handlers never stall the read loop.
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, error)

// Server accepts Gateway Transport connections over WebSocket and dispatches
// Request frames to registered handlers.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]RequestHandler
	sessions map[string]*serverSession
	upgrader websocket.Upgrader
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewServer returns a Server with no handlers registered.
func NewServer(logger *observability.Logger, metrics *observability.Metrics) *Server {
	return &Server{
		handlers: make(map[string]RequestHandler),
		sessions: make(map[string]*serverSession),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Broadcast pushes an Event frame named name to every currently-connected
// session.
func (s *Server) Broadcast(name string, payload any) {
	s.mu.RLock()
	sessions := make([]*serverSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()
	for _, sess := range sessions {
		_ = sess.Emit(name, payload)
	}
}

func (s *Server) addSession(sess *serverSession) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
}

func (s *Server) removeSession(sess *serverSession) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
}

// Handle registers handler for method. Calling it again for the same method
// replaces the previous handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

func (s *Server) handlerFor(method string) (RequestHandler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[method]
	return h, ok
}

// ServeHTTP upgrades the connection and runs its session until the peer
// disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	session := &serverSession{
		server: s,
		conn:   conn,
		send:   make(chan Frame, 64),
		ctx:    ctx,
		cancel: cancel,
		id:     uuid.NewString(),
	}
	s.addSession(session)
	if s.metrics != nil {
		s.metrics.GatewayConnected()
	}
	if observability.IsDiagnosticsEnabled() {
		observability.EmitGatewayConnected(&observability.GatewayConnectionEvent{SessionID: session.id})
	}
	session.run()
	s.removeSession(session)
	if s.metrics != nil {
		s.metrics.GatewayDisconnected()
	}
	if observability.IsDiagnosticsEnabled() {
		observability.EmitGatewayDisconnected(&observability.GatewayConnectionEvent{SessionID: session.id})
	}
}

// serverSession is one upgraded WebSocket connection and its read/write
// loops.
type serverSession struct {
	server *Server
	conn   *websocket.Conn
	send   chan Frame
	ctx    context.Context
	cancel context.CancelFunc
	id     string
}

func (s *serverSession) run() {
	defer s.close()
	go s.writeLoop()
	s.readLoop()
}

func (s *serverSession) close() {
	s.cancel()
	close(s.send)
	_ = s.conn.Close()
}

func (s *serverSession) readLoop() {
	s.conn.SetReadLimit(maxFramePayloadBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Type != FrameRequest {
			continue
		}
		go s.handle(frame)
	}
}

func (s *serverSession) handle(frame Frame) {
	if s.server.metrics != nil {
		s.server.metrics.RecordGatewayFrame("in", string(FrameRequest))
	}
	if observability.IsDiagnosticsEnabled() {
		observability.EmitGatewayFrame(&observability.GatewayFrameEvent{
			SessionID: s.id,
			Direction: "in",
			FrameType: string(FrameRequest),
		})
	}

	handler, ok := s.server.handlerFor(frame.Method)
	if !ok {
		s.respond(frame.ID, nil, &FrameError{Code: "unknown_method", Message: fmt.Sprintf("unknown method %q", frame.Method)})
		return
	}

	payload, err := handler(s.ctx, frame.Params)
	if err != nil {
		s.respond(frame.ID, nil, &FrameError{Code: "handler_error", Message: err.Error()})
		return
	}
	s.respond(frame.ID, payload, nil)
}

func (s *serverSession) respond(id string, payload any, ferr *FrameError) {
	resp, err := newResponseFrame(id, payload, ferr)
	if err != nil {
		resp, _ = newResponseFrame(id, nil, &FrameError{Code: "encode_error", Message: err.Error()})
	}
	s.enqueue(resp)
}

// Emit pushes an Event frame to this session.
func (s *serverSession) Emit(name string, payload any) error {
	frame, err := newEventFrame(name, payload)
	if err != nil {
		return err
	}
	s.enqueue(frame)
	return nil
}

func (s *serverSession) enqueue(frame Frame) {
	if observability.IsDiagnosticsEnabled() {
		observability.EmitGatewayFrame(&observability.GatewayFrameEvent{
			SessionID: s.id,
			Direction: "out",
			FrameType: string(frame.Type),
		})
	}
	select {
	case s.send <- frame:
	case <-s.ctx.Done():
	default:
		if s.server.logger != nil {
			s.server.logger.Warn(s.ctx, "gateway send buffer full, dropping frame", "session", s.id, "type", frame.Type)
		}
	}
}

func (s *serverSession) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case frame, ok := <-s.send:
			if !ok {
				return
			}
			data, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if s.server.metrics != nil {
				s.server.metrics.RecordGatewayFrame("out", string(frame.Type))
			}
		}
	}
}
