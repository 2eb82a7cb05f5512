package gatewaytransport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/agentmesh/internal/backoff"
	"github.com/haasonsaas/agentmesh/internal/observability"
)

// ConnState is an observable Gateway client connection state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

const (
	requestTimeout    = 30 * time.Second
	maxReconnectTries = 10
)

var reconnectPolicy = backoff.GatewayReconnectPolicy()

// ClientInfo identifies the caller in the post-connect handshake.
type ClientInfo struct {
	Client  string
	Version string
}

// pendingRequest tracks one in-flight request awaiting a correlated
// Response frame.
type pendingRequest struct {
	resultCh chan pendingResult
}

type pendingResult struct {
	payload json.RawMessage
	err     error
}

// Client is a single-connection-per-process, reconnecting Gateway Transport
// client. Callers obtain one via NewClient and call Connect once; reconnects
// after connection loss are automatic until Disconnect is called or the
// retry budget is exhausted.
type Client struct {
	url  string
	info ClientInfo

	logger  *observability.Logger
	metrics *observability.Metrics

	mu          sync.Mutex
	conn        *websocket.Conn
	state       ConnState
	pending     map[string]*pendingRequest
	nextID      int64
	disconnected bool
	attempts    int

	eventMu     sync.Mutex
	eventSubs   map[string]map[int]func(json.RawMessage)
	nextEventID int

	stateMu   sync.Mutex
	stateSubs map[int]func(ConnState)
	nextState int
}

// NewClient builds a Client targeting url. Call Connect to start it.
func NewClient(url string, info ClientInfo, logger *observability.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		url:       url,
		info:      info,
		logger:    logger,
		metrics:   metrics,
		state:     StateDisconnected,
		pending:   make(map[string]*pendingRequest),
		eventSubs: make(map[string]map[int]func(json.RawMessage)),
		stateSubs: make(map[int]func(ConnState)),
	}
}

// Connect dials the Gateway server and starts the reconnect loop in the
// background. It returns once the first connection attempt (including its
// post-connect handshake) completes or fails.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.disconnected = false
	c.mu.Unlock()

	errCh := make(chan error, 1)
	go c.connectionLoop(ctx, errCh)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect cancels reconnection and fails every pending request with
// ConnectionClosed.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.disconnected = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.setState(StateDisconnected)
	c.failAllPending(&ConnectionClosed{Reason: "disconnect() called"})
}

func (c *Client) connectionLoop(ctx context.Context, firstAttempt chan error) {
	first := true
	for {
		c.mu.Lock()
		if c.disconnected {
			c.mu.Unlock()
			return
		}
		attempt := c.attempts
		c.mu.Unlock()

		if attempt > 0 {
			delay := backoff.ComputeDelay(reconnectPolicy, attempt)
			if err := backoff.SleepWithContext(ctx, delay); err != nil {
				c.sendFirst(firstAttempt, &first, err)
				return
			}
		}

		err := c.dialAndServe(ctx)
		if err == nil {
			// dialAndServe only returns nil if the caller disconnected.
			return
		}
		c.sendFirst(firstAttempt, &first, err)

		c.mu.Lock()
		if c.disconnected {
			c.mu.Unlock()
			return
		}
		c.attempts++
		attempts := c.attempts
		c.mu.Unlock()

		if attempts > maxReconnectTries {
			if c.metrics != nil {
				c.metrics.RecordGatewayReconnect("exhausted")
			}
			c.failAllPending(&ReconnectExhausted{Attempts: attempts})
			return
		}
		if c.metrics != nil {
			c.metrics.RecordGatewayReconnect("retry")
		}
	}
}

func (c *Client) sendFirst(ch chan error, first *bool, err error) {
	if *first {
		*first = false
		ch <- err
	}
}

// dialAndServe connects, performs the handshake, and reads frames until the
// connection drops or the client is told to disconnect.
func (c *Client) dialAndServe(ctx context.Context) error {
	c.setState(StateConnecting)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	readErrCh := make(chan error, 1)
	go func() { readErrCh <- c.readLoop(conn) }()

	if _, err := c.doRequest(ctx, "connect", map[string]any{
		"client":    c.info.Client,
		"version":   c.info.Version,
		"timestamp": time.Now().UnixMilli(),
	}); err != nil {
		_ = conn.Close()
		<-readErrCh
		return err
	}

	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()
	c.setState(StateConnected)
	if c.metrics != nil {
		c.metrics.GatewayConnected()
	}

	readErr := <-readErrCh

	c.mu.Lock()
	disconnected := c.disconnected
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	c.setState(StateDisconnected)
	if c.metrics != nil {
		c.metrics.GatewayDisconnected()
	}
	c.failAllPending(&ConnectionClosed{Reason: errString(readErr)})

	if disconnected {
		return nil
	}
	return readErr
}

func errString(err error) string {
	if err == nil {
		return "connection closed"
	}
	return err.Error()
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if c.metrics != nil {
			c.metrics.RecordGatewayFrame("in", string(frame.Type))
		}
		switch frame.Type {
		case FrameResponse:
			c.resolve(frame)
		case FrameEvent:
			c.dispatchEvent(frame)
		}
	}
}

// Request sends method/params and blocks until the correlated Response
// arrives, the request timeout elapses, or the connection drops.
func (c *Client) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.doRequest(ctx, method, params)
}

func (c *Client) doRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		// Allow the initial "connect" handshake to proceed even though the
		// client hasn't transitioned to connected yet.
		if method != "connect" {
			c.mu.Unlock()
			return nil, &NotConnected{}
		}
	}
	if method != "connect" && c.state != StateConnected {
		c.mu.Unlock()
		return nil, &NotConnected{}
	}

	c.nextID++
	id := fmt.Sprintf("req-%d", c.nextID)
	pr := &pendingRequest{resultCh: make(chan pendingResult, 1)}
	c.pending[id] = pr
	c.mu.Unlock()

	frame, err := newRequestFrame(id, method, params)
	if err != nil {
		c.removePending(id)
		return nil, err
	}
	data, err := json.Marshal(frame)
	if err != nil {
		c.removePending(id)
		return nil, err
	}

	c.mu.Lock()
	sendConn := c.conn
	c.mu.Unlock()
	if sendConn == nil {
		c.removePending(id)
		return nil, &NotConnected{}
	}
	_ = sendConn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := sendConn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.removePending(id)
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordGatewayFrame("out", string(FrameRequest))
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()

	select {
	case res := <-pr.resultCh:
		return res.payload, res.err
	case <-timer.C:
		c.removePending(id)
		return nil, &Timeout{After: requestTimeout}
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	}
}

func (c *Client) removePending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) resolve(frame Frame) {
	c.mu.Lock()
	pr, ok := c.pending[frame.ID]
	if ok {
		delete(c.pending, frame.ID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if frame.OK != nil && !*frame.OK {
		var ferr FrameError
		if frame.Error != nil {
			ferr = *frame.Error
		}
		pr.resultCh <- pendingResult{err: &RpcError{Code: ferr.Code, Message: ferr.Message}}
		return
	}
	pr.resultCh <- pendingResult{payload: frame.Payload}
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()
	for _, pr := range pending {
		pr.resultCh <- pendingResult{err: err}
	}
}

// On subscribes to server-originated events named eventName. A panicking
// handler is recovered by dispatchEvent and never affects sibling
// subscribers.
func (c *Client) On(eventName string, handler func(json.RawMessage)) func() {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()
	if c.eventSubs[eventName] == nil {
		c.eventSubs[eventName] = make(map[int]func(json.RawMessage))
	}
	c.nextEventID++
	id := c.nextEventID
	c.eventSubs[eventName][id] = handler
	return func() {
		c.eventMu.Lock()
		defer c.eventMu.Unlock()
		delete(c.eventSubs[eventName], id)
	}
}

func (c *Client) dispatchEvent(frame Frame) {
	c.eventMu.Lock()
	handlers := make([]func(json.RawMessage), 0, len(c.eventSubs[frame.Name]))
	for _, h := range c.eventSubs[frame.Name] {
		handlers = append(handlers, h)
	}
	c.eventMu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil && c.logger != nil {
					c.logger.Error(context.Background(), "gateway event handler panicked", "event", frame.Name, "panic", r)
				}
			}()
			h(frame.Payload)
		}()
	}
}

// OnStateChange subscribes to connection-state transitions.
func (c *Client) OnStateChange(handler func(ConnState)) func() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.nextState++
	id := c.nextState
	c.stateSubs[id] = handler
	return func() {
		c.stateMu.Lock()
		defer c.stateMu.Unlock()
		delete(c.stateSubs, id)
	}
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()

	c.stateMu.Lock()
	handlers := make([]func(ConnState), 0, len(c.stateSubs))
	for _, h := range c.stateSubs {
		handlers = append(handlers, h)
	}
	c.stateMu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil && c.logger != nil {
					c.logger.Error(context.Background(), "gateway state handler panicked", "panic", r)
				}
			}()
			h(s)
		}()
	}
}

// State returns the client's current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
