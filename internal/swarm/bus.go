package swarm

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/agentmesh/internal/observability"
)

const (
	maxBusHistory  = 1000
	historyRetain  = 0.8
	broadcastAgent = "*"
)

// Message is one entry exchanged on the Bus.
type Message struct {
	ID          int64
	SwarmID     string
	From        string
	To          string
	Topic       string
	Payload     any
	TimestampMs int64
	ReplyTo     string
}

// Handler processes one Message. A panicking handler is recovered and
// logged; it never affects sibling handlers.
type Handler func(Message)

// Bus is the in-process pub/sub channel Swarm Agents use to coordinate.
// One Bus instance is shared by every swarm in a process; message history
// and subscriptions are not partitioned by swarm except where callers pass
// a swarmId explicitly.
type Bus struct {
	mu               sync.RWMutex
	subscribers      map[string]map[int]Handler
	topicSubscribers map[string]map[int]Handler
	history          []Message
	nextSubID        int
	nextMsgID        int64
	logger           *observability.Logger
}

// NewBus builds an empty Bus.
func NewBus(logger *observability.Logger) *Bus {
	return &Bus{
		subscribers:      make(map[string]map[int]Handler),
		topicSubscribers: make(map[string]map[int]Handler),
		logger:           logger,
	}
}

// Subscribe registers handler for direct messages addressed to agentID.
func (b *Bus) Subscribe(agentID string, handler Handler) func() {
	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	if b.subscribers[agentID] == nil {
		b.subscribers[agentID] = make(map[int]Handler)
	}
	b.subscribers[agentID][id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers[agentID], id)
		b.mu.Unlock()
	}
}

// SubscribeTopic registers handler for every message published to topic.
func (b *Bus) SubscribeTopic(topic string, handler Handler) func() {
	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	if b.topicSubscribers[topic] == nil {
		b.topicSubscribers[topic] = make(map[int]Handler)
	}
	b.topicSubscribers[topic][id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.topicSubscribers[topic], id)
		b.mu.Unlock()
	}
}

// Send delivers a message to a specific recipient's direct subscribers, then
// to that topic's subscribers.
func (b *Bus) Send(swarmID, from, to, topic string, payload any, replyTo string) Message {
	msg := b.record(swarmID, from, to, topic, payload, replyTo)
	b.dispatch(b.directHandlers(to), msg)
	b.dispatch(b.topicHandlers(topic), msg)
	return msg
}

// Broadcast delivers a message to every direct subscriber except from, then
// to topic subscribers.
func (b *Bus) Broadcast(swarmID, from, topic string, payload any) Message {
	msg := b.record(swarmID, from, broadcastAgent, topic, payload, "")

	b.mu.RLock()
	var handlers []Handler
	for agentID, subs := range b.subscribers {
		if agentID == from {
			continue
		}
		for _, h := range subs {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	b.dispatch(handlers, msg)
	b.dispatch(b.topicHandlers(topic), msg)
	return msg
}

func (b *Bus) directHandlers(agentID string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var handlers []Handler
	for _, h := range b.subscribers[agentID] {
		handlers = append(handlers, h)
	}
	return handlers
}

func (b *Bus) topicHandlers(topic string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var handlers []Handler
	for _, h := range b.topicSubscribers[topic] {
		handlers = append(handlers, h)
	}
	return handlers
}

func (b *Bus) dispatch(handlers []Handler, msg Message) {
	for _, h := range handlers {
		b.invoke(h, msg)
	}
}

func (b *Bus) invoke(h Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.Error(nil, "bus handler panicked", "panic", r, "swarm_id", msg.SwarmID, "topic", msg.Topic)
			}
		}
	}()
	h(msg)
}

func (b *Bus) record(swarmID, from, to, topic string, payload any, replyTo string) Message {
	msg := Message{
		ID:          atomic.AddInt64(&b.nextMsgID, 1),
		SwarmID:     swarmID,
		From:        from,
		To:          to,
		Topic:       topic,
		Payload:     payload,
		TimestampMs: time.Now().UnixMilli(),
		ReplyTo:     replyTo,
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > maxBusHistory {
		retain := int(float64(maxBusHistory) * historyRetain)
		b.history = append([]Message(nil), b.history[len(b.history)-retain:]...)
	}
	b.mu.Unlock()

	return msg
}

// GetHistory returns the most recent limit messages for swarmID (0 means
// the default of 50), oldest first.
func (b *Bus) GetHistory(swarmID string, limit int) []Message {
	if limit <= 0 {
		limit = 50
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Message
	for _, m := range b.history {
		if m.SwarmID == swarmID {
			matched = append(matched, m)
		}
	}
	return tail(matched, limit)
}

// GetAgentMessages returns the most recent limit messages sent to or from
// agentID (0 means the default of 50).
func (b *Bus) GetAgentMessages(agentID string, limit int) []Message {
	if limit <= 0 {
		limit = 50
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Message
	for _, m := range b.history {
		if m.From == agentID || m.To == agentID {
			matched = append(matched, m)
		}
	}
	return tail(matched, limit)
}

// ClearSwarm removes swarmID's history entries and every subscriber
// registered through Subscribe/SubscribeTopic is left untouched (those are
// agent-scoped, not swarm-scoped, and are detached by the agent itself).
func (b *Bus) ClearSwarm(swarmID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.history[:0]
	for _, m := range b.history {
		if m.SwarmID != swarmID {
			kept = append(kept, m)
		}
	}
	b.history = kept
}

// Reset drops all subscribers and history.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]map[int]Handler)
	b.topicSubscribers = make(map[string]map[int]Handler)
	b.history = nil
}

func tail(messages []Message, limit int) []Message {
	if len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}
