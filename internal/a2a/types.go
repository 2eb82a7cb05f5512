// Package a2a implements the Agent-to-Agent protocol v0.2: a JSON-RPC 2.0 +
// SSE contract for task-driven interoperability between agents, plus the
// discovery primitives (agent cards, a known-agent registry) that sit in
// front of it.
package a2a

import (
	"strings"
	"time"
)

// TaskState is one of the finite states a Task can occupy.
type TaskState string

const (
	TaskSubmitted      TaskState = "submitted"
	TaskWorking        TaskState = "working"
	TaskInputRequired  TaskState = "input-required"
	TaskCompleted      TaskState = "completed"
	TaskFailed         TaskState = "failed"
	TaskCanceled       TaskState = "canceled"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// PartKind discriminates the union type Part.
type PartKind string

const (
	PartText PartKind = "text"
	PartFile PartKind = "file"
	PartData PartKind = "data"
)

// Part is one fragment of a Message or Artifact. Exactly one of Text, File,
// or Data is populated, selected by Kind.
type Part struct {
	Kind PartKind `json:"type"`

	Text string `json:"text,omitempty"`

	FileName string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"` // base64
	URI      string `json:"uri,omitempty"`

	Data any `json:"data,omitempty"`
}

// TextPart builds a text Part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// Message is one turn of conversation attached to a Task.
type Message struct {
	Role     Role           `json:"role"`
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Status is a Task's current state plus the timestamp it was set at.
type Status struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Artifact is one piece of agent-produced output, possibly streamed in
// chunks.
type Artifact struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Parts       []Part `json:"parts"`
	Index       int    `json:"index"`
	Append      bool   `json:"append,omitempty"`
	LastChunk   bool   `json:"lastChunk,omitempty"`
}

// Task is a unit of work driven through the A2A protocol.
type Task struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	Status    Status         `json:"status"`
	History   []Message      `json:"history"`
	Artifacts []Artifact     `json:"artifacts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep-enough copy suitable for returning to callers without
// risking a data race with the Task Manager's internal mutation.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	clone.History = append([]Message(nil), t.History...)
	clone.Artifacts = append([]Artifact(nil), t.Artifacts...)
	if t.Metadata != nil {
		clone.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// Capabilities advertises what an agent supports.
type Capabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// Skill is one capability an agent advertises for discovery/matching.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// AuthScheme describes one accepted authentication mechanism.
type AuthScheme struct {
	Scheme string `json:"scheme"`
}

// Provider carries optional attribution about who runs an agent.
type Provider struct {
	Organization string `json:"organization,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Card is the descriptor served at an agent's well-known discovery URL.
// Cards are immutable once fetched and are identified by BaseURL.
type Card struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	BaseURL      string       `json:"url"`
	Version      string       `json:"version"`
	Capabilities Capabilities `json:"capabilities"`
	Skills       []Skill      `json:"skills"`
	Auth         []AuthScheme `json:"authentication,omitempty"`
	Provider     *Provider    `json:"provider,omitempty"`

	FetchedAt time.Time `json:"-"`
}

// NormalizeBaseURL strips a trailing slash so cards/known agents are keyed
// consistently regardless of how the caller wrote the URL.
func NormalizeBaseURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

// KnownAgent is a registry entry for a remote agent the local agent trusts
// enough to call directly.
type KnownAgent struct {
	URL          string `json:"url"`
	DisplayName  string `json:"displayName,omitempty"`
	AuthToken    string `json:"authToken,omitempty"`
	AuthVaultRef string `json:"authVaultRef,omitempty"`
}

// StreamEventType discriminates the StreamEvent union.
type StreamEventType string

const (
	StreamEventStatus   StreamEventType = "status-update"
	StreamEventArtifact StreamEventType = "artifact-update"
)

// StreamEvent is the closed tagged union emitted on SSE streams:
// TaskStatusUpdate | TaskArtifactUpdate.
type StreamEvent struct {
	Type StreamEventType `json:"type"`

	TaskID string `json:"taskId"`

	// Populated when Type == StreamEventStatus.
	Status *Status `json:"status,omitempty"`
	Final  bool     `json:"final,omitempty"`

	// Populated when Type == StreamEventArtifact.
	Artifact *Artifact `json:"artifact,omitempty"`
}
