package a2a

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentmesh/internal/observability"
)

const (
	// subscriberBuffer bounds how many stream events a single subscriber can
	// lag behind before events start getting dropped.
	subscriberBuffer = 32

	// pruneInterval is how often the background sweep calls
	// PruneExpiredTasks on its own.
	pruneInterval = 5 * time.Minute

	// defaultTaskExpiry is the spec's default for how long a terminal task
	// is kept before it's pruned (§5: "expiryMs default 60 min").
	defaultTaskExpiry = 60 * time.Minute
)

type taskEntry struct {
	mu          sync.Mutex
	task        *Task
	subscribers map[int]chan StreamEvent
	nextSubID   int
	terminalAt  time.Time
}

// TaskManager owns the full set of in-flight and recently-completed tasks
// for an A2A Server. Tasks are not persisted across restarts.
type TaskManager struct {
	mu        sync.RWMutex
	tasks     map[string]*taskEntry
	maxTasks  int
	expiry    time.Duration
	logger    *observability.Logger
	metrics   *observability.Metrics
	stopPrune chan struct{}
	pruneOnce sync.Once
}

// NewTaskManager builds a TaskManager capped at maxTasks concurrently
// tracked tasks (0 means unbounded). expiryMs is how long a task stays
// around once it reaches a terminal state before PruneExpiredTasks (called
// both on the background sweep and on demand) evicts it; <= 0 defaults to
// defaultTaskExpiry. The background prune sweep starts immediately.
func NewTaskManager(maxTasks int, expiryMs int64, logger *observability.Logger, metrics *observability.Metrics) *TaskManager {
	expiry := time.Duration(expiryMs) * time.Millisecond
	if expiry <= 0 {
		expiry = defaultTaskExpiry
	}
	tm := &TaskManager{
		tasks:     make(map[string]*taskEntry),
		maxTasks:  maxTasks,
		expiry:    expiry,
		logger:    logger,
		metrics:   metrics,
		stopPrune: make(chan struct{}),
	}
	go tm.pruneLoop()
	return tm
}

// Close stops the background prune sweep. Safe to call more than once.
func (tm *TaskManager) Close() {
	tm.pruneOnce.Do(func() { close(tm.stopPrune) })
}

// CreateTask allocates a new Task in the Submitted state seeded with the
// initial message.
func (tm *TaskManager) CreateTask(sessionID string, initial Message) (*Task, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.maxTasks > 0 && len(tm.tasks) >= tm.maxTasks {
		return nil, ErrTaskLimitReached
	}

	task := &Task{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status: Status{
			State:     TaskSubmitted,
			Timestamp: time.Now(),
		},
		History: []Message{initial},
	}

	tm.tasks[task.ID] = &taskEntry{
		task:        task,
		subscribers: make(map[int]chan StreamEvent),
	}

	if tm.metrics != nil {
		tm.metrics.RecordTaskTransition("", string(TaskSubmitted))
	}

	return task.Clone(), nil
}

// Get returns a snapshot copy of the task, or ErrTaskNotFound.
func (tm *TaskManager) Get(taskID string) (*Task, error) {
	entry, err := tm.entry(taskID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.task.Clone(), nil
}

func (tm *TaskManager) entry(taskID string) (*taskEntry, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	entry, ok := tm.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return entry, nil
}

// Transition moves a task to a new state, appending message (if non-nil) to
// its history and notifying subscribers. Returns *InvalidTransition if the
// edge is not allowed by the task state machine.
func (tm *TaskManager) Transition(ctx context.Context, taskID string, to TaskState, message *Message) (*Task, error) {
	entry, err := tm.entry(taskID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	from := entry.task.Status.State
	if err := AssertTransition(from, to); err != nil {
		entry.mu.Unlock()
		return nil, err
	}

	entry.task.Status = Status{State: to, Message: message, Timestamp: time.Now()}
	if message != nil {
		entry.task.History = append(entry.task.History, *message)
	}
	final := IsTerminal(to)
	if final {
		entry.terminalAt = time.Now()
	}
	snapshot := entry.task.Clone()
	event := StreamEvent{
		Type:   StreamEventStatus,
		TaskID: taskID,
		Status: &entry.task.Status,
		Final:  final,
	}
	entry.mu.Unlock()

	tm.publish(ctx, entry, event)

	if tm.metrics != nil {
		tm.metrics.RecordTaskTransition(string(from), string(to))
	}
	tm.logger.Info(observability.AddTaskID(ctx, taskID), "task transitioned", "from", from, "to", to)

	if observability.IsDiagnosticsEnabled() {
		observability.EmitTaskTransition(&observability.TaskTransitionEvent{
			TaskID:    taskID,
			SessionID: snapshot.SessionID,
			From:      string(from),
			To:        string(to),
		})
	}

	return snapshot, nil
}

// AppendArtifact attaches an artifact to the task and notifies subscribers.
func (tm *TaskManager) AppendArtifact(ctx context.Context, taskID string, artifact Artifact) (*Task, error) {
	entry, err := tm.entry(taskID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	entry.task.Artifacts = append(entry.task.Artifacts, artifact)
	snapshot := entry.task.Clone()
	event := StreamEvent{
		Type:     StreamEventArtifact,
		TaskID:   taskID,
		Artifact: &artifact,
	}
	entry.mu.Unlock()

	tm.publish(ctx, entry, event)
	return snapshot, nil
}

// Cancel transitions a task to Canceled. Returns ErrTaskNotCancelable if the
// task is already in a terminal state.
func (tm *TaskManager) Cancel(ctx context.Context, taskID string) (*Task, error) {
	entry, err := tm.entry(taskID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	if IsTerminal(entry.task.Status.State) {
		entry.mu.Unlock()
		return nil, ErrTaskNotCancelable
	}
	entry.mu.Unlock()

	return tm.Transition(ctx, taskID, TaskCanceled, nil)
}

// Subscribe registers a stream listener for taskID and returns a channel of
// events plus an unsubscribe func. The channel is closed when unsubscribe
// runs or the task reaches a terminal state.
func (tm *TaskManager) Subscribe(taskID string) (<-chan StreamEvent, func(), error) {
	entry, err := tm.entry(taskID)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan StreamEvent, subscriberBuffer)

	entry.mu.Lock()
	id := entry.nextSubID
	entry.nextSubID++
	entry.subscribers[id] = ch
	entry.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			entry.mu.Lock()
			if c, ok := entry.subscribers[id]; ok {
				delete(entry.subscribers, id)
				close(c)
			}
			entry.mu.Unlock()
		})
	}

	return ch, unsubscribe, nil
}

func (tm *TaskManager) publish(ctx context.Context, entry *taskEntry, event StreamEvent) {
	entry.mu.Lock()
	subs := make(map[int]chan StreamEvent, len(entry.subscribers))
	for id, ch := range entry.subscribers {
		subs[id] = ch
	}
	final := event.Final
	entry.mu.Unlock()

	for id, ch := range subs {
		select {
		case ch <- event:
		default:
			tm.logger.Warn(ctx, "dropping stream event for slow subscriber", "task_id", event.TaskID, "subscriber", id)
		}
	}

	if final {
		entry.mu.Lock()
		for id, ch := range entry.subscribers {
			delete(entry.subscribers, id)
			close(ch)
		}
		entry.mu.Unlock()
	}
}

func (tm *TaskManager) pruneLoop() {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tm.PruneExpiredTasks()
		case <-tm.stopPrune:
			return
		}
	}
}

// PruneExpiredTasks sweeps every tracked task and evicts the ones that
// reached a terminal state more than expiryMs ago, returning the number of
// tasks evicted. Safe to call concurrently with the background sweep or on
// demand.
func (tm *TaskManager) PruneExpiredTasks() int {
	cutoff := time.Now().Add(-tm.expiry)

	tm.mu.Lock()
	defer tm.mu.Unlock()

	pruned := 0
	for id, entry := range tm.tasks {
		entry.mu.Lock()
		terminal := IsTerminal(entry.task.Status.State)
		old := terminal && entry.terminalAt.Before(cutoff)
		entry.mu.Unlock()
		if old {
			delete(tm.tasks, id)
			pruned++
		}
	}
	return pruned
}

// Count returns the number of tasks currently tracked.
func (tm *TaskManager) Count() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.tasks)
}

// String implements fmt.Stringer for debug logging.
func (tm *TaskManager) String() string {
	return fmt.Sprintf("TaskManager(tasks=%d)", tm.Count())
}
