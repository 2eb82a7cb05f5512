package a2a

import "fmt"

// transitions enumerates the exact edges of the task state machine; no other
// edges exist.
var transitions = map[TaskState][]TaskState{
	TaskSubmitted:     {TaskWorking, TaskCanceled},
	TaskWorking:       {TaskCompleted, TaskFailed, TaskCanceled, TaskInputRequired},
	TaskInputRequired: {TaskWorking, TaskCanceled},
	TaskCompleted:     {},
	TaskFailed:        {},
	TaskCanceled:      {},
}

// IsTerminal reports whether a state has no outgoing transitions.
func IsTerminal(s TaskState) bool {
	edges, ok := transitions[s]
	return ok && len(edges) == 0
}

// IsValidTransition reports whether from -> to is an edge of the state
// machine.
func IsValidTransition(from, to TaskState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InvalidTransition is returned by AssertTransition when from -> to is not a
// valid edge.
type InvalidTransition struct {
	From    TaskState
	To      TaskState
	Allowed []TaskState
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s (allowed: %v)", e.From, e.To, e.Allowed)
}

// AssertTransition validates from -> to, returning an *InvalidTransition
// carrying both states and the allowed set if the edge does not exist.
func AssertTransition(from, to TaskState) error {
	if IsValidTransition(from, to) {
		return nil
	}
	return &InvalidTransition{From: from, To: to, Allowed: append([]TaskState(nil), transitions[from]...)}
}
