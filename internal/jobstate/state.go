package jobstate

import (
	"fmt"
	"strings"
)

// State is a job lifecycle state.
type State string

const (
	StateCreated      State = "created"
	StateQueued       State = "queued"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateRetrying     State = "retrying"
	StateCancelled    State = "cancelled"
)

// States lists every state in lifecycle order.
var States = []State{
	StateCreated,
	StateQueued,
	StateInitializing,
	StateRunning,
	StateRetrying,
	StateCompleted,
	StateFailed,
	StateCancelled,
}

// Terminal reports whether no event can move a job out of s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Valid reports whether s is a declared state.
func (s State) Valid() bool {
	for _, candidate := range States {
		if s == candidate {
			return true
		}
	}
	return false
}

// ParseState converts text into a State.
func ParseState(value string) (State, error) {
	s := State(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown job state %q", value)
	}
	return s, nil
}

// Event is the only way to change a job's state.
type Event string

const (
	EventStart    Event = "start"
	EventProgress Event = "progress"
	EventComplete Event = "complete"
	EventFail     Event = "fail"
	EventRetry    Event = "retry"
	EventCancel   Event = "cancel"
)

// Events lists every event.
var Events = []Event{EventStart, EventProgress, EventComplete, EventFail, EventRetry, EventCancel}

// ParseEvent converts text into an Event.
func ParseEvent(value string) (Event, error) {
	e := Event(strings.ToLower(strings.TrimSpace(value)))
	for _, candidate := range Events {
		if e == candidate {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown job event %q", value)
}

// transitions maps state and event to the next state. A fail from an active
// state resolves to StateRetrying or StateFailed by classification; the
// table records StateFailed as the conservative target.
var transitions = map[State]map[Event]State{
	StateCreated: {
		EventStart:  StateQueued,
		EventCancel: StateCancelled,
	},
	StateQueued: {
		EventStart:    StateInitializing,
		EventProgress: StateRunning,
		EventComplete: StateCompleted,
		EventFail:     StateFailed,
		EventCancel:   StateCancelled,
	},
	StateInitializing: {
		EventProgress: StateRunning,
		EventComplete: StateCompleted,
		EventFail:     StateFailed,
		EventCancel:   StateCancelled,
	},
	StateRunning: {
		EventProgress: StateRunning,
		EventComplete: StateCompleted,
		EventFail:     StateFailed,
		EventCancel:   StateCancelled,
	},
	StateRetrying: {
		EventRetry:  StateQueued,
		EventFail:   StateFailed,
		EventCancel: StateCancelled,
	},
}

// nextState returns the table target for event in from.
func nextState(from State, event Event) (State, bool) {
	to, ok := transitions[from][event]
	return to, ok
}

// Allowed returns the events accepted in s.
func Allowed(s State) []Event {
	var out []Event
	for _, event := range Events {
		if _, ok := transitions[s][event]; ok {
			out = append(out, event)
		}
	}
	return out
}
