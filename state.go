package feather

import (
	"fmt"

	"github.com/mwantia/feather/data"
)

// State is the lifecycle state of a pipeline element.
type State uint8

const (
	StateNotStarted State = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Event drives a State transition.
type Event uint8

const (
	EventStart Event = iota
	EventPause
	EventResume
	EventStop
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventStop:
		return "stop"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// Transition returns the state reached by applying e to s. Stop is accepted
// from every state and is idempotent; every other transition not listed
// below fails with data.ErrIllegalState.
//
//	not-started --start--> running
//	running     --pause--> paused
//	paused      --resume-> running
//	*           --stop---> stopped
func Transition(s State, e Event) (State, error) {
	switch {
	case e == EventStop:
		return StateStopped, nil
	case s == StateNotStarted && e == EventStart:
		return StateRunning, nil
	case s == StateRunning && e == EventPause:
		return StatePaused, nil
	case s == StatePaused && e == EventResume:
		return StateRunning, nil
	}
	return s, fmt.Errorf("%w: cannot %s while %s", data.ErrIllegalState, e, s)
}
