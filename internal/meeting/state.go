package meeting

import "fmt"

// State is the lifecycle position of the orchestrator's current meeting.
//
// The only legal path is Idle → Initializing → Active → Stopping → Stopped →
// Idle. A failed start rolls Initializing back to Idle.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateActive
	StateStopping
	StateStopped
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateInitializing: "initializing",
	StateActive:       "active",
	StateStopping:     "stopping",
	StateStopped:      "stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name so status JSON stays readable.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("meeting: unknown state %q", text)
}

// next reports whether to is a legal successor of s.
func (s State) next(to State) bool {
	switch s {
	case StateIdle:
		return to == StateInitializing
	case StateInitializing:
		return to == StateActive || to == StateIdle
	case StateActive:
		return to == StateStopping
	case StateStopping:
		return to == StateStopped
	case StateStopped:
		return to == StateIdle
	}
	return false
}
