package handshake

import (
	"errors"
	"fmt"
)

// State is the lifecycle of the embedded payment surface for one checkout.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateSubmitting
	StateSucceeded
	StateFailed
)

var ErrIllegalTransition = errors.New("illegal session transition")

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// MarshalText lets State render as its name in JSON responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// legalTransitions is the complete edge table; failed->ready (retry) is the only backward edge.
var legalTransitions = map[State][]State{
	StateIdle:       {StateLoading},
	StateLoading:    {StateReady},
	StateReady:      {StateSubmitting},
	StateSubmitting: {StateSucceeded, StateFailed},
	StateFailed:     {StateReady},
}

// Session tracks the state of the single active checkout of a page load.
type Session struct {
	state State
}

func NewSession() *Session {
	return &Session{state: StateIdle}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) CanTransition(to State) bool {
	for _, next := range legalTransitions[s.state] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the session to the given state. An illegal edge leaves the
// state untouched and returns ErrIllegalTransition.
func (s *Session) Transition(to State) error {
	if !s.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.state, to)
	}
	s.state = to
	return nil
}
