package packet

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ConnState represents the connection's current protocol phase.
type ConnState int32

const (
	StateNotConnected ConnState = iota // accepted, handshake not finished
	StateStartup                       // authenticated, loading media and blocks
	StateInGame                        // playing
)

func (s ConnState) String() string {
	switch s {
	case StateNotConnected:
		return "NotConnected"
	case StateStartup:
		return "Startup"
	case StateInGame:
		return "InGame"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

// Requirement is the state a command descriptor demands from the issuing
// connection. It is either exactly one ConnState or the Any wildcard; a
// connection is never itself in the Any state.
type Requirement struct {
	state ConnState
	any   bool
}

// Any accepts a command regardless of the connection's state.
var Any = Requirement{any: true}

// Requires builds a Requirement bound to a single connection state.
func Requires(s ConnState) Requirement {
	return Requirement{state: s}
}

// IsAny reports whether r is the wildcard.
func (r Requirement) IsAny() bool { return r.any }

// State returns the bound state. Meaningless when IsAny is true.
func (r Requirement) State() ConnState { return r.state }

// Allows reports whether a connection in state s satisfies r.
func (r Requirement) Allows(s ConnState) bool {
	return r.any || r.state == s
}

func (r Requirement) String() string {
	if r.any {
		return "Any"
	}
	return r.state.String()
}

// ErrFatal marks an error that must end the session. Handlers wrap it (see
// Fatal) and the dispatcher classifies such errors as OutcomeFatal.
var ErrFatal = errors.New("fatal")

// ErrIllegalTransition is returned when a handler asks for a state that is
// not the immediate successor of the current one.
var ErrIllegalTransition = fmt.Errorf("%w: illegal state transition", ErrFatal)

// Fatal returns an error that forces session teardown.
func Fatal(reason string) error {
	return fmt.Errorf("%w: %s", ErrFatal, reason)
}

// StateTracker holds one connection's lifecycle state. Transitions only move
// forward along NotConnected -> Startup -> InGame.
//
// Only the connection's own processing context (the game loop) may call
// Transition. The value is stored atomically so other goroutines can read it
// for logging.
type StateTracker struct {
	state atomic.Int32
}

// State returns the current state.
func (t *StateTracker) State() ConnState {
	return ConnState(t.state.Load())
}

// Transition moves to next if it is the immediate successor of the current
// state. Any other request leaves the state untouched and returns an error
// wrapping ErrIllegalTransition.
func (t *StateTracker) Transition(next ConnState) error {
	cur := t.State()
	if next != cur+1 || next > StateInGame {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, cur, next)
	}
	t.state.Store(int32(next))
	return nil
}
