package session

import (
	"errors"
	"fmt"
)

// State is the connection lifecycle of a device session. Transitions are
// linear except Error, which is reachable from any state and exits only
// through an explicit Connect.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateStreaming
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Sentinel errors for illegal session operations.
var (
	ErrNotConnected     = errors.New("session: not connected")
	ErrAlreadyConnected = errors.New("session: already connected")
	ErrStreamActive     = errors.New("session: stream already active")
	ErrStreamInactive   = errors.New("session: stream not active")
)

// SessionError wraps the failure that forced the session into the Error
// state.
type SessionError struct {
	Cause error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session: entered error state: %v", e.Cause)
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}
