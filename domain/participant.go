// Package domain contains core concepts of the chat relay.
// This file defines the lifecycle states a session goes through.
// No runtime, network, or UI logic should be added here.
package domain

// SessionState is a step of the per-session state machine:
// Connecting -> Active -> Closing -> Closed.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanTransition tells whether the state machine allows moving from s to next.
// Closed is terminal. Connecting may jump straight to Closed when the session
// is never registered.
func (s SessionState) CanTransition(next SessionState) bool {
	switch s {
	case StateConnecting:
		return next == StateActive || next == StateClosing || next == StateClosed
	case StateActive:
		return next == StateClosing
	case StateClosing:
		return next == StateClosed
	default:
		return false
	}
}
