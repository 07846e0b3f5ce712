package event

import (
	"chat-relay/domain"
	"time"
)

// StatusEvent is published each time a session changes state or status.
type StatusEvent struct {
	SessionID  string
	RemoteAddr string
	State      domain.SessionState
	Status     domain.ConnectionStatus
	At         time.Time
}
