package domain

import "time"

// JournalEntry is one recorded lifecycle step of a session.
// The journal never holds message content.
type JournalEntry struct {
	SessionID  string
	RemoteAddr string
	State      SessionState
	Code       StatusCode
	At         time.Time
}
