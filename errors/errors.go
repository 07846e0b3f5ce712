package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Registry
	ErrDuplicateIdentity = fmt.Errorf("duplicate session identity")
	ErrCapacityReached   = fmt.Errorf("maximum number of sessions reached")

	// Input validation, logged and dropped
	ErrMessageTooLarge  = fmt.Errorf("message content exceeds maximum size")
	ErrMalformedMessage = fmt.Errorf("malformed message")
	ErrEmptyContent     = fmt.Errorf("message content is empty")
	ErrUnknownSender    = fmt.Errorf("sender is not a live session")

	// Session lifecycle
	ErrTransport     = fmt.Errorf("transport error")
	ErrSessionClosed = fmt.Errorf("session closed")
	ErrRelayClosed   = fmt.Errorf("relay is shutting down")

	// Server fatal, surfaced to the operator
	ErrResourceExhausted = fmt.Errorf("resource exhausted")
)

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
