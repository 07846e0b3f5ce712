package domain

// StatusCode is the outcome of a connection, encoded like an HTTP status
// because the desktop client interprets it that way.
type StatusCode int

const (
	StatusEstablished   StatusCode = 200
	StatusUnreachable   StatusCode = 404
	StatusInternalError StatusCode = 500
)

// ConnectionStatus reports the connection health of one session.
// Message is derived from Code only.
type ConnectionStatus struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"message"`
}

// NewConnectionStatus builds the status for a code. Unknown codes become internal errors.
func NewConnectionStatus(code StatusCode) ConnectionStatus {
	code = StatusFromCode(int(code))
	return ConnectionStatus{Code: code, Message: code.String()}
}

// StatusFromCode applies the three-way mapping: 200, 404, anything else is 500.
func StatusFromCode(code int) StatusCode {
	switch StatusCode(code) {
	case StatusEstablished:
		return StatusEstablished
	case StatusUnreachable:
		return StatusUnreachable
	default:
		return StatusInternalError
	}
}

func (c StatusCode) String() string {
	switch c {
	case StatusEstablished:
		return "Connection established"
	case StatusUnreachable:
		return "Server unreachable"
	default:
		return "Internal server error"
	}
}
