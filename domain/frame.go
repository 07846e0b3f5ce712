package domain

import (
	"time"
)

type FrameType string

const (
	FrameMessage FrameType = "message"
	FrameStatus  FrameType = "status"
	FrameAck     FrameType = "ack"
	FrameError   FrameType = "error"
)

// Frame is the envelope written to a session transport.
type Frame struct {
	Type      FrameType         `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	Message   *ChatMessage      `json:"message,omitempty"`
	Status    *ConnectionStatus `json:"status,omitempty"`
	Ack       *Ack              `json:"ack,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Ack is returned to the sender once its message has been fanned out.
type Ack struct {
	Timestamp time.Time `json:"timestamp"`
	Delivered int       `json:"delivered"`
}

// InboundMessage is what a client writes on its transport.
// It keeps the shape of ChatMessage; a client supplied timestamp is ignored.
type InboundMessage struct {
	UserID    string     `json:"user_id,omitempty"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func MessageFrame(m ChatMessage) Frame {
	return Frame{Type: FrameMessage, Message: &m}
}

func StatusFrame(sessionID string, s ConnectionStatus) Frame {
	return Frame{Type: FrameStatus, SessionID: sessionID, Status: &s}
}

func AckFrame(a Ack) Frame {
	return Frame{Type: FrameAck, Ack: &a}
}

func ErrorFrame(err error) Frame {
	return Frame{Type: FrameError, Error: err.Error()}
}
