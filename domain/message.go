// Package domain contains core concepts of the chat relay.
// This file defines ChatMessage and the rules applied before one is built.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"
)

// DefaultMaxContentBytes bounds ChatMessage content when no limit is configured.
const DefaultMaxContentBytes = 4096

// ChatMessage represents an immutable chat message as relayed to every session.
// Timestamp is assigned by the message bus, never by the client.
type ChatMessage struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
}

// NewChatMessage stamps an already validated command.
func NewChatMessage(cmd SendMessageCommand, at time.Time) ChatMessage {
	return ChatMessage{
		UserID:    cmd.SenderID,
		Timestamp: at,
		Content:   cmd.Content,
	}
}
