package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageUser   MessageType = "user"
	MessageSystem MessageType = "system"
)

type ChatMessage struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"senderId,omitempty"`
	SenderName string      `json:"senderName,omitempty"`
	Text       string      `json:"text"`
	Timestamp  time.Time   `json:"timestamp"`
	Type       MessageType `json:"type"`
}

// newMessageID returns a time-ordered UUIDv7, so ids sort in creation order.
func newMessageID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func NewUserMessage(senderID, senderName, text string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:         newMessageID(),
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		Timestamp:  at,
		Type:       MessageUser,
	}
}

// NewSystemMessage never carries a sender id.
func NewSystemMessage(text string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:        newMessageID(),
		Text:      text,
		Timestamp: at,
		Type:      MessageSystem,
	}
}
