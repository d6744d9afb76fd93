package domain

import "time"

// MessageRole identifies the author side of a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// MessageType identifies the payload kind of a message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

// Message belongs to a chat. Image-type assistant messages carry a reference
// to the generation that produces their content; a message whose generation is
// not terminal is in flight.
type Message struct {
	ID           string
	UserID       string
	ChatID       string
	Content      string
	Role         MessageRole
	Type         MessageType
	GenerationID string
	Metadata     []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
