package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType identifies the kind of content a message part carries.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
	PartFile  PartType = "file"
)

// Part is one typed piece of message content. Text parts carry the
// accumulating answer text; image and file parts are opaque attachments
// described by their media type and base64 data.
type Part struct {
	Type      PartType `json:"type"`
	Text      string   `json:"text,omitempty"`
	MediaType string   `json:"mediaType,omitempty"`
	Data      string   `json:"data,omitempty"`
}

// Message is a single entry in a chat transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"createdAt"`
	// Context holds the serialized page context captured when the user sent
	// the message, if any. Informational only.
	Context string `json:"context,omitempty"`
}

// NewMessage creates an empty message with a fresh identifier.
func NewMessage(role Role) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Parts:     []Part{},
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a user message with a single text part plus any
// image attachments.
func NewUserMessage(text string, context string, screenshots []string) Message {
	msg := NewMessage(RoleUser)
	msg.Context = context
	for _, data := range screenshots {
		msg.Parts = append(msg.Parts, Part{
			Type:      PartImage,
			MediaType: "image/png",
			Data:      data,
		})
	}
	msg.Parts = append(msg.Parts, Part{Type: PartText, Text: text})
	return msg
}
