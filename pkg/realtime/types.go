// Package realtime defines the wire protocol spoken over the toolbar
// websocket: client operation envelopes and server push envelopes.
package realtime

import "encoding/json"

type ClientMessageType string

const (
	ClientMessageTypeSubscribe   ClientMessageType = "subscribe"
	ClientMessageTypeUnsubscribe ClientMessageType = "unsubscribe"
	ClientMessageTypePing        ClientMessageType = "ping"
	ClientMessageTypeSendMessage ClientMessageType = "send_message"
	ClientMessageTypeCreateChat  ClientMessageType = "create_chat"
	ClientMessageTypeSwitchChat  ClientMessageType = "switch_chat"
	ClientMessageTypeDeleteChat  ClientMessageType = "delete_chat"
	ClientMessageTypeAbort       ClientMessageType = "abort"
)

type ServerMessageType string

const (
	ServerMessageTypeSnapshot ServerMessageType = "snapshot"
	ServerMessageTypeUpdate   ServerMessageType = "update"
	ServerMessageTypeError    ServerMessageType = "error"
	ServerMessageTypePong     ServerMessageType = "pong"
)

// ClientEnvelope is one operation from the toolbar. Payload is decoded
// per Type.
type ClientEnvelope struct {
	Type    ClientMessageType `json:"type"`
	Topics  []string          `json:"topics,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

// ServerEnvelope is one push from the server to the toolbar.
type ServerEnvelope struct {
	Type    ServerMessageType `json:"type"`
	Topic   string            `json:"topic,omitempty"`
	Payload any               `json:"payload,omitempty"`
	Message string            `json:"message,omitempty"`
}

// SelectedElement describes one DOM element the user selected in the
// browser before sending a message.
type SelectedElement struct {
	Path       string            `json:"path,omitempty"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SendMessagePayload carries a user message with its captured page context.
type SendMessagePayload struct {
	Text          string                       `json:"text"`
	Elements      []SelectedElement            `json:"elements,omitempty"`
	Screenshots   []string                     `json:"screenshots,omitempty"`
	PluginContext map[string]map[string]string `json:"pluginContext,omitempty"`
}

// ChatPayload addresses one chat for switch and delete operations.
type ChatPayload struct {
	ChatID string `json:"chatId"`
}
