package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Xiaobei-QuQ/stagewise/internal/agent"
	"github.com/Xiaobei-QuQ/stagewise/internal/domain"
	"github.com/Xiaobei-QuQ/stagewise/internal/prompt"
	"github.com/Xiaobei-QuQ/stagewise/internal/realtime"
	realtimeTypes "github.com/Xiaobei-QuQ/stagewise/pkg/realtime"
)

var realtimeUpgrader = websocket.Upgrader{
	// The toolbar connects from the page under development, so the origin
	// is never ours.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) realtimeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := realtimeUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := realtime.NewClient(generateID(), conn)
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID())

	go client.WriteLoop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg realtimeTypes.ClientEnvelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendRealtimeError(client, "invalid message")
			continue
		}

		switch msg.Type {
		case realtimeTypes.ClientMessageTypeSubscribe:
			h.handleSubscribe(client, msg.Topics)
		case realtimeTypes.ClientMessageTypeUnsubscribe:
			h.handleUnsubscribe(client, msg.Topics)
		case realtimeTypes.ClientMessageTypePing:
			if !client.Queue(realtimeTypes.ServerEnvelope{Type: realtimeTypes.ServerMessageTypePong}) {
				return
			}
		case realtimeTypes.ClientMessageTypeSendMessage:
			// Turns outlive the connection that started them; never tie the
			// subprocess to the request context.
			h.handleSendMessage(context.Background(), client, msg.Payload)
		case realtimeTypes.ClientMessageTypeCreateChat:
			h.agent.CreateChat(context.Background())
		case realtimeTypes.ClientMessageTypeSwitchChat:
			h.handleSwitchChat(client, msg.Payload)
		case realtimeTypes.ClientMessageTypeDeleteChat:
			h.handleDeleteChat(context.Background(), client, msg.Payload)
		case realtimeTypes.ClientMessageTypeAbort:
			h.agent.Abort()
		default:
			h.sendRealtimeError(client, "unsupported message type")
		}
	}
}

func (h *Handler) handleSubscribe(client *realtime.Client, topics []string) {
	valid := make([]string, 0, len(topics))
	for _, topic := range topics {
		if !realtime.IsSupportedTopic(topic) {
			h.sendRealtimeError(client, "unsupported topic: "+topic)
			continue
		}
		valid = append(valid, topic)
	}
	if len(valid) == 0 {
		return
	}

	h.hub.Subscribe(client.ID(), valid)
	for _, topic := range valid {
		if !client.Queue(realtimeTypes.ServerEnvelope{
			Type:    realtimeTypes.ServerMessageTypeSnapshot,
			Topic:   topic,
			Payload: h.agent.Session().Snapshot(),
		}) {
			h.hub.Unregister(client.ID())
			return
		}
	}
}

func (h *Handler) handleUnsubscribe(client *realtime.Client, topics []string) {
	valid := make([]string, 0, len(topics))
	for _, topic := range topics {
		if !realtime.IsSupportedTopic(topic) {
			continue
		}
		valid = append(valid, topic)
	}
	if len(valid) == 0 {
		return
	}
	h.hub.Unsubscribe(client.ID(), valid)
}

func (h *Handler) handleSendMessage(ctx context.Context, client *realtime.Client, payload json.RawMessage) {
	var req realtimeTypes.SendMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendRealtimeError(client, "invalid send_message payload")
		return
	}

	elements := make([]prompt.SelectedElement, len(req.Elements))
	for i, el := range req.Elements {
		elements[i] = prompt.SelectedElement{
			Path:       el.Path,
			Text:       el.Text,
			Attributes: el.Attributes,
		}
	}

	err := h.agent.SendUserMessage(ctx, agent.UserInput{
		Text:          req.Text,
		Elements:      elements,
		Screenshots:   req.Screenshots,
		PluginContext: req.PluginContext,
	})
	if err != nil {
		if errors.Is(err, agent.ErrTurnActive) {
			h.sendRealtimeError(client, "a turn is already in progress")
			return
		}
		h.logger.Error("failed to run turn", "error", err)
		h.sendRealtimeError(client, "failed to start agent")
	}
}

func (h *Handler) handleSwitchChat(client *realtime.Client, payload json.RawMessage) {
	var req realtimeTypes.ChatPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatID == "" {
		h.sendRealtimeError(client, "invalid switch_chat payload")
		return
	}
	if err := h.agent.SwitchChat(req.ChatID); err != nil {
		if errors.Is(err, domain.ErrChatNotFound) {
			h.sendRealtimeError(client, "chat not found: "+req.ChatID)
			return
		}
		h.sendRealtimeError(client, "failed to switch chat")
	}
}

func (h *Handler) handleDeleteChat(ctx context.Context, client *realtime.Client, payload json.RawMessage) {
	var req realtimeTypes.ChatPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatID == "" {
		h.sendRealtimeError(client, "invalid delete_chat payload")
		return
	}
	if err := h.agent.DeleteChat(ctx, req.ChatID); err != nil {
		if errors.Is(err, domain.ErrChatNotFound) {
			h.sendRealtimeError(client, "chat not found: "+req.ChatID)
			return
		}
		h.sendRealtimeError(client, "failed to delete chat")
	}
}

func (h *Handler) sendRealtimeError(client *realtime.Client, message string) {
	if !client.Queue(realtimeTypes.ServerEnvelope{
		Type:    realtimeTypes.ServerMessageTypeError,
		Message: message,
	}) {
		h.hub.Unregister(client.ID())
	}
}
