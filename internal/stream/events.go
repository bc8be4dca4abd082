package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventType is the tag of a decoded agent stream event.
type EventType string

const (
	EventSystem     EventType = "system"
	EventAssistant  EventType = "assistant"
	EventToolUse    EventType = "tool_use"
	EventToolResult EventType = "tool_result"
	EventResult     EventType = "result"
	EventUnknown    EventType = "unknown"
)

// Event is one record from the agent's NDJSON output stream. Exactly one
// of the payload pointers matching Type is set; tool and unknown events
// carry only the raw line.
type Event struct {
	Type      EventType
	System    *SystemEvent
	Assistant *AssistantEvent
	Result    *ResultEvent
	Raw       json.RawMessage
}

// SystemEvent carries agent lifecycle notices. Subtype "init" signals the
// subprocess is ready and reports its resumable session identifier.
type SystemEvent struct {
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id"`
}

// AssistantEvent is a snapshot of the assistant's message so far. Each
// event carries the full accumulated content, not a delta.
type AssistantEvent struct {
	Message AssistantMessage `json:"message"`
}

type AssistantMessage struct {
	Content []ContentFragment `json:"content"`
}

type ContentFragment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text concatenates all text-typed fragments in order.
func (e *AssistantEvent) Text() string {
	var b strings.Builder
	for _, frag := range e.Message.Content {
		if frag.Type == "text" {
			b.WriteString(frag.Text)
		}
	}
	return b.String()
}

// ResultEvent is the turn outcome summary emitted once at the end of a run.
type ResultEvent struct {
	Result     string `json:"result"`
	IsError    bool   `json:"is_error"`
	DurationMS int64  `json:"duration_ms"`
}

// ParseEvent parses a single stream line into a typed event. Unrecognized
// type tags yield an EventUnknown carrying the raw line, never an error;
// only malformed JSON fails.
func ParseEvent(line []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return Event{}, fmt.Errorf("parse stream event: %w", err)
	}

	raw := json.RawMessage(append([]byte(nil), line...))
	event := Event{Raw: raw}

	switch EventType(envelope.Type) {
	case EventSystem:
		var payload SystemEvent
		if err := json.Unmarshal(line, &payload); err != nil {
			return Event{}, fmt.Errorf("parse system event: %w", err)
		}
		event.Type = EventSystem
		event.System = &payload

	case EventAssistant:
		var payload AssistantEvent
		if err := json.Unmarshal(line, &payload); err != nil {
			return Event{}, fmt.Errorf("parse assistant event: %w", err)
		}
		event.Type = EventAssistant
		event.Assistant = &payload

	case EventResult:
		var payload ResultEvent
		if err := json.Unmarshal(line, &payload); err != nil {
			return Event{}, fmt.Errorf("parse result event: %w", err)
		}
		event.Type = EventResult
		event.Result = &payload

	case EventToolUse:
		event.Type = EventToolUse

	case EventToolResult:
		event.Type = EventToolResult

	default:
		event.Type = EventUnknown
	}

	return event, nil
}
