// Package prompt builds the wire-level input message the agent subprocess
// expects from the heterogeneous context the toolbar supplies: free text,
// a DOM selection snapshot, screenshots and plugin-contributed snippets.
package prompt

import (
	"encoding/json"
	"strings"
)

const screenshotMediaType = "image/png"

// ContentBlock is one element of the wire message content array.
type ContentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource is an inline base64 image attachment.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// UserMessage is the message body of the wire input.
type UserMessage struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// WireMessage is the single JSON object written to the agent's input
// channel before it is closed.
type WireMessage struct {
	Type    string      `json:"type"`
	Message UserMessage `json:"message"`
}

// Encode serializes the wire message to one JSON line.
func (m WireMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Input is the bundle Build composes into a wire message. All fields but
// Text are optional; DOMContext and PluginSnippets are pre-serialized.
type Input struct {
	Text           string
	DOMContext     string
	Screenshots    []string
	PluginSnippets []string
}

// Build constructs the wire input message. The layout is a contract:
// one inline image block per screenshot in input order, then exactly one
// text block holding, in order and blank-line separated, the labeled DOM
// context, the labeled plugin context, and the raw user text.
func Build(in Input) WireMessage {
	content := make([]ContentBlock, 0, len(in.Screenshots)+1)

	for _, data := range in.Screenshots {
		content = append(content, ContentBlock{
			Type: "image",
			Source: &ImageSource{
				Type:      "base64",
				MediaType: screenshotMediaType,
				Data:      data,
			},
		})
	}

	var sections []string
	if in.DOMContext != "" {
		sections = append(sections, "Selected elements context:\n"+in.DOMContext)
	}
	if len(in.PluginSnippets) > 0 {
		sections = append(sections, "Plugin context:\n"+strings.Join(in.PluginSnippets, "\n"))
	}
	sections = append(sections, in.Text)

	content = append(content, ContentBlock{
		Type: "text",
		Text: strings.Join(sections, "\n\n"),
	})

	return WireMessage{
		Type: "user",
		Message: UserMessage{
			Role:    "user",
			Content: content,
		},
	}
}
