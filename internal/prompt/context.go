package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Xiaobei-QuQ/stagewise/internal/domain"
)

// SelectedElement describes one page element the user selected in the
// toolbar before sending a message.
type SelectedElement struct {
	// Path is a locator for the element (e.g. a CSS-like ancestor chain).
	Path string `json:"path,omitempty"`
	// Text is the element's visible text content, possibly truncated.
	Text string `json:"text,omitempty"`
	// Attributes holds the element's HTML attributes.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SerializeDOMContext renders the selected elements as one human-readable
// block per element, blank-line separated. Returns "" for an empty or nil
// selection, in which case no context block is emitted.
func SerializeDOMContext(elements []SelectedElement) string {
	if len(elements) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(elements))
	for i, el := range elements {
		var b strings.Builder
		fmt.Fprintf(&b, "Element %d:", i+1)
		if el.Path != "" {
			fmt.Fprintf(&b, "\n  path: %s", el.Path)
		}
		if el.Text != "" {
			fmt.Fprintf(&b, "\n  text: %s", el.Text)
		}
		if len(el.Attributes) > 0 {
			fmt.Fprintf(&b, "\n  attributes: %s", compactAttributes(el.Attributes))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func compactAttributes(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+attrs[k])
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

// ExtractScreenshots filters a message parts list down to image-file
// attachments, preserving order and returning only their base64 payloads.
// Parts without payload data are excluded.
func ExtractScreenshots(parts []domain.Part) []string {
	var shots []string
	for _, p := range parts {
		if p.Type != domain.PartImage && p.Type != domain.PartFile {
			continue
		}
		if !strings.HasPrefix(p.MediaType, "image/") {
			continue
		}
		if p.Data == "" {
			continue
		}
		shots = append(shots, p.Data)
	}
	return shots
}

// ExtractPluginSnippets flattens the two-level plugin content mapping into
// labeled text blocks, one per item, formatted "[plugin/item]" followed by
// the item's text. Enumeration is sorted by plugin then item name so the
// output is deterministic.
func ExtractPluginSnippets(plugins map[string]map[string]string) []string {
	if len(plugins) == 0 {
		return nil
	}

	pluginNames := make([]string, 0, len(plugins))
	for name := range plugins {
		pluginNames = append(pluginNames, name)
	}
	sort.Strings(pluginNames)

	var snippets []string
	for _, plugin := range pluginNames {
		items := plugins[plugin]
		itemNames := make([]string, 0, len(items))
		for name := range items {
			itemNames = append(itemNames, name)
		}
		sort.Strings(itemNames)

		for _, item := range itemNames {
			snippets = append(snippets, fmt.Sprintf("[%s/%s]\n%s", plugin, item, items[item]))
		}
	}
	return snippets
}
