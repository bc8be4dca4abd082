// Package stream decodes the agent subprocess's newline-delimited JSON
// output into an ordered sequence of typed events.
package stream

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
)

// maxLineSize bounds a single stream record; large tool outputs can
// produce lines well beyond the bufio default.
const maxLineSize = 1024 * 1024

// Decoder reads NDJSON events from an agent's output channel. It is
// tolerant of arbitrary chunk boundaries: a record split across reads is
// reassembled before parsing, and a trailing record without a final
// newline is still decoded at stream end.
type Decoder struct {
	scanner *bufio.Scanner
	logger  *slog.Logger
}

// NewDecoder wraps the given reader. logger may be nil, in which case the
// default logger is used for decode warnings.
func NewDecoder(r io.Reader, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: scanner, logger: logger}
}

// Next returns the next decoded event in stream order. Empty lines are
// skipped; malformed lines are dropped with a warning and decoding
// continues. Next returns io.EOF once the underlying reader is exhausted.
func (d *Decoder) Next() (Event, error) {
	for d.scanner.Scan() {
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		event, err := ParseEvent(line)
		if err != nil {
			d.logger.Warn("dropping malformed stream line", "error", err, "line", string(line))
			continue
		}
		return event, nil
	}

	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// All drains the stream and returns every remaining event in order.
func (d *Decoder) All() ([]Event, error) {
	var events []Event
	for {
		event, err := d.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}
