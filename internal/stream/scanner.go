package stream

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/rpampin-cresteo/chatbot-widget/internal/chat"
)

// DoneSentinel is the upstream payload that marks logical end-of-stream,
// distinct from transport EOF.
const DoneSentinel = "[DONE]"

const (
	scannerInitialBuffer = 64 * 1024
	scannerMaxEvent      = 1024 * 1024
)

// EventScanner splits an event-stream byte source into data payloads.
// Events are separated by a blank line; only "data:"-prefixed lines
// contribute, and multiple data lines within one event are concatenated.
type EventScanner struct {
	sc *bufio.Scanner
}

// NewEventScanner wraps r with event-stream framing.
func NewEventScanner(r io.Reader) *EventScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxEvent)
	sc.Split(splitEvents)
	return &EventScanner{sc: sc}
}

// Next returns the next non-empty data payload. ok is false at end of
// stream; check Err afterwards.
func (s *EventScanner) Next() (payload string, ok bool) {
	for s.sc.Scan() {
		if payload := eventPayload(s.sc.Text()); payload != "" {
			return payload, true
		}
	}
	return "", false
}

// Err returns the first error hit by the underlying reader, if any.
func (s *EventScanner) Err() error {
	return s.sc.Err()
}

// splitEvents is a bufio.SplitFunc yielding one raw event per token. The
// final partial event before EOF is yielded as well, matching consumers
// that flush their buffer on transport end.
func splitEvents(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// eventPayload extracts and concatenates the data lines of one raw event.
func eventPayload(rawEvent string) string {
	var builder strings.Builder
	for _, line := range strings.Split(rawEvent, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			builder.WriteString(strings.TrimSpace(rest))
		}
	}
	return builder.String()
}

// upstreamEvent is the parsed unit of the upstream protocol. Field pairs
// (content/delta, data/delta) exist because the two observed upstream
// payload dialects disagree on naming.
type upstreamEvent struct {
	Type    string                `json:"type"`
	Content string                `json:"content"`
	Delta   string                `json:"delta"`
	Data    string                `json:"data"`
	Error   string                `json:"error"`
	Sources []chat.SourceCitation `json:"sources"`
}
