// Package stream implements the streaming pipeline core: event-stream
// framing of the upstream bytes, the fan-out tee that feeds two independent
// readers, the transformer that re-frames the stream for the browser, and
// the inspector that extracts citations and accumulates the assistant reply.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/rpampin-cresteo/chatbot-widget/internal/chat"
)

// Part is one framed unit of the client-facing wire protocol (the AI SDK
// data-stream format): a type code, a colon, a JSON payload and a newline.
type Part string

// Kind returns a label for the part, used for metrics.
func (p Part) Kind() string {
	if len(p) == 0 {
		return "unknown"
	}
	switch p[0] {
	case '0':
		return "text"
	case '2':
		return "data"
	case '3':
		return "error"
	case 'd':
		return "finish"
	}
	return "unknown"
}

// TextPart frames an assistant text delta.
func TextPart(text string) Part {
	payload, _ := json.Marshal(text)
	return Part(fmt.Sprintf("0:%s\n", payload))
}

// ErrorPart frames an error message.
func ErrorPart(message string) Part {
	payload, _ := json.Marshal(message)
	return Part(fmt.Sprintf("3:%s\n", payload))
}

// FinishPart frames the terminal event. Every well-formed client stream
// carries exactly one.
func FinishPart() Part {
	return Part("d:{\"finishReason\":\"stop\"}\n")
}

// SourcesPart frames a citation batch as a data part.
func SourcesPart(sources []chat.SourceCitation) (Part, error) {
	payload, err := json.Marshal([]map[string][]chat.SourceCitation{{"sources": sources}})
	if err != nil {
		return "", err
	}
	return Part(fmt.Sprintf("2:%s\n", payload)), nil
}
