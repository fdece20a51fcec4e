package stream

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
)

const genericUpstreamError = "Upstream chat error"

// Transform consumes one branch of the upstream event stream and re-frames
// it as client protocol parts through emit. The outbound stream is always
// well-terminated: exactly one finish part is emitted, on the first of the
// terminal sentinel, a final event, or transport EOF. A read error from r or
// a write error from emit aborts the pump and is returned to the caller.
func Transform(r io.Reader, emit func(Part) error, logger logging.Logger) error {
	if logger == nil {
		logger = logging.Nop()
	}

	finished := false
	finish := func() error {
		if finished {
			return nil
		}
		finished = true
		return emit(FinishPart())
	}

	sc := NewEventScanner(r)
	for {
		payload, ok := sc.Next()
		if !ok {
			break
		}

		if payload == DoneSentinel {
			if err := finish(); err != nil {
				return err
			}
			continue
		}
		if finished {
			// The stream is already terminated for the client; anything
			// after the sentinel is dropped.
			logger.Debug("event after terminal sentinel, dropping")
			continue
		}

		var event upstreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			logger.Warn("failed to parse upstream chunk, dropping: %v", err)
			continue
		}

		switch event.Type {
		case "token", "delta":
			token := event.Content
			if token == "" {
				token = event.Delta
			}
			if token != "" {
				if err := emit(TextPart(token)); err != nil {
					return err
				}
			}
		case "error":
			message := event.Error
			if message == "" {
				message = genericUpstreamError
			}
			if err := emit(ErrorPart(message)); err != nil {
				return err
			}
		case "final":
			if err := finish(); err != nil {
				return err
			}
		default:
			logger.Debug("unrecognized upstream event type %q, dropping", event.Type)
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("upstream stream read: %w", err)
	}

	// Transport ended without the sentinel: synthesize the terminal event
	// so the client protocol stays well-terminated.
	return finish()
}
