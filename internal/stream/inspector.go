package stream

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
	"github.com/rpampin-cresteo/chatbot-widget/internal/memory"
)

const persistTimeout = 10 * time.Second

// Inspector consumes the side branch of the upstream stream, independently
// of the transformer. It appends citation batches to the side channel and
// accumulates the assistant's reply for memory persistence. Everything here
// is best effort: failures are logged, never surfaced to the client.
type Inspector struct {
	gateway       memory.Gateway
	userID        string
	memoryEnabled bool
	logPII        bool
	logger        logging.Logger

	buffer strings.Builder
}

// NewInspector builds an inspector for one request's stream.
func NewInspector(gateway memory.Gateway, userID string, memoryEnabled, logPII bool, logger logging.Logger) *Inspector {
	if logger == nil {
		logger = logging.Nop()
	}
	if gateway == nil {
		gateway = memory.Noop()
	}
	return &Inspector{
		gateway:       gateway,
		userID:        userID,
		memoryEnabled: memoryEnabled,
		logPII:        logPII,
		logger:        logger,
	}
}

// Run drains r to completion. Citation batches are offered to sink in
// arrival order; sink reports whether the part was accepted. It stops
// accepting once the client response has completed; the side channel is
// not part of the response contract. On return, when enabled, the
// accumulated reply is persisted.
func (i *Inspector) Run(r io.Reader, sink func(Part) bool) {
	defer i.finalize()

	sc := NewEventScanner(r)
	for {
		payload, ok := sc.Next()
		if !ok {
			break
		}
		if payload == DoneSentinel {
			continue
		}

		var event upstreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			// Not JSON: treat the raw payload as reply text.
			i.buffer.WriteString(payload)
			continue
		}

		if event.Type == "sources" && len(event.Sources) > 0 {
			part, err := SourcesPart(event.Sources)
			if err != nil {
				i.logger.Warn("failed to encode sources batch: %v", err)
				continue
			}
			if !sink(part) {
				i.logger.Debug("side channel closed, dropping sources batch")
			}
			continue
		}

		// Same precedence as the transformer, plus the data field: which
		// fields are set depends on the upstream dialect.
		token := event.Content
		if token == "" {
			token = event.Data
		}
		if token == "" {
			token = event.Delta
		}
		i.buffer.WriteString(token)
	}

	if err := sc.Err(); err != nil && i.logPII {
		i.logger.Warn("stream inspector error: %v", err)
	}
}

// finalize runs on every completion path, success or failure.
func (i *Inspector) finalize() {
	if !i.memoryEnabled {
		return
	}
	summary := strings.TrimSpace(i.buffer.String())
	if summary == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := i.gateway.Persist(ctx, i.userID, memory.CapSummary(summary)); err != nil {
		i.logger.Warn("failed to persist server memory: %v", err)
	}
}

// Buffer returns the accumulated assistant reply. Used in tests.
func (i *Inspector) Buffer() string {
	return i.buffer.String()
}
