package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rpampin-cresteo/chatbot-widget/internal/chat"
	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
	"github.com/rpampin-cresteo/chatbot-widget/internal/memory"
	"github.com/rpampin-cresteo/chatbot-widget/internal/observability"
	"github.com/rpampin-cresteo/chatbot-widget/internal/ratelimit"
	"github.com/rpampin-cresteo/chatbot-widget/internal/session"
	"github.com/rpampin-cresteo/chatbot-widget/internal/stream"
	"github.com/rpampin-cresteo/chatbot-widget/internal/upstream"
)

const maxChatBodyBytes = 256 * 1024

// chatOutBuffer sizes the outbound part queue shared by the transformer and
// the inspector's side channel.
const chatOutBuffer = 64

// ChatHandler proxies one chat request: admission, sanitization, upstream
// dispatch, and the dual-consumption streaming pipeline.
type ChatHandler struct {
	sessions      *session.Manager
	limiter       *ratelimit.Limiter
	dispatcher    *upstream.Dispatcher
	gateway       memory.Gateway
	metrics       *observability.Metrics
	logger        logging.Logger
	streamTimeout time.Duration
	memoryEnabled bool
	logPII        bool
}

// NewChatHandler wires the chat pipeline.
func NewChatHandler(
	sessions *session.Manager,
	limiter *ratelimit.Limiter,
	dispatcher *upstream.Dispatcher,
	gateway memory.Gateway,
	metrics *observability.Metrics,
	streamTimeout time.Duration,
	memoryEnabled, logPII bool,
	logger logging.Logger,
) *ChatHandler {
	if logger == nil {
		logger = logging.NewComponentLogger("ChatHandler")
	}
	return &ChatHandler{
		sessions:      sessions,
		limiter:       limiter,
		dispatcher:    dispatcher,
		gateway:       gateway,
		metrics:       metrics,
		logger:        logger,
		streamTimeout: streamTimeout,
		memoryEnabled: memoryEnabled,
		logPII:        logPII,
	}
}

// HandleChat serves POST /api/chat.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	identity := h.sessions.Ensure(w, r)

	result := h.limiter.Check(ratelimit.BucketKey(identity.UserID, r))
	if !result.Allowed {
		h.metrics.RateLimitedTotal.Inc()
		seconds := int(math.Ceil(result.RetryAfter.Seconds()))
		if seconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		writeText(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	var payload chat.Payload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBodyBytes)).Decode(&payload); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := payload.Validate(); err != nil {
		writeText(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	turns := chat.SanitizeTurns(payload.Messages)

	serverMemory, err := h.gateway.Fetch(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Warn("failed to fetch server memory: %v", err)
		serverMemory = ""
	}

	meta := upstream.Metadata{UserID: identity.UserID, ServerMemory: serverMemory}
	if payload.Metadata != nil {
		meta.DisplayName = strings.TrimSpace(payload.Metadata.DisplayName)
	}
	upstreamReq, err := upstream.BuildRequest(turns, meta)
	if err != nil {
		// Nothing was dispatched yet: a payload without a user turn is a
		// validation failure, not an upstream one.
		writeText(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	normalizedOrigin, _ := NormalizeOrigin(r.Header.Get("Origin"))

	// The upstream stream is bounded by its own timeout, detached from the
	// request context: the inspector branch may outlive the client.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.streamTimeout)
	body, err := h.dispatcher.Dispatch(ctx, upstreamReq, normalizedOrigin)
	if err != nil {
		cancel()
		h.metrics.UpstreamErrors.Inc()
		writeText(w, http.StatusBadGateway, err.Error())
		return
	}

	h.streamResponse(w, identity, body, cancel)
}

// streamResponse fans the upstream body out to the transformer (client
// protocol) and the inspector (citations + memory), interleaving both into
// the response. The response completes when the transformer ends; the
// inspector keeps draining detached and owns the upstream body's cleanup.
func (h *ChatHandler) streamResponse(w http.ResponseWriter, identity session.Identity, body io.ReadCloser, cancel context.CancelFunc) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		cancel()
		body.Close()
		writeText(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Experimental-Stream-Data", "true")
	w.WriteHeader(http.StatusOK)

	primary, side := stream.Split(body, h.logger)
	out := make(chan stream.Part, chatOutBuffer)
	transformDone := make(chan error, 1)
	writerDone := make(chan struct{})

	go func() {
		transformDone <- stream.Transform(primary, func(p stream.Part) error {
			select {
			case out <- p:
				return nil
			case <-writerDone:
				return errors.New("client response closed")
			}
		}, h.logger)
	}()

	inspector := stream.NewInspector(h.gateway, identity.UserID, h.memoryEnabled, h.logPII, h.logger)
	go func() {
		inspector.Run(side, func(p stream.Part) bool {
			select {
			case out <- p:
				return true
			case <-writerDone:
				return false
			}
		})
		if dropped := side.Dropped(); dropped > 0 {
			h.metrics.SideChannelDrops.Add(float64(dropped))
		}
		if h.memoryEnabled && strings.TrimSpace(inspector.Buffer()) != "" {
			h.metrics.MemoryPersists.Inc()
		}
		cancel()
		body.Close()
	}()

	defer close(writerDone)
	defer primary.Close()

	writePart := func(p stream.Part) bool {
		if _, err := io.WriteString(w, string(p)); err != nil {
			h.logger.Debug("client went away mid-stream: %v", err)
			return false
		}
		h.metrics.StreamPartsTotal.WithLabelValues(p.Kind()).Inc()
		flusher.Flush()
		return true
	}

	for {
		select {
		case part := <-out:
			if !writePart(part) {
				return
			}
		case err := <-transformDone:
			// Flush whatever is already queued, then end the response.
			for {
				select {
				case part := <-out:
					if !writePart(part) {
						return
					}
				default:
					if err != nil {
						h.logger.Warn("stream transform aborted: %v", err)
					}
					return
				}
			}
		}
	}
}
