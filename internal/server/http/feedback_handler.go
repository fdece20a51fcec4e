package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rpampin-cresteo/chatbot-widget/internal/feedback"
	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
	"github.com/rpampin-cresteo/chatbot-widget/internal/session"
)

// FeedbackHandler records per-message thumbs up/down from the widget.
type FeedbackHandler struct {
	sessions *session.Manager
	store    *feedback.Store
	logPII   bool
	logger   logging.Logger
}

func NewFeedbackHandler(sessions *session.Manager, store *feedback.Store, logPII bool, logger logging.Logger) *FeedbackHandler {
	if logger == nil {
		logger = logging.NewComponentLogger("FeedbackHandler")
	}
	return &FeedbackHandler{sessions: sessions, store: store, logPII: logPII, logger: logger}
}

type feedbackRequest struct {
	MessageID string          `json:"messageId"`
	Rating    feedback.Rating `json:"rating"`
	Comment   string          `json:"comment"`
}

func (h *FeedbackHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	identity := h.sessions.Ensure(w, r)

	var req feedbackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 16*1024)).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	messageID := strings.TrimSpace(req.MessageID)
	if messageID == "" {
		writeText(w, http.StatusUnprocessableEntity, "messageId is required")
		return
	}
	if !req.Rating.Valid() {
		writeText(w, http.StatusUnprocessableEntity, "rating must be positive, negative or neutral")
		return
	}
	comment := strings.TrimSpace(req.Comment)
	if len([]rune(comment)) > feedback.MaxCommentLength {
		writeText(w, http.StatusUnprocessableEntity, "comment too long")
		return
	}

	h.store.Put(feedback.Entry{
		UserID:    identity.UserID,
		MessageID: messageID,
		Rating:    req.Rating,
		Comment:   comment,
		CreatedAt: time.Now(),
	})
	if h.logPII {
		h.logger.Info("feedback recorded: user=%s message=%s rating=%s", identity.UserID, messageID, req.Rating)
	} else {
		h.logger.Info("feedback recorded: message=%s rating=%s", messageID, req.Rating)
	}

	w.WriteHeader(http.StatusNoContent)
}
