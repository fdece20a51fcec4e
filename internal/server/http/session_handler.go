package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rpampin-cresteo/chatbot-widget/internal/chat"
	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
	"github.com/rpampin-cresteo/chatbot-widget/internal/session"
)

// SessionHandler exposes the session identity and the advisory display name.
type SessionHandler struct {
	sessions *session.Manager
	logger   logging.Logger
}

func NewSessionHandler(sessions *session.Manager, logger logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.NewComponentLogger("SessionHandler")
	}
	return &SessionHandler{sessions: sessions, logger: logger}
}

type sessionResponse struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
}

func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPost:
		h.post(w, r)
	default:
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	identity := h.sessions.Ensure(w, r)
	displayName := session.ReadDisplayName(r)
	if displayName != "" {
		w.Header().Set("X-Chat-Display-Name", displayName)
	}
	writeJSON(w, h.logger, http.StatusOK, sessionResponse{
		UserID:      identity.UserID,
		DisplayName: displayName,
	})
}

func (h *SessionHandler) post(w http.ResponseWriter, r *http.Request) {
	// An absent or malformed body means "clear the display name".
	var body struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&body); err != nil {
		body.DisplayName = ""
	}
	name := strings.TrimSpace(body.DisplayName)
	if len([]rune(name)) > chat.MaxDisplayNameLength {
		writeText(w, http.StatusUnprocessableEntity, "Display name too long")
		return
	}

	identity := h.sessions.Ensure(w, r)
	h.sessions.WriteDisplayName(w, r, name)
	writeJSON(w, h.logger, http.StatusOK, sessionResponse{
		UserID:      identity.UserID,
		DisplayName: name,
	})
}
