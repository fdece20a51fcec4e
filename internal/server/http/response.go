package http

import (
	"encoding/json"
	"net/http"

	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
)

func writeJSON(w http.ResponseWriter, logger logging.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode JSON response: %v", err)
	}
}

// writeText writes a plain-text response body. Error bodies on this surface
// are plain text so the browser widget can show them directly.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
