// Package upstream issues the outbound request to the upstream chat service
// and hands its event-stream body back to the streaming pipeline.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rpampin-cresteo/chatbot-widget/internal/chat"
	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
)

// maxErrorBodyBytes caps how much upstream error text is read back on a
// failed dispatch.
const maxErrorBodyBytes = 8 * 1024

// Request is the upstream chat payload. The most recent user turn goes out
// as `message`; every remaining turn is sent as `history` in original order.
type Request struct {
	Message  string      `json:"message"`
	History  []chat.Turn `json:"history"`
	Metadata Metadata    `json:"metadata"`
}

// Metadata is identity and memory context attached to the dispatch.
type Metadata struct {
	DisplayName  string `json:"displayName,omitempty"`
	UserID       string `json:"userId"`
	ServerMemory string `json:"serverMemory,omitempty"`
}

// Error reports a failed upstream dispatch: a non-2xx status or a missing
// body. It maps to a 502 at the edge and is never retried here.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream chat service responded with %d: %s", e.Status, e.Body)
}

// Dispatcher issues chat requests to the configured upstream URL.
type Dispatcher struct {
	url    string
	client *http.Client
	logger logging.Logger
}

// NewDispatcher builds a dispatcher. The client carries no overall timeout;
// the caller bounds each stream through its context.
func NewDispatcher(url string, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		url:    url,
		client: &http.Client{},
		logger: logger,
	}
}

// BuildRequest derives the upstream payload from sanitized turns.
func BuildRequest(turns []chat.Turn, meta Metadata) (Request, error) {
	latest, idx, ok := chat.LatestUserTurn(turns)
	if !ok {
		return Request{}, fmt.Errorf("no user message found to forward")
	}
	history := make([]chat.Turn, 0, len(turns)-1)
	for i, turn := range turns {
		if i == idx {
			continue
		}
		history = append(history, turn)
	}
	return Request{Message: latest.Content, History: history, Metadata: meta}, nil
}

// Dispatch sends the request and returns the upstream's streaming body.
// The caller owns closing the body.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, origin string) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode upstream payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Widget-UserId", req.Metadata.UserID)
	httpReq.Header.Set("X-Widget-Origin", origin)

	d.logger.Info("forwarding chat request to %s (history=%d)", d.url, len(req.History))

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("dispatch upstream request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errText := readErrorText(resp.Body)
		resp.Body.Close()
		if errText == "" {
			errText = resp.Status
		}
		d.logger.Error("upstream chat error: status=%d body=%q", resp.StatusCode, errText)
		return nil, &Error{Status: resp.StatusCode, Body: errText}
	}
	if resp.Body == nil {
		return nil, &Error{Status: resp.StatusCode, Body: "upstream response has no body"}
	}
	return resp.Body, nil
}

func readErrorText(r io.Reader) string {
	if r == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
