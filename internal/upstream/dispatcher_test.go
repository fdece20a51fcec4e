package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpampin-cresteo/chatbot-widget/internal/chat"
	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
)

func TestBuildRequestSplitsLatestUserMessage(t *testing.T) {
	turns := []chat.Turn{
		{Role: chat.RoleSystem, Content: "be terse"},
		{Role: chat.RoleUser, Content: "first question"},
		{Role: chat.RoleAssistant, Content: "first answer"},
		{Role: chat.RoleUser, Content: "second question"},
	}

	req, err := BuildRequest(turns, Metadata{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "second question", req.Message)
	require.Len(t, req.History, 3)
	assert.Equal(t, "be terse", req.History[0].Content)
	assert.Equal(t, "first question", req.History[1].Content)
	assert.Equal(t, "first answer", req.History[2].Content)
}

func TestBuildRequestFailsWithoutUserTurn(t *testing.T) {
	_, err := BuildRequest([]chat.Turn{{Role: chat.RoleAssistant, Content: "x"}}, Metadata{})
	require.Error(t, err)
}

func TestDispatchSendsIdentityAndMemoryContext(t *testing.T) {
	var captured *http.Request
	var capturedBody Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	d := NewDispatcher(server.URL, logging.Nop())
	req := Request{
		Message: "hello",
		History: []chat.Turn{{Role: chat.RoleSystem, Content: "sys"}},
		Metadata: Metadata{
			UserID:       "user-9",
			DisplayName:  "Sam",
			ServerMemory: "remembered context",
		},
	}

	body, err := d.Dispatch(context.Background(), req, "https://widget.example")
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "text/event-stream", captured.Header.Get("Accept"))
	assert.Equal(t, "user-9", captured.Header.Get("X-Widget-UserId"))
	assert.Equal(t, "https://widget.example", captured.Header.Get("X-Widget-Origin"))
	assert.Equal(t, "hello", capturedBody.Message)
	assert.Equal(t, "remembered context", capturedBody.Metadata.ServerMemory)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: [DONE]\n\n", string(data))
}

func TestDispatchNon2xxIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := NewDispatcher(server.URL, logging.Nop())
	_, err := d.Dispatch(context.Background(), Request{Message: "hi", Metadata: Metadata{UserID: "u"}}, "")
	require.Error(t, err)

	var upErr *Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusServiceUnavailable, upErr.Status)
	assert.Equal(t, "model overloaded", upErr.Body)
}

func TestDispatchConnectionFailure(t *testing.T) {
	d := NewDispatcher("http://127.0.0.1:1/api/chat", logging.Nop())
	_, err := d.Dispatch(context.Background(), Request{Message: "hi"}, "")
	require.Error(t, err)

	var upErr *Error
	assert.False(t, errors.As(err, &upErr), "transport failures are not upstream status errors")
}
