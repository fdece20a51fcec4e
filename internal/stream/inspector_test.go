package stream

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
)

type fakeGateway struct {
	mu        sync.Mutex
	persisted map[string]string
	fetches   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{persisted: make(map[string]string)}
}

func (g *fakeGateway) Fetch(_ context.Context, userID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	return g.persisted[userID], nil
}

func (g *fakeGateway) Persist(_ context.Context, userID, summary string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.persisted[userID] = summary
	return nil
}

func acceptAll(parts *[]Part) func(Part) bool {
	return func(p Part) bool {
		*parts = append(*parts, p)
		return true
	}
}

func TestInspectorAccumulatesReply(t *testing.T) {
	gw := newFakeGateway()
	insp := NewInspector(gw, "u1", true, false, logging.Nop())

	input := strings.NewReader(
		"data: {\"type\":\"token\",\"data\":\"Hel\"}\n\n" +
			"data: {\"type\":\"token\",\"data\":\"lo\"}\n\n" +
			"data: [DONE]\n\n")

	var parts []Part
	insp.Run(input, acceptAll(&parts))

	assert.Equal(t, "Hello", insp.Buffer())
	assert.Empty(t, parts)
	assert.Equal(t, "Hello", gw.persisted["u1"])
}

func TestInspectorAccumulatesContentOnlyTokens(t *testing.T) {
	gw := newFakeGateway()
	insp := NewInspector(gw, "u1", true, false, logging.Nop())

	input := strings.NewReader(
		"data: {\"type\":\"token\",\"content\":\"Hel\"}\n\n" +
			"data: {\"type\":\"token\",\"content\":\"lo\"}\n\n" +
			"data: [DONE]\n\n")

	var parts []Part
	insp.Run(input, acceptAll(&parts))

	assert.Equal(t, "Hello", insp.Buffer())
	assert.Equal(t, "Hello", gw.persisted["u1"])
}

func TestInspectorTokenFieldPrecedence(t *testing.T) {
	insp := NewInspector(newFakeGateway(), "u1", false, false, logging.Nop())

	input := strings.NewReader(
		"data: {\"type\":\"token\",\"content\":\"a\",\"data\":\"x\",\"delta\":\"y\"}\n\n" +
			"data: {\"type\":\"token\",\"data\":\"b\",\"delta\":\"z\"}\n\n" +
			"data: {\"type\":\"token\",\"delta\":\"c\"}\n\n" +
			"data: [DONE]\n\n")

	insp.Run(input, func(Part) bool { return true })

	assert.Equal(t, "abc", insp.Buffer())
}

func TestInspectorExtractsSourcesWithoutBufferingThem(t *testing.T) {
	insp := NewInspector(newFakeGateway(), "u1", false, false, logging.Nop())

	input := strings.NewReader(
		"data: {\"type\":\"sources\",\"sources\":[{\"id\":\"s1\",\"title\":\"Doc\",\"url\":\"https://d.example/1\"}]}\n\n" +
			"data: {\"type\":\"token\",\"delta\":\"text\"}\n\n" +
			"data: [DONE]\n\n")

	var parts []Part
	insp.Run(input, acceptAll(&parts))

	require.Len(t, parts, 1)
	assert.Equal(t, "data", parts[0].Kind())
	assert.Contains(t, string(parts[0]), "\"id\":\"s1\"")
	assert.Equal(t, "text", insp.Buffer(), "sources must not contribute to the reply buffer")
}

func TestInspectorPreservesSourceOrderWithoutDedup(t *testing.T) {
	insp := NewInspector(newFakeGateway(), "u1", false, false, logging.Nop())

	input := strings.NewReader(
		"data: {\"type\":\"sources\",\"sources\":[{\"id\":\"a\",\"title\":\"A\",\"url\":\"u\"}]}\n\n" +
			"data: {\"type\":\"sources\",\"sources\":[{\"id\":\"a\",\"title\":\"A\",\"url\":\"u\"}]}\n\n" +
			"data: [DONE]\n\n")

	var parts []Part
	insp.Run(input, acceptAll(&parts))
	assert.Len(t, parts, 2)
}

func TestInspectorTreatsUnparseablePayloadAsText(t *testing.T) {
	insp := NewInspector(newFakeGateway(), "u1", false, false, logging.Nop())

	input := strings.NewReader("data: plain words\n\ndata: [DONE]\n\n")
	insp.Run(input, func(Part) bool { return true })

	assert.Equal(t, "plain words", insp.Buffer())
}

func TestInspectorSkipsPersistWhenMemoryDisabled(t *testing.T) {
	gw := newFakeGateway()
	insp := NewInspector(gw, "u1", false, false, logging.Nop())

	input := strings.NewReader("data: {\"type\":\"token\",\"data\":\"remember me\"}\n\n")
	insp.Run(input, func(Part) bool { return true })

	assert.Empty(t, gw.persisted)
}

func TestInspectorSkipsPersistForWhitespaceOnlyBuffer(t *testing.T) {
	gw := newFakeGateway()
	insp := NewInspector(gw, "u1", true, false, logging.Nop())

	input := strings.NewReader("data: {\"type\":\"token\",\"data\":\"  \"}\n\n")
	insp.Run(input, func(Part) bool { return true })

	assert.Empty(t, gw.persisted)
}

func TestInspectorCapsPersistedSummary(t *testing.T) {
	gw := newFakeGateway()
	insp := NewInspector(gw, "u1", true, false, logging.Nop())

	long := strings.Repeat("x", 3000) + "tail"
	input := strings.NewReader("data: {\"type\":\"token\",\"data\":\"" + long + "\"}\n\n")
	insp.Run(input, func(Part) bool { return true })

	persisted := gw.persisted["u1"]
	assert.Len(t, persisted, 2000)
	assert.True(t, strings.HasSuffix(persisted, "tail"))
}

func TestInspectorPersistsEvenAfterReadError(t *testing.T) {
	gw := newFakeGateway()
	insp := NewInspector(gw, "u1", true, false, logging.Nop())

	r := &failingReader{data: "data: {\"type\":\"token\",\"data\":\"partial\"}\n\n"}
	insp.Run(r, func(Part) bool { return true })

	assert.Equal(t, "partial", gw.persisted["u1"])
}

func TestInspectorContinuesWhenSinkRejects(t *testing.T) {
	insp := NewInspector(newFakeGateway(), "u1", false, false, logging.Nop())

	input := strings.NewReader(
		"data: {\"type\":\"sources\",\"sources\":[{\"id\":\"a\",\"title\":\"A\",\"url\":\"u\"}]}\n\n" +
			"data: {\"type\":\"token\",\"data\":\"after\"}\n\n")

	insp.Run(input, func(Part) bool { return false })
	assert.Equal(t, "after", insp.Buffer())
}
