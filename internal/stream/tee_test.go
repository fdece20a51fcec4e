package stream

import (
	"bytes"
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
)

func TestSplitBothBranchesSeeIdenticalBytes(t *testing.T) {
	payload := make([]byte, 300*1024)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	primary, side := Split(bytes.NewReader(payload), logging.Nop())

	var wg sync.WaitGroup
	results := make([][]byte, 2)
	errs := make([]error, 2)
	for i, branch := range []*Branch{primary, side} {
		wg.Add(1)
		go func(i int, r io.Reader) {
			defer wg.Done()
			results[i], errs[i] = io.ReadAll(r)
		}(i, branch)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	assert.Equal(t, payload, results[0])
	assert.Equal(t, payload, results[1])
	assert.Zero(t, primary.Dropped())
}

func TestSplitSlowSideDoesNotStallPrimary(t *testing.T) {
	payload := bytes.Repeat([]byte("chunk"), 1024)
	primary, side := Split(bytes.NewReader(payload), logging.Nop())
	defer side.Close()

	done := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(primary)
		done <- data
	}()

	// Side branch is never read; primary must still complete.
	select {
	case data := <-done:
		assert.Equal(t, payload, data)
	case <-time.After(2 * time.Second):
		t.Fatal("primary branch stalled behind unread side branch")
	}
}

func TestSplitClosedPrimaryStillFeedsSide(t *testing.T) {
	payload := strings.Repeat("data", 4096)
	primary, side := Split(strings.NewReader(payload), logging.Nop())

	buf := make([]byte, 16)
	_, err := primary.Read(buf)
	require.NoError(t, err)
	require.NoError(t, primary.Close())

	data, err := io.ReadAll(side)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

type slowErrReader struct {
	reads int
}

func (r *slowErrReader) Read(p []byte) (int, error) {
	r.reads++
	if r.reads == 1 {
		return copy(p, []byte("partial")), nil
	}
	return 0, io.ErrUnexpectedEOF
}

func TestSplitPropagatesSourceErrorToBothBranches(t *testing.T) {
	primary, side := Split(&slowErrReader{}, logging.Nop())

	_, err := io.ReadAll(primary)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = io.ReadAll(side)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSplitStopsWhenBothBranchesClose(t *testing.T) {
	pr, pw := io.Pipe()
	primary, side := Split(pr, logging.Nop())

	_, err := pw.Write([]byte("x"))
	require.NoError(t, err)

	require.NoError(t, primary.Close())
	require.NoError(t, side.Close())

	// The pump should stop consuming; the writer side unblocks via close.
	go pw.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("pump did not terminate after both branches closed")
		default:
		}
		if _, ok := <-primary.ch; !ok {
			return
		}
	}
}
