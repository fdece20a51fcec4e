package stream

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
)

const (
	readChunkSize = 32 * 1024
	// sideBufferChunks bounds how far the side branch may lag the primary
	// before pending chunks are dropped. The primary is never throttled by
	// the side branch.
	sideBufferChunks = 256
)

// Branch is one independently-paced reader view over a split byte source.
// Closing a branch detaches it from the pump without disturbing the other
// branch.
type Branch struct {
	f         *fanout
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
	leftover  []byte
}

type fanout struct {
	src     io.Reader
	err     error
	dropped atomic.Int64
	logger  logging.Logger
}

// Split duplicates r into a primary and a side branch observing the
// identical byte sequence. The pump goroutine is paced by the primary
// branch; the side branch is buffered and lossy under sustained lag. The
// pump stops at source end or once both branches are closed.
func Split(r io.Reader, logger logging.Logger) (primary, side *Branch) {
	if logger == nil {
		logger = logging.Nop()
	}
	f := &fanout{src: r, logger: logger}
	primary = &Branch{f: f, ch: make(chan []byte), done: make(chan struct{})}
	side = &Branch{f: f, ch: make(chan []byte, sideBufferChunks), done: make(chan struct{})}
	go f.pump(primary, side)
	return primary, side
}

func (f *fanout) pump(primary, side *Branch) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := f.src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			primary.deliver(chunk)
			side.deliverLossy(chunk, &f.dropped)
		}
		if err != nil {
			if err != io.EOF {
				f.err = err
			}
			break
		}
		if primary.closed() && side.closed() {
			break
		}
	}
	close(primary.ch)
	close(side.ch)
	if dropped := f.dropped.Load(); dropped > 0 {
		f.logger.Warn("side branch lagged, dropped %d pending chunks", dropped)
	}
}

// deliver blocks until the branch accepts the chunk or has been closed.
func (b *Branch) deliver(chunk []byte) {
	select {
	case b.ch <- chunk:
	case <-b.done:
	}
}

// deliverLossy never blocks: when the branch buffer is full the oldest
// pending chunk is discarded to make room.
func (b *Branch) deliverLossy(chunk []byte, dropped *atomic.Int64) {
	select {
	case b.ch <- chunk:
		return
	case <-b.done:
		return
	default:
	}
	select {
	case <-b.ch:
		dropped.Add(1)
	default:
	}
	select {
	case b.ch <- chunk:
	case <-b.done:
	default:
		dropped.Add(1)
	}
}

func (b *Branch) closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Read implements io.Reader over the branch's chunk sequence. After the
// source ends it reports the source's error, or io.EOF on a clean end.
func (b *Branch) Read(p []byte) (int, error) {
	for len(b.leftover) == 0 {
		chunk, ok := <-b.ch
		if !ok {
			if b.f.err != nil {
				return 0, b.f.err
			}
			return 0, io.EOF
		}
		b.leftover = chunk
	}
	n := copy(p, b.leftover)
	b.leftover = b.leftover[n:]
	return n, nil
}

// Close detaches the branch from the pump. It never errors.
func (b *Branch) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}

// Dropped reports how many chunks were discarded on the side branch.
func (b *Branch) Dropped() int64 {
	return b.f.dropped.Load()
}
