// Package link carries packets over a byte stream as SLIP frames.
package link

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/bigbag/goslip/fixedbuf"
	"github.com/bigbag/goslip/internal/logging"
	"github.com/bigbag/goslip/slip"
)

const readChunk = 256

// ErrPayloadTooLarge is returned by Send for payloads longer than the MTU.
var ErrPayloadTooLarge = errors.New("payload exceeds MTU")

// Stats is a snapshot of link traffic counters.
type Stats struct {
	FramesSent     uint64
	FramesReceived uint64
	FramesDropped  uint64
	BytesSent      uint64 // on the wire, including framing
	BytesReceived  uint64
}

// Link sends and receives packets of up to MTU bytes over rw.
//
// Send and Receive may run concurrently; each direction owns its buffer.
type Link struct {
	rw  io.ReadWriter
	mtu int

	txMu sync.Mutex
	tx   *fixedbuf.Buffer

	rxMu     sync.Mutex
	dec      *slip.Decoder
	chunk    []byte
	pending  []byte
	skipping bool // dropping the rest of an oversized frame
	readErr  error

	framesSent     atomic.Uint64
	framesReceived atomic.Uint64
	framesDropped  atomic.Uint64
	bytesSent      atomic.Uint64
	bytesReceived  atomic.Uint64
}

// New creates a Link over rw. All buffers are allocated here.
func New(rw io.ReadWriter, mtu int) *Link {
	return &Link{
		rw:    rw,
		mtu:   mtu,
		tx:    fixedbuf.Make(slip.MaxEncodedLen(mtu)),
		dec:   slip.NewDecoderSize(mtu),
		chunk: make([]byte, readChunk),
	}
}

// Send encodes payload as one frame and writes it.
func (l *Link) Send(payload []byte) error {
	if len(payload) > l.mtu {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), l.mtu)
	}

	l.txMu.Lock()
	defer l.txMu.Unlock()

	if err := l.tx.Load(payload); err != nil {
		return fmt.Errorf("failed to load payload: %w", err)
	}
	if err := slip.Encode(l.tx); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	frame := l.tx.Bytes()
	if _, err := l.rw.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	l.framesSent.Add(1)
	l.bytesSent.Add(uint64(len(frame)))
	logging.Debug("sent frame: %d payload bytes, %d on the wire", len(payload), len(frame))
	return nil
}

// Receive returns the next packet read from the stream.
//
// Malformed and oversized frames are dropped and counted. Receive returns
// the reader's error (io.EOF at end of stream) once buffered bytes are
// exhausted, or ctx.Err() when ctx is cancelled. A read returning no bytes
// and no error, as a serial read timeout does, is retried.
func (l *Link) Receive(ctx context.Context) ([]byte, error) {
	l.rxMu.Lock()
	defer l.rxMu.Unlock()

	for {
		if packet, ok := l.drain(); ok {
			return packet, nil
		}

		if l.readErr != nil {
			return nil, l.readErr
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := l.rw.Read(l.chunk)
		l.pending = l.chunk[:n]
		l.bytesReceived.Add(uint64(n))
		if err != nil {
			l.readErr = err
		}
	}
}

// drain feeds pending bytes to the decoder until a packet completes.
func (l *Link) drain() ([]byte, bool) {
	for len(l.pending) > 0 {
		if l.skipping {
			i := bytes.IndexByte(l.pending, slip.End)
			if i < 0 {
				l.pending = nil
				return nil, false
			}
			l.pending = l.pending[i:]
			l.skipping = false
		}

		n, err := l.dec.Consume(l.pending)
		l.pending = l.pending[n:]

		if err != nil {
			l.framesDropped.Add(1)
			logging.Warn("dropped frame: %v", err)
			if errors.Is(err, slip.ErrCapacityExceeded) {
				l.dec.Reset()
				l.skipping = true
			}
			continue
		}

		if l.dec.Completed() {
			packet := append([]byte(nil), l.dec.Payload()...)
			l.framesReceived.Add(1)
			logging.Debug("received frame: %d payload bytes", len(packet))
			return packet, true
		}
	}
	return nil, false
}

// Stats returns a snapshot of the traffic counters.
func (l *Link) Stats() Stats {
	return Stats{
		FramesSent:     l.framesSent.Load(),
		FramesReceived: l.framesReceived.Load(),
		FramesDropped:  l.framesDropped.Load(),
		BytesSent:      l.bytesSent.Load(),
		BytesReceived:  l.bytesReceived.Load(),
	}
}
