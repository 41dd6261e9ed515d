package link

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/bigbag/goslip/slip"
)

type readWriter struct {
	io.Reader
	io.Writer
}

func reader(stream []byte) io.ReadWriter {
	return readWriter{bytes.NewReader(stream), io.Discard}
}

// idleReader behaves like a serial port whose read timeout keeps expiring.
type idleReader struct{}

func (idleReader) Read([]byte) (int, error)    { return 0, nil }
func (idleReader) Write(p []byte) (int, error) { return len(p), nil }

func receiveAll(t *testing.T, l *Link) [][]byte {
	t.Helper()
	var packets [][]byte
	for {
		packet, err := l.Receive(context.Background())
		if errors.Is(err, io.EOF) {
			return packets
		}
		if err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
		packets = append(packets, packet)
	}
}

func assertPackets(t *testing.T, got, want [][]byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("received %d packets %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("packet %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSend_WritesFrame(t *testing.T) {
	var wire bytes.Buffer
	l := New(&wire, 8)

	if err := l.Send([]byte{0x01, slip.End, 0x02}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	expected := []byte{slip.End, 0x01, slip.Esc, slip.EscEnd, 0x02, slip.End}
	if !bytes.Equal(wire.Bytes(), expected) {
		t.Errorf("wire = %v, want %v", wire.Bytes(), expected)
	}

	stats := l.Stats()
	if stats.FramesSent != 1 || stats.BytesSent != uint64(len(expected)) {
		t.Errorf("Stats() = %+v, want 1 frame / %d bytes sent", stats, len(expected))
	}
}

func TestSend_WorstCaseFitsMTU(t *testing.T) {
	var wire bytes.Buffer
	l := New(&wire, 4)

	payload := []byte{slip.End, slip.Esc, slip.End, slip.Esc}
	if err := l.Send(payload); err != nil {
		t.Fatalf("Send(%v) error = %v", payload, err)
	}
	if wire.Len() != 10 {
		t.Errorf("wire length = %d, want 10", wire.Len())
	}
}

func TestSend_PayloadTooLarge(t *testing.T) {
	var wire bytes.Buffer
	l := New(&wire, 2)

	err := l.Send([]byte{1, 2, 3})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Send() error = %v, want %v", err, ErrPayloadTooLarge)
	}
	if wire.Len() != 0 {
		t.Errorf("wire = %v, want nothing written", wire.Bytes())
	}
}

func TestReceive_MultiplePackets(t *testing.T) {
	stream := []byte{
		slip.End, 0x01, 0x02, slip.End,
		slip.End, slip.Esc, slip.EscEsc, slip.End,
		0x03, slip.End,
	}
	l := New(reader(stream), 8)

	assertPackets(t, receiveAll(t, l), [][]byte{{0x01, 0x02}, {slip.Esc}, {0x03}})

	stats := l.Stats()
	if stats.FramesReceived != 3 || stats.BytesReceived != uint64(len(stream)) {
		t.Errorf("Stats() = %+v, want 3 frames / %d bytes received", stats, len(stream))
	}
}

func TestReceive_OneByteReads(t *testing.T) {
	stream := []byte{slip.End, 0x0A, slip.Esc, slip.EscEnd, slip.End, slip.End, 0x0B, slip.End}
	l := New(readWriter{iotest.OneByteReader(bytes.NewReader(stream)), io.Discard}, 8)

	assertPackets(t, receiveAll(t, l), [][]byte{{0x0A, slip.End}, {0x0B}})
}

func TestReceive_DropsInvalidEscape(t *testing.T) {
	stream := []byte{
		slip.End, 0x01, slip.Esc, 0x00, 0x02, slip.End,
		slip.End, 0x03, slip.End,
	}
	l := New(reader(stream), 8)

	assertPackets(t, receiveAll(t, l), [][]byte{{0x03}})
	if dropped := l.Stats().FramesDropped; dropped != 1 {
		t.Errorf("FramesDropped = %d, want 1", dropped)
	}
}

func TestReceive_DropsOversizedFrame(t *testing.T) {
	stream := []byte{
		slip.End, 0x01, 0x02, 0x03, 0x04, slip.End,
		slip.End, 0x09, slip.End,
	}
	l := New(reader(stream), 2)

	assertPackets(t, receiveAll(t, l), [][]byte{{0x09}})
	if dropped := l.Stats().FramesDropped; dropped != 1 {
		t.Errorf("FramesDropped = %d, want 1", dropped)
	}
}

func TestReceive_OversizedFrameSpanningReads(t *testing.T) {
	oversized := make([]byte, 3*readChunk)
	for i := range oversized {
		oversized[i] = 0x11
	}
	stream := append([]byte{slip.End}, oversized...)
	stream = append(stream, slip.End, 0x22, slip.End)
	l := New(reader(stream), 16)

	assertPackets(t, receiveAll(t, l), [][]byte{{0x22}})
}

func TestReceive_PacketIsCopied(t *testing.T) {
	stream := []byte{slip.End, 0x01, slip.End, slip.End, 0x02, slip.End}
	l := New(reader(stream), 4)

	first, err := l.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if _, err := l.Receive(context.Background()); err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !bytes.Equal(first, []byte{0x01}) {
		t.Errorf("first packet = %v after next Receive, want [1]", first)
	}
}

func TestReceive_PartialFrameAtEOF(t *testing.T) {
	l := New(reader([]byte{slip.End, 0x01, 0x02}), 4)

	if _, err := l.Receive(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Receive() error = %v, want %v", err, io.EOF)
	}
}

func TestReceive_ContextCancelled(t *testing.T) {
	l := New(idleReader{}, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.Receive(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Receive() error = %v, want %v", err, context.Canceled)
	}
}

func TestLoopback(t *testing.T) {
	var wire bytes.Buffer
	l := New(&wire, 16)

	packets := [][]byte{
		{0x00},
		{slip.End, slip.Esc, slip.EscEnd, slip.EscEsc},
		bytes.Repeat([]byte{slip.End}, 16),
	}
	for _, p := range packets {
		if err := l.Send(p); err != nil {
			t.Fatalf("Send(%v) error = %v", p, err)
		}
	}

	assertPackets(t, receiveAll(t, l), packets)
}
