package slip

import "github.com/bigbag/goslip/fixedbuf"

var _ Buffer = (*fixedbuf.Buffer)(nil)

type state uint8

const (
	stateAccumulate state = iota
	stateEscape
	// stateDiscard drops bytes of a frame that held an invalid escape
	// sequence, up to and including its closing End.
	stateDiscard
)

// Decoder reassembles payloads from a SLIP byte stream.
//
// Bytes are fed one at a time with Insert. Once Completed reports true,
// Payload holds the decoded packet until the next Insert, which starts a
// new packet. A Decoder must be created with NewDecoder or NewDecoderSize
// and is not safe for concurrent use.
type Decoder struct {
	acc       Buffer
	state     state
	completed bool
}

// NewDecoder returns a decoder accumulating into acc. acc is cleared and
// owned by the decoder from then on.
func NewDecoder(acc Buffer) *Decoder {
	acc.Clear()
	return &Decoder{acc: acc}
}

// NewDecoderSize returns a decoder for packets of up to capacity bytes.
// It panics if capacity is negative.
func NewDecoderSize(capacity int) *Decoder {
	return NewDecoder(fixedbuf.Make(capacity))
}

// Insert consumes one byte of the incoming stream.
//
// It returns ErrCapacityExceeded when a payload byte does not fit; the
// byte is dropped and the accumulator is left as it was. When Esc is
// followed by anything but EscEnd or EscEsc it returns an EscapeError
// holding that byte, which matches ErrInvalidEscapeSequence; the partial
// packet is then dropped and the decoder skips ahead to the next End
// before accumulating again.
func (d *Decoder) Insert(b byte) error {
	if d.completed {
		d.Reset()
	}

	switch d.state {
	case stateDiscard:
		if b == End {
			d.state = stateAccumulate
		}
		return nil

	case stateEscape:
		d.state = stateAccumulate
		switch b {
		case EscEnd:
			return d.push(End)
		case EscEsc:
			return d.push(Esc)
		}
		d.acc.Clear()
		// An End right after Esc already closes the broken frame.
		if b != End {
			d.state = stateDiscard
		}
		return EscapeError(b)
	}

	switch b {
	case End:
		// Leading or repeated End bytes never yield an empty packet.
		if d.acc.Len() > 0 {
			d.completed = true
		}
	case Esc:
		d.state = stateEscape
	default:
		return d.push(b)
	}
	return nil
}

// Consume feeds bytes from p until a packet completes, an error occurs or p
// is exhausted. It returns the number of bytes consumed, including the one
// that completed the packet or failed.
func (d *Decoder) Consume(p []byte) (int, error) {
	for i, b := range p {
		if err := d.Insert(b); err != nil {
			return i + 1, err
		}
		if d.completed {
			return i + 1, nil
		}
	}
	return len(p), nil
}

// Completed reports whether a full packet is available in Payload.
func (d *Decoder) Completed() bool {
	return d.completed
}

// Escaping reports whether the last byte was an Esc awaiting its pair.
func (d *Decoder) Escaping() bool {
	return d.state == stateEscape
}

// Payload returns the bytes accumulated so far. The slice aliases the
// decoder's buffer and is final only while Completed reports true.
func (d *Decoder) Payload() []byte {
	return d.acc.Bytes()
}

// Reset drops any partial packet and returns the decoder to its initial state.
func (d *Decoder) Reset() {
	d.acc.Clear()
	d.state = stateAccumulate
	d.completed = false
}

func (d *Decoder) push(b byte) error {
	if err := d.acc.Push(b); err != nil {
		return ErrCapacityExceeded
	}
	return nil
}
