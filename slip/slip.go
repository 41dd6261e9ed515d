// Package slip implements SLIP (RFC 1055) framing over fixed-capacity buffers.
//
// Encode rewrites a buffer holding a payload into a frame in place. Decoder
// reassembles payloads from a byte stream one byte at a time. Neither
// allocates once constructed.
package slip

import (
	"errors"
	"fmt"
)

// Frame bytes.
const (
	End    = 0xC0 // frame delimiter
	Esc    = 0xDB // escape introducer
	EscEnd = 0xDC // escaped End
	EscEsc = 0xDD // escaped Esc
)

var (
	// ErrCapacityExceeded is returned when a frame or packet does not fit
	// into the buffer's fixed capacity.
	ErrCapacityExceeded = errors.New("slip: capacity exceeded")

	// ErrInvalidEscapeSequence is returned when Esc is followed by a byte
	// other than EscEnd or EscEsc.
	ErrInvalidEscapeSequence = errors.New("slip: invalid escape sequence")
)

// EscapeError is the byte that followed Esc in an invalid escape sequence.
// It matches ErrInvalidEscapeSequence with errors.Is.
type EscapeError byte

func (e EscapeError) Error() string {
	return fmt.Sprintf("%v: 0x%02X after ESC", ErrInvalidEscapeSequence, byte(e))
}

func (e EscapeError) Is(target error) bool {
	return target == ErrInvalidEscapeSequence
}

// MaxEncodedLen returns the largest frame Encode can produce from n payload
// bytes, reached when every byte needs escaping.
func MaxEncodedLen(n int) int {
	return 2*n + 2
}

// Buffer is a fixed-capacity, ordered byte container.
//
// Len never exceeds Cap. At and Set index the first Len bytes.
type Buffer interface {
	Len() int
	Cap() int
	At(i int) byte
	Set(i int, b byte)
	// Push appends b, failing when the buffer is full.
	Push(b byte) error
	// Resize sets the length to n, failing when n exceeds Cap.
	// Bytes past the old length have unspecified values.
	Resize(n int) error
	// Bytes returns a view of the first Len bytes.
	Bytes() []byte
	Clear()
}
