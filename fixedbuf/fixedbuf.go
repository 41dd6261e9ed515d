// Package fixedbuf provides a byte buffer whose capacity is fixed when it is
// created. It never grows and never reallocates.
package fixedbuf

import "errors"

var (
	// ErrFull is returned when an operation would grow a buffer past its capacity.
	ErrFull = errors.New("fixedbuf: buffer full")

	// ErrNegativeLength is returned by Resize for a length below zero.
	ErrNegativeLength = errors.New("fixedbuf: negative length")
)

// Buffer is an ordered byte sequence backed by fixed storage.
type Buffer struct {
	data []byte
	n    int
}

// New returns an empty buffer over storage. Its capacity is len(storage);
// the caller must not use storage directly afterwards.
func New(storage []byte) *Buffer {
	return &Buffer{data: storage}
}

// Make allocates a buffer with the given capacity. It panics if capacity
// is negative.
func Make(capacity int) *Buffer {
	return New(make([]byte, capacity))
}

// Len returns the number of bytes held.
func (b *Buffer) Len() int {
	return b.n
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// At returns the byte at index i. It panics if i is not below Len.
func (b *Buffer) At(i int) byte {
	return b.data[:b.n][i]
}

// Set overwrites the byte at index i. It panics if i is not below Len.
func (b *Buffer) Set(i int, v byte) {
	b.data[:b.n][i] = v
}

// Push appends v.
func (b *Buffer) Push(v byte) error {
	if b.n == len(b.data) {
		return ErrFull
	}
	b.data[b.n] = v
	b.n++
	return nil
}

// Resize sets the length to n. Growing exposes whatever the storage
// held past the old length.
func (b *Buffer) Resize(n int) error {
	if n < 0 {
		return ErrNegativeLength
	}
	if n > len(b.data) {
		return ErrFull
	}
	b.n = n
	return nil
}

// Load replaces the contents with p. On error the buffer is unchanged.
func (b *Buffer) Load(p []byte) error {
	if len(p) > len(b.data) {
		return ErrFull
	}
	b.n = copy(b.data, p)
	return nil
}

// Bytes returns a view of the held bytes. It stays valid until the next
// mutation.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

// Free returns the number of bytes that can still be pushed.
func (b *Buffer) Free() int {
	return len(b.data) - b.n
}

// Clear empties the buffer without touching its storage.
func (b *Buffer) Clear() {
	b.n = 0
}
