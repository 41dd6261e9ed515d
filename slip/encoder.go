package slip

// EncodedLen returns the length of the frame that Encode produces for p.
func EncodedLen(p []byte) int {
	n := len(p) + 2
	for _, b := range p {
		if b == End || b == Esc {
			n++
		}
	}
	return n
}

// Encode rewrites the payload held in buf into a SLIP frame, in place.
//
// The frame starts and ends with End; End and Esc inside the payload are
// replaced with {Esc, EscEnd} and {Esc, EscEsc}. If the frame would not fit
// into buf's capacity, Encode returns ErrCapacityExceeded and buf is left
// unmodified.
func Encode(buf Buffer) error {
	n := buf.Len()

	size := n + 2
	for i := 0; i < n; i++ {
		if b := buf.At(i); b == End || b == Esc {
			size++
		}
	}
	if size > buf.Cap() {
		return ErrCapacityExceeded
	}

	if err := buf.Resize(size); err != nil {
		return ErrCapacityExceeded
	}

	// Walk back to front so every source byte is read before its slot
	// can be overwritten: the write index never drops below the read index.
	w := size - 1
	buf.Set(w, End)
	w--
	for r := n - 1; r >= 0; r-- {
		switch b := buf.At(r); b {
		case End:
			buf.Set(w, EscEnd)
			buf.Set(w-1, Esc)
			w -= 2
		case Esc:
			buf.Set(w, EscEsc)
			buf.Set(w-1, Esc)
			w -= 2
		default:
			buf.Set(w, b)
			w--
		}
	}
	buf.Set(0, End)

	return nil
}
