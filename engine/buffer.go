package engine

import "errors"

// ErrFull is returned by Buffer.Emit when appending would exceed the
// buffer's bound. The in-progress command must abort its emission; the
// transport recovers by draining the buffer.
var ErrFull = errors.New("engine: output buffer full")

// DefaultMaxOutput bounds a connection's output buffer when no limit
// is configured.
const DefaultMaxOutput = 1 << 20

// Buffer is the bounded response buffer for one connection. The
// dispatcher appends responses; the transport drains them between
// parse calls.
type Buffer struct {
	max int
	buf []byte
	r   int
}

// NewBuffer returns a Buffer bounded at max bytes of unread output.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultMaxOutput
	}
	return &Buffer{max: max}
}

// Emit appends p, or returns ErrFull without appending anything if the
// unread region would exceed the bound.
func (b *Buffer) Emit(p []byte) error {
	if b.Len()+len(p) > b.max {
		return ErrFull
	}
	b.buf = append(b.buf, p...)
	return nil
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return len(b.buf) - b.r }

// Max returns the buffer's bound.
func (b *Buffer) Max() int { return b.max }

// Drain returns all unread bytes and resets the buffer.
func (b *Buffer) Drain() []byte {
	out := b.buf[b.r:]
	b.buf = nil
	b.r = 0
	return out
}

// Reset discards buffered output.
func (b *Buffer) Reset() {
	b.buf = nil
	b.r = 0
}
