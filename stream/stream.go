// Package stream provides small bounds-checked helpers for reading and
// writing the big-endian integers BGP messages are built from.
package stream

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned by the Cursor read methods (Bytes, Byte,
// Uint16, Uint32) when fewer bytes remain in the source than the
// requested field width.
var ErrShortBuffer = errors.New("stream: short buffer")

// Cursor is a read-only forward cursor over a byte slice. It never
// panics: every read that would run past the end of buf returns
// ErrShortBuffer and leaves the cursor unadvanced.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a Cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Remaining reports how many unread bytes are left.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Pos reports the current read offset.
func (c *Cursor) Pos() int {
	return c.pos
}

// Bytes reads n bytes and advances the cursor.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, ErrShortBuffer
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Byte reads a single byte.
func (c *Cursor) Byte() (byte, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a big-endian uint16.
func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint32 reads a big-endian uint32.
func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// PutUint16 appends v to buf in big-endian form.
func PutUint16(buf []byte, v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return append(buf, b...)
}

// PutUint32 appends v to buf in big-endian form.
func PutUint32(buf []byte, v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return append(buf, b...)
}
