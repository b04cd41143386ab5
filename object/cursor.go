package object

import "encoding/binary"

// cursor is a small forward-only byte reader, adapted from the teacher's
// consensus.cursor: fixed-width little-endian integers plus exact-length
// reads, used for both the frame header and the tag-dependent query bodies
// (spec.md §6.1: "fixed-width little-endian integers, big-endian bigints of
// declared byte-width, and trailing UTF-8 for variable tails").
type cursor struct {
	b   []byte
	pos int
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b}
}

func (c *cursor) remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

func (c *cursor) readExact(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, protoErr(ErrStructuralInvalid, "truncated field")
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

func (c *cursor) readU8() (byte, error) {
	b, err := c.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) readU16LE() (uint16, error) {
	b, err := c.readExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) readU32LE() (uint32, error) {
	b, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readU64LE() (uint64, error) {
	b, err := c.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// readBEBigint reads an n-byte big-endian unsigned integer tail, per
// spec.md §6.1's "big-endian bigints of declared byte-width".
func (c *cursor) readBEBigint(n int) ([]byte, error) {
	b, err := c.readExact(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// readTail returns every remaining byte, used for the trailing UTF-8 tail
// (e.g. foreign_asset) whose length is implied by the frame's declared size.
func (c *cursor) readTail() []byte {
	out := c.b[c.pos:]
	c.pos = len(c.b)
	return out
}

type writer struct {
	b []byte
}

func (w *writer) writeU8(v byte)     { w.b = append(w.b, v) }
func (w *writer) writeU16LE(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.b = append(w.b, buf[:]...)
}
func (w *writer) writeU32LE(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.b = append(w.b, buf[:]...)
}
func (w *writer) writeU64LE(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.b = append(w.b, buf[:]...)
}
func (w *writer) writeBEBigint(v []byte, width int) {
	buf := make([]byte, width)
	if len(v) > width {
		v = v[len(v)-width:]
	}
	copy(buf[width-len(v):], v)
	w.b = append(w.b, buf...)
}
func (w *writer) writeBytes(v []byte) { w.b = append(w.b, v...) }
func (w *writer) bytes() []byte       { return w.b }
