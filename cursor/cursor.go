// Package cursor provides a bounds-checked reader over an immutable byte
// buffer, used by the unit parser and both interpreters.
package cursor

import (
	"encoding/binary"
	"math"

	"github.com/deepnoodle-ai/avm/errz"
)

// MaxVarintLen is the maximum encoded length of a 32-bit variable-length
// integer.
const MaxVarintLen = 5

// Cursor reads little-endian values from a byte buffer. Every read is checked
// against the readable end, which is the physical end of the buffer unless a
// logical end has been set.
type Cursor struct {
	data []byte
	pos  int
	end  int
}

// New returns a cursor positioned at the start of data.
func New(data []byte) *Cursor {
	return &Cursor{data: data, end: len(data)}
}

// Tell returns the current absolute position.
func (c *Cursor) Tell() int {
	return c.pos
}

// Len returns the physical length of the underlying buffer.
func (c *Cursor) Len() int {
	return len(c.data)
}

// End returns the current readable end.
func (c *Cursor) End() int {
	return c.end
}

// Remaining returns the number of readable bytes left.
func (c *Cursor) Remaining() int {
	if c.pos >= c.end {
		return 0
	}
	return c.end - c.pos
}

// AtEnd reports whether the readable range is exhausted.
func (c *Cursor) AtEnd() bool {
	return c.pos >= c.end
}

// Bytes returns the underlying buffer.
func (c *Cursor) Bytes() []byte {
	return c.data
}

// SeekAbsolute moves to pos. Seeking to the readable end is allowed.
func (c *Cursor) SeekAbsolute(pos int) error {
	if pos < 0 || pos > c.end {
		return errz.Truncated(pos, 0, c.end)
	}
	c.pos = pos
	return nil
}

// SeekRelative moves delta bytes from the current position.
func (c *Cursor) SeekRelative(delta int) error {
	return c.SeekAbsolute(c.pos + delta)
}

// SetLogicalEnd shrinks the readable range to end, which must lie between the
// current position and the physical end. It returns the previous end so that
// nested fences can be restored.
func (c *Cursor) SetLogicalEnd(end int) (int, error) {
	if end < c.pos || end > len(c.data) {
		return c.end, errz.Truncated(c.pos, end-c.pos, len(c.data))
	}
	prev := c.end
	c.end = end
	return prev, nil
}

// RestoreLogicalEnd reinstates an end previously returned by SetLogicalEnd.
func (c *Cursor) RestoreLogicalEnd(end int) {
	if end < 0 || end > len(c.data) {
		end = len(c.data)
	}
	c.end = end
}

// ClearLogicalEnd makes the whole physical buffer readable again.
func (c *Cursor) ClearLogicalEnd() {
	c.end = len(c.data)
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.pos+n > c.end {
		return errz.Truncated(c.pos, n, c.end)
	}
	return nil
}

// ReadU8 reads an unsigned byte.
func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

// ReadS8 reads a signed byte.
func (c *Cursor) ReadS8() (int8, error) {
	v, err := c.ReadU8()
	return int8(v), err
}

// ReadU16 reads a little-endian unsigned 16-bit integer.
func (c *Cursor) ReadU16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v, nil
}

// ReadS16 reads a little-endian signed 16-bit integer.
func (c *Cursor) ReadS16() (int16, error) {
	v, err := c.ReadU16()
	return int16(v), err
}

// ReadS24 reads a little-endian signed 24-bit integer.
func (c *Cursor) ReadS24() (int32, error) {
	if err := c.need(3); err != nil {
		return 0, err
	}
	b := c.data[c.pos : c.pos+3]
	c.pos += 3
	v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v, nil
}

// ReadU32 reads a little-endian unsigned 32-bit integer.
func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

// ReadS32 reads a little-endian signed 32-bit integer.
func (c *Cursor) ReadS32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

// ReadF32 reads a little-endian IEEE754 single.
func (c *Cursor) ReadF32() (float32, error) {
	v, err := c.ReadU32()
	return math.Float32frombits(v), err
}

// ReadD64 reads a little-endian IEEE754 double.
func (c *Cursor) ReadD64() (float64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.data[c.pos:])
	c.pos += 8
	return math.Float64frombits(v), nil
}

// ReadVarUint32 reads a variable-length unsigned integer of one to five
// bytes. Each byte contributes its low seven bits, least significant group
// first, and the high bit marks continuation.
func (c *Cursor) ReadVarUint32() (uint32, error) {
	var result uint32
	for i := 0; i < MaxVarintLen; i++ {
		b, err := c.ReadU8()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			break
		}
	}
	return result, nil
}

// ReadVarInt32 reads a variable-length integer and reinterprets its bits as
// signed.
func (c *Cursor) ReadVarInt32() (int32, error) {
	v, err := c.ReadVarUint32()
	return int32(v), err
}

// ReadU30 reads a variable-length integer used as an index or count.
func (c *Cursor) ReadU30() (int, error) {
	v, err := c.ReadVarUint32()
	return int(v & 0x3fffffff), err
}

// ReadBytes returns the next n bytes without copying.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadCString reads a NUL-terminated string. The terminator must lie within
// the readable range.
func (c *Cursor) ReadCString() (string, error) {
	for i := c.pos; i < c.end; i++ {
		if c.data[i] == 0 {
			s := string(c.data[c.pos:i])
			c.pos = i + 1
			return s, nil
		}
	}
	return "", errz.Truncated(c.pos, c.end-c.pos+1, c.end)
}

// PeekU8 returns the byte at the current position without advancing.
func (c *Cursor) PeekU8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	return c.data[c.pos], nil
}
