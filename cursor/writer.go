package cursor

import (
	"encoding/binary"
	"math"
)

// AppendVarUint32 appends the minimal variable-length encoding of v.
func AppendVarUint32(buf []byte, v uint32) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// VarUint32Len returns the number of bytes AppendVarUint32 would write.
func VarUint32Len(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// Writer accumulates an encoded byte buffer using the same encodings Cursor
// reads.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) U16(v uint16) *Writer {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

func (w *Writer) S24(v int32) *Writer {
	u := uint32(v) & 0xffffff
	w.buf = append(w.buf, byte(u), byte(u>>8), byte(u>>16))
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

func (w *Writer) D64(v float64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
	return w
}

// U30 appends a variable-length unsigned integer.
func (w *Writer) U30(v int) *Writer {
	w.buf = AppendVarUint32(w.buf, uint32(v))
	return w
}

// VarInt32 appends a variable-length signed integer.
func (w *Writer) VarInt32(v int32) *Writer {
	w.buf = AppendVarUint32(w.buf, uint32(v))
	return w
}

// String appends a length-prefixed string.
func (w *Writer) String(s string) *Writer {
	w.U30(len(s))
	w.buf = append(w.buf, s...)
	return w
}

// CString appends a NUL-terminated string.
func (w *Writer) CString(s string) *Writer {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
	return w
}

// Raw appends b unchanged.
func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}
