// Package codec implements the little binary framing used by the persisted
// delivery queue.
//
// The layout is the one produced by .NET's BinaryWriter, so queue files written
// by earlier SDK builds stay readable:
//   - int32: 4 bytes, little endian
//   - byte: 1 byte
//   - string: unsigned LEB128 byte length followed by the UTF-8 bytes
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer is returned when a read runs past the end of the input.
var ErrShortBuffer = errors.New("codec: unexpected end of data")

// maxStringLen bounds a single decoded string. A corrupt length prefix must
// not turn into a multi-gigabyte allocation.
const maxStringLen = 16 << 20

// Writer appends encoded values to an in-memory buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

// Int32 appends v as 4 little-endian bytes.
func (w *Writer) Int32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

// Byte appends a single byte.
func (w *Writer) Byte(b byte) {
	w.buf = append(w.buf, b)
}

// String appends a length-prefixed UTF-8 string.
func (w *Writer) String(s string) {
	w.buf = binary.AppendUvarint(w.buf, uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// Bytes returns the encoded data. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader decodes values from a byte slice.
type Reader struct {
	data []byte
	off  int
}

// NewReader returns a reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining reports how many bytes have not been consumed yet.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Int32 reads 4 little-endian bytes.
func (r *Reader) Int32() (int32, error) {
	if r.Remaining() < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return int32(v), nil
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrShortBuffer
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	n, size := binary.Uvarint(r.data[r.off:])
	if size == 0 {
		return "", ErrShortBuffer
	}
	if size < 0 || n > math.MaxInt32 {
		return "", fmt.Errorf("codec: invalid string length prefix at offset %d", r.off)
	}
	if n > maxStringLen {
		return "", fmt.Errorf("codec: string length %d exceeds limit", n)
	}
	start := r.off + size
	if len(r.data)-start < int(n) {
		return "", ErrShortBuffer
	}
	s := string(r.data[start : start+int(n)])
	r.off = start + int(n)
	return s, nil
}
