// Package xdr reads and writes the little-endian primitives of the OpenEXR
// file format.
//
// Reader is a bounds-checked cursor over a byte slice, used for headers,
// offset tables and decompressed chunk payloads. BufferWriter is its
// growable counterpart for building those structures before they hit disk.
package xdr

import (
	"encoding/binary"
	"errors"
	"math"
)

// ByteOrder is the byte order of every multi-byte value in an EXR file.
var ByteOrder = binary.LittleEndian

var (
	ErrShortBuffer  = errors.New("xdr: buffer too short")
	ErrNegativeSize = errors.New("xdr: negative size")
)

// Reader reads little-endian values from a byte slice.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.pos
}

// Pos returns the current read offset.
func (r *Reader) Pos() int {
	return r.pos
}

// Skip advances the read position by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return ErrNegativeSize
	}
	if r.Len() < n {
		return ErrShortBuffer
	}
	r.pos += n
	return nil
}

func (r *Reader) next(n int) ([]byte, error) {
	if r.Len() < n {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadByte reads one byte.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBytes returns the next n bytes. The slice aliases the underlying
// buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	return r.next(n)
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint64(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadString reads a null-terminated string. The terminator is consumed but
// not returned.
func (r *Reader) ReadString() (string, error) {
	rest := r.buf[r.pos:]
	for i, c := range rest {
		if c == 0 {
			r.pos += i + 1
			return string(rest[:i]), nil
		}
	}
	return "", ErrShortBuffer
}

// BufferWriter appends little-endian values to a growable buffer.
type BufferWriter struct {
	buf []byte
}

// NewBufferWriter returns a BufferWriter with the given initial capacity.
func NewBufferWriter(capacity int) *BufferWriter {
	return &BufferWriter{buf: make([]byte, 0, capacity)}
}

// Bytes returns the written bytes. The slice aliases the internal buffer.
func (w *BufferWriter) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *BufferWriter) Len() int {
	return len(w.buf)
}

// Reset discards the contents but keeps the capacity.
func (w *BufferWriter) Reset() {
	w.buf = w.buf[:0]
}

func (w *BufferWriter) WriteByte(v byte) error {
	w.buf = append(w.buf, v)
	return nil
}

func (w *BufferWriter) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *BufferWriter) WriteUint16(v uint16) {
	w.buf = ByteOrder.AppendUint16(w.buf, v)
}

func (w *BufferWriter) WriteUint32(v uint32) {
	w.buf = ByteOrder.AppendUint32(w.buf, v)
}

func (w *BufferWriter) WriteUint64(v uint64) {
	w.buf = ByteOrder.AppendUint64(w.buf, v)
}

func (w *BufferWriter) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *BufferWriter) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteString writes s followed by a null terminator.
func (w *BufferWriter) WriteString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// PutUint64 overwrites eight bytes at offset, which must already have been
// written. It is used to patch reserved fields.
func (w *BufferWriter) PutUint64(offset int, v uint64) {
	ByteOrder.PutUint64(w.buf[offset:offset+8], v)
}

// PutInt32 overwrites four bytes at offset.
func (w *BufferWriter) PutInt32(offset int, v int32) {
	ByteOrder.PutUint32(w.buf[offset:offset+4], uint32(v))
}
