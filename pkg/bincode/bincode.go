// Package bincode implements the LightPool wire encoding: bincode with
// fixed-width little-endian integers (the serde "legacy fixint"
// configuration). Every chain type serializes through the Writer and
// Reader here; the per-type layouts live next to the types themselves.
//
// Wire rules:
//   - u8/u16/u32/u64: fixed width, little-endian
//   - bool: one byte, 0x00 or 0x01
//   - enum / tagged union: u32 variant index, then variant fields
//   - string, byte sequence: u64 length prefix, then raw bytes
//   - fixed-size array: raw bytes, no prefix
//   - option: one byte tag (0 none, 1 some), then the value
package bincode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTruncated reports input that ends before a field's full width.
	ErrTruncated = errors.New("bincode: truncated input")
	// ErrUnknownVariant reports a variant index (or bool/option tag)
	// that matches no declared case.
	ErrUnknownVariant = errors.New("bincode: unknown variant")
)

// Writer accumulates an encoding. Writes never fail; call Finish to
// take the buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func (w *Writer) U8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) U16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *Writer) U32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) U64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// Raw appends bytes verbatim (fixed-size arrays).
func (w *Writer) Raw(p []byte) { w.buf = append(w.buf, p...) }

// VarBytes appends a u64 length prefix followed by the bytes.
func (w *Writer) VarBytes(p []byte) {
	w.U64(uint64(len(p)))
	w.buf = append(w.buf, p...)
}

func (w *Writer) String(s string) {
	w.U64(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// Seq appends the element-count prefix of a sequence. The caller
// encodes the elements afterwards.
func (w *Writer) Seq(n int) { w.U64(uint64(n)) }

// Option appends the presence tag of an optional value. The caller
// encodes the value afterwards when present.
func (w *Writer) Option(present bool) { w.Bool(present) }

func (w *Writer) Len() int { return len(w.buf) }

// Finish returns the accumulated encoding. The Writer must not be used
// afterwards.
func (w *Writer) Finish() []byte { return w.buf }

// Reader walks an encoding. Every read is length-guarded; a read past
// the end returns ErrTruncated and decoding stops.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) need(n int) error {
	if len(r.buf)-r.off < n {
		return ErrTruncated
	}
	return nil
}

func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

// Bool reads one byte and requires it to be 0 or 1. Anything else is
// treated as an unknown variant of the two-case bool.
func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, fmt.Errorf("bool byte 0x%02x: %w", v, ErrUnknownVariant)
	}
	return v == 1, nil
}

// Raw reads n bytes without a length prefix. The returned slice aliases
// the input buffer.
func (r *Reader) Raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	p := r.buf[r.off : r.off+n]
	r.off += n
	return p, nil
}

// VarBytes reads a u64 length prefix and that many bytes. The returned
// slice is a copy.
func (r *Reader) VarBytes() ([]byte, error) {
	n, err := r.seqLen()
	if err != nil {
		return nil, err
	}
	if err := r.need(n); err != nil {
		return nil, err
	}
	p := make([]byte, n)
	copy(p, r.buf[r.off:])
	r.off += n
	return p, nil
}

func (r *Reader) String() (string, error) {
	n, err := r.seqLen()
	if err != nil {
		return "", err
	}
	if err := r.need(n); err != nil {
		return "", err
	}
	s := string(r.buf[r.off : r.off+n])
	r.off += n
	return s, nil
}

// Seq reads an element-count prefix. Counts beyond the remaining input
// fail immediately so a corrupt prefix cannot drive huge allocations.
func (r *Reader) Seq() (int, error) {
	return r.seqLen()
}

func (r *Reader) seqLen() (int, error) {
	v, err := r.U64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 || int(v) > len(r.buf)-r.off {
		return 0, ErrTruncated
	}
	return int(v), nil
}

// Variant reads a u32 variant index and requires it to be below n.
func (r *Reader) Variant(n uint32) (uint32, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	if v >= n {
		return 0, fmt.Errorf("variant index %d of %d: %w", v, n, ErrUnknownVariant)
	}
	return v, nil
}

// Option reads a presence tag. Tags other than 0 and 1 are rejected.
func (r *Reader) Option() (bool, error) {
	v, err := r.U8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, fmt.Errorf("option tag 0x%02x: %w", v, ErrUnknownVariant)
	}
	return v == 1, nil
}

// Remaining reports how many bytes are left unread.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }
