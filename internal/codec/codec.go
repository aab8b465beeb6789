// Package codec reads and writes fixed-layout records.
//
// Every type declares its fields in a fixed order with fixed widths and a
// total Size. There is no length prefix and no version tag: a layout change
// invalidates everything persisted with the previous layout.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-program/internal/apperror"
)

// Marshaler is a value with a fixed binary layout.
type Marshaler interface {
	Size() int
	MarshalBinaryTo(enc *Encoder)
}

// Unmarshaler is the decoding side of Marshaler.
type Unmarshaler interface {
	Size() int
	UnmarshalBinaryFrom(dec *Decoder)
}

// Encode overwrites the leading v.Size() bytes of buf. Trailing bytes are left untouched.
func Encode(v Marshaler, buf []byte) error {
	size := v.Size()
	if len(buf) < size {
		return fmt.Errorf("%w: output too small: %d < %d", apperror.ErrDeserializationFailed, len(buf), size)
	}

	enc := NewEncoder(buf[:size])
	v.MarshalBinaryTo(enc)

	if enc.Len() != size {
		return fmt.Errorf("%w: wrote %d bytes, layout declares %d", apperror.ErrDeserializationFailed, enc.Len(), size)
	}

	return nil
}

// Decode fills v from the leading v.Size() bytes of buf.
func Decode(buf []byte, v Unmarshaler) error {
	size := v.Size()
	if len(buf) < size {
		return fmt.Errorf("%w: input too small: %d < %d", apperror.ErrDeserializationFailed, len(buf), size)
	}

	dec := NewDecoder(buf[:size])
	v.UnmarshalBinaryFrom(dec)

	return dec.Err()
}

// Encoder writes fields sequentially into a byte slice.
type Encoder struct {
	buf []byte
	off int
}

func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf}
}

// Len reports how many bytes have been written.
func (that *Encoder) Len() int {
	return that.off
}

func (that *Encoder) Uint8(v uint8) {
	that.buf[that.off] = v
	that.off++
}

func (that *Encoder) Bool(v bool) {
	if v {
		that.Uint8(1)
		return
	}
	that.Uint8(0)
}

func (that *Encoder) Uint32(v uint32) {
	binary.LittleEndian.PutUint32(that.buf[that.off:], v)
	that.off += 4
}

func (that *Encoder) Uint64(v uint64) {
	binary.LittleEndian.PutUint64(that.buf[that.off:], v)
	that.off += 8
}

func (that *Encoder) Bytes(v []byte) {
	that.off += copy(that.buf[that.off:that.off+len(v)], v)
}

// Zero writes n zero bytes, used for unused fixed slots.
func (that *Encoder) Zero(n int) {
	clear(that.buf[that.off : that.off+n])
	that.off += n
}

// Decoder reads fields sequentially. The first failure sticks: later reads
// return zero values and Err reports the failure.
type Decoder struct {
	buf []byte
	off int
	err error
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (that *Decoder) Err() error {
	return that.err
}

// Fail records a structural error found by the caller, e.g. an unknown enum value.
func (that *Decoder) Fail(format string, args ...any) {
	if that.err != nil {
		return
	}
	that.err = fmt.Errorf("%w: %s", apperror.ErrDeserializationFailed, fmt.Sprintf(format, args...))
}

func (that *Decoder) take(n int) []byte {
	if that.err != nil {
		return nil
	}
	if len(that.buf)-that.off < n {
		that.Fail("unexpected end of input at offset %d", that.off)
		return nil
	}

	b := that.buf[that.off : that.off+n]
	that.off += n

	return b
}

func (that *Decoder) Uint8() uint8 {
	b := that.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (that *Decoder) Bool() bool {
	switch v := that.Uint8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		that.Fail("invalid bool %d", v)
		return false
	}
}

func (that *Decoder) Uint32() uint32 {
	b := that.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (that *Decoder) Uint64() uint64 {
	b := that.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Bytes copies the next len(dst) bytes into dst.
func (that *Decoder) Bytes(dst []byte) {
	b := that.take(len(dst))
	if b == nil {
		return
	}
	copy(dst, b)
}

// Skip advances past n bytes.
func (that *Decoder) Skip(n int) {
	that.take(n)
}
