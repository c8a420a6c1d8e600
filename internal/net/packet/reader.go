package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// ErrShortPayload is reported when a field runs past the end of the payload.
var ErrShortPayload = errors.New("payload too short")

// ErrStringTooLong is reported when a length-prefixed field exceeds its cap.
var ErrStringTooLong = errors.New("string exceeds limit")

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// V3S16 is a signed 16-bit block position.
type V3S16 struct{ X, Y, Z int16 }

// V3S32 is a signed 32-bit vector, used for fixed-point positions.
type V3S32 struct{ X, Y, Z int32 }

// Reader decodes big-endian command payload fields. The command id is
// already stripped by the transport. The first failure sticks: later reads
// return zero values and Err reports the original problem.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(payload []byte) *Reader {
	return &Reader{data: payload}
}

// Err returns the first decode error.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) take(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: %s needs %d bytes at offset %d, have %d",
			ErrShortPayload, field, n, r.off, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() uint8 {
	b := r.take(1, "u8")
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadU16 reads a big-endian uint16.
func (r *Reader) ReadU16() uint16 {
	b := r.take(2, "u16")
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// ReadU32 reads a big-endian uint32.
func (r *Reader) ReadU32() uint32 {
	b := r.take(4, "u32")
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *Reader) ReadS16() int16 { return int16(r.ReadU16()) }
func (r *Reader) ReadS32() int32 { return int32(r.ReadU32()) }

func (r *Reader) ReadV3S16() V3S16 {
	return V3S16{X: r.ReadS16(), Y: r.ReadS16(), Z: r.ReadS16()}
}

func (r *Reader) ReadV3S32() V3S32 {
	return V3S32{X: r.ReadS32(), Y: r.ReadS32(), Z: r.ReadS32()}
}

// ReadString reads a u16 length-prefixed byte string.
func (r *Reader) ReadString() string {
	n := int(r.ReadU16())
	b := r.take(n, "string")
	return string(b)
}

// ReadLongString reads a u32 length-prefixed byte string of at most max bytes.
func (r *Reader) ReadLongString(max int) string {
	n := r.ReadU32()
	if r.err != nil {
		return ""
	}
	if int64(n) > int64(max) {
		r.err = fmt.Errorf("%w: long string of %d bytes (max %d)", ErrStringTooLong, n, max)
		return ""
	}
	return string(r.take(int(n), "long string"))
}

// ReadWideString reads a u16 count of UTF-16BE code units and returns UTF-8.
func (r *Reader) ReadWideString() string {
	n := int(r.ReadU16())
	raw := r.take(n*2, "wide string")
	if len(raw) == 0 {
		return ""
	}
	decoded, err := utf16be.NewDecoder().Bytes(raw)
	if err != nil {
		r.err = fmt.Errorf("decode wide string: %w", err)
		return ""
	}
	return string(decoded)
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	b := r.take(n, "bytes")
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}
