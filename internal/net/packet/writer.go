package packet

import (
	"encoding/binary"
)

// Writer builds a server -> client command body: [u16 command][fields].
// All multi-byte writes are big-endian.
type Writer struct {
	buf []byte
}

func NewWriter(cmd uint16) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.WriteU16(cmd)
	return w
}

func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteU16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteU32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteS16(v int16) { w.WriteU16(uint16(v)) }
func (w *Writer) WriteS32(v int32) { w.WriteU32(uint32(v)) }

// WriteString writes a u16 length-prefixed string, truncated to 65535 bytes.
func (w *Writer) WriteString(s string) {
	if len(s) > 0xFFFF {
		s = s[:0xFFFF]
	}
	w.WriteU16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteLongString writes a u32 length-prefixed string.
func (w *Writer) WriteLongString(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteWideString writes s as a u16 count of UTF-16BE code units.
func (w *Writer) WriteWideString(s string) {
	encoded, err := utf16be.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// invalid UTF-8 input; send an empty string rather than garbage
		encoded = nil
	}
	if len(encoded) > 0xFFFF*2 {
		encoded = encoded[:0xFFFF*2]
	}
	w.WriteU16(uint16(len(encoded) / 2))
	w.buf = append(w.buf, encoded...)
}

func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the encoded body.
func (w *Writer) Bytes() []byte {
	return w.buf
}
