package packet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderDecodesWriterFields(t *testing.T) {
	w := NewWriter(0x1234)
	w.WriteU8(7)
	w.WriteS16(-2)
	w.WriteS32(-100000)
	w.WriteString("singleplayer")
	w.WriteLongString("formspec")
	w.WriteWideString("héllo 世界")

	body := w.Bytes()
	require.Equal(t, []byte{0x12, 0x34}, body[:2])

	r := NewReader(body[2:])
	assert.Equal(t, uint8(7), r.ReadU8())
	assert.Equal(t, int16(-2), r.ReadS16())
	assert.Equal(t, int32(-100000), r.ReadS32())
	assert.Equal(t, "singleplayer", r.ReadString())
	assert.Equal(t, "formspec", r.ReadLongString(64))
	assert.Equal(t, "héllo 世界", r.ReadWideString())
	assert.Zero(t, r.Remaining())
	assert.NoError(t, r.Err())
}

func TestReaderShortPayloadSticks(t *testing.T) {
	r := NewReader([]byte{0x00, 0x05, 'a', 'b'})
	assert.Equal(t, "", r.ReadString())
	require.Error(t, r.Err())
	assert.True(t, errors.Is(r.Err(), ErrShortPayload))

	// later reads keep returning zero values
	assert.Zero(t, r.ReadU32())
	assert.True(t, errors.Is(r.Err(), ErrShortPayload))
}

func TestReaderLongStringLimit(t *testing.T) {
	w := NewWriter(0)
	w.WriteLongString("0123456789")
	r := NewReader(w.Bytes()[2:])
	assert.Empty(t, r.ReadLongString(4))
	assert.True(t, errors.Is(r.Err(), ErrStringTooLong))
}

func TestReaderVectors(t *testing.T) {
	w := NewWriter(0)
	w.WriteS16(1)
	w.WriteS16(-1)
	w.WriteS16(300)
	w.WriteS32(1000)
	w.WriteS32(-2000)
	w.WriteS32(3000)
	r := NewReader(w.Bytes()[2:])
	assert.Equal(t, V3S16{1, -1, 300}, r.ReadV3S16())
	assert.Equal(t, V3S32{1000, -2000, 3000}, r.ReadV3S32())
	assert.NoError(t, r.Err())
}
