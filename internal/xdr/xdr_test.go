package xdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderIntegers(t *testing.T) {
	data := []byte{
		0x2a,
		0x34, 0x12,
		0x78, 0x56, 0x34, 0x12,
		0xff, 0xff, 0xff, 0xff,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
	}
	r := NewReader(data)

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x2a), b)

	u16, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), u32)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-1), i32)

	u64, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, len(data), r.Pos())

	_, err = r.ReadByte()
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestReaderStrings(t *testing.T) {
	r := NewReader([]byte("channels\x00chlist\x00tail"))

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "channels", s)

	s, err = r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "chlist", s)

	_, err = r.ReadString()
	assert.ErrorIs(t, err, ErrShortBuffer)
	assert.Equal(t, 4, r.Len(), "failed read must not advance")
}

func TestReaderSkipAndBytes(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5})

	require.NoError(t, r.Skip(2))
	b, err := r.ReadBytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, b)

	assert.ErrorIs(t, r.Skip(-1), ErrNegativeSize)
	assert.ErrorIs(t, r.Skip(2), ErrShortBuffer)
	_, err = r.ReadBytes(-3)
	assert.ErrorIs(t, err, ErrNegativeSize)
}

func TestBufferWriterRoundTrip(t *testing.T) {
	w := NewBufferWriter(16)
	require.NoError(t, w.WriteByte(7))
	w.WriteUint16(0xbeef)
	w.WriteInt32(-12345)
	w.WriteUint64(1 << 40)
	w.WriteFloat32(1.5)
	w.WriteString("deepscanline")
	w.WriteBytes([]byte{9, 9})

	r := NewReader(w.Bytes())
	b, _ := r.ReadByte()
	u16, _ := r.ReadUint16()
	i32, _ := r.ReadInt32()
	u64, _ := r.ReadUint64()
	f, _ := r.ReadFloat32()
	s, err := r.ReadString()
	require.NoError(t, err)

	assert.Equal(t, byte(7), b)
	assert.Equal(t, uint16(0xbeef), u16)
	assert.Equal(t, int32(-12345), i32)
	assert.Equal(t, uint64(1<<40), u64)
	assert.Equal(t, float32(1.5), f)
	assert.Equal(t, "deepscanline", s)
	assert.Equal(t, 2, r.Len())
}

func TestBufferWriterPatch(t *testing.T) {
	w := NewBufferWriter(0)
	w.WriteInt32(0)
	w.WriteUint64(0)
	w.PutInt32(0, 42)
	w.PutUint64(4, 99)

	r := NewReader(w.Bytes())
	i, _ := r.ReadInt32()
	u, _ := r.ReadUint64()
	assert.Equal(t, int32(42), i)
	assert.Equal(t, uint64(99), u)

	w.Reset()
	assert.Equal(t, 0, w.Len())
}
