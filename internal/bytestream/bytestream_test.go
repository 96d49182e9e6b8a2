package bytestream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterSinkReaderSourceFieldRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewWriterSink(buf)
	require.NoError(t, sink.WriteByte(0xAB))
	require.NoError(t, sink.WriteU16(0x1234))
	require.NoError(t, sink.WriteU32(0xDEADBEEF))
	require.NoError(t, sink.WriteU64(0x0102030405060708))
	require.NoError(t, sink.WriteI32(-42))
	require.NoError(t, sink.WriteI64(-1))
	require.NoError(t, sink.WriteF32(3.5))
	require.NoError(t, sink.WriteF64(2.71828))
	require.NoError(t, sink.WriteBytes([]byte("hello")))

	src := NewReaderSource(bytes.NewReader(buf.Bytes()))
	b, err := src.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), b)

	u16, err := src.ReadU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	u32, err := src.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := src.ReadU64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	i32, err := src.ReadI32()
	require.NoError(t, err)
	require.Equal(t, int32(-42), i32)

	i64, err := src.ReadI64()
	require.NoError(t, err)
	require.Equal(t, int64(-1), i64)

	f32, err := src.ReadF32()
	require.NoError(t, err)
	require.Equal(t, float32(3.5), f32)

	f64, err := src.ReadF64()
	require.NoError(t, err)
	require.Equal(t, 2.71828, f64)

	rest, err := src.ReadBytes(5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), rest)
}

func TestPutBitsFlushBitsRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewWriterSink(buf)
	require.NoError(t, sink.PutBits(0x3, 2))   // 11
	require.NoError(t, sink.PutBits(0x5, 3))   // 101
	require.NoError(t, sink.FlushBits())

	src := NewReaderSource(bytes.NewReader(buf.Bytes()))
	word, err := src.ReadU32()
	require.NoError(t, err)
	// 5 bits queued MSB-first: 11101, padded with zero low bits to a
	// little-endian 32-bit word.
	require.Equal(t, uint32(0b11101<<27), word)
}

func TestSeekRoundTrip(t *testing.T) {
	buf := bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	src := NewReaderSource(buf)
	require.True(t, src.IsSeekable())
	require.NoError(t, src.Seek(4))
	b, err := src.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(4), b)

	require.NoError(t, src.SeekEnd(-1))
	b, err = src.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(7), b)
}

func TestUnseekableSourceReportsItself(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	defer pr.Close()
	src := NewReaderSource(pr)
	require.False(t, src.IsSeekable())
	require.ErrorIs(t, src.Seek(0), ErrUnseekable)
}
