package entropy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jblindsay/lasz/internal/bytestream"
)

func TestEncodeDecodeBitsBypassRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewEncoder()
	require.NoError(t, enc.Init(bytestream.NewWriterSink(buf)))

	values := []uint32{0, 1, 255, 1000, 0xFFFF, 0x12345, 0xFFFFFFFF}
	for _, v := range values {
		require.NoError(t, enc.EncodeBits(32, v))
	}
	_, err := enc.Done()
	require.NoError(t, err)

	dec := NewDecoder()
	require.NoError(t, dec.Init(bytestream.NewReaderSource(bytes.NewReader(buf.Bytes()))))
	for _, want := range values {
		got, err := dec.DecodeBits(32)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.NoError(t, dec.Done())
}

func TestEncodeDecodeByteU16U32U64RoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewEncoder()
	require.NoError(t, enc.Init(bytestream.NewWriterSink(buf)))
	require.NoError(t, enc.EncodeByte(0x7A))
	require.NoError(t, enc.EncodeU16(0xBEEF))
	require.NoError(t, enc.EncodeU32(0xCAFEBABE))
	require.NoError(t, enc.EncodeU64(0x0102030405060708))
	_, err := enc.Done()
	require.NoError(t, err)

	dec := NewDecoder()
	require.NoError(t, dec.Init(bytestream.NewReaderSource(bytes.NewReader(buf.Bytes()))))
	b, err := dec.DecodeByte()
	require.NoError(t, err)
	require.Equal(t, uint8(0x7A), b)
	u16, err := dec.DecodeU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), u16)
	u32, err := dec.DecodeU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xCAFEBABE), u32)
	u64, err := dec.DecodeU64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)
	require.NoError(t, dec.Done())
}

func TestEncodeDecodeSymbolAdaptiveRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewEncoder()
	require.NoError(t, enc.Init(bytestream.NewWriterSink(buf)))

	encModel := NewSymbolModel(8, 14, false)
	encModel.Init()
	syms := []uint32{0, 0, 1, 2, 0, 7, 3, 3, 3, 6, 0, 1}
	for _, s := range syms {
		require.NoError(t, enc.EncodeSymbol(encModel, s))
	}
	_, err := enc.Done()
	require.NoError(t, err)

	dec := NewDecoder()
	require.NoError(t, dec.Init(bytestream.NewReaderSource(bytes.NewReader(buf.Bytes()))))
	decModel := NewSymbolModel(8, 14, true)
	decModel.Init()
	for _, want := range syms {
		got, err := dec.DecodeSymbol(decModel)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.NoError(t, dec.Done())
}

func TestInitRejectsBadHeaderByte(t *testing.T) {
	dec := NewDecoder()
	err := dec.Init(bytestream.NewReaderSource(bytes.NewReader([]byte{0, 0})))
	require.ErrorIs(t, err, ErrBadHeaderByte)
}
