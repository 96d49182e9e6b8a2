package intcompress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jblindsay/lasz/internal/bytestream"
	"github.com/jblindsay/lasz/internal/entropy"
)

func TestCompressDecompressRoundTripAcrossContexts(t *testing.T) {
	predictions := []int32{0, 10, -10, 1000, -1000, 2147483000}
	actuals := []int32{0, 12, -9000, -5, 2147483647, -2147483648}
	contexts := []uint32{0, 1, 2, 0, 1, 2}

	buf := &bytes.Buffer{}
	enc := entropy.NewEncoder()
	require.NoError(t, enc.Init(bytestream.NewWriterSink(buf)))
	c := New(3, 32, false)
	for i := range predictions {
		require.NoError(t, c.Compress(enc, predictions[i], actuals[i], contexts[i]))
	}
	_, err := enc.Done()
	require.NoError(t, err)

	dec := entropy.NewDecoder()
	require.NoError(t, dec.Init(bytestream.NewReaderSource(bytes.NewReader(buf.Bytes()))))
	cd := New(3, 32, true)
	for i := range predictions {
		got, err := cd.Decompress(dec, predictions[i], contexts[i])
		require.NoError(t, err)
		require.Equal(t, actuals[i], got)
	}
	require.NoError(t, dec.Done())
}

func TestCompressRejectsOutOfRangeContext(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := entropy.NewEncoder()
	require.NoError(t, enc.Init(bytestream.NewWriterSink(buf)))
	c := New(2, 32, false)
	err := c.Compress(enc, 0, 1, 5)
	require.Error(t, err)
}

func TestNumContexts(t *testing.T) {
	c := New(4, 16, false)
	require.Equal(t, uint32(4), c.NumContexts())
}
