package itemcodec

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jblindsay/lasz/internal/bytestream"
	"github.com/jblindsay/lasz/internal/entropy"
)

// roundTripCompressed drives points through a CompressedWriter/Reader
// pair the way pointcodec.Writer/Reader do: the first point is the raw
// seed, every later point goes through Compress/Decompress against a
// single shared entropy stream.
func roundTripCompressed(t *testing.T, mkWriter func() (CompressedWriter, error), mkReader func() (CompressedReader, error), points [][]byte) {
	t.Helper()
	w, err := mkWriter()
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	sink := bytestream.NewWriterSink(buf)
	enc := entropy.NewEncoder()
	require.NoError(t, enc.Init(sink))
	require.NoError(t, w.Init(enc, points[0]))
	for _, p := range points[1:] {
		require.NoError(t, w.Compress(enc, p))
	}
	_, err = enc.Done()
	require.NoError(t, err)

	r, err := mkReader()
	require.NoError(t, err)
	src := bytestream.NewReaderSource(bytes.NewReader(buf.Bytes()))
	dec := entropy.NewDecoder()
	require.NoError(t, dec.Init(src))
	require.NoError(t, r.Init(dec, points[0]))
	for _, want := range points[1:] {
		got := make([]byte, len(want))
		require.NoError(t, r.Decompress(dec, got))
		require.Equal(t, want, got)
	}
}

// roundTripLayered drives points through a LayeredWriter/Reader pair for
// a single chunk: Init with the seed, Compress every later point,
// FlushLayers once, then the symmetric read side.
func roundTripLayered(t *testing.T, mkWriter func() (LayeredWriter, error), mkReader func() (LayeredReader, error), points [][]byte) {
	t.Helper()
	w, err := mkWriter()
	require.NoError(t, err)
	require.NoError(t, w.Init(points[0]))
	for _, p := range points[1:] {
		require.NoError(t, w.Compress(p))
	}
	buf := &bytes.Buffer{}
	require.NoError(t, w.FlushLayers(bytestream.NewWriterSink(buf)))

	r, err := mkReader()
	require.NoError(t, err)
	require.NoError(t, r.Init(points[0]))
	src := bytestream.NewReaderSource(bytes.NewReader(buf.Bytes()))
	require.NoError(t, r.LoadLayers(src, len(points), 0))
	for _, want := range points[1:] {
		got := make([]byte, len(want))
		require.NoError(t, r.Decompress(got))
		require.Equal(t, want, got)
	}
}

func point10Sample(n int) [][]byte {
	pts := make([][]byte, n)
	for i := range pts {
		p := make([]byte, Point10.Size())
		putI32(p, p10X, int32(i*10))
		putI32(p, p10Y, int32(i*-3))
		putI32(p, p10Z, int32(i))
		p[p10BitField] = byte((1 & 0x7) | (1 << 3))
		pts[i] = p
	}
	return pts
}

func TestPoint10CompressedRoundTrip(t *testing.T) {
	for _, v := range []int{1, 2} {
		pts := point10Sample(20)
		roundTripCompressed(t,
			func() (CompressedWriter, error) { return NewPoint10Writer(v) },
			func() (CompressedReader, error) { return NewPoint10Reader(v) },
			pts)
	}
}

func gpsTimeSample(n int) [][]byte {
	pts := make([][]byte, n)
	base := uint64(1_700_000_000) << 20
	for i := range pts {
		p := make([]byte, GpsTime11.Size())
		putU64(p, 0, base+uint64(i)*1000)
		pts[i] = p
	}
	return pts
}

func TestGpsTimeCompressedRoundTrip(t *testing.T) {
	for _, v := range []int{1, 2} {
		pts := gpsTimeSample(15)
		roundTripCompressed(t,
			func() (CompressedWriter, error) { return NewGpsTimeWriter(v) },
			func() (CompressedReader, error) { return NewGpsTimeReader(v) },
			pts)
	}
}

func rgbSample(n, channels int) [][]byte {
	pts := make([][]byte, n)
	for i := range pts {
		p := make([]byte, channels*2)
		for c := 0; c < channels; c++ {
			putU16(p, c*2, uint16(i*7+c*100))
		}
		pts[i] = p
	}
	return pts
}

func TestRgb12CompressedRoundTrip(t *testing.T) {
	for _, v := range []int{1, 2} {
		pts := rgbSample(18, 3)
		roundTripCompressed(t,
			func() (CompressedWriter, error) { return NewRgb12Writer(v) },
			func() (CompressedReader, error) { return NewRgb12Reader(v) },
			pts)
	}
}

func TestRgbNir14CompressedRoundTrip(t *testing.T) {
	pts := rgbSample(18, 4)
	roundTripCompressed(t,
		func() (CompressedWriter, error) { return NewRgbNir14Writer() },
		func() (CompressedReader, error) { return NewRgbNir14Reader() },
		pts)
}

func TestRgb12LayeredRoundTrip(t *testing.T) {
	pts := rgbSample(18, 3)
	roundTripLayered(t,
		func() (LayeredWriter, error) { return NewRgb12LayeredWriter(3) },
		func() (LayeredReader, error) { return NewRgb12LayeredReader(3) },
		pts)
}

func TestRgb12LayeredRejectsBadVersion(t *testing.T) {
	_, err := NewRgb12LayeredWriter(2)
	require.Error(t, err)
}

func wavePacketSample(n int) [][]byte {
	pts := make([][]byte, n)
	for i := range pts {
		p := make([]byte, WavePacket13.Size())
		p[wp13Descriptor] = byte(i % 5)
		putU64(p, wp13Offset, uint64(i)*512)
		putU32(p, wp13PacketSize, uint32(i))
		putU32(p, wp13Location, math.Float32bits(float32(i)*0.25))
		putU32(p, wp13Xt, math.Float32bits(float32(i)))
		putU32(p, wp13Yt, math.Float32bits(float32(-i)))
		putU32(p, wp13Zt, math.Float32bits(float32(i)*2))
		pts[i] = p
	}
	return pts
}

func TestWavePacketCompressedRoundTrip(t *testing.T) {
	pts := wavePacketSample(16)
	roundTripCompressed(t,
		func() (CompressedWriter, error) { return NewWavePacketWriter(1) },
		func() (CompressedReader, error) { return NewWavePacketReader(1) },
		pts)
}

func TestWavePacketLayeredRoundTrip(t *testing.T) {
	pts := wavePacketSample(16)
	roundTripLayered(t,
		func() (LayeredWriter, error) { return NewWavePacketLayeredWriter(3) },
		func() (LayeredReader, error) { return NewWavePacketLayeredReader(3) },
		pts)
}

func byteSample(n, width int) [][]byte {
	pts := make([][]byte, n)
	for i := range pts {
		p := make([]byte, width)
		for j := range p {
			p[j] = byte((i*3 + j*11) % 256)
		}
		pts[i] = p
	}
	return pts
}

func TestByteCompressedRoundTrip(t *testing.T) {
	for _, v := range []int{1, 2} {
		pts := byteSample(12, 5)
		roundTripCompressed(t,
			func() (CompressedWriter, error) { return NewByteWriter(v, 5) },
			func() (CompressedReader, error) { return NewByteReader(v, 5) },
			pts)
	}
}

func TestRawCodecRoundTrip(t *testing.T) {
	w, r := NewRawCodec(Item{Kind: Point10, Size: Point10.Size()}, 0)
	p := make([]byte, Point10.Size())
	putI32(p, p10X, 12345)

	buf := &bytes.Buffer{}
	require.NoError(t, w.WriteRaw(bytestream.NewWriterSink(buf), p))

	got := make([]byte, Point10.Size())
	require.NoError(t, r.ReadRaw(bytestream.NewReaderSource(bytes.NewReader(buf.Bytes())), got))
	require.Equal(t, p, got)
}

func TestNewCompressedWriterUnsupportedKind(t *testing.T) {
	_, err := NewCompressedWriter(Item{Kind: Point14, Version: 3})
	require.Error(t, err)
}

func TestNewLayeredWriterUnsupportedKind(t *testing.T) {
	_, err := NewLayeredWriter(Item{Kind: GpsTime11, Version: 1})
	require.Error(t, err)
}

func TestIsLayered(t *testing.T) {
	require.True(t, IsLayered(Point14))
	require.False(t, IsLayered(Rgb12))
}
