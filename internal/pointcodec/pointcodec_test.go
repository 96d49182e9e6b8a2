package pointcodec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jblindsay/lasz/internal/bytestream"
	"github.com/jblindsay/lasz/internal/itemcodec"
)

func point10Points(n int) [][]byte {
	pts := make([][]byte, n)
	for i := range pts {
		p := make([]byte, 20)
		binary.LittleEndian.PutUint32(p[0:], uint32(int32(i*10)))
		binary.LittleEndian.PutUint32(p[4:], uint32(int32(-i*3)))
		binary.LittleEndian.PutUint32(p[8:], uint32(int32(i)))
		p[14] = byte((1 & 0x7) | (1 << 3))
		pts[i] = p
	}
	return pts
}

func writeAll(t *testing.T, opts Options, out bytestream.Sink, pts [][]byte) *Writer {
	t.Helper()
	w, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, w.Init(out))
	for _, p := range pts {
		require.NoError(t, w.Write(p))
	}
	require.NoError(t, w.Done())
	return w
}

func readAllSequential(t *testing.T, opts Options, in bytestream.Source, n, recordLen int) [][]byte {
	t.Helper()
	r, err := NewReader(opts)
	require.NoError(t, err)
	require.NoError(t, r.Init(in))
	got := make([][]byte, n)
	for i := 0; i < n; i++ {
		buf := make([]byte, recordLen)
		require.NoError(t, r.Read(buf))
		got[i] = buf
	}
	return got
}

func TestWriterReaderModeNoneRoundTrip(t *testing.T) {
	opts := Options{Items: []itemcodec.Item{{Kind: itemcodec.Point10, Size: 20}}, Mode: ModeNone}
	pts := point10Points(10)

	buf := &bytes.Buffer{}
	writeAll(t, opts, bytestream.NewWriterSink(buf), pts)

	got := readAllSequential(t, opts, bytestream.NewReaderSource(bytes.NewReader(buf.Bytes())), len(pts), 20)
	require.Equal(t, pts, got)
}

func TestWriterReaderPointwiseChunkedRoundTripAndSeek(t *testing.T) {
	opts := Options{
		Items:     []itemcodec.Item{{Kind: itemcodec.Point10, Version: 2, Size: 20}},
		Mode:      ModePointwiseChunked,
		ChunkSize: 7,
	}
	pts := point10Points(33) // multiple chunk boundaries, last chunk partial

	buf := &bytes.Buffer{}
	writeAll(t, opts, bytestream.NewWriterSink(buf), pts)

	r, err := NewReader(opts)
	require.NoError(t, err)
	require.NoError(t, r.Init(bytestream.NewReaderSource(bytes.NewReader(buf.Bytes()))))
	for _, i := range []int64{32, 0, 15, 7, 6, 20} {
		require.NoError(t, r.Seek(i))
		got := make([]byte, 20)
		require.NoError(t, r.Read(got))
		require.Equal(t, pts[i], got)
	}
}

func TestWriterReaderLayeredChunkedRoundTrip(t *testing.T) {
	opts := Options{
		Items:     []itemcodec.Item{{Kind: itemcodec.Point14, Version: 3, Size: 30}},
		Mode:      ModeLayeredChunked,
		ChunkSize: 5,
	}
	pts := make([][]byte, 23)
	for i := range pts {
		p := make([]byte, 30)
		binary.LittleEndian.PutUint32(p[0:], uint32(int32(i)))
		pts[i] = p
	}

	buf := &bytes.Buffer{}
	writeAll(t, opts, bytestream.NewWriterSink(buf), pts)

	got := readAllSequential(t, opts, bytestream.NewReaderSource(bytes.NewReader(buf.Bytes())), len(pts), 30)
	require.Equal(t, pts, got)
}

func TestVariableChunkingForcedBoundaries(t *testing.T) {
	opts := Options{
		Items:        []itemcodec.Item{{Kind: itemcodec.Point10, Version: 2, Size: 20}},
		Mode:         ModePointwiseChunked,
		ChunkSize:    VariableChunkSize,
		VerifyChunks: true,
	}
	pts := point10Points(20)

	buf := &bytes.Buffer{}
	w, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, w.Init(bytestream.NewWriterSink(buf)))
	for i, p := range pts {
		require.NoError(t, w.Write(p))
		if i%4 == 3 {
			require.NoError(t, w.Chunk())
		}
	}
	require.NoError(t, w.Done())
	require.Len(t, w.ChunkDigests(), 5)

	got := readAllSequential(t, opts, bytestream.NewReaderSource(bytes.NewReader(buf.Bytes())), len(pts), 20)
	require.Equal(t, pts, got)
}

func TestChunkRejectedOutsideVariableMode(t *testing.T) {
	opts := Options{Items: []itemcodec.Item{{Kind: itemcodec.Point10, Size: 20}}, Mode: ModePointwiseChunked, ChunkSize: 10}
	w, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, w.Init(bytestream.NewWriterSink(&bytes.Buffer{})))
	require.NoError(t, w.Write(point10Points(1)[0]))
	err = w.Chunk()
	require.Error(t, err)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
}

func TestUnseekableSinkSequentialReadWithFixedChunks(t *testing.T) {
	opts := Options{
		Items:     []itemcodec.Item{{Kind: itemcodec.Point10, Version: 2, Size: 20}},
		Mode:      ModePointwiseChunked,
		ChunkSize: 6,
	}
	pts := point10Points(17)

	buf := &bytes.Buffer{}
	writeAll(t, opts, bytestream.NewWriterSink(buf), pts) // WriterSink over *bytes.Buffer is never seekable

	unseekable := bytestream.NewReaderSource(bufio.NewReader(bytes.NewReader(buf.Bytes())))
	require.False(t, unseekable.IsSeekable())

	// Fixed chunk size means the reader never needs the chunk table for
	// sequential reads, only for Seek, so this works over an unseekable
	// source even though the writer appended the table offset as a
	// trailing i64 instead of back-patching the header placeholder.
	got := readAllSequential(t, opts, unseekable, len(pts), 20)
	require.Equal(t, pts, got)
}

func TestVerifyChunksDigestsMatchBetweenWriteAndRead(t *testing.T) {
	opts := Options{
		Items:        []itemcodec.Item{{Kind: itemcodec.Point10, Version: 2, Size: 20}},
		Mode:         ModePointwiseChunked,
		ChunkSize:    4,
		VerifyChunks: true,
	}
	pts := point10Points(13)

	buf := &bytes.Buffer{}
	w := writeAll(t, opts, bytestream.NewWriterSink(buf), pts)
	writeDigests := w.ChunkDigests()
	require.Len(t, writeDigests, 4)

	r, err := NewReader(opts)
	require.NoError(t, err)
	require.NoError(t, r.Init(bytestream.NewReaderSource(bytes.NewReader(buf.Bytes()))))
	for range pts {
		buf := make([]byte, 20)
		require.NoError(t, r.Read(buf))
	}
	require.Equal(t, writeDigests, r.ChunkDigests())
}
