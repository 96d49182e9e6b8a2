package lidario

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jblindsay/lasz/internal/pointcodec"
)

func writeSampleLazFile(t *testing.T, path string, format uint8, chunkSize int32, n int) []LasPointer {
	t.Helper()
	lf, err := NewLazFile(path, "w")
	require.NoError(t, err)
	lf.Header.PointDataFormatID = format
	lf.ChunkSize = chunkSize

	var want []LasPointer
	for i := 0; i < n; i++ {
		p := NewPointRecord(format)
		switch v := p.(type) {
		case *PointRecord1:
			v.X, v.Y, v.Z = int32(i*10), int32(-i*3), int32(i)
			v.GPSTime = float64(i) * 0.5
			v.Bits = NewPointBitField(1, 1, i%2 == 0, false)
			v.Intensity = uint16(i % 256)
		case *PointRecord7:
			v.X, v.Y, v.Z = int32(i*7), int32(i*11), int32(i*2)
			v.Returns = NewExtendedReturnsByte(1, 1)
			v.RGB = RgbData{Red: uint16(i), Green: uint16(i * 2), Blue: uint16(i * 3)}
		case *PointRecord8:
			v.X, v.Y, v.Z = int32(i*7), int32(i*11), int32(i*2)
			v.Returns = NewExtendedReturnsByte(1, 1)
			v.RGB = RgbData{Red: uint16(i), Green: uint16(i * 2), Blue: uint16(i * 3)}
			v.NIR = NirData{NIR: uint16(i * 4)}
		case *PointRecord9:
			v.X, v.Y, v.Z = int32(i*7), int32(i*11), int32(i*2)
			v.Returns = NewExtendedReturnsByte(1, 1)
			v.Wave = WaveformPacket{DescriptorIndex: uint8(i % 4), ByteOffset: uint64(i) * 100, PacketSize: uint32(i), ReturnLocation: float32(i) * 0.5}
		}
		require.NoError(t, lf.WritePoint(p))
		want = append(want, p)
		if chunkSize == pointcodec.VariableChunkSize && i%7 == 6 {
			require.NoError(t, lf.Chunk())
		}
	}
	require.NoError(t, lf.Close())
	return want
}

func TestLazFileWriteReadRoundTripPointwise(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.laz")
	want := writeSampleLazFile(t, path, 1, 10, 37) // multiple chunk boundaries

	lf, err := NewLazFile(path, "r")
	require.NoError(t, err)
	defer lf.Close()

	require.True(t, lf.IsCompressed())
	require.Equal(t, uint64(len(want)), lf.GetPointCount())
	for i := range want {
		got, err := lf.LasPoint(i)
		require.NoError(t, err)
		require.Equal(t, want[i], got)
	}
}

func TestLazFileWriteReadRoundTripLayered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layered.laz")
	want := writeSampleLazFile(t, path, 8, 16, 50)

	lf, err := NewLazFile(path, "r")
	require.NoError(t, err)
	defer lf.Close()
	for i := range want {
		got, err := lf.LasPoint(i)
		require.NoError(t, err)
		require.Equal(t, want[i], got)
	}
}

func TestLazFileWriteReadRoundTripLayeredRgb(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layered_rgb.laz")
	want := writeSampleLazFile(t, path, 7, 16, 40)

	lf, err := NewLazFile(path, "r")
	require.NoError(t, err)
	defer lf.Close()
	for i := range want {
		got, err := lf.LasPoint(i)
		require.NoError(t, err)
		require.Equal(t, want[i], got)
	}
}

func TestLazFileWriteReadRoundTripLayeredWavePacket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layered_wave.laz")
	want := writeSampleLazFile(t, path, 9, 12, 30)

	lf, err := NewLazFile(path, "r")
	require.NoError(t, err)
	defer lf.Close()
	for i := range want {
		got, err := lf.LasPoint(i)
		require.NoError(t, err)
		require.Equal(t, want[i], got)
	}
}

func TestLazFileVariableChunking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variable.laz")
	want := writeSampleLazFile(t, path, 8, pointcodec.VariableChunkSize, 30)

	lf, err := NewLazFile(path, "r")
	require.NoError(t, err)
	defer lf.Close()
	for i := range want {
		got, err := lf.LasPoint(i)
		require.NoError(t, err)
		require.Equal(t, want[i], got)
	}
}

func TestLazFileSeekEquivalentToSequentialRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seek.laz")
	want := writeSampleLazFile(t, path, 1, 8, 40)

	seqReader, err := NewLazFile(path, "r")
	require.NoError(t, err)
	defer seqReader.Close()
	var seq []LasPointer
	for i := range want {
		p, err := seqReader.LasPoint(i)
		require.NoError(t, err)
		seq = append(seq, p)
	}

	randReader, err := NewLazFile(path, "r")
	require.NoError(t, err)
	defer randReader.Close()
	for _, i := range []int{39, 0, 17, 8, 39, 20} {
		got, err := randReader.LasPoint(i)
		require.NoError(t, err)
		require.Equal(t, seq[i], got)
	}
}

func TestLazFileChunkDigestsDetectSameContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verify.laz")
	lf, err := NewLazFile(path, "w")
	require.NoError(t, err)
	lf.Header.PointDataFormatID = 1
	lf.ChunkSize = 10
	lf.VerifyChunks = true
	for i := 0; i < 25; i++ {
		p := &PointRecord1{PointRecord0: PointRecord0{point10Base: point10Base{X: int32(i)}}}
		require.NoError(t, lf.WritePoint(p))
	}
	require.NoError(t, lf.Close())
	writeDigests := lf.ChunkDigests()
	require.Len(t, writeDigests, 3) // 10, 10, 5

	rf, err := NewLazFile(path, "r")
	require.NoError(t, err)
	rf.VerifyChunks = true
	defer rf.Close()
	for i := 0; i < 25; i++ {
		_, err := rf.LasPoint(i)
		require.NoError(t, err)
	}
	require.Equal(t, writeDigests, rf.ChunkDigests())
}

func TestNewLazFileRejectsUncompressedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.las")
	lf, err := NewLasFile(path, "w")
	require.NoError(t, err)
	lf.Header.PointDataFormatID = 0
	require.NoError(t, lf.WritePoint(&PointRecord0{}))
	require.NoError(t, lf.Close())

	_, err = NewLazFile(path, "r")
	require.Error(t, err)
}
