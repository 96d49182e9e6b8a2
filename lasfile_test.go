package lidario

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSampleLasFile(t *testing.T, path string, format uint8, n int) []LasPointer {
	t.Helper()
	lf, err := NewLasFile(path, "w")
	require.NoError(t, err)
	lf.Header.PointDataFormatID = format

	var want []LasPointer
	for i := 0; i < n; i++ {
		p := NewPointRecord(format)
		switch v := p.(type) {
		case *PointRecord1:
			v.X, v.Y, v.Z = int32(i*10), int32(i*20), int32(i*5)
			v.GPSTime = float64(i) * 1.5
			v.Bits = NewPointBitField(1, 1, false, false)
			v.PointSourceID = uint16(i)
		case *PointRecord0:
			v.X, v.Y, v.Z = int32(i*10), int32(i*20), int32(i*5)
			v.Bits = NewPointBitField(1, 1, false, false)
		}
		require.NoError(t, lf.WritePoint(p))
		want = append(want, p)
	}
	require.NoError(t, lf.Close())
	return want
}

func TestLasFileWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.las")
	want := writeSampleLasFile(t, path, 1, 25)

	lf, err := NewLasFile(path, "r")
	require.NoError(t, err)
	defer lf.Close()

	require.False(t, lf.IsCompressed())
	require.Equal(t, uint64(len(want)), lf.GetPointCount())
	require.Equal(t, uint8(1), lf.GetHeader().PointDataFormatID)

	for i := range want {
		got, err := lf.LasPoint(i)
		require.NoError(t, err)
		require.Equal(t, want[i], got)
	}
}

func TestLasFileGetXYZAppliesScaleAndOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xyz.las")
	lf, err := NewLasFile(path, "w")
	require.NoError(t, err)
	lf.Header.PointDataFormatID = 0
	lf.Header.XOffset, lf.Header.YOffset, lf.Header.ZOffset = 100, 200, 300

	p := &PointRecord0{point10Base: point10Base{X: 500, Y: -500, Z: 0}}
	require.NoError(t, lf.WritePoint(p))
	require.NoError(t, lf.Close())

	rf, err := NewLasFile(path, "r")
	require.NoError(t, err)
	defer rf.Close()
	x, y, z, err := rf.GetXYZ(0)
	require.NoError(t, err)
	require.InDelta(t, 105.0, x, 1e-9)
	require.InDelta(t, 195.0, y, 1e-9)
	require.InDelta(t, 300.0, z, 1e-9)
}

func TestLasFileRandomAccessSeek(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seek.las")
	want := writeSampleLasFile(t, path, 1, 50)

	lf, err := NewLasFile(path, "r")
	require.NoError(t, err)
	defer lf.Close()

	for _, i := range []int{49, 0, 25, 10, 49} {
		got, err := lf.LasPoint(i)
		require.NoError(t, err)
		require.Equal(t, want[i], got)
	}
}

func TestLasFileReturnCountsAndBoundsBackPatched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bounds.las")
	lf, err := NewLasFile(path, "w")
	require.NoError(t, err)
	lf.Header.PointDataFormatID = 0
	for _, x := range []int32{-100, 0, 200} {
		p := &PointRecord0{point10Base: point10Base{X: x, Bits: NewPointBitField(1, 1, false, false)}}
		require.NoError(t, lf.WritePoint(p))
	}
	require.NoError(t, lf.Close())

	rf, err := NewLasFile(path, "r")
	require.NoError(t, err)
	defer rf.Close()
	h := rf.GetHeader()
	require.InDelta(t, -1.0, h.MinX, 1e-9)
	require.InDelta(t, 2.0, h.MaxX, 1e-9)
	require.Equal(t, uint64(3), h.NumberOfPointsByReturn[0])
}

func TestNewLasFileRejectsCompressedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compressed.laz")
	lzf, err := NewLazFile(path, "w")
	require.NoError(t, err)
	lzf.Header.PointDataFormatID = 1
	require.NoError(t, lzf.WritePoint(&PointRecord1{}))
	require.NoError(t, lzf.Close())

	_, err = NewLasFile(path, "r")
	require.Error(t, err)
}
