package lidario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetFileTypeByExtension(t *testing.T) {
	laz, err := GetFileType("cloud.laz")
	require.NoError(t, err)
	require.True(t, laz)

	las, err := GetFileType("cloud.las")
	require.NoError(t, err)
	require.False(t, las)
}

func TestGetFileTypeSniffsAmbiguousExtension(t *testing.T) {
	lasPath := filepath.Join(t.TempDir(), "cloud.dat")
	lf, err := NewLasFile(lasPath, "w")
	require.NoError(t, err)
	lf.Header.PointDataFormatID = 0
	require.NoError(t, lf.WritePoint(&PointRecord0{}))
	require.NoError(t, lf.Close())

	laz, err := GetFileType(lasPath)
	require.NoError(t, err)
	require.False(t, laz)

	lazPath := filepath.Join(t.TempDir(), "cloud2.dat")
	lzf, err := NewLazFile(lazPath, "w")
	require.NoError(t, err)
	lzf.Header.PointDataFormatID = 1
	require.NoError(t, lzf.WritePoint(&PointRecord1{}))
	require.NoError(t, lzf.Close())

	laz, err = GetFileType(lazPath)
	require.NoError(t, err)
	require.True(t, laz)
}

func TestGetFileTypeRejectsBadSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.dat")
	require.NoError(t, writeRawFile(path, []byte("NOPE")))
	_, err := GetFileType(path)
	require.Error(t, err)
}

func TestNewLidarFileDispatchesToLasFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.las")
	lf, err := NewLasFile(path, "w")
	require.NoError(t, err)
	lf.Header.PointDataFormatID = 1
	require.NoError(t, lf.WritePoint(&PointRecord1{GPSTime: 42}))
	require.NoError(t, lf.Close())

	got, err := NewLidarFile(path)
	require.NoError(t, err)
	defer got.Close()
	require.False(t, got.IsCompressed())
	_, ok := got.(*LasFile)
	require.True(t, ok)
}

func TestNewLidarFileDispatchesToLazFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.laz")
	lf, err := NewLazFile(path, "w")
	require.NoError(t, err)
	lf.Header.PointDataFormatID = 1
	require.NoError(t, lf.WritePoint(&PointRecord1{GPSTime: 42}))
	require.NoError(t, lf.Close())

	got, err := NewLidarFile(path)
	require.NoError(t, err)
	defer got.Close()
	require.True(t, got.IsCompressed())
	_, ok := got.(*LazFile)
	require.True(t, ok)
}

func TestNewLidarFileRejectsBadSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad2.dat")
	require.NoError(t, writeRawFile(path, []byte("NOPE"+strings.Repeat("X", 200))))
	_, err := NewLidarFile(path)
	require.Error(t, err)
}

func writeRawFile(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}
