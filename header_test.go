package lidario

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jblindsay/lasz/internal/bytestream"
)

func sampleHeader(major, minor uint8) *Header {
	h := &Header{
		FileSignature:  [4]byte{'L', 'A', 'S', 'F'},
		FileSourceID:   7,
		GlobalEncoding: GlobalEncodingField{Value: 1},
		ProjectID:      uuid.New(),
		VersionMajor:   major,
		VersionMinor:   minor,
		CreationDayOfYear: 42,
		CreationYear:      2024,
		OffsetToPointData: 0,
		NumberOfVLRs:      0,
		PointDataFormatID: 1,
		PointRecordLength: 28,
		XScaleFactor:      0.01, YScaleFactor: 0.01, ZScaleFactor: 0.01,
		XOffset: 100, YOffset: 200, ZOffset: 300,
		MaxX: 1000, MinX: -1000, MaxY: 2000, MinY: -2000, MaxZ: 500, MinZ: -500,
	}
	h.SetSystemID("lasz test")
	h.SetGeneratingSoftware("lasz test suite")
	h.HeaderSize = minHeaderSize(major, minor)
	if minor >= 4 {
		h.NumberOfPointRecords = 12345
		for i := range h.NumberOfPointsByReturn {
			h.NumberOfPointsByReturn[i] = uint64(i)
		}
	} else {
		h.LegacyNumberOfPointRecords = 12345
		h.NumberOfPointRecords = 12345
	}
	return h
}

func TestHeaderRoundTripAllVersions(t *testing.T) {
	for _, v := range [][2]uint8{{1, 2}, {1, 3}, {1, 4}, {1, 5}} {
		h := sampleHeader(v[0], v[1])
		buf := &bytes.Buffer{}
		require.NoError(t, h.WriteHeader(bytestream.NewWriterSink(buf)))
		require.Equal(t, int(h.HeaderSize), buf.Len())

		got, err := ReadHeader(bytestream.NewReaderSource(bytes.NewReader(buf.Bytes())))
		require.NoError(t, err)
		require.Equal(t, h.FileSourceID, got.FileSourceID)
		require.Equal(t, h.ProjectID, got.ProjectID)
		require.Equal(t, h.VersionMajor, got.VersionMajor)
		require.Equal(t, h.VersionMinor, got.VersionMinor)
		require.Equal(t, h.SystemIDString(), got.SystemIDString())
		require.Equal(t, h.GeneratingSoftwareString(), got.GeneratingSoftwareString())
		require.Equal(t, h.PointDataFormatID, got.PointDataFormatID)
		require.Equal(t, h.PointRecordLength, got.PointRecordLength)
		require.Equal(t, h.XScaleFactor, got.XScaleFactor)
		require.Equal(t, h.MaxX, got.MaxX)
		require.Equal(t, h.MinZ, got.MinZ)
		require.Equal(t, h.NumberOfPointRecords, got.NumberOfPointRecords)
		if v[1] >= 4 {
			require.Equal(t, h.NumberOfPointsByReturn, got.NumberOfPointsByReturn)
		}
	}
}

func TestReadHeaderRejectsBadSignature(t *testing.T) {
	raw := make([]byte, 227)
	copy(raw, "XXXX")
	_, err := ReadHeader(bytestream.NewReaderSource(bytes.NewReader(raw)))
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, MalformedHeader, lerr.Kind)
}

func TestHeaderTailBytesPreservedForOversizedHeaderSize(t *testing.T) {
	h := sampleHeader(1, 2)
	h.HeaderSize += 4
	h.HeaderTailBytes = []byte{1, 2, 3, 4}
	buf := &bytes.Buffer{}
	require.NoError(t, h.WriteHeader(bytestream.NewWriterSink(buf)))

	got, err := ReadHeader(bytestream.NewReaderSource(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	require.Equal(t, h.HeaderTailBytes, got.HeaderTailBytes)
}
