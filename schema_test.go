package lidario

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jblindsay/lasz/internal/itemcodec"
)

func TestSchemaMarshalUnmarshalRoundTrip(t *testing.T) {
	s := &Schema{
		Compressor:      CompressorPointwiseChunked,
		Coder:           CoderArithmetic,
		VersionMajor:    3,
		VersionMinor:    4,
		VersionRevision: 0,
		ChunkSize:       5000,
		Items: []SchemaItem{
			{Type: uint16(itemcodec.Point10), Size: 20, Version: 2},
			{Type: uint16(itemcodec.GpsTime11), Size: 8, Version: 2},
		},
	}
	raw := s.Marshal()
	require.Equal(t, s.PayloadSize(), len(raw))

	got, err := UnmarshalSchema(raw)
	require.NoError(t, err)
	require.Equal(t, s.Compressor, got.Compressor)
	require.Equal(t, s.ChunkSize, got.ChunkSize)
	require.Equal(t, s.Items, got.Items)
}

func TestUnmarshalSchemaRejectsShortPayload(t *testing.T) {
	_, err := UnmarshalSchema([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestIsStandardMatchesCanonicalFormats(t *testing.T) {
	items := []SchemaItem{{Type: uint16(itemcodec.Point14), Size: 30}, {Type: uint16(itemcodec.Rgb12), Size: 6}}
	require.True(t, IsStandard(items, 7, 36))
	require.False(t, IsStandard(items, 7, 99))
	require.False(t, IsStandard(items, 8, 36))
}

func TestResolveItemsCanonicalFormat(t *testing.T) {
	h := &Header{PointDataFormatID: 1, PointRecordLength: 28}
	items, schema, err := ResolveItems(h, nil)
	require.NoError(t, err)
	require.Nil(t, schema)
	require.Len(t, items, 2)
}

func TestResolveItemsAppendsExtraBytes(t *testing.T) {
	h := &Header{PointDataFormatID: 0, PointRecordLength: 25} // 20 canonical + 5 extra
	items, schema, err := ResolveItems(h, nil)
	require.NoError(t, err)
	require.Nil(t, schema)
	require.Len(t, items, 2)
	last := items[len(items)-1]
	require.Equal(t, uint16(itemcodec.Byte), last.Type)
	require.Equal(t, uint16(5), last.Size)
}

func TestResolveItemsRejectsTooShortRecord(t *testing.T) {
	h := &Header{PointDataFormatID: 0, PointRecordLength: 10}
	_, _, err := ResolveItems(h, nil)
	require.Error(t, err)
}

func TestResolveItemsPrefersLASzipVLR(t *testing.T) {
	s := &Schema{
		Compressor: CompressorLayeredChunked,
		ChunkSize:  1000,
		Items:      []SchemaItem{{Type: uint16(itemcodec.Point14), Size: 30, Version: 3}},
	}
	v := VLR{RecordID: laszipRecordID, Payload: s.Marshal()}
	v.setUserID(laszipUserID)
	h := &Header{PointDataFormatID: 99, PointRecordLength: 999} // would fail canonical lookup
	items, schema, err := ResolveItems(h, []VLR{v})
	require.NoError(t, err)
	require.NotNil(t, schema)
	require.Len(t, items, 1)
}

func TestDefaultVersionSelectsPoint14LayeredPath(t *testing.T) {
	require.Equal(t, 3, DefaultVersion(itemcodec.Point14, CompressorLayeredChunked, 1, 4))
	require.Equal(t, 3, DefaultVersion(itemcodec.RgbNir14, CompressorLayeredChunked, 1, 4))
	require.Equal(t, 1, DefaultVersion(itemcodec.Point10, CompressorPointwiseChunked, 1, 2))
	require.Equal(t, 2, DefaultVersion(itemcodec.Point10, CompressorPointwiseChunked, 1, 4))
}
