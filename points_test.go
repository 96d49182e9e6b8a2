package lidario

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPointBitFieldAccessors(t *testing.T) {
	b := NewPointBitField(3, 5, true, true)
	require.Equal(t, uint8(3), b.ReturnNumber())
	require.Equal(t, uint8(5), b.NumberOfReturns())
	require.True(t, b.ScanDirectionFlag())
	require.True(t, b.EdgeOfFlightLineFlag())
}

func TestClassificationBitFieldAccessors(t *testing.T) {
	c := NewClassificationBitField(18, true, false, true)
	require.Equal(t, uint8(18), c.Classification())
	require.True(t, c.Synthetic())
	require.False(t, c.KeyPoint())
	require.True(t, c.Withheld())
}

func TestExtendedReturnsAndFlagsAccessors(t *testing.T) {
	r := NewExtendedReturnsByte(9, 12)
	require.Equal(t, uint8(9), r.ReturnNumber())
	require.Equal(t, uint8(12), r.NumberOfReturns())

	f := NewExtendedFlagsByte(true, false, true, false, 2, true, false)
	require.True(t, f.Synthetic())
	require.False(t, f.KeyPoint())
	require.True(t, f.Withheld())
	require.False(t, f.Overlap())
	require.Equal(t, uint8(2), f.ScannerChannel())
	require.True(t, f.ScanDirectionFlag())
	require.False(t, f.EdgeOfFlightLineFlag())
}

func TestPointRecordsMarshalUnmarshalRoundTrip(t *testing.T) {
	cases := []LasPointer{
		&PointRecord0{point10Base: point10Base{X: 1, Y: 2, Z: 3, Intensity: 40,
			Bits: NewPointBitField(1, 2, true, false),
			Classification: NewClassificationBitField(5, false, true, false),
			ScanAngleRank: -5, UserData: 9, PointSourceID: 77}},
		&PointRecord1{PointRecord0: PointRecord0{point10Base: point10Base{X: 1, Y: 2, Z: 3}}, GPSTime: 123.456},
		&PointRecord2{PointRecord0: PointRecord0{point10Base: point10Base{X: 1, Y: 2, Z: 3}}, RGB: RgbData{Red: 1, Green: 2, Blue: 3}},
		&PointRecord3{PointRecord0: PointRecord0{point10Base: point10Base{X: 1, Y: 2, Z: 3}}, GPSTime: 9.9, RGB: RgbData{Red: 4, Green: 5, Blue: 6}},
		&PointRecord6{point14Base: point14Base{X: 10, Y: 20, Z: 30, ScanAngle: -100, GPSTime: 55.5}},
		&PointRecord7{PointRecord6: PointRecord6{point14Base: point14Base{X: 1}}, RGB: RgbData{Red: 7}},
		&PointRecord8{PointRecord6: PointRecord6{point14Base: point14Base{X: 1}}, RGB: RgbData{Green: 8}, NIR: NirData{NIR: 500}},
		&PointRecord9{PointRecord6: PointRecord6{point14Base: point14Base{X: 1}}, Wave: WaveformPacket{DescriptorIndex: 3, ByteOffset: 99, PacketSize: 12, ReturnLocation: 1.5, Xt: 2.5, Yt: 3.5, Zt: 4.5}},
		&PointRecord10{PointRecord6: PointRecord6{point14Base: point14Base{X: 1}}, RGB: RgbData{Blue: 1}, NIR: NirData{NIR: 2}, Wave: WaveformPacket{DescriptorIndex: 1}},
	}
	for _, p := range cases {
		buf := make([]byte, p.Size())
		p.Marshal(buf)
		out := NewPointRecord(formatIDFor(p))
		out.Unmarshal(buf)
		require.Equal(t, p, out)
	}
}

// formatIDFor returns the point_data_format this concrete LasPointer
// implements, for test round-tripping through NewPointRecord.
func formatIDFor(p LasPointer) uint8 {
	switch p.(type) {
	case *PointRecord0:
		return 0
	case *PointRecord1:
		return 1
	case *PointRecord2:
		return 2
	case *PointRecord3:
		return 3
	case *PointRecord6:
		return 6
	case *PointRecord7:
		return 7
	case *PointRecord8:
		return 8
	case *PointRecord9:
		return 9
	case *PointRecord10:
		return 10
	default:
		return 255
	}
}

func TestNewPointRecordUnknownFormat(t *testing.T) {
	require.Nil(t, NewPointRecord(200))
}

func TestItemsForFormatUnknown(t *testing.T) {
	require.Nil(t, itemsForFormat(200))
}
