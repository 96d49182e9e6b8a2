package lidario

// This file implements the public point item value types (spec §3/§4.4):
// typed accessors over the bit-packed fields every point format shares,
// and a PointRecordN struct per canonical point_data_format that
// marshals to and from the raw byte layout internal/itemcodec and
// internal/pointcodec operate on directly.

// PointBitField is the packed return-number/scan-direction byte shared
// by point formats 0-5 (POINT10's byte at offset 14).
type PointBitField byte

func (b PointBitField) ReturnNumber() uint8        { return uint8(b) & 0x7 }
func (b PointBitField) NumberOfReturns() uint8      { return (uint8(b) >> 3) & 0x7 }
func (b PointBitField) ScanDirectionFlag() bool     { return uint8(b)&0x40 != 0 }
func (b PointBitField) EdgeOfFlightLineFlag() bool  { return uint8(b)&0x80 != 0 }

func NewPointBitField(returnNumber, numberOfReturns uint8, scanDir, edge bool) PointBitField {
	v := (returnNumber & 0x7) | ((numberOfReturns & 0x7) << 3)
	if scanDir {
		v |= 0x40
	}
	if edge {
		v |= 0x80
	}
	return PointBitField(v)
}

// ClassificationBitField is the packed classification byte of formats
// 0-5 (offset 15): 5 bits of class, plus synthetic/key-point/withheld
// flags.
type ClassificationBitField byte

func (b ClassificationBitField) Classification() uint8 { return uint8(b) & 0x1f }
func (b ClassificationBitField) Synthetic() bool        { return uint8(b)&0x20 != 0 }
func (b ClassificationBitField) KeyPoint() bool         { return uint8(b)&0x40 != 0 }
func (b ClassificationBitField) Withheld() bool         { return uint8(b)&0x80 != 0 }

func NewClassificationBitField(class uint8, synthetic, keyPoint, withheld bool) ClassificationBitField {
	v := class & 0x1f
	if synthetic {
		v |= 0x20
	}
	if keyPoint {
		v |= 0x40
	}
	if withheld {
		v |= 0x80
	}
	return ClassificationBitField(v)
}

// ExtendedReturnsByte is POINT14's byte at offset 14: 4 bits of return
// number, 4 bits of number of returns (formats 6-10 widen both to a
// 0-15 range, unlike the legacy 3-bit fields).
type ExtendedReturnsByte byte

func (b ExtendedReturnsByte) ReturnNumber() uint8    { return uint8(b) & 0xf }
func (b ExtendedReturnsByte) NumberOfReturns() uint8 { return (uint8(b) >> 4) & 0xf }

func NewExtendedReturnsByte(returnNumber, numberOfReturns uint8) ExtendedReturnsByte {
	return ExtendedReturnsByte((returnNumber & 0xf) | ((numberOfReturns & 0xf) << 4))
}

// ExtendedFlagsByte is POINT14's byte at offset 15: classification
// flags in the low nibble, scanner channel/direction/edge in the high
// nibble.
type ExtendedFlagsByte byte

func (b ExtendedFlagsByte) Synthetic() bool       { return uint8(b)&0x1 != 0 }
func (b ExtendedFlagsByte) KeyPoint() bool        { return uint8(b)&0x2 != 0 }
func (b ExtendedFlagsByte) Withheld() bool        { return uint8(b)&0x4 != 0 }
func (b ExtendedFlagsByte) Overlap() bool         { return uint8(b)&0x8 != 0 }
func (b ExtendedFlagsByte) ScannerChannel() uint8 { return (uint8(b) >> 4) & 0x3 }
func (b ExtendedFlagsByte) ScanDirectionFlag() bool    { return uint8(b)&0x40 != 0 }
func (b ExtendedFlagsByte) EdgeOfFlightLineFlag() bool { return uint8(b)&0x80 != 0 }

func NewExtendedFlagsByte(synthetic, keyPoint, withheld, overlap bool, channel uint8, scanDir, edge bool) ExtendedFlagsByte {
	v := uint8(0)
	if synthetic {
		v |= 0x1
	}
	if keyPoint {
		v |= 0x2
	}
	if withheld {
		v |= 0x4
	}
	if overlap {
		v |= 0x8
	}
	v |= (channel & 0x3) << 4
	if scanDir {
		v |= 0x40
	}
	if edge {
		v |= 0x80
	}
	return ExtendedFlagsByte(v)
}

// RgbData is the RGB12 item's three 16-bit channels.
type RgbData struct {
	Red, Green, Blue uint16
}

// NirData is RGBNIR14's fourth channel.
type NirData struct {
	NIR uint16
}

// WaveformPacket is the WAVEPACKET13 item.
type WaveformPacket struct {
	DescriptorIndex uint8
	ByteOffset      uint64
	PacketSize      uint32
	ReturnLocation  float32
	Xt, Yt, Zt      float32
}

// point10Base holds the fields every legacy (format 0-5) record shares.
type point10Base struct {
	X, Y, Z       int32
	Intensity     uint16
	Bits          PointBitField
	Classification ClassificationBitField
	ScanAngleRank int8
	UserData      uint8
	PointSourceID uint16
}

const point10Size = 20

func (p *point10Base) marshal(buf []byte) {
	putI32(buf, 0, p.X)
	putI32(buf, 4, p.Y)
	putI32(buf, 8, p.Z)
	putU16(buf, 12, p.Intensity)
	buf[14] = byte(p.Bits)
	buf[15] = byte(p.Classification)
	buf[16] = byte(p.ScanAngleRank)
	buf[17] = p.UserData
	putU16(buf, 18, p.PointSourceID)
}

func (p *point10Base) unmarshal(buf []byte) {
	p.X = getI32(buf, 0)
	p.Y = getI32(buf, 4)
	p.Z = getI32(buf, 8)
	p.Intensity = getU16(buf, 12)
	p.Bits = PointBitField(buf[14])
	p.Classification = ClassificationBitField(buf[15])
	p.ScanAngleRank = int8(buf[16])
	p.UserData = buf[17]
	p.PointSourceID = getU16(buf, 18)
}

// PointRecord0 is point_data_format 0: the base legacy fields only.
type PointRecord0 struct {
	point10Base
}

func (p *PointRecord0) Size() int { return point10Size }

func (p *PointRecord0) Marshal(buf []byte) { p.point10Base.marshal(buf) }

func (p *PointRecord0) Unmarshal(buf []byte) { p.point10Base.unmarshal(buf) }

// PointRecord1 is format 1: PointRecord0 plus GPS time.
type PointRecord1 struct {
	PointRecord0
	GPSTime float64
}

func (p *PointRecord1) Size() int { return point10Size + 8 }

func (p *PointRecord1) Marshal(buf []byte) {
	p.point10Base.marshal(buf)
	putF64(buf, point10Size, p.GPSTime)
}

func (p *PointRecord1) Unmarshal(buf []byte) {
	p.point10Base.unmarshal(buf)
	p.GPSTime = getF64(buf, point10Size)
}

// PointRecord2 is format 2: PointRecord0 plus RGB.
type PointRecord2 struct {
	PointRecord0
	RGB RgbData
}

func (p *PointRecord2) Size() int { return point10Size + 6 }

func (p *PointRecord2) Marshal(buf []byte) {
	p.point10Base.marshal(buf)
	marshalRGB(buf, point10Size, p.RGB)
}

func (p *PointRecord2) Unmarshal(buf []byte) {
	p.point10Base.unmarshal(buf)
	p.RGB = unmarshalRGB(buf, point10Size)
}

// PointRecord3 is format 3: PointRecord0 plus GPS time and RGB.
type PointRecord3 struct {
	PointRecord0
	GPSTime float64
	RGB     RgbData
}

func (p *PointRecord3) Size() int { return point10Size + 8 + 6 }

func (p *PointRecord3) Marshal(buf []byte) {
	p.point10Base.marshal(buf)
	putF64(buf, point10Size, p.GPSTime)
	marshalRGB(buf, point10Size+8, p.RGB)
}

func (p *PointRecord3) Unmarshal(buf []byte) {
	p.point10Base.unmarshal(buf)
	p.GPSTime = getF64(buf, point10Size)
	p.RGB = unmarshalRGB(buf, point10Size+8)
}

func marshalRGB(buf []byte, off int, rgb RgbData) {
	putU16(buf, off, rgb.Red)
	putU16(buf, off+2, rgb.Green)
	putU16(buf, off+4, rgb.Blue)
}

func unmarshalRGB(buf []byte, off int) RgbData {
	return RgbData{Red: getU16(buf, off), Green: getU16(buf, off+2), Blue: getU16(buf, off+4)}
}

func marshalNIR(buf []byte, off int, nir NirData) { putU16(buf, off, nir.NIR) }

func unmarshalNIR(buf []byte, off int) NirData { return NirData{NIR: getU16(buf, off)} }

func marshalWavePacket(buf []byte, off int, w WaveformPacket) {
	buf[off] = w.DescriptorIndex
	putU64(buf, off+1, w.ByteOffset)
	putU32(buf, off+9, w.PacketSize)
	putU32(buf, off+13, float32bits(w.ReturnLocation))
	putU32(buf, off+17, float32bits(w.Xt))
	putU32(buf, off+21, float32bits(w.Yt))
	putU32(buf, off+25, float32bits(w.Zt))
}

func unmarshalWavePacket(buf []byte, off int) WaveformPacket {
	return WaveformPacket{
		DescriptorIndex: buf[off],
		ByteOffset:      getU64(buf, off+1),
		PacketSize:      getU32(buf, off+9),
		ReturnLocation:  float32frombits(getU32(buf, off+13)),
		Xt:              float32frombits(getU32(buf, off+17)),
		Yt:              float32frombits(getU32(buf, off+21)),
		Zt:              float32frombits(getU32(buf, off+25)),
	}
}

// point14Base holds the fields every extended (format 6-10) record
// shares.
type point14Base struct {
	X, Y, Z       int32
	Intensity     uint16
	Returns       ExtendedReturnsByte
	Flags         ExtendedFlagsByte
	Classification uint8
	UserData      uint8
	ScanAngle     int16 // 0.006-degree units, unlike the legacy int8 rank
	PointSourceID uint16
	GPSTime       float64
}

const point14Size = 30

func (p *point14Base) marshal(buf []byte) {
	putI32(buf, 0, p.X)
	putI32(buf, 4, p.Y)
	putI32(buf, 8, p.Z)
	putU16(buf, 12, p.Intensity)
	buf[14] = byte(p.Returns)
	buf[15] = byte(p.Flags)
	buf[16] = p.Classification
	buf[17] = p.UserData
	putI16(buf, 18, p.ScanAngle)
	putU16(buf, 20, p.PointSourceID)
	putF64(buf, 22, p.GPSTime)
}

func (p *point14Base) unmarshal(buf []byte) {
	p.X = getI32(buf, 0)
	p.Y = getI32(buf, 4)
	p.Z = getI32(buf, 8)
	p.Intensity = getU16(buf, 12)
	p.Returns = ExtendedReturnsByte(buf[14])
	p.Flags = ExtendedFlagsByte(buf[15])
	p.Classification = buf[16]
	p.UserData = buf[17]
	p.ScanAngle = getI16(buf, 18)
	p.PointSourceID = getU16(buf, 20)
	p.GPSTime = getF64(buf, 22)
}

// PointRecord6 is point_data_format 6: the base extended fields only.
type PointRecord6 struct {
	point14Base
}

func (p *PointRecord6) Size() int { return point14Size }

func (p *PointRecord6) Marshal(buf []byte) { p.point14Base.marshal(buf) }

func (p *PointRecord6) Unmarshal(buf []byte) { p.point14Base.unmarshal(buf) }

// PointRecord7 is format 7: PointRecord6 plus RGB.
type PointRecord7 struct {
	PointRecord6
	RGB RgbData
}

func (p *PointRecord7) Size() int { return point14Size + 6 }

func (p *PointRecord7) Marshal(buf []byte) {
	p.point14Base.marshal(buf)
	marshalRGB(buf, point14Size, p.RGB)
}

func (p *PointRecord7) Unmarshal(buf []byte) {
	p.point14Base.unmarshal(buf)
	p.RGB = unmarshalRGB(buf, point14Size)
}

// PointRecord8 is format 8: PointRecord6 plus RGB and near-infrared.
type PointRecord8 struct {
	PointRecord6
	RGB RgbData
	NIR NirData
}

func (p *PointRecord8) Size() int { return point14Size + 8 }

func (p *PointRecord8) Marshal(buf []byte) {
	p.point14Base.marshal(buf)
	marshalRGB(buf, point14Size, p.RGB)
	marshalNIR(buf, point14Size+6, p.NIR)
}

func (p *PointRecord8) Unmarshal(buf []byte) {
	p.point14Base.unmarshal(buf)
	p.RGB = unmarshalRGB(buf, point14Size)
	p.NIR = unmarshalNIR(buf, point14Size+6)
}

// PointRecord9 is format 9: PointRecord6 plus a waveform packet.
type PointRecord9 struct {
	PointRecord6
	Wave WaveformPacket
}

func (p *PointRecord9) Size() int { return point14Size + 29 }

func (p *PointRecord9) Marshal(buf []byte) {
	p.point14Base.marshal(buf)
	marshalWavePacket(buf, point14Size, p.Wave)
}

func (p *PointRecord9) Unmarshal(buf []byte) {
	p.point14Base.unmarshal(buf)
	p.Wave = unmarshalWavePacket(buf, point14Size)
}

// PointRecord10 is format 10: PointRecord6 plus RGB, near-infrared and a
// waveform packet.
type PointRecord10 struct {
	PointRecord6
	RGB  RgbData
	NIR  NirData
	Wave WaveformPacket
}

func (p *PointRecord10) Size() int { return point14Size + 8 + 29 }

func (p *PointRecord10) Marshal(buf []byte) {
	p.point14Base.marshal(buf)
	marshalRGB(buf, point14Size, p.RGB)
	marshalNIR(buf, point14Size+6, p.NIR)
	marshalWavePacket(buf, point14Size+8, p.Wave)
}

func (p *PointRecord10) Unmarshal(buf []byte) {
	p.point14Base.unmarshal(buf)
	p.RGB = unmarshalRGB(buf, point14Size)
	p.NIR = unmarshalNIR(buf, point14Size+6)
	p.Wave = unmarshalWavePacket(buf, point14Size+8)
}

// LasPointer is the common interface every PointRecordN satisfies,
// letting LasFile/LazFile move raw point bytes without a format-keyed
// type switch on every call.
type LasPointer interface {
	Size() int
	Marshal(buf []byte)
	Unmarshal(buf []byte)
}

// NewPointRecord allocates the LasPointer matching pointDataFormat (0-3
// or 6-10), or nil for any other format; formats 4 and 5 have no record
// type in this package.
func NewPointRecord(pointDataFormat uint8) LasPointer {
	switch pointDataFormat {
	case 0:
		return &PointRecord0{}
	case 1:
		return &PointRecord1{}
	case 2:
		return &PointRecord2{}
	case 3:
		return &PointRecord3{}
	case 6:
		return &PointRecord6{}
	case 7:
		return &PointRecord7{}
	case 8:
		return &PointRecord8{}
	case 9:
		return &PointRecord9{}
	case 10:
		return &PointRecord10{}
	default:
		return nil
	}
}

// itemsForFormat returns the canonical item list (spec §4.6's
// is_standard table) for a recognised point_data_format.
func itemsForFormat(pointDataFormat uint8) []SchemaItem {
	for _, c := range canonicalSchemas {
		if c.format == pointDataFormat {
			items := make([]SchemaItem, len(c.items))
			for i, k := range c.items {
				items[i] = SchemaItem{Type: uint16(k), Size: uint16(k.Size())}
			}
			return items
		}
	}
	return nil
}
