package lidario

import (
	"github.com/google/uuid"

	"github.com/jblindsay/lasz/internal/bytestream"
)

// Header sizes by version, in bytes (spec §6 offsets table).
const (
	headerSizeV12 = 227
	headerSizeV13 = 235
	headerSizeV14 = 375
	headerSizeV15 = 393
)

// GlobalEncodingField is the header's 16-bit flag word (bit 0: GPS time
// type, bit 1-3: waveform data packet location, bit 4: synthetic return
// numbers, bit 5: WKT CRS).
type GlobalEncodingField struct {
	Value uint16
}

func (g GlobalEncodingField) GPSTimeIsStandard() bool { return g.Value&0x1 != 0 }

// Header is the fixed-layout LAS/LAZ header (C7). Every field is emitted
// in exact field order on write; version-conditional tail fields are
// zero when the version doesn't carry them.
type Header struct {
	FileSignature      [4]byte
	FileSourceID       uint16
	GlobalEncoding     GlobalEncodingField
	ProjectID          uuid.UUID
	VersionMajor       uint8
	VersionMinor       uint8
	SystemID           [32]byte
	GeneratingSoftware [32]byte
	CreationDayOfYear  uint16
	CreationYear       uint16
	HeaderSize         uint16
	OffsetToPointData  uint32
	NumberOfVLRs       uint32
	PointDataFormatID  uint8 // high bit cleared here; compression tracked separately
	Compressed         bool
	PointRecordLength  uint16

	LegacyNumberOfPointRecords    uint32
	LegacyNumberOfPointsByReturn  [5]uint32
	XScaleFactor, YScaleFactor, ZScaleFactor float64
	XOffset, YOffset, ZOffset                float64
	MaxX, MinX, MaxY, MinY, MaxZ, MinZ        float64

	// >= 1.3
	StartOfWaveformDataPacketRecord uint64

	// >= 1.4
	StartOfFirstEVLR                 uint64
	NumberOfEVLRs                    uint32
	NumberOfPointRecords              uint64
	NumberOfPointsByReturn            [15]uint64

	// >= 1.5 (open question: time_offset semantics inferred from layout,
	// kept opaque on round-trip per spec §9)
	MaxGPSTime, MinGPSTime float64
	TimeOffset             uint16

	// HeaderTailBytes carries any user-defined bytes between the
	// version-dictated minimum and HeaderSize, emitted verbatim.
	HeaderTailBytes []byte
}

// minHeaderSize returns the version-dictated minimum header size.
func minHeaderSize(major, minor byte) uint16 {
	switch {
	case major == 1 && minor >= 5:
		return headerSizeV15
	case major == 1 && minor == 4:
		return headerSizeV14
	case major == 1 && minor == 3:
		return headerSizeV13
	default:
		return headerSizeV12
	}
}

// guidToBytes packs id using the LAS/Microsoft mixed-endian GUID layout:
// the first three fields are little-endian, the last eight bytes are
// taken verbatim, unlike uuid.UUID's pure big-endian RFC 4122 layout.
func guidToBytes(id uuid.UUID) [16]byte {
	var b [16]byte
	b[0], b[1], b[2], b[3] = id[3], id[2], id[1], id[0]
	b[4], b[5] = id[5], id[4]
	b[6], b[7] = id[7], id[6]
	copy(b[8:], id[8:])
	return b
}

func guidFromBytes(b [16]byte) uuid.UUID {
	var id uuid.UUID
	id[0], id[1], id[2], id[3] = b[3], b[2], b[1], b[0]
	id[4], id[5] = b[5], b[4]
	id[6], id[7] = b[7], b[6]
	copy(id[8:], b[8:])
	return id
}

func putFixed(dst []byte, s string) {
	copy(dst, s)
}

func trimZeroes(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// WriteHeader emits h's fields in exact order (spec §4.7 "Write").
func (h *Header) WriteHeader(out bytestream.Sink) error {
	if err := out.WriteBytes(h.FileSignature[:]); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteU16(h.FileSourceID); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteU16(h.GlobalEncoding.Value); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	guid := guidToBytes(h.ProjectID)
	if err := out.WriteBytes(guid[:]); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteByte(h.VersionMajor); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteByte(h.VersionMinor); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteBytes(h.SystemID[:]); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteBytes(h.GeneratingSoftware[:]); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteU16(h.CreationDayOfYear); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteU16(h.CreationYear); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteU16(h.HeaderSize); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteU32(h.OffsetToPointData); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteU32(h.NumberOfVLRs); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	pdf := h.PointDataFormatID
	if h.Compressed {
		pdf |= 0x80
	}
	if err := out.WriteByte(pdf); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteU16(h.PointRecordLength); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	legacyCount := h.LegacyNumberOfPointRecords
	legacyByReturn := h.LegacyNumberOfPointsByReturn
	if h.PointDataFormatID >= 6 || (h.VersionMinor >= 4 && h.NumberOfPointRecords > 0xffffffff) {
		legacyCount = 0
		legacyByReturn = [5]uint32{}
	}
	if err := out.WriteU32(legacyCount); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	for _, v := range legacyByReturn {
		if err := out.WriteU32(v); err != nil {
			return newErr(IoError, "header", -1, err)
		}
	}
	for _, v := range []float64{h.XScaleFactor, h.YScaleFactor, h.ZScaleFactor,
		h.XOffset, h.YOffset, h.ZOffset,
		h.MaxX, h.MinX, h.MaxY, h.MinY, h.MaxZ, h.MinZ} {
		if err := out.WriteF64(v); err != nil {
			return newErr(IoError, "header", -1, err)
		}
	}

	writeTail := func() error {
		if len(h.HeaderTailBytes) > 0 {
			if err := out.WriteBytes(h.HeaderTailBytes); err != nil {
				return newErr(IoError, "header", -1, err)
			}
		}
		return nil
	}
	if h.VersionMinor < 3 {
		return writeTail()
	}
	if err := out.WriteU64(h.StartOfWaveformDataPacketRecord); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if h.VersionMinor < 4 {
		return writeTail()
	}
	if err := out.WriteU64(h.StartOfFirstEVLR); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteU32(h.NumberOfEVLRs); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteU64(h.NumberOfPointRecords); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	for _, v := range h.NumberOfPointsByReturn {
		if err := out.WriteU64(v); err != nil {
			return newErr(IoError, "header", -1, err)
		}
	}
	if h.VersionMinor < 5 {
		return writeTail()
	}
	if err := out.WriteF64(h.MaxGPSTime); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteF64(h.MinGPSTime); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	if err := out.WriteU16(h.TimeOffset); err != nil {
		return newErr(IoError, "header", -1, err)
	}
	return writeTail()
}

// ReadHeader parses a header from in (spec §4.7 "Read").
func ReadHeader(in bytestream.Source) (*Header, error) {
	h := &Header{}
	sig, err := in.ReadBytes(4)
	if err != nil {
		return nil, newErr(UnexpectedEOF, "header", 0, err)
	}
	copy(h.FileSignature[:], sig)
	if string(sig) != "LASF" {
		return nil, newErr(MalformedHeader, "header.file_signature", 0, nil)
	}
	if h.FileSourceID, err = in.ReadU16(); err != nil {
		return nil, newErr(UnexpectedEOF, "header", 4, err)
	}
	ge, err := in.ReadU16()
	if err != nil {
		return nil, newErr(UnexpectedEOF, "header", 6, err)
	}
	h.GlobalEncoding = GlobalEncodingField{Value: ge}
	guidBytes, err := in.ReadBytes(16)
	if err != nil {
		return nil, newErr(UnexpectedEOF, "header", 8, err)
	}
	var gb [16]byte
	copy(gb[:], guidBytes)
	h.ProjectID = guidFromBytes(gb)
	if h.VersionMajor, err = in.ReadByte(); err != nil {
		return nil, newErr(UnexpectedEOF, "header", 24, err)
	}
	if h.VersionMinor, err = in.ReadByte(); err != nil {
		return nil, newErr(UnexpectedEOF, "header", 25, err)
	}
	sysID, err := in.ReadBytes(32)
	if err != nil {
		return nil, newErr(UnexpectedEOF, "header", 26, err)
	}
	copy(h.SystemID[:], sysID)
	gen, err := in.ReadBytes(32)
	if err != nil {
		return nil, newErr(UnexpectedEOF, "header", 58, err)
	}
	copy(h.GeneratingSoftware[:], gen)
	if h.CreationDayOfYear, err = in.ReadU16(); err != nil {
		return nil, newErr(UnexpectedEOF, "header", 90, err)
	}
	if h.CreationYear, err = in.ReadU16(); err != nil {
		return nil, newErr(UnexpectedEOF, "header", 92, err)
	}
	if h.HeaderSize, err = in.ReadU16(); err != nil {
		return nil, newErr(UnexpectedEOF, "header", 94, err)
	}
	if h.OffsetToPointData, err = in.ReadU32(); err != nil {
		return nil, newErr(UnexpectedEOF, "header", 96, err)
	}
	if h.NumberOfVLRs, err = in.ReadU32(); err != nil {
		return nil, newErr(UnexpectedEOF, "header", 100, err)
	}
	pdf, err := in.ReadByte()
	if err != nil {
		return nil, newErr(UnexpectedEOF, "header", 104, err)
	}
	if pdf&0x40 != 0 {
		return nil, newErr(UnsupportedVersion, "header.point_data_format", 104, nil)
	}
	h.Compressed = pdf&0x80 != 0
	h.PointDataFormatID = pdf &^ 0x80
	if h.PointRecordLength, err = in.ReadU16(); err != nil {
		return nil, newErr(UnexpectedEOF, "header", 105, err)
	}
	if h.LegacyNumberOfPointRecords, err = in.ReadU32(); err != nil {
		return nil, newErr(UnexpectedEOF, "header", 107, err)
	}
	for i := range h.LegacyNumberOfPointsByReturn {
		if h.LegacyNumberOfPointsByReturn[i], err = in.ReadU32(); err != nil {
			return nil, newErr(UnexpectedEOF, "header", 111, err)
		}
	}
	floats := make([]*float64, 0, 12)
	floats = append(floats, &h.XScaleFactor, &h.YScaleFactor, &h.ZScaleFactor,
		&h.XOffset, &h.YOffset, &h.ZOffset,
		&h.MaxX, &h.MinX, &h.MaxY, &h.MinY, &h.MaxZ, &h.MinZ)
	for _, f := range floats {
		if *f, err = in.ReadF64(); err != nil {
			return nil, newErr(UnexpectedEOF, "header", 131, err)
		}
	}

	minSize := minHeaderSize(h.VersionMajor, h.VersionMinor)
	if h.HeaderSize < minSize {
		return nil, newErr(MalformedHeader, "header.header_size", 94, nil)
	}

	if h.VersionMinor >= 3 {
		if h.StartOfWaveformDataPacketRecord, err = in.ReadU64(); err != nil {
			return nil, newErr(UnexpectedEOF, "header", 227, err)
		}
	}
	if h.VersionMinor >= 4 {
		if h.StartOfFirstEVLR, err = in.ReadU64(); err != nil {
			return nil, newErr(UnexpectedEOF, "header", 235, err)
		}
		if h.NumberOfEVLRs, err = in.ReadU32(); err != nil {
			return nil, newErr(UnexpectedEOF, "header", 243, err)
		}
		if h.NumberOfPointRecords, err = in.ReadU64(); err != nil {
			return nil, newErr(UnexpectedEOF, "header", 247, err)
		}
		for i := range h.NumberOfPointsByReturn {
			if h.NumberOfPointsByReturn[i], err = in.ReadU64(); err != nil {
				return nil, newErr(UnexpectedEOF, "header", 255, err)
			}
		}
	} else {
		h.NumberOfPointRecords = uint64(h.LegacyNumberOfPointRecords)
	}
	if h.VersionMinor >= 5 {
		if h.MaxGPSTime, err = in.ReadF64(); err != nil {
			return nil, newErr(UnexpectedEOF, "header", 375, err)
		}
		if h.MinGPSTime, err = in.ReadF64(); err != nil {
			return nil, newErr(UnexpectedEOF, "header", 383, err)
		}
		if h.TimeOffset, err = in.ReadU16(); err != nil {
			return nil, newErr(UnexpectedEOF, "header", 391, err)
		}
	}

	tailLen := int64(h.HeaderSize) - int64(minSize)
	if tailLen > 0 {
		tail, err := in.ReadBytes(int(tailLen))
		if err != nil {
			return nil, newErr(UnexpectedEOF, "header.tail", int64(minSize), err)
		}
		h.HeaderTailBytes = tail
	}
	return h, nil
}

// SystemIDString and GeneratingSoftwareString trim the NUL padding LAS
// uses for its fixed-width string fields.
func (h *Header) SystemIDString() string           { return trimZeroes(h.SystemID[:]) }
func (h *Header) GeneratingSoftwareString() string  { return trimZeroes(h.GeneratingSoftware[:]) }

// SetSystemID and SetGeneratingSoftware NUL-pad s into the fixed field,
// truncating if s is longer than 32 bytes.
func (h *Header) SetSystemID(s string) {
	h.SystemID = [32]byte{}
	putFixed(h.SystemID[:], s)
}

func (h *Header) SetGeneratingSoftware(s string) {
	h.GeneratingSoftware = [32]byte{}
	putFixed(h.GeneratingSoftware[:], s)
}
