package lidario

import (
	"bytes"

	"github.com/jblindsay/lasz/internal/bytestream"
	"github.com/jblindsay/lasz/internal/itemcodec"
)

// Compressor identifies the LASzip VLR's compressor field (spec §3).
type Compressor uint16

const (
	CompressorNone            Compressor = 0
	CompressorPointwise       Compressor = 1
	CompressorPointwiseChunked Compressor = 2
	CompressorLayeredChunked  Compressor = 3
)

// Coder identifies the LASzip VLR's coder field; arithmetic is the only
// one this module (or real LASzip) implements.
type Coder uint16

const CoderArithmetic Coder = 0

// VariableChunkSize is the sentinel chunk_size value meaning "variable
// chunking, caller demarcates chunk boundaries explicitly" (spec §3).
const VariableChunkSize int32 = -1 // 0xFFFFFFFF as i32

// SchemaItem mirrors the LASzip VLR's per-item triple.
type SchemaItem struct {
	Type    uint16 // itemcodec.Kind, widened for the wire
	Size    uint16
	Version uint16
}

// Schema is the parsed LASzip VLR payload (C6): compressor/coder
// selection, chunk size, and the ordered item list describing one point
// record.
type Schema struct {
	Compressor       Compressor
	Coder            Coder
	VersionMajor     uint8
	VersionMinor     uint8
	VersionRevision  uint16
	Options          uint32
	ChunkSize        int32
	NumSpecialEVLRs  int64
	OffsetSpecialEVLRs int64
	Items            []SchemaItem
}

// PayloadSize returns the on-disk size of the serialised schema, per
// spec §3: "34 + 6*num_items".
func (s *Schema) PayloadSize() int { return 34 + 6*len(s.Items) }

// Marshal serialises the schema payload (little-endian, spec §3).
func (s *Schema) Marshal() []byte {
	buf := &bytes.Buffer{}
	snk := bytestream.NewWriterSink(buf)
	_ = snk.WriteU16(uint16(s.Compressor))
	_ = snk.WriteU16(uint16(s.Coder))
	_ = snk.WriteByte(s.VersionMajor)
	_ = snk.WriteByte(s.VersionMinor)
	_ = snk.WriteU16(s.VersionRevision)
	_ = snk.WriteU32(s.Options)
	_ = snk.WriteI32(s.ChunkSize)
	_ = snk.WriteI64(s.NumSpecialEVLRs)
	_ = snk.WriteI64(s.OffsetSpecialEVLRs)
	_ = snk.WriteU16(uint16(len(s.Items)))
	for _, it := range s.Items {
		_ = snk.WriteU16(it.Type)
		_ = snk.WriteU16(it.Size)
		_ = snk.WriteU16(it.Version)
	}
	return buf.Bytes()
}

// UnmarshalSchema parses a LASzip VLR payload.
func UnmarshalSchema(payload []byte) (*Schema, error) {
	if len(payload) < 34 {
		return nil, newErr(SchemaMismatch, "LASzip VLR", -1, nil)
	}
	src := bytestream.NewReaderSource(bytes.NewReader(payload))
	s := &Schema{}
	comp, _ := src.ReadU16()
	s.Compressor = Compressor(comp)
	coder, _ := src.ReadU16()
	s.Coder = Coder(coder)
	s.VersionMajor, _ = src.ReadByte()
	s.VersionMinor, _ = src.ReadByte()
	s.VersionRevision, _ = src.ReadU16()
	s.Options, _ = src.ReadU32()
	s.ChunkSize, _ = src.ReadI32()
	s.NumSpecialEVLRs, _ = src.ReadI64()
	s.OffsetSpecialEVLRs, _ = src.ReadI64()
	n, err := src.ReadU16()
	if err != nil {
		return nil, newErr(SchemaMismatch, "LASzip VLR", -1, err)
	}
	if 34+6*int(n) != len(payload) {
		return nil, newErr(SchemaMismatch, "LASzip VLR", -1, nil)
	}
	s.Items = make([]SchemaItem, n)
	for i := range s.Items {
		typ, _ := src.ReadU16()
		sz, _ := src.ReadU16()
		ver, err := src.ReadU16()
		if err != nil {
			return nil, newErr(SchemaMismatch, "LASzip VLR", -1, err)
		}
		s.Items[i] = SchemaItem{Type: typ, Size: sz, Version: ver}
	}
	return s, nil
}

// ResolveItems determines the item list for a LAS/LAZ file: the schema
// carried by a LASzip VLR if present, else the canonical layout for
// header.PointDataFormatID (spec §4.6 "is_standard"), with a trailing
// BYTE(n) item appended when PointRecordLength declares more bytes than
// the canonical items account for (LAS "extra bytes").
func ResolveItems(h *Header, vlrs []VLR) ([]SchemaItem, *Schema, error) {
	for _, v := range vlrs {
		if v.UserIDString() == laszipUserID && v.RecordID == laszipRecordID {
			s, err := UnmarshalSchema(v.Payload)
			if err != nil {
				return nil, nil, err
			}
			return s.Items, s, nil
		}
	}
	items := itemsForFormat(h.PointDataFormatID)
	if items == nil {
		return nil, nil, newErr(SchemaMismatch, "point format", -1, nil)
	}
	canonical := 0
	for _, it := range items {
		canonical += int(it.Size)
	}
	extra := int(h.PointRecordLength) - canonical
	if extra < 0 {
		return nil, nil, newErr(SchemaMismatch, "point record length", -1, nil)
	}
	if extra > 0 {
		items = append(items, SchemaItem{Type: uint16(itemcodec.Byte), Size: uint16(extra)})
	}
	return items, nil, nil
}

// kindFor maps a wire item Type to its itemcodec.Kind, validating it is
// one of the recognised values.
func kindFor(t uint16) (itemcodec.Kind, bool) {
	k := itemcodec.Kind(t)
	switch k {
	case itemcodec.Point10, itemcodec.GpsTime11, itemcodec.Rgb12,
		itemcodec.WavePacket13, itemcodec.Byte, itemcodec.Point14, itemcodec.RgbNir14:
		return k, true
	default:
		return 0, false
	}
}

// canonicalSchema describes one of the small fixed set of standard
// item lists keyed by point_data_format (spec §4.6 "is_standard").
type canonicalSchema struct {
	format        uint8
	recordLength  uint16
	items         []itemcodec.Kind
}

var canonicalSchemas = []canonicalSchema{
	{0, 20, []itemcodec.Kind{itemcodec.Point10}},
	{1, 28, []itemcodec.Kind{itemcodec.Point10, itemcodec.GpsTime11}},
	{2, 26, []itemcodec.Kind{itemcodec.Point10, itemcodec.Rgb12}},
	{3, 34, []itemcodec.Kind{itemcodec.Point10, itemcodec.GpsTime11, itemcodec.Rgb12}},
	{6, 30, []itemcodec.Kind{itemcodec.Point14}},
	{7, 36, []itemcodec.Kind{itemcodec.Point14, itemcodec.Rgb12}},
	{8, 38, []itemcodec.Kind{itemcodec.Point14, itemcodec.RgbNir14}},
	{9, 59, []itemcodec.Kind{itemcodec.Point14, itemcodec.WavePacket13}},
	{10, 67, []itemcodec.Kind{itemcodec.Point14, itemcodec.RgbNir14, itemcodec.WavePacket13}},
}

// IsStandard reports whether items matches one of the canonical schemas
// for format with the given total record length.
func IsStandard(items []SchemaItem, format uint8, recordLength uint16) bool {
	for _, c := range canonicalSchemas {
		if c.format != format || c.recordLength != recordLength {
			continue
		}
		if len(c.items) != len(items) {
			continue
		}
		match := true
		for i, k := range c.items {
			kind, ok := kindFor(items[i].Type)
			if !ok || kind != k {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// RequestVersion sets every item's version to v where v is supported by
// that item kind, else to the default version for compressor (spec
// §4.6 "request_version"); compressedMatrix lists, per kind, which
// versions NewCompressedWriter/NewLayeredWriter actually implement.
var compressedMatrix = map[itemcodec.Kind][]int{
	itemcodec.Point10:      {1, 2},
	itemcodec.GpsTime11:    {1, 2},
	itemcodec.Rgb12:        {1, 2, 3},
	itemcodec.WavePacket13: {1, 3},
	itemcodec.Byte:         {1, 2},
	itemcodec.Point14:      {3},
	itemcodec.RgbNir14:     {2, 3},
}

func supportsVersion(k itemcodec.Kind, v int) bool {
	for _, sv := range compressedMatrix[k] {
		if sv == v {
			return true
		}
	}
	return false
}

func (s *Schema) RequestVersion(v int) {
	for i := range s.Items {
		kind, ok := kindFor(s.Items[i].Type)
		if !ok {
			continue
		}
		if supportsVersion(kind, v) {
			s.Items[i].Version = uint16(v)
			continue
		}
		s.Items[i].Version = uint16(DefaultVersion(kind, s.Compressor, s.VersionMajor, s.VersionMinor))
	}
}

// DefaultVersion returns 1 for legacy combinations, 2 for point formats
// 0-5 under modern files, 3 for layered-chunked on point formats 6-10
// (spec §4.6 "default_version").
func DefaultVersion(kind itemcodec.Kind, compressor Compressor, lasMajor, lasMinor uint8) int {
	if kind == itemcodec.Point14 {
		return 3
	}
	if compressor == CompressorLayeredChunked {
		return 3
	}
	if lasMajor == 1 && lasMinor <= 2 {
		return 1
	}
	return 2
}
