package lidario

import (
	"github.com/klauspost/compress/zstd"

	"github.com/jblindsay/lasz/internal/bytestream"
)

// LASzip VLR identity (spec §3 "Schema VLR").
const (
	laszipUserID   = "laszip encoded"
	laszipRecordID = 22204
)

// LAStiling and LASoriginal VLR identity (spec §6).
const (
	lastoolsUserID     = "LAStools"
	laStilingRecordID  = 10
	laSoriginalRecordID = 20
)

// VLR is a Variable Length Record: 54-byte header plus a payload of
// RecordLengthAfterHeader bytes (spec §3, §6).
type VLR struct {
	Reserved                uint16
	UserID                  [16]byte
	RecordID                uint16
	RecordLengthAfterHeader uint16
	Description             [32]byte
	Payload                 []byte
}

func (v *VLR) UserIDString() string { return trimZeroes(v.UserID[:]) }

func (v *VLR) setUserID(s string) { v.UserID = [16]byte{}; putFixed(v.UserID[:], s) }

// EVLR is the extended form used after the point block: identical
// layout but with a 64-bit payload length and a 60-byte header.
type EVLR struct {
	Reserved                uint16
	UserID                  [16]byte
	RecordID                uint16
	RecordLengthAfterHeader uint64
	Description             [32]byte
	Payload                 []byte
}

func (e *EVLR) UserIDString() string { return trimZeroes(e.UserID[:]) }

func (e *EVLR) setUserID(s string) { e.UserID = [16]byte{}; putFixed(e.UserID[:], s) }

const vlrHeaderSize = 54
const evlrHeaderSize = 60

func writeVLR(out bytestream.Sink, v *VLR) error {
	if err := out.WriteU16(v.Reserved); err != nil {
		return err
	}
	if err := out.WriteBytes(v.UserID[:]); err != nil {
		return err
	}
	if err := out.WriteU16(v.RecordID); err != nil {
		return err
	}
	if err := out.WriteU16(uint16(len(v.Payload))); err != nil {
		return err
	}
	if err := out.WriteBytes(v.Description[:]); err != nil {
		return err
	}
	return out.WriteBytes(v.Payload)
}

// readVLR reads one VLR; a declared payload length above maxPayload is
// cut to maxPayload. LasFile and LazFile pass offset_to_point_data
// itself, not the room left before it, so the cap does not keep a VLR
// that starts after the header from reaching past that offset.
func readVLR(in bytestream.Source, maxPayload int64) (*VLR, error) {
	v := &VLR{}
	var err error
	if v.Reserved, err = in.ReadU16(); err != nil {
		return nil, err
	}
	uid, err := in.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	copy(v.UserID[:], uid)
	if v.RecordID, err = in.ReadU16(); err != nil {
		return nil, err
	}
	if v.RecordLengthAfterHeader, err = in.ReadU16(); err != nil {
		return nil, err
	}
	desc, err := in.ReadBytes(32)
	if err != nil {
		return nil, err
	}
	copy(v.Description[:], desc)
	n := int64(v.RecordLengthAfterHeader)
	if n > maxPayload {
		n = maxPayload
	}
	if v.Payload, err = in.ReadBytes(int(n)); err != nil {
		return nil, err
	}
	return v, nil
}

func writeEVLR(out bytestream.Sink, e *EVLR) error {
	if err := out.WriteU16(e.Reserved); err != nil {
		return err
	}
	if err := out.WriteBytes(e.UserID[:]); err != nil {
		return err
	}
	if err := out.WriteU16(e.RecordID); err != nil {
		return err
	}
	if err := out.WriteU64(uint64(len(e.Payload))); err != nil {
		return err
	}
	if err := out.WriteBytes(e.Description[:]); err != nil {
		return err
	}
	return out.WriteBytes(e.Payload)
}

func readEVLR(in bytestream.Source) (*EVLR, error) {
	e := &EVLR{}
	var err error
	if e.Reserved, err = in.ReadU16(); err != nil {
		return nil, err
	}
	uid, err := in.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	copy(e.UserID[:], uid)
	if e.RecordID, err = in.ReadU16(); err != nil {
		return nil, err
	}
	if e.RecordLengthAfterHeader, err = in.ReadU64(); err != nil {
		return nil, err
	}
	desc, err := in.ReadBytes(32)
	if err != nil {
		return nil, err
	}
	copy(e.Description[:], desc)
	if e.Payload, err = in.ReadBytes(int(e.RecordLengthAfterHeader)); err != nil {
		return nil, err
	}
	return e, nil
}

// LAStilingInfo is the payload of the LAStiling VLR (spec §6): 28 bytes
// describing a tile's position within a larger tiled LAZ dataset.
type LAStilingInfo struct {
	Level      uint32
	LevelIndex uint32
	Packed     uint32 // implicit_levels | buffer_bit<<n | reversible_bit<<m, opaque
	MinX, MaxX float32
	MinY, MaxY float32
}

func (t *LAStilingInfo) marshal() []byte {
	buf := make([]byte, 28)
	putU32(buf, 0, t.Level)
	putU32(buf, 4, t.LevelIndex)
	putU32(buf, 8, t.Packed)
	putU32(buf, 12, float32bits(t.MinX))
	putU32(buf, 16, float32bits(t.MaxX))
	putU32(buf, 20, float32bits(t.MinY))
	putU32(buf, 24, float32bits(t.MaxY))
	return buf
}

func unmarshalLAStiling(b []byte) *LAStilingInfo {
	if len(b) < 28 {
		return nil
	}
	return &LAStilingInfo{
		Level:      getU32(b, 0),
		LevelIndex: getU32(b, 4),
		Packed:     getU32(b, 8),
		MinX:       float32frombits(getU32(b, 12)),
		MaxX:       float32frombits(getU32(b, 16)),
		MinY:       float32frombits(getU32(b, 20)),
		MaxY:       float32frombits(getU32(b, 24)),
	}
}

// LASoriginalInfo is the payload of the LASoriginal VLR (spec §6): the
// point count, per-return counts and bounding box of the file *before*
// it was re-tiled or re-bounded, so a pass-through tool does not lose
// the original extents.
type LASoriginalInfo struct {
	NumberOfPointRecords   uint64
	NumberOfPointsByReturn [15]uint64
	MinX, MaxX             float64
	MinY, MaxY             float64
	MinZ, MaxZ             float64
}

func (o *LASoriginalInfo) marshal() []byte {
	buf := make([]byte, 176)
	putU64(buf, 0, o.NumberOfPointRecords)
	for i, v := range o.NumberOfPointsByReturn {
		putU64(buf, 8+8*i, v)
	}
	off := 8 + 8*15
	for i, v := range []float64{o.MinX, o.MaxX, o.MinY, o.MaxY, o.MinZ, o.MaxZ} {
		putF64(buf, off+8*i, v)
	}
	return buf
}

func unmarshalLASoriginal(b []byte) *LASoriginalInfo {
	if len(b) < 176 {
		return nil
	}
	o := &LASoriginalInfo{NumberOfPointRecords: getU64(b, 0)}
	for i := range o.NumberOfPointsByReturn {
		o.NumberOfPointsByReturn[i] = getU64(b, 8+8*i)
	}
	off := 8 + 8*15
	vals := []*float64{&o.MinX, &o.MaxX, &o.MinY, &o.MaxY, &o.MinZ, &o.MaxZ}
	for i, v := range vals {
		*v = getF64(b, off+8*i)
	}
	return o
}

// NewLAStilingVLR builds the VLR carrying t's payload.
func NewLAStilingVLR(t *LAStilingInfo) *VLR {
	v := &VLR{RecordID: laStilingRecordID, Payload: t.marshal()}
	v.setUserID(lastoolsUserID)
	v.RecordLengthAfterHeader = uint16(len(v.Payload))
	return v
}

// NewLASoriginalVLR builds the VLR carrying o's payload.
func NewLASoriginalVLR(o *LASoriginalInfo) *VLR {
	v := &VLR{RecordID: laSoriginalRecordID, Payload: o.marshal()}
	v.setUserID(lastoolsUserID)
	v.RecordLengthAfterHeader = uint16(len(v.Payload))
	return v
}

// AsLAStiling returns v's payload parsed as LAStilingInfo, or nil if v
// isn't a LAStiling VLR.
func (v *VLR) AsLAStiling() *LAStilingInfo {
	if v.UserIDString() != lastoolsUserID || v.RecordID != laStilingRecordID {
		return nil
	}
	return unmarshalLAStiling(v.Payload)
}

// AsLASoriginal returns v's payload parsed as LASoriginalInfo, or nil if
// v isn't a LASoriginal VLR.
func (v *VLR) AsLASoriginal() *LASoriginalInfo {
	if v.UserIDString() != lastoolsUserID || v.RecordID != laSoriginalRecordID {
		return nil
	}
	return unmarshalLASoriginal(v.Payload)
}

// IsCOPCHierarchy reports whether e is the pass-through COPC hierarchy
// EVLR. This module does not interpret its payload, and no header field
// is back-patched to point at it.
func (e *EVLR) IsCOPCHierarchy() bool {
	return e.UserIDString() == copcUserID && e.RecordID == copcRecordID
}

// copcUserID/copcRecordID identify the pass-through COPC hierarchy-root
// EVLR (spec §4.7 "COPC hook"); this module never interprets its
// payload.
const copcUserID = "copc"
const copcRecordID = 1000

// copcOffsetFieldOffset and copcLengthFieldOffset are the file offsets
// (375+54+40 and +48) of the COPC payload offset and length fields.
// Nothing in this module writes them.
const (
	copcOffsetFieldOffset = 375 + 54 + 40
	copcLengthFieldOffset = copcOffsetFieldOffset + 8
)

// CompressEVLRPayload optionally recompresses a large opaque EVLR
// payload (e.g. a COPC hierarchy page) with zstd before writing it,
// trading a decode-side dependency for smaller files on sidecar data
// the core codec never interprets itself.
func CompressEVLRPayload(payload []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, newErr(IoError, "EVLR payload", -1, err)
	}
	defer enc.Close()
	return enc.EncodeAll(payload, nil), nil
}

// DecompressEVLRPayload is the inverse of CompressEVLRPayload.
func DecompressEVLRPayload(payload []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, newErr(IoError, "EVLR payload", -1, err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, newErr(IoError, "EVLR payload", -1, err)
	}
	return out, nil
}
