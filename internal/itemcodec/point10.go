package itemcodec

import (
	"github.com/jblindsay/lasz/internal/bytestream"
	"github.com/jblindsay/lasz/internal/entropy"
	"github.com/jblindsay/lasz/internal/intcompress"
)

// POINT10 field offsets within its 20-byte record (spec §3).
const (
	p10X             = 0
	p10Y             = 4
	p10Z             = 8
	p10Intensity     = 12
	p10BitField      = 14
	p10Classification = 15
	p10ScanAngle     = 16
	p10UserData      = 17
	p10PointSource   = 18
)

// point10Codec implements the compressed POINT10 item for both version 1
// (coarse, few contexts) and version 2 (the spec's "more contexts, better
// conditioning" default). X is always predicted from the last value plus
// the median of the last three deltas; v2 additionally conditions Y and Z
// on the sign/bucket of the X delta and on return number, per spec §4.4.
type point10Codec struct {
	version int

	lastX, lastY, lastZ int32
	xHist               [3]int32 // last three X deltas, oldest first
	lastIntensity       uint16
	lastBitField        byte
	lastClass           byte
	lastPointSource     uint16
	lastUserData        byte
	lastScanAngle       int32

	icX           *intcompress.Compressor // 1 context
	icY           *intcompress.Compressor // 1 (v1) or 3 (v2) contexts keyed on X-delta bucket
	icZ           *intcompress.Compressor // 1 (v1) or 8 (v2) contexts keyed on return number
	icIntensity   *intcompress.Compressor // 1 (v1) or 4 (v2) contexts keyed on return info
	icScanAngle   *intcompress.Compressor // 1 (v1) or 2 (v2) contexts keyed on scan direction
	icUserData    *intcompress.Compressor // 1 context
	icPointSource *intcompress.Compressor // 1 (v1) or 2 (v2) contexts keyed on the edge-of-flight-line bit
	icClass       *intcompress.Compressor // 1 context

	bitFieldModel *entropy.SymbolModel // 256 symbols, the raw flags+return byte
}

func newPoint10Codec(version int, forDecode bool) (*point10Codec, error) {
	if version != 1 && version != 2 {
		return nil, &UnsupportedError{Kind: Point10, Version: version}
	}
	c := &point10Codec{version: version}
	yCtx, zCtx, iCtx, aCtx, sCtx := 1, 1, 1, 1, 1
	if version == 2 {
		yCtx, zCtx, iCtx, aCtx, sCtx = 3, 8, 4, 2, 2
	}
	c.icX = intcompress.New(1, 32, forDecode)
	c.icY = intcompress.New(uint32(yCtx), 32, forDecode)
	c.icZ = intcompress.New(uint32(zCtx), 32, forDecode)
	c.icIntensity = intcompress.New(uint32(iCtx), 16, forDecode)
	c.icScanAngle = intcompress.New(uint32(aCtx), 8, forDecode)
	c.icUserData = intcompress.New(1, 8, forDecode)
	c.icPointSource = intcompress.New(uint32(sCtx), 16, forDecode)
	c.icClass = intcompress.New(1, 8, forDecode)
	c.bitFieldModel = entropy.NewSymbolModel(256, 14, forDecode)
	c.bitFieldModel.Init()
	return c, nil
}

func (c *point10Codec) seed(p []byte) {
	c.lastX = getI32(p, p10X)
	c.lastY = getI32(p, p10Y)
	c.lastZ = getI32(p, p10Z)
	c.xHist = [3]int32{0, 0, 0}
	c.lastIntensity = getU16(p, p10Intensity)
	c.lastBitField = p[p10BitField]
	c.lastClass = p[p10Classification]
	c.lastPointSource = getU16(p, p10PointSource)
	c.lastUserData = p[p10UserData]
	c.lastScanAngle = int32(int8(p[p10ScanAngle]))
}

func (c *point10Codec) xDeltaBucket() uint32 {
	d := c.xHist[2]
	switch {
	case d < 0:
		return 0
	case d == 0:
		return 1
	default:
		return 2
	}
}

func (c *point10Codec) returnBucket(bitField byte) uint32 {
	ret := uint32(bitField & 0x7)
	if c.icZ.NumContexts() == 1 {
		return 0
	}
	if ret > 7 {
		ret = 7
	}
	return ret
}

func (c *point10Codec) intensityBucket(bitField byte) uint32 {
	if c.icIntensity.NumContexts() == 1 {
		return 0
	}
	ret := bitField & 0x7
	nret := (bitField >> 3) & 0x7
	switch {
	case ret == 1 && nret == 1:
		return 0
	case ret == 1:
		return 1
	case ret == nret:
		return 2
	default:
		return 3
	}
}

func (c *point10Codec) scanBucket(bitField byte) uint32 {
	if c.icScanAngle.NumContexts() == 1 {
		return 0
	}
	return uint32((bitField >> 6) & 1)
}

// sourceBucket must depend only on state known before the point-source
// value itself is decoded, so it conditions on the bit field (already
// decoded earlier in the same point) rather than on the source id.
func (c *point10Codec) sourceBucket(bitField byte) uint32 {
	if c.icPointSource.NumContexts() == 1 {
		return 0
	}
	return uint32((bitField >> 7) & 1) // edge-of-flight-line bit
}

// --- writer ---

type point10Writer struct{ *point10Codec }

func NewPoint10Writer(version int) (CompressedWriter, error) {
	c, err := newPoint10Codec(version, false)
	if err != nil {
		return nil, err
	}
	return &point10Writer{c}, nil
}

func (w *point10Writer) Init(enc *entropy.Encoder, firstPoint []byte) error {
	w.seed(firstPoint)
	return nil
}

func (w *point10Writer) Compress(enc *entropy.Encoder, p []byte) error {
	x := getI32(p, p10X)
	y := getI32(p, p10Y)
	z := getI32(p, p10Z)
	bitField := p[p10BitField]
	class := p[p10Classification]
	intensity := getU16(p, p10Intensity)
	scanAngle := int32(int8(p[p10ScanAngle]))
	userData := p[p10UserData]
	pointSource := getU16(p, p10PointSource)

	predX := w.lastX + median3(w.xHist[0], w.xHist[1], w.xHist[2])
	if err := w.icX.Compress(enc, predX, x, 0); err != nil {
		return err
	}
	xDelta := x - w.lastX
	w.xHist[0], w.xHist[1], w.xHist[2] = w.xHist[1], w.xHist[2], xDelta

	if err := w.icY.Compress(enc, w.lastY, y, w.xDeltaBucket()); err != nil {
		return err
	}
	if err := enc.EncodeSymbol(w.bitFieldModel, uint32(bitField)); err != nil {
		return err
	}
	if err := w.icZ.Compress(enc, w.lastZ, z, w.returnBucket(bitField)); err != nil {
		return err
	}
	if err := w.icClass.Compress(enc, int32(w.lastClass), int32(class), 0); err != nil {
		return err
	}
	if err := w.icIntensity.Compress(enc, int32(w.lastIntensity), int32(intensity), w.intensityBucket(bitField)); err != nil {
		return err
	}
	if err := w.icScanAngle.Compress(enc, w.lastScanAngle, scanAngle, w.scanBucket(bitField)); err != nil {
		return err
	}
	if err := w.icUserData.Compress(enc, int32(w.lastUserData), int32(userData), 0); err != nil {
		return err
	}
	if err := w.icPointSource.Compress(enc, int32(w.lastPointSource), int32(pointSource), w.sourceBucket(bitField)); err != nil {
		return err
	}

	w.lastX, w.lastY, w.lastZ = x, y, z
	w.lastBitField = bitField
	w.lastClass = class
	w.lastIntensity = intensity
	w.lastPointSource = pointSource
	w.lastUserData = userData
	w.lastScanAngle = scanAngle
	return nil
}

// --- reader ---

type point10Reader struct{ *point10Codec }

func NewPoint10Reader(version int) (CompressedReader, error) {
	c, err := newPoint10Codec(version, true)
	if err != nil {
		return nil, err
	}
	return &point10Reader{c}, nil
}

func (r *point10Reader) Init(dec *entropy.Decoder, firstPoint []byte) error {
	r.seed(firstPoint)
	return nil
}

func (r *point10Reader) Decompress(dec *entropy.Decoder, p []byte) error {
	predX := r.lastX + median3(r.xHist[0], r.xHist[1], r.xHist[2])
	x, err := r.icX.Decompress(dec, predX, 0)
	if err != nil {
		return err
	}
	xDelta := x - r.lastX
	r.xHist[0], r.xHist[1], r.xHist[2] = r.xHist[1], r.xHist[2], xDelta

	y, err := r.icY.Decompress(dec, r.lastY, r.xDeltaBucket())
	if err != nil {
		return err
	}
	bitFieldSym, err := dec.DecodeSymbol(r.bitFieldModel)
	if err != nil {
		return err
	}
	bitField := byte(bitFieldSym)
	z, err := r.icZ.Decompress(dec, r.lastZ, r.returnBucket(bitField))
	if err != nil {
		return err
	}
	classV, err := r.icClass.Decompress(dec, int32(r.lastClass), 0)
	if err != nil {
		return err
	}
	intensityV, err := r.icIntensity.Decompress(dec, int32(r.lastIntensity), r.intensityBucket(bitField))
	if err != nil {
		return err
	}
	if intensityV < 0 || intensityV > 0xffff {
		return &desyncError{"POINT10 intensity"}
	}
	scanV, err := r.icScanAngle.Decompress(dec, r.lastScanAngle, r.scanBucket(bitField))
	if err != nil {
		return err
	}
	if scanV < -128 || scanV > 127 {
		return &desyncError{"POINT10 scan angle"}
	}
	userDataV, err := r.icUserData.Decompress(dec, int32(r.lastUserData), 0)
	if err != nil {
		return err
	}
	srcV, err := r.icPointSource.Decompress(dec, int32(r.lastPointSource), r.sourceBucket(bitField))
	if err != nil {
		return err
	}

	putI32(p, p10X, x)
	putI32(p, p10Y, y)
	putI32(p, p10Z, z)
	putU16(p, p10Intensity, uint16(intensityV))
	p[p10BitField] = bitField
	p[p10Classification] = byte(classV)
	p[p10ScanAngle] = byte(int8(scanV))
	p[p10UserData] = byte(userDataV)
	putU16(p, p10PointSource, uint16(srcV))

	r.lastX, r.lastY, r.lastZ = x, y, z
	r.lastBitField = bitField
	r.lastClass = byte(classV)
	r.lastIntensity = uint16(intensityV)
	r.lastPointSource = uint16(srcV)
	r.lastUserData = byte(userDataV)
	r.lastScanAngle = scanV
	return nil
}

type desyncError struct{ item string }

func (e *desyncError) Error() string { return "itemcodec: codec desync in " + e.item }
