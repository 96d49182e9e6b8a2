package itemcodec

import (
	"bytes"

	"github.com/jblindsay/lasz/internal/bytestream"
	"github.com/jblindsay/lasz/internal/entropy"
	"github.com/jblindsay/lasz/internal/intcompress"
)

// POINT14 field offsets within its 30-byte record.
const (
	p14X           = 0
	p14Y           = 4
	p14Z           = 8
	p14Intensity   = 12
	p14ReturnByte  = 14 // return number (low nibble) | number of returns (high nibble)
	p14Flags       = 15 // classification flags (low nibble) | channel/dir/edge (high nibble)
	p14Class       = 16
	p14UserData    = 17
	p14ScanAngle   = 18 // i16
	p14PointSource = 20
	p14GPSTime     = 22 // f64
)

// point14Layer names the independent arithmetic-coded streams POINT14
// splits a chunk into (spec §4.4). Each layer has its own coder state
// and its own byte count in the chunk's layer table, so a reader that
// only wants e.g. XY and classification never has to touch the rest.
type point14Layer int

const (
	layerIdxXY point14Layer = iota
	layerIdxZ
	layerIdxClassification
	layerIdxFlags
	layerIdxIntensity
	layerIdxScanAngle
	layerIdxUserData
	layerIdxGPSTime
	layerIdxPointSource
	numPoint14Layers
)

var point14LayerBits = [numPoint14Layers]LayerSet{
	layerIdxXY:             LayerXY,
	layerIdxZ:              LayerZ,
	layerIdxClassification: LayerClassification,
	layerIdxFlags:          LayerFlags,
	layerIdxIntensity:      LayerIntensity,
	layerIdxScanAngle:      LayerScanAngle,
	layerIdxUserData:       LayerUserData,
	layerIdxGPSTime:        LayerGPSTime,
	layerIdxPointSource:    LayerPointSource,
}

// layerSink bundles a growable in-memory buffer with the encoder writing
// into it, so FlushLayers can read back each layer's byte count.
type layerSink struct {
	buf *bytes.Buffer
	snk *bytestream.WriterSink
	enc *entropy.Encoder
}

func newLayerSink() *layerSink {
	buf := &bytes.Buffer{}
	return &layerSink{buf: buf, snk: bytestream.NewWriterSink(buf)}
}

func (l *layerSink) start() error {
	l.enc = entropy.NewEncoder()
	return l.enc.Init(l.snk)
}

// layerSource is the read-side counterpart, bound to one chunk's worth
// of already-extracted layer bytes.
type layerSource struct {
	src bytestream.Source
	dec *entropy.Decoder
}

func newLayerSource(b []byte) *layerSource {
	return &layerSource{src: bytestream.NewReaderSource(bytes.NewReader(b))}
}

func (l *layerSource) start() error {
	l.dec = entropy.NewDecoder()
	return l.dec.Init(l.src)
}

// point14Codec implements the layered POINT14 item. Prediction logic for
// X/Y/Z/intensity/scan-angle/user-data/point-source mirrors POINT10's
// (spec §4.4: "extended core"); classification, flags and GPS time are
// widened for the extended point formats.
type point14Codec struct {
	lastX, lastY, lastZ int32
	xHist               [3]int32
	lastIntensity       uint16
	lastReturnByte      byte
	lastFlags           byte
	lastClass           byte
	lastUserData        byte
	lastScanAngle       int32
	lastPointSource     uint16
	lastGPSTime         uint64
	lastGPSDelta        int64

	icX, icY, icZ *intcompress.Compressor
	icIntensity   *intcompress.Compressor
	icScanAngle   *intcompress.Compressor
	icUserData    *intcompress.Compressor
	icPointSource *intcompress.Compressor
	icGPSLo       *intcompress.Compressor
	icGPSHi       *intcompress.Compressor

	classModel  *entropy.SymbolModel // 256 symbols
	returnModel *entropy.SymbolModel
	flagsModel  *entropy.SymbolModel

	forDecode bool
}

func newPoint14Codec(version int, forDecode bool) (*point14Codec, error) {
	if version != 3 {
		return nil, &UnsupportedError{Kind: Point14, Version: version}
	}
	c := &point14Codec{forDecode: forDecode}
	c.icX = intcompress.New(1, 32, forDecode)
	c.icY = intcompress.New(3, 32, forDecode)
	c.icZ = intcompress.New(16, 32, forDecode)
	c.icIntensity = intcompress.New(4, 16, forDecode)
	c.icScanAngle = intcompress.New(2, 16, forDecode)
	c.icUserData = intcompress.New(1, 8, forDecode)
	c.icPointSource = intcompress.New(2, 16, forDecode)
	c.icGPSLo = intcompress.New(1, 32, forDecode)
	c.icGPSHi = intcompress.New(1, 32, forDecode)
	c.classModel = entropy.NewSymbolModel(256, 14, forDecode)
	c.classModel.Init()
	c.returnModel = entropy.NewSymbolModel(256, 14, forDecode)
	c.returnModel.Init()
	c.flagsModel = entropy.NewSymbolModel(256, 14, forDecode)
	c.flagsModel.Init()
	return c, nil
}

func (c *point14Codec) seed(p []byte) {
	c.lastX = getI32(p, p14X)
	c.lastY = getI32(p, p14Y)
	c.lastZ = getI32(p, p14Z)
	c.xHist = [3]int32{0, 0, 0}
	c.lastIntensity = getU16(p, p14Intensity)
	c.lastReturnByte = p[p14ReturnByte]
	c.lastFlags = p[p14Flags]
	c.lastClass = p[p14Class]
	c.lastUserData = p[p14UserData]
	c.lastScanAngle = int32(int16(getU16(p, p14ScanAngle)))
	c.lastPointSource = getU16(p, p14PointSource)
	c.lastGPSTime = getU64(p, p14GPSTime)
	c.lastGPSDelta = 0
}

func (c *point14Codec) xDeltaBucket() uint32 {
	switch {
	case c.xHist[2] < 0:
		return 0
	case c.xHist[2] == 0:
		return 1
	default:
		return 2
	}
}

func (c *point14Codec) returnBucket(returnByte byte) uint32 { return uint32(returnByte & 0xf) }

func (c *point14Codec) intensityBucket(returnByte byte) uint32 {
	ret := returnByte & 0xf
	nret := (returnByte >> 4) & 0xf
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

func (c *point14Codec) scanBucket(flags byte) uint32 { return uint32((flags >> 6) & 1) }

func (c *point14Codec) sourceBucket(flags byte) uint32 { return uint32((flags >> 7) & 1) }

type point14Writer struct {
	*point14Codec
	layers [numPoint14Layers]*layerSink
}

// NewPoint14Writer builds a POINT14 layered writer. version is the
// item-version field from the schema, which for layered items records
// the layered-codec generation; 3 is the only one implemented.
func NewPoint14Writer(version int) (LayeredWriter, error) {
	c, err := newPoint14Codec(version, false)
	if err != nil {
		return nil, err
	}
	return &point14Writer{point14Codec: c}, nil
}

func (w *point14Writer) Init(firstPoint []byte) error {
	w.seed(firstPoint)
	for i := range w.layers {
		w.layers[i] = newLayerSink()
		if err := w.layers[i].start(); err != nil {
			return err
		}
	}
	return nil
}

func (w *point14Writer) Compress(p []byte) error {
	x := getI32(p, p14X)
	y := getI32(p, p14Y)
	z := getI32(p, p14Z)
	intensity := getU16(p, p14Intensity)
	returnByte := p[p14ReturnByte]
	flags := p[p14Flags]
	class := p[p14Class]
	userData := p[p14UserData]
	scanAngle := int32(int16(getU16(p, p14ScanAngle)))
	pointSource := getU16(p, p14PointSource)
	gpsTime := getU64(p, p14GPSTime)

	xy := w.layers[layerIdxXY].enc
	predX := w.lastX + median3(w.xHist[0], w.xHist[1], w.xHist[2])
	if err := w.icX.Compress(xy, predX, x, 0); err != nil {
		return err
	}
	xDelta := x - w.lastX
	w.xHist[0], w.xHist[1], w.xHist[2] = w.xHist[1], w.xHist[2], xDelta
	if err := w.icY.Compress(xy, w.lastY, y, w.xDeltaBucket()); err != nil {
		return err
	}

	if err := w.icZ.Compress(w.layers[layerIdxZ].enc, w.lastZ, z, w.returnBucket(returnByte)); err != nil {
		return err
	}
	if err := enc14(w.layers[layerIdxClassification].enc, w.classModel, uint32(class)); err != nil {
		return err
	}
	if err := enc14(w.layers[layerIdxFlags].enc, w.returnModel, uint32(returnByte)); err != nil {
		return err
	}
	if err := enc14(w.layers[layerIdxFlags].enc, w.flagsModel, uint32(flags)); err != nil {
		return err
	}
	if err := w.icIntensity.Compress(w.layers[layerIdxIntensity].enc, int32(w.lastIntensity), int32(intensity), w.intensityBucket(returnByte)); err != nil {
		return err
	}
	if err := w.icScanAngle.Compress(w.layers[layerIdxScanAngle].enc, w.lastScanAngle, scanAngle, w.scanBucket(flags)); err != nil {
		return err
	}
	if err := w.icUserData.Compress(w.layers[layerIdxUserData].enc, int32(w.lastUserData), int32(userData), 0); err != nil {
		return err
	}
	if err := w.icPointSource.Compress(w.layers[layerIdxPointSource].enc, int32(w.lastPointSource), int32(pointSource), w.sourceBucket(flags)); err != nil {
		return err
	}

	gpsEnc := w.layers[layerIdxGPSTime].enc
	predGPS := int64(w.lastGPSTime) + w.lastGPSDelta
	if err := w.icGPSLo.Compress(gpsEnc, int32(predGPS&0xffffffff), int32(int64(gpsTime)&0xffffffff), 0); err != nil {
		return err
	}
	if err := w.icGPSHi.Compress(gpsEnc, int32(predGPS>>32), int32(int64(gpsTime)>>32), 0); err != nil {
		return err
	}

	w.lastX, w.lastY, w.lastZ = x, y, z
	w.lastIntensity = intensity
	w.lastReturnByte = returnByte
	w.lastFlags = flags
	w.lastClass = class
	w.lastUserData = userData
	w.lastScanAngle = scanAngle
	w.lastPointSource = pointSource
	w.lastGPSDelta = int64(gpsTime) - int64(w.lastGPSTime)
	w.lastGPSTime = gpsTime
	return nil
}

func enc14(enc *entropy.Encoder, m *entropy.SymbolModel, sym uint32) error {
	return enc.EncodeSymbol(m, sym)
}

// FlushLayers writes, in order: a u32 byte count per layer, then every
// layer's coded bytes, then resets each layer for the next chunk.
func (w *point14Writer) FlushLayers(out bytestream.Sink) error {
	lens := make([]uint32, numPoint14Layers)
	for i, l := range w.layers {
		if _, err := l.enc.Done(); err != nil {
			return err
		}
		lens[i] = uint32(l.buf.Len())
	}
	for _, n := range lens {
		if err := out.WriteU32(n); err != nil {
			return err
		}
	}
	for _, l := range w.layers {
		if err := out.WriteBytes(l.buf.Bytes()); err != nil {
			return err
		}
	}
	for i := range w.layers {
		w.layers[i] = newLayerSink()
		if err := w.layers[i].start(); err != nil {
			return err
		}
	}
	return nil
}

type point14Reader struct {
	*point14Codec
	layers [numPoint14Layers]*layerSource
	skip   LayerSet
	active [numPoint14Layers]bool
}

func NewPoint14Reader(version int) (LayeredReader, error) {
	c, err := newPoint14Codec(version, true)
	if err != nil {
		return nil, err
	}
	return &point14Reader{point14Codec: c}, nil
}

func (r *point14Reader) Init(firstPoint []byte) error {
	r.seed(firstPoint)
	return nil
}

func (r *point14Reader) LoadLayers(in bytestream.Source, count int, skip LayerSet) error {
	r.skip = skip
	lens := make([]uint32, numPoint14Layers)
	for i := range lens {
		n, err := in.ReadU32()
		if err != nil {
			return err
		}
		lens[i] = n
	}
	for i := range r.layers {
		b, err := in.ReadBytes(int(lens[i]))
		if err != nil {
			return err
		}
		r.active[i] = skip&point14LayerBits[i] == 0
		if !r.active[i] {
			continue
		}
		r.layers[i] = newLayerSource(b)
		if err := r.layers[i].start(); err != nil {
			return err
		}
	}
	return nil
}

func (r *point14Reader) Decompress(p []byte) error {
	if r.active[layerIdxXY] {
		xy := r.layers[layerIdxXY].dec
		predX := r.lastX + median3(r.xHist[0], r.xHist[1], r.xHist[2])
		x, err := r.icX.Decompress(xy, predX, 0)
		if err != nil {
			return err
		}
		xDelta := x - r.lastX
		r.xHist[0], r.xHist[1], r.xHist[2] = r.xHist[1], r.xHist[2], xDelta
		y, err := r.icY.Decompress(xy, r.lastY, r.xDeltaBucket())
		if err != nil {
			return err
		}
		putI32(p, p14X, x)
		putI32(p, p14Y, y)
		r.lastX, r.lastY = x, y
	}

	returnByte := r.lastReturnByte
	flags := r.lastFlags
	if r.active[layerIdxFlags] {
		fd := r.layers[layerIdxFlags].dec
		rb, err := fd.DecodeSymbol(r.returnModel)
		if err != nil {
			return err
		}
		fl, err := fd.DecodeSymbol(r.flagsModel)
		if err != nil {
			return err
		}
		returnByte, flags = byte(rb), byte(fl)
		p[p14ReturnByte] = returnByte
		p[p14Flags] = flags
		r.lastReturnByte = returnByte
		r.lastFlags = flags
	}

	if r.active[layerIdxZ] {
		z, err := r.icZ.Decompress(r.layers[layerIdxZ].dec, r.lastZ, r.returnBucket(returnByte))
		if err != nil {
			return err
		}
		putI32(p, p14Z, z)
		r.lastZ = z
	}
	if r.active[layerIdxClassification] {
		cv, err := r.layers[layerIdxClassification].dec.DecodeSymbol(r.classModel)
		if err != nil {
			return err
		}
		p[p14Class] = byte(cv)
		r.lastClass = byte(cv)
	}
	if r.active[layerIdxIntensity] {
		iv, err := r.icIntensity.Decompress(r.layers[layerIdxIntensity].dec, int32(r.lastIntensity), r.intensityBucket(returnByte))
		if err != nil {
			return err
		}
		if iv < 0 || iv > 0xffff {
			return &desyncError{"POINT14 intensity"}
		}
		putU16(p, p14Intensity, uint16(iv))
		r.lastIntensity = uint16(iv)
	}
	if r.active[layerIdxScanAngle] {
		sv, err := r.icScanAngle.Decompress(r.layers[layerIdxScanAngle].dec, r.lastScanAngle, r.scanBucket(flags))
		if err != nil {
			return err
		}
		if sv < -32768 || sv > 32767 {
			return &desyncError{"POINT14 scan angle"}
		}
		putU16(p, p14ScanAngle, uint16(int16(sv)))
		r.lastScanAngle = sv
	}
	if r.active[layerIdxUserData] {
		uv, err := r.icUserData.Decompress(r.layers[layerIdxUserData].dec, int32(r.lastUserData), 0)
		if err != nil {
			return err
		}
		p[p14UserData] = byte(uv)
		r.lastUserData = byte(uv)
	}
	if r.active[layerIdxPointSource] {
		psv, err := r.icPointSource.Decompress(r.layers[layerIdxPointSource].dec, int32(r.lastPointSource), r.sourceBucket(flags))
		if err != nil {
			return err
		}
		putU16(p, p14PointSource, uint16(psv))
		r.lastPointSource = uint16(psv)
	}
	if r.active[layerIdxGPSTime] {
		gd := r.layers[layerIdxGPSTime].dec
		predGPS := int64(r.lastGPSTime) + r.lastGPSDelta
		lo, err := r.icGPSLo.Decompress(gd, int32(predGPS&0xffffffff), 0)
		if err != nil {
			return err
		}
		hi, err := r.icGPSHi.Decompress(gd, int32(predGPS>>32), 0)
		if err != nil {
			return err
		}
		gps := uint64(uint32(hi))<<32 | uint64(uint32(lo))
		putU64(p, p14GPSTime, gps)
		r.lastGPSDelta = int64(gps) - int64(r.lastGPSTime)
		r.lastGPSTime = gps
	}
	return nil
}
