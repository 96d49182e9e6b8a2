package itemcodec

import (
	"github.com/jblindsay/lasz/internal/entropy"
	"github.com/jblindsay/lasz/internal/intcompress"
)

// WAVEPACKET13 field offsets within its 29-byte record.
const (
	wp13Descriptor = 0  // u8
	wp13Offset     = 1  // u64
	wp13PacketSize = 9  // u32
	wp13Location   = 13 // f32
	wp13Xt         = 17 // f32
	wp13Yt         = 21 // f32
	wp13Zt         = 25 // f32
)

// numWavePacketDescriptors is the number of descriptor-keyed contexts
// the offset compressor maintains (spec §4.4: "8 contexts keyed on
// descriptor").
const numWavePacketDescriptors = 8

// wavePacketCodec implements the compressed WAVEPACKET13 item, version 1
// only. The descriptor index is small and changes rarely, so it gets its
// own adaptive model; everything else is delta-coded against the
// previous point, with the 64-bit byte offset conditioned on the
// descriptor actually used for this point.
type wavePacketCodec struct {
	lastDescriptor uint8
	lastOffset     uint64
	lastPacketSize uint32
	lastLocation   int32 // bit pattern of the f32, delta-coded as an integer
	lastXt         int32
	lastYt         int32
	lastZt         int32

	descriptorModel *entropy.SymbolModel // 256 symbols
	icOffsetLo      *intcompress.Compressor
	icOffsetHi      *intcompress.Compressor
	icPacketSize    *intcompress.Compressor
	icLocation      *intcompress.Compressor
	icXt            *intcompress.Compressor
	icYt            *intcompress.Compressor
	icZt            *intcompress.Compressor
}

func newWavePacketCodec(version int, forDecode bool) (*wavePacketCodec, error) {
	if version != 1 {
		return nil, &UnsupportedError{Kind: WavePacket13, Version: version}
	}
	c := &wavePacketCodec{}
	c.descriptorModel = entropy.NewSymbolModel(256, 14, forDecode)
	c.descriptorModel.Init()
	c.icOffsetLo = intcompress.New(numWavePacketDescriptors, 32, forDecode)
	c.icOffsetHi = intcompress.New(numWavePacketDescriptors, 32, forDecode)
	c.icPacketSize = intcompress.New(1, 32, forDecode)
	c.icLocation = intcompress.New(1, 32, forDecode)
	c.icXt = intcompress.New(1, 32, forDecode)
	c.icYt = intcompress.New(1, 32, forDecode)
	c.icZt = intcompress.New(1, 32, forDecode)
	return c, nil
}

func (c *wavePacketCodec) seed(p []byte) {
	c.lastDescriptor = p[wp13Descriptor]
	c.lastOffset = getU64(p, wp13Offset)
	c.lastPacketSize = getU32(p, wp13PacketSize)
	c.lastLocation = getI32(p, wp13Location)
	c.lastXt = getI32(p, wp13Xt)
	c.lastYt = getI32(p, wp13Yt)
	c.lastZt = getI32(p, wp13Zt)
}

func (c *wavePacketCodec) descriptorCtx(d uint8) uint32 {
	if uint32(d) >= numWavePacketDescriptors {
		return numWavePacketDescriptors - 1
	}
	return uint32(d)
}

type wavePacketWriter struct{ *wavePacketCodec }

func NewWavePacketWriter(version int) (CompressedWriter, error) {
	c, err := newWavePacketCodec(version, false)
	if err != nil {
		return nil, err
	}
	return &wavePacketWriter{c}, nil
}

func (w *wavePacketWriter) Init(enc *entropy.Encoder, firstPoint []byte) error {
	w.seed(firstPoint)
	return nil
}

func (w *wavePacketWriter) Compress(enc *entropy.Encoder, p []byte) error {
	descriptor := p[wp13Descriptor]
	offset := getU64(p, wp13Offset)
	packetSize := getU32(p, wp13PacketSize)
	location := getI32(p, wp13Location)
	xt := getI32(p, wp13Xt)
	yt := getI32(p, wp13Yt)
	zt := getI32(p, wp13Zt)

	if err := enc.EncodeSymbol(w.descriptorModel, uint32(descriptor)); err != nil {
		return err
	}
	ctx := w.descriptorCtx(descriptor)
	if err := w.icOffsetLo.Compress(enc, int32(w.lastOffset&0xffffffff), int32(offset&0xffffffff), ctx); err != nil {
		return err
	}
	if err := w.icOffsetHi.Compress(enc, int32(w.lastOffset>>32), int32(offset>>32), ctx); err != nil {
		return err
	}
	if err := w.icPacketSize.Compress(enc, int32(w.lastPacketSize), int32(packetSize), 0); err != nil {
		return err
	}
	if err := w.icLocation.Compress(enc, w.lastLocation, location, 0); err != nil {
		return err
	}
	if err := w.icXt.Compress(enc, w.lastXt, xt, 0); err != nil {
		return err
	}
	if err := w.icYt.Compress(enc, w.lastYt, yt, 0); err != nil {
		return err
	}
	if err := w.icZt.Compress(enc, w.lastZt, zt, 0); err != nil {
		return err
	}

	w.lastDescriptor = descriptor
	w.lastOffset = offset
	w.lastPacketSize = packetSize
	w.lastLocation = location
	w.lastXt, w.lastYt, w.lastZt = xt, yt, zt
	return nil
}

// NewWavePacketLayeredWriter/Reader build version 3 of WAVEPACKET13, the
// form used under the layered-chunked compressor (point formats 9, 10).
// The prediction scheme is identical to version 1; only the framing
// around the coded bytes changes.
func NewWavePacketLayeredWriter(version int) (LayeredWriter, error) {
	if version != 3 {
		return nil, &UnsupportedError{Kind: WavePacket13, Version: version}
	}
	c, err := newWavePacketCodec(1, false)
	if err != nil {
		return nil, err
	}
	return newSingleLayerWriter(&wavePacketWriter{c}, LayerWaveform), nil
}

func NewWavePacketLayeredReader(version int) (LayeredReader, error) {
	if version != 3 {
		return nil, &UnsupportedError{Kind: WavePacket13, Version: version}
	}
	c, err := newWavePacketCodec(1, true)
	if err != nil {
		return nil, err
	}
	return newSingleLayerReader(&wavePacketReader{c}, LayerWaveform), nil
}

type wavePacketReader struct{ *wavePacketCodec }

func NewWavePacketReader(version int) (CompressedReader, error) {
	c, err := newWavePacketCodec(version, true)
	if err != nil {
		return nil, err
	}
	return &wavePacketReader{c}, nil
}

func (r *wavePacketReader) Init(dec *entropy.Decoder, firstPoint []byte) error {
	r.seed(firstPoint)
	return nil
}

func (r *wavePacketReader) Decompress(dec *entropy.Decoder, p []byte) error {
	descSym, err := dec.DecodeSymbol(r.descriptorModel)
	if err != nil {
		return err
	}
	descriptor := uint8(descSym)
	ctx := r.descriptorCtx(descriptor)

	lo, err := r.icOffsetLo.Decompress(dec, int32(r.lastOffset&0xffffffff), ctx)
	if err != nil {
		return err
	}
	hi, err := r.icOffsetHi.Decompress(dec, int32(r.lastOffset>>32), ctx)
	if err != nil {
		return err
	}
	offset := uint64(uint32(hi))<<32 | uint64(uint32(lo))

	packetSize, err := r.icPacketSize.Decompress(dec, int32(r.lastPacketSize), 0)
	if err != nil {
		return err
	}
	location, err := r.icLocation.Decompress(dec, r.lastLocation, 0)
	if err != nil {
		return err
	}
	xt, err := r.icXt.Decompress(dec, r.lastXt, 0)
	if err != nil {
		return err
	}
	yt, err := r.icYt.Decompress(dec, r.lastYt, 0)
	if err != nil {
		return err
	}
	zt, err := r.icZt.Decompress(dec, r.lastZt, 0)
	if err != nil {
		return err
	}

	p[wp13Descriptor] = descriptor
	putU64(p, wp13Offset, offset)
	putU32(p, wp13PacketSize, uint32(packetSize))
	putI32(p, wp13Location, location)
	putI32(p, wp13Xt, xt)
	putI32(p, wp13Yt, yt)
	putI32(p, wp13Zt, zt)

	r.lastDescriptor = descriptor
	r.lastOffset = offset
	r.lastPacketSize = uint32(packetSize)
	r.lastLocation = location
	r.lastXt, r.lastYt, r.lastZt = xt, yt, zt
	return nil
}
