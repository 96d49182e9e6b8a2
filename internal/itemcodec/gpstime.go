package itemcodec

import (
	"math"

	"github.com/jblindsay/lasz/internal/entropy"
	"github.com/jblindsay/lasz/internal/intcompress"
)

// numGpsTracks is the number of concurrent GPS-time tracks version 2
// maintains, one per recently active scanner channel (spec §4.4).
const numGpsTracks = 4

// gpsTimeCodec implements GPSTIME11 versions 1 and 2. Version 1 codes a
// single running delta; version 2 keeps up to numGpsTracks independent
// delta tracks and switches between them by detecting which track a new
// time most nearly continues, coding the switch indicator with its own
// small adaptive model.
type gpsTimeCodec struct {
	version int

	// v1 state
	lastTime  uint64
	lastDelta int64
	icDeltaV1 *intcompress.Compressor // 1 context, shared by the low and high 32-bit halves of the time

	// v2 multi-track state
	tracks      [numGpsTracks]uint64
	trackDeltas [numGpsTracks]int64
	active      int
	switchModel *entropy.SymbolModel // numGpsTracks+1 symbols: stay, or switch to track i
	icDeltaV2   *intcompress.Compressor
}

func newGpsTimeCodec(version int, forDecode bool) (*gpsTimeCodec, error) {
	if version != 1 && version != 2 {
		return nil, &UnsupportedError{Kind: GpsTime11, Version: version}
	}
	c := &gpsTimeCodec{version: version}
	if version == 1 {
		c.icDeltaV1 = intcompress.New(1, 32, forDecode)
		return c, nil
	}
	c.icDeltaV2 = intcompress.New(uint32(numGpsTracks), 32, forDecode)
	c.switchModel = entropy.NewSymbolModel(numGpsTracks+1, 14, forDecode)
	c.switchModel.Init()
	return c, nil
}

func (c *gpsTimeCodec) seedV1(p []byte) {
	c.lastTime = getU64(p, 0)
	c.lastDelta = 0
}

func (c *gpsTimeCodec) seedV2(p []byte) {
	t := getU64(p, 0)
	for i := range c.tracks {
		c.tracks[i] = t
		c.trackDeltas[i] = 0
	}
	c.active = 0
}

// bestTrack finds the track whose extrapolated next value is closest to
// actual, used only on the writer side to pick a track; the decoder
// instead reads the explicit switch symbol the writer coded.
func (c *gpsTimeCodec) bestTrack(actual uint64) int {
	best, bestDiff := 0, uint64(math.MaxUint64)
	for i := range c.tracks {
		pred := c.tracks[i] + uint64(c.trackDeltas[i])
		var diff uint64
		if pred > actual {
			diff = pred - actual
		} else {
			diff = actual - pred
		}
		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}

type gpsTimeWriter struct{ *gpsTimeCodec }

func NewGpsTimeWriter(version int) (CompressedWriter, error) {
	c, err := newGpsTimeCodec(version, false)
	if err != nil {
		return nil, err
	}
	return &gpsTimeWriter{c}, nil
}

func (w *gpsTimeWriter) Init(enc *entropy.Encoder, firstPoint []byte) error {
	if w.version == 1 {
		w.seedV1(firstPoint)
	} else {
		w.seedV2(firstPoint)
	}
	return nil
}

func (w *gpsTimeWriter) Compress(enc *entropy.Encoder, p []byte) error {
	t := getU64(p, 0)
	if w.version == 1 {
		pred := int64(w.lastTime) + w.lastDelta
		if e := w.icDeltaV1.Compress(enc, int32(pred&0xffffffff), int32(int64(t)&0xffffffff), 0); e != nil {
			return e
		}
		hi32 := int32(int64(t) >> 32)
		predHi := int32(pred >> 32)
		if e := w.icDeltaV1.Compress(enc, predHi, hi32, 0); e != nil {
			return e
		}
		w.lastDelta = int64(t) - int64(w.lastTime)
		w.lastTime = t
		return nil
	}

	track := w.bestTrack(t)
	sw := uint32(numGpsTracks) // "stay on active track" symbol
	if track != w.active {
		sw = uint32(track)
		w.active = track
	}
	if err := enc.EncodeSymbol(w.switchModel, sw); err != nil {
		return err
	}
	pred := int64(w.tracks[w.active]) + w.trackDeltas[w.active]
	if err := w.icDeltaV2.Compress(enc, int32(pred&0xffffffff), int32(int64(t)&0xffffffff), uint32(w.active)); err != nil {
		return err
	}
	if err := w.icDeltaV2.Compress(enc, int32(pred>>32), int32(int64(t)>>32), uint32(w.active)); err != nil {
		return err
	}
	w.trackDeltas[w.active] = int64(t) - int64(w.tracks[w.active])
	w.tracks[w.active] = t
	return nil
}

type gpsTimeReader struct{ *gpsTimeCodec }

func NewGpsTimeReader(version int) (CompressedReader, error) {
	c, err := newGpsTimeCodec(version, true)
	if err != nil {
		return nil, err
	}
	return &gpsTimeReader{c}, nil
}

func (r *gpsTimeReader) Init(dec *entropy.Decoder, firstPoint []byte) error {
	if r.version == 1 {
		r.seedV1(firstPoint)
	} else {
		r.seedV2(firstPoint)
	}
	return nil
}

func (r *gpsTimeReader) Decompress(dec *entropy.Decoder, p []byte) error {
	if r.version == 1 {
		pred := int64(r.lastTime) + r.lastDelta
		lo, err := r.icDeltaV1.Decompress(dec, int32(pred&0xffffffff), 0)
		if err != nil {
			return err
		}
		hi, err := r.icDeltaV1.Decompress(dec, int32(pred>>32), 0)
		if err != nil {
			return err
		}
		t := uint64(uint32(lo)) | (uint64(uint32(hi)) << 32)
		putU64(p, 0, t)
		r.lastDelta = int64(t) - int64(r.lastTime)
		r.lastTime = t
		return nil
	}

	sw, err := dec.DecodeSymbol(r.switchModel)
	if err != nil {
		return err
	}
	if sw != numGpsTracks {
		r.active = int(sw)
	}
	pred := int64(r.tracks[r.active]) + r.trackDeltas[r.active]
	lo, err := r.icDeltaV2.Decompress(dec, int32(pred&0xffffffff), uint32(r.active))
	if err != nil {
		return err
	}
	hi, err := r.icDeltaV2.Decompress(dec, int32(pred>>32), uint32(r.active))
	if err != nil {
		return err
	}
	t := uint64(uint32(lo)) | (uint64(uint32(hi)) << 32)
	putU64(p, 0, t)
	r.trackDeltas[r.active] = int64(t) - int64(r.tracks[r.active])
	r.tracks[r.active] = t
	return nil
}
