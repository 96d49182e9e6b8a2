package itemcodec

import (
	"github.com/jblindsay/lasz/internal/entropy"
	"github.com/jblindsay/lasz/internal/intcompress"
)

// rgbCodec implements RGB12 versions 1 and 2, and is reused (with a
// fourth channel) for the RGB+NIR half of RGBNIR14. Version 1 deltas
// each 16-bit channel against the previous point directly. Version 2
// uses a two-byte prediction: it first transmits whether the channel's
// high byte changed from the previous point, then codes the low byte
// under a context keyed on that outcome — slowly varying colour spends
// almost no bits on the high byte at all (spec §4.4).
type rgbCodec struct {
	version  int
	channels int // 3 for RGB12, 4 for RGBNIR14 (R,G,B,NIR)

	last [4]uint16

	// v1
	icFull [4]*intcompress.Compressor // 1 context, full 16-bit delta

	// v2
	hiChangedModel [4]*entropy.SymbolModel // 2 symbols: high byte unchanged/changed
	icHi           [4]*intcompress.Compressor
	icLo           [4]*intcompress.Compressor // 2 contexts: keyed on hi-byte-changed
}

func newRGBCodec(kind Kind, version int, channels int, forDecode bool) (*rgbCodec, error) {
	if version != 1 && version != 2 {
		return nil, &UnsupportedError{Kind: kind, Version: version}
	}
	c := &rgbCodec{version: version, channels: channels}
	for i := 0; i < channels; i++ {
		if version == 1 {
			c.icFull[i] = intcompress.New(1, 16, forDecode)
			continue
		}
		c.hiChangedModel[i] = entropy.NewBitModel(14, forDecode)
		c.hiChangedModel[i].Init()
		c.icHi[i] = intcompress.New(1, 8, forDecode)
		c.icLo[i] = intcompress.New(2, 8, forDecode)
	}
	return c, nil
}

func (c *rgbCodec) seed(p []byte) {
	for i := 0; i < c.channels; i++ {
		c.last[i] = getU16(p, i*2)
	}
}

type rgbWriter struct{ *rgbCodec }
type rgbReader struct{ *rgbCodec }

// NewRgb12Writer/Reader build the plain 3-channel RGB12 codec.
func NewRgb12Writer(version int) (CompressedWriter, error) {
	c, err := newRGBCodec(Rgb12, version, 3, false)
	if err != nil {
		return nil, err
	}
	return &rgbWriter{c}, nil
}

func NewRgb12Reader(version int) (CompressedReader, error) {
	c, err := newRGBCodec(Rgb12, version, 3, true)
	if err != nil {
		return nil, err
	}
	return &rgbReader{c}, nil
}

// NewRgbNir14Writer/Reader build the 4-channel RGB+NIR codec used by
// RGBNIR14; it always uses the version-2 two-byte prediction scheme,
// since RGBNIR14 only appears alongside layered point formats.
func NewRgbNir14Writer() (CompressedWriter, error) {
	c, err := newRGBCodec(RgbNir14, 2, 4, false)
	if err != nil {
		return nil, err
	}
	return &rgbWriter{c}, nil
}

func NewRgbNir14Reader() (CompressedReader, error) {
	c, err := newRGBCodec(RgbNir14, 2, 4, true)
	if err != nil {
		return nil, err
	}
	return &rgbReader{c}, nil
}

// NewRgb12LayeredWriter/Reader build version 3 of RGB12, the form used
// under the layered-chunked compressor (point format 7). It
// reuses the version-2 prediction scheme but moves the coded bytes into
// their own chunk layer behind a byte-count table, same as RGBNIR14.
func NewRgb12LayeredWriter(version int) (LayeredWriter, error) {
	if version != 3 {
		return nil, &UnsupportedError{Kind: Rgb12, Version: version}
	}
	c, err := newRGBCodec(Rgb12, 2, 3, false)
	if err != nil {
		return nil, err
	}
	return newSingleLayerWriter(&rgbWriter{c}, LayerRGB), nil
}

func NewRgb12LayeredReader(version int) (LayeredReader, error) {
	if version != 3 {
		return nil, &UnsupportedError{Kind: Rgb12, Version: version}
	}
	c, err := newRGBCodec(Rgb12, 2, 3, true)
	if err != nil {
		return nil, err
	}
	return newSingleLayerReader(&rgbReader{c}, LayerRGB), nil
}

func (w *rgbWriter) Init(enc *entropy.Encoder, firstPoint []byte) error {
	w.seed(firstPoint)
	return nil
}

func (w *rgbWriter) Compress(enc *entropy.Encoder, p []byte) error {
	return w.compressInto(enc, p, w.channels)
}

// compressInto codes the first n channels of p (n <= w.channels), used
// directly by the plain writer and, with n split across two calls, by
// the layered RGBNIR14 writer so each channel group lands in its own
// layer stream.
func (w *rgbWriter) compressInto(enc *entropy.Encoder, p []byte, n int) error {
	for i := 0; i < n; i++ {
		v := getU16(p, i*2)
		if w.version == 1 {
			if err := w.icFull[i].Compress(enc, int32(w.last[i]), int32(v), 0); err != nil {
				return err
			}
			w.last[i] = v
			continue
		}
		hiOld := uint8(w.last[i] >> 8)
		hiNew := uint8(v >> 8)
		loOld := uint8(w.last[i])
		loNew := uint8(v)

		changed := uint32(0)
		if hiNew != hiOld {
			changed = 1
		}
		if err := enc.EncodeSymbol(w.hiChangedModel[i], changed); err != nil {
			return err
		}
		if changed == 1 {
			if err := w.icHi[i].Compress(enc, int32(hiOld), int32(hiNew), 0); err != nil {
				return err
			}
		}
		if err := w.icLo[i].Compress(enc, int32(loOld), int32(loNew), changed); err != nil {
			return err
		}
		w.last[i] = v
	}
	return nil
}

func (r *rgbReader) Init(dec *entropy.Decoder, firstPoint []byte) error {
	r.seed(firstPoint)
	return nil
}

func (r *rgbReader) Decompress(dec *entropy.Decoder, p []byte) error {
	return r.decompressInto(dec, p, r.channels)
}

// decompressInto is the read-side counterpart of rgbWriter.compressInto.
func (r *rgbReader) decompressInto(dec *entropy.Decoder, p []byte, n int) error {
	for i := 0; i < n; i++ {
		if r.version == 1 {
			v, err := r.icFull[i].Decompress(dec, int32(r.last[i]), 0)
			if err != nil {
				return err
			}
			if v < 0 || v > 0xffff {
				return &desyncError{"RGB channel"}
			}
			putU16(p, i*2, uint16(v))
			r.last[i] = uint16(v)
			continue
		}
		hiOld := uint8(r.last[i] >> 8)
		loOld := uint8(r.last[i])

		changed, err := dec.DecodeSymbol(r.hiChangedModel[i])
		if err != nil {
			return err
		}
		hiNew := hiOld
		if changed == 1 {
			hiV, err := r.icHi[i].Decompress(dec, int32(hiOld), 0)
			if err != nil {
				return err
			}
			if hiV < 0 || hiV > 0xff {
				return &desyncError{"RGB high byte"}
			}
			hiNew = uint8(hiV)
		}
		loV, err := r.icLo[i].Decompress(dec, int32(loOld), changed)
		if err != nil {
			return err
		}
		if loV < 0 || loV > 0xff {
			return &desyncError{"RGB low byte"}
		}
		v := uint16(hiNew)<<8 | uint16(uint8(loV))
		putU16(p, i*2, v)
		r.last[i] = v
	}
	return nil
}
