package itemcodec

import (
	"github.com/jblindsay/lasz/internal/bytestream"
)

// rgbNir14Layered implements the layered form of RGBNIR14, used whenever
// the schema's compressor is layered-chunked (required for point
// formats 6-10, spec §3). It reuses rgbCodec's per-channel prediction
// but runs the RGB channels and the NIR channel through two
// independent layer streams, mirroring POINT14's layer split.
type rgbNir14Layered struct {
	rgb *rgbCodec // channels=3
	nir *rgbCodec // channels=1
}

func newRGBNir14Layered(forDecode bool) (*rgbNir14Layered, error) {
	rgb, err := newRGBCodec(RgbNir14, 2, 3, forDecode)
	if err != nil {
		return nil, err
	}
	nir, err := newRGBCodec(RgbNir14, 2, 1, forDecode)
	if err != nil {
		return nil, err
	}
	return &rgbNir14Layered{rgb: rgb, nir: nir}, nil
}

func (c *rgbNir14Layered) seed(p []byte) {
	for i := 0; i < 3; i++ {
		c.rgb.last[i] = getU16(p, i*2)
	}
	c.nir.last[0] = getU16(p, 3*2)
}

type rgbNir14LayeredWriter struct {
	*rgbNir14Layered
	rgbLayer, nirLayer *layerSink
}

func NewRgbNir14LayeredWriter() (LayeredWriter, error) {
	c, err := newRGBNir14Layered(false)
	if err != nil {
		return nil, err
	}
	return &rgbNir14LayeredWriter{rgbNir14Layered: c}, nil
}

func (w *rgbNir14LayeredWriter) Init(firstPoint []byte) error {
	w.seed(firstPoint)
	w.rgbLayer = newLayerSink()
	w.nirLayer = newLayerSink()
	if err := w.rgbLayer.start(); err != nil {
		return err
	}
	return w.nirLayer.start()
}

func (w *rgbNir14LayeredWriter) Compress(p []byte) error {
	rw := rgbWriter{w.rgb}
	if err := rw.compressInto(w.rgbLayer.enc, p[:6], 3); err != nil {
		return err
	}
	nw := rgbWriter{w.nir}
	return nw.compressInto(w.nirLayer.enc, p[6:8], 1)
}

func (w *rgbNir14LayeredWriter) FlushLayers(out bytestream.Sink) error {
	if _, err := w.rgbLayer.enc.Done(); err != nil {
		return err
	}
	if _, err := w.nirLayer.enc.Done(); err != nil {
		return err
	}
	if err := out.WriteU32(uint32(w.rgbLayer.buf.Len())); err != nil {
		return err
	}
	if err := out.WriteU32(uint32(w.nirLayer.buf.Len())); err != nil {
		return err
	}
	if err := out.WriteBytes(w.rgbLayer.buf.Bytes()); err != nil {
		return err
	}
	if err := out.WriteBytes(w.nirLayer.buf.Bytes()); err != nil {
		return err
	}
	w.rgbLayer = newLayerSink()
	w.nirLayer = newLayerSink()
	if err := w.rgbLayer.start(); err != nil {
		return err
	}
	return w.nirLayer.start()
}

type rgbNir14LayeredReader struct {
	*rgbNir14Layered
	rgbLayer, nirLayer *layerSource
	rgbActive, nirActive bool
}

func NewRgbNir14LayeredReader() (LayeredReader, error) {
	c, err := newRGBNir14Layered(true)
	if err != nil {
		return nil, err
	}
	return &rgbNir14LayeredReader{rgbNir14Layered: c}, nil
}

func (r *rgbNir14LayeredReader) Init(firstPoint []byte) error {
	r.seed(firstPoint)
	return nil
}

func (r *rgbNir14LayeredReader) LoadLayers(in bytestream.Source, count int, skip LayerSet) error {
	rgbLen, err := in.ReadU32()
	if err != nil {
		return err
	}
	nirLen, err := in.ReadU32()
	if err != nil {
		return err
	}
	rgbBytes, err := in.ReadBytes(int(rgbLen))
	if err != nil {
		return err
	}
	nirBytes, err := in.ReadBytes(int(nirLen))
	if err != nil {
		return err
	}
	r.rgbActive = skip&LayerRGB == 0
	r.nirActive = skip&LayerNIR == 0
	if r.rgbActive {
		r.rgbLayer = newLayerSource(rgbBytes)
		if err := r.rgbLayer.start(); err != nil {
			return err
		}
	}
	if r.nirActive {
		r.nirLayer = newLayerSource(nirBytes)
		if err := r.nirLayer.start(); err != nil {
			return err
		}
	}
	return nil
}

func (r *rgbNir14LayeredReader) Decompress(p []byte) error {
	if r.rgbActive {
		rr := rgbReader{r.rgb}
		if err := rr.decompressInto(r.rgbLayer.dec, p[:6], 3); err != nil {
			return err
		}
	}
	if r.nirActive {
		nr := rgbReader{r.nir}
		if err := nr.decompressInto(r.nirLayer.dec, p[6:8], 1); err != nil {
			return err
		}
	}
	return nil
}
