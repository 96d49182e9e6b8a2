package itemcodec

import (
	"github.com/jblindsay/lasz/internal/bytestream"
)

// singleLayerWriter promotes a plain CompressedWriter into a LayeredWriter
// that writes its output as one layer behind the usual byte-count table.
// RGB12 and WAVEPACKET13 keep a single prediction context across a whole
// chunk the same way under both compressors; the only thing the layered
// form changes is that the coded bytes move from the shared point stream
// into their own framed layer, which is what lets a reader skip them.
type singleLayerWriter struct {
	inner CompressedWriter
	layer *layerSink
	bit   LayerSet
}

func newSingleLayerWriter(inner CompressedWriter, bit LayerSet) *singleLayerWriter {
	return &singleLayerWriter{inner: inner, bit: bit}
}

func (w *singleLayerWriter) Init(firstPoint []byte) error {
	w.layer = newLayerSink()
	if err := w.layer.start(); err != nil {
		return err
	}
	return w.inner.Init(w.layer.enc, firstPoint)
}

func (w *singleLayerWriter) Compress(point []byte) error {
	return w.inner.Compress(w.layer.enc, point)
}

func (w *singleLayerWriter) FlushLayers(out bytestream.Sink) error {
	if _, err := w.layer.enc.Done(); err != nil {
		return err
	}
	if err := out.WriteU32(uint32(w.layer.buf.Len())); err != nil {
		return err
	}
	if err := out.WriteBytes(w.layer.buf.Bytes()); err != nil {
		return err
	}
	w.layer = newLayerSink()
	return w.layer.start()
}

// singleLayerReader is the read-side counterpart of singleLayerWriter.
type singleLayerReader struct {
	inner      CompressedReader
	layer      *layerSource
	bit        LayerSet
	active     bool
	firstPoint []byte
}

func newSingleLayerReader(inner CompressedReader, bit LayerSet) *singleLayerReader {
	return &singleLayerReader{inner: inner, bit: bit}
}

func (r *singleLayerReader) Init(firstPoint []byte) error {
	// The inner codec seeds its prediction state from firstPoint in
	// LoadLayers, once that chunk's layer decoder exists.
	r.firstPoint = firstPoint
	return nil
}

func (r *singleLayerReader) LoadLayers(in bytestream.Source, count int, skip LayerSet) error {
	n, err := in.ReadU32()
	if err != nil {
		return err
	}
	b, err := in.ReadBytes(int(n))
	if err != nil {
		return err
	}
	r.active = skip&r.bit == 0
	if !r.active {
		return nil
	}
	r.layer = newLayerSource(b)
	if err := r.layer.start(); err != nil {
		return err
	}
	return r.inner.Init(r.layer.dec, r.firstPoint)
}

func (r *singleLayerReader) Decompress(point []byte) error {
	if !r.active {
		return nil
	}
	return r.inner.Decompress(r.layer.dec, point)
}
