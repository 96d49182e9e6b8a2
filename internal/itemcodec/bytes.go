package itemcodec

import (
	"github.com/jblindsay/lasz/internal/entropy"
	"github.com/jblindsay/lasz/internal/intcompress"
)

// byteCodec implements the compressed BYTE(n) item: n opaque
// "extra bytes" carried verbatim by the point record. Version 1 gives
// every byte position its own single-context compressor. Version 2
// gives each byte position two contexts, chosen by whether that same
// position's value changed between the two previous points; no byte
// position is conditioned on the value of another.
type byteCodec struct {
	version int
	n       int

	last []byte

	ic []*intcompress.Compressor // length n; 1 context (v1) or 2 (v2)
}

func newByteCodec(version, n int, forDecode bool) (*byteCodec, error) {
	if version != 1 && version != 2 {
		return nil, &UnsupportedError{Kind: Byte, Version: version}
	}
	c := &byteCodec{version: version, n: n, last: make([]byte, n)}
	c.ic = make([]*intcompress.Compressor, n)
	ctxs := uint32(1)
	if version == 2 {
		ctxs = 2
	}
	for i := 0; i < n; i++ {
		c.ic[i] = intcompress.New(ctxs, 8, forDecode)
	}
	return c, nil
}

func (c *byteCodec) seed(p []byte) { copy(c.last, p[:c.n]) }

// byteWriter keeps, for version 2, each byte position's value from two
// points back, so the context of byte i (did it change between the two
// previous points?) depends only on values the reader already has.
type byteWriter struct {
	*byteCodec
	prevPrev []byte // value of each byte two points back, for v2 context
}

func NewByteWriter(version, n int) (CompressedWriter, error) {
	c, err := newByteCodec(version, n, false)
	if err != nil {
		return nil, err
	}
	w := &byteWriter{byteCodec: c}
	if version == 2 {
		w.prevPrev = make([]byte, n)
	}
	return w, nil
}

func (w *byteWriter) Init(enc *entropy.Encoder, firstPoint []byte) error {
	w.seed(firstPoint)
	if w.prevPrev != nil {
		copy(w.prevPrev, firstPoint[:w.n])
	}
	return nil
}

func (w *byteWriter) Compress(enc *entropy.Encoder, p []byte) error {
	for i := 0; i < w.n; i++ {
		v := p[i]
		ctx := uint32(0)
		if w.version == 2 && w.last[i] != w.prevPrev[i] {
			ctx = 1
		}
		if err := w.ic[i].Compress(enc, int32(w.last[i]), int32(v), ctx); err != nil {
			return err
		}
		if w.prevPrev != nil {
			w.prevPrev[i] = w.last[i]
		}
		w.last[i] = v
	}
	return nil
}

type byteReader struct {
	*byteCodec
	prevPrev []byte
}

func NewByteReader(version, n int) (CompressedReader, error) {
	c, err := newByteCodec(version, n, true)
	if err != nil {
		return nil, err
	}
	r := &byteReader{byteCodec: c}
	if version == 2 {
		r.prevPrev = make([]byte, n)
	}
	return r, nil
}

func (r *byteReader) Init(dec *entropy.Decoder, firstPoint []byte) error {
	r.seed(firstPoint)
	if r.prevPrev != nil {
		copy(r.prevPrev, firstPoint[:r.n])
	}
	return nil
}

func (r *byteReader) Decompress(dec *entropy.Decoder, p []byte) error {
	for i := 0; i < r.n; i++ {
		ctx := uint32(0)
		if r.version == 2 && r.last[i] != r.prevPrev[i] {
			ctx = 1
		}
		v, err := r.ic[i].Decompress(dec, int32(r.last[i]), ctx)
		if err != nil {
			return err
		}
		if v < 0 || v > 0xff {
			return &desyncError{"BYTE field"}
		}
		p[i] = byte(v)
		if r.prevPrev != nil {
			r.prevPrev[i] = r.last[i]
		}
		r.last[i] = byte(v)
	}
	return nil
}
