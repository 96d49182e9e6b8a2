package itemcodec

import "github.com/jblindsay/lasz/internal/bytestream"

// rawCodec is the identity raw writer/reader shared by every item kind:
// point bytes are already laid out little-endian on disk, so raw I/O
// is a straight copy. Go's binary.LittleEndian helpers used everywhere
// above this package already do the endian swap spec C1 calls for, so
// there's nothing host-dependent left to do here.
type rawCodec struct {
	off, size int
}

// NewRawWriter returns the raw writer for an item of size bytes, which
// reads its field out of point[off:off+size].
func NewRawWriter(off, size int) RawWriter { return rawCodec{off, size} }

// NewRawReader returns the raw reader for an item of size bytes, which
// fills point[off:off+size].
func NewRawReader(off, size int) RawReader { return rawCodec{off, size} }

func (c rawCodec) WriteRaw(out bytestream.Sink, point []byte) error {
	return out.WriteBytes(point[c.off : c.off+c.size])
}

func (c rawCodec) ReadRaw(in bytestream.Source, point []byte) error {
	b, err := in.ReadBytes(c.size)
	if err != nil {
		return err
	}
	copy(point[c.off:c.off+c.size], b)
	return nil
}
