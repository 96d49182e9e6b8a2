package itemcodec

// Registry resolves (Kind, version) pairs to constructors instead of
// relying on runtime interface dispatch (spec: "sum-type + function
// table" design note). Construction fails with UnsupportedError for any
// combination not in the matrix below, instead of surfacing a confusing
// failure the first time the codec is used.

// NewRawCodec builds the raw writer/reader pair for item at byte offset
// off within the point record.
func NewRawCodec(item Item, off int) (RawWriter, RawReader) {
	size := item.Kind.Size()
	if item.Kind == Byte {
		size = item.Size
	}
	return NewRawWriter(off, size), NewRawReader(off, size)
}

// NewCompressedWriter resolves the pointwise (non-layered) compressed
// writer for item. Point14 and a layered RgbNir14 are not pointwise;
// callers wanting those must use NewLayeredWriter instead.
func NewCompressedWriter(item Item) (CompressedWriter, error) {
	switch item.Kind {
	case Point10:
		return NewPoint10Writer(item.Version)
	case GpsTime11:
		return NewGpsTimeWriter(item.Version)
	case Rgb12:
		return NewRgb12Writer(item.Version)
	case WavePacket13:
		return NewWavePacketWriter(item.Version)
	case Byte:
		return NewByteWriter(item.Version, item.Size)
	case RgbNir14:
		return NewRgbNir14Writer()
	default:
		return nil, &UnsupportedError{Kind: item.Kind, Version: item.Version}
	}
}

// NewCompressedReader is the read-side counterpart of NewCompressedWriter.
func NewCompressedReader(item Item) (CompressedReader, error) {
	switch item.Kind {
	case Point10:
		return NewPoint10Reader(item.Version)
	case GpsTime11:
		return NewGpsTimeReader(item.Version)
	case Rgb12:
		return NewRgb12Reader(item.Version)
	case WavePacket13:
		return NewWavePacketReader(item.Version)
	case Byte:
		return NewByteReader(item.Version, item.Size)
	case RgbNir14:
		return NewRgbNir14Reader()
	default:
		return nil, &UnsupportedError{Kind: item.Kind, Version: item.Version}
	}
}

// NewLayeredWriter resolves the layered ("chunked-layered") compressed
// writer for item, used when the schema's compressor is layered-chunked
// (required for point formats 6-10, spec §3).
func NewLayeredWriter(item Item) (LayeredWriter, error) {
	switch item.Kind {
	case Point14:
		return NewPoint14Writer(item.Version)
	case RgbNir14:
		return NewRgbNir14LayeredWriter()
	case Rgb12:
		return NewRgb12LayeredWriter(item.Version)
	case WavePacket13:
		return NewWavePacketLayeredWriter(item.Version)
	default:
		return nil, &UnsupportedError{Kind: item.Kind, Version: item.Version}
	}
}

// NewLayeredReader is the read-side counterpart of NewLayeredWriter.
func NewLayeredReader(item Item) (LayeredReader, error) {
	switch item.Kind {
	case Point14:
		return NewPoint14Reader(item.Version)
	case RgbNir14:
		return NewRgbNir14LayeredReader()
	case Rgb12:
		return NewRgb12LayeredReader(item.Version)
	case WavePacket13:
		return NewWavePacketLayeredReader(item.Version)
	default:
		return nil, &UnsupportedError{Kind: item.Kind, Version: item.Version}
	}
}

// IsLayered reports whether kind is only ever coded through the layered
// path (spec §4.4: "required for point format >= 6").
func IsLayered(kind Kind) bool {
	return kind == Point14
}
