// Package itemcodec implements the per-field raw and compressed
// writers/readers for every point-item kind and version (spec C4).
// Each (Kind, version) pair is resolved through Registry rather than
// through virtual dispatch: construction fails early for a combination
// the codec doesn't recognise, instead of failing lazily at first use.
package itemcodec

import (
	"fmt"

	"github.com/jblindsay/lasz/internal/bytestream"
	"github.com/jblindsay/lasz/internal/entropy"
)

// Kind identifies one of the closed set of recognised point-item kinds.
type Kind int

const (
	Point10 Kind = iota
	GpsTime11
	Rgb12
	WavePacket13
	Byte
	Point14
	RgbNir14
)

func (k Kind) String() string {
	switch k {
	case Point10:
		return "POINT10"
	case GpsTime11:
		return "GPSTIME11"
	case Rgb12:
		return "RGB12"
	case WavePacket13:
		return "WAVEPACKET13"
	case Byte:
		return "BYTE"
	case Point14:
		return "POINT14"
	case RgbNir14:
		return "RGBNIR14"
	default:
		return "UNKNOWN"
	}
}

// Size returns the on-disk size in bytes of one instance of kind, or 0
// for Byte, whose size is caller-supplied (the "n" in BYTE(n)).
func (k Kind) Size() int {
	switch k {
	case Point10:
		return 20
	case GpsTime11:
		return 8
	case Rgb12:
		return 6
	case WavePacket13:
		return 29
	case Byte:
		return 0
	case Point14:
		return 30
	case RgbNir14:
		return 8
	default:
		return 0
	}
}

// Item describes one element of a point schema: its kind, its on-disk
// size (meaningful for Byte, where it is caller-chosen) and the
// compression strategy version selected for it.
type Item struct {
	Kind    Kind
	Size    int
	Version int
}

// RawWriter writes one item's raw (uncompressed) bytes for a single
// point. It is stateless beyond the stream pointer bound at creation.
type RawWriter interface {
	WriteRaw(out bytestream.Sink, point []byte) error
}

// RawReader is the symmetric counterpart of RawWriter.
type RawReader interface {
	ReadRaw(in bytestream.Source, point []byte) error
}

// CompressedWriter is the write side of a compressed item codec. Init
// seeds predictor state from the first point of a chunk, which is
// itself written raw; every later point is coded against the running
// prediction through enc.
type CompressedWriter interface {
	Init(enc *entropy.Encoder, firstPoint []byte) error
	Compress(enc *entropy.Encoder, point []byte) error
}

// CompressedReader is the read side of a compressed item codec.
type CompressedReader interface {
	Init(dec *entropy.Decoder, firstPoint []byte) error
	Decompress(dec *entropy.Decoder, point []byte) error
}

// LayeredWriter is the write side of a layered ("chunked-layered")
// item codec used by POINT14 and RGBNIR14: residuals for a whole chunk
// are buffered per layer and only emitted (with a byte-count table) at
// chunk end, enabling selective decompression.
type LayeredWriter interface {
	Init(firstPoint []byte) error
	Compress(point []byte) error
	// FlushLayers writes every layer's coded bytes (with a leading
	// per-layer byte-count table) into out and resets for the next chunk.
	FlushLayers(out bytestream.Sink) error
}

// LayeredReader is the read side of a layered item codec.
type LayeredReader interface {
	Init(firstPoint []byte) error
	// LoadLayers reads the byte-count table and every layer's bytes for
	// one chunk of count points (count-1 compressed points, since the
	// first point of the chunk is raw).
	LoadLayers(in bytestream.Source, count int, skip LayerSet) error
	Decompress(point []byte) error
}

// LayerSet is a set of POINT14/RGBNIR14 layers. LoadLayers (and
// pointcodec.Options.Skip) take it as the set of layers to skip: those
// are still consumed from the stream (their byte length is known from
// the table) but left unparsed, which is what makes selective
// decompression cheap.
type LayerSet uint32

const (
	LayerXY LayerSet = 1 << iota
	LayerZ
	LayerClassification
	LayerFlags
	LayerIntensity
	LayerScanAngle
	LayerUserData
	LayerGPSTime
	LayerPointSource
	LayerRGB
	LayerNIR
	LayerWaveform

	LayerAll = LayerXY | LayerZ | LayerClassification | LayerFlags |
		LayerIntensity | LayerScanAngle | LayerUserData | LayerGPSTime |
		LayerPointSource | LayerRGB | LayerNIR | LayerWaveform
)

// UnsupportedError reports an (Kind, version) combination Registry does
// not recognise.
type UnsupportedError struct {
	Kind    Kind
	Version int
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("itemcodec: unsupported %s version %d", e.Kind, e.Version)
}
