package lidario

import (
	"errors"
	"os"
	"sync"

	"github.com/jblindsay/lasz/internal/bytestream"
	"github.com/jblindsay/lasz/internal/entropy"
	"github.com/jblindsay/lasz/internal/itemcodec"
	"github.com/jblindsay/lasz/internal/pointcodec"
)

// wrapPointErr classifies an error surfacing from the point codec: a
// corrupted entropy-model invariant gets its own Kind so callers can
// tell stream desync apart from a plain I/O failure, everything else
// stays a generic IoError.
func wrapPointErr(err error) error {
	if errors.Is(err, entropy.ErrInvariant) {
		return newErr(CoderInvariantViolated, "point", -1, err)
	}
	return newErr(IoError, "point", -1, err)
}

// DefaultChunkSize is the points-per-chunk used by a freshly created
// LazFile when ChunkSize is left zero (spec §3: LASzip's own default).
const DefaultChunkSize int32 = 50000

// LazFile is a compressed LAS (LAZ) reader/writer: a thin wrapper over
// internal/pointcodec that owns the file handle, header, VLRs and the
// LASzip schema describing how the point stream is chunked and coded.
type LazFile struct {
	fileName string
	file     *os.File

	Header Header
	VLRs   []VLR
	EVLRs  []EVLR
	Schema *Schema

	// ChunkSize is consulted by a write-mode LazFile on its first
	// WritePoint call; zero means DefaultChunkSize. VariableChunkSize is
	// rejected for point formats 0-5. Ignored once sealed.
	ChunkSize int32
	// Skip is the set of POINT14/RGBNIR14 layers a read-mode LazFile
	// decodes; layers outside it are still consumed but not parsed. The
	// decoder is built inside NewLazFile with Skip set to LayerAll, so
	// every layer is decoded and changing Skip afterwards has no effect.
	Skip itemcodec.LayerSet
	// VerifyChunks turns on per-chunk xxhash digesting for diffing two
	// independent decodes of the same stream.
	VerifyChunks bool

	src  bytestream.Source
	sink bytestream.Sink

	writer *pointcodec.Writer
	reader *pointcodec.Reader

	recordLength int
	stats        pointStats

	currentPoint int64
	sealed       bool

	mu sync.RWMutex
}

// NewLazFile opens fileName for reading ("r") or prepares it for
// writing ("w"): in write mode the caller fills in Header, ChunkSize
// and VLRs, then the first WritePoint call seals the header, LASzip
// VLR and point stream.
func NewLazFile(fileName, mode string) (*LazFile, error) {
	switch mode {
	case "r":
		return openLazFileForRead(fileName)
	case "w":
		f, err := os.Create(fileName)
		if err != nil {
			return nil, newErr(IoError, fileName, -1, err)
		}
		lf := &LazFile{fileName: fileName, file: f, sink: bytestream.NewWriterSink(f)}
		lf.Header.SetSystemID("lasz")
		lf.Header.SetGeneratingSoftware("lasz")
		lf.Header.VersionMajor, lf.Header.VersionMinor = 1, 4
		lf.Header.XScaleFactor, lf.Header.YScaleFactor, lf.Header.ZScaleFactor = 0.01, 0.01, 0.01
		return lf, nil
	default:
		return nil, newErr(WrongState, "LazFile mode "+mode, -1, nil)
	}
}

func openLazFileForRead(fileName string) (*LazFile, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, newErr(IoError, fileName, -1, err)
	}
	src := bytestream.NewReaderSource(f)
	h, err := ReadHeader(src)
	if err != nil {
		f.Close()
		return nil, err
	}
	if !h.Compressed {
		f.Close()
		return nil, newErr(UnsupportedVersion, "LazFile: file is not LAZ-compressed, use NewLasFile", -1, nil)
	}
	lf := &LazFile{fileName: fileName, file: f, src: src, Header: *h, sealed: true, Skip: itemcodec.LayerAll}
	for i := uint32(0); i < h.NumberOfVLRs; i++ {
		v, err := readVLR(src, int64(h.OffsetToPointData))
		if err != nil {
			f.Close()
			return nil, err
		}
		lf.VLRs = append(lf.VLRs, *v)
	}
	_, schema, err := ResolveItems(h, lf.VLRs)
	if err != nil {
		f.Close()
		return nil, err
	}
	if schema == nil {
		f.Close()
		return nil, newErr(SchemaMismatch, "LAZ file missing LASzip VLR", -1, nil)
	}
	lf.Schema = schema
	lf.recordLength = 0
	for _, it := range schema.Items {
		lf.recordLength += int(it.Size)
	}
	if err := src.Seek(int64(h.OffsetToPointData)); err != nil {
		f.Close()
		return nil, err
	}
	opts, err := schemaToOptions(schema, itemcodec.LayerAll&^lf.Skip, lf.VerifyChunks)
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := pointcodec.NewReader(opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := r.Init(src); err != nil {
		f.Close()
		return nil, err
	}
	lf.reader = r
	if h.StartOfFirstEVLR != 0 {
		if err := readTrailingEVLRs(src, h.StartOfFirstEVLR, h.NumberOfEVLRs, &lf.EVLRs); err != nil {
			f.Close()
			return nil, err
		}
	}
	return lf, nil
}

// modeForCompressor maps the LASzip VLR's compressor field to the
// chunking strategy internal/pointcodec actually implements.
func modeForCompressor(c Compressor) pointcodec.Mode {
	switch c {
	case CompressorPointwise:
		return pointcodec.ModePointwise
	case CompressorPointwiseChunked:
		return pointcodec.ModePointwiseChunked
	case CompressorLayeredChunked:
		return pointcodec.ModeLayeredChunked
	default:
		return pointcodec.ModeNone
	}
}

func itemsToCodecItems(items []SchemaItem) ([]itemcodec.Item, error) {
	out := make([]itemcodec.Item, len(items))
	for i, it := range items {
		kind, ok := kindFor(it.Type)
		if !ok {
			return nil, newErr(SchemaMismatch, "item type", -1, nil)
		}
		out[i] = itemcodec.Item{Kind: kind, Size: int(it.Size), Version: int(it.Version)}
	}
	return out, nil
}

func schemaToOptions(s *Schema, skip itemcodec.LayerSet, verify bool) (pointcodec.Options, error) {
	items, err := itemsToCodecItems(s.Items)
	if err != nil {
		return pointcodec.Options{}, err
	}
	return pointcodec.Options{
		Items:        items,
		Mode:         modeForCompressor(s.Compressor),
		ChunkSize:    s.ChunkSize,
		Skip:         skip,
		VerifyChunks: verify,
	}, nil
}

// defaultSchemaForFormat builds the LASzip schema this module writes
// for a fresh point format: pointwise-chunked for legacy formats 0-5,
// layered-chunked for extended formats 6-10 (spec §3, "required for
// point format >= 6").
func defaultSchemaForFormat(format uint8, chunkSize int32, lasMajor, lasMinor uint8) (*Schema, error) {
	items := itemsForFormat(format)
	if items == nil {
		return nil, newErr(UnsupportedVersion, "point format", -1, nil)
	}
	compressor := CompressorPointwiseChunked
	if format >= 6 {
		compressor = CompressorLayeredChunked
	}
	s := &Schema{
		Compressor:      compressor,
		Coder:           CoderArithmetic,
		VersionMajor:    3,
		VersionMinor:    4,
		VersionRevision: 0,
		ChunkSize:       chunkSize,
		Items:           make([]SchemaItem, len(items)),
	}
	for i, it := range items {
		kind := itemcodec.Kind(it.Type)
		s.Items[i] = SchemaItem{Type: it.Type, Size: it.Size, Version: uint16(DefaultVersion(kind, compressor, lasMajor, lasMinor))}
	}
	return s, nil
}

// AddVLR appends a VLR to be written ahead of the point stream (besides
// the LASzip schema VLR this module adds itself). Only valid before the
// first WritePoint call.
func (lf *LazFile) AddVLR(v VLR) error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.sealed {
		return newErr(WrongState, "LazFile.AddVLR after point data started", -1, nil)
	}
	lf.VLRs = append(lf.VLRs, v)
	return nil
}

func (lf *LazFile) seal() error {
	if lf.sealed {
		return nil
	}
	chunkSize := lf.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	schema, err := defaultSchemaForFormat(lf.Header.PointDataFormatID, chunkSize, lf.Header.VersionMajor, lf.Header.VersionMinor)
	if err != nil {
		return err
	}
	if chunkSize == pointcodec.VariableChunkSize && schema.Compressor != CompressorLayeredChunked {
		return newErr(UnsupportedVersion, "LazFile.ChunkSize: variable chunking needs point format 6-10", -1, nil)
	}
	lf.Schema = schema
	lf.recordLength = 0
	for _, it := range schema.Items {
		lf.recordLength += int(it.Size)
	}

	lf.Header.FileSignature = [4]byte{'L', 'A', 'S', 'F'}
	lf.Header.Compressed = true
	lf.Header.PointRecordLength = uint16(lf.recordLength)
	if lf.Header.HeaderSize == 0 {
		lf.Header.HeaderSize = minHeaderSize(lf.Header.VersionMajor, lf.Header.VersionMinor)
	}

	laszip := &VLR{RecordID: laszipRecordID, Payload: schema.Marshal()}
	laszip.setUserID(laszipUserID)
	laszip.RecordLengthAfterHeader = uint16(len(laszip.Payload))
	lf.VLRs = append([]VLR{*laszip}, lf.VLRs...)
	lf.Header.NumberOfVLRs = uint32(len(lf.VLRs))
	vlrBytes := 0
	for _, v := range lf.VLRs {
		vlrBytes += vlrHeaderSize + len(v.Payload)
	}
	lf.Header.OffsetToPointData = uint32(lf.Header.HeaderSize) + uint32(vlrBytes)

	if err := lf.Header.WriteHeader(lf.sink); err != nil {
		return err
	}
	for i := range lf.VLRs {
		if err := writeVLR(lf.sink, &lf.VLRs[i]); err != nil {
			return err
		}
	}

	opts, err := schemaToOptions(schema, 0, lf.VerifyChunks)
	if err != nil {
		return err
	}
	w, err := pointcodec.New(opts)
	if err != nil {
		return err
	}
	if err := w.Init(lf.sink); err != nil {
		return err
	}
	lf.writer = w
	lf.sealed = true
	return nil
}

// WritePoint marshals p and feeds it through the compressor, sealing
// the header, LASzip VLR and point stream on the first call.
func (lf *LazFile) WritePoint(p LasPointer) error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if err := lf.seal(); err != nil {
		return err
	}
	buf := make([]byte, lf.recordLength)
	p.Marshal(buf)
	if err := lf.writer.Write(buf); err != nil {
		return wrapPointErr(err)
	}
	lf.stats.track(buf, lf.Header.PointDataFormatID, &lf.Header)
	return nil
}

// Chunk forces a chunk boundary at the current point; only meaningful
// when ChunkSize is set to pointcodec.VariableChunkSize.
func (lf *LazFile) Chunk() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.writer == nil {
		return newErr(WrongState, "LazFile.Chunk before first WritePoint", -1, nil)
	}
	return lf.writer.Chunk()
}

// LasPoint decodes the point at pointIndex, seeking via the chunk table
// when pointIndex isn't the next point in sequence.
func (lf *LazFile) LasPoint(pointIndex int) (LasPointer, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if pointIndex < 0 || uint64(pointIndex) >= lf.Header.NumberOfPointRecords {
		return nil, newErr(IoError, "point index out of range", -1, nil)
	}
	if int64(pointIndex) != lf.currentPoint {
		if err := lf.reader.Seek(int64(pointIndex)); err != nil {
			return nil, err
		}
		lf.currentPoint = int64(pointIndex)
	}
	buf := make([]byte, lf.recordLength)
	if err := lf.reader.Read(buf); err != nil {
		return nil, wrapPointErr(err)
	}
	lf.currentPoint++
	p := NewPointRecord(lf.Header.PointDataFormatID)
	if p == nil {
		return nil, newErr(UnsupportedVersion, "point format", -1, nil)
	}
	p.Unmarshal(buf)
	return p, nil
}

// GetXYZ returns the real-world coordinates of the point at pointIndex.
func (lf *LazFile) GetXYZ(pointIndex int) (float64, float64, float64, error) {
	p, err := lf.LasPoint(pointIndex)
	if err != nil {
		return 0, 0, 0, err
	}
	buf := make([]byte, p.Size())
	p.Marshal(buf)
	x := float64(getI32(buf, 0))*lf.Header.XScaleFactor + lf.Header.XOffset
	y := float64(getI32(buf, 4))*lf.Header.YScaleFactor + lf.Header.YOffset
	z := float64(getI32(buf, 8))*lf.Header.ZScaleFactor + lf.Header.ZOffset
	return x, y, z, nil
}

// ChunkDigests exposes the xxhash digest of every chunk processed so
// far, valid only when VerifyChunks was set.
func (lf *LazFile) ChunkDigests() []uint64 {
	lf.mu.RLock()
	defer lf.mu.RUnlock()
	if lf.writer != nil {
		return lf.writer.ChunkDigests()
	}
	if lf.reader != nil {
		return lf.reader.ChunkDigests()
	}
	return nil
}

// Close finalises a write-mode file (running Done on the compressor,
// then back-patching counts and bounding box into the header) or
// simply releases a read-mode file's handle.
func (lf *LazFile) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.file == nil {
		return nil
	}
	if lf.sink != nil {
		if err := lf.seal(); err != nil {
			lf.file.Close()
			return err
		}
		if err := lf.writer.Done(); err != nil {
			lf.file.Close()
			return err
		}
		lf.stats.applyTo(&lf.Header)
		if lf.sink.IsSeekable() {
			if err := lf.sink.Seek(0); err != nil {
				lf.file.Close()
				return err
			}
			if err := lf.Header.WriteHeader(lf.sink); err != nil {
				lf.file.Close()
				return err
			}
		}
	}
	err := lf.file.Close()
	lf.file = nil
	if err != nil {
		return newErr(IoError, lf.fileName, -1, err)
	}
	return nil
}

// GetHeader returns the header for LazFile (LidarFile interface).
func (lf *LazFile) GetHeader() *Header { return &lf.Header }

// GetPointCount returns the point count for LazFile (LidarFile interface).
func (lf *LazFile) GetPointCount() uint64 {
	if lf.sink != nil {
		return lf.stats.count
	}
	return lf.Header.NumberOfPointRecords
}

// IsCompressed returns true: LazFile only ever reads/writes LASzip-compressed streams.
func (lf *LazFile) IsCompressed() bool { return true }

var _ LidarFile = (*LazFile)(nil)
