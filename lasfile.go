package lidario

import (
	"os"
	"sync"

	"github.com/jblindsay/lasz/internal/bytestream"
	"github.com/jblindsay/lasz/internal/itemcodec"
)

// LasFile is an uncompressed LAS reader/writer: the raw item codecs
// (C4's RawWriter/RawReader) moving bytes with no entropy coder in
// between, per spec §4.5 "mode none".
type LasFile struct {
	fileName string
	file     *os.File

	Header Header
	VLRs   []VLR
	EVLRs  []EVLR

	items        []SchemaItem
	recordLength int
	rawWriters   []itemcodec.RawWriter
	rawReaders   []itemcodec.RawReader

	src  bytestream.Source
	sink bytestream.Sink

	currentPoint int64
	stats        pointStats

	sealed bool

	mu sync.RWMutex
}

// NewLasFile opens fileName for reading ("r") or prepares it for
// writing ("w"): in write mode the caller fills in Header and calls
// AddVLR before the first WritePoint call, which seals the header and
// VLR section and begins the point stream.
func NewLasFile(fileName, mode string) (*LasFile, error) {
	switch mode {
	case "r":
		return openLasFileForRead(fileName)
	case "w":
		f, err := os.Create(fileName)
		if err != nil {
			return nil, newErr(IoError, fileName, -1, err)
		}
		lf := &LasFile{fileName: fileName, file: f, sink: bytestream.NewWriterSink(f)}
		lf.Header.SetSystemID("lasz")
		lf.Header.SetGeneratingSoftware("lasz")
		lf.Header.VersionMajor, lf.Header.VersionMinor = 1, 4
		lf.Header.XScaleFactor, lf.Header.YScaleFactor, lf.Header.ZScaleFactor = 0.01, 0.01, 0.01
		return lf, nil
	default:
		return nil, newErr(WrongState, "LasFile mode "+mode, -1, nil)
	}
}

func openLasFileForRead(fileName string) (*LasFile, error) {
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
	if h.Compressed {
		f.Close()
		return nil, newErr(UnsupportedVersion, "LasFile: file is LAZ-compressed, use NewLazFile", -1, nil)
	}
	lf := &LasFile{fileName: fileName, file: f, src: src, Header: *h, sealed: true}
	for i := uint32(0); i < h.NumberOfVLRs; i++ {
		v, err := readVLR(src, int64(h.OffsetToPointData))
		if err != nil {
			f.Close()
			return nil, err
		}
		lf.VLRs = append(lf.VLRs, *v)
	}
	items, _, err := ResolveItems(h, lf.VLRs)
	if err != nil {
		f.Close()
		return nil, err
	}
	lf.items = items
	off := 0
	for _, it := range items {
		sz := int(it.Size)
		_, rr := itemcodec.NewRawCodec(itemcodec.Item{Kind: itemcodec.Kind(it.Type), Size: sz}, off)
		lf.rawReaders = append(lf.rawReaders, rr)
		off += sz
	}
	lf.recordLength = off
	if err := src.Seek(int64(h.OffsetToPointData)); err != nil {
		f.Close()
		return nil, err
	}
	if h.StartOfFirstEVLR != 0 {
		if err := readTrailingEVLRs(src, h.StartOfFirstEVLR, h.NumberOfEVLRs, &lf.EVLRs); err != nil {
			f.Close()
			return nil, err
		}
		if err := src.Seek(int64(h.OffsetToPointData)); err != nil {
			f.Close()
			return nil, err
		}
	}
	return lf, nil
}

func readTrailingEVLRs(src bytestream.Source, start uint64, n uint32, out *[]EVLR) error {
	if !src.IsSeekable() || n == 0 {
		return nil
	}
	if err := src.Seek(int64(start)); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		e, err := readEVLR(src)
		if err != nil {
			return err
		}
		*out = append(*out, *e)
	}
	return nil
}

// AddVLR appends a VLR to be written ahead of the point stream. It is
// only valid before the first WritePoint call.
func (lf *LasFile) AddVLR(v VLR) error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.sealed {
		return newErr(WrongState, "LasFile.AddVLR after point data started", -1, nil)
	}
	lf.VLRs = append(lf.VLRs, v)
	return nil
}

func (lf *LasFile) seal() error {
	if lf.sealed {
		return nil
	}
	items := itemsForFormat(lf.Header.PointDataFormatID)
	if items == nil {
		return newErr(UnsupportedVersion, "LasFile.Header.PointDataFormatID", -1, nil)
	}
	recLen := 0
	for _, it := range items {
		recLen += int(it.Size)
	}
	lf.items = items
	lf.recordLength = recLen
	lf.Header.FileSignature = [4]byte{'L', 'A', 'S', 'F'}
	lf.Header.Compressed = false
	lf.Header.PointRecordLength = uint16(recLen)
	if lf.Header.HeaderSize == 0 {
		lf.Header.HeaderSize = minHeaderSize(lf.Header.VersionMajor, lf.Header.VersionMinor)
	}
	lf.Header.NumberOfVLRs = uint32(len(lf.VLRs))
	vlrBytes := 0
	for _, v := range lf.VLRs {
		vlrBytes += vlrHeaderSize + len(v.Payload)
	}
	lf.Header.OffsetToPointData = uint32(lf.Header.HeaderSize) + uint32(vlrBytes)

	off := 0
	for _, it := range items {
		sz := int(it.Size)
		rw, _ := itemcodec.NewRawCodec(itemcodec.Item{Kind: itemcodec.Kind(it.Type), Size: sz}, off)
		lf.rawWriters = append(lf.rawWriters, rw)
		off += sz
	}

	if err := lf.Header.WriteHeader(lf.sink); err != nil {
		return err
	}
	for i := range lf.VLRs {
		if err := writeVLR(lf.sink, &lf.VLRs[i]); err != nil {
			return err
		}
	}
	lf.sealed = true
	return nil
}

// WritePoint marshals p and appends it to the point stream, sealing the
// header and VLRs on the first call.
func (lf *LasFile) WritePoint(p LasPointer) error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if err := lf.seal(); err != nil {
		return err
	}
	buf := make([]byte, lf.recordLength)
	p.Marshal(buf)
	for _, rw := range lf.rawWriters {
		if err := rw.WriteRaw(lf.sink, buf); err != nil {
			return newErr(IoError, "point", -1, err)
		}
	}
	lf.stats.track(buf, lf.Header.PointDataFormatID, &lf.Header)
	return nil
}

// LasPoint reads the point at pointIndex (spec §6 "LasPoint").
func (lf *LasFile) LasPoint(pointIndex int) (LasPointer, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if pointIndex < 0 || uint64(pointIndex) >= lf.Header.NumberOfPointRecords {
		return nil, newErr(IoError, "point index out of range", -1, nil)
	}
	if int64(pointIndex) != lf.currentPoint {
		if !lf.src.IsSeekable() {
			return nil, newErr(Unseekable, "LasFile.LasPoint random access", -1, nil)
		}
		pos := int64(lf.Header.OffsetToPointData) + int64(pointIndex)*int64(lf.recordLength)
		if err := lf.src.Seek(pos); err != nil {
			return nil, err
		}
		lf.currentPoint = int64(pointIndex)
	}
	buf := make([]byte, lf.recordLength)
	for _, rr := range lf.rawReaders {
		if err := rr.ReadRaw(lf.src, buf); err != nil {
			return nil, newErr(IoError, "point", -1, err)
		}
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
func (lf *LasFile) GetXYZ(pointIndex int) (float64, float64, float64, error) {
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

// Close finalises a write-mode file (back-patching counts and bounding
// box into the header) or simply releases a read-mode file's handle.
func (lf *LasFile) Close() error {
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

// GetHeader returns the header for LasFile (LidarFile interface).
func (lf *LasFile) GetHeader() *Header { return &lf.Header }

// GetPointCount returns the point count for LasFile (LidarFile interface).
func (lf *LasFile) GetPointCount() uint64 {
	if lf.sink != nil {
		return lf.stats.count
	}
	return lf.Header.NumberOfPointRecords
}

// IsCompressed returns false: LasFile only ever reads/writes uncompressed streams.
func (lf *LasFile) IsCompressed() bool { return false }

var _ LidarFile = (*LasFile)(nil)
