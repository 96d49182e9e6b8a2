// Package pointcodec implements the chunking orchestration layer (C5):
// given a configured item list it drives the raw and compressed/layered
// item codecs, owns the chunk table and the shared entropy coder, and
// enforces the Created -> Configured -> Streaming -> Closed lifecycle.
package pointcodec

import (
	"errors"

	"github.com/cespare/xxhash/v2"

	"github.com/jblindsay/lasz/internal/bytestream"
	"github.com/jblindsay/lasz/internal/entropy"
	"github.com/jblindsay/lasz/internal/intcompress"
	"github.com/jblindsay/lasz/internal/itemcodec"
)

// ErrUnseekable is returned by operations that need random access (chunk
// table loading, Seek) when the bound source cannot seek.
var ErrUnseekable = errors.New("pointcodec: source is not seekable")

// Mode selects the chunking/compression strategy (mirrors the LASzip
// VLR's compressor field, kept here as its own type so this package
// never imports the root module).
type Mode int

const (
	ModeNone Mode = iota
	ModePointwise
	ModePointwiseChunked
	ModeLayeredChunked
)

// VariableChunkSize is the sentinel meaning "variable chunking; the
// caller demarcates chunks explicitly via Writer.Chunk()".
const VariableChunkSize int32 = -1

// State is the codec lifecycle (spec §4.5 state machine).
type State int

const (
	Created State = iota
	Configured
	Streaming
	Closed
)

// Options configures a Writer or Reader.
type Options struct {
	Items        []itemcodec.Item
	Mode         Mode
	ChunkSize    int32 // points per chunk; VariableChunkSize for variable mode
	Skip         itemcodec.LayerSet
	VerifyChunks bool // xxhash-digest each chunk's raw point bytes
}

func wrongState(op string) error { return &StateError{Op: op} }

// StateError reports a codec method called out of lifecycle order.
type StateError struct{ Op string }

func (e *StateError) Error() string { return "pointcodec: " + e.Op + " called in wrong state" }

type chunkEntry struct {
	bytes  uint32
	points uint32
}

func itemSize(it itemcodec.Item) int {
	if it.Kind == itemcodec.Byte {
		return it.Size
	}
	return it.Kind.Size()
}

func recordLength(items []itemcodec.Item) int {
	n := 0
	for _, it := range items {
		n += itemSize(it)
	}
	return n
}

// --- writer ---

// Writer drives the write side of C5.
type Writer struct {
	opts   Options
	out    bytestream.Sink
	state  State
	record int

	rawWriters     []itemcodec.RawWriter
	compWriters    []itemcodec.CompressedWriter
	layeredWriters []itemcodec.LayeredWriter

	enc *entropy.Encoder

	chunkTableStartPos int64
	chunkStartPos       int64
	chunkCounter        int32
	chunkIndex          []chunkEntry

	hasher  *xxhash.Digest
	digests []uint64

	pointsWritten int64
}

// New constructs a Writer (state Created -> Configured): it builds the
// matching raw codec for every item and, if compression is requested,
// the matching compressed or layered codec.
func New(opts Options) (*Writer, error) {
	w := &Writer{opts: opts, record: recordLength(opts.Items)}
	off := 0
	for _, it := range opts.Items {
		rw, _ := itemcodec.NewRawCodec(it, off)
		w.rawWriters = append(w.rawWriters, rw)
		off += itemSize(it)
	}
	switch opts.Mode {
	case ModePointwise, ModePointwiseChunked:
		for _, it := range opts.Items {
			cw, err := itemcodec.NewCompressedWriter(it)
			if err != nil {
				return nil, err
			}
			w.compWriters = append(w.compWriters, cw)
		}
	case ModeLayeredChunked:
		for _, it := range opts.Items {
			lw, err := itemcodec.NewLayeredWriter(it)
			if err != nil {
				return nil, err
			}
			w.layeredWriters = append(w.layeredWriters, lw)
		}
	}
	if opts.VerifyChunks {
		w.hasher = xxhash.New()
	}
	w.state = Configured
	return w, nil
}

// Init binds the writer to out. If chunking, it records the chunk table
// start position and writes a placeholder offset (-1 if out can't
// seek), per spec §4.5 "write path, step 1".
func (w *Writer) Init(out bytestream.Sink) error {
	if w.state != Configured {
		return wrongState("Init")
	}
	w.out = out
	if w.opts.Mode != ModeNone {
		pos, err := out.Tell()
		if err != nil {
			return err
		}
		w.chunkTableStartPos = pos
		placeholder := int64(-1)
		if out.IsSeekable() {
			placeholder = 0
		}
		if err := out.WriteI64(placeholder); err != nil {
			return err
		}
		cpos, err := out.Tell()
		if err != nil {
			return err
		}
		w.chunkStartPos = cpos
	}
	w.state = Streaming
	return nil
}

func (w *Writer) fixedChunkSize() (int32, bool) {
	if w.opts.Mode == ModeNone {
		return 0, false
	}
	if w.opts.ChunkSize == VariableChunkSize {
		return 0, false
	}
	return w.opts.ChunkSize, true
}

// Write codes one point record (spec §4.5 "write path, step 2").
func (w *Writer) Write(point []byte) error {
	if w.state != Streaming {
		return wrongState("Write")
	}
	if fixed, ok := w.fixedChunkSize(); ok && w.chunkCounter == fixed && fixed > 0 {
		if err := w.finalizeChunk(); err != nil {
			return err
		}
	}
	if w.opts.Mode == ModeNone {
		for _, rw := range w.rawWriters {
			if err := rw.WriteRaw(w.out, point); err != nil {
				return err
			}
		}
		w.pointsWritten++
		return nil
	}

	if w.chunkCounter == 0 {
		for _, rw := range w.rawWriters {
			if err := rw.WriteRaw(w.out, point); err != nil {
				return err
			}
		}
		switch w.opts.Mode {
		case ModePointwise, ModePointwiseChunked:
			w.enc = entropy.NewEncoder()
			if err := w.enc.Init(w.out); err != nil {
				return err
			}
			for _, cw := range w.compWriters {
				if err := cw.Init(w.enc, point); err != nil {
					return err
				}
			}
		case ModeLayeredChunked:
			for _, lw := range w.layeredWriters {
				if err := lw.Init(point); err != nil {
					return err
				}
			}
		}
	} else {
		switch w.opts.Mode {
		case ModePointwise, ModePointwiseChunked:
			for _, cw := range w.compWriters {
				if err := cw.Compress(w.enc, point); err != nil {
					return err
				}
			}
		case ModeLayeredChunked:
			for _, lw := range w.layeredWriters {
				if err := lw.Compress(point); err != nil {
					return err
				}
			}
		}
	}
	if w.hasher != nil {
		w.hasher.Write(point)
	}
	w.chunkCounter++
	w.pointsWritten++
	return nil
}

// Chunk forces a chunk boundary at the current point; valid only in
// variable-chunking mode (spec §4.5 "write path, step 3").
func (w *Writer) Chunk() error {
	if w.state != Streaming {
		return wrongState("Chunk")
	}
	if w.opts.Mode == ModeNone || w.opts.ChunkSize != VariableChunkSize {
		return wrongState("Chunk (not in variable-chunking mode)")
	}
	if w.chunkCounter == 0 {
		return nil
	}
	return w.finalizeChunk()
}

func (w *Writer) finalizeChunk() error {
	switch w.opts.Mode {
	case ModePointwise, ModePointwiseChunked:
		if w.enc != nil {
			if _, err := w.enc.Done(); err != nil {
				return err
			}
			w.enc = nil
		}
	case ModeLayeredChunked:
		for _, lw := range w.layeredWriters {
			if err := lw.FlushLayers(w.out); err != nil {
				return err
			}
		}
	}
	pos, err := w.out.Tell()
	if err != nil {
		return err
	}
	w.chunkIndex = append(w.chunkIndex, chunkEntry{
		bytes:  uint32(pos - w.chunkStartPos),
		points: uint32(w.chunkCounter),
	})
	if w.hasher != nil {
		w.digests = append(w.digests, w.hasher.Sum64())
		w.hasher.Reset()
	}
	w.chunkStartPos = pos
	w.chunkCounter = 0
	return nil
}

// Done finalises any open chunk, writes the chunk table, and (if the
// sink is seekable) back-patches the placeholder offset; otherwise the
// real offset is appended after the table (spec §4.5 "write path, step 4").
func (w *Writer) Done() error {
	if w.state != Streaming {
		return wrongState("Done")
	}
	if w.opts.Mode != ModeNone && w.chunkCounter > 0 {
		if err := w.finalizeChunk(); err != nil {
			return err
		}
	}
	if w.opts.Mode != ModeNone {
		tablePos, err := w.out.Tell()
		if err != nil {
			return err
		}
		if err := w.writeChunkTable(); err != nil {
			return err
		}
		if w.out.IsSeekable() {
			if err := w.out.Seek(w.chunkTableStartPos); err != nil {
				return err
			}
			if err := w.out.WriteI64(tablePos); err != nil {
				return err
			}
			if err := w.out.SeekEnd(0); err != nil {
				return err
			}
		} else {
			if err := w.out.WriteI64(tablePos); err != nil {
				return err
			}
		}
	}
	w.state = Closed
	return nil
}

func (w *Writer) writeChunkTable() error {
	if err := w.out.WriteU32(0); err != nil { // version
		return err
	}
	if err := w.out.WriteU32(uint32(len(w.chunkIndex))); err != nil {
		return err
	}
	enc := entropy.NewEncoder()
	if err := enc.Init(w.out); err != nil {
		return err
	}
	variable := w.opts.ChunkSize == VariableChunkSize
	ic := intcompress.New(2, 32, false)
	var lastBytes, lastPoints int32
	for _, e := range w.chunkIndex {
		if variable {
			if err := ic.Compress(enc, lastPoints, int32(e.points), 1); err != nil {
				return err
			}
			lastPoints = int32(e.points)
		}
		if err := ic.Compress(enc, lastBytes, int32(e.bytes), 0); err != nil {
			return err
		}
		lastBytes = int32(e.bytes)
	}
	_, err := enc.Done()
	return err
}

// ChunkDigests returns, for each finalised chunk, the xxhash digest of
// its raw point bytes, when Options.VerifyChunks was set.
func (w *Writer) ChunkDigests() []uint64 { return w.digests }

// PointsWritten returns the running count of points written so far.
func (w *Writer) PointsWritten() int64 { return w.pointsWritten }

// --- reader ---

// Reader drives the read side of C5.
type Reader struct {
	opts   Options
	in     bytestream.Source
	state  State
	record int

	rawReaders     []itemcodec.RawReader
	compReaders    []itemcodec.CompressedReader
	layeredReaders []itemcodec.LayeredReader

	dec *entropy.Decoder

	chunkTableOffset  int64
	chunkStartPos     int64 // byte offset of the first point after the placeholder
	chunkTableLoaded  bool
	chunkIndex        []chunkEntry
	pointPrefixSum    []int64 // prefix sum of points per chunk, length len(chunkIndex)+1
	bytePrefixSum     []int64 // prefix sum of chunk byte lengths

	currentChunk    int
	pointsIntoChunk int32

	hasher  *xxhash.Digest
	digests []uint64
}

// NewReader builds a Reader with the matching raw and compressed/layered
// codecs for opts.Items (state Created -> Configured).
func NewReader(opts Options) (*Reader, error) {
	r := &Reader{opts: opts, record: recordLength(opts.Items)}
	off := 0
	for _, it := range opts.Items {
		_, rr := itemcodec.NewRawCodec(it, off)
		r.rawReaders = append(r.rawReaders, rr)
		off += itemSize(it)
	}
	switch opts.Mode {
	case ModePointwise, ModePointwiseChunked:
		for _, it := range opts.Items {
			cr, err := itemcodec.NewCompressedReader(it)
			if err != nil {
				return nil, err
			}
			r.compReaders = append(r.compReaders, cr)
		}
	case ModeLayeredChunked:
		for _, it := range opts.Items {
			lr, err := itemcodec.NewLayeredReader(it)
			if err != nil {
				return nil, err
			}
			r.layeredReaders = append(r.layeredReaders, lr)
		}
	}
	if opts.VerifyChunks {
		r.hasher = xxhash.New()
	}
	r.state = Configured
	return r, nil
}

// Init binds the reader to in. If chunking is advertised, it reads the
// chunk-table offset placeholder and remembers the first chunk's start
// position; the table itself is loaded lazily, the first time Seek or
// (under variable chunking) a chunk's point count needs it (spec §4.5
// "read path").
func (r *Reader) Init(in bytestream.Source) error {
	if r.state != Configured {
		return wrongState("Init")
	}
	r.in = in
	if r.opts.Mode != ModeNone {
		off, err := in.ReadI64()
		if err != nil {
			return err
		}
		r.chunkTableOffset = off
		pos, err := in.Tell()
		if err != nil {
			return err
		}
		r.chunkStartPos = pos
	}
	r.state = Streaming
	return nil
}

func (r *Reader) fixedChunkSize() (int32, bool) {
	if r.opts.Mode == ModeNone || r.opts.ChunkSize == VariableChunkSize {
		return 0, false
	}
	return r.opts.ChunkSize, true
}

func (r *Reader) currentChunkPointCount() (int32, error) {
	if fixed, ok := r.fixedChunkSize(); ok {
		return fixed, nil
	}
	if err := r.loadChunkTable(); err != nil {
		return 0, err
	}
	if r.currentChunk >= len(r.chunkIndex) {
		return 0, errors.New("pointcodec: chunk index out of range")
	}
	return int32(r.chunkIndex[r.currentChunk].points), nil
}

// Read decodes the next point into point (spec §4.5 "read path").
func (r *Reader) Read(point []byte) error {
	if r.state != Streaming {
		return wrongState("Read")
	}
	if r.opts.Mode == ModeNone {
		for _, rr := range r.rawReaders {
			if err := rr.ReadRaw(r.in, point); err != nil {
				return err
			}
		}
		return nil
	}

	if r.pointsIntoChunk == 0 {
		for _, rr := range r.rawReaders {
			if err := rr.ReadRaw(r.in, point); err != nil {
				return err
			}
		}
		chunkPoints, err := r.currentChunkPointCount()
		if err != nil {
			return err
		}
		switch r.opts.Mode {
		case ModePointwise, ModePointwiseChunked:
			r.dec = entropy.NewDecoder()
			if err := r.dec.Init(r.in); err != nil {
				return err
			}
			for _, cr := range r.compReaders {
				if err := cr.Init(r.dec, point); err != nil {
					return err
				}
			}
		case ModeLayeredChunked:
			for _, lr := range r.layeredReaders {
				if err := lr.Init(point); err != nil {
					return err
				}
			}
			for _, lr := range r.layeredReaders {
				if err := lr.LoadLayers(r.in, int(chunkPoints), r.opts.Skip); err != nil {
					return err
				}
			}
		}
		r.finishPoint(point, chunkPoints)
		return nil
	}

	switch r.opts.Mode {
	case ModePointwise, ModePointwiseChunked:
		for _, cr := range r.compReaders {
			if err := cr.Decompress(r.dec, point); err != nil {
				return err
			}
		}
	case ModeLayeredChunked:
		for _, lr := range r.layeredReaders {
			if err := lr.Decompress(point); err != nil {
				return err
			}
		}
	}
	chunkPoints, err := r.currentChunkPointCount()
	if err != nil {
		return err
	}
	r.finishPoint(point, chunkPoints)
	return nil
}

func (r *Reader) finishPoint(point []byte, chunkPoints int32) {
	if r.hasher != nil {
		r.hasher.Write(point)
	}
	r.pointsIntoChunk++
	if r.pointsIntoChunk >= chunkPoints {
		if r.opts.Mode == ModePointwise || r.opts.Mode == ModePointwiseChunked {
			_ = r.dec.Done()
		}
		if r.hasher != nil {
			r.digests = append(r.digests, r.hasher.Sum64())
			r.hasher.Reset()
		}
		r.pointsIntoChunk = 0
		r.currentChunk++
	}
}

// ChunkDigests returns, for each chunk read so far, the xxhash digest
// of its decoded raw point bytes. A chunk that has been only partly
// read (as a short final chunk under a fixed chunk size always is)
// contributes the digest of the points read from it so far.
func (r *Reader) ChunkDigests() []uint64 {
	if r.hasher != nil && r.pointsIntoChunk > 0 {
		return append(r.digests[:len(r.digests):len(r.digests)], r.hasher.Sum64())
	}
	return r.digests
}

// loadChunkTable reads the chunk table once, caching per-chunk byte and
// point-count prefix sums for Seek. If the writer could not seek, the
// real offset is recovered from the trailing i64 at end of stream.
func (r *Reader) loadChunkTable() error {
	if r.chunkTableLoaded {
		return nil
	}
	if !r.in.IsSeekable() {
		return ErrUnseekable
	}
	savedPos, err := r.in.Tell()
	if err != nil {
		return err
	}
	tableOffset := r.chunkTableOffset
	if tableOffset < 0 {
		if err := r.in.SeekEnd(-8); err != nil {
			return err
		}
		tableOffset, err = r.in.ReadI64()
		if err != nil {
			return err
		}
	}
	if err := r.in.Seek(tableOffset); err != nil {
		return err
	}
	if _, err := r.in.ReadU32(); err != nil { // version
		return err
	}
	numChunks, err := r.in.ReadU32()
	if err != nil {
		return err
	}
	dec := entropy.NewDecoder()
	if err := dec.Init(r.in); err != nil {
		return err
	}
	ic := intcompress.New(2, 32, true)
	variable := r.opts.ChunkSize == VariableChunkSize
	var lastBytes, lastPoints int32
	r.chunkIndex = make([]chunkEntry, numChunks)
	for i := uint32(0); i < numChunks; i++ {
		if variable {
			p, err := ic.Decompress(dec, lastPoints, 1)
			if err != nil {
				return err
			}
			lastPoints = p
		} else {
			lastPoints = r.opts.ChunkSize
		}
		b, err := ic.Decompress(dec, lastBytes, 0)
		if err != nil {
			return err
		}
		lastBytes = b
		r.chunkIndex[i] = chunkEntry{bytes: uint32(b), points: uint32(lastPoints)}
	}
	if err := dec.Done(); err != nil {
		return err
	}

	r.pointPrefixSum = make([]int64, numChunks+1)
	r.bytePrefixSum = make([]int64, numChunks+1)
	for i, e := range r.chunkIndex {
		r.pointPrefixSum[i+1] = r.pointPrefixSum[i] + int64(e.points)
		r.bytePrefixSum[i+1] = r.bytePrefixSum[i] + int64(e.bytes)
	}
	r.chunkTableLoaded = true
	return r.in.Seek(savedPos)
}

// Seek locates the chunk containing point index i via binary search
// over the point-count prefix sum, then decodes from that chunk's start
// discarding points up to i (spec §4.5 "read path: seek(i)").
func (r *Reader) Seek(i int64) error {
	if r.state != Streaming {
		return wrongState("Seek")
	}
	if !r.in.IsSeekable() {
		return ErrUnseekable
	}
	if err := r.loadChunkTable(); err != nil {
		return err
	}
	lo, hi := 0, len(r.pointPrefixSum)-1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if r.pointPrefixSum[mid] <= i {
			lo = mid
		} else {
			hi = mid
		}
	}
	chunk := lo
	offsetInChunk := i - r.pointPrefixSum[chunk]

	if err := r.in.Seek(r.chunkStartPos + r.bytePrefixSum[chunk]); err != nil {
		return err
	}
	r.currentChunk = chunk
	r.pointsIntoChunk = 0

	scratch := make([]byte, r.record)
	for k := int64(0); k < offsetInChunk; k++ {
		if err := r.Read(scratch); err != nil {
			return err
		}
	}
	return nil
}
