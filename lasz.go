// Package lidario implements a pure Go reader and writer for the LAS
// point-cloud file format and its compressed LAZ variant.
package lidario

import (
	"os"
	"path/filepath"
	"strings"
)

// LidarFile is the common surface of LasFile and LazFile: sequential or
// random-access point reads, the parsed header, and whatever a caller
// needs to tell the two apart without a type switch.
type LidarFile interface {
	// LasPoint returns the point at pointIndex, in its native format.
	LasPoint(pointIndex int) (LasPointer, error)
	// GetXYZ returns the real-world coordinates of the point at pointIndex.
	GetXYZ(pointIndex int) (float64, float64, float64, error)
	Close() error
	GetHeader() *Header
	GetPointCount() uint64
	IsCompressed() bool
}

// GetFileType reports whether fileName names a LAS or LAZ file, by
// extension first and, when that is ambiguous or absent, by sniffing
// the header's compressed bit.
func GetFileType(fileName string) (laz bool, err error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".laz":
		return true, nil
	case ".las":
		return false, nil
	}
	f, oerr := os.Open(fileName)
	if oerr != nil {
		return false, newErr(IoError, fileName, -1, oerr)
	}
	defer f.Close()
	sig := make([]byte, 4)
	if _, rerr := f.Read(sig); rerr != nil {
		return false, newErr(UnexpectedEOF, "header", 0, rerr)
	}
	if string(sig) != "LASF" {
		return false, newErr(MalformedHeader, "header.file_signature", 0, nil)
	}
	// point_data_format's compressed bit lives at header byte 104.
	if _, serr := f.Seek(104, 0); serr != nil {
		return false, newErr(IoError, fileName, 104, serr)
	}
	pdf := make([]byte, 1)
	if _, rerr := f.Read(pdf); rerr != nil {
		return false, newErr(UnexpectedEOF, "header", 104, rerr)
	}
	return pdf[0]&0x80 != 0, nil
}

// NewLidarFile opens fileName for reading, dispatching to NewLasFile or
// NewLazFile by reading the compressed bit of the file's own
// point_data_format byte rather than trusting its extension, since the
// compressed bit is the only authoritative signal.
func NewLidarFile(fileName string) (LidarFile, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, newErr(IoError, fileName, -1, err)
	}
	hdr := make([]byte, 105)
	_, err = f.Read(hdr)
	f.Close()
	if err != nil {
		return nil, newErr(UnexpectedEOF, "header", 0, err)
	}
	if string(hdr[0:4]) != "LASF" {
		return nil, newErr(MalformedHeader, "header.file_signature", 0, nil)
	}
	if hdr[104]&0x80 != 0 {
		return NewLazFile(fileName, "r")
	}
	return NewLasFile(fileName, "r")
}
