package lidario

import "fmt"

// Kind identifies the class of failure an Error carries. Failures the
// root package detects itself (header, VLR, schema, point format,
// lifecycle) come back as an *Error with one of these kinds; on some
// paths an error from the byte stream or the point codec is returned
// as it is, not wrapped in an *Error.
type Kind int

const (
	// IoError means the underlying byte stream failed a read or write.
	IoError Kind = iota
	// MalformedHeader means the header signature, size or offsets are impossible.
	MalformedHeader
	// UnsupportedVersion means a point format, item version or compressor value is unrecognised.
	UnsupportedVersion
	// SchemaMismatch means the LASzip schema VLR disagrees with the point format or record length.
	SchemaMismatch
	// CodecDesync means a decoded residual violates an item's declared range.
	CodecDesync
	// ChunkTableCorrupt means the chunk table fails its own internal consistency check.
	ChunkTableCorrupt
	// UnexpectedEOF means the stream ended inside a structure that wasn't finished.
	UnexpectedEOF
	// Unseekable means a seek was requested on a stream that cannot seek.
	Unseekable
	// WrongState means a codec method was called out of its lifecycle order.
	WrongState
	// CoderInvariantViolated means an entropy coder internal check failed.
	CoderInvariantViolated
)

func (k Kind) String() string {
	switch k {
	case IoError:
		return "io error"
	case MalformedHeader:
		return "malformed header"
	case UnsupportedVersion:
		return "unsupported version"
	case SchemaMismatch:
		return "schema mismatch"
	case CodecDesync:
		return "codec desync"
	case ChunkTableCorrupt:
		return "chunk table corrupt"
	case UnexpectedEOF:
		return "unexpected EOF"
	case Unseekable:
		return "unseekable"
	case WrongState:
		return "wrong state"
	case CoderInvariantViolated:
		return "coder invariant violated"
	default:
		return "unknown error"
	}
}

// Error is the typed error this module's public operations return for
// the failures they classify (see Kind). Structure names the failing structure (e.g. "header",
// "chunk table", "VLR[3]"), Offset is the byte offset of the failure
// when known (-1 otherwise), and Err is the underlying cause, if any.
type Error struct {
	Kind      Kind
	Structure string
	Offset    int64
	Err       error
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s at offset %d: %v", e.Kind, e.Structure, e.Offset, e.Err)
		}
		return fmt.Sprintf("%s: %s at offset %d", e.Kind, e.Structure, e.Offset)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Structure, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Structure)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, &lidario.Error{Kind: lidario.CodecDesync}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, structure string, offset int64, cause error) *Error {
	return &Error{Kind: kind, Structure: structure, Offset: offset, Err: cause}
}
