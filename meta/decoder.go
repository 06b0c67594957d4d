package meta

import (
	"errors"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrNotDICOM is returned by a Decoder when a file fails the lightweight
// format-signature check. Callers skip such files silently instead of
// recording a decode error for the session.
var ErrNotDICOM = errors.New("meta: not a DICOM file")

// Result is the outcome of decoding one file's metadata.
type Result struct {
	// Values maps each requested tag that was present in the file to its
	// decoded value. Unrequested tags are simply absent.
	Values map[tag.Tag]Value

	// PixelDataFound reports whether the file carried pixel data. The
	// pixel values themselves are never decoded.
	PixelDataFound bool

	// QueryMatched reports whether the file satisfied the query supplied
	// to Decode. It is true when no query was supplied.
	QueryMatched bool
}

// Record types used in a directory-index file.
const (
	RecordPatient = "PATIENT"
	RecordStudy   = "STUDY"
	RecordSeries  = "SERIES"
	RecordImage   = "IMAGE"
)

// DirRecord is one record of a decoded directory-index file. Records link
// to each other by byte offset: Offset is the record's own identity, Next
// points to its sibling and Child to the first record one level down. A
// zero offset terminates a chain.
type DirRecord struct {
	Offset uint32
	Type   string
	Next   uint32
	Child  uint32

	// FileID holds the path components of the referenced image file,
	// relative to the directory containing the index file.
	FileID []string

	// Values carries the record's own attributes (patient identity on a
	// PATIENT record, and so on).
	Values map[tag.Tag]Value
}

// DirectoryFile is the flat, offset-addressable record array decoded from
// a directory-index file.
type DirectoryFile struct {
	FileSetID  string
	RootOffset uint32
	Records    []DirRecord
}

// Decoder extracts metadata from DICOM files. Implementations must be safe
// for concurrent use by multiple goroutines.
type Decoder interface {
	// Decode reads the requested tags from the file at path. If query is
	// non-nil its tags are decoded as well and the result reports whether
	// the file matched. Returns ErrNotDICOM for files that do not carry a
	// DICOM signature.
	Decode(path string, want []tag.Tag, query *Query) (*Result, error)

	// DecodeDirectoryFile decodes a directory-index file into its flat
	// record array.
	DecodeDirectoryFile(path string) (*DirectoryFile, error)
}
