// Package dirindex indexes a directory tree of DICOM files into a
// patient/study/series hierarchy, grouping files by identity attributes
// and sorting them into acquisition order.
package dirindex

import (
	"errors"
	"fmt"
)

// Taxonomy of scan failures. Per-file decode failures are recorded on the
// scan result but never stop the scan; only root-level failures are fatal.
var (
	ErrNotFound      = errors.New("dirindex: path not found")
	ErrNotADirectory = errors.New("dirindex: not a directory")
	ErrCannotOpen    = errors.New("dirindex: cannot open directory")
	ErrDecode        = errors.New("dirindex: decode failed")
)

// ScanError ties a scan failure to the path that was being processed.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Path)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
