package dirindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/gview/dicomindex/meta"
)

// IndexFileName is the reserved name of a directory-index file at a media
// root. It is always excluded from plain file enumeration.
const IndexFileName = "DICOMDIR"

// FindLevel controls how query non-matches are handled: at FindSeries a
// series is kept if any of its files matched, at FindImage non-matching
// files are dropped before grouping.
type FindLevel int

const (
	FindSeries FindLevel = iota
	FindImage
)

// Status is the terminal state of a scan. An aborted scan is not an error;
// it leaves a well-formed partial index.
type Status int

const (
	StatusComplete Status = iota
	StatusAborted
)

// Config describes one scan session.
type Config struct {
	// DirectoryName is the root to scan. Ignored when InputFileNames is
	// set. An empty root with no input files yields an empty index.
	DirectoryName string

	// InputFileNames, when non-empty, is an explicit list of files and
	// directories to index instead of a single root.
	InputFileNames []string

	// FilePattern filters plain files by base name ("" matches all).
	FilePattern string

	// ScanDepth limits recursion: 0 scans only the root directory itself.
	ScanDepth int

	FollowSymlinks   bool
	RequirePixelData bool
	FindLevel        FindLevel

	// Query optionally restricts which files enter the index.
	Query *meta.Query

	// Decoder extracts per-file metadata. Defaults to a FileDecoder.
	Decoder meta.Decoder

	// Workers shards per-file extraction across goroutines when > 1.
	// Grouping always runs on a single goroutine.
	Workers int

	// Progress, when set, receives a monotonically non-decreasing fraction
	// in [0,1], reported at 1% granularity.
	Progress func(float64)
}

// Result is the outcome of one scan.
type Result struct {
	Index *DirectoryIndex

	// FileSetID is taken from a decoded directory-index file, if any.
	FileSetID string

	Status Status

	// Err is the first recoverable error encountered, with the path that
	// was being processed. It never stops a scan.
	Err *ScanError
}

// Scanner owns one scan session. The index and visited set are cleared and
// rebuilt on every Scan call; there is no incremental update.
type Scanner struct {
	cfg     Config
	decoder meta.Decoder

	index    *DirectoryIndex
	visited  map[string]struct{}
	fileSet  string
	aborted  bool
	progress progressReporter

	errMu    sync.Mutex
	firstErr *ScanError
}

// New creates a Scanner for the given configuration.
func New(cfg Config) *Scanner {
	if cfg.Decoder == nil {
		fd := &meta.FileDecoder{}
		if !cfg.Query.IsEmpty() {
			// Query scans read only headers; one disk block per read.
			fd.BufferSize = 4096
		}
		cfg.Decoder = fd
	}
	if cfg.ScanDepth < 0 {
		cfg.ScanDepth = 0
	}
	return &Scanner{cfg: cfg, decoder: cfg.Decoder, index: &DirectoryIndex{}}
}

// Index returns the index built by the most recent Scan.
func (s *Scanner) Index() *DirectoryIndex { return s.index }

// Scan walks the configured roots, extracts per-file metadata and builds
// the directory index. The returned error is non-nil only for failures at
// a top-level root; per-file problems are reported through Result.Err.
// Cancelling ctx stops the scan promptly with StatusAborted and a
// well-formed partial index.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	s.index.clear()
	s.visited = make(map[string]struct{})
	s.fileSet = ""
	s.firstErr = nil
	s.aborted = false
	s.progress = progressReporter{fn: s.cfg.Progress}

	var files []string
	var fatal error

	if len(s.cfg.InputFileNames) > 0 {
		for _, name := range s.cfg.InputFileNames {
			if s.checkAbort(ctx) {
				break
			}
			fi, err := os.Stat(name)
			if err != nil {
				s.recordError(name, ErrNotFound)
				continue
			}
			if fi.IsDir() {
				// Root failures are recorded; remaining roots continue.
				_ = s.processDirectory(ctx, name, s.cfg.ScanDepth, &files)
			} else if s.matchPattern(filepath.Base(name)) {
				files = append(files, name)
			}
		}
	} else {
		if s.cfg.DirectoryName == "" {
			// No input is a valid input: an empty index.
			return s.result(), nil
		}
		fi, err := os.Stat(s.cfg.DirectoryName)
		switch {
		case err != nil:
			fatal = s.recordError(s.cfg.DirectoryName, ErrNotFound)
		case !fi.IsDir():
			fatal = s.recordError(s.cfg.DirectoryName, ErrNotADirectory)
		default:
			fatal = s.processDirectory(ctx, s.cfg.DirectoryName, s.cfg.ScanDepth, &files)
		}
		if fatal != nil {
			return s.result(), fatal
		}
	}

	if s.checkAbort(ctx) {
		return s.result(), nil
	}

	if len(files) > 0 {
		metas, ok := s.extractFiles(ctx, files)
		if !ok {
			return s.result(), nil
		}
		if err := s.groupFiles(files, metas); err != nil {
			return s.result(), err
		}
	}
	s.progress.complete()
	return s.result(), nil
}

func (s *Scanner) result() *Result {
	r := &Result{Index: s.index, FileSetID: s.fileSet, Err: s.firstErr}
	if s.aborted {
		r.Status = StatusAborted
	}
	return r
}

// recordError retains the first error for session-level reporting and
// returns the ScanError so callers can also propagate it.
func (s *Scanner) recordError(path string, err error) *ScanError {
	se := &ScanError{Path: path, Err: err}
	s.errMu.Lock()
	if s.firstErr == nil {
		s.firstErr = se
	}
	s.errMu.Unlock()
	return se
}

func (s *Scanner) checkAbort(ctx context.Context) bool {
	if s.aborted {
		return true
	}
	if ctx.Err() != nil {
		s.aborted = true
		return true
	}
	return false
}

func (s *Scanner) matchPattern(name string) bool {
	if s.cfg.FilePattern == "" {
		return true
	}
	ok, err := filepath.Match(s.cfg.FilePattern, name)
	return err == nil && ok
}

// fileMeta is the extraction result for one candidate file; nil marks a
// file that was skipped or filtered out.
type fileMeta struct {
	values       map[tag.Tag]meta.Value
	queryMatched bool
}

// extractFiles decodes metadata for every candidate. The second return is
// false when the scan was aborted mid-extraction; nothing has been
// committed to the index in that case beyond prior directory-index trees.
func (s *Scanner) extractFiles(ctx context.Context, files []string) ([]*fileMeta, bool) {
	metas := make([]*fileMeta, len(files))

	if s.cfg.Workers <= 1 {
		for j, path := range files {
			if s.checkAbort(ctx) {
				return nil, false
			}
			metas[j] = s.extractOne(path)
			s.progress.report(j+1, len(files))
		}
		return metas, true
	}

	// Sharded extraction: workers claim file positions from an atomic
	// counter and fill ordered slots, so the grouping pass downstream sees
	// the same sequence a sequential scan would.
	var wg sync.WaitGroup
	var next int64 = -1
	var done int64
	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j := int(atomic.AddInt64(&next, 1))
				if j >= len(files) || ctx.Err() != nil {
					return
				}
				metas[j] = s.extractOne(files[j])
				s.progress.report(int(atomic.AddInt64(&done, 1)), len(files))
			}
		}()
	}
	wg.Wait()

	if s.checkAbort(ctx) {
		return nil, false
	}
	return metas, true
}

func (s *Scanner) extractOne(path string) *fileMeta {
	res, err := s.decoder.Decode(path, meta.RequiredTags, s.cfg.Query)
	if err != nil {
		if !errors.Is(err, meta.ErrNotDICOM) {
			s.recordError(path, fmt.Errorf("%w: %v", ErrDecode, err))
		}
		return nil
	}
	if s.cfg.RequirePixelData && !res.PixelDataFound {
		return nil
	}
	return &fileMeta{
		values:       res.Values,
		queryMatched: s.cfg.Query.IsEmpty() || res.QueryMatched,
	}
}

// progressReporter rate-limits progress callbacks to 1% boundaries and
// keeps the reported fraction monotonic even with concurrent reporters.
type progressReporter struct {
	mu   sync.Mutex
	last float64
	fn   func(float64)
}

func (p *progressReporter) report(done, total int) {
	if p.fn == nil || total <= 0 {
		return
	}
	frac := float64(done) / float64(total)
	p.mu.Lock()
	defer p.mu.Unlock()
	if frac >= 1 {
		if p.last < 1 {
			p.last = 1
			p.fn(1)
		}
		return
	}
	if frac > p.last+0.01 {
		frac = float64(int(frac*100)) / 100
		if frac > p.last {
			p.last = frac
			p.fn(frac)
		}
	}
}

func (p *progressReporter) complete() {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last < 1 {
		p.last = 1
		p.fn(1)
	}
}
