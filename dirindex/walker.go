package dirindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
)

// canonicalPath resolves symlinks so the visited set tracks real
// directories. Falls back to the cleaned path when resolution fails.
func canonicalPath(dirname string) string {
	if real, err := filepath.EvalSymlinks(dirname); err == nil {
		return real
	}
	return filepath.Clean(dirname)
}

// processDirectory recursively collects candidate file paths under dirname.
// Visiting is tracked by canonical path, which terminates symlink cycles.
// At the configured starting depth a directory-index file takes precedence
// over plain enumeration. The returned error is non-nil only when a
// top-level root cannot be read; deeper failures are recorded and the walk
// continues with siblings.
func (s *Scanner) processDirectory(ctx context.Context, dirname string, depth int, files *[]string) error {
	if s.checkAbort(ctx) {
		return nil
	}

	real := canonicalPath(dirname)
	if _, seen := s.visited[real]; seen {
		return nil
	}
	s.visited[real] = struct{}{}

	// The index file is only looked for once, at the starting depth.
	if len(s.cfg.InputFileNames) == 0 && depth == s.cfg.ScanDepth {
		indexPath := filepath.Join(dirname, IndexFileName)
		if fi, err := os.Stat(indexPath); err == nil && fi.Mode().IsRegular() {
			df, err := s.decoder.DecodeDirectoryFile(indexPath)
			if err == nil {
				s.fileSet = df.FileSetID
				if !s.cfg.Query.IsEmpty() {
					// Collect into the flat list so the per-file query
					// filter and re-sort can run.
					s.processDirectoryFile(dirname, df, files)
				} else {
					s.processDirectoryFile(dirname, df, nil)
				}
				return nil
			}
			// A corrupt index at depth zero is worth reporting; at any
			// other depth it is silently ignored and the files are
			// enumerated directly.
			if s.cfg.ScanDepth == 0 {
				s.recordError(indexPath, fmt.Errorf("%w: %v", ErrDecode, err))
			}
		}
	}

	dirents, err := godirwalk.ReadDirents(dirname, nil)
	if err != nil {
		se := s.recordError(dirname, ErrCannotOpen)
		if depth == s.cfg.ScanDepth {
			// Fatal for a top-level root.
			return se
		}
		return nil
	}
	// Directory order is filesystem-dependent; sort for reproducible scans.
	sort.Sort(dirents)

	for _, de := range dirents {
		if s.checkAbort(ctx) {
			return nil
		}
		name := de.Name()
		if strings.HasPrefix(name, ".") || name == IndexFileName {
			continue
		}
		full := filepath.Join(dirname, name)

		isDir := de.IsDir()
		if de.IsSymlink() {
			if !s.cfg.FollowSymlinks {
				continue
			}
			fi, err := os.Stat(full)
			if err != nil {
				// Broken link.
				continue
			}
			isDir = fi.IsDir()
		}

		if isDir {
			if depth > 0 {
				s.processDirectory(ctx, full, depth-1, files)
			}
			continue
		}
		if s.matchPattern(name) {
			*files = append(*files, full)
		}
	}
	return nil
}
