package dirindex

import (
	"path/filepath"

	"github.com/gview/dicomindex/meta"
)

// processDirectoryFile converts the flat record array of a decoded
// directory-index file into index entries. Records link through next/child
// byte offsets; traversal uses an explicit stack and marks each offset as
// consumed, so malformed cyclic links terminate instead of looping. When
// files is non-nil the referenced paths are collected there for later
// per-file extraction and re-sorting; otherwise each series is appended to
// the index directly.
func (s *Scanner) processDirectoryFile(dirname string, df *meta.DirectoryFile, files *[]string) {
	records := df.Records
	offsetToIndex := make(map[uint32]int, len(records))
	for i := range records {
		offsetToIndex[records[i].Offset] = i
	}
	consumed := make([]bool, len(records))

	type stackEntry struct {
		offset uint32
		level  string
	}
	var stack []stackEntry

	patientIdx := s.index.PatientCount()
	studyIdx := s.index.StudyCount()
	var patientItem, studyItem, seriesItem int

	var fileNames []string
	var level string

	flushSeries := func() {
		if files != nil {
			*files = append(*files, fileNames...)
		} else {
			err := s.index.AddSeriesFiles(
				patientIdx, studyIdx, fileNames,
				meta.NewSnapshot(meta.PatientTags, records[patientItem].Values),
				meta.NewSnapshot(meta.StudyTags, records[studyItem].Values),
				meta.NewSnapshot(meta.SeriesTags, records[seriesItem].Values))
			if err != nil {
				s.recordError(dirname, err)
			}
		}
		fileNames = nil
	}

	offset := df.RootOffset
	for offset != 0 {
		var child uint32
		j, known := offsetToIndex[offset]
		offset = 0

		if known && !consumed[j] {
			consumed[j] = true
			rec := &records[j]
			offset = rec.Next
			child = rec.Child
			level = rec.Type

			switch {
			case rec.Type == meta.RecordPatient:
				patientItem = j
			case rec.Type == meta.RecordStudy:
				studyItem = j
			case rec.Type == meta.RecordSeries:
				seriesItem = j
			case rec.Type == meta.RecordImage || !s.cfg.RequirePixelData:
				// A record with no file reference contributes nothing but
				// does not fail the decode.
				if len(rec.FileID) > 0 {
					parts := append([]string{dirname}, rec.FileID...)
					fileNames = append(fileNames, filepath.Join(parts...))
				}
			}
		}

		if child != 0 {
			// Descend one directory level.
			stack = append(stack, stackEntry{offset: offset, level: level})
			offset = child
		} else {
			// Pop until the next offset is not zero. Unwinding past a
			// SERIES flushes its files; unwinding past PATIENT or STUDY
			// advances the matching index counter.
			for offset == 0 && len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				offset = top.offset
				level = top.level

				switch level {
				case meta.RecordPatient:
					patientIdx++
				case meta.RecordStudy:
					studyIdx++
				case meta.RecordSeries:
					flushSeries()
				}
			}
		}
	}
}
