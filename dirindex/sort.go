package dirindex

import (
	"sort"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/gview/dicomindex/meta"
)

// fileEntry is one file awaiting commit: its acquisition-instance number
// (0 when absent) and its path, borrowed from the candidate list.
type fileEntry struct {
	instance uint64
	path     string
}

// seriesGroup accumulates the files of one (patient, study, series)
// identity while candidates are processed. Groups are transient; they are
// discarded once committed to the index.
type seriesGroup struct {
	patientRecord meta.Snapshot
	patientName   string
	patientID     string

	studyRecord meta.Snapshot
	studyDate   meta.Value
	studyTime   meta.Value
	studyUID    string

	seriesRecord meta.Snapshot
	seriesUID    string
	seriesNumber uint64

	files        []fileEntry
	queryMatched bool
}

// compareGroup orders an incoming file against an existing group,
// patient first, then study, then series. Identity fields decide equality
// while weaker fields (name, date/time, series number) decide ordering
// when identities are missing or tie.
func compareGroup(g *seriesGroup, fm *fileMeta) int {
	patientName := fm.values[tag.PatientName].AsString()
	patientID := fm.values[tag.PatientID].AsString()

	// Use the ID to identify the patient, but the name to sort.
	c := strings.Compare(g.patientID, patientID)
	if c != 0 || patientID == "" {
		if c2 := strings.Compare(g.patientName, patientName); c2 != 0 {
			c = c2
		}
	}
	if c != 0 {
		return c
	}

	// Use the UID to identify the study, but the date and time to sort.
	studyDate := fm.values[tag.StudyDate]
	studyTime := fm.values[tag.StudyTime]
	studyUID := fm.values[tag.StudyInstanceUID].AsString()
	c = meta.CompareUIDs(studyUID, g.studyUID)
	if c != 0 || studyUID == "" {
		c2 := 0
		if studyDate.IsValid() && g.studyDate.IsValid() {
			c2 = strings.Compare(g.studyDate.AsString(), studyDate.AsString())
			if c2 == 0 && studyTime.IsValid() && g.studyTime.IsValid() {
				c2 = strings.Compare(studyTime.AsString(), g.studyTime.AsString())
			}
		}
		if c2 != 0 {
			c = c2
		}
	}
	if c != 0 {
		return c
	}

	// Use the UID to identify the series, but the number to sort.
	seriesUID := fm.values[tag.SeriesInstanceUID].AsString()
	c = meta.CompareUIDs(seriesUID, g.seriesUID)
	if c != 0 || seriesUID == "" {
		if c2 := int(g.seriesNumber) - int(fm.values[tag.SeriesNumber].AsUint()); c2 != 0 {
			c = c2
		}
	}
	return c
}

// groupFiles inserts each extracted file record into the ordered group
// list, then commits retained groups to the index in order. A nil entry in
// metas marks a candidate that was skipped during extraction.
func (s *Scanner) groupFiles(files []string, metas []*fileMeta) error {
	var groups []*seriesGroup

	for j, fm := range metas {
		if fm == nil {
			continue
		}
		// At image-level filtering, non-matching files never group at all.
		if !fm.queryMatched && s.cfg.FindLevel == FindImage {
			continue
		}

		entry := fileEntry{
			instance: fm.values[tag.InstanceNumber].AsUint(),
			path:     files[j],
		}
		seriesUID := fm.values[tag.SeriesInstanceUID].AsString()

		pos := len(groups)
		merged := false
		for i, g := range groups {
			c := compareGroup(g, fm)
			// A file with no series UID has no established identity and
			// always becomes its own group.
			if c == 0 && seriesUID != "" {
				g.files = append(g.files, entry)
				g.queryMatched = g.queryMatched || fm.queryMatched
				merged = true
				break
			}
			if c >= 0 {
				pos = i
				break
			}
		}
		if merged {
			continue
		}

		g := &seriesGroup{
			patientRecord: meta.NewSnapshot(meta.PatientTags, fm.values),
			patientName:   fm.values[tag.PatientName].AsString(),
			patientID:     fm.values[tag.PatientID].AsString(),
			studyRecord:   meta.NewSnapshot(meta.StudyTags, fm.values),
			studyDate:     fm.values[tag.StudyDate],
			studyTime:     fm.values[tag.StudyTime],
			studyUID:      fm.values[tag.StudyInstanceUID].AsString(),
			seriesRecord:  meta.NewSnapshot(meta.SeriesTags, fm.values),
			seriesUID:     seriesUID,
			seriesNumber:  fm.values[tag.SeriesNumber].AsUint(),
			files:         []fileEntry{entry},
			queryMatched:  fm.queryMatched,
		}
		groups = append(groups, nil)
		copy(groups[pos+1:], groups[pos:])
		groups[pos] = g
	}

	return s.commitGroups(groups)
}

// commitGroups drops groups no file of which matched the query, sorts each
// retained group's files into acquisition order, and appends the groups to
// the index, advancing the patient and study counters whenever the
// identity differs from the previous retained group.
func (s *Scanner) commitGroups(groups []*seriesGroup) error {
	patientCount := s.index.PatientCount()
	studyCount := s.index.StudyCount()

	havePrev := false
	var lastPatientID, lastPatientName, lastStudyUID string

	for _, g := range groups {
		if !g.queryMatched {
			continue
		}

		// Stable: equal or missing instance numbers keep discovery order.
		sort.SliceStable(g.files, func(i, j int) bool {
			return g.files[i].instance < g.files[j].instance
		})

		// Same identity rule as compareGroup: the ID identifies the
		// patient, except that an empty ID defers to the name.
		samePatient := havePrev && g.patientID == lastPatientID &&
			(g.patientID != "" || g.patientName == lastPatientName)
		if !samePatient {
			patientCount++
			studyCount++
		} else if g.studyUID != lastStudyUID {
			studyCount++
		}
		havePrev = true
		lastPatientID = g.patientID
		lastPatientName = g.patientName
		lastStudyUID = g.studyUID

		paths := make([]string, len(g.files))
		for i, fe := range g.files {
			paths[i] = fe.path
		}
		err := s.index.AddSeriesFiles(
			patientCount-1, studyCount-1, paths,
			g.patientRecord, g.studyRecord, g.seriesRecord)
		if err != nil {
			return err
		}
	}
	return nil
}
