package dirindex

import (
	"fmt"

	"github.com/gview/dicomindex/meta"
)

// SeriesEntry is one indexed series: its record snapshot and the paths of
// its files in acquisition order.
type SeriesEntry struct {
	Record meta.Snapshot
	Files  []string
}

// StudyEntry is one indexed study. Its series occupy the contiguous range
// [FirstSeries, LastSeries] of the series array.
type StudyEntry struct {
	Record        meta.Snapshot
	PatientRecord meta.Snapshot
	FirstSeries   int
	LastSeries    int
}

// PatientEntry is one indexed patient with the indices of its studies in
// first-seen order.
type PatientEntry struct {
	Record  meta.Snapshot
	Studies []int
}

// DirectoryIndex is the output of a scan: append-only patient, study and
// series arrays linked by integer index.
type DirectoryIndex struct {
	series   []SeriesEntry
	studies  []StudyEntry
	patients []PatientEntry
}

func (x *DirectoryIndex) SeriesCount() int  { return len(x.series) }
func (x *DirectoryIndex) StudyCount() int   { return len(x.studies) }
func (x *DirectoryIndex) PatientCount() int { return len(x.patients) }

// SeriesRecord returns the record snapshot for series i.
func (x *DirectoryIndex) SeriesRecord(i int) meta.Snapshot {
	return x.series[i].Record
}

// FilesForSeries returns the file paths of series i in acquisition order.
func (x *DirectoryIndex) FilesForSeries(i int) []string {
	return x.series[i].Files
}

// StudyRecord returns the record snapshot for study i.
func (x *DirectoryIndex) StudyRecord(i int) meta.Snapshot {
	return x.studies[i].Record
}

// PatientRecordForStudy returns the patient record captured with study i.
func (x *DirectoryIndex) PatientRecordForStudy(i int) meta.Snapshot {
	return x.studies[i].PatientRecord
}

// FirstSeriesForStudy and LastSeriesForStudy bound study i's series range.
func (x *DirectoryIndex) FirstSeriesForStudy(i int) int {
	return x.studies[i].FirstSeries
}

func (x *DirectoryIndex) LastSeriesForStudy(i int) int {
	return x.studies[i].LastSeries
}

// PatientRecord returns the record snapshot for patient i.
func (x *DirectoryIndex) PatientRecord(i int) meta.Snapshot {
	return x.patients[i].Record
}

// StudiesForPatient returns the study indices of patient i in first-seen
// order, without duplicates.
func (x *DirectoryIndex) StudiesForPatient(i int) []int {
	return x.patients[i].Studies
}

func (x *DirectoryIndex) clear() {
	x.series = nil
	x.studies = nil
	x.patients = nil
}

// AddSeriesFiles appends one series to the index. The study index must
// either equal the study count (a new study) or refer to the most recently
// appended study; the same discipline applies to the patient index. Any
// other value is a logic error in the caller and the append is rejected.
func (x *DirectoryIndex) AddSeriesFiles(
	patient, study int, files []string,
	patientRecord, studyRecord, seriesRecord meta.Snapshot) error {

	m := len(x.patients)
	n := len(x.studies)
	series := len(x.series)

	switch {
	case study == n:
		x.studies = append(x.studies, StudyEntry{
			Record:        studyRecord,
			PatientRecord: patientRecord,
			FirstSeries:   series,
			LastSeries:    series,
		})
	case n > 0 && study == n-1:
		x.studies[study].LastSeries = series
	default:
		return fmt.Errorf("dirindex: non-monotonic study index %d (count %d)", study, n)
	}

	switch {
	case patient == m:
		x.patients = append(x.patients, PatientEntry{
			Record:  patientRecord,
			Studies: []int{study},
		})
	case m > 0 && patient == m-1:
		p := &x.patients[patient]
		found := false
		for _, s := range p.Studies {
			if s == study {
				found = true
				break
			}
		}
		if !found {
			p.Studies = append(p.Studies, study)
		}
	default:
		return fmt.Errorf("dirindex: non-monotonic patient index %d (count %d)", patient, m)
	}

	x.series = append(x.series, SeriesEntry{Record: seriesRecord, Files: files})
	return nil
}
