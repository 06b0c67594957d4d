package meta

import (
	"github.com/suyashkumar/dicom/pkg/tag"
)

// PatientTags is the fixed attribute set captured in a patient record.
var PatientTags = []tag.Tag{
	tag.SpecificCharacterSet,
	tag.PatientName,
	tag.PatientID,
	tag.PatientBirthDate,
	tag.PatientSex,
}

// StudyTags is the fixed attribute set captured in a study record.
var StudyTags = []tag.Tag{
	tag.SpecificCharacterSet,
	tag.StudyDate,
	tag.StudyTime,
	tag.ReferringPhysicianName,
	tag.PatientAge,
	tag.StudyInstanceUID,
	tag.StudyID,
	tag.AccessionNumber,
	tag.StudyDescription,
}

// SeriesTags is the fixed attribute set captured in a series record.
var SeriesTags = []tag.Tag{
	tag.SpecificCharacterSet,
	tag.SeriesDate,
	tag.SeriesTime,
	tag.Modality,
	tag.SeriesDescription,
	tag.SeriesInstanceUID,
	tag.SeriesNumber,
}

// RequiredTags is the minimum attribute set requested from the decoder for
// every candidate file: the union of the patient, study and series record
// tags plus the image-level InstanceNumber.
var RequiredTags = buildRequiredTags()

func buildRequiredTags() []tag.Tag {
	out := []tag.Tag{
		tag.SpecificCharacterSet,
		tag.InstanceNumber,
	}
	for _, set := range [][]tag.Tag{SeriesTags, StudyTags, PatientTags} {
		for _, t := range set {
			if t != tag.SpecificCharacterSet {
				out = append(out, t)
			}
		}
	}
	return out
}

// MergeTags returns the union of base and extra, preserving the order of
// base and appending unseen extras.
func MergeTags(base, extra []tag.Tag) []tag.Tag {
	out := make([]tag.Tag, len(base), len(base)+len(extra))
	copy(out, base)
	for _, t := range extra {
		seen := false
		for _, b := range out {
			if b == t {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, t)
		}
	}
	return out
}

// Snapshot is an immutable, insertion-ordered mapping from a predeclared
// tag list to decoded values, captured once from a file's metadata.
// Lookups are linear scans; snapshots hold fewer than a dozen entries.
type Snapshot struct {
	tags   []tag.Tag
	values []Value
}

// NewSnapshot captures the given tags from a decoded value map. Tags with
// no decoded value are recorded as absent so the snapshot shape is stable.
func NewSnapshot(tags []tag.Tag, values map[tag.Tag]Value) Snapshot {
	s := Snapshot{
		tags:   make([]tag.Tag, len(tags)),
		values: make([]Value, len(tags)),
	}
	copy(s.tags, tags)
	for i, t := range tags {
		s.values[i] = values[t]
	}
	return s
}

// Get returns the value for t, or an absent Value if t is not in the
// snapshot's tag set.
func (s Snapshot) Get(t tag.Tag) Value {
	for i, st := range s.tags {
		if st == t {
			return s.values[i]
		}
	}
	return Value{}
}

// Tags returns the snapshot's tag list in capture order.
func (s Snapshot) Tags() []tag.Tag {
	out := make([]tag.Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

func (s Snapshot) Len() int { return len(s.tags) }
