package dirindex

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/gview/dicomindex/meta"
)

// fakeDecoder serves canned metadata keyed by file base name, so tests
// control identity attributes without crafting binary files.
type fakeDecoder struct {
	mu       sync.Mutex
	results  map[string]*meta.Result
	errs     map[string]error
	dirFiles map[string]*meta.DirectoryFile
	decoded  []string
}

func (d *fakeDecoder) Decode(path string, want []tag.Tag, query *meta.Query) (*meta.Result, error) {
	d.mu.Lock()
	d.decoded = append(d.decoded, path)
	d.mu.Unlock()

	base := filepath.Base(path)
	if err, ok := d.errs[base]; ok {
		return nil, err
	}
	r, ok := d.results[base]
	if !ok {
		return nil, meta.ErrNotDICOM
	}
	out := &meta.Result{
		Values:         r.Values,
		PixelDataFound: r.PixelDataFound,
		QueryMatched:   true,
	}
	if !query.IsEmpty() {
		out.QueryMatched = query.Matches(r.Values)
	}
	return out, nil
}

func (d *fakeDecoder) DecodeDirectoryFile(path string) (*meta.DirectoryFile, error) {
	if err, ok := d.errs[filepath.Base(path)]; ok {
		return nil, err
	}
	df, ok := d.dirFiles[path]
	if !ok {
		return nil, meta.ErrNotDICOM
	}
	return df, nil
}

func (d *fakeDecoder) decodedPaths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.decoded))
	copy(out, d.decoded)
	return out
}

type attrs map[tag.Tag]meta.Value

func str(s string) meta.Value { return meta.NewStringValue(s) }

func fileResult(a attrs) *meta.Result {
	return &meta.Result{Values: a, PixelDataFound: true, QueryMatched: true}
}

// identity builds the minimal attribute set for one file.
func identity(patientID, patientName, studyUID, seriesUID string, instance int) attrs {
	a := attrs{}
	if patientID != "" {
		a[tag.PatientID] = str(patientID)
	}
	if patientName != "" {
		a[tag.PatientName] = str(patientName)
	}
	if studyUID != "" {
		a[tag.StudyInstanceUID] = str(studyUID)
	}
	if seriesUID != "" {
		a[tag.SeriesInstanceUID] = str(seriesUID)
	}
	if instance > 0 {
		a[tag.InstanceNumber] = meta.NewIntValue(int64(instance))
	}
	return a
}

// mkFiles creates empty files under dir and returns their paths in order.
func mkFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(paths[i]), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(paths[i], []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}
