package dirindex

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gview/dicomindex/meta"
)

func TestRescanIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	mkFiles(t, dir,
		filepath.Join("d1", "a.dcm"),
		filepath.Join("d1", "b.dcm"),
		filepath.Join("d2", "c.dcm"),
		"top.dcm")
	results := map[string]*meta.Result{
		"a.dcm":   fileResult(identity("P2", "BAKER", "S2", "SE2", 1)),
		"b.dcm":   fileResult(identity("P1", "ADAMS", "S1", "SE1", 2)),
		"c.dcm":   fileResult(identity("P1", "ADAMS", "S1", "SE1", 1)),
		"top.dcm": fileResult(identity("P1", "ADAMS", "S1", "SE3", 1)),
	}

	snapshot := func(workers int) ([]int, [][]string) {
		dec := &fakeDecoder{results: results}
		s := New(Config{
			DirectoryName: dir,
			ScanDepth:     2,
			Workers:       workers,
			Decoder:       dec,
		})
		res, err := s.Scan(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		idx := res.Index
		counts := []int{idx.PatientCount(), idx.StudyCount(), idx.SeriesCount()}
		var series [][]string
		for i := 0; i < idx.SeriesCount(); i++ {
			series = append(series, idx.FilesForSeries(i))
		}
		return counts, series
	}

	c1, s1 := snapshot(1)
	if c1[0] != 2 || c1[1] != 2 || c1[2] != 3 {
		t.Fatalf("counts = %v, want [2 2 3]", c1)
	}

	for name, workers := range map[string]int{"Rescan": 1, "Parallel": 4} {
		t.Run(name, func(t *testing.T) {
			c2, s2 := snapshot(workers)
			for i := range c1 {
				if c1[i] != c2[i] {
					t.Fatalf("counts differ: %v vs %v", c1, c2)
				}
			}
			for i := range s1 {
				if len(s1[i]) != len(s2[i]) {
					t.Fatalf("series %d file counts differ: %v vs %v", i, s1[i], s2[i])
				}
				for j := range s1[i] {
					if s1[i][j] != s2[i][j] {
						t.Errorf("series %d file %d: %q vs %q", i, j, s1[i][j], s2[i][j])
					}
				}
			}
		})
	}
}

func TestCancelledScanAbortsCleanly(t *testing.T) {
	dir := t.TempDir()
	mkFiles(t, dir, "a.dcm")
	dec := &fakeDecoder{results: map[string]*meta.Result{
		"a.dcm": fileResult(identity("P1", "DOE", "S1", "SE1", 1)),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := New(Config{DirectoryName: dir, Decoder: dec}).Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() error = %v, want nil on abort", err)
	}

	if res.Status != StatusAborted {
		t.Errorf("Status = %v, want StatusAborted", res.Status)
	}
	// The partial index is still well formed, here trivially empty.
	if got := res.Index.SeriesCount(); got != 0 {
		t.Errorf("SeriesCount() = %d, want 0", got)
	}
}

func TestProgressMonotonicAndComplete(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a.dcm", "b.dcm", "c.dcm", "d.dcm", "e.dcm"}
	mkFiles(t, dir, names...)
	results := make(map[string]*meta.Result, len(names))
	for i, name := range names {
		results[name] = fileResult(identity("P1", "DOE", "S1", "SE"+name, i+1))
	}

	var observed []float64
	res, err := New(Config{
		DirectoryName: dir,
		Decoder:       &fakeDecoder{results: results},
		Progress:      func(f float64) { observed = append(observed, f) },
	}).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusComplete {
		t.Fatalf("Status = %v, want StatusComplete", res.Status)
	}

	if len(observed) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(observed); i++ {
		if observed[i] < observed[i-1] {
			t.Errorf("progress went backwards: %v", observed)
		}
	}
	if last := observed[len(observed)-1]; last != 1 {
		t.Errorf("final progress = %v, want 1", last)
	}
}

func TestMissingRootIsFatal(t *testing.T) {
	res, err := New(Config{
		DirectoryName: filepath.Join(t.TempDir(), "nope"),
		Decoder:       &fakeDecoder{},
	}).Scan(context.Background())

	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Scan() error = %v, want not-found", err)
	}
	if res.Err == nil || !errors.Is(res.Err, ErrNotFound) {
		t.Errorf("Result.Err = %v, want not-found", res.Err)
	}
}

func TestFileRootIsNotADirectory(t *testing.T) {
	dir := t.TempDir()
	paths := mkFiles(t, dir, "plain.dcm")

	_, err := New(Config{
		DirectoryName: paths[0],
		Decoder:       &fakeDecoder{},
	}).Scan(context.Background())

	if !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("Scan() error = %v, want not-a-directory", err)
	}
}

func TestEmptyRootYieldsEmptyIndex(t *testing.T) {
	res, err := New(Config{Decoder: &fakeDecoder{}}).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Index.SeriesCount() != 0 || res.Err != nil {
		t.Errorf("want empty clean result, got %d series, err %v",
			res.Index.SeriesCount(), res.Err)
	}
}

func TestInputFileNamesMixedRoots(t *testing.T) {
	dir := t.TempDir()
	paths := mkFiles(t, dir,
		filepath.Join("sub", "a.dcm"),
		"b.dcm",
		"skip.txt")
	dec := &fakeDecoder{results: map[string]*meta.Result{
		"a.dcm": fileResult(identity("P1", "DOE", "S1", "SE1", 1)),
		"b.dcm": fileResult(identity("P1", "DOE", "S1", "SE2", 1)),
	}}

	missing := filepath.Join(dir, "absent.dcm")
	res, err := New(Config{
		InputFileNames: []string{missing, filepath.Join(dir, "sub"), paths[1], paths[2]},
		FilePattern:    "*.dcm",
		Decoder:        dec,
	}).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// A missing explicit input is recorded but does not stop the scan,
	// and the pattern still filters explicit plain files.
	if res.Err == nil || !errors.Is(res.Err, ErrNotFound) {
		t.Errorf("Result.Err = %v, want not-found for %s", res.Err, missing)
	}
	if got := res.Index.SeriesCount(); got != 2 {
		t.Errorf("SeriesCount() = %d, want 2", got)
	}
}

func TestFirstDecodeErrorRetained(t *testing.T) {
	dir := t.TempDir()
	mkFiles(t, dir, "a.dcm", "bad1.dcm", "bad2.dcm")
	dec := &fakeDecoder{
		results: map[string]*meta.Result{
			"a.dcm": fileResult(identity("P1", "DOE", "S1", "SE1", 1)),
		},
		errs: map[string]error{
			"bad1.dcm": errors.New("short read"),
			"bad2.dcm": errors.New("bad preamble"),
		},
	}

	res, err := New(Config{DirectoryName: dir, Decoder: dec}).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.Err == nil {
		t.Fatal("Result.Err = nil, want first decode error")
	}
	if !errors.Is(res.Err, ErrDecode) {
		t.Errorf("Result.Err = %v, want decode error", res.Err)
	}
	if want := filepath.Join(dir, "bad1.dcm"); res.Err.Path != want {
		t.Errorf("Result.Err.Path = %q, want %q", res.Err.Path, want)
	}
	// The failing files are excluded; the healthy one is indexed.
	if got := res.Index.SeriesCount(); got != 1 {
		t.Errorf("SeriesCount() = %d, want 1", got)
	}
}

func TestNonDICOMFilesSilentlySkipped(t *testing.T) {
	dir := t.TempDir()
	mkFiles(t, dir, "a.dcm", "readme.txt")
	dec := &fakeDecoder{results: map[string]*meta.Result{
		"a.dcm": fileResult(identity("P1", "DOE", "S1", "SE1", 1)),
	}}

	res, err := New(Config{DirectoryName: dir, Decoder: dec}).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.Err != nil {
		t.Errorf("Result.Err = %v, want nil for non-DICOM content", res.Err)
	}
	if got := res.Index.SeriesCount(); got != 1 {
		t.Errorf("SeriesCount() = %d, want 1", got)
	}
}
