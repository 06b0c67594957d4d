// Command dicomindex scans a directory tree (or a DICOMDIR media root) and
// prints the resulting patient/study/series index as CSV.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/gview/dicomindex/dirindex"
	"github.com/gview/dicomindex/meta"
)

const version string = "0.1.0"

// The string below will be replaced during build time using
// -ldflags "-X main.compileDate=`date -u +.%Y%m%d.%H%M%S"`"
var compileDate string = ".unknown"

var (
	configFlag           string
	patternFlag          string
	depthFlag            int
	followSymlinksFlag   bool
	requirePixelDataFlag bool
	levelFlag            string
	workersFlag          int
	outputFlag           string
	verboseFlag          bool
	versionFlag          bool
)

func exitGracefully(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// queryFlag collects repeatable -k Tag=Pattern constraints. Tags may be
// given by dictionary name ("PatientName") or as hexadecimal "GGGG,EEEE".
type queryFlag struct {
	query meta.Query
}

func (q *queryFlag) String() string {
	parts := make([]string, 0, len(q.query.Terms))
	for _, term := range q.query.Terms {
		parts = append(parts, fmt.Sprintf("%04x,%04x=%s",
			term.Tag.Group, term.Tag.Element, term.Pattern))
	}
	return strings.Join(parts, ";")
}

func (q *queryFlag) Set(v string) error {
	name, pattern, _ := strings.Cut(v, "=")
	t, err := resolveTag(name)
	if err != nil {
		return err
	}
	q.query.Add(t, pattern)
	return nil
}

func resolveTag(name string) (tag.Tag, error) {
	if g, e, ok := strings.Cut(name, ","); ok {
		group, err1 := strconv.ParseUint(strings.TrimSpace(g), 16, 16)
		elem, err2 := strconv.ParseUint(strings.TrimSpace(e), 16, 16)
		if err1 == nil && err2 == nil {
			return tag.Tag{Group: uint16(group), Element: uint16(elem)}, nil
		}
	}
	info, err := tag.FindByName(name)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("unknown tag %q", name)
	}
	return info.Tag, nil
}

// columns printed for every indexed series.
var columns = []struct {
	name string
	from string // patient, study or series record
	tag  tag.Tag
}{
	{"PatientID", "patient", tag.PatientID},
	{"PatientName", "patient", tag.PatientName},
	{"StudyDate", "study", tag.StudyDate},
	{"StudyTime", "study", tag.StudyTime},
	{"StudyInstanceUID", "study", tag.StudyInstanceUID},
	{"Modality", "series", tag.Modality},
	{"SeriesNumber", "series", tag.SeriesNumber},
	{"SeriesDescription", "series", tag.SeriesDescription},
	{"SeriesInstanceUID", "series", tag.SeriesInstanceUID},
}

func writeIndex(w io.Writer, idx *dirindex.DirectoryIndex) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		header = append(header, col.name)
	}
	header = append(header, "NumFiles")
	if err := cw.Write(header); err != nil {
		return err
	}

	for p := 0; p < idx.PatientCount(); p++ {
		for _, study := range idx.StudiesForPatient(p) {
			patientRec := idx.PatientRecordForStudy(study)
			studyRec := idx.StudyRecord(study)
			first := idx.FirstSeriesForStudy(study)
			last := idx.LastSeriesForStudy(study)
			for series := first; series <= last; series++ {
				seriesRec := idx.SeriesRecord(series)
				row := make([]string, 0, len(columns)+1)
				for _, col := range columns {
					var rec = seriesRec
					switch col.from {
					case "patient":
						rec = patientRec
					case "study":
						rec = studyRec
					}
					row = append(row, rec.Get(col.tag).AsString())
				}
				row = append(row, strconv.Itoa(len(idx.FilesForSeries(series))))
				if err := cw.Write(row); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func indexedBytes(idx *dirindex.DirectoryIndex) (files int, bytes int64) {
	for i := 0; i < idx.SeriesCount(); i++ {
		for _, path := range idx.FilesForSeries(i) {
			files++
			if fi, err := os.Stat(path); err == nil {
				bytes += fi.Size()
			}
		}
	}
	return files, bytes
}

func main() {
	log.SetFlags(0)

	var query queryFlag
	flag.StringVar(&configFlag, "config", "", "Read options from a YAML file (flags override it)")
	flag.StringVar(&patternFlag, "pattern", "", "Only index files whose name matches this glob")
	flag.IntVar(&depthFlag, "depth", 8, "Recursion depth below the scan root (0 scans the root only)")
	flag.BoolVar(&followSymlinksFlag, "follow-symlinks", true, "Follow symbolic links while scanning")
	flag.BoolVar(&requirePixelDataFlag, "require-pixel-data", true, "Skip files that carry no pixel data")
	flag.StringVar(&levelFlag, "level", "series", "Query match level (series|image)")
	flag.IntVar(&workersFlag, "workers", 1, "Shard metadata extraction across this many workers")
	flag.StringVar(&outputFlag, "o", "", "Write the CSV listing to this file instead of stdout")
	flag.Var(&query, "k", "Query key as Tag=Pattern, may be repeated (e.g. -k Modality=MR)")
	flag.BoolVar(&verboseFlag, "verbose", false, "Print more verbose output")
	flag.BoolVar(&versionFlag, "version", false, "Print the version number")
	flag.Parse()

	if versionFlag {
		timeThen := time.Now()
		setTime := false
		if compileDate != "" {
			layout := ".20060102.150405"
			if t, err := time.Parse(layout, compileDate); err == nil {
				timeThen = t
				setTime = true
			}
		}
		fmt.Printf("dicomindex version %s%s", version, compileDate)
		if setTime {
			fmt.Printf(" build %.0f days ago\n", math.Round(time.Since(timeThen).Hours()/24))
		} else {
			fmt.Println()
		}
		os.Exit(0)
	}

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	roots := flag.Args()
	if configFlag != "" {
		cfg, err := readConfig(configFlag)
		if err != nil {
			exitGracefully(err)
		}
		if len(roots) == 0 && cfg.Directory != "" {
			roots = []string{cfg.Directory}
		}
		if !explicit["pattern"] && cfg.Pattern != "" {
			patternFlag = cfg.Pattern
		}
		if !explicit["depth"] && cfg.Depth != nil {
			depthFlag = *cfg.Depth
		}
		if !explicit["follow-symlinks"] && cfg.FollowSymlinks != nil {
			followSymlinksFlag = *cfg.FollowSymlinks
		}
		if !explicit["require-pixel-data"] && cfg.RequirePixelData != nil {
			requirePixelDataFlag = *cfg.RequirePixelData
		}
		if !explicit["level"] && cfg.Level != "" {
			levelFlag = cfg.Level
		}
		if !explicit["workers"] && cfg.Workers != nil {
			workersFlag = *cfg.Workers
		}
	}
	if len(roots) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: dicomindex [options] <directory> [more inputs...]")
		os.Exit(-1)
	}

	var level dirindex.FindLevel
	switch levelFlag {
	case "series":
		level = dirindex.FindSeries
	case "image":
		level = dirindex.FindImage
	default:
		exitGracefully(fmt.Errorf("unknown level %q, expected series or image", levelFlag))
	}

	cfg := dirindex.Config{
		FilePattern:      patternFlag,
		ScanDepth:        depthFlag,
		FollowSymlinks:   followSymlinksFlag,
		RequirePixelData: requirePixelDataFlag,
		FindLevel:        level,
		Workers:          workersFlag,
	}
	if len(roots) == 1 {
		if fi, err := os.Stat(roots[0]); err == nil && fi.IsDir() {
			cfg.DirectoryName = roots[0]
		} else {
			cfg.InputFileNames = roots
		}
	} else {
		cfg.InputFileNames = roots
	}
	if !query.query.IsEmpty() {
		cfg.Query = &query.query
	}
	if verboseFlag {
		cfg.Progress = func(f float64) {
			fmt.Fprintf(os.Stderr, "\rscanning %3.0f%%", f*100)
			if f >= 1 {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	scanner := dirindex.New(cfg)
	res, err := scanner.Scan(ctx)
	if err != nil {
		exitGracefully(err)
	}
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", res.Err)
	}
	if res.Status == dirindex.StatusAborted {
		fmt.Fprintln(os.Stderr, "scan interrupted, listing partial index")
	}

	out := os.Stdout
	if outputFlag != "" {
		f, err := os.Create(outputFlag)
		if err != nil {
			exitGracefully(err)
		}
		defer f.Close()
		out = f
	}
	if err := writeIndex(out, res.Index); err != nil {
		exitGracefully(err)
	}

	if verboseFlag {
		files, bytes := indexedBytes(res.Index)
		if res.FileSetID != "" {
			log.Printf("file set %q", res.FileSetID)
		}
		log.Printf("✓ indexed %d patients, %d studies, %d series, %d files [%s] in %s",
			res.Index.PatientCount(), res.Index.StudyCount(), res.Index.SeriesCount(),
			files, humanize.IBytes(uint64(bytes)), time.Since(startTime).Round(time.Millisecond))
	}
}
