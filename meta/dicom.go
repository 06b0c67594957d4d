package meta

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// FileDecoder is the production Decoder. It reads file metadata with the
// suyashkumar/dicom parser, skipping pixel data values and stopping early
// once every requested tag has been seen.
type FileDecoder struct {
	// BufferSize, when positive, wraps reads in a buffer of that size.
	// Useful for small query-driven reads that never touch pixel data.
	BufferSize int
}

const magicOffset = 128

// hasSignature performs the lightweight format check: a 128-byte preamble
// followed by the "DICM" magic.
func hasSignature(f *os.File) bool {
	var buf [magicOffset + 4]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return false
	}
	return string(buf[magicOffset:]) == "DICM"
}

// IsDICOMFile reports whether the file at path carries a DICOM signature.
func IsDICOMFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return hasSignature(f)
}

func (d *FileDecoder) Decode(path string, want []tag.Tag, query *Query) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !hasSignature(f) {
		return nil, ErrNotDICOM
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var r io.Reader = f
	if d.BufferSize > 0 {
		r = bufio.NewReaderSize(f, d.BufferSize)
	}
	p, err := dicom.NewParser(r, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}

	wantTags := want
	if !query.IsEmpty() {
		wantTags = MergeTags(want, query.Tags())
	}
	wanted := make(map[tag.Tag]bool, len(wantTags))
	for _, t := range wantTags {
		wanted[t] = true
	}

	res := &Result{Values: make(map[tag.Tag]Value, len(wantTags))}
	remaining := len(wantTags)
	for {
		el, err := p.Next()
		if err != nil {
			if errors.Is(err, dicom.ErrorEndOfDICOM) || errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if el.Tag == tag.PixelData {
			res.PixelDataFound = true
			continue
		}
		if wanted[el.Tag] {
			if _, dup := res.Values[el.Tag]; !dup {
				res.Values[el.Tag] = convertValue(el)
				remaining--
			}
		}
		if remaining == 0 && res.PixelDataFound {
			break
		}
	}

	res.QueryMatched = query.IsEmpty() || query.Matches(res.Values)
	return res, nil
}

// convertValue maps a parsed element onto the attribute value model.
func convertValue(el *dicom.Element) Value {
	switch el.Value.ValueType() {
	case dicom.Strings:
		return NewStringValue(el.Value.GetValue().([]string)...)
	case dicom.Ints:
		in := el.Value.GetValue().([]int)
		out := make([]int64, len(in))
		for i, v := range in {
			out[i] = int64(v)
		}
		return NewIntValue(out...)
	case dicom.Floats:
		return NewFloatValue(el.Value.GetValue().([]float64)...)
	case dicom.Sequences:
		items, ok := el.Value.GetValue().([]*dicom.SequenceItemValue)
		if !ok {
			return Value{}
		}
		out := make([]Snapshot, 0, len(items))
		for _, item := range items {
			out = append(out, convertItem(item))
		}
		return NewItemValue(out...)
	}
	return Value{}
}

func convertItem(item *dicom.SequenceItemValue) Snapshot {
	elems, ok := item.GetValue().([]*dicom.Element)
	if !ok {
		return Snapshot{}
	}
	tags := make([]tag.Tag, 0, len(elems))
	values := make(map[tag.Tag]Value, len(elems))
	for _, el := range elems {
		if _, dup := values[el.Tag]; dup {
			continue
		}
		tags = append(tags, el.Tag)
		values[el.Tag] = convertValue(el)
	}
	return NewSnapshot(tags, values)
}

func (d *FileDecoder) DecodeDirectoryFile(path string) (*DirectoryFile, error) {
	if !IsDICOMFile(path) {
		return nil, ErrNotDICOM
	}
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}

	df := &DirectoryFile{}
	if el, err := ds.FindElementByTag(tag.FileSetID); err == nil {
		df.FileSetID = strings.TrimSpace(convertValue(el).AsString())
	}
	if el, err := ds.FindElementByTag(
		tag.OffsetOfTheFirstDirectoryRecordOfTheRootDirectoryEntity); err == nil {
		df.RootOffset = uint32(convertValue(el).AsUint())
	}

	seqEl, err := ds.FindElementByTag(tag.DirectoryRecordSequence)
	if err != nil {
		// An index with no records is valid, if useless.
		return df, nil
	}
	items, ok := seqEl.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return df, nil
	}

	records := make([]DirRecord, 0, len(items))
	for _, item := range items {
		elems, ok := item.GetValue().([]*dicom.Element)
		if !ok {
			continue
		}
		rec := DirRecord{Values: make(map[tag.Tag]Value)}
		for _, el := range elems {
			switch el.Tag {
			case tag.OffsetOfTheNextDirectoryRecord:
				rec.Next = uint32(convertValue(el).AsUint())
			case tag.OffsetOfReferencedLowerLevelDirectoryEntity:
				rec.Child = uint32(convertValue(el).AsUint())
			case tag.DirectoryRecordType:
				rec.Type = strings.TrimSpace(convertValue(el).AsString())
			case tag.ReferencedFileID:
				rec.FileID = convertValue(el).Strings()
			default:
				rec.Values[el.Tag] = convertValue(el)
			}
		}
		records = append(records, rec)
	}
	assignRecordOffsets(df.RootOffset, records)
	df.Records = records

	if df.RootOffset == 0 && len(records) > 0 {
		df.RootOffset = records[0].Offset
	}
	return df, nil
}

// assignRecordOffsets recovers each record's own byte offset. The parser
// does not report where a sequence item started, but records are stored in
// ascending offset order and every in-use record is referenced exactly once
// as root, next or child, so the sorted set of referenced offsets maps onto
// the record array positionally.
func assignRecordOffsets(root uint32, records []DirRecord) {
	seen := make(map[uint32]bool)
	var offsets []uint32
	add := func(off uint32) {
		if off != 0 && !seen[off] {
			seen[off] = true
			offsets = append(offsets, off)
		}
	}
	add(root)
	for _, rec := range records {
		add(rec.Next)
		add(rec.Child)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	for i := range records {
		if i < len(offsets) {
			records[i].Offset = offsets[i]
		}
	}
}
