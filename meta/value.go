// Package meta models decoded DICOM attribute values and the boundary to
// the low-level file decoder.
package meta

import (
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	Absent Kind = iota
	Strings
	Ints
	Floats
	Items
)

// Value is a single decoded attribute value. The zero Value is absent;
// absence is a first-class state, never a sentinel string or number.
type Value struct {
	kind    Kind
	strings []string
	ints    []int64
	floats  []float64
	items   []Snapshot
}

func NewStringValue(v ...string) Value {
	return Value{kind: Strings, strings: v}
}

func NewIntValue(v ...int64) Value {
	return Value{kind: Ints, ints: v}
}

func NewFloatValue(v ...float64) Value {
	return Value{kind: Floats, floats: v}
}

// NewItemValue wraps nested child records, as produced by the decoder for
// sequence attributes.
func NewItemValue(v ...Snapshot) Value {
	return Value{kind: Items, items: v}
}

func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether the attribute was present in the decoded file.
func (v Value) IsValid() bool { return v.kind != Absent }

// Strings returns the string variant, or nil for other kinds.
func (v Value) Strings() []string { return v.strings }

// Items returns the nested child records, or nil for other kinds.
func (v Value) Items() []Snapshot { return v.items }

// AsString returns the first value rendered as a string, or "" if absent.
func (v Value) AsString() string {
	switch v.kind {
	case Strings:
		if len(v.strings) > 0 {
			return v.strings[0]
		}
	case Ints:
		if len(v.ints) > 0 {
			return strconv.FormatInt(v.ints[0], 10)
		}
	case Floats:
		if len(v.floats) > 0 {
			return strconv.FormatFloat(v.floats[0], 'g', -1, 64)
		}
	}
	return ""
}

// AsUint returns the first value as an unsigned integer. Absent, negative
// and unparseable values yield 0, which matches how instance and series
// numbers are treated during sorting.
func (v Value) AsUint() uint64 {
	switch v.kind {
	case Ints:
		if len(v.ints) > 0 && v.ints[0] > 0 {
			return uint64(v.ints[0])
		}
	case Strings:
		if len(v.strings) > 0 {
			// IS values may carry surrounding space padding.
			s := strings.TrimSpace(v.strings[0])
			if n, err := strconv.ParseUint(s, 10, 64); err == nil {
				return n
			}
		}
	case Floats:
		if len(v.floats) > 0 && v.floats[0] > 0 {
			return uint64(v.floats[0])
		}
	}
	return 0
}

// AsUints returns all values as unsigned integers, in order.
func (v Value) AsUints() []uint64 {
	n := v.Len()
	out := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, v.index(i).AsUint())
	}
	return out
}

// Len returns the value multiplicity.
func (v Value) Len() int {
	switch v.kind {
	case Strings:
		return len(v.strings)
	case Ints:
		return len(v.ints)
	case Floats:
		return len(v.floats)
	case Items:
		return len(v.items)
	}
	return 0
}

func (v Value) index(i int) Value {
	switch v.kind {
	case Strings:
		return NewStringValue(v.strings[i])
	case Ints:
		return NewIntValue(v.ints[i])
	case Floats:
		return NewFloatValue(v.floats[i])
	}
	return Value{}
}

// Equal reports whether two values hold the same kind and contents.
// Two absent values compare equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.Len() != o.Len() {
		return false
	}
	switch v.kind {
	case Strings:
		for i := range v.strings {
			if v.strings[i] != o.strings[i] {
				return false
			}
		}
	case Ints:
		for i := range v.ints {
			if v.ints[i] != o.ints[i] {
				return false
			}
		}
	case Floats:
		for i := range v.floats {
			if v.floats[i] != o.floats[i] {
				return false
			}
		}
	case Items:
		// Nested records never compare equal unless both are empty.
		return v.Len() == 0
	}
	return true
}
