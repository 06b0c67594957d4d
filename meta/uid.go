package meta

import "strings"

// CompareUIDs orders two DICOM unique identifiers. UIDs are compared one
// dot-separated segment at a time, numerically rather than lexically, so
// "1.2.10" sorts after "1.2.9". An empty UID sorts before any non-empty
// UID. Returns -1, 0 or +1.
func CompareUIDs(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	for a != "" || b != "" {
		var sa, sb string
		sa, a = nextSegment(a)
		sb, b = nextSegment(b)
		if c := compareSegment(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

func nextSegment(s string) (seg, rest string) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func compareSegment(a, b string) int {
	// Leading zeros do not affect the numeric value.
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
