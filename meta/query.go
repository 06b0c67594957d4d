package meta

import (
	"github.com/suyashkumar/dicom/pkg/tag"
)

// QueryTerm is one attribute constraint: the attribute must be present and
// its value must match Pattern. An empty Pattern requests the attribute
// without constraining it, so it always matches.
type QueryTerm struct {
	Tag     tag.Tag
	Pattern string
}

// Query is a caller-supplied set of attribute constraints evaluated against
// each decoded file. Term order is preserved but has no effect on matching.
type Query struct {
	Terms []QueryTerm
}

// Add appends a term; a repeated tag tightens the query with both patterns.
func (q *Query) Add(t tag.Tag, pattern string) {
	q.Terms = append(q.Terms, QueryTerm{Tag: t, Pattern: pattern})
}

// IsEmpty reports whether the query constrains anything at all.
func (q *Query) IsEmpty() bool {
	return q == nil || len(q.Terms) == 0
}

// Tags returns the tags the query needs decoded, in term order without
// duplicates.
func (q *Query) Tags() []tag.Tag {
	if q == nil {
		return nil
	}
	var out []tag.Tag
	for _, term := range q.Terms {
		seen := false
		for _, t := range out {
			if t == term.Tag {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, term.Tag)
		}
	}
	return out
}

// Matches evaluates the query against a decoded value map. A term with an
// empty pattern always matches. A non-empty pattern never matches an
// absent attribute. Multi-valued attributes match if any single value
// matches the pattern.
func (q *Query) Matches(values map[tag.Tag]Value) bool {
	if q == nil {
		return true
	}
	for _, term := range q.Terms {
		if term.Pattern == "" {
			continue
		}
		v := values[term.Tag]
		if !v.IsValid() {
			return false
		}
		matched := false
		n := v.Len()
		for i := 0; i < n && !matched; i++ {
			matched = patternMatches(term.Pattern, v.index(i).AsString())
		}
		if !matched {
			return false
		}
	}
	return true
}

// patternMatches implements DICOM wildcard matching: '*' matches any run
// of characters and '?' matches exactly one.
func patternMatches(pattern, value string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Collapse runs of '*' and try every suffix of value.
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if pattern == "" {
				return true
			}
			for i := 0; i <= len(value); i++ {
				if patternMatches(pattern, value[i:]) {
					return true
				}
			}
			return false
		case '?':
			if value == "" {
				return false
			}
			pattern = pattern[1:]
			value = value[1:]
		default:
			if value == "" || pattern[0] != value[0] {
				return false
			}
			pattern = pattern[1:]
			value = value[1:]
		}
	}
	return value == ""
}
