package meta

import "testing"

func TestValueValidity(t *testing.T) {
	var absent Value
	if absent.IsValid() {
		t.Error("zero Value must be absent")
	}
	if absent.AsString() != "" || absent.AsUint() != 0 {
		t.Error("absent Value must render as empty string and zero")
	}
	if !NewStringValue("").IsValid() {
		t.Error("an empty string value is still present")
	}
}

func TestValueAsUint(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want uint64
	}{
		{"Int", NewIntValue(7), 7},
		{"Negative int", NewIntValue(-7), 0},
		{"Integer string", NewStringValue("12"), 12},
		{"Padded integer string", NewStringValue(" 12 "), 12},
		{"Garbage string", NewStringValue("abc"), 0},
		{"Empty string", NewStringValue(""), 0},
		{"Float", NewFloatValue(3.7), 3},
		{"Absent", Value{}, 0},
		{"No values", NewStringValue(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.AsUint(); got != tt.want {
				t.Errorf("AsUint() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"Both absent", Value{}, Value{}, true},
		{"Absent vs present", Value{}, NewStringValue("x"), false},
		{"Same strings", NewStringValue("a", "b"), NewStringValue("a", "b"), true},
		{"Different strings", NewStringValue("a"), NewStringValue("b"), false},
		{"Different multiplicity", NewStringValue("a"), NewStringValue("a", "a"), false},
		{"Kind mismatch", NewStringValue("1"), NewIntValue(1), false},
		{"Same ints", NewIntValue(1, 2), NewIntValue(1, 2), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueAsString(t *testing.T) {
	if got := NewIntValue(42).AsString(); got != "42" {
		t.Errorf("int AsString() = %q, want %q", got, "42")
	}
	if got := NewStringValue("DOE^JOHN", "extra").AsString(); got != "DOE^JOHN" {
		t.Errorf("AsString() = %q, want first value", got)
	}
}
