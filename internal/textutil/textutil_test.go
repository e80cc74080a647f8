package textutil

import "testing"

func TestLenCountsGraphemes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"éx", 2},
		{"日本", 2},
	}
	for _, tt := range tests {
		if got := Len(tt.in); got != tt.want {
			t.Errorf("Len(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestReplaceRange(t *testing.T) {
	tests := []struct {
		s          string
		start, end int
		repl       string
		want       string
	}{
		{"1+2", 0, 1, "", "+2"},
		{"1+2", 3, 3, "3", "1+23"},
		{"1+2", 1, 0, "", "+2"},
		{"éx", 1, 2, "y", "éy"},
	}
	for _, tt := range tests {
		if got := ReplaceRange(tt.s, tt.start, tt.end, tt.repl); got != tt.want {
			t.Errorf("ReplaceRange(%q,%d,%d,%q) = %q, want %q", tt.s, tt.start, tt.end, tt.repl, got, tt.want)
		}
	}
}

func TestColumns(t *testing.T) {
	if got := Width("日本"); got != 4 {
		t.Errorf("Width = %d, want 4", got)
	}
	if got := ColumnOf("日本x", 2); got != 4 {
		t.Errorf("ColumnOf = %d, want 4", got)
	}
	if got := OffsetAt("abcd", 2); got != 2 {
		t.Errorf("OffsetAt = %d, want 2", got)
	}
	if got := OffsetAt("日本", 3); got != 1 {
		t.Errorf("OffsetAt wide = %d, want 1", got)
	}
	if got := OffsetAt("ab", 10); got != 2 {
		t.Errorf("OffsetAt past end = %d, want 2", got)
	}
}

func TestSliceAndClamp(t *testing.T) {
	if got := Slice("hello", 1, 3); got != "el" {
		t.Errorf("Slice = %q", got)
	}
	if got := Clamp("ab", 5); got != 2 {
		t.Errorf("Clamp = %d", got)
	}
	if got := Clamp("ab", -1); got != 0 {
		t.Errorf("Clamp negative = %d", got)
	}
}
