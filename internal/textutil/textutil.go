// Package textutil measures and slices cell text in grapheme clusters.
//
// Caret offsets throughout cellstorm count grapheme clusters, not bytes or
// runes, so that a combining sequence or an emoji is a single caret step.
// Horizontal positions count terminal columns.
package textutil

import (
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Len returns the number of grapheme clusters in s.
func Len(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// Width returns the display width of s in columns.
func Width(s string) int {
	return runewidth.StringWidth(s)
}

// byteOffset returns the byte index at which grapheme offset n starts.
// Offsets past the end clamp to len(s).
func byteOffset(s string, n int) int {
	if n <= 0 {
		return 0
	}
	state := -1
	pos := 0
	rest := s
	for i := 0; i < n && len(rest) > 0; i++ {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		pos += len(cluster)
	}
	return pos
}

// Clamp limits offset to [0, Len(s)].
func Clamp(s string, offset int) int {
	if offset < 0 {
		return 0
	}
	if n := Len(s); offset > n {
		return n
	}
	return offset
}

// Slice returns the graphemes in [start, end).
func Slice(s string, start, end int) string {
	if end < start {
		start, end = end, start
	}
	return s[byteOffset(s, start):byteOffset(s, end)]
}

// ReplaceRange replaces the graphemes in [start, end) with replacement.
func ReplaceRange(s string, start, end int, replacement string) string {
	if end < start {
		start, end = end, start
	}
	return s[:byteOffset(s, start)] + replacement + s[byteOffset(s, end):]
}

// ColumnOf returns the display column at which grapheme offset starts.
func ColumnOf(s string, offset int) int {
	return Width(s[:byteOffset(s, offset)])
}

// OffsetAt returns the grapheme offset whose boundary is closest to column.
func OffsetAt(s string, column int) int {
	if column <= 0 {
		return 0
	}
	state := -1
	col := 0
	offset := 0
	rest := s
	for len(rest) > 0 {
		var w int
		_, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if col+w > column {
			if column-col > col+w-column {
				return offset + 1
			}
			return offset
		}
		col += w
		offset++
	}
	return offset
}
