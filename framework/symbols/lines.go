package symbols

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// LineIndex maps byte offsets of one content snapshot to lines and columns.
type LineIndex struct {
	content string
	starts  []int
}

// NewLineIndex records the start offset of every line in content.
func NewLineIndex(content string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{content: content, starts: starts}
}

// Content returns the indexed snapshot.
func (x *LineIndex) Content() string { return x.content }

// LineCount returns the number of lines, counting a trailing empty line.
func (x *LineIndex) LineCount() int { return len(x.starts) }

// LineOf returns the zero-based line containing offset. Offsets past the end
// map to the last line.
func (x *LineIndex) LineOf(offset int) int {
	if offset <= 0 {
		return 0
	}
	// first start strictly greater than offset, minus one
	return sort.SearchInts(x.starts, offset+1) - 1
}

// LineStart returns the offset of the first byte of line.
func (x *LineIndex) LineStart(line int) int {
	if line <= 0 {
		return 0
	}
	if line >= len(x.starts) {
		return len(x.content)
	}
	return x.starts[line]
}

// LineEnd returns the offset of the newline ending line, or len(content) for
// the last line. A preceding carriage return is excluded.
func (x *LineIndex) LineEnd(line int) int {
	end := len(x.content)
	if line+1 < len(x.starts) {
		end = x.starts[line+1] - 1
	}
	if end > x.LineStart(line) && x.content[end-1] == '\r' {
		end--
	}
	return end
}

// Line returns the text of line without its terminator.
func (x *LineIndex) Line(line int) string {
	if line < 0 || line >= len(x.starts) {
		return ""
	}
	return x.content[x.LineStart(line):x.LineEnd(line)]
}

// ByteColumn returns offset minus the start of its line.
func (x *LineIndex) ByteColumn(offset int) int {
	return offset - x.LineStart(x.LineOf(offset))
}

// Position converts offset to a line and a UTF-16 column, the unit LSP
// clients count in.
func (x *LineIndex) Position(offset int) Position {
	if offset > len(x.content) {
		offset = len(x.content)
	}
	line := x.LineOf(offset)
	col := 0
	for _, r := range x.content[x.LineStart(line):offset] {
		col += utf16.RuneLen(r)
	}
	return Position{Line: line, Column: col}
}

// Offset converts a line and UTF-16 column back to a byte offset, clamping to
// the end of the line.
func (x *LineIndex) Offset(p Position) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(x.starts) {
		return len(x.content)
	}
	start, end := x.LineStart(p.Line), x.LineEnd(p.Line)
	col := 0
	for i := start; i < end; {
		if col >= p.Column {
			return i
		}
		r, size := utf8.DecodeRuneInString(x.content[i:end])
		col += utf16.RuneLen(r)
		i += size
	}
	return end
}
