// Package symbols turns YAML key tokens into dotted key paths and resolves the
// path under a cursor. Everything here is pure; callers own synchronization.
package symbols

import "strings"

// Separator joins key names into a path.
const Separator = "."

// KeyToken is a half-open byte range [Begin, End) the classifier reported as a
// mapping key.
type KeyToken struct {
	Begin int
	End   int
}

// Len returns the token width in bytes.
func (t KeyToken) Len() int { return t.End - t.Begin }

// IndentedKey is a key name together with the column its token starts on.
type IndentedKey struct {
	Text   string
	Indent int
}

// Symbol is one emitted key path. Line and EndLine are the zero-based lines of
// the first and last byte of Range in the snapshot the symbol came from.
type Symbol struct {
	Path    string
	Range   KeyToken
	Line    int
	EndLine int
}

// Name returns the last path segment.
func (s Symbol) Name() string {
	if i := strings.LastIndex(s.Path, Separator); i >= 0 {
		return s.Path[i+1:]
	}
	return s.Path
}

// Depth returns how many ancestors the symbol has.
func (s Symbol) Depth() int {
	return strings.Count(s.Path, Separator)
}

// List is the ordered result of one extraction pass. It is never mutated after
// Extract returns it.
type List []Symbol

// Paths returns the symbol paths in document order.
func (l List) Paths() []string {
	out := make([]string, len(l))
	for i, sym := range l {
		out[i] = sym.Path
	}
	return out
}

// Find returns the first symbol with the given path.
func (l List) Find(path string) (Symbol, bool) {
	for _, sym := range l {
		if sym.Path == path {
			return sym, true
		}
	}
	return Symbol{}, false
}

// Position is a zero-based line and column. Hosts decide the column unit; the
// resolver only looks at lines.
type Position struct {
	Line   int
	Column int
}

// Selection is one cursor or selected region, Start and End in any order.
type Selection struct {
	Start Position
	End   Position
}

// Cursor returns an empty selection at p.
func Cursor(p Position) Selection {
	return Selection{Start: p, End: p}
}

// SingleLine reports whether the selection starts and ends on the same line.
func (s Selection) SingleLine() bool {
	return s.Start.Line == s.End.Line
}
