package yamlkeys

import (
	"context"
	"strings"

	"github.com/lexcodex/yamlnav/framework/symbols"
)

// Lines is a line-oriented key scanner. It never fails, which makes it the
// last resort for documents no parser accepts. Block scalar bodies, comments,
// directives and inline collections are skipped.
type Lines struct{}

// NewLines returns the line scanner.
func NewLines() *Lines { return &Lines{} }

// KeyTokens implements Classifier.
func (Lines) KeyTokens(ctx context.Context, content string) ([]symbols.KeyToken, error) {
	idx := symbols.NewLineIndex(content)
	var tokens []symbols.KeyToken
	// indent of the key owning an open block scalar, -1 when none
	scalarOwner := -1
	for line := 0; line < idx.LineCount(); line++ {
		if line%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		text := idx.Line(line)
		trimmed := strings.TrimLeft(text, " ")
		indent := len(text) - len(trimmed)
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		if scalarOwner >= 0 {
			if indent > scalarOwner {
				continue
			}
			scalarOwner = -1
		}
		if trimmed[0] == '#' || trimmed[0] == '%' || strings.HasPrefix(trimmed, "---") || strings.HasPrefix(trimmed, "...") {
			continue
		}
		begin, end, value, ok := scanKey(text, indent)
		if !ok {
			continue
		}
		start := idx.LineStart(line)
		tokens = append(tokens, symbols.KeyToken{Begin: start + begin, End: start + end})
		if opensBlockScalar(value) {
			scalarOwner = indent
		}
	}
	return tokens, nil
}

// scanKey finds a mapping key on one line, looking past "- " sequence markers.
// It returns the key's byte range within text and the text after the colon.
func scanKey(text string, pos int) (begin, end int, value string, ok bool) {
	for strings.HasPrefix(text[pos:], "- ") {
		pos += 2
		for pos < len(text) && text[pos] == ' ' {
			pos++
		}
	}
	if pos >= len(text) {
		return 0, 0, "", false
	}
	switch c := text[pos]; c {
	case '"', '\'':
		closing := closingQuote(text, pos)
		if closing < 0 || !colonAt(text, closing+1) {
			return 0, 0, "", false
		}
		if closing == pos+1 {
			return 0, 0, "", false
		}
		return pos, closing + 1, afterColon(text, closing+1), true
	case '#', '{', '[', '&', '*', '!', '|', '>', '?', '@', '`', ':':
		return 0, 0, "", false
	}
	for i := pos; i < len(text); i++ {
		if text[i] == '#' && i > pos && text[i-1] == ' ' {
			return 0, 0, "", false
		}
		if text[i] == ':' && colonAt(text, i) {
			keyEnd := strings.TrimRight(text[pos:i], " \t")
			if keyEnd == "" {
				return 0, 0, "", false
			}
			return pos, pos + len(keyEnd), afterColon(text, i), true
		}
	}
	return 0, 0, "", false
}

// closingQuote returns the index of the quote ending the scalar opened at
// open, honouring backslash escapes in double quotes and doubled single quotes.
func closingQuote(text string, open int) int {
	q := text[open]
	for i := open + 1; i < len(text); i++ {
		switch {
		case q == '"' && text[i] == '\\':
			i++
		case text[i] == q:
			if q == '\'' && i+1 < len(text) && text[i+1] == '\'' {
				i++
				continue
			}
			return i
		}
	}
	return -1
}

// colonAt reports whether text[i] is a mapping indicator: a colon followed by
// whitespace or the end of the line.
func colonAt(text string, i int) bool {
	if i >= len(text) || text[i] != ':' {
		return false
	}
	return i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\t'
}

func afterColon(text string, colon int) string {
	return strings.TrimSpace(text[colon+1:])
}

// opensBlockScalar reports whether a value starts a literal or folded block,
// including chomping and indentation indicators ("|-", ">+2").
func opensBlockScalar(value string) bool {
	if i := strings.Index(value, " #"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	if value == "" || (value[0] != '|' && value[0] != '>') {
		return false
	}
	for _, r := range value[1:] {
		if r != '-' && r != '+' && (r < '1' || r > '9') {
			return false
		}
	}
	return true
}
