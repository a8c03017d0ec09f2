package symbols

import (
	"sort"
	"strings"
)

// KeyTerminator is stripped from the end of a token's text when present.
const KeyTerminator = ":"

// Extract builds the symbol list for content from its key tokens.
func Extract(content string, tokens []KeyToken) List {
	return ExtractIndexed(NewLineIndex(content), tokens)
}

// ExtractIndexed is Extract over a prebuilt line index.
//
// Paths follow indentation alone: a key closes every open key whose column is
// greater than or equal to its own, so siblings never nest. Tokens outside the
// content are skipped. Tokens are expected in ascending order; an unsorted
// slice is sorted on a copy first.
func ExtractIndexed(idx *LineIndex, tokens []KeyToken) List {
	if len(tokens) == 0 {
		return List{}
	}
	if !sort.SliceIsSorted(tokens, func(i, j int) bool { return tokens[i].Begin < tokens[j].Begin }) {
		sorted := make([]KeyToken, len(tokens))
		copy(sorted, tokens)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Begin < sorted[j].Begin })
		tokens = sorted
	}

	content := idx.Content()
	out := make(List, 0, len(tokens))
	stack := make([]IndentedKey, 0, 8)
	names := make([]string, 0, 8)
	for _, tok := range tokens {
		if tok.Begin < 0 || tok.End > len(content) || tok.End < tok.Begin {
			continue
		}
		key := indentedKey(idx, tok)
		for len(stack) > 0 && stack[len(stack)-1].Indent >= key.Indent {
			stack = stack[:len(stack)-1]
			names = names[:len(names)-1]
		}
		stack = append(stack, key)
		names = append(names, key.Text)

		last := tok.End - 1
		if last < tok.Begin {
			last = tok.Begin
		}
		out = append(out, Symbol{
			Path:    strings.Join(names, Separator),
			Range:   tok,
			Line:    idx.LineOf(tok.Begin),
			EndLine: idx.LineOf(last),
		})
	}
	return out
}

func indentedKey(idx *LineIndex, tok KeyToken) IndentedKey {
	text := strings.TrimSuffix(idx.Content()[tok.Begin:tok.End], KeyTerminator)
	return IndentedKey{
		Text:   unquoteKey(text),
		Indent: idx.ByteColumn(tok.Begin),
	}
}

// unquoteKey drops the quotes around a quoted key. The indent is taken from the
// opening quote, so tokens keep the quotes.
func unquoteKey(text string) string {
	if len(text) < 2 {
		return text
	}
	if q := text[0]; (q == '"' || q == '\'') && text[len(text)-1] == q {
		return text[1 : len(text)-1]
	}
	return text
}
