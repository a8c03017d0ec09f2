package symbols

// Resolve returns the symbol under an unambiguous selection. Multiple cursors
// or a selection spanning lines yield none. Among symbols sharing the cursor
// line the later one in document order wins.
func Resolve(list List, selections []Selection) (Symbol, bool) {
	if len(list) == 0 || len(selections) != 1 {
		return Symbol{}, false
	}
	sel := selections[0]
	if !sel.SingleLine() {
		return Symbol{}, false
	}
	line := sel.Start.Line
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Line <= line && line <= list[i].EndLine {
			return list[i], true
		}
	}
	return Symbol{}, false
}

// JumpTarget returns the offset a goto places the cursor at: one byte past the
// token, which lands after the key terminator, clamped to the token's line.
func JumpTarget(idx *LineIndex, sym Symbol) int {
	target := sym.Range.End + 1
	if end := idx.LineEnd(sym.EndLine); target > end {
		target = end
	}
	return target
}
