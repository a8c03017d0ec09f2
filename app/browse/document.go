package browse

import (
	"github.com/lexcodex/yamlnav/framework/docstate"
	"github.com/lexcodex/yamlnav/framework/symbols"
)

// document is the browsed file as the UI context sees it. Model copies share
// it by pointer; only Update touches it.
type document struct {
	id      docstate.DocumentID
	path    string
	content string
	lines   *symbols.LineIndex
	cursor  symbols.Position

	list      symbols.List
	listLines *symbols.LineIndex
	active    symbols.Symbol
	hasActive bool
	status    string
	notice    string
}

func newDocument(path, content string) *document {
	d := &document{id: docstate.DocumentID(path), path: path}
	d.setContent(content)
	d.listLines = d.lines
	return d
}

func (d *document) setContent(content string) {
	d.content = content
	d.lines = symbols.NewLineIndex(content)
	d.clampCursor()
}

func (d *document) clampCursor() {
	last := d.lines.LineCount() - 1
	if d.cursor.Line > last {
		d.cursor.Line = last
	}
	if d.cursor.Line < 0 {
		d.cursor.Line = 0
	}
	if width := d.lineWidth(d.cursor.Line); d.cursor.Column > width {
		d.cursor.Column = width
	}
	if d.cursor.Column < 0 {
		d.cursor.Column = 0
	}
}

// lineWidth returns the length of line in UTF-16 units, the column unit used
// throughout.
func (d *document) lineWidth(line int) int {
	return d.lines.Position(d.lines.LineEnd(line)).Column
}

// Content implements docstate.Source.
func (d *document) Content(id docstate.DocumentID) (string, error) {
	if id != d.id {
		return "", docstate.ErrDocumentClosed
	}
	return d.content, nil
}

// Selections implements docstate.Source. The browser has a single cursor.
func (d *document) Selections(id docstate.DocumentID) ([]symbols.Selection, error) {
	if id != d.id {
		return nil, docstate.ErrDocumentClosed
	}
	return []symbols.Selection{symbols.Cursor(d.cursor)}, nil
}

// DocumentUpdated implements docstate.Observer.
func (d *document) DocumentUpdated(u docstate.Update) {
	if u.Document != d.id {
		return
	}
	if u.Rescanned {
		d.list = u.Symbols
		d.listLines = u.Lines
	}
	d.active, d.hasActive = u.Active, u.HasActive
	d.status = symbols.StatusText(u.Active, u.HasActive)
}
