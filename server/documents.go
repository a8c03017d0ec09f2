package server

import (
	"path/filepath"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/lexcodex/yamlnav/framework/docstate"
	"github.com/lexcodex/yamlnav/framework/symbols"
)

// Document tracks an open file from the editor. It is only touched on the
// server's event loop.
type Document struct {
	URI        protocol.DocumentURI
	LanguageID string
	Version    int32
	Text       string
	Selections []symbols.Selection

	lines  *symbols.LineIndex
	status string
}

// Lines returns a line index over the current text.
func (d *Document) Lines() *symbols.LineIndex {
	if d.lines == nil || d.lines.Content() != d.Text {
		d.lines = symbols.NewLineIndex(d.Text)
	}
	return d.lines
}

// IsYAML reports whether the editor classified the document as YAML, either
// by language id or by file extension.
func (d *Document) IsYAML() bool {
	if strings.EqualFold(d.LanguageID, string(protocol.YamlLanguage)) {
		return true
	}
	switch strings.ToLower(filepath.Ext(documentPath(d.URI))) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Path returns the filesystem path of file URIs and the raw URI otherwise.
func (d *Document) Path() string { return documentPath(d.URI) }

// DidChangeParams mirrors protocol.DidChangeTextDocumentParams with the change
// range optional: a missing range is a full replacement.
type DidChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []ContentChange                          `json:"contentChanges"`
}

// ContentChange is one didChange edit. Without a range it replaces the whole
// text.
type ContentChange struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

// apply replaces the text or splices a ranged change into it.
func (d *Document) apply(change ContentChange) {
	if change.Range == nil {
		d.Text = change.Text
		return
	}
	lines := d.Lines()
	start := lines.Offset(fromProtocolPosition(change.Range.Start))
	end := lines.Offset(fromProtocolPosition(change.Range.End))
	if end < start {
		start, end = end, start
	}
	d.Text = d.Text[:start] + change.Text + d.Text[end:]
}

func documentID(u protocol.DocumentURI) docstate.DocumentID { return docstate.DocumentID(u) }

func documentPath(u protocol.DocumentURI) string {
	if strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return uri.URI(u).Filename()
	}
	return string(u)
}

func fromProtocolPosition(p protocol.Position) symbols.Position {
	return symbols.Position{Line: int(p.Line), Column: int(p.Character)}
}

func toProtocolPosition(p symbols.Position) protocol.Position {
	return protocol.Position{Line: uint32(p.Line), Character: uint32(p.Column)}
}

func toProtocolRange(lines *symbols.LineIndex, begin, end int) protocol.Range {
	return protocol.Range{
		Start: toProtocolPosition(lines.Position(begin)),
		End:   toProtocolPosition(lines.Position(end)),
	}
}

func fromProtocolRanges(ranges []protocol.Range) []symbols.Selection {
	out := make([]symbols.Selection, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, symbols.Selection{
			Start: fromProtocolPosition(r.Start),
			End:   fromProtocolPosition(r.End),
		})
	}
	return out
}
