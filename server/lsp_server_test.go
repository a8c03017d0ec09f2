package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/yamlnav/framework/docstate"
	"github.com/lexcodex/yamlnav/framework/eventloop"
	"github.com/lexcodex/yamlnav/framework/symbols"
	"github.com/lexcodex/yamlnav/tools/yamlkeys"
)

const (
	localeURI  = protocol.DocumentURI("file:///app/config/locales/en.yml")
	localeText = "en:\n  greeting:\n    title: Hi\n"
	waitFor    = 2 * time.Second
)

type clientNote struct {
	method string
	params json.RawMessage
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	client *jsonrpc2.Conn
	notes  chan clientNote
	shown  chan ShowDocumentParams
	done   chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)
	pool := eventloop.NewPool(ctx, 2, logger)
	srv := NewLSPServer(pool, yamlkeys.NewTreeSitter(), Options{
		Tracker:    docstate.Options{QuietPeriod: 20 * time.Millisecond},
		LocaleRule: symbols.LocaleRule{Pattern: regexp.MustCompile(`(^|/)locales/`), Enabled: true},
		Logger:     logger,
		Version:    "test",
	})

	serverSide, clientSide := net.Pipe()
	h := &harness{
		t:     t,
		ctx:   ctx,
		notes: make(chan clientNote, 128),
		shown: make(chan ShowDocumentParams, 8),
		done:  make(chan error, 1),
	}
	go func() {
		h.done <- srv.Serve(ctx, jsonrpc2.NewBufferedStream(serverSide, jsonrpc2.VSCodeObjectCodec{}))
	}()
	handler := jsonrpc2.HandlerWithError(func(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
		var raw json.RawMessage
		if req.Params != nil {
			raw = *req.Params
		}
		if req.Method == "window/showDocument" {
			var params ShowDocumentParams
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, err
			}
			h.shown <- params
			return ShowDocumentResult{Success: true}, nil
		}
		h.notes <- clientNote{method: req.Method, params: raw}
		return nil, nil
	})
	h.client = jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{}), handler)
	t.Cleanup(func() {
		_ = h.client.Close()
		select {
		case <-h.done:
		case <-time.After(waitFor):
			t.Error("server did not stop")
		}
		cancel()
		_ = pool.Close()
	})
	return h
}

func (h *harness) call(method string, params, result interface{}) error {
	ctx, cancel := context.WithTimeout(h.ctx, waitFor)
	defer cancel()
	return h.client.Call(ctx, method, params, result)
}

func (h *harness) notify(method string, params interface{}) {
	require.NoError(h.t, h.client.Notify(h.ctx, method, params))
}

func (h *harness) open(u protocol.DocumentURI, language, text string) {
	h.notify("textDocument/didOpen", protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: u, LanguageID: protocol.LanguageIdentifier(language), Version: 1, Text: text},
	})
}

func (h *harness) selectLines(u protocol.DocumentURI, lines ...uint32) {
	ranges := make([]protocol.Range, 0, len(lines))
	for _, line := range lines {
		pos := protocol.Position{Line: line, Character: 2}
		ranges = append(ranges, protocol.Range{Start: pos, End: pos})
	}
	h.notify(MethodDidChangeSelection, SelectionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: u},
		Selections:   ranges,
	})
}

// waitNote returns the first notification for method that satisfies match.
func (h *harness) waitNote(method string, match func(json.RawMessage) bool) json.RawMessage {
	h.t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case n := <-h.notes:
			if n.method == method && (match == nil || match(n.params)) {
				return n.params
			}
		case <-deadline:
			h.t.Fatalf("no %s notification arrived", method)
			return nil
		}
	}
}

func (h *harness) waitStatus(u protocol.DocumentURI, text string) {
	h.t.Helper()
	h.waitNote(MethodStatus, func(raw json.RawMessage) bool {
		var p StatusParams
		return json.Unmarshal(raw, &p) == nil && p.URI == u && p.Text == text
	})
}

func TestInitializeAdvertisesCommands(t *testing.T) {
	h := newHarness(t)
	var res protocol.InitializeResult
	require.NoError(t, h.call("initialize", protocol.InitializeParams{
		ClientInfo: &protocol.ClientInfo{Name: "test"},
	}, &res))
	require.NotNil(t, res.Capabilities.ExecuteCommandProvider)
	assert.ElementsMatch(t, []string{CommandGotoSymbol, CommandCopyActiveSymbolPath}, res.Capabilities.ExecuteCommandProvider.Commands)
	assert.Equal(t, true, res.Capabilities.DocumentSymbolProvider)
	require.NotNil(t, res.ServerInfo)
	assert.Equal(t, "yamlnav", res.ServerInfo.Name)

	h.notify("initialized", protocol.InitializedParams{})
	h.waitNote("window/logMessage", nil)
}

func TestStatusFollowsSelection(t *testing.T) {
	h := newHarness(t)
	h.open(localeURI, "yaml", localeText)
	h.selectLines(localeURI, 2)
	h.waitStatus(localeURI, "YAML path: en.greeting.title")

	h.selectLines(localeURI, 1)
	h.waitStatus(localeURI, "YAML path: en.greeting")

	// multiple cursors are ambiguous and clear the slot
	h.selectLines(localeURI, 0, 2)
	h.waitStatus(localeURI, "")
}

func TestEditsRescanAfterQuietPeriod(t *testing.T) {
	h := newHarness(t)
	h.open(localeURI, "yaml", localeText)
	h.selectLines(localeURI, 2)
	h.waitStatus(localeURI, "YAML path: en.greeting.title")

	h.notify("textDocument/didChange", DidChangeParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: localeURI}, Version: 2},
		ContentChanges: []ContentChange{{Text: "en:\n  farewell:\n    body: Bye\n"}},
	})
	h.waitStatus(localeURI, "YAML path: en.farewell.body")

	// ranged change renaming "body" to "text"
	h.notify("textDocument/didChange", DidChangeParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: localeURI}, Version: 3},
		ContentChanges: []ContentChange{{
			Range: &protocol.Range{Start: protocol.Position{Line: 2, Character: 4}, End: protocol.Position{Line: 2, Character: 8}},
			Text:  "text",
		}},
	})
	h.waitStatus(localeURI, "YAML path: en.farewell.text")
}

func TestDocumentSymbols(t *testing.T) {
	h := newHarness(t)
	h.open(localeURI, "yaml", localeText)
	h.selectLines(localeURI, 2)
	h.waitStatus(localeURI, "YAML path: en.greeting.title")

	var syms []protocol.SymbolInformation
	require.NoError(t, h.call("textDocument/documentSymbol", protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: localeURI},
	}, &syms))
	require.Len(t, syms, 3)
	assert.Equal(t, "en.greeting.title", syms[2].Name)
	assert.Equal(t, "en.greeting", syms[2].ContainerName)
	assert.Equal(t, protocol.SymbolKindKey, syms[2].Kind)
	assert.Equal(t, protocol.Position{Line: 2, Character: 4}, syms[2].Location.Range.Start)
	assert.Equal(t, protocol.Position{Line: 2, Character: 9}, syms[2].Location.Range.End)
	assert.Empty(t, syms[0].ContainerName)

	var found []protocol.SymbolInformation
	require.NoError(t, h.call("workspace/symbol", protocol.WorkspaceSymbolParams{Query: "TITLE"}, &found))
	require.Len(t, found, 1)
	assert.Equal(t, localeURI, found[0].Location.URI)
}

func TestGotoSymbol(t *testing.T) {
	h := newHarness(t)
	h.open(localeURI, "yaml", localeText)
	h.selectLines(localeURI, 0)
	h.waitStatus(localeURI, "YAML path: en")

	var paths []string
	require.NoError(t, h.call("workspace/executeCommand", protocol.ExecuteCommandParams{
		Command:   CommandGotoSymbol,
		Arguments: []interface{}{string(localeURI)},
	}, &paths))
	assert.Equal(t, []string{"en", "en.greeting", "en.greeting.title"}, paths)

	var res GotoResult
	require.NoError(t, h.call("workspace/executeCommand", protocol.ExecuteCommandParams{
		Command:   CommandGotoSymbol,
		Arguments: []interface{}{string(localeURI), "en.greeting"},
	}, &res))
	assert.Equal(t, "en.greeting", res.Path)
	// one past "greeting", which is the end of "  greeting:"
	assert.Equal(t, protocol.Position{Line: 1, Character: 11}, res.Location.Range.Start)
	h.waitStatus(localeURI, "YAML path: en.greeting")

	select {
	case shown := <-h.shown:
		assert.Equal(t, localeURI, shown.URI)
		require.NotNil(t, shown.Selection)
		assert.Equal(t, uint32(1), shown.Selection.Start.Line)
	case <-time.After(waitFor):
		t.Fatal("client was not asked to show the document")
	}

	require.NoError(t, h.call("workspace/executeCommand", protocol.ExecuteCommandParams{
		Command:   CommandGotoSymbol,
		Arguments: []interface{}{string(localeURI), float64(2)},
	}, &res))
	assert.Equal(t, "en.greeting.title", res.Path)

	err := h.call("workspace/executeCommand", protocol.ExecuteCommandParams{
		Command:   CommandGotoSymbol,
		Arguments: []interface{}{string(localeURI), "missing"},
	}, &res)
	require.Error(t, err)
}

func TestCopyActiveSymbolPathStripsLocale(t *testing.T) {
	h := newHarness(t)
	h.open(localeURI, "yaml", localeText)
	h.selectLines(localeURI, 2)
	h.waitStatus(localeURI, "YAML path: en.greeting.title")

	var res CopyResult
	require.NoError(t, h.call("workspace/executeCommand", protocol.ExecuteCommandParams{
		Command:   CommandCopyActiveSymbolPath,
		Arguments: []interface{}{string(localeURI)},
	}, &res))
	assert.Equal(t, CopyResult{Path: "greeting.title", Copied: true}, res)
	h.waitStatus(localeURI, "YAML path: greeting.title - copied to clipboard!")
}

func TestCopyKeepsPathOutsideLocaleFiles(t *testing.T) {
	h := newHarness(t)
	u := protocol.DocumentURI("file:///app/config/settings.yaml")
	h.open(u, "yaml", localeText)
	h.selectLines(u, 2)
	h.waitStatus(u, "YAML path: en.greeting.title")

	var res CopyResult
	require.NoError(t, h.call("workspace/executeCommand", protocol.ExecuteCommandParams{
		Command:   CommandCopyActiveSymbolPath,
		Arguments: []interface{}{string(u)},
	}, &res))
	assert.Equal(t, "en.greeting.title", res.Path)
}

func TestCopyWithoutActiveSymbolWarns(t *testing.T) {
	h := newHarness(t)
	h.open(localeURI, "yaml", localeText)
	h.selectLines(localeURI, 0, 1)

	var res CopyResult
	require.NoError(t, h.call("workspace/executeCommand", protocol.ExecuteCommandParams{
		Command:   CommandCopyActiveSymbolPath,
		Arguments: []interface{}{string(localeURI)},
	}, &res))
	assert.False(t, res.Copied)
	raw := h.waitNote("window/showMessage", nil)
	var msg protocol.ShowMessageParams
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, symbols.NothingSelected, msg.Message)
	assert.Equal(t, protocol.MessageTypeWarning, msg.Type)
	h.waitStatus(localeURI, symbols.NothingSelected)

	// the next resolution replaces the notice
	h.selectLines(localeURI, 2)
	h.waitStatus(localeURI, "YAML path: en.greeting.title")
}

func TestNonYAMLDocumentsAreIgnored(t *testing.T) {
	h := newHarness(t)
	u := protocol.DocumentURI("file:///app/package.json")
	h.open(u, "json", "{\"a\": 1}\n")

	var syms []protocol.SymbolInformation
	require.NoError(t, h.call("textDocument/documentSymbol", protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: u},
	}, &syms))
	assert.Empty(t, syms)

	var paths []string
	require.NoError(t, h.call("workspace/executeCommand", protocol.ExecuteCommandParams{
		Command:   CommandGotoSymbol,
		Arguments: []interface{}{string(u)},
	}, &paths))
	assert.Empty(t, paths)
}

func TestUnknownMethodAndShutdown(t *testing.T) {
	h := newHarness(t)
	err := h.call("textDocument/hover", map[string]string{}, nil)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)

	require.NoError(t, h.call("shutdown", nil, nil))
	err = h.call("workspace/symbol", protocol.WorkspaceSymbolParams{}, nil)
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidRequest), rpcErr.Code)

	h.notify("exit", nil)
	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- err
	case <-time.After(waitFor):
		t.Fatal("server kept running after exit")
	}
}

func TestDocumentGate(t *testing.T) {
	cases := []struct {
		doc  Document
		want bool
	}{
		{Document{URI: "file:///a/b.yml"}, true},
		{Document{URI: "file:///a/b.YAML"}, true},
		{Document{URI: "untitled:Untitled-1", LanguageID: "yaml"}, true},
		{Document{URI: "file:///a/b.json", LanguageID: "json"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.doc.IsYAML(), string(tc.doc.URI))
	}
}

func TestDocumentApplyRangedChange(t *testing.T) {
	doc := &Document{Text: "a: 1\nключ: 2\n"}
	doc.apply(ContentChange{
		Range: &protocol.Range{Start: protocol.Position{Line: 1, Character: 0}, End: protocol.Position{Line: 1, Character: 4}},
		Text:  "key",
	})
	assert.Equal(t, "a: 1\nkey: 2\n", doc.Text)
	assert.Equal(t, 3, doc.Lines().LineCount())
}

func TestDocumentChangeRangePresence(t *testing.T) {
	var params DidChangeParams
	require.NoError(t, json.Unmarshal([]byte(`{
		"textDocument": {"uri": "file:///a.yml", "version": 2},
		"contentChanges": [
			{"range": {"start": {"line": 0, "character": 0}, "end": {"line": 0, "character": 0}}, "text": "x"},
			{"text": "full: 1\n"}
		]
	}`), &params))
	require.Len(t, params.ContentChanges, 2)

	doc := &Document{Text: "a:\n  b: 1\n"}
	doc.apply(params.ContentChanges[0])
	assert.Equal(t, "xa:\n  b: 1\n", doc.Text, "an insert at 0:0 is a splice")

	doc.apply(params.ContentChanges[1])
	assert.Equal(t, "full: 1\n", doc.Text)
}
