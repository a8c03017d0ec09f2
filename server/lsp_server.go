package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/yamlnav/framework/docstate"
	"github.com/lexcodex/yamlnav/framework/eventloop"
	"github.com/lexcodex/yamlnav/framework/symbols"
	"github.com/lexcodex/yamlnav/framework/telemetry"
)

// Commands accepted by workspace/executeCommand.
const (
	CommandGotoSymbol           = "yamlnav.gotoSymbol"
	CommandCopyActiveSymbolPath = "yamlnav.copyActiveSymbolPath"
)

// Custom methods layered on top of LSP.
const (
	MethodDidChangeSelection = "yamlnav/didChangeSelection"
	MethodDidFocus           = "yamlnav/didFocus"
	MethodStatus             = "yamlnav/status"
)

// SelectionParams carries the editor's cursors and selections.
type SelectionParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Selections   []protocol.Range                `json:"selections"`
}

// FocusParams names the document that became active.
type FocusParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
}

// StatusParams updates the status slot for a document. An empty Text clears
// the slot.
type StatusParams struct {
	URI  protocol.DocumentURI `json:"uri"`
	Key  string               `json:"key"`
	Text string               `json:"text"`
}

// ShowDocumentParams asks the client to reveal a location (window/showDocument).
type ShowDocumentParams struct {
	URI       protocol.DocumentURI `json:"uri"`
	External  bool                 `json:"external,omitempty"`
	TakeFocus bool                 `json:"takeFocus,omitempty"`
	Selection *protocol.Range      `json:"selection,omitempty"`
}

// ShowDocumentResult is the client's answer to window/showDocument.
type ShowDocumentResult struct {
	Success bool `json:"success"`
}

// GotoResult is returned when a goto names its target.
type GotoResult struct {
	Path     string            `json:"path"`
	Location protocol.Location `json:"location"`
}

// CopyResult tells the client what to put on the clipboard.
type CopyResult struct {
	Path   string `json:"path,omitempty"`
	Copied bool   `json:"copied"`
}

// Options tune an LSPServer.
type Options struct {
	Tracker    docstate.Options
	LocaleRule symbols.LocaleRule
	Logger     *log.Logger
	Telemetry  telemetry.Telemetry
	Version    string
}

// LSPServer serves key paths of open YAML documents over JSON-RPC. Handlers
// run on the connection's reader goroutine and hand every state change to a
// single event loop, so documents and the tracker are never shared.
type LSPServer struct {
	loop      *eventloop.Loop
	tracker   *docstate.Tracker
	rule      symbols.LocaleRule
	logger    *log.Logger
	telemetry telemetry.Telemetry
	version   string

	// loop only
	docs map[docstate.DocumentID]*Document

	shuttingDown atomic.Bool

	mu   sync.Mutex
	conn *jsonrpc2.Conn
}

// NewLSPServer builds a server whose extraction passes run on workers.
func NewLSPServer(workers docstate.Submitter, classifier docstate.Classifier, opts Options) *LSPServer {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop{}
	}
	if opts.Tracker.Logger == nil {
		opts.Tracker.Logger = opts.Logger
	}
	if opts.Tracker.Telemetry == nil {
		opts.Tracker.Telemetry = opts.Telemetry
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &LSPServer{
		loop:      eventloop.NewLoop(0, opts.Logger),
		rule:      opts.LocaleRule,
		logger:    opts.Logger,
		telemetry: opts.Telemetry,
		version:   opts.Version,
		docs:      make(map[docstate.DocumentID]*Document),
	}
	s.tracker = docstate.NewTracker(s.loop, workers, s, classifier, s, opts.Tracker)
	return s
}

// Serve runs the protocol on stream until the client disconnects, sends exit,
// or ctx ends.
func (s *LSPServer) Serve(ctx context.Context, stream jsonrpc2.ObjectStream) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	loopDone := make(chan error, 1)
	go func() { loopDone <- s.loop.Run(ctx) }()

	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle), jsonrpc2.SetLogger(s.logger))
	s.bind(conn)
	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
		_ = conn.Close()
	}
	s.loop.Stop()
	<-loopDone
	s.logger.Printf("LSP session ended")
	return nil
}

func (s *LSPServer) bind(conn *jsonrpc2.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		s.conn = conn
	}
}

func (s *LSPServer) client() *jsonrpc2.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *LSPServer) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	s.bind(conn)
	if s.shuttingDown.Load() && req.Method != "exit" && !req.Notif {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "server is shutting down"}
	}
	switch req.Method {
	case "initialize":
		var params protocol.InitializeParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		res, err := eventloop.Call(ctx, s.loop, func() (*protocol.InitializeResult, error) {
			return s.initialize(params), nil
		})
		return res, err
	case "initialized":
		s.logMessage(protocol.MessageTypeInfo, fmt.Sprintf("yamlnav %s ready", s.version))
		return nil, nil
	case "shutdown":
		s.shuttingDown.Store(true)
		return nil, nil
	case "exit":
		return nil, conn.Close()
	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		return s.notification(req, &params, func() { s.didOpen(params) })
	case "textDocument/didChange":
		var params DidChangeParams
		return s.notification(req, &params, func() { s.didChange(params) })
	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		return s.notification(req, &params, func() { s.didClose(params) })
	case "textDocument/didSave":
		var params protocol.DidSaveTextDocumentParams
		return s.notification(req, &params, func() { s.didSave(params) })
	case MethodDidChangeSelection:
		var params SelectionParams
		return s.notification(req, &params, func() { s.didChangeSelection(params) })
	case MethodDidFocus:
		var params FocusParams
		return s.notification(req, &params, func() { s.didFocus(params) })
	case "textDocument/documentSymbol":
		var params protocol.DocumentSymbolParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		res, err := eventloop.Call(ctx, s.loop, func() ([]protocol.SymbolInformation, error) {
			return s.documentSymbols(params.TextDocument.URI), nil
		})
		return res, err
	case "workspace/symbol":
		var params protocol.WorkspaceSymbolParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		res, err := eventloop.Call(ctx, s.loop, func() ([]protocol.SymbolInformation, error) {
			return s.workspaceSymbols(params.Query), nil
		})
		return res, err
	case "workspace/executeCommand":
		var params protocol.ExecuteCommandParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		return s.executeCommand(ctx, params)
	default:
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: fmt.Sprintf("method %s not supported", req.Method)}
	}
}

// notification decodes params and queues fn on the loop. Ordering with other
// notifications and requests is preserved by the loop's queue.
func (s *LSPServer) notification(req *jsonrpc2.Request, params interface{}, fn func()) (interface{}, error) {
	if err := decodeParams(req, params); err != nil {
		s.logger.Printf("LSP %s: %v", req.Method, err)
		return nil, err
	}
	if !s.loop.Post(fn) {
		return nil, eventloop.ErrStopped
	}
	return nil, nil
}

func decodeParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (s *LSPServer) initialize(params protocol.InitializeParams) *protocol.InitializeResult {
	client := "unknown client"
	if params.ClientInfo != nil {
		client = params.ClientInfo.Name
	}
	s.logger.Printf("LSP initialize from %s (root %s)", client, params.RootURI)
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save:      &protocol.SaveOptions{IncludeText: true},
			},
			DocumentSymbolProvider:  true,
			WorkspaceSymbolProvider: true,
			ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
				Commands: []string{CommandGotoSymbol, CommandCopyActiveSymbolPath},
			},
		},
		ServerInfo: &protocol.ServerInfo{Name: "yamlnav", Version: s.version},
	}
}

func (s *LSPServer) didOpen(params protocol.DidOpenTextDocumentParams) {
	item := params.TextDocument
	doc := &Document{
		URI:        item.URI,
		LanguageID: string(item.LanguageID),
		Version:    item.Version,
		Text:       item.Text,
	}
	id := documentID(item.URI)
	s.docs[id] = doc
	if doc.IsYAML() {
		s.tracker.Open(id)
	}
}

func (s *LSPServer) didChange(params DidChangeParams) {
	id := documentID(params.TextDocument.URI)
	doc, ok := s.docs[id]
	if !ok {
		s.logger.Printf("LSP didChange for untracked document %s", params.TextDocument.URI)
		return
	}
	for _, change := range params.ContentChanges {
		doc.apply(change)
	}
	doc.Version = params.TextDocument.Version
	if doc.IsYAML() {
		s.tracker.Edited(id)
	}
}

func (s *LSPServer) didSave(params protocol.DidSaveTextDocumentParams) {
	id := documentID(params.TextDocument.URI)
	doc, ok := s.docs[id]
	if !ok || params.Text == "" || params.Text == doc.Text {
		return
	}
	doc.Text = params.Text
	if doc.IsYAML() {
		s.tracker.Edited(id)
	}
}

func (s *LSPServer) didClose(params protocol.DidCloseTextDocumentParams) {
	id := documentID(params.TextDocument.URI)
	delete(s.docs, id)
	s.tracker.Close(id)
}

func (s *LSPServer) didChangeSelection(params SelectionParams) {
	id := documentID(params.TextDocument.URI)
	doc, ok := s.docs[id]
	if !ok {
		return
	}
	doc.Selections = fromProtocolRanges(params.Selections)
	if doc.IsYAML() {
		s.tracker.SelectionChanged(id)
	}
}

func (s *LSPServer) didFocus(params FocusParams) {
	id := documentID(params.TextDocument.URI)
	if doc, ok := s.docs[id]; ok && doc.IsYAML() {
		s.tracker.Focus(id)
	}
}

// Content implements docstate.Source.
func (s *LSPServer) Content(id docstate.DocumentID) (string, error) {
	doc, ok := s.docs[id]
	if !ok {
		return "", docstate.ErrDocumentClosed
	}
	return doc.Text, nil
}

// Selections implements docstate.Source.
func (s *LSPServer) Selections(id docstate.DocumentID) ([]symbols.Selection, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, docstate.ErrDocumentClosed
	}
	return doc.Selections, nil
}

// DocumentUpdated implements docstate.Observer by refreshing the status slot.
func (s *LSPServer) DocumentUpdated(u docstate.Update) {
	doc, ok := s.docs[u.Document]
	if !ok {
		return
	}
	s.setStatus(doc, symbols.StatusText(u.Active, u.HasActive))
}

func (s *LSPServer) setStatus(doc *Document, text string) {
	if doc.status == text {
		return
	}
	doc.status = text
	s.notify(MethodStatus, StatusParams{URI: doc.URI, Key: symbols.StatusKey, Text: text})
}

func (s *LSPServer) documentSymbols(u protocol.DocumentURI) []protocol.SymbolInformation {
	out := []protocol.SymbolInformation{}
	doc, ok := s.docs[documentID(u)]
	if !ok || !doc.IsYAML() {
		return out
	}
	list, lines := s.tracker.Symbols(documentID(u))
	return appendSymbolInformation(out, u, list, lines, nil)
}

func (s *LSPServer) workspaceSymbols(query string) []protocol.SymbolInformation {
	out := []protocol.SymbolInformation{}
	match := substringMatcher(query)
	for _, id := range s.tracker.Documents() {
		doc, ok := s.docs[id]
		if !ok || !doc.IsYAML() {
			continue
		}
		list, lines := s.tracker.Symbols(id)
		out = appendSymbolInformation(out, doc.URI, list, lines, match)
	}
	return out
}

func appendSymbolInformation(out []protocol.SymbolInformation, u protocol.DocumentURI, list symbols.List, lines *symbols.LineIndex, match func(string) bool) []protocol.SymbolInformation {
	for _, sym := range list {
		if match != nil && !match(sym.Path) {
			continue
		}
		container := ""
		if depth := len(sym.Path) - len(sym.Name()) - len(symbols.Separator); depth > 0 {
			container = sym.Path[:depth]
		}
		out = append(out, protocol.SymbolInformation{
			Name: sym.Path,
			Kind: protocol.SymbolKindKey,
			Location: protocol.Location{
				URI:   u,
				Range: toProtocolRange(lines, sym.Range.Begin, sym.Range.End),
			},
			ContainerName: container,
		})
	}
	return out
}

func (s *LSPServer) notify(method string, params interface{}) {
	conn := s.client()
	if conn == nil {
		return
	}
	if err := conn.Notify(context.Background(), method, params); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
		s.logger.Printf("LSP notify %s failed: %v", method, err)
	}
}

func (s *LSPServer) showMessage(kind protocol.MessageType, message string) {
	s.notify("window/showMessage", protocol.ShowMessageParams{Type: kind, Message: message})
}

func (s *LSPServer) logMessage(kind protocol.MessageType, message string) {
	s.notify("window/logMessage", protocol.LogMessageParams{Type: kind, Message: message})
}
