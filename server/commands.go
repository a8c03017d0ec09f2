package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/yamlnav/framework/eventloop"
	"github.com/lexcodex/yamlnav/framework/symbols"
	"github.com/lexcodex/yamlnav/framework/telemetry"
)

const showDocumentTimeout = 10 * time.Second

// gotoOutcome is what the loop hands back to the handler goroutine for a goto.
type gotoOutcome struct {
	paths  []string
	result *GotoResult
}

func (s *LSPServer) executeCommand(ctx context.Context, params protocol.ExecuteCommandParams) (interface{}, error) {
	u, err := uriArgument(params.Arguments)
	if err != nil {
		return nil, err
	}
	switch params.Command {
	case CommandGotoSymbol:
		out, err := eventloop.Call(ctx, s.loop, func() (gotoOutcome, error) {
			return s.gotoSymbol(u, params.Arguments[1:])
		})
		if err != nil {
			return nil, err
		}
		if out.result == nil {
			return out.paths, nil
		}
		s.revealAsync(out.result.Location)
		return out.result, nil
	case CommandCopyActiveSymbolPath:
		res, err := eventloop.Call(ctx, s.loop, func() (CopyResult, error) {
			return s.copyActiveSymbolPath(u), nil
		})
		return res, err
	default:
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: fmt.Sprintf("unknown command %q", params.Command)}
	}
}

// gotoSymbol lists the document's paths, or when a path or index is given,
// moves the cursor just past that key.
func (s *LSPServer) gotoSymbol(u protocol.DocumentURI, args []interface{}) (gotoOutcome, error) {
	id := documentID(u)
	doc, ok := s.docs[id]
	if !ok || !doc.IsYAML() {
		return gotoOutcome{paths: []string{}}, nil
	}
	list, lines := s.tracker.Symbols(id)
	if len(args) == 0 {
		return gotoOutcome{paths: list.Paths()}, nil
	}
	sym, ok := pickSymbol(list, args[0])
	if !ok {
		return gotoOutcome{}, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: fmt.Sprintf("no symbol %v in %s", args[0], u)}
	}
	pos := lines.Position(symbols.JumpTarget(lines, sym))
	doc.Selections = []symbols.Selection{symbols.Cursor(pos)}
	s.tracker.SelectionChanged(id)
	s.telemetry.Emit(telemetry.Event{
		Type:      telemetry.EventCommand,
		Document:  string(id),
		Message:   CommandGotoSymbol,
		Timestamp: time.Now(),
		Metadata:  map[string]interface{}{"path": sym.Path},
	})
	at := toProtocolPosition(pos)
	return gotoOutcome{result: &GotoResult{
		Path:     sym.Path,
		Location: protocol.Location{URI: u, Range: protocol.Range{Start: at, End: at}},
	}}, nil
}

// pickSymbol accepts a list index (JSON numbers decode as float64) or a path.
func pickSymbol(list symbols.List, arg interface{}) (symbols.Symbol, bool) {
	switch v := arg.(type) {
	case float64:
		i := int(v)
		if float64(i) != v || i < 0 || i >= len(list) {
			return symbols.Symbol{}, false
		}
		return list[i], true
	case string:
		return list.Find(v)
	default:
		return symbols.Symbol{}, false
	}
}

func (s *LSPServer) copyActiveSymbolPath(u protocol.DocumentURI) CopyResult {
	id := documentID(u)
	doc, ok := s.docs[id]
	if !ok || !doc.IsYAML() {
		return CopyResult{}
	}
	sym, ok := s.tracker.Active(id)
	if !ok {
		s.showMessage(protocol.MessageTypeWarning, symbols.NothingSelected)
		s.setStatus(doc, symbols.NothingSelected)
		return CopyResult{}
	}
	path := s.rule.Apply(sym.Path, doc.Path())
	s.setStatus(doc, symbols.CopiedText(path))
	s.telemetry.Emit(telemetry.Event{
		Type:      telemetry.EventCommand,
		Document:  string(id),
		Message:   CommandCopyActiveSymbolPath,
		Timestamp: time.Now(),
		Metadata:  map[string]interface{}{"path": path},
	})
	return CopyResult{Path: path, Copied: true}
}

// revealAsync asks the client to show loc. It runs off the reader goroutine
// because the reply arrives on that same goroutine.
func (s *LSPServer) revealAsync(loc protocol.Location) {
	conn := s.client()
	if conn == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), showDocumentTimeout)
		defer cancel()
		rng := loc.Range
		var res ShowDocumentResult
		err := conn.Call(ctx, "window/showDocument", ShowDocumentParams{URI: loc.URI, TakeFocus: true, Selection: &rng}, &res)
		if err != nil {
			s.logger.Printf("LSP showDocument %s failed: %v", loc.URI, err)
		}
	}()
}

func uriArgument(args []interface{}) (protocol.DocumentURI, error) {
	if len(args) == 0 {
		return "", &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "document uri argument required"}
	}
	raw, ok := args[0].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "document uri must be a string"}
	}
	return protocol.DocumentURI(raw), nil
}

// substringMatcher matches paths containing query, ignoring case. An empty
// query matches everything.
func substringMatcher(query string) func(string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	return func(path string) bool {
		return query == "" || strings.Contains(strings.ToLower(path), query)
	}
}
