// Package yamlkeys finds the byte ranges of YAML mapping keys in a document
// snapshot. It stands in for the editor's syntax scopes: the ranges it reports
// are what the symbol extractor consumes.
package yamlkeys

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexcodex/yamlnav/framework/symbols"
)

// Classifier reports key tokens in ascending order. Implementations are safe
// for concurrent use.
type Classifier interface {
	KeyTokens(ctx context.Context, content string) ([]symbols.KeyToken, error)
}

// Names of the available classifiers.
const (
	NameTreeSitter = "treesitter"
	NameYAML       = "yaml"
	NameLines      = "lines"
)

// Names lists every classifier New accepts.
func Names() []string {
	return []string{NameTreeSitter, NameYAML, NameLines}
}

// New returns the classifier registered under name. An empty name selects
// tree-sitter. The yaml classifier falls back to the line scanner when the
// document does not parse, which is the normal state while typing.
func New(name string) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameTreeSitter:
		return NewTreeSitter(), nil
	case NameYAML:
		return Fallback{NewNode(), NewLines()}, nil
	case NameLines:
		return NewLines(), nil
	default:
		return nil, fmt.Errorf("unknown key classifier %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
}

// Fallback tries each classifier in turn and returns the first result that
// came back without error.
type Fallback []Classifier

// KeyTokens implements Classifier.
func (f Fallback) KeyTokens(ctx context.Context, content string) ([]symbols.KeyToken, error) {
	var lastErr error
	for _, c := range f {
		tokens, err := c.KeyTokens(ctx, content)
		if err == nil {
			return tokens, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no classifier configured")
	}
	return nil, lastErr
}
