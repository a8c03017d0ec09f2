package yamlkeys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/yamlnav/framework/symbols"
)

// Node classifies keys by walking the yaml.v3 node tree. It is exact on valid
// documents and fails on anything that does not parse.
type Node struct{}

// NewNode returns the yaml.v3 classifier.
func NewNode() *Node { return &Node{} }

// KeyTokens implements Classifier. Every document of a multi-document stream
// contributes keys.
func (Node) KeyTokens(ctx context.Context, content string) ([]symbols.KeyToken, error) {
	idx := symbols.NewLineIndex(content)
	dec := yaml.NewDecoder(strings.NewReader(content))
	var tokens []symbols.KeyToken
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		tokens = collectKeys(&doc, idx, tokens)
	}
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].Begin < tokens[j].Begin })
	return tokens, nil
}

func collectKeys(node *yaml.Node, idx *symbols.LineIndex, tokens []symbols.KeyToken) []symbols.KeyToken {
	if node == nil {
		return tokens
	}
	switch node.Kind {
	case yaml.MappingNode:
		if node.Style&yaml.FlowStyle != 0 {
			return tokens
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			if tok, ok := keyToken(node.Content[i], idx); ok {
				tokens = append(tokens, tok)
			}
			tokens = collectKeys(node.Content[i+1], idx, tokens)
		}
	case yaml.DocumentNode, yaml.SequenceNode:
		if node.Style&yaml.FlowStyle != 0 {
			return tokens
		}
		for _, child := range node.Content {
			tokens = collectKeys(child, idx, tokens)
		}
	}
	return tokens
}

// keyToken maps a scalar key node back to its source range. yaml.v3 reports
// 1-based lines and 1-based character columns.
func keyToken(key *yaml.Node, idx *symbols.LineIndex) (symbols.KeyToken, bool) {
	if key.Kind != yaml.ScalarNode || key.Line <= 0 || key.Column <= 0 {
		return symbols.KeyToken{}, false
	}
	line := key.Line - 1
	if line >= idx.LineCount() {
		return symbols.KeyToken{}, false
	}
	text := idx.Line(line)
	begin := 0
	for col := 1; col < key.Column && begin < len(text); col++ {
		_, size := utf8.DecodeRuneInString(text[begin:])
		begin += size
	}
	rest := text[begin:]
	var width int
	switch {
	case key.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0:
		quote := rest[:min(1, len(rest))]
		closing := strings.Index(rest[min(1, len(rest)):], quote)
		if quote == "" || closing < 0 {
			return symbols.KeyToken{}, false
		}
		width = closing + 2
	case strings.HasPrefix(rest, key.Value):
		width = len(key.Value)
	default:
		return symbols.KeyToken{}, false
	}
	if width == 0 {
		return symbols.KeyToken{}, false
	}
	start := idx.LineStart(line) + begin
	return symbols.KeyToken{Begin: start, End: start + width}, true
}
