package yamlkeys

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/yaml"

	"github.com/lexcodex/yamlnav/framework/symbols"
)

// tree-sitter-yaml node types the walk cares about.
const (
	nodeBlockMappingPair = "block_mapping_pair"
	nodeFlowMapping      = "flow_mapping"
	nodeFlowSequence     = "flow_sequence"
	nodeComment          = "comment"
)

// TreeSitter classifies keys with the tree-sitter YAML grammar. The parser
// recovers from syntax errors, so half-typed documents still yield keys.
type TreeSitter struct{}

// NewTreeSitter returns the tree-sitter classifier. Each call to KeyTokens
// builds its own parser, so the value is safe for concurrent use.
func NewTreeSitter() *TreeSitter { return &TreeSitter{} }

// KeyTokens implements Classifier.
func (TreeSitter) KeyTokens(ctx context.Context, content string) ([]symbols.KeyToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(yaml.GetLanguage())

	src := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	var tokens []symbols.KeyToken
	stack := []*sitter.Node{tree.RootNode()}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}
		switch node.Type() {
		case nodeFlowMapping, nodeFlowSequence, nodeComment:
			// inline collections are not outlined
			continue
		case nodeBlockMappingPair:
			if key := node.ChildByFieldName("key"); key != nil {
				tok := symbols.KeyToken{Begin: int(key.StartByte()), End: int(key.EndByte())}
				if tok.Len() > 0 {
					tokens = append(tokens, tok)
				}
			}
		}
		// push children in reverse so they pop in document order
		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.Child(i))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}
