package dynamicast

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/parser"
)

// decoratorText returns a decorator's text without its leading "@".
func decoratorText(node *tree_sitter.Node, source []byte) string {
	text := parser.NodeText(node, source)
	if len(text) > 0 && text[0] == '@' {
		text = text[1:]
	}
	return text
}
