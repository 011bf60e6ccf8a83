package dynamicast

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/parser"
)

// pythonBaseClasses reads a class_definition's "superclasses" argument list.
// Keyword arguments (metaclass=..., Generic[T] subscripts) are skipped —
// only plain base-class names and attribute paths resolve against the
// registry.
func pythonBaseClasses(node *tree_sitter.Node, source []byte) []string {
	argList := node.ChildByFieldName("superclasses")
	if argList == nil {
		return nil
	}
	var bases []string
	for i := uint(0); i < argList.NamedChildCount(); i++ {
		arg := argList.NamedChild(i)
		if arg == nil {
			continue
		}
		switch arg.Kind() {
		case "identifier", "attribute":
			if name := parser.NodeText(arg, source); name != "" {
				bases = append(bases, name)
			}
		}
	}
	return bases
}
