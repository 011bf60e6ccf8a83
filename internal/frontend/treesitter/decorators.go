package treesitter

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/parser"
)

// leadingDecorators collects a class's decorators. The tree-sitter JS/TS
// grammars attach them as the declaration's own leading children, or, for
// `@Dec export class ...`, as siblings preceding node under the
// export_statement (ahead of the `export` keyword); both places are read.
func leadingDecorators(node *tree_sitter.Node, source []byte, spec *lang.LanguageSpec) []string {
	if len(spec.DecoratorNodeTypes) == 0 {
		return nil
	}
	decoratorKinds := toSet(spec.DecoratorNodeTypes)

	var found []string
	for i := uint(0); i < node.ChildCount(); i++ {
		if c := node.Child(i); c != nil && decoratorKinds[c.Kind()] {
			found = append(found, parser.NodeText(c, source))
		}
	}
	parent := node.Parent()
	if parent == nil {
		return found
	}
	var idx = -1
	for i := uint(0); i < parent.ChildCount(); i++ {
		if parent.Child(i) != nil && parent.Child(i).Id() == node.Id() {
			idx = int(i)
			break
		}
	}
	if idx < 0 {
		return found
	}
	for i := idx - 1; i >= 0; i-- {
		sib := parent.Child(uint(i))
		if sib != nil && sib.Kind() == "export" {
			continue
		}
		if sib == nil || !decoratorKinds[sib.Kind()] {
			break
		}
		found = append([]string{parser.NodeText(sib, source)}, found...)
	}
	return found
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
