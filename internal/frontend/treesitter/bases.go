package treesitter

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/parser"
)

// extractBaseClasses reads the extends/implements clause of a class
// declaration. Go type_spec nodes never carry heritage and return nil.
func extractBaseClasses(node *tree_sitter.Node, source []byte, language lang.Language) (extends []string, implements []string) {
	if language == lang.Go {
		return nil, nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "class_heritage" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			clause := child.Child(j)
			if clause == nil {
				continue
			}
			switch clause.Kind() {
			case "identifier", "member_expression":
				// JavaScript: class_heritage holds `extends` and the base
				// expression directly, with no extends_clause wrapper.
				extends = append(extends, parser.NodeText(clause, source))
			case "extends_clause":
				extends = append(extends, extendsNames(clause, source)...)
			case "implements_clause":
				implements = append(implements, namedChildTexts(clause, source)...)
			}
		}
	}
	return extends, implements
}

func extendsNames(clause *tree_sitter.Node, source []byte) []string {
	if valNode := clause.ChildByFieldName("value"); valNode != nil {
		if name := parser.NodeText(valNode, source); name != "" {
			return []string{name}
		}
	}
	var names []string
	for k := uint(0); k < clause.NamedChildCount(); k++ {
		ident := clause.NamedChild(k)
		if ident != nil && (ident.Kind() == "identifier" || ident.Kind() == "member_expression") {
			if name := parser.NodeText(ident, source); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func namedChildTexts(node *tree_sitter.Node, source []byte) []string {
	var names []string
	for k := uint(0); k < node.NamedChildCount(); k++ {
		child := node.NamedChild(k)
		if child == nil {
			continue
		}
		if name := parser.NodeText(child, source); name != "" {
			names = append(names, name)
		}
	}
	return names
}
