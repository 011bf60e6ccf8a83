// Package staticasset is the front-end for HTML and CSS. Neither language
// has a declaration vocabulary worth tracking as entities
// of its own — a stylesheet's rule blocks and a page's tags aren't
// Functions or Classes — so this front-end never creates a Module wrapper.
// It parses only far enough to harvest a handful of recognized-selector
// properties and merges them onto the File entity the extractor already
// created for fileID.
package staticasset

import (
	"context"
	"os"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/discover"
	"github.com/DeusData/codegraph/internal/frontend"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/parser"
)

// FrontEnd implements frontend.FrontEnd for HTML and CSS.
type FrontEnd struct{}

func New() *FrontEnd { return &FrontEnd{} }

func (fe *FrontEnd) Languages() []lang.Language { return []lang.Language{lang.HTML, lang.CSS} }

func (fe *FrontEnd) ParseFile(ctx context.Context, f discover.FileInfo, project string, fileID string) (*frontend.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	tree, err := parser.Parse(f.Language, source)
	if err != nil {
		return &frontend.ParseResult{Errors: []frontend.ParseError{{File: f.Path, Message: err.Error()}}}, nil
	}
	defer tree.Close()

	props := map[string]any{}
	if f.Language == lang.HTML {
		props = htmlProperties(tree.RootNode(), source)
	} else {
		props = cssProperties(tree.RootNode(), source)
	}

	return &frontend.ParseResult{FileProperties: props}, nil
}

// htmlProperties records the page <title> and the set of distinct tag
// names used, a cheap structural fingerprint gathered in one walk of the
// whole tree.
func htmlProperties(root *tree_sitter.Node, source []byte) map[string]any {
	props := map[string]any{}
	tagSeen := map[string]bool{}
	var tags []string

	parser.Walk(root, func(node *tree_sitter.Node) bool {
		if node.Kind() != "element" {
			return true
		}
		startTag := findChild(node, "start_tag")
		if startTag == nil {
			return true
		}
		nameNode := findChild(startTag, "tag_name")
		if nameNode == nil {
			return true
		}
		tagName := parser.NodeText(nameNode, source)
		if !tagSeen[tagName] {
			tagSeen[tagName] = true
			tags = append(tags, tagName)
		}
		if tagName == "title" {
			if textNode := findChild(node, "text"); textNode != nil {
				props["title"] = parser.NodeText(textNode, source)
			}
		}
		return true
	})

	if len(tags) > 0 {
		props["tags"] = tags
	}
	return props
}

// cssProperties records the distinct class and id selectors found anywhere
// in the stylesheet, including rules nested inside at-rules.
func cssProperties(root *tree_sitter.Node, source []byte) map[string]any {
	props := map[string]any{}
	seen := map[string]bool{}
	var selectors []string

	parser.Walk(root, func(node *tree_sitter.Node) bool {
		switch node.Kind() {
		case "class_selector", "id_selector":
			text := parser.NodeText(node, source)
			if text != "" && !seen[text] {
				seen[text] = true
				selectors = append(selectors, text)
			}
		}
		return true
	})

	if len(selectors) > 0 {
		props["selectors"] = selectors
	}
	return props
}

func findChild(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		if c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}
