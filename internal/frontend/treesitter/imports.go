package treesitter

import (
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/fqn"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/parser"
)

// importBinding is one named import statement's local binding, carried
// alongside the bare local-name -> resolved-specifier map so ParseFile can
// materialize an Import entity and an Imports edge for it, not just seed
// pass 2's lookup table.
type importBinding struct {
	local     string
	resolved  string
	startLine int
	endLine   int
}

// parseImports builds the local-name -> resolved-specifier map pass 2 uses
// to turn a bare call/base-class name into a registry lookup key, covering
// Go, JS/TS import declarations, and JS/TS export statements. It also
// returns one importBinding per named import, for the Import entity/edge
// that represents the import statement itself.
func parseImports(root *tree_sitter.Node, source []byte, language lang.Language, project, relPath string) (map[string]string, []string, []importBinding) {
	switch language {
	case lang.Go:
		imports, bindings := parseGoImports(root, source, project)
		return imports, nil, bindings
	default:
		imports, exports, bindings := parseJSImports(root, source, project, relPath)
		return imports, exports, bindings
	}
}

func parseGoImports(root *tree_sitter.Node, source []byte, project string) (map[string]string, []importBinding) {
	imports := make(map[string]string)
	var bindings []importBinding
	parser.Walk(root, func(node *tree_sitter.Node) bool {
		if node.Kind() != "import_declaration" {
			return true
		}
		parser.Walk(node, func(child *tree_sitter.Node) bool {
			if child.Kind() != "import_spec" {
				return true
			}
			pathNode := child.ChildByFieldName("path")
			if pathNode == nil {
				return false
			}
			importPath := stripQuotes(parser.NodeText(pathNode, source))
			if importPath == "" {
				return false
			}
			localName := lastSep(importPath, "/")
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				alias := parser.NodeText(nameNode, source)
				if alias != "" && alias != "." && alias != "_" {
					localName = alias
				}
			}
			resolved := resolveGoImportPath(importPath, project)
			imports[localName] = resolved
			start, end := lineSpan(child)
			bindings = append(bindings, importBinding{local: localName, resolved: resolved, startLine: start, endLine: end})
			return false
		})
		return false
	})
	return imports, bindings
}

func resolveGoImportPath(importPath, project string) string {
	parts := strings.Split(importPath, "/")
	for i, part := range parts {
		if part == project {
			return strings.Join(parts[i:], ".")
		}
	}
	return strings.Join(parts, ".")
}

// parseJSImports handles ES module import/export statements for
// JavaScript/TypeScript/TSX. Relative specifiers ("./foo", "../bar") are
// resolved to a project-relative module QN using fqn.FolderQN; bare
// specifiers (package names) are left as-is for External interning.
func parseJSImports(root *tree_sitter.Node, source []byte, project, relPath string) (map[string]string, []string, []importBinding) {
	imports := make(map[string]string)
	var exports []string
	var bindings []importBinding

	parser.Walk(root, func(node *tree_sitter.Node) bool {
		switch node.Kind() {
		case "import_statement":
			processJSImport(node, source, project, relPath, imports, &bindings)
			return false
		case "export_statement":
			collectJSExports(node, source, &exports)
			return true
		}
		return true
	})

	return imports, exports, bindings
}

func processJSImport(node *tree_sitter.Node, source []byte, project, relPath string, imports map[string]string, bindings *[]importBinding) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return
	}
	specifier := stripQuotes(parser.NodeText(sourceNode, source))
	resolved := resolveJSSpecifier(specifier, project, relPath)
	startLine, endLine := lineSpan(node)

	bind := func(local, target string) {
		imports[local] = target
		*bindings = append(*bindings, importBinding{local: local, resolved: target, startLine: startLine, endLine: endLine})
	}

	clause := findChild(node, "import_clause")
	if clause == nil {
		return
	}
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier":
			bind(parser.NodeText(child, source), resolved)
		case "namespace_import":
			if id := child.NamedChild(0); id != nil {
				bind(parser.NodeText(id, source), resolved)
			}
		case "named_imports":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				spec := child.NamedChild(j)
				if spec == nil || spec.Kind() != "import_specifier" {
					continue
				}
				nameNode := spec.ChildByFieldName("name")
				aliasNode := spec.ChildByFieldName("alias")
				if nameNode == nil {
					continue
				}
				exported := parser.NodeText(nameNode, source)
				local := exported
				if aliasNode != nil {
					local = parser.NodeText(aliasNode, source)
				}
				bind(local, resolved+"#"+exported)
			}
		}
	}
}

func collectJSExports(node *tree_sitter.Node, source []byte, exports *[]string) {
	parser.Walk(node, func(child *tree_sitter.Node) bool {
		switch child.Kind() {
		case "function_declaration", "class_declaration", "abstract_class_declaration", "interface_declaration":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				*exports = append(*exports, parser.NodeText(nameNode, source))
			}
			return false
		}
		return true
	})
}

// resolveJSSpecifier resolves a relative import specifier to a
// project-relative module QN; bare package specifiers pass through
// unchanged for External interning in pass 2.
func resolveJSSpecifier(specifier, project, relPath string) string {
	if !strings.HasPrefix(specifier, ".") {
		return specifier
	}
	dir := filepath.Dir(relPath)
	joined := filepath.ToSlash(filepath.Join(dir, specifier))
	return fqn.ModuleQN(project, joined)
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func lastSep(s, sep string) string {
	parts := strings.Split(s, sep)
	return parts[len(parts)-1]
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
