package dynamicast

import (
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/fqn"
	"github.com/DeusData/codegraph/internal/parser"
)

// importBinding is one named import's local binding, carried alongside the
// bare local-name -> resolved-module map so ParseFile can materialize an
// Import entity and an Imports edge for it, not just seed pass 2's lookup
// table.
type importBinding struct {
	local     string
	resolved  string
	startLine int
	endLine   int
}

// parsePythonImports builds the local-name -> resolved-module map pass 2
// uses to turn a bare name into a registry lookup key, and collects the
// module-level names a "from X import *"-free module makes available. It
// also returns one importBinding per named import, for the Import entity/
// edge that represents the import statement itself.
func parsePythonImports(root *tree_sitter.Node, source []byte, projectName, relPath string) (map[string]string, []string, []importBinding) {
	imports := make(map[string]string)
	var exports []string
	var bindings []importBinding

	parser.Walk(root, func(node *tree_sitter.Node) bool {
		switch node.Kind() {
		case "import_statement":
			processPythonImport(node, source, projectName, imports, &bindings)
			return false
		case "import_from_statement":
			processPythonFromImport(node, source, projectName, relPath, imports, &bindings)
			return false
		case "function_definition", "class_definition":
			parent := node.Parent()
			if parent != nil && parent.Kind() == "decorated_definition" {
				parent = parent.Parent()
			}
			if parent == nil || parent.Kind() != "module" {
				return true
			}
			if nameNode := node.ChildByFieldName("name"); nameNode != nil {
				name := parser.NodeText(nameNode, source)
				if !strings.HasPrefix(name, "_") {
					exports = append(exports, name)
				}
			}
			return true
		}
		return true
	})

	return imports, exports, bindings
}

func processPythonImport(node *tree_sitter.Node, source []byte, projectName string, imports map[string]string, bindings *[]importBinding) {
	startLine, endLine := lineSpan(node)
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			name := parser.NodeText(child, source)
			localName := lastDotSegment(name)
			resolved := resolvePythonModule(name, projectName)
			imports[localName] = resolved
			*bindings = append(*bindings, importBinding{local: localName, resolved: resolved, startLine: startLine, endLine: endLine})
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil {
				continue
			}
			name := parser.NodeText(nameNode, source)
			localName := lastDotSegment(name)
			if aliasNode != nil {
				localName = parser.NodeText(aliasNode, source)
			}
			resolved := resolvePythonModule(name, projectName)
			imports[localName] = resolved
			*bindings = append(*bindings, importBinding{local: localName, resolved: resolved, startLine: startLine, endLine: endLine})
		}
	}
}

func processPythonFromImport(node *tree_sitter.Node, source []byte, projectName, relPath string, imports map[string]string, bindings *[]importBinding) {
	moduleNode := node.ChildByFieldName("module_name")
	var modulePath string
	isRelative := false

	if moduleNode != nil {
		modulePath = parser.NodeText(moduleNode, source)
		isRelative = strings.HasPrefix(modulePath, ".")
	} else {
		text := parser.NodeText(node, source)
		if strings.HasPrefix(text, "from .") {
			isRelative = true
			modulePath = "."
		}
	}

	var baseModule string
	if isRelative {
		baseModule = resolveRelativePythonImport(modulePath, relPath, projectName)
	} else {
		baseModule = resolvePythonModule(modulePath, projectName)
	}

	startLine, endLine := lineSpan(node)
	bind := func(local, resolved string) {
		imports[local] = resolved
		*bindings = append(*bindings, importBinding{local: local, resolved: resolved, startLine: startLine, endLine: endLine})
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			name := parser.NodeText(child, source)
			if name == modulePath {
				continue
			}
			localName := lastDotSegment(name)
			if baseModule != "" {
				bind(localName, baseModule+"."+name)
			} else {
				bind(localName, name)
			}
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil {
				continue
			}
			name := parser.NodeText(nameNode, source)
			localName := lastDotSegment(name)
			if aliasNode != nil {
				localName = parser.NodeText(aliasNode, source)
			}
			if baseModule != "" {
				bind(localName, baseModule+"."+name)
			} else {
				bind(localName, name)
			}
		}
	}
}

func resolvePythonModule(modulePath, projectName string) string {
	if modulePath == "" {
		return projectName
	}
	return projectName + "." + modulePath
}

func resolveRelativePythonImport(modulePath, relPath, projectName string) string {
	dots := 0
	for _, ch := range modulePath {
		if ch == '.' {
			dots++
		} else {
			break
		}
	}
	remainder := strings.TrimLeft(modulePath, ".")

	dir := filepath.Dir(relPath)
	for i := 1; i < dots; i++ {
		dir = filepath.Dir(dir)
	}

	baseQN := fqn.FolderQN(projectName, dir)
	if dir == "." || dir == "" {
		baseQN = projectName
	}

	if remainder != "" {
		return baseQN + "." + remainder
	}
	return baseQN
}

func lastDotSegment(name string) string {
	parts := strings.Split(name, ".")
	return parts[len(parts)-1]
}
