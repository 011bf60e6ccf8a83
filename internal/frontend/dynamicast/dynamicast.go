// Package dynamicast is Python's front-end. Unlike the table-driven
// internal/frontend/treesitter engine, it walks the grammar's own node
// kinds directly because Python's declaration shapes —
// decorators wrapping a definition rather than preceding it as siblings,
// self-bound methods, PEP 257 docstrings — don't fit the same table the
// bracket-language grammars share.
package dynamicast

import (
	"context"
	"os"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/discover"
	"github.com/DeusData/codegraph/internal/fqn"
	"github.com/DeusData/codegraph/internal/frontend"
	"github.com/DeusData/codegraph/internal/identity"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/model"
	"github.com/DeusData/codegraph/internal/parser"
)

// FrontEnd implements frontend.FrontEnd for Python.
type FrontEnd struct{}

func New() *FrontEnd { return &FrontEnd{} }

func (fe *FrontEnd) Languages() []lang.Language { return []lang.Language{lang.Python} }

type scope struct {
	qn      string
	id      string
	inClass bool
	classQN string
}

type walkState struct {
	project, relPath, absPath string
	source                    []byte
	result                    *frontend.ParseResult
}

func (fe *FrontEnd) ParseFile(ctx context.Context, f discover.FileInfo, project string, fileID string) (*frontend.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	tree, err := parser.Parse(lang.Python, source)
	if err != nil {
		return &frontend.ParseResult{Errors: []frontend.ParseError{{File: f.Path, Message: err.Error()}}}, nil
	}
	defer tree.Close()

	lineCount := strings.Count(string(source), "\n") + 1
	moduleQN := fqn.ModuleQN(project, f.RelPath)
	moduleID := identity.Of(model.KindModule, f.Path, moduleQN, 1, lineCount)

	moduleEntity := &model.Entity{
		ID: moduleID, Kind: model.KindModule, Name: moduleName(f.RelPath),
		QualifiedName: moduleQN, FilePath: f.Path, RelPath: f.RelPath,
		StartLine: 1, EndLine: lineCount,
	}

	importMap, exports, bindings := parsePythonImports(tree.RootNode(), source, project, f.RelPath)

	st := &walkState{
		project: project, relPath: f.RelPath, absPath: f.Path, source: source,
		result: &frontend.ParseResult{
			Entities:  []*model.Entity{moduleEntity},
			ImportMap: importMap,
			Exports:   exports,
		},
	}
	// Kind is filled in by fixupContainmentKinds once every entity in this
	// file has its final Kind.
	st.result.Contains = append(st.result.Contains, &model.ResolvedEdge{SourceID: fileID, TargetID: moduleID})

	for _, b := range bindings {
		st.emitImportBinding(moduleQN, moduleID, b)
	}

	st.walk(tree.RootNode(), scope{qn: moduleQN, id: moduleID})

	return st.result, nil
}

// emitImportBinding materializes one named import as an Import entity owned
// by the module, plus the pending IMPORTS edge pass 2 resolves against the
// import map this same binding seeded.
func (st *walkState) emitImportBinding(moduleQN, moduleID string, b importBinding) {
	qn := moduleQN + "." + b.local
	id := identity.Of(model.KindImport, st.absPath, qn, b.startLine, b.endLine)
	entity := &model.Entity{
		ID: id, Kind: model.KindImport, Name: b.local, QualifiedName: qn,
		FilePath: st.absPath, RelPath: st.relPath,
		StartLine: b.startLine, EndLine: b.endLine,
	}
	st.result.Entities = append(st.result.Entities, entity)
	st.result.Contains = append(st.result.Contains, &model.ResolvedEdge{SourceID: moduleID, TargetID: id})
	st.result.Pending = append(st.result.Pending, &model.PendingEdge{
		SourceID: moduleID, Kind: model.EdgeImports, ResolveTarget: b.resolved, FromModuleQN: moduleQN,
		Properties: map[string]any{"alias": b.local},
	})
}

func moduleName(relPath string) string {
	base := relPath
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.TrimSuffix(base, ".py")
}

func (st *walkState) walk(node *tree_sitter.Node, sc scope) {
	if node == nil {
		return
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "import_statement", "import_from_statement":
			continue // harvested by parsePythonImports
		case "decorated_definition":
			st.handleDecorated(child, sc)
		case "class_definition":
			st.handleClass(child, sc, nil)
		case "function_definition":
			st.handleFunction(child, sc, nil)
		case "expression_statement":
			st.handleAssignment(child, sc)
			st.walk(child, sc)
		case "call":
			st.handleCall(child, sc)
			st.walk(child, sc)
		default:
			st.walk(child, sc)
		}
	}
}

// handleDecorated unwraps a decorated_definition (decorators followed by
// the class/function they apply to) and dispatches to the inner node.
func (st *walkState) handleDecorated(node *tree_sitter.Node, sc scope) {
	var decorators []string
	var inner *tree_sitter.Node
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "decorator":
			decorators = append(decorators, decoratorText(child, st.source))
		case "class_definition":
			inner = child
		case "function_definition":
			inner = child
		}
	}
	if inner == nil {
		return
	}
	if inner.Kind() == "class_definition" {
		st.handleClass(inner, sc, decorators)
	} else {
		st.handleFunction(inner, sc, decorators)
	}
}

func (st *walkState) handleClass(node *tree_sitter.Node, sc scope, decorators []string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.NodeText(nameNode, st.source)
	qn := sc.qn + "." + name
	startLine, endLine := lineSpan(node)
	id := identity.Of(model.KindClass, st.absPath, qn, startLine, endLine)

	props := map[string]any{}
	if len(decorators) > 0 {
		props["decorators"] = decorators
	}
	if doc := pythonDocstring(node, st.source); doc != "" {
		props["docstring"] = doc
	}

	entity := &model.Entity{
		ID: id, Kind: model.KindClass, Name: name, QualifiedName: qn,
		FilePath: st.absPath, RelPath: st.relPath,
		StartLine: startLine, EndLine: endLine, Properties: props,
	}
	st.result.Entities = append(st.result.Entities, entity)
	st.result.Contains = append(st.result.Contains, &model.ResolvedEdge{SourceID: sc.id, TargetID: id})

	for _, base := range pythonBaseClasses(node, st.source) {
		st.result.Pending = append(st.result.Pending, &model.PendingEdge{
			SourceID: id, Kind: model.EdgeExtends, ResolveTarget: base, FromModuleQN: sc.qn,
		})
	}

	bodyNode := node.ChildByFieldName("body")
	st.walk(bodyNode, scope{qn: qn, id: id, inClass: true, classQN: qn})
}

func (st *walkState) handleFunction(node *tree_sitter.Node, sc scope, decorators []string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.NodeText(nameNode, st.source)

	kind := model.KindFunction
	if sc.inClass {
		kind = model.KindMethod
	}
	qn := sc.qn + "." + name
	startLine, endLine := lineSpan(node)
	id := identity.Of(kind, st.absPath, qn, startLine, endLine)

	props := map[string]any{}
	if len(decorators) > 0 {
		props["decorators"] = decorators
	}
	if doc := pythonDocstring(node, st.source); doc != "" {
		props["docstring"] = doc
	}
	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		props["signature"] = parser.NodeText(paramsNode, st.source)
	}

	entity := &model.Entity{
		ID: id, Kind: kind, Name: name, QualifiedName: qn,
		FilePath: st.absPath, RelPath: st.relPath,
		StartLine: startLine, EndLine: endLine, Properties: props,
	}
	st.result.Entities = append(st.result.Entities, entity)
	st.result.Contains = append(st.result.Contains, &model.ResolvedEdge{SourceID: sc.id, TargetID: id})

	// A function nested inside another stays a Function, never a Method,
	// and methods don't nest classes — classQN only changes at class_definition.
	bodyNode := node.ChildByFieldName("body")
	st.walk(bodyNode, scope{qn: qn, id: id, inClass: false, classQN: sc.classQN})
}

// handleAssignment picks up module- or class-level `name = expr` and
// `self.name = expr` statements as Variable entities; a plain `name = expr`
// inside a function body is a local and is skipped. Python has no field
// declaration syntax, so assignments stand in for one: every qualifying
// assignment statement yields its own Variable.
func (st *walkState) handleAssignment(exprStmt *tree_sitter.Node, sc scope) {
	if exprStmt.NamedChildCount() == 0 {
		return
	}
	assign := exprStmt.NamedChild(0)
	if assign == nil || assign.Kind() != "assignment" {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil {
		return
	}

	var name, qn string

	switch left.Kind() {
	case "identifier":
		if !sc.inClass && sc.qn != fqn.ModuleQN(st.project, st.relPath) {
			return
		}
		name = parser.NodeText(left, st.source)
		if sc.inClass {
			qn = sc.classQN + "." + name
		} else {
			qn = sc.qn + "." + name
		}
	case "attribute":
		// self.foo = ... inside a method body.
		obj := left.ChildByFieldName("object")
		attr := left.ChildByFieldName("attribute")
		if obj == nil || attr == nil || parser.NodeText(obj, st.source) != "self" {
			return
		}
		if sc.classQN == "" {
			return
		}
		name = parser.NodeText(attr, st.source)
		qn = sc.classQN + "." + name
	default:
		return
	}

	startLine, endLine := lineSpan(exprStmt)
	id := identity.Of(model.KindVariable, st.absPath, qn, startLine, endLine)
	entity := &model.Entity{
		ID: id, Kind: model.KindVariable, Name: name, QualifiedName: qn,
		FilePath: st.absPath, RelPath: st.relPath,
		StartLine: startLine, EndLine: endLine,
	}
	st.result.Entities = append(st.result.Entities, entity)
	st.result.Contains = append(st.result.Contains, &model.ResolvedEdge{SourceID: sc.id, TargetID: id})

	if right := assign.ChildByFieldName("right"); right != nil {
		st.emitValueReference(sc, right)
	}
}

// emitValueReference records how a variable's initializer references
// another symbol: a bare identifier is a Uses edge, an attribute access
// reaches into a property path and is an Accesses edge instead.
func (st *walkState) emitValueReference(sc scope, valueNode *tree_sitter.Node) {
	var kind model.EdgeKind
	switch valueNode.Kind() {
	case "identifier":
		kind = model.EdgeUses
	case "attribute":
		kind = model.EdgeAccesses
	default:
		return
	}
	text := parser.NodeText(valueNode, st.source)
	if text == "" {
		return
	}
	st.result.Pending = append(st.result.Pending, &model.PendingEdge{
		SourceID: sc.id, Kind: kind, ResolveTarget: text, FromModuleQN: sc.qn,
	})
}

func (st *walkState) handleCall(node *tree_sitter.Node, sc scope) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}
	callee := parser.NodeText(fnNode, st.source)
	if callee == "" {
		return
	}
	// self.method(...) resolves against the enclosing class, not the
	// module-level symbol table; rewrite it to <classQN>.method so pass 2
	// can look it up the same way it looks up any other qualified member.
	if strings.HasPrefix(callee, "self.") && sc.classQN != "" {
		callee = sc.classQN + strings.TrimPrefix(callee, "self")
	}
	st.result.Pending = append(st.result.Pending, &model.PendingEdge{
		SourceID: sc.id, Kind: model.EdgeCalls, ResolveTarget: callee, FromModuleQN: sc.qn,
	})
}

func lineSpan(node *tree_sitter.Node) (int, int) {
	return int(node.StartPosition().Row) + 1, int(node.EndPosition().Row) + 1
}
