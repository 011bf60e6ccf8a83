// Package treesitter is the table-driven front-end shared by JavaScript,
// TypeScript, TSX, and Go: one generic recursive walk configured per
// language from lang.LanguageSpec's node-kind tables, in contrast to the
// hand-written dynamicast front-end Python gets.
package treesitter

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/discover"
	"github.com/DeusData/codegraph/internal/fqn"
	"github.com/DeusData/codegraph/internal/frontend"
	"github.com/DeusData/codegraph/internal/frontend/shared"
	"github.com/DeusData/codegraph/internal/identity"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/model"
	"github.com/DeusData/codegraph/internal/parser"
)

// FrontEnd implements frontend.FrontEnd for the table-driven languages.
type FrontEnd struct{}

// New returns a FrontEnd covering JavaScript, TypeScript, TSX, and Go.
func New() *FrontEnd { return &FrontEnd{} }

func (fe *FrontEnd) Languages() []lang.Language {
	return []lang.Language{lang.JavaScript, lang.TypeScript, lang.TSX, lang.Go}
}

// scope tracks the entity a nested declaration or call attaches to, and
// whether we are currently inside a class body (so a FunctionNodeTypes hit
// becomes a Method rather than a Function).
type scope struct {
	qn      string
	id      string
	inClass bool
	classQN string
}

type walkState struct {
	project, relPath, absPath string
	source                    []byte
	spec                      *lang.LanguageSpec
	language                  lang.Language
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
	spec := lang.ForLanguage(f.Language)
	if spec == nil {
		return nil, frontend.ParseError{File: f.Path, Message: "no language spec registered"}
	}

	tree, err := parser.Parse(f.Language, source)
	if err != nil {
		return &frontend.ParseResult{Errors: []frontend.ParseError{{File: f.Path, Message: err.Error()}}}, nil
	}
	defer tree.Close()

	lineCount := strings.Count(string(source), "\n") + 1
	moduleQN := fqn.ModuleQN(project, f.RelPath)
	moduleID := identity.Of(model.KindModule, f.Path, moduleQN, 1, lineCount)

	moduleEntity := &model.Entity{
		ID: moduleID, Kind: model.KindModule, Name: filepath.Base(f.RelPath),
		QualifiedName: moduleQN, FilePath: f.Path, RelPath: f.RelPath,
		StartLine: 1, EndLine: lineCount,
	}

	importMap, exports, bindings := parseImports(tree.RootNode(), source, f.Language, project, f.RelPath)

	st := &walkState{
		project: project, relPath: f.RelPath, absPath: f.Path,
		source: source, spec: spec, language: f.Language,
		result: &frontend.ParseResult{
			Entities:  []*model.Entity{moduleEntity},
			ImportMap: importMap,
			Exports:   exports,
		},
	}
	// Kind is filled in by fixupContainmentKinds once every entity in this
	// file (including decorator-rekinded ones) has its final Kind.
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

func (st *walkState) walk(node *tree_sitter.Node, sc scope) {
	if node == nil {
		return
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		kind := child.Kind()

		switch {
		case containsStr(st.spec.ImportNodeTypes, kind) || containsStr(st.spec.ImportFromTypes, kind):
			// already harvested by parseImports; don't recurse.
			continue

		case containsStr(st.spec.ClassNodeTypes, kind):
			st.handleClass(child, sc)
			continue

		case containsStr(st.spec.FieldNodeTypes, kind) && sc.inClass:
			st.handleField(child, sc)
			continue

		case containsStr(st.spec.FunctionNodeTypes, kind):
			st.handleFunction(child, sc)
			continue

		case containsStr(st.spec.VariableNodeTypes, kind):
			st.handleVariable(child, sc)
			continue

		case containsStr(st.spec.CallNodeTypes, kind):
			st.handleCall(child, sc)
			// fall through to recurse into arguments for nested calls
		}

		st.walk(child, sc)
	}
}

func (st *walkState) handleClass(node *tree_sitter.Node, sc scope) {
	if st.language == lang.Go {
		st.handleGoTypeSpec(node, sc)
		return
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		st.walk(node, sc)
		return
	}
	name := parser.NodeText(nameNode, st.source)
	qn := sc.qn + "." + name
	startLine, endLine := lineSpan(node)
	kind := classLikeKind(node.Kind())
	id := identity.Of(kind, st.absPath, qn, startLine, endLine)

	extends, implements := extractBaseClasses(node, st.source, st.language)
	decorators := leadingDecorators(node, st.source, st.spec)

	props := map[string]any{}
	if len(decorators) > 0 {
		props["decorators"] = decorators
	}

	entity := &model.Entity{
		ID: id, Kind: kind, Name: name, QualifiedName: qn,
		FilePath: st.absPath, RelPath: st.relPath,
		StartLine: startLine, EndLine: endLine, Properties: props,
	}
	st.result.Entities = append(st.result.Entities, entity)
	st.result.Contains = append(st.result.Contains, &model.ResolvedEdge{SourceID: sc.id, TargetID: id})

	for _, base := range extends {
		st.result.Pending = append(st.result.Pending, &model.PendingEdge{
			SourceID: id, Kind: model.EdgeExtends, ResolveTarget: base, FromModuleQN: sc.qn,
		})
	}
	for _, iface := range implements {
		st.result.Pending = append(st.result.Pending, &model.PendingEdge{
			SourceID: id, Kind: model.EdgeImplements, ResolveTarget: iface, FromModuleQN: sc.qn,
		})
	}

	bodyNode := node.ChildByFieldName("body")
	st.walk(bodyNode, scope{qn: qn, id: id, inClass: true, classQN: qn})
}

// classLikeKind distinguishes the declared-type kinds that share a single
// ClassNodeTypes table entry in lang.LanguageSpec: TypeScript registers
// interface_declaration/enum_declaration/type_alias_declaration alongside
// class_declaration so they all walk the same way, but they aren't the same
// entity kind.
func classLikeKind(nodeKind string) model.EntityKind {
	switch nodeKind {
	case "interface_declaration":
		return model.KindInterface
	case "enum_declaration":
		return model.KindEnum
	case "type_alias_declaration":
		return model.KindTypeAlias
	default:
		return model.KindClass
	}
}

// handleGoTypeSpec treats a type_spec as a declared type only when its
// underlying type is a struct or interface — Go type aliases to primitives
// aren't declarations worth tracking as classes.
func (st *walkState) handleGoTypeSpec(node *tree_sitter.Node, sc scope) {
	nameNode := node.ChildByFieldName("name")
	typeNode := node.ChildByFieldName("type")
	if nameNode == nil || typeNode == nil {
		return
	}
	var kind model.EntityKind
	switch typeNode.Kind() {
	case "struct_type":
		kind = model.KindClass
	case "interface_type":
		kind = model.KindInterface
	default:
		return
	}
	name := parser.NodeText(nameNode, st.source)
	qn := sc.qn + "." + name
	startLine, endLine := lineSpan(node)
	id := identity.Of(kind, st.absPath, qn, startLine, endLine)

	entity := &model.Entity{
		ID: id, Kind: kind, Name: name, QualifiedName: qn,
		FilePath: st.absPath, RelPath: st.relPath,
		StartLine: startLine, EndLine: endLine,
		Properties: map[string]any{"go_kind": typeNode.Kind()},
	}
	st.result.Entities = append(st.result.Entities, entity)
	st.result.Contains = append(st.result.Contains, &model.ResolvedEdge{SourceID: sc.id, TargetID: id})

	if typeNode.Kind() == "struct_type" {
		st.extractGoFields(typeNode, scope{qn: qn, id: id, inClass: true, classQN: qn})
	}
}

func (st *walkState) extractGoFields(structType *tree_sitter.Node, sc scope) {
	fieldList := structType.ChildByFieldName("body")
	if fieldList == nil {
		return
	}
	for i := uint(0); i < fieldList.NamedChildCount(); i++ {
		decl := fieldList.NamedChild(i)
		if decl == nil || decl.Kind() != "field_declaration" {
			continue
		}
		st.handleField(decl, sc)
	}
}

func (st *walkState) handleField(node *tree_sitter.Node, sc scope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		// Go embedded field: type node doubles as the name.
		if st.language == lang.Go {
			if typeNode := node.ChildByFieldName("type"); typeNode != nil {
				nameNode = typeNode
			}
		}
		if nameNode == nil {
			return
		}
	}
	name := parser.NodeText(nameNode, st.source)
	qn := sc.classQN + "." + name
	startLine, endLine := lineSpan(node)
	id := identity.Of(model.KindVariable, st.absPath, qn, startLine, endLine)

	var props map[string]any
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		if t := shared.CleanTypeName(parser.NodeText(typeNode, st.source)); t != "" && !shared.IsBuiltinType(t) {
			props = map[string]any{"type": t}
		}
	}

	entity := &model.Entity{
		ID: id, Kind: model.KindVariable, Name: name, QualifiedName: qn,
		FilePath: st.absPath, RelPath: st.relPath,
		StartLine: startLine, EndLine: endLine, Properties: props,
	}
	st.result.Entities = append(st.result.Entities, entity)
	st.result.Contains = append(st.result.Contains, &model.ResolvedEdge{SourceID: sc.id, TargetID: id})
}

func (st *walkState) handleFunction(node *tree_sitter.Node, sc scope) {
	name := functionName(node, st.source)
	if name == "" {
		// Anonymous function expression: still walk its body so nested
		// declarations/calls attribute to the enclosing scope.
		st.walk(node.ChildByFieldName("body"), sc)
		return
	}

	kind := functionKind(node.Kind(), sc.inClass)
	qn := sc.qn + "." + name
	startLine, endLine := lineSpan(node)
	id := identity.Of(kind, st.absPath, qn, startLine, endLine)

	entity := &model.Entity{
		ID: id, Kind: kind, Name: name, QualifiedName: qn,
		FilePath: st.absPath, RelPath: st.relPath,
		StartLine: startLine, EndLine: endLine,
	}
	st.result.Entities = append(st.result.Entities, entity)
	st.result.Contains = append(st.result.Contains, &model.ResolvedEdge{SourceID: sc.id, TargetID: id})

	bodyNode := node.ChildByFieldName("body")
	st.walk(bodyNode, scope{qn: qn, id: id, inClass: false, classQN: sc.classQN})
}

// functionKind picks ArrowFunction/GeneratorFunction by grammar node kind
// ahead of the Method/Function split: those two are callable-unit kinds in
// their own right, not Method variants, even when declared inside a class
// body (a TS class field initialized with an arrow function). A Go
// method_declaration (a func with a receiver) is always a Method.
func functionKind(nodeKind string, inClass bool) model.EntityKind {
	switch nodeKind {
	case "arrow_function":
		return model.KindArrowFunction
	case "generator_function_declaration", "generator_function":
		return model.KindGeneratorFunction
	case "method_declaration":
		return model.KindMethod
	}
	if inClass {
		return model.KindMethod
	}
	return model.KindFunction
}

func (st *walkState) handleVariable(node *tree_sitter.Node, sc scope) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		declarator := node.NamedChild(i)
		if declarator == nil {
			continue
		}
		if declarator.Kind() != "variable_declarator" && declarator.Kind() != "const_spec" && declarator.Kind() != "var_spec" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := parser.NodeText(nameNode, st.source)
		valueNode := declarator.ChildByFieldName("value")

		// const/let assigned a function expression becomes a Function
		// rather than a Variable. functionName falls back to the parent
		// variable_declarator's name
		// field, which is exactly this declarator, so handleFunction picks
		// up the right name without any extra plumbing.
		if valueNode != nil && containsStr(st.spec.FunctionNodeTypes, valueNode.Kind()) {
			st.handleFunction(valueNode, sc)
			continue
		}

		qn := sc.qn + "." + name
		if sc.inClass {
			qn = sc.classQN + "." + name
		}
		startLine, endLine := lineSpan(declarator)
		id := identity.Of(model.KindVariable, st.absPath, qn, startLine, endLine)
		entity := &model.Entity{
			ID: id, Kind: model.KindVariable, Name: name, QualifiedName: qn,
			FilePath: st.absPath, RelPath: st.relPath,
			StartLine: startLine, EndLine: endLine,
		}
		st.result.Entities = append(st.result.Entities, entity)
		st.result.Contains = append(st.result.Contains, &model.ResolvedEdge{SourceID: sc.id, TargetID: id})

		if valueNode != nil {
			st.emitValueReference(sc, valueNode)
		}
	}
}

// emitValueReference records how a variable's initializer references
// another symbol: a bare identifier is a Uses edge, a member-expression
// initializer reaches into a property path and is an Accesses edge instead.
func (st *walkState) emitValueReference(sc scope, valueNode *tree_sitter.Node) {
	var kind model.EdgeKind
	switch valueNode.Kind() {
	case "identifier":
		kind = model.EdgeUses
	case "member_expression", "selector_expression":
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
	st.result.Pending = append(st.result.Pending, &model.PendingEdge{
		SourceID: sc.id, Kind: model.EdgeCalls, ResolveTarget: callee, FromModuleQN: sc.qn,
	})
}

func functionName(node *tree_sitter.Node, source []byte) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return parser.NodeText(nameNode, source)
	}
	if parent := node.Parent(); parent != nil && parent.Kind() == "variable_declarator" {
		if nameNode := parent.ChildByFieldName("name"); nameNode != nil {
			return parser.NodeText(nameNode, source)
		}
	}
	return ""
}

func lineSpan(node *tree_sitter.Node) (int, int) {
	return int(node.StartPosition().Row) + 1, int(node.EndPosition().Row) + 1
}

func containsStr(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
