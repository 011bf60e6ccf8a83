// Package model defines the closed entity/edge vocabulary shared by every
// later stage of the extraction pipeline: front-ends emit Entities and
// PendingEdges, the registry and resolver turn pending edges into
// ResolvedEdges, and the store validates everything against this vocabulary
// before a row is written.
package model

import (
	"strings"
	"unicode"
)

// EntityKind is the closed set of graph node kinds this system produces.
type EntityKind string

const (
	KindFile   EntityKind = "File"
	KindModule EntityKind = "Module"

	// Declared-type kinds. Interface/TypeAlias/Enum are distinct from Class
	// even where a single grammar production (e.g. TS's ClassNodeTypes
	// table) matches all of them — the underlying node kind picks the Kind.
	KindClass     EntityKind = "Class"
	KindInterface EntityKind = "Interface"
	KindTypeAlias EntityKind = "TypeAlias"
	KindEnum      EntityKind = "Enum"

	// Callable-unit kinds. Method is a Function owned by a Class or
	// Interface; ArrowFunction and GeneratorFunction are call-site-distinct
	// variants of the same grammar slot, not subtypes of Method.
	KindFunction          EntityKind = "Function"
	KindMethod            EntityKind = "Method"
	KindArrowFunction     EntityKind = "ArrowFunction"
	KindGeneratorFunction EntityKind = "GeneratorFunction"

	// Variable is any named binding at file, module, class, or function
	// scope — a struct/class field and a module-level const are the same
	// Kind, distinguished only by their containment edge and QualifiedName.
	KindVariable EntityKind = "Variable"

	// Import is one named import statement/binding, distinct from the
	// EdgeImports relationship it seeds.
	KindImport EntityKind = "Import"

	// External is a placeholder for a symbol this run never parsed:
	// a library import, an unresolved base class, an unindexed call target.
	// Interned once per distinct canonical name (internal/identity.OfExternal).
	KindExternal EntityKind = "External"

	// Framework-rekinded Class variants: identity is preserved across
	// rekind, only Kind changes, so a Component is never also a Class row.
	KindComponent EntityKind = "Component"
	KindService   EntityKind = "Service"
	KindDirective EntityKind = "Directive"
	KindPipe      EntityKind = "Pipe"
	KindNgModule  EntityKind = "NgModule"
)

// IsFrameworkKind reports whether k is one of the decorator-rekinded kinds.
func IsFrameworkKind(k EntityKind) bool {
	switch k {
	case KindComponent, KindService, KindDirective, KindPipe, KindNgModule:
		return true
	}
	return false
}

// entityKinds is the closed enumeration the store validates upserts against.
var entityKinds = map[EntityKind]bool{
	KindFile: true, KindModule: true,
	KindClass: true, KindInterface: true, KindTypeAlias: true, KindEnum: true,
	KindFunction: true, KindMethod: true, KindArrowFunction: true, KindGeneratorFunction: true,
	KindVariable: true, KindImport: true, KindExternal: true,
	KindComponent: true, KindService: true, KindDirective: true, KindPipe: true, KindNgModule: true,
}

// ValidEntityKind reports whether k is part of the closed schema.
func ValidEntityKind(k EntityKind) bool { return entityKinds[k] }

// AllEntityKinds returns every entity kind in the closed schema, sorted for
// deterministic iteration (schema probing, migration, per-kind view setup).
func AllEntityKinds() []EntityKind {
	out := make([]EntityKind, 0, len(entityKinds))
	for k := range entityKinds {
		out = append(out, k)
	}
	sortEntityKinds(out)
	return out
}

func sortEntityKinds(ks []EntityKind) {
	for i := 1; i < len(ks); i++ {
		for j := i; j > 0 && ks[j-1] > ks[j]; j-- {
			ks[j-1], ks[j] = ks[j], ks[j-1]
		}
	}
}

// EdgeKind is the closed set of relationship kinds this system produces.
type EdgeKind string

// Non-containment relationship kinds. Containment kinds (FileContainsClass,
// ClassContainsFunction, and so on) are generated by buildContains rather
// than hand-enumerated, since the container x child product is large and
// mechanical.
const (
	EdgeCalls        EdgeKind = "CALLS"         // function/method -> function/method or External
	EdgeExtends      EdgeKind = "EXTENDS"       // class -> class or External
	EdgeImplements   EdgeKind = "IMPLEMENTS"    // class -> interface or External
	EdgeImports      EdgeKind = "IMPORTS"       // module -> file/module or External
	EdgeUses         EdgeKind = "USES"          // function -> variable/function or External
	EdgeAccesses     EdgeKind = "ACCESSES"      // function -> property path or External
	EdgeDecorates    EdgeKind = "DECORATES"     // External (the decorator) -> class
	EdgeExports      EdgeKind = "EXPORTS"       // module -> declaration it names as a named export
	EdgeUsesTemplate EdgeKind = "USES_TEMPLATE" // Component -> File (html)
	EdgeUsesStyles   EdgeKind = "USES_STYLES"   // Component -> File (css)
)

// containerPair keys the generated containment table: a container kind and
// the (already-normalized) child kind it contains.
type containerPair [2]EntityKind

// fileModuleChildren is the X in FileContainsX/ModuleContainsX. Module only
// ever appears under File — a module cannot contain another module.
var fileModuleChildren = []EntityKind{
	KindModule, KindClass, KindInterface, KindTypeAlias, KindEnum,
	KindFunction, KindArrowFunction, KindGeneratorFunction,
	KindVariable, KindImport,
	KindComponent, KindService, KindDirective, KindPipe, KindNgModule,
}

// classFunctionChildren is the X in ClassContainsX/FunctionContainsX: nested
// scoping only tracks functions and variables at this level of granularity.
var classFunctionChildren = []EntityKind{KindFunction, KindVariable}

// containableKind normalizes a child kind to the vocabulary a given
// container uses for it: Class and Function containment name every
// callable child "Function" (ClassContainsFunction), while File and Module
// containment keep ArrowFunction/GeneratorFunction's exact kind
// (FileContainsArrowFunction). File and Module have no Method slot, so a
// Method directly under a File/Module (a Go func with a receiver) collapses
// to Function there as well.
func containableKind(container, child EntityKind) EntityKind {
	switch container {
	case KindClass, KindFunction:
		switch child {
		case KindMethod, KindArrowFunction, KindGeneratorFunction:
			return KindFunction
		}
	case KindFile, KindModule:
		if child == KindMethod {
			return KindFunction
		}
	}
	return child
}

// screaming renders a PascalCase kind name as SCREAMING_SNAKE_CASE, e.g.
// ArrowFunction -> ARROW_FUNCTION, NgModule -> NG_MODULE.
func screaming(k EntityKind) string {
	var sb strings.Builder
	for i, r := range string(k) {
		if i > 0 && unicode.IsUpper(r) {
			sb.WriteByte('_')
		}
		sb.WriteRune(unicode.ToUpper(r))
	}
	return sb.String()
}

// buildContains enumerates the closed containment-edge vocabulary: every
// FileContainsX/ModuleContainsX pair plus the narrower ClassContainsX/
// FunctionContainsX pairs for nested scoping.
func buildContains() map[containerPair]EdgeKind {
	m := make(map[containerPair]EdgeKind, len(fileModuleChildren)*2+len(classFunctionChildren)*2)
	for _, child := range fileModuleChildren {
		m[containerPair{KindFile, child}] = EdgeKind("FILE_CONTAINS_" + screaming(child))
		if child == KindModule {
			continue // a Module can't contain another Module
		}
		m[containerPair{KindModule, child}] = EdgeKind("MODULE_CONTAINS_" + screaming(child))
	}
	for _, child := range classFunctionChildren {
		m[containerPair{KindClass, child}] = EdgeKind("CLASS_CONTAINS_" + screaming(child))
		m[containerPair{KindFunction, child}] = EdgeKind("FUNCTION_CONTAINS_" + screaming(child))
	}
	return m
}

var containsEdges = buildContains()

// ContainsEdgeKind returns the containment edge kind for a container/child
// entity pair, e.g. ContainsEdgeKind(KindFile, KindClass) ->
// FILE_CONTAINS_CLASS. The second return is false for a pair the closed
// vocabulary doesn't define (e.g. a Variable containing anything).
func ContainsEdgeKind(container, child EntityKind) (EdgeKind, bool) {
	k, ok := containsEdges[containerPair{container, containableKind(container, child)}]
	return k, ok
}

// edgeKinds is the closed enumeration the store validates inserts against:
// the hand-enumerated non-containment kinds plus every generated
// containment kind.
var edgeKinds = buildEdgeKinds()

func buildEdgeKinds() map[EdgeKind]bool {
	m := map[EdgeKind]bool{
		EdgeCalls: true, EdgeExtends: true, EdgeImplements: true, EdgeImports: true,
		EdgeUses: true, EdgeAccesses: true, EdgeDecorates: true, EdgeExports: true,
		EdgeUsesTemplate: true, EdgeUsesStyles: true,
	}
	for _, k := range containsEdges {
		m[k] = true
	}
	return m
}

// ValidEdgeKind reports whether k is part of the closed schema.
func ValidEdgeKind(k EdgeKind) bool { return edgeKinds[k] }

// AllEdgeKinds returns every edge kind in the closed schema (hand-enumerated
// plus generated containment kinds), sorted for deterministic iteration.
func AllEdgeKinds() []EdgeKind {
	out := make([]EdgeKind, 0, len(edgeKinds))
	for k := range edgeKinds {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Entity is one node in the property graph, pre-identity-assignment.
type Entity struct {
	ID            string // filled by internal/identity before storage
	Kind          EntityKind
	Name          string
	QualifiedName string
	FilePath      string // absolute
	RelPath       string // project-relative, empty for External
	StartLine     int
	EndLine       int
	Properties    map[string]any
}

// PendingEdge is an unresolved textual reference discovered during pass 1.
// ResolveTarget is the raw name/specifier to look up in the symbol registry;
// SourceID is already a concrete identity hash (the declaring entity always
// exists by the time its own pending edges are emitted).
type PendingEdge struct {
	SourceID      string
	Kind          EdgeKind
	ResolveTarget string
	// FromModuleQN scopes the lookup (import map, sibling files) during pass 2.
	FromModuleQN string
	Properties   map[string]any
}

// ResolvedEdge is a pending edge after pass 2 resolution. TargetID always
// refers to a real entity — an unresolved ResolveTarget becomes an External
// entity rather than a dangling reference (spec invariant: no dangling edges).
type ResolvedEdge struct {
	SourceID   string
	TargetID   string
	Kind       EdgeKind
	Properties map[string]any
}

// Delta is the unit of work the store adapter applies: entities and edges
// discovered or reconciled by one extractor/incremental run, plus the set of
// files whose prior contributions must be retracted first.
type Delta struct {
	Entities        []*Entity
	Edges           []*ResolvedEdge
	RemovedRelPaths []string
}
