// Package lang holds the per-language tables that drive the table-driven
// tree-sitter front-end (internal/frontend/treesitter). Each supported
// language registers one LanguageSpec from an init() in its own file, one
// file per grammar.
package lang

// Language identifies one of the grammars this module understands.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Go         Language = "go"
	HTML       Language = "html"
	CSS        Language = "css"
)

// AllLanguages returns every language with a registered LanguageSpec.
func AllLanguages() []Language {
	return []Language{Python, JavaScript, TypeScript, TSX, Go, HTML, CSS}
}

// LanguageSpec maps a grammar's tree-sitter node-kind vocabulary onto the
// concepts the front-end needs: declarations, calls, imports, and the
// handful of enrichment node kinds (branching, decorators, env access) used
// while building entity properties.
type LanguageSpec struct {
	Language          Language
	FileExtensions    []string
	FunctionNodeTypes []string
	ClassNodeTypes    []string
	FieldNodeTypes    []string
	ModuleNodeTypes   []string
	CallNodeTypes     []string
	ImportNodeTypes   []string
	ImportFromTypes   []string
	PackageIndicators []string

	VariableNodeTypes   []string
	AssignmentNodeTypes []string
	BranchingNodeTypes  []string
	ThrowNodeTypes      []string
	DecoratorNodeTypes  []string

	EnvAccessFunctions      []string
	EnvAccessMemberPatterns []string
}

var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec under each of its file extensions.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec registered for a file extension
// (e.g. ".go"), or nil if none is registered.
func ForExtension(ext string) *LanguageSpec {
	return registry[ext]
}

// ForLanguage returns the LanguageSpec for a Language, or nil.
func ForLanguage(l Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == l {
			return spec
		}
	}
	return nil
}

// LanguageForExtension reports the Language registered for ext, if any.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}

// HasDeclarations reports whether the language's front-end can produce
// declaration entities (functions/classes) at all. HTML and CSS register a
// spec with no declaration node types and are handled by the static-asset
// front-end instead, which only ever emits a File entity per spec.
func HasDeclarations(spec *LanguageSpec) bool {
	return len(spec.FunctionNodeTypes) > 0 || len(spec.ClassNodeTypes) > 0
}
