package lang

func init() {
	Register(&LanguageSpec{
		Language:          Python,
		FileExtensions:    []string{".py"},
		FunctionNodeTypes: []string{"function_definition"},
		ClassNodeTypes:    []string{"class_definition"},
		ModuleNodeTypes:   []string{"module"},
		CallNodeTypes:     []string{"call"},
		ImportNodeTypes:   []string{"import_statement"},
		ImportFromTypes:   []string{"import_from_statement"},
		PackageIndicators: []string{"__init__.py"},

		VariableNodeTypes:   []string{"assignment"},
		AssignmentNodeTypes: []string{"assignment", "augmented_assignment"},
		BranchingNodeTypes:  []string{"if_statement", "for_statement", "while_statement", "try_statement", "except_clause"},
		DecoratorNodeTypes:  []string{"decorator"},

		EnvAccessFunctions: []string{"os.getenv", "os.environ.get"},
	})
}
