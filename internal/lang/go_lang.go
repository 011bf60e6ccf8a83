package lang

func init() {
	Register(&LanguageSpec{
		Language:          Go,
		FileExtensions:    []string{".go"},
		FunctionNodeTypes: []string{"function_declaration", "method_declaration"},
		ClassNodeTypes:    []string{"type_spec"},
		FieldNodeTypes:    []string{"field_declaration"},
		ModuleNodeTypes:   []string{"source_file"},
		CallNodeTypes:     []string{"call_expression"},
		ImportNodeTypes:   []string{"import_declaration"},
		ImportFromTypes:   []string{"import_declaration"},

		VariableNodeTypes:   []string{"var_declaration", "const_declaration"},
		AssignmentNodeTypes: []string{"assignment_statement", "short_var_declaration"},
		BranchingNodeTypes:  []string{"if_statement", "for_statement", "expression_switch_statement", "select_statement", "type_switch_statement"},

		EnvAccessFunctions: []string{"os.Getenv", "os.LookupEnv"},
	})
}
