// Package shared holds the small helpers every front-end needs regardless
// of language: type-name cleanup and the builtin-type denylist used to keep
// USES_TYPE-style references from drowning in "int"/"string"/"None" noise.
package shared

import "strings"

// CleanTypeName strips pointers, references, slices, and generic
// parameters to get a base type name worth registering as a reference.
func CleanTypeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "*")
	s = strings.TrimPrefix(s, "&")
	s = strings.TrimPrefix(s, "[]")
	s = strings.TrimPrefix(s, "...")
	if idx := strings.Index(s, "<"); idx > 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, "["); idx > 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

var builtinTypes = map[string]bool{
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true, "double": true,
	"string": true, "str": true, "bool": true, "boolean": true, "byte": true, "rune": true,
	"void": true, "None": true, "any": true, "interface": true, "object": true, "Object": true,
	"error": true, "number": true, "undefined": true, "null": true,
	"self": true, "Self": true, "cls": true, "type": true,
}

// IsBuiltinType reports whether name is a primitive that isn't worth
// tracking as a type reference.
func IsBuiltinType(name string) bool { return builtinTypes[name] }
