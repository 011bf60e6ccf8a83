package cypher

import (
	"context"
	"testing"
	"time"

	"github.com/DeusData/codegraph/internal/model"
	"github.com/DeusData/codegraph/internal/store"
)

// --- Lexer tests ---

func TestLexBasicQuery(t *testing.T) {
	tokens, err := Lex(`MATCH (f:Function) WHERE f.name = "Hello" RETURN f.name`)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}

	expected := []TokenType{
		TokMatch, TokLParen, TokIdent, TokColon, TokIdent, TokRParen,
		TokWhere, TokIdent, TokDot, TokIdent, TokEQ, TokString,
		TokReturn, TokIdent, TokDot, TokIdent, TokEOF,
	}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}
	for i, tok := range tokens {
		if tok.Type != expected[i] {
			t.Errorf("token[%d]: expected type %d, got %d (%q)", i, expected[i], tok.Type, tok.Value)
		}
	}
}

func TestLexRegexOperator(t *testing.T) {
	tokens, err := Lex(`f.name =~ ".*Handler"`)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	// f, ., name, =~, ".*Handler"
	if tokens[3].Type != TokRegex {
		t.Errorf("expected TokRegex, got type %d (%q)", tokens[3].Type, tokens[3].Value)
	}
}

func TestLexVariableLengthPath(t *testing.T) {
	tokens, err := Lex(`[:CALLS*1..3]`)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	expected := []TokenType{
		TokLBracket, TokColon, TokIdent, TokStar, TokNumber, TokDotDot, TokNumber, TokRBracket, TokEOF,
	}
	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}
	for i, tok := range tokens {
		if tok.Type != expected[i] {
			t.Errorf("token[%d]: expected type %d, got %d (%q)", i, expected[i], tok.Type, tok.Value)
		}
	}
}

// --- Parser tests ---

func TestParseNodePattern(t *testing.T) {
	q, err := Parse(`MATCH (f:Function {name: "Hello"}) RETURN f`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Match == nil || q.Match.Pattern == nil {
		t.Fatal("expected match pattern")
	}
	elems := q.Match.Pattern.Elements
	if len(elems) != 1 {
		t.Fatalf("expected 1 element, got %d", len(elems))
	}
	node, ok := elems[0].(*NodePattern)
	if !ok {
		t.Fatalf("expected *NodePattern, got %T", elems[0])
	}
	if node.Variable != "f" {
		t.Errorf("expected variable 'f', got %q", node.Variable)
	}
	if node.Label != "Function" {
		t.Errorf("expected label 'Function', got %q", node.Label)
	}
	if node.Props["name"] != "Hello" {
		t.Errorf("expected prop name='Hello', got %q", node.Props["name"])
	}
}

func TestParseRelationship(t *testing.T) {
	q, err := Parse(`MATCH (f)-[:CALLS]->(g) RETURN f.name, g.name`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	elems := q.Match.Pattern.Elements
	if len(elems) != 3 {
		t.Fatalf("expected 3 elements (node-rel-node), got %d", len(elems))
	}
	rel, ok := elems[1].(*RelPattern)
	if !ok {
		t.Fatalf("expected *RelPattern, got %T", elems[1])
	}
	if len(rel.Types) != 1 || rel.Types[0] != "CALLS" {
		t.Errorf("expected CALLS type, got %v", rel.Types)
	}
	if rel.Direction != "outbound" {
		t.Errorf("expected outbound, got %q", rel.Direction)
	}
	if rel.MinHops != 1 || rel.MaxHops != 1 {
		t.Errorf("expected hops 1..1, got %d..%d", rel.MinHops, rel.MaxHops)
	}
}

func TestParseVariableLength(t *testing.T) {
	q, err := Parse(`MATCH (f)-[:CALLS*1..3]->(g) RETURN g.name`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rel, ok := q.Match.Pattern.Elements[1].(*RelPattern)
	if !ok {
		t.Fatalf("expected *RelPattern, got %T", q.Match.Pattern.Elements[1])
	}
	if rel.MinHops != 1 {
		t.Errorf("expected minHops=1, got %d", rel.MinHops)
	}
	if rel.MaxHops != 3 {
		t.Errorf("expected maxHops=3, got %d", rel.MaxHops)
	}
}

func TestParseWhereRegex(t *testing.T) {
	q, err := Parse(`MATCH (f:Function) WHERE f.name =~ ".*Handler" RETURN f.name`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Where == nil {
		t.Fatal("expected WHERE clause")
	}
	if len(q.Where.Conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(q.Where.Conditions))
	}
	c := q.Where.Conditions[0]
	if c.Operator != "=~" {
		t.Errorf("expected =~, got %q", c.Operator)
	}
	if c.Value != ".*Handler" {
		t.Errorf("expected '.*Handler', got %q", c.Value)
	}
}

func TestParseReturnWithCount(t *testing.T) {
	q, err := Parse(`MATCH (f)-[:CALLS]->(g) RETURN f.name, COUNT(g) AS cnt ORDER BY cnt DESC LIMIT 10`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Return == nil {
		t.Fatal("expected RETURN clause")
	}
	if len(q.Return.Items) != 2 {
		t.Fatalf("expected 2 return items, got %d", len(q.Return.Items))
	}

	if q.Return.Items[0].Variable != "f" || q.Return.Items[0].Property != "name" {
		t.Errorf("expected f.name, got %s.%s", q.Return.Items[0].Variable, q.Return.Items[0].Property)
	}

	if q.Return.Items[1].Func != "COUNT" {
		t.Errorf("expected COUNT, got %q", q.Return.Items[1].Func)
	}
	if q.Return.Items[1].Variable != "g" {
		t.Errorf("expected variable 'g', got %q", q.Return.Items[1].Variable)
	}
	if q.Return.Items[1].Alias != "cnt" {
		t.Errorf("expected alias 'cnt', got %q", q.Return.Items[1].Alias)
	}

	if q.Return.OrderBy != "cnt" {
		t.Errorf("expected ORDER BY cnt, got %q", q.Return.OrderBy)
	}
	if q.Return.OrderDir != "DESC" {
		t.Errorf("expected DESC, got %q", q.Return.OrderDir)
	}
	if q.Return.Limit != 10 {
		t.Errorf("expected LIMIT 10, got %d", q.Return.Limit)
	}
}

func TestParseBidirectional(t *testing.T) {
	q, err := Parse(`MATCH (f:Function)-[:CALLS]-(g) RETURN f.name, g.name`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rel, ok := q.Match.Pattern.Elements[1].(*RelPattern)
	if !ok {
		t.Fatalf("expected *RelPattern, got %T", q.Match.Pattern.Elements[1])
	}
	if rel.Direction != "any" {
		t.Errorf("expected 'any' direction, got %q", rel.Direction)
	}
}

func TestParseInbound(t *testing.T) {
	q, err := Parse(`MATCH (f:Function)<-[:CALLS]-(g) RETURN f.name`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rel, ok := q.Match.Pattern.Elements[1].(*RelPattern)
	if !ok {
		t.Fatalf("expected *RelPattern, got %T", q.Match.Pattern.Elements[1])
	}
	if rel.Direction != "inbound" {
		t.Errorf("expected inbound, got %q", rel.Direction)
	}
}

func TestParseMultipleRelTypes(t *testing.T) {
	q, err := Parse(`MATCH (f)-[:CALLS|REFERENCES]->(g) RETURN g.name`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rel, ok := q.Match.Pattern.Elements[1].(*RelPattern)
	if !ok {
		t.Fatalf("expected *RelPattern, got %T", q.Match.Pattern.Elements[1])
	}
	if len(rel.Types) != 2 {
		t.Fatalf("expected 2 types, got %d", len(rel.Types))
	}
	if rel.Types[0] != "CALLS" || rel.Types[1] != "REFERENCES" {
		t.Errorf("expected [CALLS, REFERENCES], got %v", rel.Types)
	}
}

func TestParseWhereStartsWith(t *testing.T) {
	q, err := Parse(`MATCH (f:Function) WHERE f.name STARTS WITH "Send" RETURN f`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c := q.Where.Conditions[0]
	if c.Operator != "STARTS WITH" {
		t.Errorf("expected 'STARTS WITH', got %q", c.Operator)
	}
	if c.Value != "Send" {
		t.Errorf("expected 'Send', got %q", c.Value)
	}
}

func TestParseWhereContains(t *testing.T) {
	q, err := Parse(`MATCH (f:Function) WHERE f.name CONTAINS "Handler" RETURN f`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c := q.Where.Conditions[0]
	if c.Operator != "CONTAINS" {
		t.Errorf("expected CONTAINS, got %q", c.Operator)
	}
}

func TestParseWhereNumericComparison(t *testing.T) {
	q, err := Parse(`MATCH (f:Function) WHERE f.start_line > 10 RETURN f`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c := q.Where.Conditions[0]
	if c.Operator != ">" {
		t.Errorf("expected '>', got %q", c.Operator)
	}
	if c.Value != "10" {
		t.Errorf("expected '10', got %q", c.Value)
	}
}

func TestParseWhereAnd(t *testing.T) {
	q, err := Parse(`MATCH (f) WHERE f.label = "Function" AND f.name = "Foo" RETURN f`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(q.Where.Conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(q.Where.Conditions))
	}
	if q.Where.Operator != "AND" {
		t.Errorf("expected AND, got %q", q.Where.Operator)
	}
}

func TestParseDistinct(t *testing.T) {
	q, err := Parse(`MATCH (f:Function) RETURN DISTINCT f.label`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !q.Return.Distinct {
		t.Error("expected DISTINCT to be true")
	}
}

// --- Integration tests ---

// setupTestStore builds a small call graph:
//
//	HandleOrder -> ValidateOrder -> SubmitOrder
//	HandleOrder -> LogError
//	main (Module) -[CONTAINS]-> HandleOrder
func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}

	mustUpsertNode(t, s, &store.Node{
		ID: "a", Kind: model.KindFunction, Name: "HandleOrder",
		QualifiedName: "main.HandleOrder", FilePath: "main.go", RelPath: "main.go",
		StartLine: 10, EndLine: 30,
		Properties: map[string]any{"signature": "func HandleOrder(w, r)"},
	})
	mustUpsertNode(t, s, &store.Node{
		ID: "b", Kind: model.KindFunction, Name: "ValidateOrder",
		QualifiedName: "service.ValidateOrder", FilePath: "service.go", RelPath: "service.go",
		StartLine: 5, EndLine: 20,
		Properties: map[string]any{"signature": "func ValidateOrder(o Order) error"},
	})
	mustUpsertNode(t, s, &store.Node{
		ID: "c", Kind: model.KindFunction, Name: "SubmitOrder",
		QualifiedName: "service.SubmitOrder", FilePath: "service.go", RelPath: "service.go",
		StartLine: 25, EndLine: 50,
		Properties: map[string]any{"signature": "func SubmitOrder(o Order) error"},
	})
	mustUpsertNode(t, s, &store.Node{
		ID: "d", Kind: model.KindModule, Name: "main",
		QualifiedName: "main", FilePath: "main.go", RelPath: "main.go",
	})
	mustUpsertNode(t, s, &store.Node{
		ID: "e", Kind: model.KindFunction, Name: "LogError",
		QualifiedName: "util.LogError", FilePath: "util.go", RelPath: "util.go",
		StartLine: 1, EndLine: 5,
	})

	mustInsertEdge(t, s, &store.Edge{SourceID: "a", TargetID: "b", Kind: model.EdgeCalls})
	mustInsertEdge(t, s, &store.Edge{SourceID: "b", TargetID: "c", Kind: model.EdgeCalls})
	mustInsertEdge(t, s, &store.Edge{SourceID: "a", TargetID: "e", Kind: model.EdgeCalls})
	containsKind, _ := model.ContainsEdgeKind(model.KindModule, model.KindFunction)
	mustInsertEdge(t, s, &store.Edge{SourceID: "d", TargetID: "a", Kind: containsKind})

	return s
}

func mustUpsertNode(t *testing.T, s *store.Store, n *store.Node) {
	t.Helper()
	if err := s.UpsertNode(n); err != nil {
		t.Fatalf("upsert node: %v", err)
	}
}

func mustInsertEdge(t *testing.T, s *store.Store, edge *store.Edge) {
	t.Helper()
	if err := s.InsertEdge(edge); err != nil {
		t.Fatalf("insert edge: %v", err)
	}
}

func TestExecuteSimpleMatch(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function) RETURN f.name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 4 {
		t.Errorf("expected 4 functions, got %d", len(result.Rows))
	}
}

func TestExecuteRelationshipQuery(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function)-[:CALLS]->(g:Function) RETURN f.name, g.name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	// HandleOrder -> ValidateOrder, HandleOrder -> LogError, ValidateOrder -> SubmitOrder
	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(result.Rows))
	}

	if len(result.Columns) != 2 {
		t.Errorf("expected 2 columns, got %d", len(result.Columns))
	}

	found := false
	for _, row := range result.Rows {
		if row["f.name"] == "HandleOrder" && row["g.name"] == "ValidateOrder" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected HandleOrder -> ValidateOrder in results")
	}
}

func TestExecuteWhereFilter(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function) WHERE f.name = "HandleOrder" RETURN f.name, f.file_path`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	if result.Rows[0]["f.name"] != "HandleOrder" {
		t.Errorf("expected HandleOrder, got %v", result.Rows[0]["f.name"])
	}
}

func TestExecuteWhereRegex(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function) WHERE f.name =~ ".*Order" RETURN f.name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// HandleOrder, ValidateOrder, SubmitOrder
	if len(result.Rows) != 3 {
		t.Errorf("expected 3 rows, got %d", len(result.Rows))
	}
}

func TestExecuteWhereStartsWith(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function) WHERE f.name STARTS WITH "Submit" RETURN f.name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	if result.Rows[0]["f.name"] != "SubmitOrder" {
		t.Errorf("expected SubmitOrder, got %v", result.Rows[0]["f.name"])
	}
}

func TestExecuteWhereContains(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function) WHERE f.name CONTAINS "Order" RETURN f.name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 3 {
		t.Errorf("expected 3 rows (HandleOrder, ValidateOrder, SubmitOrder), got %d", len(result.Rows))
	}
}

func TestExecuteWhereNumeric(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function) WHERE f.start_line > 10 RETURN f.name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// SubmitOrder (start_line=25)
	if len(result.Rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(result.Rows))
	}
}

func TestExecuteVariableLength(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	// HandleOrder calls ValidateOrder (hop 1), ValidateOrder calls SubmitOrder (hop 2)
	result, err := exec.Execute(`MATCH (f:Function {name: "HandleOrder"})-[:CALLS*1..2]->(g:Function) RETURN g.name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// Should include ValidateOrder (hop 1), LogError (hop 1), SubmitOrder (hop 2)
	if len(result.Rows) < 2 {
		t.Errorf("expected at least 2 rows for variable-length path, got %d", len(result.Rows))
	}
}

func TestExecuteWithLimit(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function) RETURN f.name LIMIT 2`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(result.Rows))
	}
}

func TestExecuteWithOrderBy(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function) RETURN f.name ORDER BY f.name ASC`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) < 2 {
		t.Fatalf("expected at least 2 rows, got %d", len(result.Rows))
	}
	firstName := result.Rows[0]["f.name"]
	if firstName != "HandleOrder" {
		t.Errorf("expected first row 'HandleOrder', got %v", firstName)
	}
}

func TestExecuteCountAggregation(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function)-[:CALLS]->(g:Function) RETURN f.name, COUNT(g) AS call_count ORDER BY call_count DESC`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) < 1 {
		t.Fatalf("expected at least 1 row, got %d", len(result.Rows))
	}
	// HandleOrder calls 2 functions (ValidateOrder, LogError)
	for _, row := range result.Rows {
		if row["f.name"] == "HandleOrder" {
			count, ok := row["call_count"].(int)
			if !ok {
				t.Errorf("expected int count, got %T", row["call_count"])
			} else if count != 2 {
				t.Errorf("expected call_count=2 for HandleOrder, got %d", count)
			}
		}
	}
}

func TestExecuteInboundRelationship(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	// Who calls ValidateOrder?
	result, err := exec.Execute(`MATCH (f:Function)<-[:CALLS]-(g:Function) WHERE f.name = "ValidateOrder" RETURN g.name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 caller, got %d", len(result.Rows))
	}
	if result.Rows[0]["g.name"] != "HandleOrder" {
		t.Errorf("expected HandleOrder, got %v", result.Rows[0]["g.name"])
	}
}

func TestExecuteDistinct(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function) RETURN DISTINCT f.label`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Errorf("expected 1 distinct label, got %d", len(result.Rows))
	}
	if result.Rows[0]["f.label"] != "Function" {
		t.Errorf("expected 'Function', got %v", result.Rows[0]["f.label"])
	}
}

func TestExecuteInlinePropertyFilter(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function {name: "SubmitOrder"}) RETURN f.name, f.qualified_name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	if result.Rows[0]["f.name"] != "SubmitOrder" {
		t.Errorf("expected SubmitOrder, got %v", result.Rows[0]["f.name"])
	}
}

func TestExecuteNoResults(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (f:Function) WHERE f.name = "NonExistent" RETURN f.name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 0 {
		t.Errorf("expected 0 rows, got %d", len(result.Rows))
	}
}

func TestParseError(t *testing.T) {
	_, err := Parse(`NOT A VALID QUERY`)
	if err == nil {
		t.Error("expected parse error for invalid query")
	}
}

// --- Edge property tests ---

// setupTestStoreWithReferences adds an ACCESSES edge carrying properties,
// mirroring how a frontend might annotate a field access with a confidence
// score or access kind.
func setupTestStoreWithReferences(t *testing.T) *store.Store {
	t.Helper()
	s := setupTestStore(t)

	mustInsertEdge(t, s, &store.Edge{
		SourceID: "a", TargetID: "c", Kind: model.EdgeAccesses,
		Properties: map[string]any{
			"access":     "read",
			"confidence": 0.85,
			"context":    "validation",
		},
	})
	return s
}

func TestExecuteEdgePropertyAccess(t *testing.T) {
	s := setupTestStoreWithReferences(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a:Function)-[r:ACCESSES]->(b:Function) RETURN a.name, b.name, r.access, r.confidence`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	row := result.Rows[0]
	if row["a.name"] != "HandleOrder" {
		t.Errorf("a.name = %v, want HandleOrder", row["a.name"])
	}
	if row["b.name"] != "SubmitOrder" {
		t.Errorf("b.name = %v, want SubmitOrder", row["b.name"])
	}
	if row["r.access"] != "read" {
		t.Errorf("r.access = %v, want read", row["r.access"])
	}
	conf, ok := row["r.confidence"].(float64)
	if !ok {
		t.Errorf("r.confidence type = %T, want float64", row["r.confidence"])
	} else if conf != 0.85 {
		t.Errorf("r.confidence = %v, want 0.85", conf)
	}
}

func TestExecuteEdgePropertyInWhere(t *testing.T) {
	s := setupTestStoreWithReferences(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a)-[r:ACCESSES]->(b) WHERE r.confidence > 0.8 RETURN a.name, b.name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}

	result2, err := exec.Execute(`MATCH (a)-[r:ACCESSES]->(b) WHERE r.confidence > 0.9 RETURN a.name`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result2.Rows) != 0 {
		t.Errorf("expected 0 rows for confidence > 0.9, got %d", len(result2.Rows))
	}
}

func TestExecuteEdgeType(t *testing.T) {
	s := setupTestStoreWithReferences(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a)-[r:ACCESSES]->(b) RETURN r.type`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	if result.Rows[0]["r.type"] != "ACCESSES" {
		t.Errorf("r.type = %v, want ACCESSES", result.Rows[0]["r.type"])
	}
}

// --- Comprehensive edge property filtering tests ---

// setupTestStoreMultiEdge creates a store with two ACCESSES edges from the
// same source, to test edge-property filtering across siblings.
func setupTestStoreMultiEdge(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}

	mustUpsertNode(t, s, &store.Node{
		ID: "src", Kind: model.KindFunction, Name: "SendOrder",
		QualifiedName: "caller.SendOrder", FilePath: "caller/client.go", RelPath: "caller/client.go",
	})
	mustUpsertNode(t, s, &store.Node{
		ID: "tgt", Kind: model.KindFunction, Name: "HandleOrder",
		QualifiedName: "handler.HandleOrder", FilePath: "handler/routes.go", RelPath: "handler/routes.go",
	})
	mustUpsertNode(t, s, &store.Node{
		ID: "tgt2", Kind: model.KindFunction, Name: "HandleHealth",
		QualifiedName: "handler.HandleHealth", FilePath: "handler/health.go", RelPath: "handler/health.go",
	})

	mustInsertEdge(t, s, &store.Edge{
		SourceID: "src", TargetID: "tgt", Kind: model.EdgeAccesses,
		Properties: map[string]any{
			"path":       "/api/orders",
			"confidence": 0.85,
			"method":     "POST",
		},
	})
	mustInsertEdge(t, s, &store.Edge{
		SourceID: "src", TargetID: "tgt2", Kind: model.EdgeAccesses,
		Properties: map[string]any{
			"path":       "/health",
			"confidence": 0.45,
		},
	})

	return s
}

func TestEdgePropertyFilterContains(t *testing.T) {
	s := setupTestStoreMultiEdge(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a)-[r:ACCESSES]->(b) WHERE r.path CONTAINS 'orders' RETURN a.name, b.name, r.path`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}

	row := result.Rows[0]
	if row["a.name"] != "SendOrder" {
		t.Errorf("a.name = %v, want SendOrder", row["a.name"])
	}
	if row["b.name"] != "HandleOrder" {
		t.Errorf("b.name = %v, want HandleOrder", row["b.name"])
	}
	if row["r.path"] != "/api/orders" {
		t.Errorf("r.path = %v, want /api/orders", row["r.path"])
	}
}

func TestEdgePropertyFilterNumericGTE(t *testing.T) {
	s := setupTestStoreMultiEdge(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a)-[r:ACCESSES]->(b) WHERE r.confidence >= 0.6 RETURN a.name, b.name, r.confidence LIMIT 20`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row (only high-confidence edge), got %d", len(result.Rows))
	}

	row := result.Rows[0]
	if row["b.name"] != "HandleOrder" {
		t.Errorf("b.name = %v, want HandleOrder (high confidence)", row["b.name"])
	}
}

func TestEdgePropertyReturnWithoutFilter(t *testing.T) {
	s := setupTestStoreMultiEdge(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a)-[r:ACCESSES]->(b) RETURN a.name, b.name, r.path, r.confidence LIMIT 20`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(result.Rows) < 2 {
		t.Fatalf("expected at least 2 rows, got %d", len(result.Rows))
	}

	foundOrders := false
	foundHealth := false
	for _, row := range result.Rows {
		path, _ := row["r.path"].(string)
		if path == "/api/orders" {
			foundOrders = true
		}
		if path == "/health" {
			foundHealth = true
		}
	}
	if !foundOrders {
		t.Error("missing row with path=/api/orders")
	}
	if !foundHealth {
		t.Error("missing row with path=/health")
	}
}

func TestEdgePropertyFilterEquals(t *testing.T) {
	s := setupTestStoreMultiEdge(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a)-[r:ACCESSES]->(b) WHERE r.method = 'POST' RETURN a.name, b.name`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	if result.Rows[0]["b.name"] != "HandleOrder" {
		t.Errorf("b.name = %v, want HandleOrder", result.Rows[0]["b.name"])
	}
}

func TestEdgePropertyFilterStartsWith(t *testing.T) {
	s := setupTestStoreMultiEdge(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a)-[r:ACCESSES]->(b) WHERE r.path STARTS WITH '/api' RETURN a.name, b.name, r.path`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row (only /api/orders starts with /api), got %d", len(result.Rows))
	}
	if result.Rows[0]["r.path"] != "/api/orders" {
		t.Errorf("r.path = %v, want /api/orders", result.Rows[0]["r.path"])
	}
}

func TestCombinedNodeAndEdgeFilter(t *testing.T) {
	s := setupTestStoreMultiEdge(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a:Function)-[r:ACCESSES]->(b:Function) WHERE a.name = 'SendOrder' AND r.confidence >= 0.6 RETURN b.name, r.path`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	if result.Rows[0]["b.name"] != "HandleOrder" {
		t.Errorf("b.name = %v, want HandleOrder", result.Rows[0]["b.name"])
	}
	if result.Rows[0]["r.path"] != "/api/orders" {
		t.Errorf("r.path = %v, want /api/orders", result.Rows[0]["r.path"])
	}
}

func TestEdgePropertyFilterNoMatch(t *testing.T) {
	s := setupTestStoreMultiEdge(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a)-[r:ACCESSES]->(b) WHERE r.method = 'DELETE' RETURN a.name`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 0 {
		t.Errorf("expected 0 rows, got %d", len(result.Rows))
	}
}

func TestEdgePropertyFilterNumericLT(t *testing.T) {
	s := setupTestStoreMultiEdge(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a)-[r:ACCESSES]->(b) WHERE r.confidence < 0.5 RETURN b.name, r.confidence`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	if result.Rows[0]["b.name"] != "HandleHealth" {
		t.Errorf("b.name = %v, want HandleHealth", result.Rows[0]["b.name"])
	}
}

func TestEdgePropertyFilterRegex(t *testing.T) {
	s := setupTestStoreMultiEdge(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a)-[r:ACCESSES]->(b) WHERE r.path =~ "/api/.*" RETURN b.name`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	if result.Rows[0]["b.name"] != "HandleOrder" {
		t.Errorf("b.name = %v, want HandleOrder", result.Rows[0]["b.name"])
	}
}

func TestEdgeBuiltinPropertyFilter(t *testing.T) {
	s := setupTestStoreMultiEdge(t)
	defer s.Close()

	exec := &Executor{Store: s}
	result, err := exec.Execute(`MATCH (a)-[r]->(b) WHERE r.type = 'ACCESSES' RETURN a.name, b.name LIMIT 20`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows (both ACCESSES edges), got %d", len(result.Rows))
	}
}

// --- Write-verb rejection / timeout tests ---

func TestExecuteRejectsCreate(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	_, err := exec.Execute(`CREATE (n:Function {name: "New"})`)
	if err == nil {
		t.Fatal("expected CREATE to be rejected")
	}
}

func TestExecuteRejectsDeleteMergeSetDropRemoveCall(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()
	exec := &Executor{Store: s}

	for _, q := range []string{
		`MATCH (n:Function) DELETE n`,
		`MERGE (n:Function {name: "X"})`,
		`MATCH (n:Function) SET n.name = "X"`,
		`DROP INDEX ON :Function(name)`,
		`MATCH (n:Function) REMOVE n.name`,
		`CALL db.labels()`,
	} {
		if _, err := exec.Execute(q); err == nil {
			t.Errorf("expected query %q to be rejected as a write clause", q)
		}
	}
}

func TestExecuteRejectsWriteVerbCaseInsensitively(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	_, err := exec.Execute(`create (n:Function)`)
	if err == nil {
		t.Fatal("expected lowercase create to be rejected")
	}
}

func TestExecuteAllowsOrdinaryMatchQuery(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	if _, err := exec.Execute(`MATCH (f:Function) RETURN f.name LIMIT 5`); err != nil {
		t.Fatalf("expected ordinary MATCH query to succeed: %v", err)
	}
}

func TestExecuteContextAppliesDefaultTimeout(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	start := time.Now()
	_, err := exec.ExecuteContext(context.Background(), `MATCH (f:Function) RETURN f.name`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if time.Since(start) >= defaultQueryTimeout {
		t.Fatal("query should complete well within the default timeout on a small fixture")
	}
}

func TestExecuteContextHonorsCallerDeadline(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	exec := &Executor{Store: s}
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	if _, err := exec.ExecuteContext(ctx, `MATCH (f:Function) RETURN f.name`); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
