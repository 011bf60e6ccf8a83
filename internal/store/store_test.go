package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeusData/codegraph/internal/model"
)

func TestOpenMemory(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestNodeCRUD(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	n := &Node{
		ID:            "n1",
		Kind:          model.KindFunction,
		Name:          "Foo",
		QualifiedName: "root.main.Foo",
		FilePath:      "/src/main.go",
		RelPath:       "main.go",
		StartLine:     10,
		EndLine:       20,
		Properties:    map[string]any{"signature": "func Foo(x int) error"},
	}
	require.NoError(t, s.UpsertNode(n))

	found, err := s.FindNodeByID("n1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "Foo", found.Name)
	require.Equal(t, "func Foo(x int) error", found.Properties["signature"])

	byQN, err := s.FindNodeByQN("root.main.Foo")
	require.NoError(t, err)
	require.NotNil(t, byQN)
	require.Equal(t, "n1", byQN.ID)

	byName, err := s.FindNodesByName("Foo")
	require.NoError(t, err)
	require.Len(t, byName, 1)

	byKind, err := s.FindNodesByKind(model.KindFunction)
	require.NoError(t, err)
	require.Len(t, byKind, 1)

	byFile, err := s.FindNodesByFile("main.go")
	require.NoError(t, err)
	require.Len(t, byFile, 1)

	count, err := s.CountNodes()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestUpsertNodeReplacesOnConflict(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	n := &Node{ID: "n1", Kind: model.KindFunction, Name: "Foo", QualifiedName: "root.Foo"}
	require.NoError(t, s.UpsertNode(n))

	n.Name = "Bar"
	n.QualifiedName = "root.Bar"
	require.NoError(t, s.UpsertNode(n))

	count, err := s.CountNodes()
	require.NoError(t, err)
	require.Equal(t, 1, count, "upsert should replace, not duplicate, the row")

	found, err := s.FindNodeByID("n1")
	require.NoError(t, err)
	require.Equal(t, "Bar", found.Name)
}

func TestUpsertNodeRejectsUnknownKind(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	err = s.UpsertNode(&Node{ID: "n1", Kind: model.EntityKind("Bogus"), Name: "Foo", QualifiedName: "root.Foo"})
	require.Error(t, err)
}

func TestFindNodeByIDMissingReturnsNil(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	found, err := s.FindNodeByID("nope")
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestDeleteNodesByFileCascadesEdges(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertNode(&Node{ID: "a", Kind: model.KindFunction, Name: "A", QualifiedName: "root.A", RelPath: "a.go"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "b", Kind: model.KindFunction, Name: "B", QualifiedName: "root.B", RelPath: "b.go"}))
	require.NoError(t, s.InsertEdge(&Edge{SourceID: "a", TargetID: "b", Kind: model.EdgeCalls}))

	require.NoError(t, s.DeleteNodesByFile("a.go"))

	count, err := s.CountNodes()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	edgeCount, err := s.CountEdges()
	require.NoError(t, err)
	require.Equal(t, 0, edgeCount, "edges referencing the deleted node should cascade")
}

func TestFindNodesByIDsBatches(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		ids = append(ids, id)
		require.NoError(t, s.UpsertNode(&Node{ID: id, Kind: model.KindFunction, Name: id, QualifiedName: "root." + id}))
	}

	found, err := s.FindNodesByIDs(ids)
	require.NoError(t, err)
	require.Len(t, found, 5)

	found, err = s.FindNodesByIDs(nil)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestUpsertNodeBatchFallsBackRowByRow(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	nodes := []*Node{
		{ID: "good1", Kind: model.KindFunction, Name: "Good1", QualifiedName: "root.Good1"},
		{ID: "bad", Kind: model.EntityKind("NotAKind"), Name: "Bad", QualifiedName: "root.Bad"},
		{ID: "good2", Kind: model.KindFunction, Name: "Good2", QualifiedName: "root.Good2"},
	}
	failed, err := s.UpsertNodeBatch(nodes)
	require.NoError(t, err)
	require.Equal(t, []string{"bad"}, failed)

	count, err := s.CountNodes()
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestEdgeCRUD(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertNode(&Node{ID: "a", Kind: model.KindFunction, Name: "A", QualifiedName: "root.A"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "b", Kind: model.KindFunction, Name: "B", QualifiedName: "root.B"}))
	require.NoError(t, s.InsertEdge(&Edge{SourceID: "a", TargetID: "b", Kind: model.EdgeCalls, Properties: map[string]any{"line": 5}}))

	bySource, err := s.FindEdgesBySource("a")
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	require.EqualValues(t, 5, bySource[0].Properties["line"])

	byTarget, err := s.FindEdgesByTarget("b")
	require.NoError(t, err)
	require.Len(t, byTarget, 1)

	byKind, err := s.FindEdgesByKind(model.EdgeCalls)
	require.NoError(t, err)
	require.Len(t, byKind, 1)

	bySourceAndKind, err := s.FindEdgesBySourceAndKind("a", model.EdgeCalls)
	require.NoError(t, err)
	require.Len(t, bySourceAndKind, 1)

	count, err := s.CountEdges()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestInsertEdgeDedupesOnConflict(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertNode(&Node{ID: "a", Kind: model.KindFunction, Name: "A", QualifiedName: "root.A"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "b", Kind: model.KindFunction, Name: "B", QualifiedName: "root.B"}))

	require.NoError(t, s.InsertEdge(&Edge{SourceID: "a", TargetID: "b", Kind: model.EdgeCalls, Properties: map[string]any{"count": 1}}))
	require.NoError(t, s.InsertEdge(&Edge{SourceID: "a", TargetID: "b", Kind: model.EdgeCalls, Properties: map[string]any{"count": 2}}))

	count, err := s.CountEdges()
	require.NoError(t, err)
	require.Equal(t, 1, count, "same (source,target,kind) should upsert, not duplicate")

	edges, err := s.FindEdgesBySource("a")
	require.NoError(t, err)
	require.EqualValues(t, 2, edges[0].Properties["count"])
}

func TestFindEdgesBySourceIDsFiltersByKind(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertNode(&Node{ID: "a", Kind: model.KindFunction, Name: "A", QualifiedName: "root.A"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "b", Kind: model.KindFunction, Name: "B", QualifiedName: "root.B"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "c", Kind: model.KindFunction, Name: "C", QualifiedName: "root.C"}))
	require.NoError(t, s.InsertEdge(&Edge{SourceID: "a", TargetID: "b", Kind: model.EdgeCalls}))
	require.NoError(t, s.InsertEdge(&Edge{SourceID: "a", TargetID: "c", Kind: model.EdgeUses}))

	byID, err := s.FindEdgesBySourceIDs([]string{"a"}, []model.EdgeKind{model.EdgeCalls})
	require.NoError(t, err)
	require.Len(t, byID["a"], 1)
	require.Equal(t, model.EdgeCalls, byID["a"][0].Kind)

	all, err := s.FindEdgesBySourceIDs([]string{"a"}, nil)
	require.NoError(t, err)
	require.Len(t, all["a"], 2)
}

func TestFindEdgesByTargetIDs(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertNode(&Node{ID: "a", Kind: model.KindFunction, Name: "A", QualifiedName: "root.A"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "b", Kind: model.KindFunction, Name: "B", QualifiedName: "root.B"}))
	require.NoError(t, s.InsertEdge(&Edge{SourceID: "a", TargetID: "b", Kind: model.EdgeCalls}))

	byTarget, err := s.FindEdgesByTargetIDs([]string{"b"}, nil)
	require.NoError(t, err)
	require.Len(t, byTarget["b"], 1)
	require.Equal(t, "a", byTarget["b"][0].SourceID)
}

func TestApplyWritesDeltaAndRetractsRemovedFiles(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertNode(&Node{ID: "stale", Kind: model.KindFunction, Name: "Stale", QualifiedName: "root.Stale", RelPath: "old.go"}))

	delta := &model.Delta{
		Entities: []*model.Entity{
			{ID: "a", Kind: model.KindFunction, Name: "A", QualifiedName: "root.A", RelPath: "a.go"},
			{ID: "b", Kind: model.KindFunction, Name: "B", QualifiedName: "root.B", RelPath: "a.go"},
		},
		Edges: []*model.ResolvedEdge{
			{SourceID: "a", TargetID: "b", Kind: model.EdgeCalls},
		},
		RemovedRelPaths: []string{"old.go"},
	}

	report, err := s.Apply(context.Background(), delta, 0)
	require.NoError(t, err)
	require.Equal(t, 2, report.NodesWritten)
	require.Equal(t, 1, report.EdgesWritten)
	require.Equal(t, 1, report.FilesRemoved)

	count, err := s.CountNodes()
	require.NoError(t, err)
	require.Equal(t, 2, count, "stale node should have been retracted")
}

func TestMetaRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetMeta()
	require.Error(t, err, "no meta row yet")

	require.NoError(t, s.SetMeta("/src/root"))
	meta, err := s.GetMeta()
	require.NoError(t, err)
	require.Equal(t, "/src/root", meta.RootPath)
	require.NotEmpty(t, meta.IndexedAt)

	require.NoError(t, s.SetMeta("/src/other"))
	meta, err = s.GetMeta()
	require.NoError(t, err)
	require.Equal(t, "/src/other", meta.RootPath, "SetMeta replaces the single row rather than appending")
}

func TestFileHashRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertFileHash("a.go", "hash-a"))
	require.NoError(t, s.UpsertFileHashBatch(map[string]string{"b.go": "hash-b", "c.go": "hash-c"}))

	hashes, err := s.GetFileHashes()
	require.NoError(t, err)
	require.Len(t, hashes, 3)
	require.Equal(t, "hash-a", hashes["a.go"])

	require.NoError(t, s.DeleteFileHash("a.go"))
	hashes, err = s.GetFileHashes()
	require.NoError(t, err)
	require.Len(t, hashes, 2)

	require.NoError(t, s.DeleteAllFileHashes())
	hashes, err = s.GetFileHashes()
	require.NoError(t, err)
	require.Empty(t, hashes)
}

func TestReset(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertNode(&Node{ID: "a", Kind: model.KindFunction, Name: "A", QualifiedName: "root.A"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "b", Kind: model.KindFunction, Name: "B", QualifiedName: "root.B"}))
	require.NoError(t, s.InsertEdge(&Edge{SourceID: "a", TargetID: "b", Kind: model.EdgeCalls}))
	require.NoError(t, s.UpsertFileHash("a.go", "hash-a"))
	require.NoError(t, s.SetMeta("/src/root"))

	require.NoError(t, s.Reset())

	nodeCount, err := s.CountNodes()
	require.NoError(t, err)
	require.Zero(t, nodeCount)

	edgeCount, err := s.CountEdges()
	require.NoError(t, err)
	require.Zero(t, edgeCount)

	hashes, err := s.GetFileHashes()
	require.NoError(t, err)
	require.Empty(t, hashes)

	_, err = s.GetMeta()
	require.Error(t, err)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	err = s.WithTransaction(func(tx *Store) error {
		require.NoError(t, tx.UpsertNode(&Node{ID: "a", Kind: model.KindFunction, Name: "A", QualifiedName: "root.A"}))
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	count, err := s.CountNodes()
	require.NoError(t, err)
	require.Zero(t, count, "rollback should undo the upsert")
}

func TestBFSOutboundTraversal(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertNode(&Node{ID: "a", Kind: model.KindFunction, Name: "A", QualifiedName: "root.A"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "b", Kind: model.KindFunction, Name: "B", QualifiedName: "root.B"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "c", Kind: model.KindFunction, Name: "C", QualifiedName: "root.C"}))
	require.NoError(t, s.InsertEdge(&Edge{SourceID: "a", TargetID: "b", Kind: model.EdgeCalls}))
	require.NoError(t, s.InsertEdge(&Edge{SourceID: "b", TargetID: "c", Kind: model.EdgeCalls}))

	result, err := s.BFS("a", "outbound", []model.EdgeKind{model.EdgeCalls}, 2, 10)
	require.NoError(t, err)
	require.NotNil(t, result.Root)
	require.Equal(t, "a", result.Root.ID)
	require.Len(t, result.Visited, 2)
	require.Equal(t, "b", result.Visited[0].Node.ID)
	require.Equal(t, 1, result.Visited[0].Hop)
	require.Equal(t, "c", result.Visited[1].Node.ID)
	require.Equal(t, 2, result.Visited[1].Hop)
}

func TestBFSRespectsMaxResults(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertNode(&Node{ID: "root", Kind: model.KindFunction, Name: "Root", QualifiedName: "root.Root"}))
	for _, id := range []string{"x", "y", "z"} {
		require.NoError(t, s.UpsertNode(&Node{ID: id, Kind: model.KindFunction, Name: id, QualifiedName: "root." + id}))
		require.NoError(t, s.InsertEdge(&Edge{SourceID: "root", TargetID: id, Kind: model.EdgeCalls}))
	}

	result, err := s.BFS("root", "outbound", nil, 1, 2)
	require.NoError(t, err)
	require.Len(t, result.Visited, 2)
}

func TestBFSInboundDirection(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertNode(&Node{ID: "a", Kind: model.KindFunction, Name: "A", QualifiedName: "root.A"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "b", Kind: model.KindFunction, Name: "B", QualifiedName: "root.B"}))
	require.NoError(t, s.InsertEdge(&Edge{SourceID: "a", TargetID: "b", Kind: model.EdgeCalls}))

	result, err := s.BFS("b", "inbound", nil, 1, 10)
	require.NoError(t, err)
	require.Len(t, result.Visited, 1)
	require.Equal(t, "a", result.Visited[0].Node.ID)
}

func TestBFSUnknownRootReturnsEmpty(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	result, err := s.BFS("nope", "outbound", nil, 3, 10)
	require.NoError(t, err)
	require.Nil(t, result.Root)
	require.Empty(t, result.Visited)
}

func TestGetSchema(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertNode(&Node{ID: "f1", Kind: model.KindFunction, Name: "Handle", QualifiedName: "root.Handle"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "f2", Kind: model.KindFunction, Name: "Validate", QualifiedName: "root.Validate"}))
	require.NoError(t, s.UpsertNode(&Node{ID: "c1", Kind: model.KindClass, Name: "Order", QualifiedName: "root.Order"}))
	require.NoError(t, s.InsertEdge(&Edge{SourceID: "f1", TargetID: "f2", Kind: model.EdgeCalls}))

	info, err := s.GetSchema()
	require.NoError(t, err)
	require.Len(t, info.NodeKinds, 2)
	require.Len(t, info.RelationshipKinds, 1)
	require.Equal(t, "CALLS", info.RelationshipKinds[0].Kind)
	require.Equal(t, 1, info.RelationshipKinds[0].Count)
	require.Contains(t, info.RelationshipPatterns, "(:Function)-[:CALLS]->(:Function)  [1x]")
	require.ElementsMatch(t, []string{"Handle", "Validate"}, info.SampleFunctionNames)
	require.Equal(t, []string{"Order"}, info.SampleClassNames)
}
