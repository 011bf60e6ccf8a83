package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DeusData/codegraph/internal/model"
)

// DefaultBatchSize mirrors internal/config.DefaultBatchSize; duplicated here
// (rather than imported) to keep this package free of a config dependency.
const DefaultBatchSize = 1000

// Report summarizes one Apply call: counts of rows written, and any rows
// that failed even the row-by-row retry, with enough context to diagnose.
type Report struct {
	NodesWritten  int
	EdgesWritten  int
	FilesRemoved  int
	FailedNodeIDs []string
	FailedEdges   []FailedEdge
}

// FailedEdge names one edge InsertEdgeBatch's retry pass could not write.
type FailedEdge struct {
	SourceID string
	TargetID string
	Kind     model.EdgeKind
	Err      string
}

// Apply writes one model.Delta: removes nodes for retracted files (which
// cascades to their edges), then upserts entities and edges in batches of
// batchSize, retrying failed batches row by row.
func (s *Store) Apply(ctx context.Context, delta *model.Delta, batchSize int) (*Report, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	report := &Report{}

	for _, relPath := range delta.RemovedRelPaths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.DeleteNodesByFile(relPath); err != nil {
			return report, fmt.Errorf("apply: remove %s: %w", relPath, err)
		}
		report.FilesRemoved++
	}

	nodes := make([]*Node, 0, len(delta.Entities))
	for _, e := range delta.Entities {
		nodes = append(nodes, &Node{
			ID: e.ID, Kind: e.Kind, Name: e.Name, QualifiedName: e.QualifiedName,
			FilePath: e.FilePath, RelPath: e.RelPath, StartLine: e.StartLine, EndLine: e.EndLine,
			Properties: e.Properties,
		})
	}
	for i := 0; i < len(nodes); i += batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := min(i+batchSize, len(nodes))
		failed, err := s.UpsertNodeBatch(nodes[i:end])
		if err != nil {
			return report, fmt.Errorf("apply: upsert nodes: %w", err)
		}
		report.NodesWritten += (end - i) - len(failed)
		report.FailedNodeIDs = append(report.FailedNodeIDs, failed...)
		if len(failed) > 0 {
			slog.Warn("store.apply.node_failures", "count", len(failed))
		}
	}

	edges := make([]*Edge, 0, len(delta.Edges))
	for _, e := range delta.Edges {
		edges = append(edges, &Edge{SourceID: e.SourceID, TargetID: e.TargetID, Kind: e.Kind, Properties: e.Properties})
	}
	for i := 0; i < len(edges); i += batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := min(i+batchSize, len(edges))
		failed, err := s.InsertEdgeBatch(edges[i:end])
		if err != nil {
			return report, fmt.Errorf("apply: insert edges: %w", err)
		}
		report.EdgesWritten += (end - i) - len(failed)
		for _, e := range failed {
			report.FailedEdges = append(report.FailedEdges, FailedEdge{SourceID: e.SourceID, TargetID: e.TargetID, Kind: e.Kind, Err: "batch and row retry both failed"})
		}
		if len(failed) > 0 {
			slog.Warn("store.apply.edge_failures", "count", len(failed))
		}
	}

	slog.Info("store.apply", "nodes", report.NodesWritten, "edges", report.EdgesWritten, "files_removed", report.FilesRemoved)
	return report, nil
}
