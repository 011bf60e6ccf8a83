package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/DeusData/codegraph/internal/model"
)

// InsertEdge inserts an edge, deduping on (source, target, kind).
func (s *Store) InsertEdge(e *Edge) error {
	if !model.ValidEdgeKind(e.Kind) {
		return fmt.Errorf("insert edge: invalid kind %q", e.Kind)
	}
	_, err := s.q.Exec(`
		INSERT INTO edges (source_id, target_id, kind, properties)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, kind) DO UPDATE SET properties=excluded.properties`,
		e.SourceID, e.TargetID, string(e.Kind), marshalProps(e.Properties))
	if err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	return nil
}

// FindEdgesBySource finds all edges from a given source node.
func (s *Store) FindEdgesBySource(sourceID string) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT source_id, target_id, kind, properties FROM edges WHERE source_id=?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("find edges by source: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByTarget finds all edges to a given target node.
func (s *Store) FindEdgesByTarget(targetID string) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT source_id, target_id, kind, properties FROM edges WHERE target_id=?`, targetID)
	if err != nil {
		return nil, fmt.Errorf("find edges by target: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesBySourceAndKind finds edges from a source with a specific kind.
func (s *Store) FindEdgesBySourceAndKind(sourceID string, kind model.EdgeKind) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT source_id, target_id, kind, properties FROM edges WHERE source_id=? AND kind=?`, sourceID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("find edges by source+kind: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByKind returns all edges of a given kind.
func (s *Store) FindEdgesByKind(kind model.EdgeKind) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT source_id, target_id, kind, properties FROM edges WHERE kind=?`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("find edges by kind: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// CountEdges returns the number of edges in the store.
func (s *Store) CountEdges() (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM edges").Scan(&count)
	return count, err
}

// DeleteEdgesByKind deletes all edges of a given kind.
func (s *Store) DeleteEdgesByKind(kind model.EdgeKind) error {
	_, err := s.q.Exec("DELETE FROM edges WHERE kind=?", string(kind))
	return err
}

// DeleteEdgesBySourceFile deletes edges of a given kind whose source node
// belongs to a specific file. The incremental engine does not call it: it
// retracts a changed file's rows through Apply's RemovedRelPaths.
func (s *Store) DeleteEdgesBySourceFile(relPath string, kind model.EdgeKind) error {
	_, err := s.q.Exec(`
		DELETE FROM edges WHERE (source_id, target_id, kind) IN (
			SELECT e.source_id, e.target_id, e.kind FROM edges e
			JOIN nodes n ON e.source_id = n.id
			WHERE n.rel_path=? AND e.kind=?
		)`, relPath, string(kind))
	return err
}

// Formula-derived batch size: SQLite has a 999 bind variable limit.
const numEdgeCols = 4
const edgesBatchSize = 999 / numEdgeCols // = 249

// InsertEdgeBatch inserts edges in batched multi-row INSERTs, falling back
// to row-by-row on a batch failure and reporting which rows did not land.
func (s *Store) InsertEdgeBatch(edges []*Edge) (failed []*Edge, err error) {
	if len(edges) == 0 {
		return nil, nil
	}

	for i := 0; i < len(edges); i += edgesBatchSize {
		end := i + edgesBatchSize
		if end > len(edges) {
			end = len(edges)
		}
		batch := edges[i:end]
		if chunkErr := s.insertEdgeChunk(batch); chunkErr != nil {
			for _, e := range batch {
				if rowErr := s.InsertEdge(e); rowErr != nil {
					failed = append(failed, e)
				}
			}
		}
	}
	return failed, nil
}

func (s *Store) insertEdgeChunk(batch []*Edge) error {
	for _, e := range batch {
		if !model.ValidEdgeKind(e.Kind) {
			return fmt.Errorf("insert edge batch: invalid kind %q", e.Kind)
		}
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO edges (source_id, target_id, kind, properties) VALUES `)

	args := make([]any, 0, len(batch)*numEdgeCols)
	for i, e := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?)")
		args = append(args, e.SourceID, e.TargetID, string(e.Kind), marshalProps(e.Properties))
	}
	sb.WriteString(` ON CONFLICT(source_id, target_id, kind) DO UPDATE SET properties=excluded.properties`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert edge batch: %w", err)
	}
	return nil
}

// FindEdgesBySourceIDs returns all edges whose source is in the given set,
// optionally filtered by edge kinds. Groups results by source ID.
func (s *Store) FindEdgesBySourceIDs(sourceIDs []string, kinds []model.EdgeKind) (map[string][]*Edge, error) {
	if len(sourceIDs) == 0 {
		return map[string][]*Edge{}, nil
	}

	result := make(map[string][]*Edge, len(sourceIDs))
	const batchSize = 500

	for i := 0; i < len(sourceIDs); i += batchSize {
		end := i + batchSize
		if end > len(sourceIDs) {
			end = len(sourceIDs)
		}
		chunk := sourceIDs[i:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)+len(kinds))
		for j, id := range chunk {
			placeholders[j] = "?"
			args = append(args, id)
		}

		query := fmt.Sprintf(
			"SELECT source_id, target_id, kind, properties FROM edges WHERE source_id IN (%s)",
			strings.Join(placeholders, ","))

		if len(kinds) > 0 {
			kindPH := make([]string, len(kinds))
			for j, k := range kinds {
				kindPH[j] = "?"
				args = append(args, string(k))
			}
			query += " AND kind IN (" + strings.Join(kindPH, ",") + ")"
		}

		rows, err := s.q.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("find edges by source ids: %w", err)
		}
		edges, err := scanEdges(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			result[e.SourceID] = append(result[e.SourceID], e)
		}
	}
	return result, nil
}

// FindEdgesByTargetIDs returns all edges whose target is in the given set,
// optionally filtered by edge kinds. Groups results by target ID. Mirrors
// FindEdgesBySourceIDs for inbound-direction relationship matching.
func (s *Store) FindEdgesByTargetIDs(targetIDs []string, kinds []model.EdgeKind) (map[string][]*Edge, error) {
	if len(targetIDs) == 0 {
		return map[string][]*Edge{}, nil
	}

	result := make(map[string][]*Edge, len(targetIDs))
	const batchSize = 500

	for i := 0; i < len(targetIDs); i += batchSize {
		end := i + batchSize
		if end > len(targetIDs) {
			end = len(targetIDs)
		}
		chunk := targetIDs[i:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)+len(kinds))
		for j, id := range chunk {
			placeholders[j] = "?"
			args = append(args, id)
		}

		query := fmt.Sprintf(
			"SELECT source_id, target_id, kind, properties FROM edges WHERE target_id IN (%s)",
			strings.Join(placeholders, ","))

		if len(kinds) > 0 {
			kindPH := make([]string, len(kinds))
			for j, k := range kinds {
				kindPH[j] = "?"
				args = append(args, string(k))
			}
			query += " AND kind IN (" + strings.Join(kindPH, ",") + ")"
		}

		rows, err := s.q.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("find edges by target ids: %w", err)
		}
		edges, err := scanEdges(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			result[e.TargetID] = append(result[e.TargetID], e)
		}
	}
	return result, nil
}

func scanEdges(rows *sql.Rows) ([]*Edge, error) {
	var result []*Edge
	for rows.Next() {
		var e Edge
		var kind, props string
		if err := rows.Scan(&e.SourceID, &e.TargetID, &kind, &props); err != nil {
			return nil, err
		}
		e.Kind = model.EdgeKind(kind)
		e.Properties = unmarshalProps(props)
		result = append(result, &e)
	}
	return result, rows.Err()
}
