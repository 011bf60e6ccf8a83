package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/DeusData/codegraph/internal/model"
)

// UpsertNode inserts or replaces a node, keyed by its identity hash. Unlike
// the autoincrement scheme this replaces, the caller always already knows
// the row's ID — there is no LastInsertId recovery step.
func (s *Store) UpsertNode(n *Node) error {
	if !model.ValidEntityKind(n.Kind) {
		return fmt.Errorf("upsert node %s: invalid kind %q", n.ID, n.Kind)
	}
	_, err := s.q.Exec(`
		INSERT INTO nodes (id, kind, name, qualified_name, file_path, rel_path, start_line, end_line, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind, name=excluded.name, qualified_name=excluded.qualified_name,
			file_path=excluded.file_path, rel_path=excluded.rel_path,
			start_line=excluded.start_line, end_line=excluded.end_line, properties=excluded.properties`,
		n.ID, string(n.Kind), n.Name, n.QualifiedName, n.FilePath, n.RelPath, n.StartLine, n.EndLine, marshalProps(n.Properties))
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}
	return nil
}

// FindNodeByID finds a node by its identity hash.
func (s *Store) FindNodeByID(id string) (*Node, error) {
	row := s.q.QueryRow(`SELECT id, kind, name, qualified_name, file_path, rel_path, start_line, end_line, properties
		FROM nodes WHERE id=?`, id)
	return scanNode(row)
}

// FindNodeByQN finds a node by qualified name.
func (s *Store) FindNodeByQN(qualifiedName string) (*Node, error) {
	row := s.q.QueryRow(`SELECT id, kind, name, qualified_name, file_path, rel_path, start_line, end_line, properties
		FROM nodes WHERE qualified_name=?`, qualifiedName)
	return scanNode(row)
}

// FindNodesByName finds nodes by simple name.
func (s *Store) FindNodesByName(name string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT id, kind, name, qualified_name, file_path, rel_path, start_line, end_line, properties
		FROM nodes WHERE name=?`, name)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindNodesByKind finds all nodes of the given kind.
func (s *Store) FindNodesByKind(kind model.EntityKind) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT id, kind, name, qualified_name, file_path, rel_path, start_line, end_line, properties
		FROM nodes WHERE kind=?`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("find by kind: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindNodesByFile finds all nodes declared in a given file.
func (s *Store) FindNodesByFile(relPath string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT id, kind, name, qualified_name, file_path, rel_path, start_line, end_line, properties
		FROM nodes WHERE rel_path=?`, relPath)
	if err != nil {
		return nil, fmt.Errorf("find by file: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountNodes returns the number of nodes in the store.
func (s *Store) CountNodes() (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count)
	return count, err
}

// DeleteNodesByFile deletes all nodes declared in a given file. Cascades to
// their edges via ON DELETE CASCADE.
func (s *Store) DeleteNodesByFile(relPath string) error {
	_, err := s.q.Exec("DELETE FROM nodes WHERE rel_path=?", relPath)
	return err
}

// DeleteNodesByKind deletes all nodes of a given kind — used when a
// derived-node pass (e.g. community detection, if ever added) is re-run.
func (s *Store) DeleteNodesByKind(kind model.EntityKind) error {
	_, err := s.q.Exec("DELETE FROM nodes WHERE kind=?", string(kind))
	return err
}

// DeleteOrphanedExternals removes every External node with no incoming edge
// — a run that resolved a reference once can leave that symbol's External
// behind forever if every edge that ever pointed at it is later retracted
// (e.g. the one caller of a removed dependency is deleted). Returns the
// number of rows removed.
func (s *Store) DeleteOrphanedExternals() (int64, error) {
	res, err := s.q.Exec(`DELETE FROM nodes WHERE kind = ? AND id NOT IN (SELECT target_id FROM edges)`, string(model.KindExternal))
	if err != nil {
		return 0, fmt.Errorf("delete orphaned externals: %w", err)
	}
	return res.RowsAffected()
}

// FindNodesByIDs returns a map of nodeID → *Node for the given IDs.
func (s *Store) FindNodesByIDs(ids []string) (map[string]*Node, error) {
	if len(ids) == 0 {
		return map[string]*Node{}, nil
	}
	result := make(map[string]*Node, len(ids))
	const batchSize = 999 // stay within SQLite's default 999 bind variable limit

	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, len(chunk))
		for j, id := range chunk {
			placeholders[j] = "?"
			args[j] = id
		}

		query := fmt.Sprintf(
			"SELECT id, kind, name, qualified_name, file_path, rel_path, start_line, end_line, properties FROM nodes WHERE id IN (%s)",
			strings.Join(placeholders, ","))

		rows, err := s.q.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("find nodes by ids: %w", err)
		}
		nodes, err := scanNodes(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			result[n.ID] = n
		}
	}
	return result, nil
}

// FindNodesByFileOverlap returns declaration nodes whose line range overlaps
// [startLine, endLine] in the file matching fileSuffix.
func (s *Store) FindNodesByFileOverlap(fileSuffix string, startLine, endLine int) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT id, kind, name, qualified_name, file_path, rel_path, start_line, end_line, properties
		FROM nodes WHERE file_path LIKE '%' || ? AND start_line <= ? AND end_line >= ?
		AND kind NOT IN ('File', 'Module')`,
		fileSuffix, endLine, startLine)
	if err != nil {
		return nil, fmt.Errorf("find by file overlap: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// AllNodes returns every node in the store.
func (s *Store) AllNodes() ([]*Node, error) {
	rows, err := s.q.Query(`SELECT id, kind, name, qualified_name, file_path, rel_path, start_line, end_line, properties FROM nodes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*Node, error) {
	var n Node
	var kind, props string
	err := row.Scan(&n.ID, &kind, &n.Name, &n.QualifiedName, &n.FilePath, &n.RelPath, &n.StartLine, &n.EndLine, &props)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	n.Kind = model.EntityKind(kind)
	n.Properties = unmarshalProps(props)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*Node, error) {
	var result []*Node
	for rows.Next() {
		var n Node
		var kind, props string
		if err := rows.Scan(&n.ID, &kind, &n.Name, &n.QualifiedName, &n.FilePath, &n.RelPath, &n.StartLine, &n.EndLine, &props); err != nil {
			return nil, err
		}
		n.Kind = model.EntityKind(kind)
		n.Properties = unmarshalProps(props)
		result = append(result, &n)
	}
	return result, rows.Err()
}

// Formula-derived batch size: SQLite has a 999 bind variable limit.
const numNodeCols = 9
const nodesBatchSize = 999 / numNodeCols // = 111

// UpsertNodeBatch inserts or updates nodes in batched multi-row INSERTs. On
// a batch failure it falls back to row-by-row upserts so one bad row (e.g.
// an unmarshalable property map) doesn't sink its whole batch, and reports
// which IDs failed.
func (s *Store) UpsertNodeBatch(nodes []*Node) (failed []string, err error) {
	for i := 0; i < len(nodes); i += nodesBatchSize {
		end := i + nodesBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		batch := nodes[i:end]
		if chunkErr := s.upsertNodeChunk(batch); chunkErr != nil {
			for _, n := range batch {
				if rowErr := s.UpsertNode(n); rowErr != nil {
					failed = append(failed, n.ID)
				}
			}
		}
	}
	return failed, nil
}

func (s *Store) upsertNodeChunk(batch []*Node) error {
	for _, n := range batch {
		if !model.ValidEntityKind(n.Kind) {
			return fmt.Errorf("upsert node batch: invalid kind %q for %s", n.Kind, n.ID)
		}
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO nodes (id, kind, name, qualified_name, file_path, rel_path, start_line, end_line, properties) VALUES `)

	args := make([]any, 0, len(batch)*numNodeCols)
	for i, n := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?,?)")
		args = append(args, n.ID, string(n.Kind), n.Name, n.QualifiedName, n.FilePath, n.RelPath, n.StartLine, n.EndLine, marshalProps(n.Properties))
	}
	sb.WriteString(` ON CONFLICT(id) DO UPDATE SET
		kind=excluded.kind, name=excluded.name, qualified_name=excluded.qualified_name,
		file_path=excluded.file_path, rel_path=excluded.rel_path,
		start_line=excluded.start_line, end_line=excluded.end_line, properties=excluded.properties`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("upsert node batch: %w", err)
	}
	return nil
}
