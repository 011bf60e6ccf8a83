package store

import "fmt"

// SchemaInfo is the graph shape summary the `status` CLI command prints.
type SchemaInfo struct {
	NodeKinds            []KindCount `json:"node_kinds"`
	RelationshipKinds    []KindCount `json:"relationship_kinds"`
	RelationshipPatterns []string    `json:"relationship_patterns"`
	SampleFunctionNames  []string    `json:"sample_function_names"`
	SampleClassNames     []string    `json:"sample_class_names"`
	SampleQualifiedNames []string    `json:"sample_qualified_names"`
}

// KindCount is a node or edge kind with its row count.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// GetSchema returns graph schema statistics for the store.
func (s *Store) GetSchema() (*SchemaInfo, error) {
	info := &SchemaInfo{}

	rows, err := s.db.Query("SELECT kind, COUNT(*) as cnt FROM nodes GROUP BY kind ORDER BY cnt DESC")
	if err != nil {
		return nil, fmt.Errorf("schema node kinds: %w", err)
	}
	for rows.Next() {
		var kc KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			rows.Close()
			return nil, err
		}
		info.NodeKinds = append(info.NodeKinds, kc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows2, err := s.db.Query("SELECT kind, COUNT(*) as cnt FROM edges GROUP BY kind ORDER BY cnt DESC")
	if err != nil {
		return nil, fmt.Errorf("schema edge kinds: %w", err)
	}
	for rows2.Next() {
		var kc KindCount
		if err := rows2.Scan(&kc.Kind, &kc.Count); err != nil {
			rows2.Close()
			return nil, err
		}
		info.RelationshipKinds = append(info.RelationshipKinds, kc)
	}
	if err := rows2.Err(); err != nil {
		rows2.Close()
		return nil, err
	}
	rows2.Close()

	rows3, err := s.db.Query(`
		SELECT sn.kind, e.kind, tn.kind, COUNT(*) as cnt
		FROM edges e
		JOIN nodes sn ON e.source_id = sn.id
		JOIN nodes tn ON e.target_id = tn.id
		GROUP BY sn.kind, e.kind, tn.kind
		ORDER BY cnt DESC
		LIMIT 25`)
	if err != nil {
		return nil, fmt.Errorf("schema patterns: %w", err)
	}
	for rows3.Next() {
		var src, rel, tgt string
		var cnt int
		if err := rows3.Scan(&src, &rel, &tgt, &cnt); err != nil {
			rows3.Close()
			return nil, err
		}
		info.RelationshipPatterns = append(info.RelationshipPatterns, fmt.Sprintf("(:%s)-[:%s]->(:%s)  [%dx]", src, rel, tgt, cnt))
	}
	if err := rows3.Err(); err != nil {
		rows3.Close()
		return nil, err
	}
	rows3.Close()

	rows4, err := s.db.Query("SELECT name FROM nodes WHERE kind='Function' ORDER BY name LIMIT 30")
	if err != nil {
		return nil, fmt.Errorf("schema sample funcs: %w", err)
	}
	for rows4.Next() {
		var name string
		if err := rows4.Scan(&name); err != nil {
			rows4.Close()
			return nil, err
		}
		info.SampleFunctionNames = append(info.SampleFunctionNames, name)
	}
	rows4.Close()

	rows5, err := s.db.Query("SELECT name FROM nodes WHERE kind='Class' ORDER BY name LIMIT 20")
	if err != nil {
		return nil, fmt.Errorf("schema sample classes: %w", err)
	}
	for rows5.Next() {
		var name string
		if err := rows5.Scan(&name); err != nil {
			rows5.Close()
			return nil, err
		}
		info.SampleClassNames = append(info.SampleClassNames, name)
	}
	rows5.Close()

	rows6, err := s.db.Query("SELECT qualified_name FROM nodes LIMIT 5")
	if err != nil {
		return nil, fmt.Errorf("schema sample qns: %w", err)
	}
	for rows6.Next() {
		var qn string
		if err := rows6.Scan(&qn); err != nil {
			rows6.Close()
			return nil, err
		}
		info.SampleQualifiedNames = append(info.SampleQualifiedNames, qn)
	}
	rows6.Close()

	return info, nil
}
