// Package store persists a model.Delta into an embedded SQLite database and
// answers read queries over it. Entities are keyed by their identity hash
// (internal/identity) rather than an autoincrement surrogate, so re-applying
// an unchanged Delta is a no-op at the row level. A qualified-name-unique
// scheme can't provide that: qualified names collide across External
// references from different call sites, while identity hashes never do.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DeusData/codegraph/internal/model"
)

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection holding one project's graph.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

// Node is a graph node row, scanned back out of SQLite for query execution.
type Node struct {
	ID            string
	Kind          model.EntityKind
	Name          string
	QualifiedName string
	FilePath      string
	RelPath       string
	StartLine     int
	EndLine       int
	Properties    map[string]any
}

// Edge is a graph edge row.
type Edge struct {
	SourceID   string
	TargetID   string
	Kind       model.EdgeKind
	Properties map[string]any
}

// Open opens or creates the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db, dbPath: path}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory database, for tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	s := &Store{db: db, dbPath: ":memory:"}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// WithTransaction runs fn against a transaction-scoped Store. The receiver's
// q field is never mutated, so concurrent read-only callers are unaffected.
func (s *Store) WithTransaction(fn func(tx *Store) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying *sql.DB, for the cypher executor.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		root_path TEXT NOT NULL,
		indexed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS file_hashes (
		rel_path TEXT PRIMARY KEY,
		sha256 TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		qualified_name TEXT NOT NULL,
		file_path TEXT DEFAULT '',
		rel_path TEXT DEFAULT '',
		start_line INTEGER DEFAULT 0,
		end_line INTEGER DEFAULT 0,
		properties TEXT DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);
	CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
	CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(rel_path);
	CREATE INDEX IF NOT EXISTS idx_nodes_qn ON nodes(qualified_name);

	CREATE TABLE IF NOT EXISTS edges (
		source_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		target_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		properties TEXT DEFAULT '{}',
		PRIMARY KEY (source_id, target_id, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, kind);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id, kind);
	CREATE INDEX IF NOT EXISTS idx_edges_kind ON edges(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

func marshalProps(props map[string]any) string {
	if props == nil {
		return "{}"
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// UnmarshalProps deserializes JSON properties. Exported for the cypher executor.
func UnmarshalProps(data string) map[string]any {
	return unmarshalProps(data)
}

func unmarshalProps(data string) map[string]any {
	if data == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return map[string]any{}
	}
	return m
}

// Now returns the current time in ISO 8601 format.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
