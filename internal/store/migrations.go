package store

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/DeusData/codegraph/internal/model"
)

// currentSchemaVersion gates the steps runMigrations applies: bump it
// whenever a new step is appended below, and a store opened against an
// older database catches up to every step newer than the version already
// recorded in schema_migrations.
const currentSchemaVersion = 1

// nodeColumns/edgeColumns are the columns this version of the binary
// expects nodes/edges to carry. migrateColumns probes the live table via
// PRAGMA table_info and ALTER TABLE ADD COLUMNs whatever's missing, rather
// than assuming a database created by an older binary already has it.
var nodeColumns = map[string]string{
	"kind": "TEXT NOT NULL DEFAULT ''", "name": "TEXT NOT NULL DEFAULT ''",
	"qualified_name": "TEXT NOT NULL DEFAULT ''", "file_path": "TEXT DEFAULT ''", "rel_path": "TEXT DEFAULT ''",
	"start_line": "INTEGER DEFAULT 0", "end_line": "INTEGER DEFAULT 0", "properties": "TEXT DEFAULT '{}'",
}

var edgeColumns = map[string]string{
	"kind": "TEXT NOT NULL DEFAULT ''", "properties": "TEXT DEFAULT '{}'",
}

// runMigrations probes the schema this binary expects against what's
// actually in the database and creates whatever is missing: a column
// nodes/edges should have but an older version of this store never wrote,
// and one SQL view per closed entity/edge kind so each kind is
// independently queryable the way a one-table-per-kind layout would be,
// without the migration risk of physically partitioning nodes/edges by
// kind.
func (s *Store) runMigrations() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	version, err := s.schemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	if err := s.migrateColumns("nodes", nodeColumns); err != nil {
		return err
	}
	if err := s.migrateColumns("edges", edgeColumns); err != nil {
		return err
	}
	if err := s.createKindViews(); err != nil {
		return err
	}

	if _, err := s.db.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		currentSchemaVersion, Now()); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func (s *Store) schemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	return version, err
}

// migrateColumns adds every column in want that table doesn't already have.
// PRAGMA table_info is the portable way SQLite exposes a table's live
// column set; ALTER TABLE ADD COLUMN is safe to run unconditionally once a
// column is confirmed missing, since SQLite has no "ADD COLUMN IF NOT
// EXISTS" and re-adding an existing column is an error, not a no-op.
func (s *Store) migrateColumns(table string, want map[string]string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("probe %s columns: %w", table, err)
	}
	existing := map[string]bool{}
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt any
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("scan %s column info: %w", table, err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for name, ddl := range want {
		if existing[name] {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, ddl)); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, name, err)
		}
	}
	return nil
}

// createKindViews gives every closed entity/edge kind its own queryable
// relation: a view scoped to that kind's rows in the shared nodes/edges
// tables, named after the kind in snake_case (entity_arrow_function,
// edge_file_contains_class, ...).
func (s *Store) createKindViews() error {
	for _, k := range model.AllEntityKinds() {
		view := "entity_" + snakeCase(string(k))
		stmt := fmt.Sprintf(`CREATE VIEW IF NOT EXISTS %s AS SELECT * FROM nodes WHERE kind = '%s'`, view, string(k))
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create view %s: %w", view, err)
		}
	}
	for _, k := range model.AllEdgeKinds() {
		view := "edge_" + strings.ToLower(string(k))
		stmt := fmt.Sprintf(`CREATE VIEW IF NOT EXISTS %s AS SELECT * FROM edges WHERE kind = '%s'`, view, string(k))
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create view %s: %w", view, err)
		}
	}
	return nil
}

// snakeCase renders a PascalCase kind name as snake_case, e.g.
// ArrowFunction -> arrow_function, NgModule -> ng_module.
func snakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			sb.WriteByte('_')
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}
