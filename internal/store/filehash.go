package store

// Meta records the root path and the time of the last index run (full or
// incremental) for this store.
type Meta struct {
	RootPath  string
	IndexedAt string
}

// SetMeta upserts the single meta row (there is ever only one: this store
// holds exactly one project).
func (s *Store) SetMeta(rootPath string) error {
	_, err := s.db.Exec("DELETE FROM meta")
	if err != nil {
		return err
	}
	_, err = s.db.Exec("INSERT INTO meta (root_path, indexed_at) VALUES (?, ?)", rootPath, Now())
	return err
}

// GetMeta returns the store's meta row, or nil if never set.
func (s *Store) GetMeta() (*Meta, error) {
	var m Meta
	err := s.db.QueryRow("SELECT root_path, indexed_at FROM meta LIMIT 1").Scan(&m.RootPath, &m.IndexedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertFileHash stores one file's content hash.
func (s *Store) UpsertFileHash(relPath, sha256 string) error {
	_, err := s.db.Exec(`
		INSERT INTO file_hashes (rel_path, sha256) VALUES (?, ?)
		ON CONFLICT(rel_path) DO UPDATE SET sha256=excluded.sha256`,
		relPath, sha256)
	return err
}

// UpsertFileHashBatch stores many file hashes in one transaction, one
// statement per file.
func (s *Store) UpsertFileHashBatch(hashes map[string]string) error {
	if len(hashes) == 0 {
		return nil
	}
	return s.WithTransaction(func(tx *Store) error {
		for relPath, sha256 := range hashes {
			if err := tx.UpsertFileHash(relPath, sha256); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetFileHashes returns every tracked file's content hash.
func (s *Store) GetFileHashes() (map[string]string, error) {
	rows, err := s.db.Query("SELECT rel_path, sha256 FROM file_hashes")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		result[path] = hash
	}
	return result, rows.Err()
}

// DeleteFileHash removes a single file's tracked hash.
func (s *Store) DeleteFileHash(relPath string) error {
	_, err := s.db.Exec("DELETE FROM file_hashes WHERE rel_path=?", relPath)
	return err
}

// DeleteAllFileHashes clears every tracked hash. `update --full` does not
// call it; it goes through Reset, which clears the hashes as well.
func (s *Store) DeleteAllFileHashes() error {
	_, err := s.db.Exec("DELETE FROM file_hashes")
	return err
}

// Reset drops every node, edge, and file hash, leaving an empty store —
// used by the `reset` CLI command and by `update --full`.
func (s *Store) Reset() error {
	return s.WithTransaction(func(tx *Store) error {
		if _, err := tx.q.Exec("DELETE FROM edges"); err != nil {
			return err
		}
		if _, err := tx.q.Exec("DELETE FROM nodes"); err != nil {
			return err
		}
		if _, err := tx.q.Exec("DELETE FROM file_hashes"); err != nil {
			return err
		}
		_, err := tx.q.Exec("DELETE FROM meta")
		return err
	})
}
