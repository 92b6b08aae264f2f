package store

import (
	"database/sql"
	"fmt"
	"maps"
	"slices"
)

// ReplaceSnapshot replaces the stored module map with snap in a single
// transaction. The snapshot hash is computed and recorded in the metadata.
// Module IDs are written back into snap.
func (s *Store) ReplaceSnapshot(snap *Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replace snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM requires",
		"DELETE FROM modules",
		"DELETE FROM metadata",
	} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("replace snapshot: clear: %w", err)
		}
	}

	for _, m := range snap.Modules {
		id, err := insertModuleTx(tx, m)
		if err != nil {
			return fmt.Errorf("replace snapshot: module %q: %w", m.VirtualPath, err)
		}
		m.ID = id
	}

	for _, r := range snap.Requires {
		id, err := insertRequireTx(tx, r)
		if err != nil {
			return fmt.Errorf("replace snapshot: require in %q: %w", r.FromPath, err)
		}
		r.ID = id
	}

	meta := maps.Clone(snap.Metadata)
	if meta == nil {
		meta = map[string]string{}
	}
	meta[MetaSnapshotHash] = ComputeSnapshotHash(snap.Modules, snap.Requires)
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		if _, err := tx.Exec("INSERT INTO metadata (key, value) VALUES (?, ?)", k, meta[k]); err != nil {
			return fmt.Errorf("replace snapshot: metadata %q: %w", k, err)
		}
	}

	return tx.Commit()
}

// --- Transaction-scoped insert helpers ---

func insertModuleTx(tx *sql.Tx, m *Module) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO modules (virtual_path, name, class_name, real_path, kind)
		 VALUES (?, ?, ?, ?, ?)`,
		m.VirtualPath, m.Name, m.ClassName, nullString(m.RealPath), m.Kind,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertRequireTx(tx *sql.Tx, r *Require) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO requires (from_path, to_path, expression, line, col)
		 VALUES (?, ?, ?, ?, ?)`,
		r.FromPath, r.ToPath, r.Expression, r.Line, r.Col,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
