package store

import (
	"database/sql"
	"fmt"
)

// --- Module queries ---

const moduleColumns = "id, virtual_path, name, class_name, real_path, kind"

func scanModule(scanner interface{ Scan(...any) error }) (*Module, error) {
	m := &Module{}
	var realPath sql.NullString
	if err := scanner.Scan(&m.ID, &m.VirtualPath, &m.Name, &m.ClassName, &realPath, &m.Kind); err != nil {
		return nil, err
	}
	m.RealPath = realPath.String
	return m, nil
}

func (s *Store) queryModules(query string, args ...any) ([]*Module, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Modules returns every module ordered by virtual path.
func (s *Store) Modules() ([]*Module, error) {
	mods, err := s.queryModules("SELECT " + moduleColumns + " FROM modules ORDER BY virtual_path")
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	return mods, nil
}

// ModuleByVirtualPath returns nil, nil when no module has the path.
func (s *Store) ModuleByVirtualPath(virtualPath string) (*Module, error) {
	m, err := scanModule(s.db.QueryRow(
		"SELECT "+moduleColumns+" FROM modules WHERE virtual_path = ?", virtualPath,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("module by virtual path: %w", err)
	}
	return m, nil
}

// ModuleByRealPath returns nil, nil when no module is backed by the file.
func (s *Store) ModuleByRealPath(realPath string) (*Module, error) {
	m, err := scanModule(s.db.QueryRow(
		"SELECT "+moduleColumns+" FROM modules WHERE real_path = ?", realPath,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("module by real path: %w", err)
	}
	return m, nil
}

// ModulesByVirtualPaths returns the modules among paths that exist, ordered
// by virtual path.
func (s *Store) ModulesByVirtualPaths(paths []string) ([]*Module, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	mods, err := s.queryModules(
		"SELECT "+moduleColumns+" FROM modules WHERE virtual_path IN ("+placeholderList(len(paths))+") ORDER BY virtual_path",
		stringsToArgs(paths)...,
	)
	if err != nil {
		return nil, fmt.Errorf("modules by virtual paths: %w", err)
	}
	return mods, nil
}

// --- Require queries ---

const requireColumns = "id, from_path, to_path, expression, line, col"

func (s *Store) queryRequires(query string, args ...any) ([]*Require, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Require
	for rows.Next() {
		r := &Require{}
		var to sql.NullString
		if err := rows.Scan(&r.ID, &r.FromPath, &to, &r.Expression, &r.Line, &r.Col); err != nil {
			return nil, fmt.Errorf("scan require: %w", err)
		}
		if to.Valid {
			r.ToPath = &to.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RequiresFrom returns the requires made by a module in source order.
func (s *Store) RequiresFrom(fromPath string) ([]*Require, error) {
	reqs, err := s.queryRequires(
		"SELECT "+requireColumns+" FROM requires WHERE from_path = ? ORDER BY line, col", fromPath,
	)
	if err != nil {
		return nil, fmt.Errorf("requires from: %w", err)
	}
	return reqs, nil
}

// Dependents returns the requires that resolve to toPath.
func (s *Store) Dependents(toPath string) ([]*Require, error) {
	reqs, err := s.queryRequires(
		"SELECT "+requireColumns+" FROM requires WHERE to_path = ? ORDER BY from_path, line, col", toPath,
	)
	if err != nil {
		return nil, fmt.Errorf("dependents: %w", err)
	}
	return reqs, nil
}

// UnresolvedRequires returns every require whose target is unknown.
func (s *Store) UnresolvedRequires() ([]*Require, error) {
	reqs, err := s.queryRequires(
		"SELECT " + requireColumns + " FROM requires WHERE to_path IS NULL ORDER BY from_path, line, col",
	)
	if err != nil {
		return nil, fmt.Errorf("unresolved requires: %w", err)
	}
	return reqs, nil
}

// --- Metadata ---

// Metadata returns a metadata value, or "" when the key is unset.
func (s *Store) Metadata(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("metadata %q: %w", key, err)
	}
	return v, nil
}
