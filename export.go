package instancemap

import (
	"context"
	"fmt"
	"time"

	"github.com/jward/instancemap/internal/store"
)

// Export scans dependencies and writes the current module map to a SQLite
// database at dbPath, replacing any previous export in it.
func (e *Engine) Export(ctx context.Context, dbPath string) error {
	deps, err := e.ScanDependencies(ctx)
	if err != nil {
		return err
	}

	s, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("instancemap: export: %w", err)
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("instancemap: export: %w", err)
	}

	snap := &store.Snapshot{
		Metadata: map[string]string{
			store.MetaWorkspaceRoot: e.workspaceRoot,
			store.MetaExportedAt:    time.Now().UTC().Format(time.RFC3339),
		},
	}
	if tree := e.index().Tree(); tree != nil {
		snap.Metadata[store.MetaBaseName] = tree.BaseName()
	}
	for _, m := range e.Modules() {
		snap.Modules = append(snap.Modules, &store.Module{
			VirtualPath: m.VirtualPath,
			Name:        m.Name,
			ClassName:   m.ClassName,
			RealPath:    m.RealPath,
			Kind:        m.Kind,
		})
	}
	for _, d := range deps {
		r := &store.Require{
			FromPath:   d.From,
			Expression: d.Expression,
			Line:       d.Line,
			Col:        d.Column,
		}
		if d.Resolved() {
			to := d.To
			r.ToPath = &to
		}
		snap.Requires = append(snap.Requires, r)
	}

	if err := s.ReplaceSnapshot(snap); err != nil {
		return fmt.Errorf("instancemap: export: %w", err)
	}
	return nil
}
