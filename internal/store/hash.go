package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ComputeSnapshotHash computes a deterministic hash of a module map and its
// require edges. Input order and IDs do not affect the hash.
func ComputeSnapshotHash(modules []*Module, requires []*Require) string {
	h := sha256.New()

	mods := make([]*Module, len(modules))
	copy(mods, modules)
	sort.Slice(mods, func(i, j int) bool {
		return mods[i].VirtualPath < mods[j].VirtualPath
	})
	for _, m := range mods {
		fmt.Fprintf(h, "module:%s:%s:%s:%s\n", m.VirtualPath, m.ClassName, m.RealPath, m.Kind)
	}

	type requireKey struct {
		from, to, expr string
		line, col      int
	}
	rkeys := make([]requireKey, len(requires))
	for i, r := range requires {
		rkeys[i] = requireKey{from: r.FromPath, expr: r.Expression, line: r.Line, col: r.Col}
		if r.ToPath != nil {
			rkeys[i].to = *r.ToPath
		}
	}
	sort.Slice(rkeys, func(i, j int) bool {
		a, b := rkeys[i], rkeys[j]
		if a.from != b.from {
			return a.from < b.from
		}
		if a.line != b.line {
			return a.line < b.line
		}
		return a.col < b.col
	})
	for _, rk := range rkeys {
		fmt.Fprintf(h, "require:%s:%d:%d:%s:%s\n", rk.from, rk.line, rk.col, rk.expr, rk.to)
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}
