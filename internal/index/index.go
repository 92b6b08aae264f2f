// Package index maintains the two lookups over an instance tree: virtual
// path to node and canonical real path to node. An Index is built in one
// pass over a freshly parsed tree and never updated afterwards; a new tree
// gets a new Index.
package index

import (
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/jward/instancemap/internal/pathutil"
	"github.com/jward/instancemap/internal/sourcemap"
)

// Index maps virtual and real paths to the nodes of one tree generation.
type Index struct {
	tree          *sourcemap.Tree
	workspaceRoot string
	fs            afero.Fs

	byVirtual map[string]*sourcemap.Node
	byReal    map[string]*sourcemap.Node
}

// Empty returns an Index with no entries, used before the first rebuild.
func Empty(workspaceRoot string, fsys afero.Fs) *Index {
	return &Index{
		workspaceRoot: workspaceRoot,
		fs:            fsys,
		byVirtual:     map[string]*sourcemap.Node{},
		byReal:        map[string]*sourcemap.Node{},
	}
}

// Build assigns virtual paths under base and indexes every node of tree.
// Script file paths are joined onto workspaceRoot and canonicalized; if
// canonicalization fails the joined path is used as the key.
func Build(tree *sourcemap.Tree, base, workspaceRoot string, fsys afero.Fs) *Index {
	ix := Empty(workspaceRoot, fsys)
	ix.tree = tree
	tree.AssignPaths(base, func(n *sourcemap.Node) {
		// Siblings with the same name share a virtual path; the first one
		// owns it, but every script file stays reachable by real path.
		if _, taken := ix.byVirtual[n.VirtualPath]; !taken {
			ix.byVirtual[n.VirtualPath] = n
		}
		if realPath, ok := ix.RealPathOf(n); ok {
			ix.byReal[pathutil.Canonical(fsys, realPath)] = n
		}
	})
	return ix
}

// Tree returns the indexed tree, or nil for an empty Index.
func (ix *Index) Tree() *sourcemap.Tree { return ix.tree }

// WorkspaceRoot returns the directory script file paths are relative to.
func (ix *Index) WorkspaceRoot() string { return ix.workspaceRoot }

// NodeForVirtualPath looks up a node by exact virtual path.
func (ix *Index) NodeForVirtualPath(p string) (*sourcemap.Node, bool) {
	n, ok := ix.byVirtual[p]
	return n, ok
}

// NodeForRealPath canonicalizes p and looks up the node whose script file
// it is.
func (ix *Index) NodeForRealPath(p string) (*sourcemap.Node, bool) {
	n, ok := ix.byReal[pathutil.Canonical(ix.fs, p)]
	return n, ok
}

// RealPathOf returns the workspace-rooted path of n's script file.
func (ix *Index) RealPathOf(n *sourcemap.Node) (string, bool) {
	script, ok := n.ScriptFilePath()
	if !ok {
		return "", false
	}
	if filepath.IsAbs(script) {
		return filepath.ToSlash(filepath.Clean(script)), true
	}
	return filepath.ToSlash(filepath.Join(ix.workspaceRoot, script)), true
}

// ResolveToVirtualPath maps a module identity to a virtual path. Virtual
// identities are returned unchanged.
func (ix *Index) ResolveToVirtualPath(name string) (string, bool) {
	if pathutil.IsVirtualPath(name) {
		return name, true
	}
	n, ok := ix.NodeForRealPath(name)
	if !ok {
		return "", false
	}
	return n.VirtualPath, true
}

// ResolveToRealPath maps a module identity to a file path. Real identities
// are returned unchanged; virtual ones need a node with a script file.
func (ix *Index) ResolveToRealPath(name string) (string, bool) {
	if !pathutil.IsVirtualPath(name) {
		return name, true
	}
	n, ok := ix.NodeForVirtualPath(name)
	if !ok {
		return "", false
	}
	return ix.RealPathOf(n)
}

// VirtualPaths returns every indexed virtual path, sorted.
func (ix *Index) VirtualPaths() []string {
	return sortedKeys(ix.byVirtual)
}

// RealPaths returns every indexed canonical real path, sorted.
func (ix *Index) RealPaths() []string {
	return sortedKeys(ix.byReal)
}

func sortedKeys(m map[string]*sourcemap.Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
