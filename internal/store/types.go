package store

// Module is one node of the instance tree.
type Module struct {
	ID          int64
	VirtualPath string
	Name        string
	ClassName   string
	// RealPath is empty for nodes without a script file.
	RealPath string
	Kind     string
}

// Require is one require call found in a module's source. ToPath is nil
// when the expression could not be resolved.
type Require struct {
	ID         int64
	FromPath   string
	ToPath     *string
	Expression string
	Line       int
	Col        int
}

// Snapshot is everything written by one export.
type Snapshot struct {
	Modules  []*Module
	Requires []*Require
	Metadata map[string]string
}

// Metadata keys written with every snapshot.
const (
	MetaWorkspaceRoot = "workspace_root"
	MetaBaseName      = "base_name"
	MetaSnapshotHash  = "snapshot_hash"
	MetaExportedAt    = "exported_at"
)
