package main

import "github.com/jward/instancemap"

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIResolution is the outcome of resolving one expression.
type CLIResolution struct {
	From       string                  `json:"from"`
	Expression string                  `json:"expression"`
	Resolved   bool                    `json:"resolved"`
	Module     *instancemap.ModuleInfo `json:"module,omitempty"`
	RealPath   string                  `json:"real_path,omitempty"`
}

// CLISource is a loaded module source.
type CLISource struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// CLIName describes the identities of one module.
type CLIName struct {
	Name          string `json:"name"`
	VirtualPath   string `json:"virtual_path,omitempty"`
	RealPath      string `json:"real_path,omitempty"`
	HumanReadable string `json:"human_readable"`
}

// CLIConfig is the .luaurc configuration governing a module.
type CLIConfig struct {
	Name   string                    `json:"name"`
	Config instancemap.Config        `json:"config"`
	Errors []instancemap.ConfigError `json:"errors,omitempty"`
}

// CLIExport summarizes a snapshot export.
type CLIExport struct {
	Database string `json:"database"`
	Modules  int    `json:"modules"`
}

// CLIStoredModule is a module row of an exported database.
type CLIStoredModule struct {
	ID          int64  `json:"id"`
	VirtualPath string `json:"virtual_path"`
	Name        string `json:"name"`
	ClassName   string `json:"class_name"`
	RealPath    string `json:"real_path,omitempty"`
	Kind        string `json:"kind"`
}

// CLIStoredRequire is a require edge of an exported database.
type CLIStoredRequire struct {
	From       string  `json:"from"`
	To         *string `json:"to,omitempty"`
	Expression string  `json:"expression"`
	Line       int     `json:"line"`
	Col        int     `json:"col"`
}

// CLIDependents lists the requires that resolve to a module and the
// modules making them.
type CLIDependents struct {
	Module   string             `json:"module"`
	Requires []CLIStoredRequire `json:"requires"`
	Modules  []CLIStoredModule  `json:"modules"`
}

// CLIExportInfo is the metadata recorded with an export.
type CLIExportInfo struct {
	WorkspaceRoot string `json:"workspace_root"`
	BaseName      string `json:"base_name"`
	SnapshotHash  string `json:"snapshot_hash"`
	ExportedAt    string `json:"exported_at"`
}
