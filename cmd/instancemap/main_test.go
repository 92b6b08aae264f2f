package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/instancemap"
	"github.com/jward/instancemap/internal/store"
)

func TestFindWorkspaceRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	got := findWorkspaceRoot(root)
	assert.Equal(t, root, got)
}

func TestFindWorkspaceRoot_SourcemapMarker(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "sourcemap.json"), []byte("{}"), 0o644))
	deep := filepath.Join(root, "src", "shared")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	got := findWorkspaceRoot(deep)
	assert.Equal(t, root, got)
}

func TestFindWorkspaceRoot_NearestMarkerWins(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "places", "lobby")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "instancemap.cue"), []byte("{}"), 0o644))

	got := findWorkspaceRoot(nested)
	assert.Equal(t, nested, got)
}

func TestFindWorkspaceRoot_NoMarker(t *testing.T) {
	t.Parallel()
	// TempDir has no marker anywhere in its ancestry
	// (unless /tmp itself is a repo, which would be unusual).
	dir := t.TempDir()

	got := findWorkspaceRoot(dir)
	assert.Equal(t, dir, got)
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("yaml"))
}

func TestUnresolvedOnly(t *testing.T) {
	t.Parallel()
	deps := []instancemap.Dependency{
		{From: "game/A", To: "game/B", Line: 1},
		{From: "game/A", Line: 2},
		{From: "game/C", To: "game/B", Optional: true, Line: 1},
	}
	got := unresolvedOnly(deps)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Line)
}

// ---------------------------------------------------------------------------
// Text formatting
// ---------------------------------------------------------------------------

func TestFormatModulesText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	formatModulesText(&buf, []instancemap.Module{
		{VirtualPath: "game/ReplicatedStorage/Utils", ClassName: "ModuleScript", Kind: "module", RealPath: "/ws/src/Utils.luau"},
		{VirtualPath: "game/StarterGui", ClassName: "StarterGui", Kind: "module"},
	})
	out := buf.String()
	assert.Contains(t, out, "VIRTUAL PATH")
	assert.Contains(t, out, "game/ReplicatedStorage/Utils  ModuleScript")
	assert.Contains(t, out, "/ws/src/Utils.luau")
}

func TestFormatDependenciesText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	formatDependenciesText(&buf, []instancemap.Dependency{
		{From: "game/A", To: "game/B", Expression: "script.Parent.B", Line: 1, Column: 11},
		{From: "game/A", Expression: "getPath()", Line: 2, Column: 11},
		{From: "game/A", To: "game/C", Optional: true, Expression: "script.Parent:FindFirstChild(\"C\")", Line: 3, Column: 11},
	})
	out := buf.String()
	assert.Contains(t, out, "game/B")
	assert.Contains(t, out, "?")
	assert.Contains(t, out, "game/C (optional)")
}

func TestFormatResolutionText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	formatResolutionText(&buf, CLIResolution{Expression: "x", Resolved: false})
	assert.Equal(t, "x: unresolved\n", buf.String())

	buf.Reset()
	formatResolutionText(&buf, CLIResolution{
		Expression: "script.Parent.B",
		Resolved:   true,
		Module:     &instancemap.ModuleInfo{Name: "game/B"},
		RealPath:   "/ws/B.luau",
	})
	assert.Equal(t, "game/B\n/ws/B.luau\n", buf.String())
}

func TestFormatConfigText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	formatConfigText(&buf, CLIConfig{
		Name: "game/A",
		Config: instancemap.Config{
			Mode:       "strict",
			TypeErrors: true,
			Lint:       map[string]bool{"LocalShadow": false},
			Globals:    []string{"warn", "task"},
			Aliases:    map[string]string{"shared": "/ws/src/shared"},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "Language mode: strict")
	assert.Contains(t, out, "Type errors: true")
	assert.Contains(t, out, "LocalShadow: false")
	assert.Contains(t, out, "Globals: warn, task")
	assert.Contains(t, out, "@shared")
}

// ---------------------------------------------------------------------------
// Exported database queries
// ---------------------------------------------------------------------------

func newExportedStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "modules.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())

	utils := "game/ReplicatedStorage/Utils"
	require.NoError(t, s.ReplaceSnapshot(&store.Snapshot{
		Modules: []*store.Module{
			{VirtualPath: utils, Name: "Utils", ClassName: "ModuleScript", RealPath: "/ws/src/shared/Utils.luau", Kind: "module"},
			{VirtualPath: "game/ServerScriptService/Main", Name: "Main", ClassName: "Script", RealPath: "/ws/src/server/Main.server.luau", Kind: "script"},
		},
		Requires: []*store.Require{
			{FromPath: "game/ServerScriptService/Main", ToPath: &utils, Expression: "game.ReplicatedStorage.Utils", Line: 1, Col: 15},
			{FromPath: "game/ServerScriptService/Main", Expression: "getPath()", Line: 2, Col: 11},
		},
	}))
	return s
}

func TestLookupStoredModule(t *testing.T) {
	t.Parallel()
	s := newExportedStore(t)

	m, err := lookupStoredModule(s, "game/ReplicatedStorage/Utils")
	require.NoError(t, err)
	assert.Equal(t, "/ws/src/shared/Utils.luau", m.RealPath)

	m, err = lookupStoredModule(s, "/ws/src/server/Main.server.luau")
	require.NoError(t, err)
	assert.Equal(t, "game/ServerScriptService/Main", m.VirtualPath)

	_, err = lookupStoredModule(s, "game/Missing")
	assert.Error(t, err)
}

func TestRequiresToCLI(t *testing.T) {
	t.Parallel()
	s := newExportedStore(t)

	reqs, err := s.RequiresFrom("game/ServerScriptService/Main")
	require.NoError(t, err)
	got := requiresToCLI(reqs)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].To)
	assert.Equal(t, "game/ReplicatedStorage/Utils", *got[0].To)
	assert.Nil(t, got[1].To)

	unresolved, err := s.UnresolvedRequires()
	require.NoError(t, err)
	assert.Equal(t, []CLIStoredRequire{{
		From: "game/ServerScriptService/Main", Expression: "getPath()", Line: 2, Col: 11,
	}}, requiresToCLI(unresolved))

	var buf bytes.Buffer
	formatStoredRequiresText(&buf, got)
	assert.Contains(t, buf.String(), "getPath()")
}
