package main_test

import (
	"database/sql"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the instancemap binary and returns the path.
// The binary is placed in t.TempDir() so it's cleaned up automatically.
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "instancemap"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "instancemap")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot returns the root of the project by walking up from the test
// file's directory to find go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, parent, dir, "could not find project root")
		dir = parent
	}
}

const fixtureSourcemap = `{
  "name": "Game", "className": "DataModel",
  "children": [
    {"name": "ReplicatedStorage", "className": "ReplicatedStorage", "children": [
      {"name": "Utils", "className": "ModuleScript", "filePaths": ["src/shared/Utils.luau"]},
      {"name": "Items", "className": "ModuleScript", "filePaths": ["src/shared/Items.json"]}
    ]},
    {"name": "ServerScriptService", "className": "ServerScriptService", "children": [
      {"name": "Main", "className": "Script", "filePaths": ["src/server/Main.server.luau"]}
    ]}
  ]
}`

// createFixture writes a small workspace with a sourcemap, three modules
// and a .luaurc. Returns the workspace path.
func createFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"sourcemap.json":              fixtureSourcemap,
		".luaurc":                     `{"languageMode": "strict"}`,
		"src/shared/Utils.luau":       "return {}",
		"src/shared/Items.json":       `{"sword": 10}`,
		"src/server/Main.server.luau": "local Utils = require(game.ReplicatedStorage.Utils)\nlocal x = require(missing)\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// run executes the binary in dir and decodes the JSON envelope.
func run(t *testing.T, bin, dir string, args ...string) map[string]any {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err, "%v failed: %s", args, string(out))

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(out, &envelope), "output: %s", string(out))
	name := args[0]
	if name == "query" {
		name = args[1]
	}
	assert.Equal(t, name, envelope["command"])
	return envelope
}

func TestCLI_Queries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createFixture(t)

	t.Run("modules", func(t *testing.T) {
		res := run(t, bin, fixture, "modules")
		mods, ok := res["results"].([]any)
		require.True(t, ok)
		assert.Len(t, mods, 6)
	})

	t.Run("resolve", func(t *testing.T) {
		res := run(t, bin, fixture, "resolve", "game/ServerScriptService/Main", "script.Parent.Parent.ReplicatedStorage.Utils")
		result := res["results"].(map[string]any)
		assert.Equal(t, true, result["resolved"])
		module := result["module"].(map[string]any)
		assert.Equal(t, "game/ReplicatedStorage/Utils", module["name"])
	})

	t.Run("resolve from file path", func(t *testing.T) {
		res := run(t, bin, fixture, "resolve", filepath.Join("src", "server", "Main.server.luau"), "game.ReplicatedStorage.Items")
		result := res["results"].(map[string]any)
		assert.Equal(t, "game/ServerScriptService/Main", result["from"])
		assert.Equal(t, true, result["resolved"])
	})

	t.Run("load data module", func(t *testing.T) {
		res := run(t, bin, fixture, "load", "game/ReplicatedStorage/Items")
		result := res["results"].(map[string]any)
		assert.Equal(t, "--!strict\nreturn {[\"sword\"] = 10}\n", result["text"])
	})

	t.Run("config", func(t *testing.T) {
		res := run(t, bin, fixture, "config", "game/ReplicatedStorage/Utils")
		result := res["results"].(map[string]any)
		cfg := result["config"].(map[string]any)
		assert.Equal(t, "strict", cfg["languageMode"])
	})

	t.Run("deps", func(t *testing.T) {
		res := run(t, bin, fixture, "deps", "--unresolved")
		deps := res["results"].([]any)
		require.Len(t, deps, 1)
		assert.Equal(t, "missing", deps[0].(map[string]any)["expression"])
	})
}

func TestCLI_TextFormat(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createFixture(t)

	cmd := exec.Command(bin, "--format", "text", "load", "game/ReplicatedStorage/Utils")
	cmd.Dir = fixture
	out, err := cmd.Output()
	require.NoError(t, err)
	assert.Equal(t, "return {}", string(out))
}

func TestCLI_MissingSourcemap(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	dir := t.TempDir()

	cmd := exec.Command(bin, "--root", dir, "modules")
	cmd.Dir = dir
	out, err := cmd.Output()
	require.Error(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(out, &envelope))
	assert.Contains(t, envelope["error"], "sourcemap")
}

func TestCLI_Export(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createFixture(t)

	run(t, bin, fixture, "export")

	dbPath := filepath.Join(fixture, ".instancemap", "modules.db")
	_, err := os.Stat(dbPath)
	require.NoError(t, err, ".instancemap/modules.db should exist")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var modules, requires, unresolved int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM modules").Scan(&modules))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM requires").Scan(&requires))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM requires WHERE to_path IS NULL").Scan(&unresolved))
	assert.Equal(t, 6, modules)
	assert.Equal(t, 2, requires)
	assert.Equal(t, 1, unresolved)
}

func TestCLI_QueryExport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createFixture(t)

	run(t, bin, fixture, "export")

	res := run(t, bin, fixture, "query", "unresolved")
	unresolved := res["results"].([]any)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "missing", unresolved[0].(map[string]any)["expression"])

	res = run(t, bin, fixture, "query", "requires", filepath.Join("src", "server", "Main.server.luau"))
	assert.Len(t, res["results"].([]any), 2)

	res = run(t, bin, fixture, "query", "dependents", "game/ReplicatedStorage/Utils")
	dependents := res["results"].(map[string]any)
	mods := dependents["modules"].([]any)
	require.Len(t, mods, 1)
	assert.Equal(t, "game/ServerScriptService/Main", mods[0].(map[string]any)["virtual_path"])

	res = run(t, bin, fixture, "query", "info")
	assert.Equal(t, "game", res["results"].(map[string]any)["base_name"])
}

func TestCLI_QueryWithoutExport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createFixture(t)

	cmd := exec.Command(bin, "query", "modules")
	cmd.Dir = fixture
	out, err := cmd.Output()
	require.Error(t, err)
	assert.Contains(t, string(out), "database not found")
}
