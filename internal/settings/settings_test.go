package settings

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := Load(fsys, "/ws", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, RelativeToWorkspaceRoot, s.Require.Mode)
	assert.Equal(t, DefaultSourcemapFile, s.SourcemapFile)
	assert.Empty(t, s.Require.FileAliases)
}

func TestLoad_CUEFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/instancemap.cue", `
// Workspace settings.
require: {
	mode: "relativeToFile"
	fileAliases: "@Config": "src/config.luau"
	directoryAliases: "@Shared/": "src/shared/"
}
sourcemap: file: "build/sourcemap.json"
`)
	s, err := Load(fsys, "/ws", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, RelativeToFile, s.Require.Mode)
	assert.Equal(t, map[string]string{"@Config": "src/config.luau"}, s.Require.FileAliases)
	assert.Equal(t, map[string]string{"@Shared/": "src/shared/"}, s.Require.DirectoryAliases)
	assert.Equal(t, "build/sourcemap.json", s.SourcemapFile)
}

func TestLoad_JSONFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/instancemap.json", `{"require": {"fileAliases": {"Roact": "Packages/Roact"}}}`)
	s, err := Load(fsys, "/ws", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, RelativeToWorkspaceRoot, s.Require.Mode)
	assert.Equal(t, "Packages/Roact", s.Require.FileAliases["Roact"])
}

func TestLoad_SchemaViolation(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/instancemap.cue", `require: mode: "sideways"`)
	_, err := Load(fsys, "/ws", LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instancemap.cue")
}

func TestLoad_UnknownKey(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/instancemap.cue", `colour: "blue"`)
	_, err := Load(fsys, "/ws", LoadOptions{})
	require.Error(t, err)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/ws", LoadOptions{FilePath: "/nope.cue"})
	require.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("INSTANCEMAP_REQUIRE_MODE", "relativeToFile")
	s, err := Load(afero.NewMemMapFs(), "/ws", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, RelativeToFile, s.Require.Mode)
}

func TestLoad_EnvInvalidMode(t *testing.T) {
	t.Setenv("INSTANCEMAP_REQUIRE_MODE", "bogus")
	_, err := Load(afero.NewMemMapFs(), "/ws", LoadOptions{})
	require.ErrorIs(t, err, ErrInvalidRequireMode)
}

func TestStatic(t *testing.T) {
	s := Default()
	assert.Same(t, s, Static{S: s}.Settings("/anything"))
}
