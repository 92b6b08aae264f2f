package luaurc

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/instancemap/internal/diag"
)

func writeFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
}

// recordingSink keeps the last diagnostics published per URI.
type recordingSink struct {
	mu        sync.Mutex
	published map[string][]diag.Diagnostic
	calls     int
}

func (s *recordingSink) Publish(uri string, diags []diag.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published == nil {
		s.published = map[string][]diag.Diagnostic{}
	}
	s.published[uri] = diags
	s.calls++
}

// ---------------------------------------------------------------------------
// Overlay
// ---------------------------------------------------------------------------

func TestOverlay_Fields(t *testing.T) {
	t.Parallel()
	cfg := Default()
	err := cfg.Overlay([]byte(`{
		// comments and trailing commas are fine
		"languageMode": "strict",
		"lint": {"LocalShadow": true,},
		"lintErrors": true,
		"typeErrors": false,
		"globals": ["warn"],
		"aliases": {"Shared": "src/shared", "Abs": "/opt/lib"},
	}`), "/ws/.luaurc")
	require.NoError(t, err)

	assert.Equal(t, ModeStrict, cfg.Mode)
	assert.True(t, cfg.LintErrors)
	assert.False(t, cfg.TypeErrors)
	assert.True(t, cfg.LintEnabled("LocalShadow"))
	assert.False(t, cfg.LintEnabled("UnknownGlobal"))
	assert.Equal(t, []string{"warn"}, cfg.Globals)
	assert.Equal(t, map[string]string{"shared": "/ws/src/shared", "abs": "/opt/lib"}, cfg.Aliases)
}

func TestOverlay_Wildcard(t *testing.T) {
	t.Parallel()
	cfg := Default()
	require.NoError(t, cfg.Overlay([]byte(`{"lint": {"LocalShadow": false}}`), "/ws/.luaurc"))
	require.NoError(t, cfg.Overlay([]byte(`{"lint": {"*": true}}`), "/ws/sub/.luaurc"))
	assert.True(t, cfg.LintEnabled("LocalShadow"))
	assert.True(t, cfg.LintEnabled("Anything"))
}

func TestOverlay_Rejects(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"syntax":      `{"languageMode": `,
		"bad mode":    `{"languageMode": "loose"}`,
		"unknown key": `{"languageMod": "strict"}`,
		"wrong type":  `{"globals": "warn"}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			err := cfg.Overlay([]byte(doc), "/ws/.luaurc")
			require.Error(t, err)
			assert.Equal(t, Default(), cfg, "failed overlay must not modify the record")
		})
	}
}

// ---------------------------------------------------------------------------
// Cascade
// ---------------------------------------------------------------------------

func TestCascade_InheritsThroughDirectories(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/sub/.luaurc", `{"languageMode": "strict"}`)
	writeFile(t, fsys, "/ws/sub/deep/file.luau", "return {}")

	c := NewCascade(fsys)
	got := c.ForFile("/ws/sub/deep/file.luau")
	assert.Equal(t, ModeStrict, got.Mode)

	// The parent directory is unaffected.
	assert.Equal(t, ModeNonstrict, c.ForFile("/ws/file.luau").Mode)
	assert.Empty(t, c.Errors())
}

func TestCascade_ChildOverlaysParent(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/.luaurc", `{"languageMode": "strict", "globals": ["a"]}`)
	writeFile(t, fsys, "/ws/sub/.luaurc", `{"typeErrors": false, "globals": ["b"]}`)

	c := NewCascade(fsys)
	parent := c.Dir("/ws")
	child := c.Dir("/ws/sub")

	want := parent.Clone()
	want.TypeErrors = false
	want.Globals = append(want.Globals, "b")
	assert.Equal(t, want, child)
}

func TestCascade_NoParentUsesDefaults(t *testing.T) {
	t.Parallel()
	c := NewCascade(afero.NewMemMapFs(), WithDefaults(Config{Mode: ModeNoCheck}))
	assert.Equal(t, ModeNoCheck, c.ForFile("file.luau").Mode)
	assert.Equal(t, ModeNoCheck, c.ForFile("").Mode)
}

func TestCascade_ReturnsCopies(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/.luaurc", `{"globals": ["a"]}`)
	c := NewCascade(fsys)

	got := c.Dir("/ws")
	got.Globals[0] = "mutated"
	got.Lint["x"] = true

	again := c.Dir("/ws")
	assert.Equal(t, []string{"a"}, again.Globals)
	assert.NotContains(t, again.Lint, "x")
}

func TestCascade_CollectsErrorsWithoutSink(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/.luaurc", `{"languageMode": 3}`)

	c := NewCascade(fsys)
	cfg := c.Dir("/ws/sub")
	assert.Equal(t, ModeNonstrict, cfg.Mode)

	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "/ws/.luaurc", errs[0].Path)
	assert.NotEmpty(t, errs[0].Message)

	// Cached: no duplicate error on a second query.
	c.Dir("/ws/sub")
	assert.Len(t, c.Errors(), 1)
}

func TestCascade_PublishesToSink(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/.luaurc", `{"languageMode": 3}`)

	sink := &recordingSink{}
	c := NewCascade(fsys, WithSink(sink))
	c.Dir("/ws")

	const uri = "file:///ws/.luaurc"
	require.Len(t, sink.published[uri], 1)
	assert.Equal(t, diag.SeverityError, sink.published[uri][0].Severity)
	assert.Equal(t, DiagnosticSource, sink.published[uri][0].Source)
	assert.Empty(t, c.Errors())

	// Fixing the file and invalidating clears the diagnostic.
	writeFile(t, fsys, "/ws/.luaurc", `{"languageMode": "strict"}`)
	c.Invalidate()
	assert.Equal(t, ModeStrict, c.Dir("/ws").Mode)
	assert.Empty(t, sink.published[uri])
}

func TestCascade_Invalidate(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/.luaurc", `{"languageMode": "strict"}`)

	c := NewCascade(fsys)
	before := c.Dir("/ws/a")

	// Stale until invalidated.
	writeFile(t, fsys, "/ws/.luaurc", `{"languageMode": `)
	assert.Equal(t, ModeStrict, c.Dir("/ws/a").Mode)

	c.Invalidate()
	assert.Equal(t, ModeNonstrict, c.Dir("/ws/a").Mode)
	assert.Len(t, c.Errors(), 1)

	writeFile(t, fsys, "/ws/.luaurc", `{"languageMode": "strict"}`)
	c.Invalidate()
	assert.Empty(t, c.Errors())
	assert.Equal(t, before, c.Dir("/ws/a"))
}
