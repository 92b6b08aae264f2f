// Package settings loads per-workspace settings: how string requires are
// resolved and where the sourcemap lives.
//
// Settings are read from an optional instancemap.cue (or instancemap.json)
// in the workspace root, validated against an embedded CUE schema, and
// layered over defaults and INSTANCEMAP_* environment variables with Viper.
package settings

import (
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// RequireMode selects the base directory of string requires.
type RequireMode string

const (
	RelativeToWorkspaceRoot RequireMode = "relativeToWorkspaceRoot"
	RelativeToFile          RequireMode = "relativeToFile"
)

// DefaultSourcemapFile is the sourcemap location relative to the workspace root.
const DefaultSourcemapFile = "sourcemap.json"

// EnvPrefix prefixes environment overrides, e.g. INSTANCEMAP_REQUIRE_MODE.
const EnvPrefix = "INSTANCEMAP"

// FileNames are the settings files looked up in the workspace root, in order.
var FileNames = []string{"instancemap.cue", "instancemap.json"}

//go:embed settings_schema.cue
var settingsSchema string

// ErrInvalidRequireMode is returned for an unrecognized require mode.
var ErrInvalidRequireMode = errors.New("invalid require mode")

// Require configures string require resolution.
type Require struct {
	Mode             RequireMode
	FileAliases      map[string]string
	DirectoryAliases map[string]string
}

// Settings is the resolved configuration of one workspace.
type Settings struct {
	Require Require
	// SourcemapFile is relative to the workspace root unless absolute.
	SourcemapFile string
}

// Default returns the settings used when no settings file exists.
func Default() *Settings {
	return &Settings{
		Require: Require{
			Mode:             RelativeToWorkspaceRoot,
			FileAliases:      map[string]string{},
			DirectoryAliases: map[string]string{},
		},
		SourcemapFile: DefaultSourcemapFile,
	}
}

// Provider supplies settings for a workspace.
type Provider interface {
	Settings(workspaceRoot string) *Settings
}

// Static is a Provider that always returns the same settings.
type Static struct {
	S *Settings
}

// Settings implements Provider.
func (s Static) Settings(string) *Settings { return s.S }

// Validate checks enum-valued fields.
func (s *Settings) Validate() error {
	switch s.Require.Mode {
	case RelativeToWorkspaceRoot, RelativeToFile:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRequireMode, s.Require.Mode)
}

// LoadOptions defines explicit settings loading inputs.
type LoadOptions struct {
	// FilePath forces a specific settings file when set.
	FilePath string
}

// Load reads the workspace settings. A missing settings file yields the
// defaults; an invalid one is an error.
func Load(fsys afero.Fs, workspaceRoot string, opts LoadOptions) (*Settings, error) {
	v := viper.New()
	defaults := Default()
	v.SetDefault("require.mode", string(defaults.Require.Mode))
	v.SetDefault("sourcemap.file", defaults.SourcemapFile)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := opts.FilePath
	if path == "" {
		for _, name := range FileNames {
			candidate := filepath.Join(workspaceRoot, name)
			if ok, _ := afero.Exists(fsys, candidate); ok {
				path = candidate
				break
			}
		}
	}

	out := defaults
	if path != "" {
		value, err := compile(fsys, path)
		if err != nil {
			return nil, err
		}

		var raw map[string]any
		if err := value.Decode(&raw); err != nil {
			return nil, fmt.Errorf("settings: decode %s: %w", path, err)
		}
		if err := v.MergeConfigMap(raw); err != nil {
			return nil, fmt.Errorf("settings: merge %s: %w", path, err)
		}

		// Viper folds key case; alias keys are matched literally, so they
		// come straight from the CUE value.
		if err := decodeMap(value, "require.fileAliases", out.Require.FileAliases); err != nil {
			return nil, fmt.Errorf("settings: %s: %w", path, err)
		}
		if err := decodeMap(value, "require.directoryAliases", out.Require.DirectoryAliases); err != nil {
			return nil, fmt.Errorf("settings: %s: %w", path, err)
		}
	}

	out.Require.Mode = RequireMode(v.GetString("require.mode"))
	out.SourcemapFile = v.GetString("sourcemap.file")
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return out, nil
}

func compile(fsys afero.Fs, path string) (cue.Value, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("settings: read %s: %w", path, err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(settingsSchema)
	if schema.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: compile settings schema: %w", schema.Err())
	}

	user := ctx.CompileBytes(data, cue.Filename(path))
	if user.Err() != nil {
		return cue.Value{}, formatError(path, user.Err())
	}

	unified := schema.LookupPath(cue.ParsePath("#Settings")).Unify(user)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, formatError(path, err)
	}
	return unified, nil
}

func decodeMap(v cue.Value, path string, into map[string]string) error {
	field := v.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return nil
	}
	var m map[string]string
	if err := field.Decode(&m); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	for k, val := range m {
		into[k] = val
	}
	return nil
}

func formatError(path string, err error) error {
	return fmt.Errorf("settings: invalid %s: %s", path, strings.TrimSpace(cueerrors.Details(err, nil)))
}
