// Package luaurc parses .luaurc files and cascades them down the directory
// tree: each directory's configuration is its parent's with the directory's
// own .luaurc overlaid.
package luaurc

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/jward/instancemap/internal/pathutil"
)

// FileName is the per-directory configuration file.
const FileName = ".luaurc"

//go:embed luaurc_schema.cue
var luaurcSchema string

// Mode is the type-checking mode of a module.
type Mode string

const (
	ModeNoCheck   Mode = "nocheck"
	ModeNonstrict Mode = "nonstrict"
	ModeStrict    Mode = "strict"
)

// WildcardLint enables or disables every lint at once.
const WildcardLint = "*"

// Config is the merged configuration record of a directory.
type Config struct {
	Mode       Mode              `json:"languageMode"`
	TypeErrors bool              `json:"typeErrors"`
	LintErrors bool              `json:"lintErrors"`
	Lint       map[string]bool   `json:"lint,omitempty"`
	Globals    []string          `json:"globals,omitempty"`
	Aliases    map[string]string `json:"aliases,omitempty"`
}

// Default returns the record used when no .luaurc applies.
func Default() Config {
	return Config{
		Mode:       ModeNonstrict,
		TypeErrors: true,
		Lint:       map[string]bool{},
		Aliases:    map[string]string{},
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.Lint = maps.Clone(c.Lint)
	out.Globals = slices.Clone(c.Globals)
	out.Aliases = maps.Clone(c.Aliases)
	if out.Lint == nil {
		out.Lint = map[string]bool{}
	}
	if out.Aliases == nil {
		out.Aliases = map[string]string{}
	}
	return out
}

// LintEnabled reports whether the named lint is on, falling back to the
// wildcard entry.
func (c Config) LintEnabled(name string) bool {
	if on, ok := c.Lint[name]; ok {
		return on
	}
	return c.Lint[WildcardLint]
}

// file mirrors the schema; unset fields leave the inherited value alone.
type file struct {
	LanguageMode *string           `json:"languageMode"`
	Lint         map[string]bool   `json:"lint"`
	LintErrors   *bool             `json:"lintErrors"`
	TypeErrors   *bool             `json:"typeErrors"`
	Globals      []string          `json:"globals"`
	Aliases      map[string]string `json:"aliases"`
}

// parse validates a .luaurc document. Comments and trailing commas are
// accepted.
func parse(data []byte, path string) (*file, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(luaurcSchema)
	if schema.Err() != nil {
		return nil, fmt.Errorf("internal error: compile luaurc schema: %w", schema.Err())
	}

	user := ctx.CompileBytes(data, cue.Filename(path))
	if user.Err() != nil {
		return nil, formatError(user.Err())
	}

	unified := schema.LookupPath(cue.ParsePath("#Luaurc")).Unify(user)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatError(err)
	}

	var f file
	if err := unified.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &f, nil
}

// Overlay applies the .luaurc at path, already read into data, on top of c.
// Relative alias targets are anchored at the directory holding the file.
func (c *Config) Overlay(data []byte, path string) error {
	f, err := parse(data, path)
	if err != nil {
		return err
	}

	if f.LanguageMode != nil {
		c.Mode = Mode(*f.LanguageMode)
	}
	if f.LintErrors != nil {
		c.LintErrors = *f.LintErrors
	}
	if f.TypeErrors != nil {
		c.TypeErrors = *f.TypeErrors
	}
	if _, ok := f.Lint[WildcardLint]; ok || c.Lint == nil {
		c.Lint = map[string]bool{}
	}
	if c.Aliases == nil {
		c.Aliases = map[string]string{}
	}
	for name, on := range f.Lint {
		c.Lint[name] = on
	}
	c.Globals = append(c.Globals, f.Globals...)

	dir := filepath.Dir(path)
	for alias, target := range f.Aliases {
		target = pathutil.ExpandHome(target)
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, filepath.FromSlash(target))
		}
		c.Aliases[strings.ToLower(alias)] = filepath.ToSlash(target)
	}
	return nil
}

func formatError(err error) error {
	return errors.New(strings.TrimSpace(cueerrors.Details(err, nil)))
}
