package luaurc

import (
	"path/filepath"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/jward/instancemap/internal/diag"
	"github.com/jward/instancemap/internal/pathutil"
)

// DiagnosticSource tags diagnostics published for .luaurc files.
const DiagnosticSource = "luaurc"

// ParseError is a .luaurc file that failed to parse.
type ParseError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ParseError) Error() string {
	return e.Path + ": " + e.Message
}

// Cascade resolves and caches merged configuration per directory.
// Queries may run concurrently; cache inserts and Invalidate are serialized.
type Cascade struct {
	fs       afero.Fs
	sink     diag.Sink
	logger   *log.Logger
	defaults Config

	mu    sync.RWMutex
	cache map[string]Config
	errs  []ParseError
}

// CascadeOption configures a Cascade.
type CascadeOption func(*Cascade)

// WithSink publishes parse errors as diagnostics instead of collecting them.
func WithSink(s diag.Sink) CascadeOption {
	return func(c *Cascade) { c.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) CascadeOption {
	return func(c *Cascade) { c.logger = l }
}

// WithDefaults sets the record at the top of every cascade.
func WithDefaults(d Config) CascadeOption {
	return func(c *Cascade) { c.defaults = d.Clone() }
}

// NewCascade creates a Cascade reading .luaurc files from fsys.
func NewCascade(fsys afero.Fs, opts ...CascadeOption) *Cascade {
	c := &Cascade{
		fs:       fsys,
		logger:   log.Default(),
		defaults: Default(),
		cache:    make(map[string]Config),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Defaults returns the record used when no directory applies.
func (c *Cascade) Defaults() Config {
	return c.defaults.Clone()
}

// ForFile returns the configuration governing the file at realPath. A path
// with no parent directory gets the defaults, which are not cached.
func (c *Cascade) ForFile(realPath string) Config {
	dir := filepath.Dir(realPath)
	if realPath == "" || dir == "." || dir == realPath {
		return c.Defaults()
	}
	return c.Dir(dir)
}

// Dir returns the merged configuration of dir.
func (c *Cascade) Dir(dir string) Config {
	key := pathutil.Canonical(c.fs, dir)

	c.mu.RLock()
	cfg, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return cfg.Clone()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.merge(key).Clone()
}

// merge must be called with c.mu held for writing.
func (c *Cascade) merge(dir string) Config {
	if cfg, ok := c.cache[dir]; ok {
		return cfg
	}

	var cfg Config
	if parent := filepath.ToSlash(filepath.Dir(dir)); parent != dir {
		cfg = c.merge(parent).Clone()
	} else {
		cfg = c.defaults.Clone()
	}

	path := filepath.ToSlash(filepath.Join(dir, FileName))
	if data, err := afero.ReadFile(c.fs, path); err == nil {
		if err := cfg.Overlay(data, path); err != nil {
			c.report(ParseError{Path: path, Message: err.Error()})
		} else if c.sink != nil {
			c.sink.Publish(pathutil.FileURI(path).String(), nil)
		}
	}

	c.cache[dir] = cfg
	return cfg
}

func (c *Cascade) report(pe ParseError) {
	if c.sink == nil {
		c.logger.Debug("luaurc parse error", "path", pe.Path, "error", pe.Message)
		c.errs = append(c.errs, pe)
		return
	}
	c.sink.Publish(pathutil.FileURI(pe.Path).String(), []diag.Diagnostic{{
		Message:  pe.Message,
		Severity: diag.SeverityError,
		Source:   DiagnosticSource,
	}})
}

// Errors returns the parse errors collected since the last Invalidate. It
// is always empty when a sink is set.
func (c *Cascade) Errors() []ParseError {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.errs)
}

// Invalidate drops every cached record together with the collected errors.
func (c *Cascade) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.cache)
	c.errs = nil
}
