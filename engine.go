package instancemap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/jward/instancemap/internal/diag"
	"github.com/jward/instancemap/internal/index"
	"github.com/jward/instancemap/internal/luaurc"
	"github.com/jward/instancemap/internal/pathutil"
	"github.com/jward/instancemap/internal/refparse"
	"github.com/jward/instancemap/internal/require"
	"github.com/jward/instancemap/internal/settings"
	"github.com/jward/instancemap/internal/source"
	"github.com/jward/instancemap/internal/sourcemap"
)

// Engine maps a workspace's instance tree onto its files and answers
// resolution, source and configuration queries against it.
//
// Queries may run concurrently with each other and with Rebuild. Each query
// observes one complete index generation.
type Engine struct {
	workspaceRoot string
	fs            afero.Fs
	logger        *log.Logger
	settings      settings.Provider
	overlay       source.Overlay
	sink          diag.Sink
	workers       int

	configDefaults *luaurc.Config
	configs        *luaurc.Cascade

	// mu serializes rebuilds and guards the inputs they are built from.
	mu          sync.Mutex
	description []byte
	pluginInfo  *sourcemap.PluginNode

	current atomic.Pointer[index.Index]
}

// Option configures an Engine.
type Option func(*Engine)

// WithFS sets the filesystem the Engine reads from. Defaults to the OS
// filesystem.
func WithFS(fsys afero.Fs) Option {
	return func(e *Engine) { e.fs = fsys }
}

// WithLogger sets the logger. The default logs warnings and errors to stderr.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSettings supplies workspace settings. Without a provider string
// requires are resolved relative to the workspace root with no aliases.
func WithSettings(p settings.Provider) Option {
	return func(e *Engine) { e.settings = p }
}

// WithOverlay supplies the editor's open documents.
func WithOverlay(o source.Overlay) Option {
	return func(e *Engine) { e.overlay = o }
}

// WithDiagnostics publishes .luaurc parse errors to s instead of collecting
// them for ConfigErrors.
func WithDiagnostics(s diag.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithPluginInfo merges the Studio plugin's instance tree into every
// rebuilt tree.
func WithPluginInfo(info *sourcemap.PluginNode) Option {
	return func(e *Engine) { e.pluginInfo = info }
}

// WithWorkers bounds the number of goroutines used by ScanDependencies.
// Defaults to the number of CPUs.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithConfigDefaults sets the configuration used where no .luaurc applies.
func WithConfigDefaults(c luaurc.Config) Option {
	return func(e *Engine) { e.configDefaults = &c }
}

// New creates an Engine for the workspace rooted at workspaceRoot. The
// Engine starts with an empty tree; call Rebuild or LoadSourcemap.
func New(workspaceRoot string, opts ...Option) (*Engine, error) {
	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("instancemap: workspace root: %w", err)
	}

	e := &Engine{
		workspaceRoot: root,
		fs:            afero.NewOsFs(),
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "instancemap",
			Level:  log.WarnLevel,
		}),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}

	cascadeOpts := []luaurc.CascadeOption{luaurc.WithLogger(e.logger)}
	if e.sink != nil {
		cascadeOpts = append(cascadeOpts, luaurc.WithSink(e.sink))
	}
	if e.configDefaults != nil {
		cascadeOpts = append(cascadeOpts, luaurc.WithDefaults(*e.configDefaults))
	}
	e.configs = luaurc.NewCascade(e.fs, cascadeOpts...)
	e.current.Store(index.Empty(root, e.fs))
	return e, nil
}

// WorkspaceRoot returns the absolute workspace root.
func (e *Engine) WorkspaceRoot() string {
	return e.workspaceRoot
}

// Settings returns the current workspace settings, or nil without a
// provider.
func (e *Engine) Settings() *settings.Settings {
	if e.settings == nil {
		return nil
	}
	return e.settings.Settings(e.workspaceRoot)
}

// RebuildResult summarizes a successful rebuild.
type RebuildResult struct {
	BaseName string `json:"baseName"`
	Nodes    int    `json:"nodes"`
	Scripts  int    `json:"scripts"`
	// PluginSkipped is set when plugin info was supplied but the tree root
	// is not a DataModel.
	PluginSkipped bool `json:"pluginSkipped,omitempty"`
}

// Rebuild replaces the instance tree with one parsed from description. On
// error the previous tree keeps serving queries.
func (e *Engine) Rebuild(description []byte) (*RebuildResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, err := e.rebuildLocked(description)
	if err != nil {
		return nil, err
	}
	e.description = bytes.Clone(description)
	return res, nil
}

// SetPluginInfo replaces the plugin's instance tree and rebuilds from the
// last description, if any. A nil info removes it.
func (e *Engine) SetPluginInfo(info *sourcemap.PluginNode) (*RebuildResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pluginInfo = info
	if e.description == nil {
		return nil, nil
	}
	return e.rebuildLocked(e.description)
}

func (e *Engine) rebuildLocked(description []byte) (*RebuildResult, error) {
	tree, err := sourcemap.Parse(description)
	if err != nil {
		e.logger.Error("cannot rebuild instance tree, keeping previous tree", "error", err)
		return nil, fmt.Errorf("instancemap: rebuild: %w", err)
	}

	res := &RebuildResult{BaseName: tree.BaseName()}
	if err := tree.ApplyPluginInfo(e.pluginInfo); err != nil {
		if !errors.Is(err, sourcemap.ErrNotDataModel) {
			return nil, fmt.Errorf("instancemap: rebuild: %w", err)
		}
		e.logger.Warn("skipping plugin info", "root", tree.Root.ClassName, "error", err)
		res.PluginSkipped = true
	}

	ix := index.Build(tree, res.BaseName, e.workspaceRoot, e.fs)
	res.Nodes = tree.Len()
	res.Scripts = len(ix.RealPaths())
	e.current.Store(ix)

	e.logger.Info("rebuilt instance tree", "base", res.BaseName, "nodes", res.Nodes, "scripts", res.Scripts)
	return res, nil
}

// LoadSourcemap reads the sourcemap file named by the workspace settings
// (sourcemap.json by default) and rebuilds from it.
func (e *Engine) LoadSourcemap() (*RebuildResult, error) {
	name := settings.DefaultSourcemapFile
	if s := e.Settings(); s != nil && s.SourcemapFile != "" {
		name = s.SourcemapFile
	}
	return e.LoadSourcemapFile(name)
}

// LoadSourcemapFile reads path, relative to the workspace root unless
// absolute, and rebuilds from it.
func (e *Engine) LoadSourcemapFile(path string) (*RebuildResult, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.workspaceRoot, path)
	}
	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return nil, fmt.Errorf("instancemap: read sourcemap: %w", err)
	}
	return e.Rebuild(data)
}

func (e *Engine) index() *index.Index {
	return e.current.Load()
}

func (e *Engine) resolver(ix *index.Index) *require.Resolver {
	return require.NewResolver(e.workspaceRoot, ix, e.Settings(), e.fs)
}

func (e *Engine) loader(ix *index.Index) *source.Loader {
	return source.NewLoader(ix, e.fs, e.overlay, e.logger)
}

// ModuleNameForURI translates a document URI into a module identity:
// the virtual path of the file if it is in the tree, otherwise its path.
// URIs of other schemes are their own identity.
func (e *Engine) ModuleNameForURI(uri string) (string, error) {
	u, err := pathutil.ParseURI(uri)
	if err != nil {
		return "", fmt.Errorf("instancemap: %w", err)
	}
	if u.Scheme != "file" {
		return u.String(), nil
	}
	p := u.FSPath()
	if vp, ok := e.index().ResolveToVirtualPath(p); ok {
		return vp, nil
	}
	return p, nil
}

// ResolveReference resolves one step of a reference expression relative to
// the module at, which may be nil.
func (e *Engine) ResolveReference(at *ModuleInfo, expr Expr) (ModuleInfo, bool) {
	return e.resolver(e.index()).Resolve(at, expr)
}

// ResolveChain resolves a complete reference expression as written in the
// module from.
func (e *Engine) ResolveChain(from string, expr Expr) (ModuleInfo, bool) {
	return e.resolver(e.index()).ResolveChain(from, expr)
}

// ResolveExpression parses text, such as `script.Parent.Utils`, and
// resolves it as written in the module from.
func (e *Engine) ResolveExpression(ctx context.Context, from, text string) (ModuleInfo, bool, error) {
	p := refparse.NewParser()
	defer p.Close()
	expr, err := p.ParseExpr(ctx, text)
	if err != nil {
		return ModuleInfo{}, false, fmt.Errorf("instancemap: %w", err)
	}
	info, ok := e.ResolveChain(from, expr)
	return info, ok, nil
}

// LoadSource returns the text of a module.
func (e *Engine) LoadSource(name string) (Source, bool) {
	return e.loader(e.index()).Load(name)
}

// ConfigFor returns the merged .luaurc configuration governing a module.
// Modules without a file on disk get the defaults.
func (e *Engine) ConfigFor(name string) Config {
	if strings.HasPrefix(name, source.UntitledScheme+":") {
		return e.configs.Defaults()
	}
	realPath, ok := e.index().ResolveToRealPath(name)
	if !ok {
		return e.configs.Defaults()
	}
	return e.configs.ForFile(realPath)
}

// InvalidateConfigCache drops cached configuration and collected errors.
func (e *Engine) InvalidateConfigCache() {
	e.configs.Invalidate()
}

// ConfigErrors returns .luaurc parse errors collected since the last
// invalidation. Empty when a diagnostics sink is set.
func (e *Engine) ConfigErrors() []ConfigError {
	return e.configs.Errors()
}

// HumanReadableName renders a virtual identity with its file as
// "src/shared/Utils.luau [game/ReplicatedStorage/Utils]". Other identities
// are returned unchanged.
func (e *Engine) HumanReadableName(name string) string {
	if !pathutil.IsVirtualPath(name) {
		return name
	}
	realPath, ok := e.index().ResolveToRealPath(name)
	if !ok {
		return name
	}
	rel, err := filepath.Rel(e.workspaceRoot, filepath.FromSlash(realPath))
	if err != nil {
		rel = realPath
	}
	return filepath.ToSlash(rel) + " [" + name + "]"
}

// ResolveToVirtualPath maps a module identity to its virtual path.
func (e *Engine) ResolveToVirtualPath(name string) (string, bool) {
	return e.index().ResolveToVirtualPath(name)
}

// ResolveToRealPath maps a module identity to its file path.
func (e *Engine) ResolveToRealPath(name string) (string, bool) {
	return e.index().ResolveToRealPath(name)
}

// Module describes one node of the current tree.
type Module struct {
	VirtualPath string `json:"virtualPath"`
	Name        string `json:"name"`
	ClassName   string `json:"className"`
	RealPath    string `json:"realPath,omitempty"`
	Kind        string `json:"kind"`
}

// Modules lists every node of the current tree ordered by virtual path.
func (e *Engine) Modules() []Module {
	ix := e.index()
	paths := ix.VirtualPaths()
	out := make([]Module, 0, len(paths))
	for _, vp := range paths {
		n, _ := ix.NodeForVirtualPath(vp)
		m := Module{
			VirtualPath: vp,
			Name:        n.Name,
			ClassName:   n.ClassName,
			Kind:        n.Kind().String(),
		}
		if realPath, ok := ix.RealPathOf(n); ok {
			m.RealPath = realPath
		}
		out = append(out, m)
	}
	return out
}
