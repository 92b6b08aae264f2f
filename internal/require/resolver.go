package require

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/jward/instancemap/internal/pathutil"
	"github.com/jward/instancemap/internal/settings"
)

// Navigation methods that resolve to a child or ancestor.
const (
	methodGetService        = "GetService"
	methodWaitForChild      = "WaitForChild"
	methodFindFirstChild    = "FindFirstChild"
	methodFindFirstAncestor = "FindFirstAncestor"
)

// Module file naming.
const (
	PrimaryExt   = ".luau"
	SecondaryExt = ".lua"
	// DefaultModule is the file loaded when a require names a directory.
	DefaultModule = "init"
)

// remaps rewrite the local player's runtime view onto the shared containers
// its contents are cloned from.
var remaps = []struct{ from, to string }{
	{"game/Players/LocalPlayer/PlayerScripts", "game/StarterPlayer/StarterPlayerScripts"},
	{"game/Players/LocalPlayer/PlayerGui", "game/StarterGui"},
	{"game/Players/LocalPlayer/StarterGear", "game/StarterPack"},
}

// ModuleInfo is a resolved module identity. Optional marks results that may
// be absent at runtime.
type ModuleInfo struct {
	Name     string `json:"name"`
	Optional bool   `json:"optional,omitempty"`
}

// PathMapper translates identities between the virtual tree and disk.
type PathMapper interface {
	ResolveToVirtualPath(name string) (string, bool)
	ResolveToRealPath(name string) (string, bool)
}

// Resolver resolves reference expressions against one index generation.
type Resolver struct {
	workspaceRoot string
	paths         PathMapper
	settings      *settings.Settings
	fs            afero.Fs
}

// NewResolver creates a Resolver. s may be nil when no settings are
// available, in which case requires are root-relative with no aliases.
func NewResolver(workspaceRoot string, paths PathMapper, s *settings.Settings, fsys afero.Fs) *Resolver {
	return &Resolver{
		workspaceRoot: workspaceRoot,
		paths:         paths,
		settings:      s,
		fs:            fsys,
	}
}

// Resolve interprets one step of a reference expression. context stands for
// the already-resolved object the expression navigates from (or the
// requiring module, for leaves); it may be nil. Any shape it cannot resolve
// yields false.
func (r *Resolver) Resolve(context *ModuleInfo, e Expr) (ModuleInfo, bool) {
	switch e := e.(type) {
	case StringLit:
		return ModuleInfo{Name: r.resolveString(context, e.Value)}, true

	case Global:
		switch e.Name {
		case "game":
			return ModuleInfo{Name: pathutil.GameRoot}, true
		case "script":
			if context == nil {
				return ModuleInfo{}, false
			}
			if vp, ok := r.paths.ResolveToVirtualPath(context.Name); ok {
				return ModuleInfo{Name: vp}, true
			}
		}

	case IndexName:
		if context == nil {
			return ModuleInfo{}, false
		}
		if e.Name == "Parent" {
			parent, ok := pathutil.ParentPath(context.Name)
			if !ok {
				return ModuleInfo{}, false
			}
			return ModuleInfo{Name: parent, Optional: context.Optional}, true
		}
		return child(context, e.Name), true

	case IndexExpr:
		key, ok := e.Key.(StringLit)
		if !ok || context == nil {
			return ModuleInfo{}, false
		}
		return child(context, key.Value), true

	case Call:
		if !e.Self || len(e.Args) == 0 || context == nil {
			return ModuleInfo{}, false
		}
		arg, ok := e.Args[0].(StringLit)
		if !ok {
			return ModuleInfo{}, false
		}
		switch e.Method {
		case methodGetService:
			if context.Name == pathutil.GameRoot {
				return ModuleInfo{Name: pathutil.GameRoot + "/" + arg.Value}, true
			}
		case methodWaitForChild:
			return child(context, arg.Value), true
		case methodFindFirstChild:
			// The recursive form is not followed.
			if len(e.Args) == 1 {
				return child(context, arg.Value), true
			}
		case methodFindFirstAncestor:
			if ancestor, ok := pathutil.AncestorPath(context.Name, arg.Value); ok {
				return ModuleInfo{Name: ancestor, Optional: context.Optional}, true
			}
		}
	}
	return ModuleInfo{}, false
}

// ResolveChain resolves a complete expression relative to the module from,
// resolving each object before the step that navigates from it.
func (r *Resolver) ResolveChain(from string, e Expr) (ModuleInfo, bool) {
	obj := Object(e)
	if obj == nil {
		return r.Resolve(&ModuleInfo{Name: from}, e)
	}
	ctx, ok := r.ResolveChain(from, obj)
	if !ok {
		return ModuleInfo{}, false
	}
	return r.Resolve(&ctx, e)
}

func child(context *ModuleInfo, name string) ModuleInfo {
	return ModuleInfo{Name: remap(context.Name) + "/" + name, Optional: context.Optional}
}

func remap(name string) string {
	for _, m := range remaps {
		if name == m.from {
			return m.to
		}
		if strings.HasPrefix(name, m.from+"/") {
			return m.to + name[len(m.from):]
		}
	}
	return name
}

func (r *Resolver) requireSettings() settings.Require {
	if r.settings == nil {
		return settings.Require{Mode: settings.RelativeToWorkspaceRoot}
	}
	return r.settings.Require
}

func (r *Resolver) basePath(context *ModuleInfo) string {
	if r.requireSettings().Mode != settings.RelativeToFile || context == nil {
		return r.workspaceRoot
	}
	if p, ok := r.paths.ResolveToRealPath(context.Name); ok {
		return filepath.Dir(p)
	}
	return r.workspaceRoot
}

func (r *Resolver) resolveString(context *ModuleInfo, literal string) string {
	cfg := r.requireSettings()

	var target string
	if alias, ok := cfg.FileAliases[literal]; ok {
		target = r.aliasTarget(alias)
	} else if prefix, dir, ok := longestPrefix(cfg.DirectoryAliases, literal); ok {
		target = r.aliasTarget(dir)
		if rest := literal[len(prefix):]; rest != "" {
			target = filepath.Join(target, filepath.FromSlash(rest))
		}
	} else if lit := filepath.FromSlash(literal); filepath.IsAbs(lit) {
		target = lit
	} else {
		target = filepath.Join(r.basePath(context), lit)
	}

	if isDir, _ := afero.IsDir(r.fs, target); isDir {
		target = filepath.Join(target, DefaultModule)
	}

	switch strings.ToLower(filepath.Ext(target)) {
	case PrimaryExt, SecondaryExt, ".json":
	default:
		candidate := target + PrimaryExt
		if ok, _ := afero.Exists(r.fs, candidate); !ok {
			candidate = target + SecondaryExt
		}
		target = candidate
	}
	return pathutil.Canonical(r.fs, target)
}

// aliasTarget expands "~" and anchors relative alias targets at the
// workspace root.
func (r *Resolver) aliasTarget(p string) string {
	p = filepath.FromSlash(pathutil.ExpandHome(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.workspaceRoot, p)
}

func longestPrefix(aliases map[string]string, s string) (prefix, target string, ok bool) {
	for alias, dir := range aliases {
		if alias == "" || !strings.HasPrefix(s, alias) {
			continue
		}
		if !ok || len(alias) > len(prefix) {
			prefix, target, ok = alias, dir, true
		}
	}
	return prefix, target, ok
}
