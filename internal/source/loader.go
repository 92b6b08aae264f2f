// Package source produces the text of a module: from an open editor buffer,
// from disk, or synthesized from a JSON data file.
package source

import (
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/jward/instancemap/internal/index"
	"github.com/jward/instancemap/internal/pathutil"
	"github.com/jward/instancemap/internal/sourcemap"
)

// UntitledScheme is the URI scheme of buffers that have never been saved.
const UntitledScheme = "untitled"

// Overlay is the set of documents open in the editor. Keys are overlay
// keys as produced by OverlayKey.
type Overlay interface {
	TextFor(key string) (string, bool)
}

// MapOverlay is an Overlay backed by a map.
type MapOverlay map[string]string

// TextFor implements Overlay.
func (m MapOverlay) TextFor(key string) (string, bool) {
	text, ok := m[key]
	return text, ok
}

// OverlayKey returns the overlay key of a file: its file URI, case-folded
// where the filesystem is case-insensitive.
func OverlayKey(realPath string) string {
	return pathutil.FoldCase(pathutil.FileURI(realPath).String())
}

// Source is the loaded text of a module.
type Source struct {
	Text string
	Kind sourcemap.ModuleKind
}

// Loader loads module sources against one index generation.
type Loader struct {
	index   *index.Index
	fs      afero.Fs
	overlay Overlay
	logger  *log.Logger
}

// NewLoader creates a Loader. overlay may be nil.
func NewLoader(ix *index.Index, fsys afero.Fs, overlay Overlay, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{index: ix, fs: fsys, overlay: overlay, logger: logger}
}

// Load returns the source of the module name. Editor buffers take
// precedence over disk. JSON files load as generated data modules; a
// malformed one is logged and not loaded.
func (l *Loader) Load(name string) (Source, bool) {
	if strings.HasPrefix(name, UntitledScheme+":") {
		if l.overlay == nil {
			return Source{}, false
		}
		text, ok := l.overlay.TextFor(name)
		return Source{Text: text, Kind: sourcemap.KindModule}, ok
	}

	var kind sourcemap.ModuleKind
	if pathutil.IsVirtualPath(name) {
		node, ok := l.index.NodeForVirtualPath(name)
		if !ok {
			return Source{}, false
		}
		kind = node.Kind()
	}

	realPath, ok := l.index.ResolveToRealPath(name)
	if !ok {
		return Source{}, false
	}
	if !pathutil.IsVirtualPath(name) {
		kind = sourcemap.KindFromPath(realPath)
	}

	if l.overlay != nil {
		if text, ok := l.overlay.TextFor(OverlayKey(realPath)); ok {
			return Source{Text: text, Kind: kind}, true
		}
	}

	data, err := afero.ReadFile(l.fs, realPath)
	if err != nil {
		return Source{}, false
	}

	if strings.EqualFold(filepath.Ext(realPath), ".json") {
		text, err := DataModule(realPath, data)
		if err != nil {
			l.logger.Warn("cannot load data module", "path", realPath, "error", err)
			return Source{}, false
		}
		return Source{Text: text, Kind: kind}, true
	}
	return Source{Text: string(data), Kind: kind}, true
}
