// Package pathutil holds the path arithmetic shared by the index, resolver,
// cascade and loader: canonicalization, case folding, and the virtual-path
// predicate that decides which index a module identity is looked up in.
package pathutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
)

// Virtual path roots. DataModel trees are rooted at "game"; partial project
// trees are rooted at "ProjectRoot".
const (
	GameRoot    = "game"
	ProjectRoot = "ProjectRoot"
)

// IsVirtualPath reports whether name addresses a node of the instance tree
// rather than a file on disk.
func IsVirtualPath(name string) bool {
	return hasRoot(name, GameRoot) || hasRoot(name, ProjectRoot)
}

func hasRoot(name, root string) bool {
	return name == root || strings.HasPrefix(name, root+"/")
}

// ParentPath returns name with its last slash-separated segment removed.
func ParentPath(name string) (string, bool) {
	if name == "" || name == "." || name == "/" {
		return "", false
	}
	i := strings.LastIndex(name, "/")
	if i <= 0 {
		return "", false
	}
	return name[:i], true
}

// AncestorPath walks upward from the parent of name and returns the path
// truncated at the nearest segment equal to ancestor. The node itself is
// never its own ancestor.
func AncestorPath(name, ancestor string) (string, bool) {
	parent, ok := ParentPath(name)
	if !ok {
		return "", false
	}
	segments := strings.Split(parent, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == ancestor {
			return strings.Join(segments[:i+1], "/"), true
		}
	}
	return "", false
}

// FoldCase lowercases s on platforms whose filesystems are case-insensitive.
func FoldCase(s string) string {
	return foldCaseFor(runtime.GOOS, s)
}

func foldCaseFor(goos, s string) string {
	switch goos {
	case "windows", "darwin":
		return strings.ToLower(s)
	}
	return s
}

// WeaklyCanonical makes p absolute and clean, resolving symlinks for the
// longest prefix of p that exists. Non-existent trailing components are
// kept as written. Symlinks are only resolved on the OS filesystem; other
// afero filesystems get a lexical result.
func WeaklyCanonical(fsys afero.Fs, p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if _, ok := fsys.(*afero.OsFs); !ok {
		return filepath.ToSlash(abs), nil
	}

	existing := abs
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(filepath.Join(append([]string{resolved}, rest...)...)), nil
}

// Canonical is WeaklyCanonical with the fallback used everywhere a path is
// used as an index key: if canonicalization fails the cleaned input is
// returned unchanged.
func Canonical(fsys afero.Fs, p string) string {
	c, err := WeaklyCanonical(fsys, p)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p))
	}
	return c
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
