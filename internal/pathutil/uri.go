package pathutil

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// URI is a parsed document location as sent by an editor.
type URI struct {
	Scheme string
	Path   string
	// Opaque holds the remainder of non-hierarchical URIs such as
	// "untitled:Untitled-1".
	Opaque string
}

// ParseURI parses an editor URI. Windows drive letters in file URIs are
// lowercased so that equal paths produce equal URIs.
func ParseURI(raw string) (URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URI{}, fmt.Errorf("parse uri %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return URI{}, fmt.Errorf("parse uri %q: missing scheme", raw)
	}
	out := URI{Scheme: u.Scheme, Path: u.Path, Opaque: u.Opaque}
	if out.Scheme == "file" {
		out.Path = normalizeDrive(out.Path)
	}
	return out, nil
}

// FileURI builds a file URI for an absolute filesystem path.
func FileURI(path string) URI {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return URI{Scheme: "file", Path: normalizeDrive(p)}
}

// FSPath returns the filesystem path of a file URI, using forward slashes.
func (u URI) FSPath() string {
	p := u.Path
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		// "/c:/x" -> "c:/x"
		p = p[1:]
	}
	return p
}

func (u URI) String() string {
	if u.Opaque != "" {
		return u.Scheme + ":" + u.Opaque
	}
	out := url.URL{Scheme: u.Scheme, Path: u.Path}
	if u.Scheme == "file" {
		// url.URL omits the empty authority; file URIs always carry it.
		return "file://" + out.EscapedPath()
	}
	return out.String()
}

func normalizeDrive(p string) string {
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		return "/" + strings.ToLower(p[1:2]) + p[2:]
	}
	return p
}
