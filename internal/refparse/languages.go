package refparse

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/lua"
)

// sourceExts are the file extensions parsed as Luau source. Luau is a
// superset of Lua 5.1; the Lua grammar recovers around type annotations
// with error nodes, which never contain the call shapes we look for.
var sourceExts = map[string]bool{
	".lua":  true,
	".luau": true,
}

var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Language returns the tree-sitter grammar used for Luau sources.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = lua.GetLanguage()
	})
	return grammar
}

// IsSourceFile reports whether path has a parseable source extension.
func IsSourceFile(path string) bool {
	return sourceExts[strings.ToLower(filepath.Ext(path))]
}
