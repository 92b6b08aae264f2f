// Package instancemap maps a Luau project's instance hierarchy onto the
// files that implement it, and resolves the references scripts make to
// each other.
//
// # Model
//
// Scripts address each other by navigating a tree of named instances
// (script.Parent.Utils, game:GetService("ReplicatedStorage")) rather than by
// file path. An external tool describes that tree as a sourcemap: a JSON
// tree of {name, className, filePaths, children}. The [Engine] parses the
// sourcemap into an instance tree and indexes it two ways:
//
//   - virtual path, such as "game/ReplicatedStorage/Utils", to node
//   - canonical file path to node
//
// A module identity is either kind of path. Identities rooted at "game"
// (DataModel trees) or "ProjectRoot" (partial project trees) are virtual;
// everything else is a file path.
//
// # Usage
//
//	e, err := instancemap.New("path/to/project")
//	if err != nil { ... }
//	if _, err := e.LoadSourcemap(); err != nil { ... }
//
//	name, _ := e.ModuleNameForURI("file:///path/to/project/src/shared/Utils.luau")
//	target, ok, err := e.ResolveExpression(ctx, name, "script.Parent.Config")
//	src, ok := e.LoadSource(target.Name)
//	cfg := e.ConfigFor(target.Name)
//
// # Operations
//
//   - [Engine.Rebuild] replaces the tree from a sourcemap. A malformed
//     sourcemap is rejected and the previous tree keeps serving.
//   - [Engine.ResolveReference] resolves one step of a reference expression;
//     [Engine.ResolveChain] and [Engine.ResolveExpression] resolve a whole
//     expression.
//   - [Engine.LoadSource] returns module text, preferring open editor
//     buffers and converting JSON files into data modules.
//   - [Engine.ConfigFor] merges .luaurc files from the filesystem root down
//     to the module's directory, caching each directory.
//   - [Engine.ScanDependencies] and [Engine.Export] extract every require
//     call in the tree with tree-sitter and record the resolved edges.
//
// Reference expressions that cannot be resolved statically yield no result
// rather than an error.
package instancemap
