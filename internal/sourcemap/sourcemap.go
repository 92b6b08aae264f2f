// Package sourcemap builds the instance tree from the structural
// description ("sourcemap") produced by an external project tool.
//
// A Tree owns its nodes in an arena. Children are held by pointer from their
// parent; the upward link is an arena index, so there is exactly one owning
// path to every node.
package sourcemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jward/instancemap/internal/pathutil"
)

// DataModelClass is the class name of a full application root.
const DataModelClass = "DataModel"

// NodeID indexes a node in its Tree's arena.
type NodeID int

// NoParent is the parent of the root node.
const NoParent NodeID = -1

// ModuleKind distinguishes ordinary modules from entry-point scripts.
type ModuleKind int

const (
	KindModule ModuleKind = iota
	KindScript
)

func (k ModuleKind) String() string {
	if k == KindScript {
		return "script"
	}
	return "module"
}

// Node is one instance of the virtual hierarchy.
type Node struct {
	Name      string
	ClassName string
	// FilePaths are relative to the directory the description was produced in.
	FilePaths []string
	Children  []*Node

	// VirtualPath is assigned by AssignPaths during index rebuild.
	VirtualPath string

	id     NodeID
	parent NodeID
}

// ID returns the node's arena index.
func (n *Node) ID() NodeID { return n.id }

// ScriptFilePath returns the file backing this node's source, if any: the
// first Lua or Luau file, or a JSON file for module scripts.
func (n *Node) ScriptFilePath() (string, bool) {
	for _, p := range n.FilePaths {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".lua", ".luau":
			return p, true
		case ".json":
			base := strings.ToLower(filepath.Base(p))
			if n.ClassName == "ModuleScript" &&
				!strings.HasSuffix(base, ".project.json") &&
				!strings.HasSuffix(base, ".meta.json") {
				return p, true
			}
		}
	}
	return "", false
}

// Kind reports whether the node runs as an entry-point script.
func (n *Node) Kind() ModuleKind {
	switch n.ClassName {
	case "Script", "LocalScript":
		return KindScript
	}
	return KindModule
}

// KindFromPath classifies a file that is not part of the instance tree by
// its name: "*.server.luau" and "*.client.luau" (and their .lua variants)
// are entry-point scripts.
func KindFromPath(path string) ModuleKind {
	base := strings.ToLower(filepath.Base(path))
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".luau"), ".lua")
	if strings.HasSuffix(base, ".server") || strings.HasSuffix(base, ".client") {
		return KindScript
	}
	return KindModule
}

// Tree is a fully built instance hierarchy.
type Tree struct {
	Root  *Node
	nodes []*Node
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Parent returns n's parent, or nil for the root.
func (t *Tree) Parent(n *Node) *Node {
	return t.Node(n.parent)
}

// BaseName is the virtual path of the tree's root.
func (t *Tree) BaseName() string {
	if t.Root.ClassName == DataModelClass {
		return pathutil.GameRoot
	}
	return pathutil.ProjectRoot
}

// AssignPaths walks the tree in pre-order from the root, linking each child
// to its parent and setting VirtualPath to parent path + "/" + name. visit is
// called once per node after its path is assigned.
func (t *Tree) AssignPaths(base string, visit func(*Node)) {
	var walk func(n *Node, path string)
	walk = func(n *Node, path string) {
		n.VirtualPath = path
		if visit != nil {
			visit(n)
		}
		for _, child := range n.Children {
			child.parent = n.id
			walk(child, path+"/"+child.Name)
		}
	}
	t.Root.parent = NoParent
	walk(t.Root, base)
}

func (t *Tree) add(n *Node, parent NodeID) {
	n.id = NodeID(len(t.nodes))
	n.parent = parent
	t.nodes = append(t.nodes, n)
}

// ErrMalformedDescription is the sentinel wrapped by MalformedDescriptionError.
var ErrMalformedDescription = errors.New("malformed structural description")

// MalformedDescriptionError reports where in the description parsing failed.
type MalformedDescriptionError struct {
	// Path locates the offending node, e.g. "root.children[2]".
	Path   string
	Reason string
	Err    error
}

func (e *MalformedDescriptionError) Error() string {
	msg := ErrMalformedDescription.Error()
	if e.Path != "" {
		msg += " at " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedDescriptionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedDescription, e.Err}
	}
	return []error{ErrMalformedDescription}
}

type rawNode struct {
	Name      *string    `json:"name"`
	ClassName *string    `json:"className"`
	FilePaths []string   `json:"filePaths"`
	Children  []*rawNode `json:"children"`
}

// Parse builds a Tree from a JSON structural description.
func Parse(data []byte) (*Tree, error) {
	var root *rawNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &MalformedDescriptionError{Reason: "invalid JSON", Err: err}
	}
	if root == nil {
		return nil, &MalformedDescriptionError{Path: "root", Reason: "description is empty"}
	}

	t := &Tree{}
	n, err := t.build(root, "root", NoParent)
	if err != nil {
		return nil, err
	}
	t.Root = n
	return t, nil
}

func (t *Tree) build(raw *rawNode, at string, parent NodeID) (*Node, error) {
	if raw == nil {
		return nil, &MalformedDescriptionError{Path: at, Reason: "child is null"}
	}
	if raw.Name == nil {
		return nil, &MalformedDescriptionError{Path: at, Reason: `missing "name"`}
	}
	if raw.ClassName == nil || *raw.ClassName == "" {
		return nil, &MalformedDescriptionError{Path: at, Reason: `missing "className"`}
	}
	if parent != NoParent && (*raw.Name == "" || strings.Contains(*raw.Name, "/")) {
		return nil, &MalformedDescriptionError{Path: at, Reason: fmt.Sprintf("invalid name %q", *raw.Name)}
	}

	n := &Node{
		Name:      *raw.Name,
		ClassName: *raw.ClassName,
		FilePaths: raw.FilePaths,
	}
	t.add(n, parent)

	for i, rc := range raw.Children {
		child, err := t.build(rc, fmt.Sprintf("%s.children[%d]", at, i), n.id)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}
