package sourcemap

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotDataModel is returned by ApplyPluginInfo when the tree root is not a
// DataModel. The tree is left unchanged.
var ErrNotDataModel = errors.New("plugin information applies only to a DataModel root")

// PluginNode is the instance tree reported by the Studio companion plugin.
// It describes instances that exist at runtime, including ones with no file
// on disk.
type PluginNode struct {
	Name      string        `json:"Name"`
	ClassName string        `json:"ClassName"`
	Children  []*PluginNode `json:"Children"`
}

// ParsePluginInfo decodes the plugin's JSON payload.
func ParsePluginInfo(data []byte) (*PluginNode, error) {
	var info *PluginNode
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse plugin info: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("parse plugin info: payload is empty")
	}
	return info, nil
}

// ApplyPluginInfo merges info into the tree. Children matched by name are
// merged recursively; unmatched plugin children become file-less nodes.
// Must be called before AssignPaths.
func (t *Tree) ApplyPluginInfo(info *PluginNode) error {
	if info == nil {
		return nil
	}
	if t.Root.ClassName != DataModelClass {
		return ErrNotDataModel
	}
	t.mergePlugin(t.Root, info)
	return nil
}

func (t *Tree) mergePlugin(n *Node, info *PluginNode) {
	for _, pc := range info.Children {
		if pc == nil || pc.Name == "" {
			continue
		}
		var match *Node
		for _, c := range n.Children {
			if c.Name == pc.Name {
				match = c
				break
			}
		}
		if match == nil {
			match = &Node{Name: pc.Name, ClassName: pc.ClassName}
			t.add(match, n.id)
			n.Children = append(n.Children, match)
		}
		t.mergePlugin(match, pc)
	}
}
