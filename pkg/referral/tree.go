package referral

import (
	"encoding/json"
	"fmt"
	"io"
)

// Walk visits n and its descendants in pre-order, passing each node's depth
// (0 for n). Returning false from fn stops the walk.
func (n *TreeNode) Walk(fn func(node *TreeNode, depth int) bool) {
	if n == nil {
		return
	}
	n.walk(fn, 0)
}

func (n *TreeNode) walk(fn func(*TreeNode, int) bool, depth int) bool {
	if !fn(n, depth) {
		return false
	}
	for _, c := range n.Children {
		if !c.walk(fn, depth+1) {
			return false
		}
	}
	return true
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *TreeNode) Count() int {
	count := 0
	n.Walk(func(*TreeNode, int) bool {
		count++
		return true
	})
	return count
}

// IDs returns every node id in pre-order.
func (n *TreeNode) IDs() []string {
	var ids []string
	n.Walk(func(node *TreeNode, _ int) bool {
		ids = append(ids, node.ID)
		return true
	})
	return ids
}

// Find returns the node with the given id, or nil if it is not in the subtree.
func (n *TreeNode) Find(id string) *TreeNode {
	var found *TreeNode
	n.Walk(func(node *TreeNode, _ int) bool {
		if node.ID == id {
			found = node
			return false
		}
		return true
	})
	return found
}

// Summary holds shape statistics for a normalized tree.
type Summary struct {
	Nodes      int   `json:"nodes"`
	Depth      int   `json:"depth"`
	PerDepth   []int `json:"per_depth"`
	LeftNodes  int   `json:"left_nodes"`
	RightNodes int   `json:"right_nodes"`
}

// Summarize computes shape statistics for the tree rooted at n.
// Depth is the number of edges on the longest root-to-leaf path.
func Summarize(n *TreeNode) Summary {
	var s Summary
	n.Walk(func(node *TreeNode, depth int) bool {
		s.Nodes++
		if depth > s.Depth {
			s.Depth = depth
		}
		for len(s.PerDepth) <= depth {
			s.PerDepth = append(s.PerDepth, 0)
		}
		s.PerDepth[depth]++
		switch node.Data.Position {
		case SideLeft:
			s.LeftNodes++
		case SideRight:
			s.RightNodes++
		}
		return true
	})
	return s
}

// WriteJSON writes the tree in the renderer's JSON shape, indented.
// A nil tree is written as JSON null.
func WriteJSON(n *TreeNode, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(n); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadJSON decodes a tree previously written with [WriteJSON].
func ReadJSON(r io.Reader) (*TreeNode, error) {
	var n *TreeNode
	if err := json.NewDecoder(r).Decode(&n); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return n, nil
}
