// Package index provides the approximate nearest-neighbour structure used to
// look up keyframe descriptors at match time.
//
// A ClusterTree is built offline by recursive randomized k-medoid partitioning
// of a point set's descriptors and searched online with a best-bin-first
// traversal. The tree stores only point indices; descriptors stay in the
// caller's columnar point set and are passed in at build and search time.
//
// Nodes live in a single arena slice. A leaf owns a contiguous range of the
// flat Indices slice; an internal node owns up to MaxBranching child node
// indices. Node 0 is the root. Trees are never mutated after Build returns and
// are safe for concurrent searches.
package index

import (
	"errors"
	"fmt"
)

// MaxBranching is the capacity of an internal node's child list.
const MaxBranching = 8

// ErrCorruptTree is returned by Validate when the arena does not describe a
// tree in which every point index appears in exactly one leaf.
var ErrCorruptTree = errors.New("corrupt cluster tree")

// Node is one arena entry: either a leaf or an internal node.
type Node struct {
	// Leaf selects the variant.
	Leaf bool `json:"leaf"`

	// Representative is the point index whose descriptor stands for this
	// node when its parent ranks children. It is -1 for the root.
	Representative int32 `json:"rep"`

	// Start and End delimit a leaf's point indices in Tree.Indices.
	Start int32 `json:"start,omitempty"`
	End   int32 `json:"end,omitempty"`

	// Children holds NumChildren arena indices of an internal node.
	Children    [MaxBranching]int32 `json:"children"`
	NumChildren uint8               `json:"numChildren,omitempty"`
}

// ChildIndices returns the populated part of the child list.
func (n *Node) ChildIndices() []int32 {
	return n.Children[:n.NumChildren]
}

// Tree is an arena-backed cluster tree. Nodes[0] is the root.
type Tree struct {
	Nodes   []Node  `json:"nodes"`
	Indices []int32 `json:"indices"`
}

// Leaves returns the number of leaf nodes.
func (t *Tree) Leaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].Leaf {
			n++
		}
	}
	return n
}

// Depth returns the length of the longest root-to-leaf path, counting nodes.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(id int32) int
	walk = func(id int32) int {
		n := &t.Nodes[id]
		deepest := 0
		for _, c := range n.ChildIndices() {
			if d := walk(c); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	}
	return walk(0)
}

// Validate checks the arena against a point set of numPoints points.
//
// It verifies that child and representative references are in range, that
// every node other than the root has exactly one parent, that children always
// follow their parent in the arena (so the structure is acyclic), and that every
// point index in [0, numPoints) appears in exactly one leaf.
func (t *Tree) Validate(numPoints int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: no root node", ErrCorruptTree)
	}
	if t.Nodes[0].Representative != -1 {
		return fmt.Errorf("%w: root has representative %d", ErrCorruptTree, t.Nodes[0].Representative)
	}

	parents := make([]int, len(t.Nodes))
	seen := make([]int, numPoints)

	for id := range t.Nodes {
		n := &t.Nodes[id]
		if n.Leaf {
			if n.Start < 0 || n.End < n.Start || int(n.End) > len(t.Indices) {
				return fmt.Errorf("%w: leaf %d range [%d,%d) outside %d indices", ErrCorruptTree, id, n.Start, n.End, len(t.Indices))
			}
			for _, p := range t.Indices[n.Start:n.End] {
				if p < 0 || int(p) >= numPoints {
					return fmt.Errorf("%w: leaf %d holds point %d of %d", ErrCorruptTree, id, p, numPoints)
				}
				seen[p]++
			}
			continue
		}

		if n.NumChildren == 0 || int(n.NumChildren) > MaxBranching {
			return fmt.Errorf("%w: internal node %d has %d children", ErrCorruptTree, id, n.NumChildren)
		}
		for _, c := range n.ChildIndices() {
			if int(c) <= id || int(c) >= len(t.Nodes) {
				return fmt.Errorf("%w: node %d references child %d", ErrCorruptTree, id, c)
			}
			rep := t.Nodes[c].Representative
			if rep < 0 || int(rep) >= numPoints {
				return fmt.Errorf("%w: node %d has representative %d of %d", ErrCorruptTree, c, rep, numPoints)
			}
			parents[c]++
		}
	}

	for id := 1; id < len(t.Nodes); id++ {
		if parents[id] != 1 {
			return fmt.Errorf("%w: node %d has %d parents", ErrCorruptTree, id, parents[id])
		}
	}
	for p, count := range seen {
		if count != 1 {
			return fmt.Errorf("%w: point %d appears in %d leaves", ErrCorruptTree, p, count)
		}
	}
	return nil
}
