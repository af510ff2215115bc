package ensemble

import "math"

// Node is one node of a regression tree. Leaves have no children.
type Node struct {
	LeftChild    int     // -1 for a leaf
	RightChild   int     // -1 for a leaf
	SplitFeature int     // column index used for the split
	Threshold    float64 // rows with value <= Threshold go left
	Gain         float64 // loss reduction of the split
	LeafValue    float64 // raw leaf output before shrinkage
	LeafCount    int     // training rows that reached the node
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is one boosting round. Node 0 is the root.
type Tree struct {
	Nodes         []Node
	NumLeaves     int
	ShrinkageRate float64
}

// Predict returns the shrunk output of the tree for one row.
// NaN feature values follow the right branch.
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		v := features[node.SplitFeature]
		if !math.IsNaN(v) && v <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
	return 0.0
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(id int) int
	walk = func(id int) int {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.LeftChild), walk(n.RightChild))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}
