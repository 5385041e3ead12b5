package pipeline

import (
	"math/big"

	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/types"
)

// planNode is one fold of the reduction tree. Leaves of the tree reference
// segment proofs by index; internal nodes name the circuit shape that folds
// their children.
type planNode struct {
	// shape is empty for a segment leaf, otherwise one of the recursion
	// shape identifiers.
	shape   string
	segment int
	left    *planNode
	right   *planNode
	// level is the distance from the segment layer, used to schedule
	// folds level by level.
	level int
	// proof holds the result once the fold has been proven.
	proof *types.RecursiveProof
}

func segmentNode(index int) *planNode {
	return &planNode{segment: index}
}

func (n *planNode) isSegment() bool { return n.shape == "" && n.left == nil }

// foldShape returns the shape that folds the two given children.
func foldShape(left, right *planNode) string {
	switch {
	case left.isSegment() && right.isSegment():
		return params.ShapeRecursionLeaf
	case !left.isSegment() && !right.isSegment():
		return params.ShapeRecursionNode
	default:
		return params.ShapeRecursionMix
	}
}

// buildPlan constructs the deterministic reduction tree over n segment
// proofs. Adjacent items are paired level by level; an odd trailing item is
// carried up unfolded and meets its partner one level higher, which is
// where the mixed shape appears. A single segment is normalized by folding
// it with an empty padding segment, so the result is always a recursion
// proof.
//
// The tree depends only on n. A verifier rebuilds the same tree to
// recompute the expected verifying key digest of the final proof.
func buildPlan(n int) *planNode {
	if n < 1 {
		return nil
	}
	items := make([]*planNode, n)
	for i := range n {
		items[i] = segmentNode(i)
	}
	if n == 1 {
		// the padding proof takes index n, right of the real segment
		items = append(items, segmentNode(1))
	}
	level := 0
	for len(items) > 1 {
		level++
		next := make([]*planNode, 0, (len(items)+1)/2)
		for i := 0; i+1 < len(items); i += 2 {
			left, right := items[i], items[i+1]
			next = append(next, &planNode{
				shape: foldShape(left, right),
				left:  left,
				right: right,
				level: level,
			})
		}
		if len(items)%2 == 1 {
			carry := items[len(items)-1]
			next = append(next, carry)
		}
		items = next
	}
	return items[0]
}

// planLevels groups the internal fold nodes of a plan by level, bottom
// first. Folds within one level are independent and run concurrently.
func planLevels(root *planNode) [][]*planNode {
	var levels [][]*planNode
	var walk func(n *planNode)
	walk = func(n *planNode) {
		if n == nil || n.isSegment() {
			return
		}
		walk(n.left)
		walk(n.right)
		for len(levels) < n.level {
			levels = append(levels, nil)
		}
		levels[n.level-1] = append(levels[n.level-1], n)
	}
	walk(root)
	return levels
}

// planDigest recomputes the verifying key digest the plan's root proof must
// carry, from the hashes of the trusted shape verifying keys.
func planDigest(n *planNode, vkHashes map[string]*big.Int) (*big.Int, error) {
	if n.isSegment() {
		return big.NewInt(0), nil
	}
	leftDigest, err := planDigest(n.left, vkHashes)
	if err != nil {
		return nil, err
	}
	switch n.shape {
	case params.ShapeRecursionLeaf:
		return big.NewInt(0), nil
	case params.ShapeRecursionNode:
		rightDigest, err := planDigest(n.right, vkHashes)
		if err != nil {
			return nil, err
		}
		return types.ChainVKDigest(leftDigest,
			vkHashes[n.left.shape], rightDigest, vkHashes[n.right.shape])
	case params.ShapeRecursionMix:
		return types.ChainVKDigest(leftDigest, vkHashes[n.left.shape])
	default:
		return nil, &types.ShapeMismatchError{Shape: n.shape, Want: "a recursion fold", Got: n.shape}
	}
}
