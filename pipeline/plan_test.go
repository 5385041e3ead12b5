package pipeline

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/types"
)

// countShapes walks a plan and tallies the fold shapes used.
func countShapes(root *planNode) map[string]int {
	counts := map[string]int{}
	var walk func(n *planNode)
	walk = func(n *planNode) {
		if n == nil || n.isSegment() {
			return
		}
		counts[n.shape]++
		walk(n.left)
		walk(n.right)
	}
	walk(root)
	return counts
}

// segmentsUnder collects the segment indexes covered by a plan, in order.
func segmentsUnder(root *planNode) []int {
	var out []int
	var walk func(n *planNode)
	walk = func(n *planNode) {
		if n == nil {
			return
		}
		if n.isSegment() {
			out = append(out, n.segment)
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(root)
	return out
}

func TestBuildPlanShapes(t *testing.T) {
	c := qt.New(t)

	// Two segments fold with a single leaf.
	plan := buildPlan(2)
	c.Assert(plan.shape, qt.Equals, params.ShapeRecursionLeaf)
	c.Assert(countShapes(plan), qt.DeepEquals, map[string]int{
		params.ShapeRecursionLeaf: 1,
	})

	// Power of two: leaves at the bottom, nodes above, no mixed folds.
	plan = buildPlan(8)
	c.Assert(plan.shape, qt.Equals, params.ShapeRecursionNode)
	c.Assert(countShapes(plan), qt.DeepEquals, map[string]int{
		params.ShapeRecursionLeaf: 4,
		params.ShapeRecursionNode: 3,
	})

	// Odd count: the trailing segment is carried up and joins through a
	// mixed fold.
	plan = buildPlan(5)
	c.Assert(plan.shape, qt.Equals, params.ShapeRecursionMix)
	c.Assert(countShapes(plan), qt.DeepEquals, map[string]int{
		params.ShapeRecursionLeaf: 2,
		params.ShapeRecursionNode: 1,
		params.ShapeRecursionMix:  1,
	})
	// The carried segment sits on the right of the mixed fold.
	c.Assert(plan.right.isSegment(), qt.IsTrue)
	c.Assert(plan.right.segment, qt.Equals, 4)
}

func TestBuildPlanSingleSegment(t *testing.T) {
	c := qt.New(t)

	// A single segment pairs with a padding slot so the root is always a
	// recursion proof.
	plan := buildPlan(1)
	c.Assert(plan.shape, qt.Equals, params.ShapeRecursionLeaf)
	c.Assert(segmentsUnder(plan), qt.DeepEquals, []int{0, 1})
}

func TestBuildPlanCoversAllSegmentsInOrder(t *testing.T) {
	c := qt.New(t)
	for n := 2; n <= 33; n++ {
		plan := buildPlan(n)
		covered := segmentsUnder(plan)
		c.Assert(covered, qt.HasLen, n, qt.Commentf("n=%d", n))
		for i, idx := range covered {
			c.Assert(idx, qt.Equals, i, qt.Commentf("n=%d", n))
		}
	}
}

func TestPlanLevelsAreDependencyOrdered(t *testing.T) {
	c := qt.New(t)
	plan := buildPlan(13)
	levels := planLevels(plan)
	c.Assert(len(levels) > 0, qt.IsTrue)

	// Every fold must appear in a strictly later level than its non-segment
	// children.
	position := map[*planNode]int{}
	for depth, folds := range levels {
		for _, fold := range folds {
			position[fold] = depth
		}
	}
	for depth, folds := range levels {
		for _, fold := range folds {
			for _, child := range []*planNode{fold.left, fold.right} {
				if child.isSegment() {
					continue
				}
				c.Assert(position[child] < depth, qt.IsTrue)
			}
		}
	}
	// The root is the single fold of the last level.
	c.Assert(levels[len(levels)-1], qt.HasLen, 1)
	c.Assert(levels[len(levels)-1][0], qt.Equals, plan)
}

func TestPlanDigestReplay(t *testing.T) {
	c := qt.New(t)
	hashes := map[string]*big.Int{
		params.ShapeRecursionLeaf: big.NewInt(101),
		params.ShapeRecursionNode: big.NewInt(202),
		params.ShapeRecursionMix:  big.NewInt(303),
	}

	// Leaf roots pin a zero digest.
	plan := buildPlan(2)
	digest, err := planDigest(plan, hashes)
	c.Assert(err, qt.IsNil)
	c.Assert(digest.Sign(), qt.Equals, 0)

	// A node over two leaves chains both child hashes over zero digests.
	plan = buildPlan(4)
	digest, err = planDigest(plan, hashes)
	c.Assert(err, qt.IsNil)
	want, err := types.ChainVKDigest(big.NewInt(0),
		hashes[params.ShapeRecursionLeaf], big.NewInt(0), hashes[params.ShapeRecursionLeaf])
	c.Assert(err, qt.IsNil)
	c.Assert(digest.Cmp(want), qt.Equals, 0)

	// A mixed root chains only its recursive left child.
	plan = buildPlan(3)
	c.Assert(plan.shape, qt.Equals, params.ShapeRecursionMix)
	digest, err = planDigest(plan, hashes)
	c.Assert(err, qt.IsNil)
	want, err = types.ChainVKDigest(big.NewInt(0), hashes[params.ShapeRecursionLeaf])
	c.Assert(err, qt.IsNil)
	c.Assert(digest.Cmp(want), qt.Equals, 0)
}

func TestCheckChain(t *testing.T) {
	c := qt.New(t)
	seg := func(index int, start, end int64) *types.SegmentProof {
		return &types.SegmentProof{
			Index:        index,
			PublicValues: types.NewPublicValues(big.NewInt(start), big.NewInt(end)),
		}
	}

	c.Assert(checkChain([]*types.SegmentProof{
		seg(0, 1, 2), seg(1, 2, 3), seg(2, 3, 4),
	}), qt.IsNil)

	err := checkChain([]*types.SegmentProof{
		seg(0, 1, 2), seg(1, 5, 6),
	})
	c.Assert(err, qt.ErrorIs, types.ErrChainBreak)
	var cbe *types.ChainBreakError
	c.Assert(err, qt.ErrorAs, &cbe)
	c.Assert(cbe.Boundary, qt.Equals, 0)
}
