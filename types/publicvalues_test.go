package types

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestPublicValuesChainAndMerge(t *testing.T) {
	c := qt.New(t)

	a := NewPublicValues(big.NewInt(1), big.NewInt(2))
	b := NewPublicValues(big.NewInt(2), big.NewInt(3))
	d := NewPublicValues(big.NewInt(9), big.NewInt(10))

	c.Assert(a.Chain(b), qt.IsTrue)
	c.Assert(a.Chain(d), qt.IsFalse)
	c.Assert(b.Chain(a), qt.IsFalse)

	merged := a.Merge(b)
	c.Assert(merged.StartRoot.Cmp(big.NewInt(1)), qt.Equals, 0)
	c.Assert(merged.EndRoot.Cmp(big.NewInt(3)), qt.Equals, 0)
	c.Assert(merged.Segments, qt.Equals, 2)

	// Merge must not alias the operands.
	merged.StartRoot.SetInt64(42)
	c.Assert(a.StartRoot.Cmp(big.NewInt(1)), qt.Equals, 0)
}

func TestPublicValuesMergeMatchesFlatten(t *testing.T) {
	c := qt.New(t)

	// Folding pairwise in any adjacent order must match folding the whole
	// chain at once.
	roots := []int64{5, 6, 7, 8, 9}
	var values []*PublicValues
	for i := 0; i+1 < len(roots); i++ {
		values = append(values, NewPublicValues(big.NewInt(roots[i]), big.NewInt(roots[i+1])))
	}

	left := values[0].Merge(values[1])
	right := values[2].Merge(values[3])
	c.Assert(left.Chain(right), qt.IsTrue)
	folded := left.Merge(right)

	flat := values[0]
	for _, v := range values[1:] {
		c.Assert(flat.Chain(v), qt.IsTrue)
		flat = flat.Merge(v)
	}
	c.Assert(folded.Equal(flat), qt.IsTrue)
}

func TestPublicValuesDigestDeterminism(t *testing.T) {
	c := qt.New(t)

	pv := NewPublicValues(big.NewInt(100), big.NewInt(200))
	d1, err := pv.Digest()
	c.Assert(err, qt.IsNil)
	d2, err := pv.Digest()
	c.Assert(err, qt.IsNil)
	c.Assert(d1.Cmp(d2), qt.Equals, 0)

	// The digest covers only the state roots, not the segment count.
	other := NewPublicValues(big.NewInt(100), big.NewInt(200))
	other.Segments = 7
	d3, err := other.Digest()
	c.Assert(err, qt.IsNil)
	c.Assert(d3.Cmp(d1), qt.Equals, 0)

	// Different roots give a different digest.
	changed := NewPublicValues(big.NewInt(100), big.NewInt(201))
	d4, err := changed.Digest()
	c.Assert(err, qt.IsNil)
	c.Assert(d4.Cmp(d1), qt.Not(qt.Equals), 0)
}

func TestChainVKDigest(t *testing.T) {
	c := qt.New(t)

	d1, err := ChainVKDigest(big.NewInt(0), big.NewInt(11))
	c.Assert(err, qt.IsNil)
	c.Assert(d1.Sign(), qt.Not(qt.Equals), 0)

	// Chaining is order sensitive.
	ab, err := ChainVKDigest(big.NewInt(0), big.NewInt(11), big.NewInt(22))
	c.Assert(err, qt.IsNil)
	ba, err := ChainVKDigest(big.NewInt(0), big.NewInt(22), big.NewInt(11))
	c.Assert(err, qt.IsNil)
	c.Assert(ab.Cmp(ba), qt.Not(qt.Equals), 0)

	// Extending an existing digest differs from hashing everything fresh
	// with a different grouping.
	ext, err := ChainVKDigest(d1, big.NewInt(22))
	c.Assert(err, qt.IsNil)
	c.Assert(ext.Cmp(ab), qt.Not(qt.Equals), 0)
}

func TestVKRootFromDigest(t *testing.T) {
	c := qt.New(t)

	// A digest wider than BN254's field must still map to a deterministic
	// root, via its 64-bit limb decomposition.
	wide := new(big.Int).Lsh(big.NewInt(1), 370)
	wide.Add(wide, big.NewInt(12345))
	r1, err := VKRootFromDigest(wide)
	c.Assert(err, qt.IsNil)
	r2, err := VKRootFromDigest(new(big.Int).Set(wide))
	c.Assert(err, qt.IsNil)
	c.Assert(r1.Cmp(r2), qt.Equals, 0)

	// The root must see the high limbs, not just the low 64 bits.
	low := big.NewInt(12345)
	r3, err := VKRootFromDigest(low)
	c.Assert(err, qt.IsNil)
	c.Assert(r3.Cmp(r1), qt.Not(qt.Equals), 0)

	// VKRootFromDigest must not mutate its argument.
	c.Assert(wide.Bit(370), qt.Equals, uint(1))
}
