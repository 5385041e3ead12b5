package pipeline

import (
	"context"
	"math/big"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/eigmax/zkMIPS/artifacts"
	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/circuits/segment"
	"github.com/eigmax/zkMIPS/storage"
	"github.com/eigmax/zkMIPS/types"
)

func skipUnlessCircuitTests(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_CIRCUIT_TESTS") == "" || os.Getenv("RUN_CIRCUIT_TESTS") == "false" {
		t.Skip("skipping circuit test, set RUN_CIRCUIT_TESTS=true to run")
	}
}

// buildTestLadder compiles and sets up the whole shape ladder in a temporary
// store and returns the store with a segment prover over it.
func buildTestLadder(t *testing.T, backend types.Backend) (*artifacts.Store, *segment.Prover) {
	t.Helper()
	c := qt.New(t)
	store, err := artifacts.NewStore(t.TempDir(), "test")
	c.Assert(err, qt.IsNil)
	sets, err := artifacts.NewBuilder(store, nil).BuildAll(context.Background(), backend)
	c.Assert(err, qt.IsNil)
	segSet := sets[params.ShapeSegment]
	sp, err := segment.NewProver(segSet.CCS, segSet.ProvingKey, segSet.VerifyingKey)
	c.Assert(err, qt.IsNil)
	return store, sp
}

// proveChainedSegments produces n segment proofs whose public values chain,
// each folding a couple of step inputs derived from its index.
func proveChainedSegments(t *testing.T, sp *segment.Prover, n int) []*types.SegmentProof {
	t.Helper()
	c := qt.New(t)
	state := big.NewInt(1000)
	proofs := make([]*types.SegmentProof, n)
	for i := range n {
		inputs := []*big.Int{big.NewInt(int64(10 + i)), big.NewInt(int64(20 + i))}
		proof, err := sp.Prove(i, state, inputs)
		c.Assert(err, qt.IsNil)
		proofs[i] = proof
		state = proof.PublicValues.EndRoot
	}
	return proofs
}

func TestPipelineEndToEndGroth16(t *testing.T) {
	skipUnlessCircuitTests(t)
	c := qt.New(t)

	store, sp := buildTestLadder(t, types.BackendGroth16)
	db, err := storage.New(t.TempDir())
	c.Assert(err, qt.IsNil)
	defer db.Close()

	// Three segments exercise both the leaf fold and the mixed carry.
	proofs := proveChainedSegments(t, sp, 3)
	pipe := New(store, WithPadder(sp), WithStorage(db), WithWorkers(1))

	fp, err := pipe.Prove(context.Background(), proofs, types.BackendGroth16)
	c.Assert(err, qt.IsNil)
	c.Assert(fp.Backend, qt.Equals, types.BackendGroth16)

	claim := &types.PublicValues{
		StartRoot: proofs[0].PublicValues.StartRoot,
		EndRoot:   proofs[2].PublicValues.EndRoot,
		Segments:  3,
	}
	ok, err := pipe.Verify(fp, claim)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	// A claim over different state roots must not verify.
	bogus := &types.PublicValues{
		StartRoot: big.NewInt(999),
		EndRoot:   claim.EndRoot,
		Segments:  3,
	}
	ok, err = pipe.Verify(fp, bogus)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	// A claim over a different segment count targets a different fold tree
	// and thus a different verifying key root.
	wrongCount := &types.PublicValues{
		StartRoot: claim.StartRoot,
		EndRoot:   claim.EndRoot,
		Segments:  4,
	}
	ok, err = pipe.Verify(fp, wrongCount)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	// Any single flipped bit in the proof bytes is a failed verification,
	// never an error.
	tampered := *fp
	tampered.Proof = append([]byte(nil), fp.Proof...)
	tampered.Proof[len(tampered.Proof)/2] ^= 0x01
	ok, err = pipe.Verify(&tampered, claim)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	// A segment proof built for a different base circuit is rejected before
	// any fold is proven.
	alien := *proofs[1]
	alien.VerifyingKeyID = "0000000000000000000000000000000000000000000000000000000000000000"
	_, err = pipe.Reduce(context.Background(), []*types.SegmentProof{proofs[0], &alien})
	c.Assert(err, qt.ErrorIs, types.ErrShapeMismatch)

	// The run record reached the done state and carries the final proof.
	runs, err := db.ListRuns()
	c.Assert(err, qt.IsNil)
	c.Assert(runs, qt.HasLen, 1)
	c.Assert(runs[0].Status, qt.Equals, storage.RunStatusDone)
	stored, err := db.FinalProof(runs[0].ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.VkRoot.Cmp(fp.VkRoot), qt.Equals, 0)
}

func TestPipelineSingleSegmentPadding(t *testing.T) {
	skipUnlessCircuitTests(t)
	c := qt.New(t)

	store, sp := buildTestLadder(t, types.BackendGroth16)
	proofs := proveChainedSegments(t, sp, 1)
	pipe := New(store, WithPadder(sp), WithWorkers(1))

	fp, err := pipe.Prove(context.Background(), proofs, types.BackendGroth16)
	c.Assert(err, qt.IsNil)

	// A single segment is padded to an even base; the padding segment does
	// not move the end state, so the claim still covers one segment.
	claim := &types.PublicValues{
		StartRoot: proofs[0].PublicValues.StartRoot,
		EndRoot:   proofs[0].PublicValues.EndRoot,
		Segments:  1,
	}
	ok, err := pipe.Verify(fp, claim)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}

func TestPipelineEndToEndPlonk(t *testing.T) {
	skipUnlessCircuitTests(t)
	c := qt.New(t)

	store, sp := buildTestLadder(t, types.BackendPlonk)
	proofs := proveChainedSegments(t, sp, 2)
	pipe := New(store, WithPadder(sp), WithWorkers(1))

	fp, err := pipe.Prove(context.Background(), proofs, types.BackendPlonk)
	c.Assert(err, qt.IsNil)
	c.Assert(fp.Backend, qt.Equals, types.BackendPlonk)

	claim := &types.PublicValues{
		StartRoot: proofs[0].PublicValues.StartRoot,
		EndRoot:   proofs[1].PublicValues.EndRoot,
		Segments:  2,
	}
	ok, err := pipe.Verify(fp, claim)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}

func TestReduceChainBreak(t *testing.T) {
	c := qt.New(t)
	pipe := New(nil)
	_, err := pipe.Reduce(context.Background(), []*types.SegmentProof{
		{Index: 0, PublicValues: types.NewPublicValues(big.NewInt(1), big.NewInt(2))},
		{Index: 1, PublicValues: types.NewPublicValues(big.NewInt(7), big.NewInt(8))},
	})
	c.Assert(err, qt.ErrorIs, types.ErrChainBreak)
}

func TestCheckVerifyingKeys(t *testing.T) {
	c := qt.New(t)
	want := "aa11"
	segments := []*types.SegmentProof{
		{Index: 0, VerifyingKeyID: want},
		{Index: 1, VerifyingKeyID: ""},
		{Index: 2, VerifyingKeyID: want},
	}
	c.Assert(checkVerifyingKeys(segments, want), qt.IsNil)

	segments[2].VerifyingKeyID = "bb22"
	err := checkVerifyingKeys(segments, want)
	c.Assert(err, qt.ErrorIs, types.ErrShapeMismatch)
	c.Assert(err, qt.ErrorMatches, ".*segment 2.*bb22.*aa11.*")
}

func TestReduceOrdersSegmentsByIndex(t *testing.T) {
	c := qt.New(t)
	store, err := artifacts.NewStore(t.TempDir(), "test")
	c.Assert(err, qt.IsNil)
	pipe := New(store)
	// Out of order but chained by index; the chain check must pass and the
	// failure must come from the empty artifact store, not from a chain
	// break.
	_, err = pipe.Reduce(context.Background(), []*types.SegmentProof{
		{Index: 1, PublicValues: types.NewPublicValues(big.NewInt(2), big.NewInt(3))},
		{Index: 0, PublicValues: types.NewPublicValues(big.NewInt(1), big.NewInt(2))},
	})
	c.Assert(err, qt.IsNotNil)
	c.Assert(err, qt.Not(qt.ErrorIs), types.ErrChainBreak)
}
