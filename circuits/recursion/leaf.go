package recursion

import (
	"github.com/consensys/gnark/frontend"
)

// LeafCircuit folds two adjacent base segment proofs. The segment verifying
// key is fixed at compile time, so the chain of trust starts here: a leaf
// proof can only exist for proofs checked against the pinned base key, and
// its verifying key digest is pinned to zero.
type LeafCircuit struct {
	StartRoot frontend.Variable `gnark:",public"`
	EndRoot   frontend.Variable `gnark:",public"`
	VKDigest  frontend.Variable `gnark:",public"`

	// MidRoot is the state commitment shared by the two segments.
	MidRoot    frontend.Variable
	LeftProof  SegmentProof
	RightProof SegmentProof
	SegmentVK  SegmentVerifyingKey `gnark:"-"`
}

func (c *LeafCircuit) Define(api frontend.API) error {
	verifySegmentProof(api, c.SegmentVK, c.LeftProof, c.StartRoot, c.MidRoot)
	verifySegmentProof(api, c.SegmentVK, c.RightProof, c.MidRoot, c.EndRoot)
	api.AssertIsEqual(c.VKDigest, 0)
	// keep the verifying key layout identical to the shapes that use the
	// emulated verifier
	normalizeCommitments(api, c.StartRoot, c.MidRoot, c.EndRoot)
	return nil
}
