package recursion

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"github.com/eigmax/zkMIPS/circuits"
)

// MixedCircuit folds one recursive proof with one trailing base segment
// proof. It handles the odd carry of the reduction tree: when a level of
// folds leaves a base proof without a partner, the carry meets a recursive
// proof one level up and is folded here. The recursive side is the left
// child, the base side the right one, matching execution order.
type MixedCircuit struct {
	StartRoot frontend.Variable `gnark:",public"`
	EndRoot   frontend.Variable `gnark:",public"`
	VKDigest  frontend.Variable `gnark:",public"`

	MidRoot      frontend.Variable
	LeftVKDigest frontend.Variable
	LeftProof    Proof
	LeftVK       VerifyingKey
	RightProof   SegmentProof
	SegmentVK    SegmentVerifyingKey `gnark:"-"`
}

func (c *MixedCircuit) Define(api frontend.API) error {
	verifyRecursiveProof(api, c.LeftVK, c.LeftProof, c.StartRoot, c.MidRoot, c.LeftVKDigest)
	verifySegmentProof(api, c.SegmentVK, c.RightProof, c.MidRoot, c.EndRoot)

	leftHash, err := circuits.VerifyingKeyHash(api, c.LeftVK)
	if err != nil {
		circuits.FrontendError(api, "failed to hash left verifying key", err)
		return err
	}
	hFn, err := mimc.NewMiMC(api)
	if err != nil {
		circuits.FrontendError(api, "failed to create MiMC hash function", err)
		return err
	}
	hFn.Write(c.LeftVKDigest, leftHash)
	api.AssertIsEqual(c.VKDigest, hFn.Sum())
	return nil
}
