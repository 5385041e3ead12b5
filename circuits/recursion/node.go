package recursion

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"github.com/eigmax/zkMIPS/circuits"
)

// NodeCircuit folds two adjacent recursive proofs. The children's verifying
// keys come in as witness values, so the circuit binds them into its public
// verifying key digest: the digest chains both children's own digests with
// the hash of the key each child was verified against. A verifier that
// recomputes the expected digest from the trusted artifact set can then
// reject any proof whose history used an unknown key.
type NodeCircuit struct {
	StartRoot frontend.Variable `gnark:",public"`
	EndRoot   frontend.Variable `gnark:",public"`
	VKDigest  frontend.Variable `gnark:",public"`

	// MidRoot is the state commitment at the boundary between the ranges
	// covered by the two children.
	MidRoot       frontend.Variable
	LeftVKDigest  frontend.Variable
	RightVKDigest frontend.Variable
	LeftProof     Proof
	RightProof    Proof
	LeftVK        VerifyingKey
	RightVK       VerifyingKey
}

func (c *NodeCircuit) Define(api frontend.API) error {
	verifyRecursiveProof(api, c.LeftVK, c.LeftProof, c.StartRoot, c.MidRoot, c.LeftVKDigest)
	verifyRecursiveProof(api, c.RightVK, c.RightProof, c.MidRoot, c.EndRoot, c.RightVKDigest)

	leftHash, err := circuits.VerifyingKeyHash(api, c.LeftVK)
	if err != nil {
		circuits.FrontendError(api, "failed to hash left verifying key", err)
		return err
	}
	rightHash, err := circuits.VerifyingKeyHash(api, c.RightVK)
	if err != nil {
		circuits.FrontendError(api, "failed to hash right verifying key", err)
		return err
	}
	hFn, err := mimc.NewMiMC(api)
	if err != nil {
		circuits.FrontendError(api, "failed to create MiMC hash function", err)
		return err
	}
	hFn.Write(c.LeftVKDigest, leftHash, c.RightVKDigest, rightHash)
	api.AssertIsEqual(c.VKDigest, hFn.Sum())
	return nil
}
