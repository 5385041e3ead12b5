// shrink package contains the circuit that compresses the root of the
// reduction tree into the one canonical shape the wrap circuit pins. The
// root proof may come out of any recursion shape, so the shrink circuit
// takes its verifying key as a witness and extends the verifying key digest
// chain one last time. After this pass exactly one BW6-761 verifying key
// exists that the wrap circuit has to know about.
package shrink

import (
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bw6761"
	"github.com/consensys/gnark/std/hash/mimc"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
	"github.com/vocdoni/gnark-crypto-primitives/utils"

	"github.com/eigmax/zkMIPS/circuits"
	"github.com/eigmax/zkMIPS/types"
)

type Circuit struct {
	StartRoot frontend.Variable `gnark:",public"`
	EndRoot   frontend.Variable `gnark:",public"`
	VKDigest  frontend.Variable `gnark:",public"`

	InnerVKDigest frontend.Variable
	InnerProof    stdgroth16.Proof[sw_bw6761.G1Affine, sw_bw6761.G2Affine]
	InnerVK       stdgroth16.VerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl]
}

func (c *Circuit) Define(api frontend.API) error {
	witness := stdgroth16.Witness[sw_bw6761.ScalarField]{}
	for _, v := range []frontend.Variable{c.StartRoot, c.EndRoot, c.InnerVKDigest} {
		el, err := utils.UnpackVarToScalar[sw_bw6761.ScalarField](api, v)
		if err != nil {
			circuits.FrontendError(api, "failed to build inner witness", err)
			return err
		}
		witness.Public = append(witness.Public, *el)
	}
	verifier, err := stdgroth16.NewVerifier[sw_bw6761.ScalarField, sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](api)
	if err != nil {
		circuits.FrontendError(api, "failed to create BW6-761 verifier", err)
		return err
	}
	if err := verifier.AssertProof(c.InnerVK, c.InnerProof, witness, stdgroth16.WithCompleteArithmetic()); err != nil {
		circuits.FrontendError(api, "failed to verify root proof", err)
		return err
	}

	innerHash, err := circuits.VerifyingKeyHash(api, c.InnerVK)
	if err != nil {
		circuits.FrontendError(api, "failed to hash inner verifying key", err)
		return err
	}
	hFn, err := mimc.NewMiMC(api)
	if err != nil {
		circuits.FrontendError(api, "failed to create MiMC hash function", err)
		return err
	}
	hFn.Write(c.InnerVKDigest, innerHash)
	api.AssertIsEqual(c.VKDigest, hFn.Sum())
	return nil
}

// Placeholder returns the shrink circuit used for compilation, sized from
// any compiled recursion shape.
func Placeholder(innerCCS constraint.ConstraintSystem) *Circuit {
	return &Circuit{
		InnerProof: stdgroth16.PlaceholderProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](innerCCS),
		InnerVK:    stdgroth16.PlaceholderVerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](innerCCS),
	}
}

// Assign builds the shrink witness from the root proof of the reduction
// tree and the verifying key of the shape that produced it.
func Assign(root *types.RecursiveProof, rootVK groth16.VerifyingKey) (*Circuit, *types.PublicValues, error) {
	innerProof, err := stdgroth16.ValueOfProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](root.Proof)
	if err != nil {
		return nil, nil, fmt.Errorf("transform root proof: %w", err)
	}
	innerVK, err := stdgroth16.ValueOfVerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](rootVK)
	if err != nil {
		return nil, nil, fmt.Errorf("transform root verifying key: %w", err)
	}
	innerHash, err := circuits.NativeVerifyingKeyHash(rootVK)
	if err != nil {
		return nil, nil, fmt.Errorf("hash root verifying key: %w", err)
	}
	digest, err := types.ChainVKDigest(root.PublicValues.VKDigest, innerHash)
	if err != nil {
		return nil, nil, err
	}
	publics := &types.PublicValues{
		StartRoot: root.PublicValues.StartRoot,
		EndRoot:   root.PublicValues.EndRoot,
		Segments:  root.PublicValues.Segments,
		VKDigest:  digest,
	}
	return &Circuit{
		StartRoot:     publics.StartRoot,
		EndRoot:       publics.EndRoot,
		VKDigest:      digest,
		InnerVKDigest: root.PublicValues.VKDigest,
		InnerProof:    innerProof,
		InnerVK:       innerVK,
	}, publics, nil
}
