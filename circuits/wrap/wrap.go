// wrap package contains the final circuit of the pipeline. It verifies the
// canonical shrink proof with emulated BW6-761 arithmetic inside BN254 and
// re-exposes its statement through exactly two public inputs: VkRoot, a
// BN254-sized commitment to the verifying key digest chain, and
// PublicDigest, the hash of the start and end state commitments. An
// on-chain or off-chain verifier recomputes both values independently and
// needs nothing else from the recursive history.
package wrap

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bw6761"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/rangecheck"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
	"github.com/vocdoni/gnark-crypto-primitives/utils"

	"github.com/eigmax/zkMIPS/circuits"
	"github.com/eigmax/zkMIPS/types"
)

// vkDigestLimbs is the limb count of an emulated BW6-761 scalar, 6 limbs of
// 64 bits.
const vkDigestLimbs = 6

type Circuit struct {
	VkRoot       frontend.Variable `gnark:",public"`
	PublicDigest frontend.Variable `gnark:",public"`

	StartRoot frontend.Variable
	EndRoot   frontend.Variable
	// VKDigestLimbs carries the BW6-761 sized verifying key digest as
	// 64-bit limbs, least significant first.
	VKDigestLimbs [vkDigestLimbs]frontend.Variable
	Proof         stdgroth16.Proof[sw_bw6761.G1Affine, sw_bw6761.G2Affine]
	ShrinkVK      stdgroth16.VerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl] `gnark:"-"`
}

func (c *Circuit) Define(api frontend.API) error {
	checker := rangecheck.New(api)
	for i := range c.VKDigestLimbs {
		checker.Check(c.VKDigestLimbs[i], 64)
	}

	witness := stdgroth16.Witness[sw_bw6761.ScalarField]{}
	for _, v := range []frontend.Variable{c.StartRoot, c.EndRoot} {
		el, err := utils.UnpackVarToScalar[sw_bw6761.ScalarField](api, v)
		if err != nil {
			circuits.FrontendError(api, "failed to build shrink witness", err)
			return err
		}
		witness.Public = append(witness.Public, *el)
	}
	witness.Public = append(witness.Public, emulated.Element[sw_bw6761.ScalarField]{
		Limbs: c.VKDigestLimbs[:],
	})

	verifier, err := stdgroth16.NewVerifier[sw_bw6761.ScalarField, sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](api)
	if err != nil {
		circuits.FrontendError(api, "failed to create BW6-761 verifier", err)
		return err
	}
	if err := verifier.AssertProof(c.ShrinkVK, c.Proof, witness, stdgroth16.WithCompleteArithmetic()); err != nil {
		circuits.FrontendError(api, "failed to verify shrink proof", err)
		return err
	}

	hFn, err := mimc.NewMiMC(api)
	if err != nil {
		circuits.FrontendError(api, "failed to create MiMC hash function", err)
		return err
	}
	hFn.Write(c.VKDigestLimbs[:]...)
	api.AssertIsEqual(c.VkRoot, hFn.Sum())

	hFn.Reset()
	hFn.Write(c.StartRoot, c.EndRoot)
	api.AssertIsEqual(c.PublicDigest, hFn.Sum())
	return nil
}

// Placeholder returns the wrap circuit used for compilation, with the
// canonical shrink verifying key baked in as circuit constants.
func Placeholder(shrinkCCS constraint.ConstraintSystem, shrinkVK groth16.VerifyingKey) (*Circuit, error) {
	fixedVK, err := stdgroth16.ValueOfVerifyingKeyFixed[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](shrinkVK)
	if err != nil {
		return nil, fmt.Errorf("fix shrink verifying key: %w", err)
	}
	return &Circuit{
		Proof:    stdgroth16.PlaceholderProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](shrinkCCS),
		ShrinkVK: fixedVK,
	}, nil
}

// Assign builds the wrap witness from the canonical shrink proof. It
// returns the assignment together with the two public inputs the final
// proof will expose.
func Assign(shrunk *types.RecursiveProof) (*Circuit, *big.Int, *big.Int, error) {
	innerProof, err := stdgroth16.ValueOfProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](shrunk.Proof)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("transform shrink proof: %w", err)
	}
	vkRoot, err := types.VKRootFromDigest(shrunk.PublicValues.VKDigest)
	if err != nil {
		return nil, nil, nil, err
	}
	publicDigest, err := shrunk.PublicValues.Digest()
	if err != nil {
		return nil, nil, nil, err
	}
	assignment := &Circuit{
		VkRoot:       vkRoot,
		PublicDigest: publicDigest,
		StartRoot:    shrunk.PublicValues.StartRoot,
		EndRoot:      shrunk.PublicValues.EndRoot,
		Proof:        innerProof,
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1))
	rest := new(big.Int).Set(shrunk.PublicValues.VKDigest)
	for i := range vkDigestLimbs {
		assignment.VKDigestLimbs[i] = new(big.Int).And(rest, mask)
		rest.Rsh(rest, 64)
	}
	return assignment, vkRoot, publicDigest, nil
}
