// recursion package contains the Gnark circuit definitions that fold pairs
// of adjacent proofs into one. Three fixed shapes cover every fold of the
// reduction tree: the leaf shape folds two base segment proofs, the node
// shape folds two recursive proofs and the mixed shape folds one recursive
// proof with one base proof. All three share the same public interface, the
// start and end state commitments of the covered range plus the running
// digest of the verifying keys consumed along the way, so any recursive
// proof can feed any recursive slot of an upper fold.
package recursion

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bw6761"
	"github.com/consensys/gnark/std/algebra/native/sw_bls12377"
	"github.com/consensys/gnark/std/math/emulated"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
	"github.com/vocdoni/gnark-crypto-primitives/utils"

	"github.com/eigmax/zkMIPS/circuits"
)

// In-circuit representations of the two proof layers. Segment proofs live
// on BLS12-377 and are verified natively through the 2-chain, recursive
// proofs live on BW6-761 and are verified with emulated arithmetic.
type (
	SegmentProof        = stdgroth16.Proof[sw_bls12377.G1Affine, sw_bls12377.G2Affine]
	SegmentVerifyingKey = stdgroth16.VerifyingKey[sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT]
	Proof               = stdgroth16.Proof[sw_bw6761.G1Affine, sw_bw6761.G2Affine]
	VerifyingKey        = stdgroth16.VerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl]
)

// segmentWitness builds the witness of a base segment proof from native
// variables. The 2-chain verifier recomposes limbs natively, so the full
// value can sit in the first limb.
func segmentWitness(values ...frontend.Variable) stdgroth16.Witness[sw_bls12377.ScalarField] {
	witness := stdgroth16.Witness[sw_bls12377.ScalarField]{}
	for _, v := range values {
		witness.Public = append(witness.Public, emulated.Element[sw_bls12377.ScalarField]{
			Limbs: []frontend.Variable{v, 0, 0, 0},
		})
	}
	return witness
}

// recursiveWitness builds the witness of an inner recursive proof from
// native variables. The emulated verifier needs properly decomposed limbs,
// so every value is unpacked to a full BW6-761 scalar element.
func recursiveWitness(api frontend.API, values ...frontend.Variable) (stdgroth16.Witness[sw_bw6761.ScalarField], error) {
	witness := stdgroth16.Witness[sw_bw6761.ScalarField]{}
	for _, v := range values {
		el, err := utils.UnpackVarToScalar[sw_bw6761.ScalarField](api, v)
		if err != nil {
			return witness, err
		}
		witness.Public = append(witness.Public, *el)
	}
	return witness, nil
}

// verifySegmentProof checks one base segment proof against the fixed
// segment verifying key with the native 2-chain verifier.
func verifySegmentProof(api frontend.API, vk SegmentVerifyingKey, proof SegmentProof, start, end frontend.Variable) {
	verifier, err := stdgroth16.NewVerifier[sw_bls12377.ScalarField, sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT](api)
	if err != nil {
		circuits.FrontendError(api, "failed to create BLS12-377 verifier", err)
		return
	}
	if err := verifier.AssertProof(vk, proof, segmentWitness(start, end), stdgroth16.WithCompleteArithmetic()); err != nil {
		circuits.FrontendError(api, "failed to verify segment proof", err)
	}
}

// verifyRecursiveProof checks one inner recursive proof against a witness
// verifying key with the emulated BW6-761 verifier.
func verifyRecursiveProof(api frontend.API, vk VerifyingKey, proof Proof, start, end, vkDigest frontend.Variable) {
	witness, err := recursiveWitness(api, start, end, vkDigest)
	if err != nil {
		circuits.FrontendError(api, "failed to build recursive witness", err)
		return
	}
	verifier, err := stdgroth16.NewVerifier[sw_bw6761.ScalarField, sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](api)
	if err != nil {
		circuits.FrontendError(api, "failed to create BW6-761 verifier", err)
		return
	}
	if err := verifier.AssertProof(vk, proof, witness, stdgroth16.WithCompleteArithmetic()); err != nil {
		circuits.FrontendError(api, "failed to verify recursive proof", err)
	}
}

// normalizeCommitments adds one commitment over the given variables. The
// emulated verifier introduces exactly one commitment in the shapes that use
// it; shapes that only use the native verifier call this so every recursion
// verifying key ends up with the same layout and a single witness key
// placeholder fits all of them.
func normalizeCommitments(api frontend.API, values ...frontend.Variable) {
	committer, ok := api.(frontend.Committer)
	if !ok {
		circuits.FrontendError(api, "builder does not support commitments", nil)
		return
	}
	commitment, err := committer.Commit(values...)
	if err != nil {
		circuits.FrontendError(api, "failed to commit", err)
		return
	}
	api.AssertIsDifferent(commitment, 0)
}
