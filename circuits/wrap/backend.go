package wrap

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test/unsafekzg"

	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/types"
)

// SetupPlonk runs the PLONK setup for the wrap circuit over a locally
// generated KZG SRS. The SRS is not the product of a ceremony; production
// deployments import a ceremony SRS instead and only the artifact builder
// dev mode uses this path.
func SetupPlonk(ccs constraint.ConstraintSystem) (plonk.ProvingKey, plonk.VerifyingKey, error) {
	srs, srsLagrange, err := unsafekzg.NewSRS(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("generate dev SRS: %w", err)
	}
	pk, vk, err := plonk.Setup(ccs, srs, srsLagrange)
	if err != nil {
		return nil, nil, fmt.Errorf("plonk setup: %w", err)
	}
	return pk, vk, nil
}

// ProveGroth16 generates the final Groth16 proof over BN254 and packs it
// with its two public inputs.
func ProveGroth16(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, assignment *Circuit, vkRoot, publicDigest *big.Int) (*types.FinalProof, error) {
	proof, err := types.DefaultProver(params.WrapCurve, ccs, pk, assignment)
	if err != nil {
		return nil, fmt.Errorf("generate wrap proof: %w", err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize wrap proof: %w", err)
	}
	return &types.FinalProof{
		Backend:      types.BackendGroth16,
		Proof:        buf.Bytes(),
		VkRoot:       vkRoot,
		PublicDigest: publicDigest,
	}, nil
}

// ProvePlonk generates the final PLONK proof over BN254 and packs it with
// its two public inputs.
func ProvePlonk(ccs constraint.ConstraintSystem, pk plonk.ProvingKey, assignment *Circuit, vkRoot, publicDigest *big.Int) (*types.FinalProof, error) {
	w, err := frontend.NewWitness(assignment, params.WrapCurve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: build wrap witness: %v", types.ErrWitnessGeneration, err)
	}
	proof, err := plonk.Prove(ccs, pk, w)
	if err != nil {
		return nil, fmt.Errorf("%w: generate wrap proof: %v", types.ErrWitnessGeneration, err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize wrap proof: %w", err)
	}
	return &types.FinalProof{
		Backend:      types.BackendPlonk,
		Proof:        buf.Bytes(),
		VkRoot:       vkRoot,
		PublicDigest: publicDigest,
	}, nil
}

// publicWitness rebuilds the public-only witness of a final proof from its
// two exposed inputs.
func publicWitness(fp *types.FinalProof) (witness.Witness, error) {
	assignment := &Circuit{
		VkRoot:       fp.VkRoot,
		PublicDigest: fp.PublicDigest,
	}
	w, err := frontend.NewWitness(assignment, params.WrapCurve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: build public witness: %v", types.ErrVerify, err)
	}
	return w, nil
}

// VerifyGroth16 checks a final Groth16 proof. Any proof that does not check
// out, including one whose bytes no longer decode, returns false. Errors are
// reserved for claims the verifier cannot even evaluate.
func VerifyGroth16(fp *types.FinalProof, vk groth16.VerifyingKey) (bool, error) {
	if fp.Backend != types.BackendGroth16 {
		return false, fmt.Errorf("%w: proof carries backend %s, want %s",
			types.ErrVerify, fp.Backend, types.BackendGroth16)
	}
	proof := groth16.NewProof(params.WrapCurve)
	if _, err := proof.ReadFrom(bytes.NewReader(fp.Proof)); err != nil {
		// Corrupted proof bytes are a failed verification, not a caller error.
		return false, nil
	}
	w, err := publicWitness(fp)
	if err != nil {
		return false, err
	}
	if err := groth16.Verify(proof, vk, w); err != nil {
		return false, nil
	}
	return true, nil
}

// VerifyPlonk checks a final PLONK proof with the same contract as
// VerifyGroth16.
func VerifyPlonk(fp *types.FinalProof, vk plonk.VerifyingKey) (bool, error) {
	if fp.Backend != types.BackendPlonk {
		return false, fmt.Errorf("%w: proof carries backend %s, want %s",
			types.ErrVerify, fp.Backend, types.BackendPlonk)
	}
	proof := plonk.NewProof(params.WrapCurve)
	if _, err := proof.ReadFrom(bytes.NewReader(fp.Proof)); err != nil {
		return false, nil
	}
	w, err := publicWitness(fp)
	if err != nil {
		return false, err
	}
	if err := plonk.Verify(proof, vk, w); err != nil {
		return false, nil
	}
	return true, nil
}
