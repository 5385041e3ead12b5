package recursion

import (
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bw6761"
	"github.com/consensys/gnark/std/algebra/native/sw_bls12377"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"

	"github.com/eigmax/zkMIPS/circuits"
	"github.com/eigmax/zkMIPS/types"
)

// PlaceholderLeaf returns the leaf circuit used for compilation. The segment
// verifying key is baked into the constraint system as a fixed key.
func PlaceholderLeaf(segmentCCS constraint.ConstraintSystem, segmentVK groth16.VerifyingKey) (*LeafCircuit, error) {
	fixedVK, err := stdgroth16.ValueOfVerifyingKeyFixed[sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT](segmentVK)
	if err != nil {
		return nil, fmt.Errorf("fix segment verifying key: %w", err)
	}
	return &LeafCircuit{
		LeftProof:  stdgroth16.PlaceholderProof[sw_bls12377.G1Affine, sw_bls12377.G2Affine](segmentCCS),
		RightProof: stdgroth16.PlaceholderProof[sw_bls12377.G1Affine, sw_bls12377.G2Affine](segmentCCS),
		SegmentVK:  fixedVK,
	}, nil
}

// PlaceholderNode returns the node circuit used for compilation. Every
// recursion shape shares the same verifying key layout, so the placeholders
// can be sized from any one of them; innerCCS is typically the compiled leaf
// circuit.
func PlaceholderNode(innerCCS constraint.ConstraintSystem) *NodeCircuit {
	return &NodeCircuit{
		LeftProof:  stdgroth16.PlaceholderProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](innerCCS),
		RightProof: stdgroth16.PlaceholderProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](innerCCS),
		LeftVK:     stdgroth16.PlaceholderVerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](innerCCS),
		RightVK:    stdgroth16.PlaceholderVerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](innerCCS),
	}
}

// PlaceholderMixed returns the mixed circuit used for compilation.
func PlaceholderMixed(innerCCS, segmentCCS constraint.ConstraintSystem, segmentVK groth16.VerifyingKey) (*MixedCircuit, error) {
	fixedVK, err := stdgroth16.ValueOfVerifyingKeyFixed[sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT](segmentVK)
	if err != nil {
		return nil, fmt.Errorf("fix segment verifying key: %w", err)
	}
	return &MixedCircuit{
		LeftProof:  stdgroth16.PlaceholderProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](innerCCS),
		LeftVK:     stdgroth16.PlaceholderVerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](innerCCS),
		RightProof: stdgroth16.PlaceholderProof[sw_bls12377.G1Affine, sw_bls12377.G2Affine](segmentCCS),
		SegmentVK:  fixedVK,
	}, nil
}

// AssignLeaf builds the leaf witness from two adjacent segment proofs. It
// returns the assignment together with the public values the resulting
// proof will carry.
func AssignLeaf(left, right *types.SegmentProof) (*LeafCircuit, *types.PublicValues, error) {
	if !left.PublicValues.Chain(right.PublicValues) {
		return nil, nil, &types.ChainBreakError{
			Boundary: left.Index,
			EndRoot:  types.HexBytes(left.PublicValues.EndRoot.Bytes()),
			Start:    types.HexBytes(right.PublicValues.StartRoot.Bytes()),
		}
	}
	leftProof, err := stdgroth16.ValueOfProof[sw_bls12377.G1Affine, sw_bls12377.G2Affine](left.Proof)
	if err != nil {
		return nil, nil, fmt.Errorf("transform left segment proof: %w", err)
	}
	rightProof, err := stdgroth16.ValueOfProof[sw_bls12377.G1Affine, sw_bls12377.G2Affine](right.Proof)
	if err != nil {
		return nil, nil, fmt.Errorf("transform right segment proof: %w", err)
	}
	publics := left.PublicValues.Merge(right.PublicValues)
	return &LeafCircuit{
		StartRoot:  publics.StartRoot,
		EndRoot:    publics.EndRoot,
		VKDigest:   0,
		MidRoot:    left.PublicValues.EndRoot,
		LeftProof:  leftProof,
		RightProof: rightProof,
	}, publics, nil
}

// AssignNode builds the node witness from two adjacent recursive proofs and
// the native verifying keys they were produced with. The returned public
// values carry the extended verifying key digest chain.
func AssignNode(left, right *types.RecursiveProof, leftVK, rightVK groth16.VerifyingKey) (*NodeCircuit, *types.PublicValues, error) {
	if !left.PublicValues.Chain(right.PublicValues) {
		return nil, nil, &types.ChainBreakError{
			Boundary: left.PublicValues.Segments,
			EndRoot:  types.HexBytes(left.PublicValues.EndRoot.Bytes()),
			Start:    types.HexBytes(right.PublicValues.StartRoot.Bytes()),
		}
	}
	leftProof, err := stdgroth16.ValueOfProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](left.Proof)
	if err != nil {
		return nil, nil, fmt.Errorf("transform left recursive proof: %w", err)
	}
	rightProof, err := stdgroth16.ValueOfProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](right.Proof)
	if err != nil {
		return nil, nil, fmt.Errorf("transform right recursive proof: %w", err)
	}
	leftWitnessVK, err := stdgroth16.ValueOfVerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](leftVK)
	if err != nil {
		return nil, nil, fmt.Errorf("transform left verifying key: %w", err)
	}
	rightWitnessVK, err := stdgroth16.ValueOfVerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](rightVK)
	if err != nil {
		return nil, nil, fmt.Errorf("transform right verifying key: %w", err)
	}
	leftHash, err := circuits.NativeVerifyingKeyHash(leftVK)
	if err != nil {
		return nil, nil, fmt.Errorf("hash left verifying key: %w", err)
	}
	rightHash, err := circuits.NativeVerifyingKeyHash(rightVK)
	if err != nil {
		return nil, nil, fmt.Errorf("hash right verifying key: %w", err)
	}
	digest, err := types.ChainVKDigest(left.PublicValues.VKDigest, leftHash, right.PublicValues.VKDigest, rightHash)
	if err != nil {
		return nil, nil, err
	}
	publics := left.PublicValues.Merge(right.PublicValues)
	publics.VKDigest = digest
	return &NodeCircuit{
		StartRoot:     publics.StartRoot,
		EndRoot:       publics.EndRoot,
		VKDigest:      digest,
		MidRoot:       left.PublicValues.EndRoot,
		LeftVKDigest:  left.PublicValues.VKDigest,
		RightVKDigest: right.PublicValues.VKDigest,
		LeftProof:     leftProof,
		RightProof:    rightProof,
		LeftVK:        leftWitnessVK,
		RightVK:       rightWitnessVK,
	}, publics, nil
}

// AssignMixed builds the mixed witness from a recursive proof and the
// trailing base segment proof adjacent to it.
func AssignMixed(left *types.RecursiveProof, right *types.SegmentProof, leftVK groth16.VerifyingKey) (*MixedCircuit, *types.PublicValues, error) {
	if !left.PublicValues.Chain(right.PublicValues) {
		return nil, nil, &types.ChainBreakError{
			Boundary: right.Index,
			EndRoot:  types.HexBytes(left.PublicValues.EndRoot.Bytes()),
			Start:    types.HexBytes(right.PublicValues.StartRoot.Bytes()),
		}
	}
	leftProof, err := stdgroth16.ValueOfProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](left.Proof)
	if err != nil {
		return nil, nil, fmt.Errorf("transform recursive proof: %w", err)
	}
	rightProof, err := stdgroth16.ValueOfProof[sw_bls12377.G1Affine, sw_bls12377.G2Affine](right.Proof)
	if err != nil {
		return nil, nil, fmt.Errorf("transform segment proof: %w", err)
	}
	leftWitnessVK, err := stdgroth16.ValueOfVerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](leftVK)
	if err != nil {
		return nil, nil, fmt.Errorf("transform verifying key: %w", err)
	}
	leftHash, err := circuits.NativeVerifyingKeyHash(leftVK)
	if err != nil {
		return nil, nil, fmt.Errorf("hash verifying key: %w", err)
	}
	digest, err := types.ChainVKDigest(left.PublicValues.VKDigest, leftHash)
	if err != nil {
		return nil, nil, err
	}
	publics := left.PublicValues.Merge(right.PublicValues)
	publics.VKDigest = digest
	return &MixedCircuit{
		StartRoot:    publics.StartRoot,
		EndRoot:      publics.EndRoot,
		VKDigest:     digest,
		MidRoot:      left.PublicValues.EndRoot,
		LeftVKDigest: left.PublicValues.VKDigest,
		LeftProof:    leftProof,
		RightProof:   rightProof,
		LeftVK:       leftWitnessVK,
	}, publics, nil
}
