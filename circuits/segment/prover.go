package segment

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	mimc_bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"

	"github.com/eigmax/zkMIPS/circuits"
	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/types"
)

// Prover generates segment proofs with the reference circuit. Proofs are
// produced with the prover options required for verification inside a
// BW6-761 circuit.
type Prover struct {
	ccs  constraint.ConstraintSystem
	pk   groth16.ProvingKey
	vk   groth16.VerifyingKey
	vkID string
}

// NewProver wraps already built segment circuit artifacts.
func NewProver(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey) (*Prover, error) {
	vkID, err := circuits.VerifyingKeyID(vk)
	if err != nil {
		return nil, err
	}
	return &Prover{ccs: ccs, pk: pk, vk: vk, vkID: vkID}, nil
}

// Compile builds the segment circuit and runs an unsafe local setup. It is
// meant for tests and development, production keys come from the artifact
// store.
func Compile() (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	ccs, err := frontend.Compile(params.SegmentCurve.ScalarField(), r1cs.NewBuilder, &Circuit{})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("compile segment circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup segment circuit: %w", err)
	}
	return ccs, pk, vk, nil
}

// VerifyingKey returns the segment verifying key shared by every segment
// proof.
func (p *Prover) VerifyingKey() groth16.VerifyingKey { return p.vk }

// Transition computes the state commitment reached after folding the given
// step inputs into start. It mirrors exactly what the circuit enforces.
func Transition(start *big.Int, inputs []*big.Int) *big.Int {
	var state fr.Element
	state.SetBigInt(start)
	for _, in := range inputs {
		var step fr.Element
		step.SetBigInt(in)
		h := mimc_bls12377.NewMiMC()
		sb := state.Bytes()
		ib := step.Bytes()
		h.Write(sb[:])
		h.Write(ib[:])
		state.SetBytes(h.Sum(nil))
	}
	return state.BigInt(new(big.Int))
}

// Prove executes up to MaxSegmentSteps step inputs from the given start
// state and returns a proof of the resulting transition.
func (p *Prover) Prove(index int, start *big.Int, inputs []*big.Int) (*types.SegmentProof, error) {
	if len(inputs) > params.MaxSegmentSteps {
		return nil, fmt.Errorf("%w: segment has %d steps, limit is %d",
			types.ErrWitnessGeneration, len(inputs), params.MaxSegmentSteps)
	}
	end := Transition(start, inputs)

	assignment := &Circuit{StartRoot: start, EndRoot: end}
	for i := range params.MaxSegmentSteps {
		if i < len(inputs) {
			assignment.Inputs[i] = inputs[i]
			assignment.Active[i] = 1
		} else {
			assignment.Inputs[i] = 0
			assignment.Active[i] = 0
		}
	}

	proof, err := types.DefaultProver(
		params.SegmentCurve,
		p.ccs,
		p.pk,
		assignment,
		stdgroth16.GetNativeProverOptions(
			params.RecursionCurve.ScalarField(),
			params.SegmentCurve.ScalarField(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("generate segment proof: %w", err)
	}
	return &types.SegmentProof{
		Index:          index,
		Proof:          proof,
		PublicValues:   types.NewPublicValues(start, end),
		VerifyingKeyID: p.vkID,
	}, nil
}

// Padding proves the empty segment at the given state. The pipeline uses it
// to normalize a single segment run into the two proof slots of a recursion
// leaf.
func (p *Prover) Padding(state *big.Int) (*types.SegmentProof, error) {
	return p.Prove(0, state, nil)
}
