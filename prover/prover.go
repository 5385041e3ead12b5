// prover package provides the Groth16 proving backends used by every stage
// of the reduction pipeline. Proving runs on CPU by default and on GPU
// through Icicle when enabled, selected once at startup via the GPU_PROVER
// environment variable.
package prover

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/accelerated/icicle"
	gpugroth16 "github.com/consensys/gnark/backend/accelerated/icicle/groth16"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/eigmax/zkMIPS/log"
	"github.com/eigmax/zkMIPS/types"
)

func init() {
	// Set the default prover in the types package to avoid circular
	// dependencies. This allows circuit packages to use the prover without
	// importing this package.
	types.DefaultProver = defaultProverImpl
}

// defaultProverImpl is the internal implementation that gets assigned to
// types.DefaultProver.
func defaultProverImpl(
	curve ecc.ID,
	ccs constraint.ConstraintSystem,
	pk groth16.ProvingKey,
	assignment frontend.Circuit,
	opts ...backend.ProverOption,
) (groth16.Proof, error) {
	if types.UseGPUProver {
		return GPUProver(curve, ccs, pk, assignment, opts...)
	}
	return CPUProver(curve, ccs, pk, assignment, opts...)
}

// DefaultProver is a convenience wrapper that calls the default prover
// implementation. It uses the GPU prover if UseGPUProver is true, otherwise
// it uses the CPU prover.
func DefaultProver(
	curve ecc.ID,
	ccs constraint.ConstraintSystem,
	pk groth16.ProvingKey,
	assignment frontend.Circuit,
	opts ...backend.ProverOption,
) (groth16.Proof, error) {
	return defaultProverImpl(curve, ccs, pk, assignment, opts...)
}

// CPUProver is the standard implementation that simply calls groth16.Prove
// directly. This is used in production environments.
func CPUProver(
	curve ecc.ID,
	ccs constraint.ConstraintSystem,
	pk groth16.ProvingKey,
	assignment frontend.Circuit,
	opts ...backend.ProverOption,
) (groth16.Proof, error) {
	w, err := frontend.NewWitness(assignment, curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: build witness: %v", types.ErrWitnessGeneration, err)
	}
	proof, err := groth16.Prove(ccs, pk, w, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrWitnessGeneration, err)
	}
	return proof, nil
}

// GPUProver is an implementation that uses GPU acceleration for proving.
func GPUProver(
	curve ecc.ID,
	ccs constraint.ConstraintSystem,
	pk groth16.ProvingKey,
	assignment frontend.Circuit,
	opts ...backend.ProverOption,
) (groth16.Proof, error) {
	w, err := frontend.NewWitness(assignment, curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: build witness: %v", types.ErrWitnessGeneration, err)
	}
	log.Debugw("using GPU prover", "curve", curve.String())

	var icicleOpts []icicle.Option
	if len(opts) > 0 {
		icicleOpts = append(icicleOpts, icicle.WithProverOptions(opts...))
	}
	proof, err := gpugroth16.Prove(ccs, pk, w, icicleOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrWitnessGeneration, err)
	}
	return proof, nil
}
