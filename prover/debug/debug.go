// Package debug provides a prover wrapper for test environments. It is kept
// out of the prover package so production binaries never link the testing
// machinery.
package debug

import (
	"fmt"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"

	"github.com/eigmax/zkMIPS/types"
)

// NewDebugProver creates a prover that runs the circuit solver against the
// given placeholder before normal proving. Solver failures surface the exact
// failing constraint instead of an opaque proving error, so tests use this
// to debug witness generation of the recursion shapes.
func NewDebugProver(t *testing.T, placeholder frontend.Circuit) types.ProverFunc {
	return func(
		curve ecc.ID,
		ccs constraint.ConstraintSystem,
		pk groth16.ProvingKey,
		assignment frontend.Circuit,
		opts ...backend.ProverOption,
	) (groth16.Proof, error) {
		assert := test.NewAssert(t)
		startTime := time.Now()
		assert.SolvingSucceeded(placeholder, assignment,
			test.WithCurves(curve),
			test.WithBackends(backend.GROTH16),
			test.WithProverOpts(opts...),
		)
		t.Logf("debug prover succeeded for %T, took %s", assignment, time.Since(startTime).String())

		w, err := frontend.NewWitness(assignment, curve.ScalarField())
		if err != nil {
			return nil, fmt.Errorf("%w: build witness: %v", types.ErrWitnessGeneration, err)
		}
		return groth16.Prove(ccs, pk, w, opts...)
	}
}
