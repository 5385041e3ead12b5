package prover

import (
	"fmt"
	"testing"

	gpugroth16 "github.com/consensys/gnark/backend/accelerated/icicle/groth16"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	qt "github.com/frankban/quicktest"

	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/types"
)

type squareCircuit struct {
	X frontend.Variable
	Y frontend.Variable `gnark:",public"`
}

func (c *squareCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Mul(c.X, c.X), c.Y)
	return nil
}

func TestCPUProverWrapsSolverFailures(t *testing.T) {
	c := qt.New(t)

	ccs, err := frontend.Compile(params.WrapCurve.ScalarField(), r1cs.NewBuilder, &squareCircuit{})
	c.Assert(err, qt.IsNil)
	pk, _, err := Setup(ccs)
	c.Assert(err, qt.IsNil)

	// An unsatisfiable assignment fails in the constraint solver; callers
	// must be able to match the failure against the sentinel.
	_, err = CPUProver(params.WrapCurve, ccs, pk, &squareCircuit{X: 6, Y: 7})
	c.Assert(err, qt.IsNotNil)
	c.Assert(err, qt.ErrorIs, types.ErrWitnessGeneration)

	// A satisfiable assignment still proves.
	proof, err := CPUProver(params.WrapCurve, ccs, pk, &squareCircuit{X: 6, Y: 36})
	c.Assert(err, qt.IsNil)
	c.Assert(proof, qt.IsNotNil)
}

func TestNewProvingKeyHonorsGPUSwitch(t *testing.T) {
	c := qt.New(t)
	was := types.UseGPUProver
	defer func() { types.UseGPUProver = was }()

	types.UseGPUProver = false
	cpuKey := NewProvingKey(params.WrapCurve)
	c.Assert(fmt.Sprintf("%T", cpuKey), qt.Equals,
		fmt.Sprintf("%T", groth16.NewProvingKey(params.WrapCurve)))

	// With GPU proving enabled the key must be the ICICLE-ready structure,
	// so keys deserialized from the artifact store can feed gpugroth16.Prove.
	types.UseGPUProver = true
	gpuKey := NewProvingKey(params.WrapCurve)
	c.Assert(fmt.Sprintf("%T", gpuKey), qt.Equals,
		fmt.Sprintf("%T", gpugroth16.NewProvingKey(params.WrapCurve)))
}
