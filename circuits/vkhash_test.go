package circuits

import (
	"testing"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	qt "github.com/frankban/quicktest"

	"github.com/eigmax/zkMIPS/circuits/params"
)

// squareCircuit is a minimal BW6-761 circuit used to produce verifying keys
// for hashing tests.
type squareCircuit struct {
	X frontend.Variable
	Y frontend.Variable `gnark:",public"`
}

func (c *squareCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Mul(c.X, c.X), c.Y)
	return nil
}

func TestNativeVerifyingKeyHash(t *testing.T) {
	c := qt.New(t)

	ccs, err := frontend.Compile(params.RecursionCurve.ScalarField(), r1cs.NewBuilder, &squareCircuit{})
	c.Assert(err, qt.IsNil)
	_, vk, err := groth16.Setup(ccs)
	c.Assert(err, qt.IsNil)

	h1, err := NativeVerifyingKeyHash(vk)
	c.Assert(err, qt.IsNil)
	c.Assert(h1.Sign(), qt.Not(qt.Equals), 0)

	// Hashing is deterministic over the same key.
	h2, err := NativeVerifyingKeyHash(vk)
	c.Assert(err, qt.IsNil)
	c.Assert(h1.Cmp(h2), qt.Equals, 0)

	// A fresh setup of the same circuit yields a different key and thus a
	// different hash.
	_, vk2, err := groth16.Setup(ccs)
	c.Assert(err, qt.IsNil)
	h3, err := NativeVerifyingKeyHash(vk2)
	c.Assert(err, qt.IsNil)
	c.Assert(h3.Cmp(h1), qt.Not(qt.Equals), 0)
}

func TestVerifyingKeyID(t *testing.T) {
	c := qt.New(t)

	ccs, err := frontend.Compile(params.RecursionCurve.ScalarField(), r1cs.NewBuilder, &squareCircuit{})
	c.Assert(err, qt.IsNil)
	_, vk, err := groth16.Setup(ccs)
	c.Assert(err, qt.IsNil)

	id1, err := VerifyingKeyID(vk)
	c.Assert(err, qt.IsNil)
	c.Assert(id1, qt.HasLen, 64)

	id2, err := VerifyingKeyID(vk)
	c.Assert(err, qt.IsNil)
	c.Assert(id2, qt.Equals, id1)

	_, vk2, err := groth16.Setup(ccs)
	c.Assert(err, qt.IsNil)
	id3, err := VerifyingKeyID(vk2)
	c.Assert(err, qt.IsNil)
	c.Assert(id3, qt.Not(qt.Equals), id1)
}
