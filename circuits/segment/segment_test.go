package segment

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/test"
	qt "github.com/frankban/quicktest"

	"github.com/eigmax/zkMIPS/circuits/params"
)

// assignSegment builds a full circuit assignment from a start state and a
// run of step inputs, padding the remaining slots as inactive.
func assignSegment(start *big.Int, inputs []*big.Int) *Circuit {
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
	return assignment
}

func TestSegmentCircuitSolves(t *testing.T) {
	assert := test.NewAssert(t)
	assignment := assignSegment(big.NewInt(7), []*big.Int{
		big.NewInt(11), big.NewInt(22), big.NewInt(33),
	})
	assert.SolvingSucceeded(&Circuit{}, assignment,
		test.WithCurves(ecc.BLS12_377), test.WithBackends(backend.GROTH16))
}

func TestSegmentCircuitEmptyTransition(t *testing.T) {
	assert := test.NewAssert(t)
	// An all-inactive segment proves StartRoot == EndRoot.
	assignment := assignSegment(big.NewInt(42), nil)
	assert.SolvingSucceeded(&Circuit{}, assignment,
		test.WithCurves(ecc.BLS12_377), test.WithBackends(backend.GROTH16))
}

func TestSegmentCircuitRejectsWrongEndRoot(t *testing.T) {
	assert := test.NewAssert(t)
	assignment := assignSegment(big.NewInt(7), []*big.Int{big.NewInt(11)})
	assignment.EndRoot = big.NewInt(12345)
	assert.SolvingFailed(&Circuit{}, assignment,
		test.WithCurves(ecc.BLS12_377), test.WithBackends(backend.GROTH16))
}

func TestSegmentCircuitRejectsResumedExecution(t *testing.T) {
	assert := test.NewAssert(t)
	// A halted segment must not become active again.
	assignment := assignSegment(big.NewInt(7), []*big.Int{big.NewInt(11)})
	assignment.Active[2] = 1
	assignment.Inputs[2] = big.NewInt(99)
	assert.SolvingFailed(&Circuit{}, assignment,
		test.WithCurves(ecc.BLS12_377), test.WithBackends(backend.GROTH16))
}

func TestTransitionReference(t *testing.T) {
	c := qt.New(t)

	// Deterministic and order sensitive.
	a := Transition(big.NewInt(1), []*big.Int{big.NewInt(2), big.NewInt(3)})
	b := Transition(big.NewInt(1), []*big.Int{big.NewInt(2), big.NewInt(3)})
	c.Assert(a.Cmp(b), qt.Equals, 0)
	swapped := Transition(big.NewInt(1), []*big.Int{big.NewInt(3), big.NewInt(2)})
	c.Assert(a.Cmp(swapped), qt.Not(qt.Equals), 0)

	// The empty run is the identity.
	c.Assert(Transition(big.NewInt(9), nil).Cmp(big.NewInt(9)), qt.Equals, 0)

	// Composition: running the steps in two halves chains through the
	// intermediate state.
	mid := Transition(big.NewInt(1), []*big.Int{big.NewInt(2)})
	c.Assert(Transition(mid, []*big.Int{big.NewInt(3)}).Cmp(a), qt.Equals, 0)
}
