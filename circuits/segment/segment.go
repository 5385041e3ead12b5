// segment package contains the reference segment circuit. A segment proof
// attests that executing a bounded run of program steps transforms the
// machine state commitment StartRoot into EndRoot. Each step folds one step
// input into the running state with MiMC; inactive steps leave the state
// untouched, so a segment can cover fewer than MaxSegmentSteps real steps
// and an all-inactive segment proves the empty transition.
package segment

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"github.com/eigmax/zkMIPS/circuits"
	"github.com/eigmax/zkMIPS/circuits/params"
)

type Circuit struct {
	StartRoot frontend.Variable `gnark:",public"`
	EndRoot   frontend.Variable `gnark:",public"`
	// Inputs[i] is the committed input of step i, Active[i] is 1 while
	// the segment is still executing and 0 after it halts.
	Inputs [params.MaxSegmentSteps]frontend.Variable
	Active [params.MaxSegmentSteps]frontend.Variable
}

func (c *Circuit) Define(api frontend.API) error {
	hFn, err := mimc.NewMiMC(api)
	if err != nil {
		circuits.FrontendError(api, "failed to create MiMC hash function", err)
		return err
	}
	state := c.StartRoot
	for i := range len(c.Active) {
		api.AssertIsBoolean(c.Active[i])
		if i > 0 {
			// active steps form a prefix, a halted segment stays halted
			api.AssertIsLessOrEqual(c.Active[i], c.Active[i-1])
		}
		hFn.Reset()
		hFn.Write(state, c.Inputs[i])
		state = api.Select(c.Active[i], hFn.Sum(), state)
	}
	api.AssertIsEqual(state, c.EndRoot)
	return nil
}
