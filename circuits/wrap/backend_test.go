package wrap

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/plonk"
	qt "github.com/frankban/quicktest"

	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/types"
)

func garbageProof(backend types.Backend) *types.FinalProof {
	return &types.FinalProof{
		Backend:      backend,
		Proof:        []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03},
		VkRoot:       big.NewInt(7),
		PublicDigest: big.NewInt(11),
	}
}

func TestVerifyGroth16CorruptedProofFails(t *testing.T) {
	c := qt.New(t)

	// Proof bytes that no longer decode are a failed verification, not an
	// error the caller has to tell apart from its own mistakes.
	vk := groth16.NewVerifyingKey(params.WrapCurve)
	ok, err := VerifyGroth16(garbageProof(types.BackendGroth16), vk)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestVerifyPlonkCorruptedProofFails(t *testing.T) {
	c := qt.New(t)

	vk := plonk.NewVerifyingKey(params.WrapCurve)
	ok, err := VerifyPlonk(garbageProof(types.BackendPlonk), vk)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestVerifyBackendMismatchIsAnError(t *testing.T) {
	c := qt.New(t)

	// Handing a PLONK proof to the Groth16 verifier is a caller error, not a
	// verification result.
	vk := groth16.NewVerifyingKey(params.WrapCurve)
	ok, err := VerifyGroth16(garbageProof(types.BackendPlonk), vk)
	c.Assert(ok, qt.IsFalse)
	c.Assert(err, qt.ErrorIs, types.ErrVerify)

	pvk := plonk.NewVerifyingKey(params.WrapCurve)
	ok, err = VerifyPlonk(garbageProof(types.BackendGroth16), pvk)
	c.Assert(ok, qt.IsFalse)
	c.Assert(err, qt.ErrorIs, types.ErrVerify)
}
