package circuits

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	mimc_bw6761 "github.com/consensys/gnark-crypto/ecc/bw6-761/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bw6761"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/math/emulated"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
)

// VerifyingKeyHash binds a witness verifying key to a single field element
// inside a BW6-761 circuit. It absorbs every limb of the key's points and
// pairing element into the native MiMC hash, so two keys collide only if
// every coordinate matches. The limb order here must stay in sync with
// NativeVerifyingKeyHash.
func VerifyingKeyHash(api frontend.API,
	vk stdgroth16.VerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl],
) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, fmt.Errorf("create mimc hash: %w", err)
	}
	for i := range vk.G1.K {
		h.Write(vk.G1.K[i].X.Limbs...)
		h.Write(vk.G1.K[i].Y.Limbs...)
	}
	h.Write(vk.G2.GammaNeg.P.X.Limbs...)
	h.Write(vk.G2.GammaNeg.P.Y.Limbs...)
	h.Write(vk.G2.DeltaNeg.P.X.Limbs...)
	h.Write(vk.G2.DeltaNeg.P.Y.Limbs...)
	h.Write(vk.E.A0.Limbs...)
	h.Write(vk.E.A1.Limbs...)
	h.Write(vk.E.A2.Limbs...)
	h.Write(vk.E.A3.Limbs...)
	h.Write(vk.E.A4.Limbs...)
	h.Write(vk.E.A5.Limbs...)
	return h.Sum(), nil
}

// NativeVerifyingKeyHash computes, outside the circuit, the same digest that
// VerifyingKeyHash computes inside it. The key is first lifted to its emulated
// witness form so both sides see identical limb decompositions.
func NativeVerifyingKeyHash(vk groth16.VerifyingKey) (*big.Int, error) {
	w, err := stdgroth16.ValueOfVerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](vk)
	if err != nil {
		return nil, fmt.Errorf("lift verifying key: %w", err)
	}
	h := mimc_bw6761.NewMiMC()
	writeLimbs := func(el emulated.Element[sw_bw6761.BaseField]) error {
		var fp sw_bw6761.BaseField
		for i := 0; i < int(fp.NbLimbs()); i++ {
			var limb *big.Int
			if i < len(el.Limbs) {
				limb, err = limbValue(el.Limbs[i])
				if err != nil {
					return err
				}
			} else {
				limb = new(big.Int)
			}
			var block [fr.Bytes]byte
			limb.FillBytes(block[:])
			if _, err := h.Write(block[:]); err != nil {
				return err
			}
		}
		return nil
	}
	for i := range w.G1.K {
		if err := writeLimbs(w.G1.K[i].X); err != nil {
			return nil, err
		}
		if err := writeLimbs(w.G1.K[i].Y); err != nil {
			return nil, err
		}
	}
	for _, el := range []emulated.Element[sw_bw6761.BaseField]{
		w.G2.GammaNeg.P.X, w.G2.GammaNeg.P.Y,
		w.G2.DeltaNeg.P.X, w.G2.DeltaNeg.P.Y,
		w.E.A0, w.E.A1, w.E.A2, w.E.A3, w.E.A4, w.E.A5,
	} {
		if err := writeLimbs(el); err != nil {
			return nil, err
		}
	}
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}

func limbValue(v frontend.Variable) (*big.Int, error) {
	switch t := v.(type) {
	case *big.Int:
		return t, nil
	case big.Int:
		return &t, nil
	case uint64:
		return new(big.Int).SetUint64(t), nil
	case int:
		return big.NewInt(int64(t)), nil
	case nil:
		return new(big.Int), nil
	default:
		return nil, fmt.Errorf("unexpected limb type %T", v)
	}
}
