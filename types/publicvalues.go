package types

import (
	"fmt"
	"math/big"

	mimc_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	mimc_bw6761 "github.com/consensys/gnark-crypto/ecc/bw6-761/fr/mimc"
)

// StateRootLen is the serialized length of a state root, in bytes. State
// roots are field elements small enough to be native in every curve of the
// proving ladder (BLS12-377, BW6-761 and BN254).
const StateRootLen = 32

// vkDigestLimbs is the number of 64-bit limbs of a BW6-761 scalar field
// element, matching the emulated element representation used in the wrap
// circuit.
const vkDigestLimbs = 6

// PublicValues carries the public statement of a proof at any stage of the
// reduction pipeline: the machine state commitment before the first segment
// covered by the proof, the state commitment after the last one, the number
// of segments folded so far and the running digest of the verifying keys
// consumed by witness-key folds.
type PublicValues struct {
	StartRoot *big.Int `json:"startRoot" cbor:"1,keyasint"`
	EndRoot   *big.Int `json:"endRoot" cbor:"2,keyasint"`
	Segments  int      `json:"segments" cbor:"3,keyasint"`
	VKDigest  *big.Int `json:"vkDigest,omitempty" cbor:"4,keyasint,omitempty"`
}

// NewPublicValues returns the public values of a single base segment going
// from start to end.
func NewPublicValues(start, end *big.Int) *PublicValues {
	return &PublicValues{
		StartRoot: new(big.Int).Set(start),
		EndRoot:   new(big.Int).Set(end),
		Segments:  1,
		VKDigest:  big.NewInt(0),
	}
}

// Chain checks the continuity invariant against the public values of the
// next adjacent proof: the end state of the receiver must equal the start
// state of next.
func (pv *PublicValues) Chain(next *PublicValues) bool {
	return pv.EndRoot.Cmp(next.StartRoot) == 0
}

// Merge returns the public values resulting from folding the receiver with
// the adjacent next proof. It does not check the chain invariant; callers
// must check Chain first. The verifying key digest is not merged here since
// it depends on the circuit shape performing the fold; the pipeline chains
// it explicitly.
func (pv *PublicValues) Merge(next *PublicValues) *PublicValues {
	return &PublicValues{
		StartRoot: new(big.Int).Set(pv.StartRoot),
		EndRoot:   new(big.Int).Set(next.EndRoot),
		Segments:  pv.Segments + next.Segments,
		VKDigest:  new(big.Int).Set(pv.VKDigest),
	}
}

// Digest returns the canonical public input digest of the values:
// MiMC_BN254(StartRoot, EndRoot). It must produce exactly the same value the
// wrap circuit exposes as its PublicDigest input, so any verifier that
// recomputes it the same way can check a final proof without understanding
// the recursive history.
func (pv *PublicValues) Digest() (*big.Int, error) {
	h := mimc_bn254.NewMiMC()
	for _, root := range []*big.Int{pv.StartRoot, pv.EndRoot} {
		b := HexBytes(root.Bytes()).LeftPad(StateRootLen)
		if _, err := h.Write(b); err != nil {
			return nil, fmt.Errorf("digest public values: %w", err)
		}
	}
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}

// Equal reports whether both public values carry the same statement.
func (pv *PublicValues) Equal(other *PublicValues) bool {
	if pv == nil || other == nil {
		return pv == other
	}
	return pv.StartRoot.Cmp(other.StartRoot) == 0 &&
		pv.EndRoot.Cmp(other.EndRoot) == 0 &&
		pv.Segments == other.Segments &&
		pv.VKDigest.Cmp(other.VKDigest) == 0
}

// ChainVKDigest extends a verifying key digest chain with the provided
// hashes, mirroring the in-circuit computation of the recursion node
// circuits: MiMC_BW6761(prev, h_1, ..., h_n).
func ChainVKDigest(prev *big.Int, hashes ...*big.Int) (*big.Int, error) {
	h := mimc_bw6761.NewMiMC()
	inputs := append([]*big.Int{prev}, hashes...)
	for _, in := range inputs {
		b := HexBytes(in.Bytes()).LeftPad(mimc_bw6761.BlockSize)
		if _, err := h.Write(b); err != nil {
			return nil, fmt.Errorf("chain vk digest: %w", err)
		}
	}
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}

// VKRootFromDigest compresses a BW6-761 sized verifying key digest into a
// BN254 public input the way the wrap circuit does: split the digest into
// 64-bit limbs (least significant first, as the emulated element
// representation) and hash them with MiMC_BN254.
func VKRootFromDigest(digest *big.Int) (*big.Int, error) {
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1))
	rest := new(big.Int).Set(digest)
	h := mimc_bn254.NewMiMC()
	for range vkDigestLimbs {
		limb := new(big.Int).And(rest, mask)
		if _, err := h.Write(HexBytes(limb.Bytes()).LeftPad(mimc_bn254.BlockSize)); err != nil {
			return nil, fmt.Errorf("vk root: %w", err)
		}
		rest.Rsh(rest, 64)
	}
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}
