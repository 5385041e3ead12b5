package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
)

// FinalProof binary format, version 1:
//
//	magic     [4]byte  "ZKMP"
//	version   uint8
//	backend   uint8    (1 = groth16, 2 = plonk)
//	proofLen  uint32   big endian
//	proof     [proofLen]byte
//	vkRoot    [32]byte big endian field element
//	digest    [32]byte big endian field element
//
// The two trailing field elements are the wrap circuit's public inputs: the
// verifying key root and the public values digest. The format is stable and
// versioned; decoding rejects unknown versions instead of guessing.
const (
	finalProofVersion = 1
	finalProofMagic   = "ZKMP"
)

// FinalProof is the constant-size wrapped proof handed to external verifiers.
type FinalProof struct {
	// Backend that produced the proof.
	Backend Backend
	// Proof is the serialized BN254 proof, opaque bytes.
	Proof HexBytes
	// VkRoot is the first public input: the digest of the verifying keys
	// consumed along the recursion.
	VkRoot *big.Int
	// PublicDigest is the second public input: the digest of the start and
	// end state roots.
	PublicDigest *big.Int
}

// Marshal serializes the final proof into the stable binary format.
func (fp *FinalProof) Marshal() ([]byte, error) {
	if fp.Backend != BackendGroth16 && fp.Backend != BackendPlonk {
		return nil, fmt.Errorf("cannot marshal final proof: invalid backend %d", fp.Backend)
	}
	if len(fp.Proof) == 0 {
		return nil, fmt.Errorf("cannot marshal final proof: empty proof bytes")
	}
	buf := new(bytes.Buffer)
	buf.WriteString(finalProofMagic)
	buf.WriteByte(finalProofVersion)
	buf.WriteByte(byte(fp.Backend))
	if err := binary.Write(buf, binary.BigEndian, uint32(len(fp.Proof))); err != nil {
		return nil, err
	}
	buf.Write(fp.Proof)
	buf.Write(HexBytes(fp.VkRoot.Bytes()).LeftPad(StateRootLen))
	buf.Write(HexBytes(fp.PublicDigest.Bytes()).LeftPad(StateRootLen))
	return buf.Bytes(), nil
}

// Unmarshal deserializes a final proof, rejecting unknown magic or versions.
func (fp *FinalProof) Unmarshal(data []byte) error {
	header := len(finalProofMagic) + 2 + 4
	if len(data) < header {
		return fmt.Errorf("final proof too short: %d bytes", len(data))
	}
	if string(data[:4]) != finalProofMagic {
		return fmt.Errorf("invalid final proof magic %x", data[:4])
	}
	if data[4] != finalProofVersion {
		return fmt.Errorf("unsupported final proof version %d", data[4])
	}
	backend := Backend(data[5])
	if backend != BackendGroth16 && backend != BackendPlonk {
		return fmt.Errorf("invalid final proof backend tag %d", data[5])
	}
	proofLen := binary.BigEndian.Uint32(data[6:10])
	want := header + int(proofLen) + 2*StateRootLen
	if len(data) != want {
		return fmt.Errorf("final proof length mismatch: got %d bytes, want %d", len(data), want)
	}
	proof := make(HexBytes, proofLen)
	copy(proof, data[header:header+int(proofLen)])
	off := header + int(proofLen)
	fp.Backend = backend
	fp.Proof = proof
	fp.VkRoot = new(big.Int).SetBytes(data[off : off+StateRootLen])
	fp.PublicDigest = new(big.Int).SetBytes(data[off+StateRootLen:])
	return nil
}
