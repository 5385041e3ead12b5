package types

import (
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
)

// Backend identifies the pairing-based SNARK backend used to wrap the final
// recursive proof. It is a closed set; selection is an explicit configuration
// choice, never inferred at runtime.
type Backend int

const (
	// BackendGroth16 wraps into a Groth16 proof over BN254 (smallest proof,
	// circuit-specific trusted setup).
	BackendGroth16 Backend = iota + 1
	// BackendPlonk wraps into a PLONK proof over BN254 (universal setup,
	// slightly larger proof).
	BackendPlonk
)

// String returns the backend name as used in build directory layouts and
// configuration values.
func (b Backend) String() string {
	switch b {
	case BackendGroth16:
		return "groth16"
	case BackendPlonk:
		return "plonk"
	default:
		return fmt.Sprintf("unknown(%d)", int(b))
	}
}

// ParseBackend parses a backend name. It accepts the values produced by
// Backend.String.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "groth16":
		return BackendGroth16, nil
	case "plonk":
		return BackendPlonk, nil
	default:
		return 0, fmt.Errorf("unknown wrap backend %q", s)
	}
}

// SegmentProof is a base proof of one execution segment, as produced by the
// segment prover. The proof is opaque to the pipeline; only its public values
// and the verifying key identifier are inspected.
type SegmentProof struct {
	// Index is the position of the segment in the original execution order.
	Index int
	// Proof is the Groth16 proof over the segment curve (BLS12-377).
	Proof groth16.Proof
	// PublicValues is the public statement of the segment.
	PublicValues *PublicValues
	// VerifyingKeyID identifies the base circuit shape that can check the
	// proof.
	VerifyingKeyID string
}

// RecursiveProof is a proof produced by a recursion, shrink or wrap pass. The
// Shape field names the circuit shape that produced it, which is also the
// shape whose verifying key checks it.
type RecursiveProof struct {
	Proof        groth16.Proof
	PublicValues *PublicValues
	Shape        string
}
