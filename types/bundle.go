package types

import (
	"bytes"
	"fmt"
	"math/big"
	"os"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/fxamacker/cbor/v2"
)

// segmentBundleVersion tags the on-disk bundle format.
const segmentBundleVersion = 1

// segmentEntry is the serialized form of one segment proof inside a bundle.
type segmentEntry struct {
	Index          int      `cbor:"1,keyasint"`
	Proof          HexBytes `cbor:"2,keyasint"`
	StartRoot      HexBytes `cbor:"3,keyasint"`
	EndRoot        HexBytes `cbor:"4,keyasint"`
	VerifyingKeyID string   `cbor:"5,keyasint"`
}

type segmentBundle struct {
	Version  int            `cbor:"1,keyasint"`
	Segments []segmentEntry `cbor:"2,keyasint"`
}

// MarshalSegmentBundle serializes a set of segment proofs into the portable
// bundle format handed between the segment prover and the reduction
// pipeline.
func MarshalSegmentBundle(segments []*SegmentProof) ([]byte, error) {
	bundle := segmentBundle{Version: segmentBundleVersion}
	for _, sp := range segments {
		var buf bytes.Buffer
		if _, err := sp.Proof.WriteTo(&buf); err != nil {
			return nil, fmt.Errorf("serialize proof of segment %d: %w", sp.Index, err)
		}
		bundle.Segments = append(bundle.Segments, segmentEntry{
			Index:          sp.Index,
			Proof:          buf.Bytes(),
			StartRoot:      sp.PublicValues.StartRoot.Bytes(),
			EndRoot:        sp.PublicValues.EndRoot.Bytes(),
			VerifyingKeyID: sp.VerifyingKeyID,
		})
	}
	opts, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return opts.Marshal(bundle)
}

// UnmarshalSegmentBundle decodes a segment bundle. The curve parameter names
// the curve the segment proofs live on.
func UnmarshalSegmentBundle(data []byte, curve ecc.ID) ([]*SegmentProof, error) {
	bundle := segmentBundle{}
	if err := cbor.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("decode segment bundle: %w", err)
	}
	if bundle.Version != segmentBundleVersion {
		return nil, fmt.Errorf("unsupported segment bundle version %d", bundle.Version)
	}
	segments := make([]*SegmentProof, 0, len(bundle.Segments))
	for _, entry := range bundle.Segments {
		proof := groth16.NewProof(curve)
		if _, err := proof.ReadFrom(bytes.NewReader(entry.Proof)); err != nil {
			return nil, fmt.Errorf("decode proof of segment %d: %w", entry.Index, err)
		}
		segments = append(segments, &SegmentProof{
			Index:          entry.Index,
			Proof:          proof,
			PublicValues:   NewPublicValues(new(big.Int).SetBytes(entry.StartRoot), new(big.Int).SetBytes(entry.EndRoot)),
			VerifyingKeyID: entry.VerifyingKeyID,
		})
	}
	return segments, nil
}

// ReadSegmentBundle loads a segment bundle file.
func ReadSegmentBundle(path string, curve ecc.ID) ([]*SegmentProof, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read segment bundle: %w", err)
	}
	return UnmarshalSegmentBundle(data, curve)
}

// WriteSegmentBundle writes a segment bundle file.
func WriteSegmentBundle(path string, segments []*SegmentProof) error {
	data, err := MarshalSegmentBundle(segments)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
