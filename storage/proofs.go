package storage

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"

	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/types"
)

// segmentProofRecord is the serialized form of a segment proof. The gnark
// proof is stored as opaque bytes next to its public statement.
type segmentProofRecord struct {
	Index          int            `cbor:"1,keyasint"`
	Proof          types.HexBytes `cbor:"2,keyasint"`
	StartRoot      types.HexBytes `cbor:"3,keyasint"`
	EndRoot        types.HexBytes `cbor:"4,keyasint"`
	VerifyingKeyID string         `cbor:"5,keyasint"`
}

// PushSegmentProof persists one segment proof of a run.
func (s *Storage) PushSegmentProof(runID string, proof *types.SegmentProof) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	var buf bytes.Buffer
	if _, err := proof.Proof.WriteTo(&buf); err != nil {
		return fmt.Errorf("serialize segment proof: %w", err)
	}
	rec := &segmentProofRecord{
		Index:          proof.Index,
		Proof:          buf.Bytes(),
		StartRoot:      proof.PublicValues.StartRoot.Bytes(),
		EndRoot:        proof.PublicValues.EndRoot.Bytes(),
		VerifyingKeyID: proof.VerifyingKeyID,
	}
	return s.setArtifact(segmentProofPrefix, segmentKey(runID, proof.Index), rec)
}

// SegmentProof loads the segment proof with the given index of a run.
func (s *Storage) SegmentProof(runID string, index int) (*types.SegmentProof, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	rec := &segmentProofRecord{}
	if err := s.getArtifact(segmentProofPrefix, segmentKey(runID, index), rec); err != nil {
		return nil, err
	}
	proof := groth16.NewProof(params.SegmentCurve)
	if _, err := proof.ReadFrom(bytes.NewReader(rec.Proof)); err != nil {
		return nil, fmt.Errorf("deserialize segment proof: %w", err)
	}
	return &types.SegmentProof{
		Index:          rec.Index,
		Proof:          proof,
		PublicValues:   types.NewPublicValues(new(big.Int).SetBytes(rec.StartRoot), new(big.Int).SetBytes(rec.EndRoot)),
		VerifyingKeyID: rec.VerifyingKeyID,
	}, nil
}

// SetFinalProof persists the wrapped final proof of a run.
func (s *Storage) SetFinalProof(runID string, fp *types.FinalProof) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	data, err := fp.Marshal()
	if err != nil {
		return fmt.Errorf("marshal final proof: %w", err)
	}
	return s.setRaw(finalProofPrefix, []byte(runID), data)
}

// FinalProof loads the wrapped final proof of a run. Returns ErrNotFound if
// the run has not finished.
func (s *Storage) FinalProof(runID string) (*types.FinalProof, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	data, err := s.getRaw(finalProofPrefix, []byte(runID))
	if err != nil {
		return nil, err
	}
	fp := &types.FinalProof{}
	if err := fp.Unmarshal(data); err != nil {
		return nil, err
	}
	return fp, nil
}
