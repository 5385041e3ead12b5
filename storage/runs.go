package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eigmax/zkMIPS/types"
)

// RunStatus tracks a proving run through its lifecycle.
type RunStatus int

const (
	RunStatusPending RunStatus = iota
	RunStatusReducing
	RunStatusShrinking
	RunStatusWrapping
	RunStatusDone
	RunStatusFailed
)

func (s RunStatus) String() string {
	switch s {
	case RunStatusPending:
		return "pending"
	case RunStatusReducing:
		return "reducing"
	case RunStatusShrinking:
		return "shrinking"
	case RunStatusWrapping:
		return "wrapping"
	case RunStatusDone:
		return "done"
	case RunStatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ProofRun records one end-to-end proving run: the statement being proven,
// the wrap backend requested and where the run currently stands.
type ProofRun struct {
	ID        string         `cbor:"1,keyasint"`
	Backend   types.Backend  `cbor:"2,keyasint"`
	Segments  int            `cbor:"3,keyasint"`
	Status    RunStatus      `cbor:"4,keyasint"`
	StartRoot types.HexBytes `cbor:"5,keyasint"`
	EndRoot   types.HexBytes `cbor:"6,keyasint"`
	Error     string         `cbor:"7,keyasint,omitempty"`
	CreatedAt time.Time      `cbor:"8,keyasint"`
	UpdatedAt time.Time      `cbor:"9,keyasint"`
}

// NewRun creates and persists a pending run record for the given statement.
func (s *Storage) NewRun(backend types.Backend, segments int, startRoot, endRoot types.HexBytes) (*ProofRun, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	now := time.Now().UTC()
	run := &ProofRun{
		ID:        uuid.New().String(),
		Backend:   backend,
		Segments:  segments,
		Status:    RunStatusPending,
		StartRoot: startRoot,
		EndRoot:   endRoot,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.setArtifact(runPrefix, []byte(run.ID), run); err != nil {
		return nil, fmt.Errorf("store run: %w", err)
	}
	return run, nil
}

// Run loads a run record by ID. Returns ErrNotFound if it does not exist.
func (s *Storage) Run(id string) (*ProofRun, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	run := &ProofRun{}
	if err := s.getArtifact(runPrefix, []byte(id), run); err != nil {
		return nil, err
	}
	return run, nil
}

// UpdateRunStatus moves a run to the given status. A non-empty errMsg marks
// the run as carrying a failure context.
func (s *Storage) UpdateRunStatus(id string, status RunStatus, errMsg string) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	run := &ProofRun{}
	if err := s.getArtifact(runPrefix, []byte(id), run); err != nil {
		return err
	}
	run.Status = status
	run.Error = errMsg
	run.UpdatedAt = time.Now().UTC()
	return s.setArtifact(runPrefix, []byte(id), run)
}

// ListRuns returns every stored run record.
func (s *Storage) ListRuns() ([]*ProofRun, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	var runs []*ProofRun
	err := s.iteratePrefix(runPrefix, func(_, v []byte) error {
		run := &ProofRun{}
		if err := DecodeArtifact(v, run); err != nil {
			return err
		}
		runs = append(runs, run)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// CleanupRun removes a run record together with its cached segment proofs
// and final proof.
func (s *Storage) CleanupRun(id string) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if err := s.deletePrefix(segmentProofPrefix, []byte(id)); err != nil {
		return err
	}
	if err := s.deletePrefix(finalProofPrefix, []byte(id)); err != nil {
		return err
	}
	return s.deletePrefix(runPrefix, []byte(id))
}

func segmentKey(runID string, index int) []byte {
	k := make([]byte, 0, len(runID)+4)
	k = append(k, []byte(runID)...)
	k = binary.BigEndian.AppendUint32(k, uint32(index))
	return k
}
