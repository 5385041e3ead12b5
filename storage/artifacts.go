package storage

import (
	"time"

	"github.com/eigmax/zkMIPS/types"
)

// ArtifactRecord registers a built circuit artifact set: which files belong
// to a shape and version, their hashes and when they were produced. The
// registry lets the pipeline detect stale or tampered build directories
// without re-hashing every file on startup.
type ArtifactRecord struct {
	Shape   string                    `cbor:"1,keyasint"`
	Version string                    `cbor:"2,keyasint"`
	Files   map[string]types.HexBytes `cbor:"3,keyasint"`
	BuiltAt time.Time                 `cbor:"4,keyasint"`
}

func artifactKey(shape, version string) []byte {
	return []byte(shape + "/" + version)
}

// SetArtifactRecord registers or replaces the record of a built artifact
// set.
func (s *Storage) SetArtifactRecord(rec *ArtifactRecord) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.setArtifact(artifactPrefix, artifactKey(rec.Shape, rec.Version), rec)
}

// ArtifactRecord loads the registered record of a shape and version. Returns
// ErrNotFound if the artifacts were never built.
func (s *Storage) ArtifactRecord(shape, version string) (*ArtifactRecord, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	rec := &ArtifactRecord{}
	if err := s.getArtifact(artifactPrefix, artifactKey(shape, version), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListArtifactRecords returns every registered artifact record.
func (s *Storage) ListArtifactRecords() ([]*ArtifactRecord, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	var recs []*ArtifactRecord
	err := s.iteratePrefix(artifactPrefix, func(_, v []byte) error {
		rec := &ArtifactRecord{}
		if err := DecodeArtifact(v, rec); err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}
