/*
Package storage provides the persistent storage layer of the proving
pipeline.

The storage uses a key-value database with prefixed namespaces to organize
different types of data:

## Proving Runs
  - r/  : runID → ProofRun record (backend, segment count, status, statement)
  - sp/ : runID + segment index → serialized segment proof
  - fp/ : runID → final wrapped proof

## Artifact Registry
  - ar/ : shape + version → artifact record (file hashes, build time)

Segment proofs are kept only while their run is in flight and removed by
cleanup once the final proof is stored.
*/
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/eigmax/zkMIPS/log"
)

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrNotFound         = errors.New("not found")

	// Prefixes
	runPrefix          = []byte("r/")
	segmentProofPrefix = []byte("sp/")
	finalProofPrefix   = []byte("fp/")
	artifactPrefix     = []byte("ar/")
)

// Storage manages the prefixed namespaces over a single pebble database. All
// exported methods are safe for concurrent use.
type Storage struct {
	db         *pebble.DB
	globalLock sync.Mutex
}

// New opens or creates the database at the given path.
func New(path string) (*Storage, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open storage at %s: %w", path, err)
	}
	return &Storage{db: db}, nil
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err.Error())
		return err
	}
	return nil
}

func key(prefix []byte, parts ...[]byte) []byte {
	k := append([]byte{}, prefix...)
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}

// setArtifact CBOR-encodes the value and stores it under prefix+key.
func (s *Storage) setArtifact(prefix []byte, k []byte, value any) error {
	data, err := EncodeArtifact(value)
	if err != nil {
		return err
	}
	return s.db.Set(key(prefix, k), data, pebble.Sync)
}

// getArtifact loads and decodes the value stored under prefix+key.
func (s *Storage) getArtifact(prefix []byte, k []byte, out any) error {
	data, closer, err := s.db.Get(key(prefix, k))
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Warnw("failed to close storage value", "error", err.Error())
		}
	}()
	return DecodeArtifact(data, out)
}

// setRaw stores raw bytes under prefix+key.
func (s *Storage) setRaw(prefix []byte, k, value []byte) error {
	return s.db.Set(key(prefix, k), value, pebble.Sync)
}

// getRaw loads raw bytes stored under prefix+key.
func (s *Storage) getRaw(prefix []byte, k []byte) ([]byte, error) {
	data, closer, err := s.db.Get(key(prefix, k))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	out := append([]byte{}, data...)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// deletePrefix removes every key under prefix+key.
func (s *Storage) deletePrefix(prefix []byte, k []byte) error {
	lower := key(prefix, k)
	upper := append(append([]byte{}, lower...), 0xff)
	return s.db.DeleteRange(lower, upper, pebble.Sync)
}

// iteratePrefix calls fn for every key-value pair under the prefix. The
// callback must not retain the value slice.
func (s *Storage) iteratePrefix(prefix []byte, fn func(k, v []byte) error) error {
	upper := append(append([]byte{}, prefix...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	if err != nil {
		return fmt.Errorf("iterate: %w", err)
	}
	defer func() {
		if err := iter.Close(); err != nil {
			log.Warnw("failed to close storage iterator", "error", err.Error())
		}
	}()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key()[len(prefix):], iter.Value()); err != nil {
			return err
		}
	}
	return nil
}
