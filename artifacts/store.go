// artifacts package manages the compiled circuit artifacts of the proving
// pipeline: constraint systems, proving keys and verifying keys for every
// circuit shape. Artifacts live in a versioned build directory, one
// subdirectory per shape, each carrying a manifest with the SHA-256 hash of
// every file. Writes are staged in a temporary directory and renamed into
// place, so a crashed build never leaves a half-written shape behind.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/constraint"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eigmax/zkMIPS/circuits"
	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/log"
	"github.com/eigmax/zkMIPS/storage"
	"github.com/eigmax/zkMIPS/types"
)

// File names inside a shape directory.
const (
	circuitFile      = "circuit.ccs"
	provingKeyFile   = "proving.pk"
	verifyingKeyFile = "verifying.vk"
	manifestFile     = "manifest.json"
	lockFile         = ".build.lock"
)

// loadedSetsCacheSize bounds the number of artifact sets held in memory.
// Proving keys dominate memory use, a full pipeline needs at most the seven
// shapes of one version.
const loadedSetsCacheSize = 8

// Manifest describes the files of one built shape.
type Manifest struct {
	Shape   string            `json:"shape"`
	Version string            `json:"version"`
	Files   map[string]string `json:"files"`
	Created time.Time         `json:"created"`
}

// Set is one loaded artifact set. Groth16 shapes fill the groth16 key pair,
// the PLONK wrap shape fills the plonk one.
type Set struct {
	Shape             string
	CCS               constraint.ConstraintSystem
	ProvingKey        groth16.ProvingKey
	VerifyingKey      groth16.VerifyingKey
	PlonkProvingKey   plonk.ProvingKey
	PlonkVerifyingKey plonk.VerifyingKey
}

// Store manages the artifact build directory of one circuits version.
type Store struct {
	dir     string
	version string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache *lru.Cache[string, *Set]
}

// NewStore opens a store over the given build directory. The directory is
// created if missing.
func NewStore(dir, version string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create build directory: %w", err)
	}
	cache, err := lru.New[string, *Set](loadedSetsCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{
		dir:     dir,
		version: version,
		locks:   map[string]*sync.Mutex{},
		cache:   cache,
	}, nil
}

// Version returns the circuits version this store serves.
func (s *Store) Version() string { return s.version }

// ShapeDir returns the directory holding the artifacts of a shape.
func (s *Store) ShapeDir(shape string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s", shape, s.version))
}

// shapeLock returns the in-process mutex serializing work on one shape.
func (s *Store) shapeLock(shape string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[shape]
	if !ok {
		l = &sync.Mutex{}
		s.locks[shape] = l
	}
	return l
}

// Exists reports whether the shape has a complete manifest on disk.
func (s *Store) Exists(shape string) bool {
	_, err := os.Stat(filepath.Join(s.ShapeDir(shape), manifestFile))
	return err == nil
}

// acquireDirLock takes the cross-process build lock of a shape. It fails
// instead of blocking: two builders racing for the same shape is an operator
// error worth surfacing.
func (s *Store) acquireDirLock(shape string) (release func(), err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s%s", shape, s.version, lockFile))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("shape %q is locked by another builder (stale lock? remove %s)", shape, path)
		}
		return nil, err
	}
	fmt.Fprintf(f, "pid %d\n", os.Getpid())
	return func() {
		if err := f.Close(); err != nil {
			log.Warnw("failed to close lock file", "path", path, "error", err.Error())
		}
		if err := os.Remove(path); err != nil {
			log.Warnw("failed to remove lock file", "path", path, "error", err.Error())
		}
	}, nil
}

// SaveShape stages the files of a built shape and moves them into place
// atomically, then writes the manifest.
func (s *Store) SaveShape(set *Set) (*Manifest, error) {
	lock := s.shapeLock(set.Shape)
	lock.Lock()
	defer lock.Unlock()
	release, err := s.acquireDirLock(set.Shape)
	if err != nil {
		return nil, err
	}
	defer release()

	staging, err := os.MkdirTemp(s.dir, set.Shape+"-staging-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil && !os.IsNotExist(err) {
			log.Warnw("failed to remove staging directory", "path", staging, "error", err.Error())
		}
	}()

	if err := circuits.StoreConstraintSystem(set.CCS, filepath.Join(staging, circuitFile)); err != nil {
		return nil, err
	}
	switch {
	case set.ProvingKey != nil:
		if err := circuits.StoreProvingKey(set.ProvingKey, filepath.Join(staging, provingKeyFile)); err != nil {
			return nil, err
		}
		if err := circuits.StoreVerifyingKey(set.VerifyingKey, filepath.Join(staging, verifyingKeyFile)); err != nil {
			return nil, err
		}
	case set.PlonkProvingKey != nil:
		if err := circuits.StorePlonkProvingKey(set.PlonkProvingKey, filepath.Join(staging, provingKeyFile)); err != nil {
			return nil, err
		}
		if err := circuits.StorePlonkVerifyingKey(set.PlonkVerifyingKey, filepath.Join(staging, verifyingKeyFile)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("artifact set for %q carries no keys", set.Shape)
	}

	manifest := &Manifest{
		Shape:   set.Shape,
		Version: s.version,
		Files:   map[string]string{},
		Created: time.Now().UTC(),
	}
	for _, name := range []string{circuitFile, provingKeyFile, verifyingKeyFile} {
		h, err := hashFile(filepath.Join(staging, name))
		if err != nil {
			return nil, err
		}
		manifest.Files[name] = h
	}
	data, err := storage.EncodeArtifactJSON(manifest)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(staging, manifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	dir := s.ShapeDir(set.Shape)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("remove previous shape directory: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return nil, fmt.Errorf("move shape into place: %w", err)
	}
	s.cache.Remove(set.Shape)
	log.Infow("artifact shape stored", "shape", set.Shape, "version", s.version, "dir", dir)
	return manifest, nil
}

// Manifest loads the manifest of a shape.
func (s *Store) Manifest(shape string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.ShapeDir(shape), manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &types.ArtifactMissingError{Shape: shape, Version: s.version}
		}
		return nil, err
	}
	m := &Manifest{}
	if err := storage.DecodeArtifactJSON(data, m); err != nil {
		return nil, fmt.Errorf("decode manifest of %q: %w", shape, err)
	}
	return m, nil
}

// Verify re-hashes every file of a shape against its manifest.
func (s *Store) Verify(shape string) error {
	m, err := s.Manifest(shape)
	if err != nil {
		return err
	}
	for name, want := range m.Files {
		got, err := hashFile(filepath.Join(s.ShapeDir(shape), name))
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("artifact %s of shape %q is corrupted: hash %s, manifest says %s",
				name, shape, got, want)
		}
	}
	return nil
}

// LoadShape loads the artifact set of a shape, using the in-memory cache
// when possible. Groth16 keys are loaded for every shape except the PLONK
// wrap shape.
func (s *Store) LoadShape(shape string) (*Set, error) {
	lock := s.shapeLock(shape)
	lock.Lock()
	defer lock.Unlock()
	if set, ok := s.cache.Get(shape); ok {
		return set, nil
	}
	if !s.Exists(shape) {
		return nil, &types.ArtifactMissingError{Shape: shape, Version: s.version}
	}
	curve := params.CurveForShape(shape)
	dir := s.ShapeDir(shape)
	ccs, err := circuits.LoadConstraintSystem(curve, filepath.Join(dir, circuitFile))
	if err != nil {
		return nil, err
	}
	set := &Set{Shape: shape, CCS: ccs}
	if shape == params.ShapeWrapPlonk {
		if set.PlonkProvingKey, err = circuits.LoadPlonkProvingKey(curve, filepath.Join(dir, provingKeyFile)); err != nil {
			return nil, err
		}
		if set.PlonkVerifyingKey, err = circuits.LoadPlonkVerifyingKey(curve, filepath.Join(dir, verifyingKeyFile)); err != nil {
			return nil, err
		}
	} else {
		if set.ProvingKey, err = circuits.LoadProvingKey(curve, filepath.Join(dir, provingKeyFile)); err != nil {
			return nil, err
		}
		if set.VerifyingKey, err = circuits.LoadVerifyingKey(curve, filepath.Join(dir, verifyingKeyFile)); err != nil {
			return nil, err
		}
	}
	s.cache.Add(shape, set)
	return set, nil
}

// LoadVerifyingKey loads only the verifying key of a shape, without pulling
// the proving key into memory. Verification paths use this.
func (s *Store) LoadVerifyingKey(shape string) (groth16.VerifyingKey, error) {
	if set, ok := s.cache.Get(shape); ok && set.VerifyingKey != nil {
		return set.VerifyingKey, nil
	}
	if !s.Exists(shape) {
		return nil, &types.ArtifactMissingError{Shape: shape, Version: s.version}
	}
	return circuits.LoadVerifyingKey(params.CurveForShape(shape), filepath.Join(s.ShapeDir(shape), verifyingKeyFile))
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warnw("failed to close file", "path", path, "error", err.Error())
		}
	}()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
