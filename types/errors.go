package types

import (
	"errors"
	"fmt"
)

// Sentinel errors of the proving pipeline. Callers are expected to match them
// with errors.Is; the wrapping errors below add the context needed to
// reproduce a failure (segment boundary, circuit shape, version) without
// re-running the whole pipeline.
var (
	// ErrShapeMismatch is returned when the proofs supplied to a recursion
	// circuit do not match the verifier shape the circuit was built for.
	ErrShapeMismatch = errors.New("proof shape mismatch")
	// ErrChainBreak is returned when the public values of two adjacent
	// segments do not chain (end state of segment i != start state of
	// segment i+1). It is fatal for the proving run and never retried.
	ErrChainBreak = errors.New("segment public values chain break")
	// ErrArtifactMissing is returned when the compiled circuit or key
	// material for a requested shape and version is not present in the
	// build directory. Artifacts are never built implicitly mid-proof.
	ErrArtifactMissing = errors.New("circuit artifact missing")
	// ErrWitnessGeneration is returned when the constraint solver reports an
	// inconsistency while computing a witness. It is fatal per attempt and
	// never silently retried nor downgraded to another backend.
	ErrWitnessGeneration = errors.New("witness generation failed")
	// ErrVerify is returned when a final proof cannot be checked because of
	// malformed inputs. A well-formed proof that simply does not verify
	// yields a false result, not an error.
	ErrVerify = errors.New("proof verification error")
)

// ChainBreakError reports the exact segment boundary where the public value
// chain is broken.
type ChainBreakError struct {
	Boundary int // index i of the boundary between segment i and i+1
	EndRoot  HexBytes
	Start    HexBytes
}

func (e *ChainBreakError) Error() string {
	return fmt.Sprintf("chain break at segment boundary %d: end root %s != start root %s",
		e.Boundary, e.EndRoot.String(), e.Start.String())
}

func (e *ChainBreakError) Unwrap() error { return ErrChainBreak }

// ArtifactMissingError identifies the circuit shape and version whose
// artifacts were not found.
type ArtifactMissingError struct {
	Shape   string
	Version string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("artifact missing for circuit shape %q version %q", e.Shape, e.Version)
}

func (e *ArtifactMissingError) Unwrap() error { return ErrArtifactMissing }

// ShapeMismatchError describes what a recursion circuit expected and what it
// was given.
type ShapeMismatchError struct {
	Shape string
	Want  string
	Got   string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape %q expects %s, got %s", e.Shape, e.Want, e.Got)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }
