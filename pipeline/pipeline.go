// pipeline package orchestrates the full proof reduction ladder: it folds the
// segment proofs of an execution into a single recursion proof over BW6-761,
// shrinks that proof to the canonical shape and wraps it into a BN254 SNARK
// that external verifiers can check cheaply.
//
// All circuit artifacts come from a versioned artifacts.Store; the pipeline
// never compiles circuits on its own. Proving runs can optionally be recorded
// in a storage.Storage for crash recovery and inspection.
package pipeline

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
	"golang.org/x/sync/errgroup"

	"github.com/eigmax/zkMIPS/artifacts"
	"github.com/eigmax/zkMIPS/circuits"
	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/circuits/recursion"
	"github.com/eigmax/zkMIPS/circuits/shrink"
	"github.com/eigmax/zkMIPS/circuits/wrap"
	"github.com/eigmax/zkMIPS/log"
	"github.com/eigmax/zkMIPS/storage"
	"github.com/eigmax/zkMIPS/types"
)

// DefaultWorkers bounds the number of folds proven concurrently when the
// caller does not set one. Each in-flight fold holds a witness and the MSM
// working set of a BW6-761 prover, so the bound is memory driven rather than
// CPU driven.
const DefaultWorkers = 2

// SegmentPadder produces a padding segment proof: a valid proof of an empty
// segment that starts and ends at the same state root. The pipeline uses it
// to normalize single-segment executions, so the reduction always emits a
// recursion proof.
type SegmentPadder interface {
	Padding(state *big.Int) (*types.SegmentProof, error)
}

// Pipeline runs the reduction ladder over one artifact version.
type Pipeline struct {
	store   *artifacts.Store
	db      *storage.Storage
	padder  SegmentPadder
	workers int

	vkHashMu sync.Mutex
	vkHashes map[string]*big.Int
	segVKID  string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStorage records proving runs and their results in db.
func WithStorage(db *storage.Storage) Option {
	return func(p *Pipeline) { p.db = db }
}

// WithPadder sets the padding proof source used to normalize single-segment
// executions.
func WithPadder(padder SegmentPadder) Option {
	return func(p *Pipeline) { p.padder = padder }
}

// WithWorkers sets the number of concurrent fold provers.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// New creates a pipeline over the given artifact store.
func New(store *artifacts.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		workers:  DefaultWorkers,
		vkHashes: map[string]*big.Int{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prove runs the full ladder over the given segment proofs and returns the
// wrapped final proof. If a storage backend is configured the run is recorded
// with its status transitions and the final proof is persisted under the run.
func (p *Pipeline) Prove(ctx context.Context, segments []*types.SegmentProof, backend types.Backend) (*types.FinalProof, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segment proofs to reduce")
	}
	runID, err := p.openRun(segments, backend)
	if err != nil {
		return nil, err
	}
	fp, err := p.prove(ctx, runID, segments, backend)
	if err != nil {
		p.closeRun(runID, storage.RunStatusFailed, err)
		return nil, err
	}
	p.closeRun(runID, storage.RunStatusDone, nil)
	return fp, nil
}

func (p *Pipeline) prove(ctx context.Context, runID string, segments []*types.SegmentProof, backend types.Backend) (*types.FinalProof, error) {
	start := time.Now()
	p.setStatus(runID, storage.RunStatusReducing)
	root, err := p.Reduce(ctx, segments)
	if err != nil {
		return nil, err
	}
	p.setStatus(runID, storage.RunStatusShrinking)
	shrunk, err := p.Shrink(ctx, root)
	if err != nil {
		return nil, err
	}
	p.setStatus(runID, storage.RunStatusWrapping)
	fp, err := p.Wrap(ctx, shrunk, backend)
	if err != nil {
		return nil, err
	}
	if p.db != nil && runID != "" {
		if err := p.db.SetFinalProof(runID, fp); err != nil {
			return nil, fmt.Errorf("persist final proof: %w", err)
		}
	}
	log.Infow("proving run finished",
		"run", runID,
		"segments", len(segments),
		"backend", backend.String(),
		"took", time.Since(start).String())
	return fp, nil
}

// BuildArtifacts compiles and sets up the full shape ladder for the given
// wrap backend in the pipeline's artifact store. Prove never builds
// artifacts on its own; a missing shape is a hard error there.
func (p *Pipeline) BuildArtifacts(ctx context.Context, backend types.Backend) error {
	_, err := artifacts.NewBuilder(p.store, p.db).BuildAll(ctx, backend)
	return err
}

// Reduce folds the segment proofs into a single recursion proof. Segment
// proofs are ordered by index; the public value chain is checked across every
// boundary before any proving work starts, so a broken chain fails fast with
// the exact boundary.
func (p *Pipeline) Reduce(ctx context.Context, segments []*types.SegmentProof) (*types.RecursiveProof, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segment proofs to reduce")
	}
	ordered := make([]*types.SegmentProof, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })
	if err := checkChain(ordered); err != nil {
		return nil, err
	}
	wantID, err := p.segmentVKID()
	if err != nil {
		return nil, err
	}
	if err := checkVerifyingKeys(ordered, wantID); err != nil {
		return nil, err
	}
	if len(ordered) == 1 {
		padded, err := p.padSingle(ordered[0])
		if err != nil {
			return nil, err
		}
		ordered = padded
	}

	plan := buildPlan(len(ordered))
	levels := planLevels(plan)
	reduceStart := time.Now()
	for depth, folds := range levels {
		levelStart := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers)
		for _, fold := range folds {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				proof, err := p.fold(fold, ordered)
				if err != nil {
					return err
				}
				fold.proof = proof
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		log.Debugw("reduction level proven",
			"level", depth+1,
			"folds", len(folds),
			"took", time.Since(levelStart).String())
	}
	log.Infow("reduction finished",
		"segments", len(ordered),
		"levels", len(levels),
		"shape", plan.shape,
		"took", time.Since(reduceStart).String())
	return plan.proof, nil
}

// fold proves one node of the reduction tree. Children are already proven
// (or are segment proofs) by the level-ordered schedule.
func (p *Pipeline) fold(n *planNode, segments []*types.SegmentProof) (*types.RecursiveProof, error) {
	set, err := p.store.LoadShape(n.shape)
	if err != nil {
		return nil, err
	}
	var (
		assignment frontend.Circuit
		publics    *types.PublicValues
	)
	switch n.shape {
	case params.ShapeRecursionLeaf:
		c, pub, err := recursion.AssignLeaf(segments[n.left.segment], segments[n.right.segment])
		if err != nil {
			return nil, err
		}
		assignment, publics = c, pub
	case params.ShapeRecursionNode:
		leftVK, err := p.shapeVK(n.left.shape)
		if err != nil {
			return nil, err
		}
		rightVK, err := p.shapeVK(n.right.shape)
		if err != nil {
			return nil, err
		}
		c, pub, err := recursion.AssignNode(n.left.proof, n.right.proof, leftVK, rightVK)
		if err != nil {
			return nil, err
		}
		assignment, publics = c, pub
	case params.ShapeRecursionMix:
		leftVK, err := p.shapeVK(n.left.shape)
		if err != nil {
			return nil, err
		}
		c, pub, err := recursion.AssignMixed(n.left.proof, segments[n.right.segment], leftVK)
		if err != nil {
			return nil, err
		}
		assignment, publics = c, pub
	default:
		return nil, &types.ShapeMismatchError{Shape: n.shape, Want: "a recursion fold", Got: n.shape}
	}

	// Recursion proofs are themselves verified inside a BW6-761 circuit one
	// level up (or in the shrink circuit), so the commitment hash targets the
	// same field.
	opts := stdgroth16.GetNativeProverOptions(
		params.RecursionCurve.ScalarField(), params.RecursionCurve.ScalarField())
	proof, err := types.DefaultProver(params.RecursionCurve, set.CCS, set.ProvingKey, assignment, opts)
	if err != nil {
		return nil, fmt.Errorf("prove %s fold: %w", n.shape, err)
	}
	return &types.RecursiveProof{
		Proof:        proof,
		PublicValues: publics,
		Shape:        n.shape,
	}, nil
}

// Shrink reduces the root recursion proof to the canonical fixed shape the
// wrap circuit is compiled against.
func (p *Pipeline) Shrink(ctx context.Context, root *types.RecursiveProof) (*types.RecursiveProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set, err := p.store.LoadShape(params.ShapeShrink)
	if err != nil {
		return nil, err
	}
	rootVK, err := p.shapeVK(root.Shape)
	if err != nil {
		return nil, err
	}
	assignment, publics, err := shrink.Assign(root, rootVK)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	// The shrink proof is consumed by the BN254 wrap circuit.
	opts := stdgroth16.GetNativeProverOptions(
		params.WrapCurve.ScalarField(), params.RecursionCurve.ScalarField())
	proof, err := types.DefaultProver(params.RecursionCurve, set.CCS, set.ProvingKey, assignment, opts)
	if err != nil {
		return nil, fmt.Errorf("prove shrink: %w", err)
	}
	log.Infow("shrink proven", "took", time.Since(start).String())
	return &types.RecursiveProof{
		Proof:        proof,
		PublicValues: publics,
		Shape:        params.ShapeShrink,
	}, nil
}

// Wrap turns the shrunk proof into the final BN254 proof under the selected
// backend.
func (p *Pipeline) Wrap(ctx context.Context, shrunk *types.RecursiveProof, backend types.Backend) (*types.FinalProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if shrunk.Shape != params.ShapeShrink {
		return nil, &types.ShapeMismatchError{
			Shape: "wrap", Want: params.ShapeShrink, Got: shrunk.Shape,
		}
	}
	assignment, vkRoot, publicDigest, err := wrap.Assign(shrunk)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var fp *types.FinalProof
	switch backend {
	case types.BackendGroth16:
		set, err := p.store.LoadShape(params.ShapeWrapGroth16)
		if err != nil {
			return nil, err
		}
		fp, err = wrap.ProveGroth16(set.CCS, set.ProvingKey, assignment, vkRoot, publicDigest)
		if err != nil {
			return nil, err
		}
	case types.BackendPlonk:
		set, err := p.store.LoadShape(params.ShapeWrapPlonk)
		if err != nil {
			return nil, err
		}
		fp, err = wrap.ProvePlonk(set.CCS, set.PlonkProvingKey, assignment, vkRoot, publicDigest)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown wrap backend %d", backend)
	}
	log.Infow("wrap proven", "backend", backend.String(), "took", time.Since(start).String())
	return fp, nil
}

// Verify checks a final proof against the claimed public values. It
// recomputes the expected verifying key root for the claimed segment count
// from the trusted artifact set, recomputes the public digest from the state
// roots and then verifies the SNARK. A proof whose public inputs do not match
// the claim is reported as not verifying, not as an error.
func (p *Pipeline) Verify(fp *types.FinalProof, publics *types.PublicValues) (bool, error) {
	expectedRoot, err := p.ExpectedVKRoot(publics.Segments)
	if err != nil {
		return false, err
	}
	if fp.VkRoot.Cmp(expectedRoot) != 0 {
		log.Debugw("final proof vk root mismatch",
			"got", fp.VkRoot.String(), "want", expectedRoot.String())
		return false, nil
	}
	expectedDigest, err := publics.Digest()
	if err != nil {
		return false, err
	}
	if fp.PublicDigest.Cmp(expectedDigest) != 0 {
		return false, nil
	}
	switch fp.Backend {
	case types.BackendGroth16:
		vk, err := p.store.LoadVerifyingKey(params.ShapeWrapGroth16)
		if err != nil {
			return false, err
		}
		return wrap.VerifyGroth16(fp, vk)
	case types.BackendPlonk:
		set, err := p.store.LoadShape(params.ShapeWrapPlonk)
		if err != nil {
			return false, err
		}
		return wrap.VerifyPlonk(fp, set.PlonkVerifyingKey)
	default:
		return false, fmt.Errorf("%w: unknown backend %d", types.ErrVerify, fp.Backend)
	}
}

// ExpectedVKRoot computes the verifying key root a final proof over n
// segments must carry, by replaying the digest chain of the deterministic
// reduction tree with the verifying key hashes of the trusted artifact set.
func (p *Pipeline) ExpectedVKRoot(n int) (*big.Int, error) {
	if n < 1 {
		return nil, fmt.Errorf("invalid segment count %d", n)
	}
	plan := buildPlan(n)
	hashes := map[string]*big.Int{}
	for _, shape := range []string{
		params.ShapeRecursionLeaf, params.ShapeRecursionNode, params.ShapeRecursionMix,
	} {
		h, err := p.shapeVKHash(shape)
		if err != nil {
			return nil, err
		}
		hashes[shape] = h
	}
	rootDigest, err := planDigest(plan, hashes)
	if err != nil {
		return nil, err
	}
	rootHash, err := p.shapeVKHash(plan.shape)
	if err != nil {
		return nil, err
	}
	shrinkDigest, err := types.ChainVKDigest(rootDigest, rootHash)
	if err != nil {
		return nil, err
	}
	return types.VKRootFromDigest(shrinkDigest)
}

// padSingle folds a single segment proof with a padding proof anchored at its
// end root, so the reduction tree always has an even base.
func (p *Pipeline) padSingle(only *types.SegmentProof) ([]*types.SegmentProof, error) {
	if p.padder == nil {
		return nil, fmt.Errorf("single segment execution needs a padding prover")
	}
	padding, err := p.padder.Padding(only.PublicValues.EndRoot)
	if err != nil {
		return nil, fmt.Errorf("padding proof: %w", err)
	}
	padding.Index = only.Index + 1
	return []*types.SegmentProof{only, padding}, nil
}

// shapeVK loads the verifying key of a shape without pulling the proving key
// into memory.
func (p *Pipeline) shapeVK(shape string) (groth16.VerifyingKey, error) {
	return p.store.LoadVerifyingKey(shape)
}

// shapeVKHash returns the MiMC hash of a shape's verifying key, cached for
// the lifetime of the pipeline since artifacts are immutable per version.
func (p *Pipeline) shapeVKHash(shape string) (*big.Int, error) {
	p.vkHashMu.Lock()
	if h, ok := p.vkHashes[shape]; ok {
		p.vkHashMu.Unlock()
		return h, nil
	}
	p.vkHashMu.Unlock()
	vk, err := p.shapeVK(shape)
	if err != nil {
		return nil, err
	}
	h, err := circuits.NativeVerifyingKeyHash(vk)
	if err != nil {
		return nil, err
	}
	p.vkHashMu.Lock()
	p.vkHashes[shape] = h
	p.vkHashMu.Unlock()
	return h, nil
}

// segmentVKID returns the ID of the segment verifying key in the artifact
// store, computed once per pipeline since artifacts are immutable per
// version.
func (p *Pipeline) segmentVKID() (string, error) {
	p.vkHashMu.Lock()
	defer p.vkHashMu.Unlock()
	if p.segVKID != "" {
		return p.segVKID, nil
	}
	vk, err := p.store.LoadVerifyingKey(params.ShapeSegment)
	if err != nil {
		return "", err
	}
	id, err := circuits.VerifyingKeyID(vk)
	if err != nil {
		return "", err
	}
	p.segVKID = id
	return id, nil
}

// checkVerifyingKeys rejects segment proofs built for a base circuit other
// than the one in the artifact store, naming the offending segment. Proofs
// that carry no key ID are left for the solver to reject.
func checkVerifyingKeys(segments []*types.SegmentProof, wantID string) error {
	for _, s := range segments {
		if s.VerifyingKeyID == "" || s.VerifyingKeyID == wantID {
			continue
		}
		return fmt.Errorf("%w: segment %d proof built for verifying key %s, artifact store has %s",
			types.ErrShapeMismatch, s.Index, s.VerifyingKeyID, wantID)
	}
	return nil
}

// checkChain validates the public value chain across every segment boundary
// before any fold is proven.
func checkChain(segments []*types.SegmentProof) error {
	for i := 0; i+1 < len(segments); i++ {
		if !segments[i].PublicValues.Chain(segments[i+1].PublicValues) {
			return &types.ChainBreakError{
				Boundary: i,
				EndRoot:  types.HexBytes(segments[i].PublicValues.EndRoot.Bytes()),
				Start:    types.HexBytes(segments[i+1].PublicValues.StartRoot.Bytes()),
			}
		}
	}
	return nil
}

func (p *Pipeline) openRun(segments []*types.SegmentProof, backend types.Backend) (string, error) {
	if p.db == nil {
		return "", nil
	}
	first, last := segments[0], segments[len(segments)-1]
	for _, s := range segments {
		if s.Index < first.Index {
			first = s
		}
		if s.Index > last.Index {
			last = s
		}
	}
	run, err := p.db.NewRun(backend, len(segments),
		types.HexBytes(first.PublicValues.StartRoot.Bytes()),
		types.HexBytes(last.PublicValues.EndRoot.Bytes()))
	if err != nil {
		return "", fmt.Errorf("open proving run: %w", err)
	}
	return run.ID, nil
}

func (p *Pipeline) setStatus(runID string, status storage.RunStatus) {
	if p.db == nil || runID == "" {
		return
	}
	if err := p.db.UpdateRunStatus(runID, status, ""); err != nil {
		log.Warnw("update run status", "run", runID, "status", status.String(), "err", err)
	}
}

func (p *Pipeline) closeRun(runID string, status storage.RunStatus, cause error) {
	if p.db == nil || runID == "" {
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := p.db.UpdateRunStatus(runID, status, msg); err != nil {
		log.Warnw("close run", "run", runID, "err", err)
	}
}
