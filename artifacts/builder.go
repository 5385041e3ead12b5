package artifacts

import (
	"context"
	"fmt"
	"time"

	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/frontend/cs/scs"

	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/circuits/recursion"
	"github.com/eigmax/zkMIPS/circuits/segment"
	"github.com/eigmax/zkMIPS/circuits/shrink"
	"github.com/eigmax/zkMIPS/circuits/wrap"
	"github.com/eigmax/zkMIPS/log"
	"github.com/eigmax/zkMIPS/prover"
	"github.com/eigmax/zkMIPS/storage"
	"github.com/eigmax/zkMIPS/types"
)

// Builder compiles and sets up every circuit shape of the pipeline in
// dependency order: segment, then the recursion shapes sized from it, then
// shrink and finally the wrap shape of the requested backend. Building is
// idempotent, shapes already present in the store are loaded instead of
// rebuilt unless Force is set.
type Builder struct {
	store    *Store
	registry *storage.Storage
	// Force rebuilds shapes even when their artifacts already exist.
	Force bool
}

// NewBuilder returns a builder over the given store. The registry is
// optional; when set, every built shape is recorded in it.
func NewBuilder(store *Store, registry *storage.Storage) *Builder {
	return &Builder{store: store, registry: registry}
}

// BuildAll builds the whole shape ladder for the given wrap backend and
// returns the built (or loaded) sets keyed by shape identifier.
func (b *Builder) BuildAll(ctx context.Context, backend types.Backend) (map[string]*Set, error) {
	sets := map[string]*Set{}

	segmentSet, err := b.buildGroth16(ctx, params.ShapeSegment, func() (frontend.Circuit, error) {
		return &segment.Circuit{}, nil
	})
	if err != nil {
		return nil, err
	}
	sets[params.ShapeSegment] = segmentSet

	leafSet, err := b.buildGroth16(ctx, params.ShapeRecursionLeaf, func() (frontend.Circuit, error) {
		return recursion.PlaceholderLeaf(segmentSet.CCS, segmentSet.VerifyingKey)
	})
	if err != nil {
		return nil, err
	}
	sets[params.ShapeRecursionLeaf] = leafSet

	nodeSet, err := b.buildGroth16(ctx, params.ShapeRecursionNode, func() (frontend.Circuit, error) {
		return recursion.PlaceholderNode(leafSet.CCS), nil
	})
	if err != nil {
		return nil, err
	}
	sets[params.ShapeRecursionNode] = nodeSet

	mixedSet, err := b.buildGroth16(ctx, params.ShapeRecursionMix, func() (frontend.Circuit, error) {
		return recursion.PlaceholderMixed(leafSet.CCS, segmentSet.CCS, segmentSet.VerifyingKey)
	})
	if err != nil {
		return nil, err
	}
	sets[params.ShapeRecursionMix] = mixedSet

	shrinkSet, err := b.buildGroth16(ctx, params.ShapeShrink, func() (frontend.Circuit, error) {
		return shrink.Placeholder(leafSet.CCS), nil
	})
	if err != nil {
		return nil, err
	}
	sets[params.ShapeShrink] = shrinkSet

	switch backend {
	case types.BackendGroth16:
		wrapSet, err := b.buildGroth16(ctx, params.ShapeWrapGroth16, func() (frontend.Circuit, error) {
			return wrap.Placeholder(shrinkSet.CCS, shrinkSet.VerifyingKey)
		})
		if err != nil {
			return nil, err
		}
		sets[params.ShapeWrapGroth16] = wrapSet
	case types.BackendPlonk:
		wrapSet, err := b.buildPlonk(ctx, params.ShapeWrapPlonk, func() (frontend.Circuit, error) {
			return wrap.Placeholder(shrinkSet.CCS, shrinkSet.VerifyingKey)
		})
		if err != nil {
			return nil, err
		}
		sets[params.ShapeWrapPlonk] = wrapSet
	default:
		return nil, fmt.Errorf("unknown wrap backend %d", backend)
	}
	return sets, nil
}

// buildGroth16 compiles and sets up one Groth16 shape, or loads it when it
// already exists.
func (b *Builder) buildGroth16(ctx context.Context, shape string, placeholder func() (frontend.Circuit, error)) (*Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.store.Exists(shape) && !b.Force {
		log.Debugw("artifact shape already built, loading", "shape", shape)
		return b.store.LoadShape(shape)
	}
	ccs, err := b.compile(shape, placeholder, r1cs.NewBuilder)
	if err != nil {
		return nil, err
	}
	startTime := time.Now()
	pk, vk, err := prover.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup %q: %w", shape, err)
	}
	log.Infow("shape setup done", "shape", shape, "took", time.Since(startTime).String())
	set := &Set{Shape: shape, CCS: ccs, ProvingKey: pk, VerifyingKey: vk}
	return set, b.persist(set)
}

// buildPlonk compiles and sets up the PLONK wrap shape over a dev SRS.
func (b *Builder) buildPlonk(ctx context.Context, shape string, placeholder func() (frontend.Circuit, error)) (*Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.store.Exists(shape) && !b.Force {
		log.Debugw("artifact shape already built, loading", "shape", shape)
		return b.store.LoadShape(shape)
	}
	ccs, err := b.compile(shape, placeholder, scs.NewBuilder)
	if err != nil {
		return nil, err
	}
	startTime := time.Now()
	pk, vk, err := wrap.SetupPlonk(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup %q: %w", shape, err)
	}
	log.Infow("shape setup done", "shape", shape, "took", time.Since(startTime).String())
	set := &Set{Shape: shape, CCS: ccs, PlonkProvingKey: pk, PlonkVerifyingKey: vk}
	return set, b.persist(set)
}

func (b *Builder) compile(shape string, placeholder func() (frontend.Circuit, error), builder frontend.NewBuilder) (constraint.ConstraintSystem, error) {
	circuit, err := placeholder()
	if err != nil {
		return nil, fmt.Errorf("build placeholder for %q: %w", shape, err)
	}
	curve := params.CurveForShape(shape)
	log.Infow("compiling shape", "shape", shape, "curve", curve.String())
	startTime := time.Now()
	ccs, err := frontend.Compile(curve.ScalarField(), builder, circuit)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", shape, err)
	}
	log.Infow("shape compiled",
		"shape", shape,
		"constraints", ccs.GetNbConstraints(),
		"took", time.Since(startTime).String(),
	)
	return ccs, nil
}

func (b *Builder) persist(set *Set) error {
	manifest, err := b.store.SaveShape(set)
	if err != nil {
		return err
	}
	if b.registry == nil {
		return nil
	}
	rec := &storage.ArtifactRecord{
		Shape:   manifest.Shape,
		Version: manifest.Version,
		Files:   map[string]types.HexBytes{},
		BuiltAt: manifest.Created,
	}
	for name, hash := range manifest.Files {
		rec.Files[name] = types.HexStringToHexBytes(hash)
	}
	return b.registry.SetArtifactRecord(rec)
}
