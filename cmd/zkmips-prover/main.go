package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eigmax/zkMIPS/artifacts"
	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/circuits/segment"
	"github.com/eigmax/zkMIPS/log"
	"github.com/eigmax/zkMIPS/pipeline"
	_ "github.com/eigmax/zkMIPS/prover"
	"github.com/eigmax/zkMIPS/storage"
	"github.com/eigmax/zkMIPS/types"
)

const downloadTimeout = 30 * time.Minute

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting zkmips-prover", "version", Version, "mode", cfg.Mode)

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openArtifacts(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open artifacts: %v", err)
	}

	switch cfg.Mode {
	case "prove":
		err = runProve(ctx, cfg, store)
	case "verify":
		err = runVerify(cfg, store)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// openArtifacts opens the artifact store and, when a download URL is
// configured, installs any shape missing for the run.
func openArtifacts(ctx context.Context, cfg *Config) (*artifacts.Store, error) {
	store, err := artifacts.NewStore(cfg.Artifacts.Dir, cfg.Artifacts.Version)
	if err != nil {
		return nil, err
	}
	if cfg.Artifacts.URL == "" {
		return store, nil
	}
	backend, err := types.ParseBackend(cfg.Prove.Backend)
	if err != nil {
		return nil, err
	}
	wrapShape := params.ShapeWrapGroth16
	if backend == types.BackendPlonk {
		wrapShape = params.ShapeWrapPlonk
	}
	dctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	downloader := artifacts.NewDownloader(cfg.Artifacts.URL, store)
	if err := downloader.InstallAll(dctx, params.PipelineShapes(wrapShape)...); err != nil {
		return nil, fmt.Errorf("download artifacts: %w", err)
	}
	return store, nil
}

func runProve(ctx context.Context, cfg *Config, store *artifacts.Store) error {
	backend, err := types.ParseBackend(cfg.Prove.Backend)
	if err != nil {
		return err
	}
	segments, err := types.ReadSegmentBundle(cfg.Prove.Bundle, params.SegmentCurve)
	if err != nil {
		return err
	}
	log.Infow("segment bundle loaded", "path", cfg.Prove.Bundle, "segments", len(segments))

	db, err := storage.New(filepath.Join(cfg.Datadir, "db"))
	if err != nil {
		return fmt.Errorf("open run storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warnw("close run storage", "err", err)
		}
	}()

	padder, err := openPadder(store)
	if err != nil {
		return err
	}
	pipe := pipeline.New(store,
		pipeline.WithStorage(db),
		pipeline.WithPadder(padder),
		pipeline.WithWorkers(cfg.Prove.Workers))

	fp, err := pipe.Prove(ctx, segments, backend)
	if err != nil {
		return fmt.Errorf("proving run failed: %w", err)
	}
	data, err := fp.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Prove.Out, data, 0o644); err != nil {
		return fmt.Errorf("write final proof: %w", err)
	}
	log.Infow("final proof written",
		"path", cfg.Prove.Out,
		"backend", backend.String(),
		"size", len(data))
	return nil
}

func runVerify(cfg *Config, store *artifacts.Store) error {
	data, err := os.ReadFile(cfg.Verify.Proof)
	if err != nil {
		return fmt.Errorf("read final proof: %w", err)
	}
	fp := &types.FinalProof{}
	if err := fp.Unmarshal(data); err != nil {
		return err
	}
	claim := &types.PublicValues{
		StartRoot: new(big.Int).SetBytes(types.HexStringToHexBytes(cfg.Verify.StartRoot)),
		EndRoot:   new(big.Int).SetBytes(types.HexStringToHexBytes(cfg.Verify.EndRoot)),
		Segments:  cfg.Verify.Segments,
	}
	pipe := pipeline.New(store)
	ok, err := pipe.Verify(fp, claim)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	if !ok {
		log.Errorw(fmt.Errorf("proof does not verify against the claim"), "verification result")
		os.Exit(1)
	}
	log.Infow("proof verified",
		"backend", fp.Backend.String(),
		"segments", cfg.Verify.Segments)
	return nil
}

// openPadder wires the reference segment prover as the padding source, so
// single-segment bundles can be normalized. Missing segment artifacts only
// fail a run that actually needs padding.
func openPadder(store *artifacts.Store) (pipeline.SegmentPadder, error) {
	set, err := store.LoadShape(params.ShapeSegment)
	if err != nil {
		log.Debugw("segment artifacts not available, padding disabled", "err", err)
		return nil, nil
	}
	return segment.NewProver(set.CCS, set.ProvingKey, set.VerifyingKey)
}
