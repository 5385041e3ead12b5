package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/eigmax/zkMIPS/artifacts"
	"github.com/eigmax/zkMIPS/circuits/params"
	"github.com/eigmax/zkMIPS/log"
	"github.com/eigmax/zkMIPS/types"
)

func main() {
	var destination string
	var version string
	var backendName string
	var force bool
	var logLevel string
	s3Config := NewDefaultS3Config()

	flag.StringVar(&destination, "destination", "artifacts", "destination folder for the artifacts")
	flag.StringVar(&version, "version", params.CircuitsVersion, "circuits version to build")
	flag.StringVar(&backendName, "backend", "groth16", "wrap backend to build (groth16 or plonk)")
	flag.BoolVar(&force, "force", false, "rebuild shapes even when their artifacts already exist")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error, fatal)")

	flag.BoolVar(&s3Config.Enabled, "s3.enabled", false, "enable S3 uploads")
	flag.StringVar(&s3Config.Endpoint, "s3.endpoint", "", "S3 endpoint URL (empty for AWS)")
	flag.StringVar(&s3Config.Region, "s3.region", s3Config.Region, "S3 region")
	flag.StringVar(&s3Config.AccessKey, "s3.access-key", "", "S3 access key")
	flag.StringVar(&s3Config.SecretKey, "s3.secret-key", "", "S3 secret key")
	flag.StringVar(&s3Config.Bucket, "s3.bucket", s3Config.Bucket, "S3 bucket name")
	flag.StringVar(&s3Config.Prefix, "s3.prefix", s3Config.Prefix, "S3 key prefix (folder name)")

	flag.Parse()
	log.Init(logLevel, "stdout", nil)

	backend, err := types.ParseBackend(backendName)
	if err != nil {
		log.Fatalf("invalid backend: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Test the S3 connection before spending hours on setup.
	if s3Config.Enabled {
		if err := TestS3Connection(ctx, s3Config); err != nil {
			log.Fatalf("S3 connection test failed: %v", err)
		}
	}

	store, err := artifacts.NewStore(destination, version)
	if err != nil {
		log.Fatalf("error opening artifact store: %v", err)
	}
	log.Infow("building circuit artifacts",
		"destination", destination,
		"version", version,
		"backend", backend.String(),
		"force", force)

	builder := artifacts.NewBuilder(store, nil)
	builder.Force = force
	startTime := time.Now()
	sets, err := builder.BuildAll(ctx, backend)
	if err != nil {
		log.Fatalf("error building artifacts: %v", err)
	}
	log.Infow("all shapes built", "shapes", len(sets), "elapsed", time.Since(startTime).String())

	if !s3Config.Enabled {
		return
	}
	uploader, err := NewS3Uploader(s3Config)
	if err != nil {
		log.Fatalf("error creating S3 uploader: %v", err)
	}
	for shape := range sets {
		keys, err := uploader.UploadShapeDir(ctx, store.ShapeDir(shape))
		if err != nil {
			log.Fatalf("error uploading shape %q: %v", shape, err)
		}
		log.Infow("shape uploaded", "shape", shape, "files", len(keys))
	}
}
