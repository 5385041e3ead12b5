package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultMode      = "prove"
	defaultBackend   = "groth16"
	defaultWorkers   = 2
	defaultVersion   = "v1"
	defaultLogLevel  = "info"
	defaultLogOutput = "stdout"
	defaultDatadir   = ".zkmips" // Will be prefixed with user's home directory
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

// Config holds the application configuration
type Config struct {
	Mode      string          `mapstructure:"mode"`
	Datadir   string          `mapstructure:"datadir"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Prove     ProveConfig     `mapstructure:"prove"`
	Verify    VerifyConfig    `mapstructure:"verify"`
	Log       LogConfig       `mapstructure:"log"`
}

// ArtifactsConfig selects the circuit artifact set to prove or verify with
type ArtifactsConfig struct {
	Dir     string `mapstructure:"dir"`
	Version string `mapstructure:"version"`
	URL     string `mapstructure:"url"`
}

// ProveConfig holds the inputs of a proving run
type ProveConfig struct {
	Bundle  string `mapstructure:"bundle"`
	Out     string `mapstructure:"out"`
	Backend string `mapstructure:"backend"`
	Workers int    `mapstructure:"workers"`
}

// VerifyConfig holds the inputs of a verification run
type VerifyConfig struct {
	Proof     string `mapstructure:"proof"`
	StartRoot string `mapstructure:"start"`
	EndRoot   string `mapstructure:"end"`
	Segments  int    `mapstructure:"segments"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("mode", defaultMode)
	v.SetDefault("datadir", defaultDatadirPath)
	v.SetDefault("artifacts.dir", "")
	v.SetDefault("artifacts.version", defaultVersion)
	v.SetDefault("prove.backend", defaultBackend)
	v.SetDefault("prove.workers", defaultWorkers)
	v.SetDefault("verify.segments", 0)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)

	flag.StringP("mode", "m", defaultMode, "operation mode (prove or verify)")
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for run records and artifacts")
	flag.String("artifacts.dir", "", "circuit artifacts directory (defaults to <datadir>/artifacts)")
	flag.String("artifacts.version", defaultVersion, "circuit artifacts version")
	flag.String("artifacts.url", "", "base URL to download missing artifacts from")
	flag.StringP("prove.bundle", "b", "", "segment proof bundle to reduce (required in prove mode)")
	flag.StringP("prove.out", "o", "", "output path for the final proof (required in prove mode)")
	flag.String("prove.backend", defaultBackend, "wrap backend (groth16 or plonk)")
	flag.IntP("prove.workers", "w", defaultWorkers, "number of concurrent fold provers")
	flag.String("verify.proof", "", "final proof to verify (required in verify mode)")
	flag.String("verify.start", "", "claimed start state root, hex (required in verify mode)")
	flag.String("verify.end", "", "claimed end state root, hex (required in verify mode)")
	flag.Int("verify.segments", 0, "claimed segment count (required in verify mode)")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error, fatal)")
	flag.String("log.output", defaultLogOutput, "log output (stdout, stderr or filepath)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "zkmips-prover v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: zkmips-prover [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dashes (-) and dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, ZKMIPS_PROVE_BUNDLE or ZKMIPS_ARTIFACTS_DIR\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Reduce and wrap a segment bundle into a Groth16 proof\n")
		fmt.Fprintf(os.Stderr, "  zkmips-prover --prove.bundle=segments.bin --prove.out=final.proof\n\n")
		fmt.Fprintf(os.Stderr, "  # Verify a final proof against its claimed statement\n")
		fmt.Fprintf(os.Stderr, "  zkmips-prover -m verify --verify.proof=final.proof \\\n")
		fmt.Fprintf(os.Stderr, "      --verify.start=0x01 --verify.end=0x9f... --verify.segments=4\n")
	}

	flag.CommandLine.SortFlags = false
	flag.Parse()

	v.SetEnvPrefix("ZKMIPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = filepath.Join(cfg.Datadir, "artifacts")
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	switch cfg.Mode {
	case "prove":
		if cfg.Prove.Bundle == "" {
			return fmt.Errorf("a segment bundle is required (use --prove.bundle or ZKMIPS_PROVE_BUNDLE)")
		}
		if cfg.Prove.Out == "" {
			return fmt.Errorf("an output path is required (use --prove.out or ZKMIPS_PROVE_OUT)")
		}
		if cfg.Prove.Workers < 1 {
			return fmt.Errorf("invalid worker count %d", cfg.Prove.Workers)
		}
	case "verify":
		if cfg.Verify.Proof == "" {
			return fmt.Errorf("a final proof is required (use --verify.proof or ZKMIPS_VERIFY_PROOF)")
		}
		if cfg.Verify.StartRoot == "" || cfg.Verify.EndRoot == "" {
			return fmt.Errorf("both claimed state roots are required (use --verify.start and --verify.end)")
		}
		if cfg.Verify.Segments < 1 {
			return fmt.Errorf("a positive claimed segment count is required (use --verify.segments)")
		}
	default:
		return fmt.Errorf("invalid mode %q, expected prove or verify", cfg.Mode)
	}
	return nil
}
