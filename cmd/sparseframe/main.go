package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"sparseframe/pkg/config"
)

// options collects the command line; zero values leave the config untouched
type options struct {
	mode        string
	input       string
	output      string
	workers     int
	strategy    string
	format      string
	compression string
	frames      int
	seed        uint64
	profiles    bool
	verbose     bool
}

func main() {
	configPath := flag.String("config", "sparseframe.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")

	var opts options
	flag.StringVar(&opts.mode, "mode", "info", "Mode: info, densify, generate or verify")
	flag.StringVar(&opts.input, "input", "", "Zarr hierarchy holding a sparse series (info, densify)")
	flag.StringVar(&opts.output, "output", "", "Output directory for images (densify) or the new hierarchy (generate)")
	flag.IntVar(&opts.workers, "workers", 0, "Number of frames materialized in parallel (default: config)")
	flag.StringVar(&opts.strategy, "strategy", "", "Materializer: auto, reference or optimized (default: config)")
	flag.StringVar(&opts.format, "format", "", "Image format for densify: png or jpg (default: config)")
	flag.StringVar(&opts.compression, "compression", "", "Chunk codec for generate: raw or zstd (default: config)")
	flag.IntVar(&opts.frames, "frames", 0, "Number of frames to generate (default: config)")
	flag.Uint64Var(&opts.seed, "seed", 0, "Seed of the generated series (default: config)")
	flag.BoolVar(&opts.profiles, "profiles", false, "Also plot the background profiles")
	flag.BoolVar(&opts.verbose, "verbose", false, "Log progress to stderr")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	if cfg.Output.Verbose {
		logger = log.New(os.Stderr, "sparseframe: ", log.LstdFlags)
	}

	switch opts.mode {
	case "info":
		err = runInfo(cfg, opts.input, logger)
	case "densify":
		err = runDensify(cfg, opts.input, logger)
	case "generate":
		err = runGenerate(cfg, opts.output, logger)
	case "verify":
		err = runVerify(cfg, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", opts.mode, err)
	}
}

// apply overrides config values with the flags that were set
func (o options) apply(cfg *config.Config) {
	if o.workers > 0 {
		cfg.Processing.Workers = o.workers
	}
	if o.strategy != "" {
		cfg.Processing.Strategy = o.strategy
	}
	if o.format != "" {
		cfg.Output.Format = o.format
	}
	if o.compression != "" {
		cfg.Output.Compression = o.compression
	}
	if o.output != "" && o.mode == "densify" {
		cfg.Output.Directory = o.output
	}
	if o.frames > 0 {
		cfg.Synth.Frames = o.frames
	}
	if o.seed != 0 {
		cfg.Synth.Seed = o.seed
	}
	if o.profiles {
		cfg.Output.SaveProfiles = true
	}
	if o.verbose {
		cfg.Output.Verbose = true
	}
}
