package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"sparseframe/internal/models"
	"sparseframe/pkg/config"
	"sparseframe/pkg/densify"
	"sparseframe/pkg/sequence"
	"sparseframe/pkg/source"
	"sparseframe/pkg/source/memstore"
	"sparseframe/pkg/source/zarrstore"
	"sparseframe/pkg/synth"
	"sparseframe/pkg/validation"
	"sparseframe/pkg/visualization"
)

func materializer(cfg *config.Config) (densify.Materializer, error) {
	s, err := densify.ParseStrategy(cfg.Processing.Strategy)
	if err != nil {
		return nil, err
	}
	return densify.ForStrategy(s)
}

func openSequence(cfg *config.Config, input string, logger *log.Logger) (*sequence.Sequence, error) {
	if input == "" {
		return nil, errors.New("-input is required")
	}
	m, err := materializer(cfg)
	if err != nil {
		return nil, err
	}
	store, err := zarrstore.Open(input)
	if err != nil {
		return nil, err
	}
	seq, err := sequence.Open(store, sequence.WithMaterializer(m), sequence.WithLogger(logger))
	if err != nil {
		store.Close()
		return nil, err
	}
	return seq, nil
}

func runInfo(cfg *config.Config, input string, logger *log.Logger) error {
	seq, err := openSequence(cfg, input, logger)
	if err != nil {
		return err
	}
	defer seq.Close()

	series := seq.Series()
	l := series.Layout()
	fmt.Printf("Series %s/%s in %s\n", l.Entry, l.Data, input)
	fmt.Printf("  Frames:       %d\n", series.FrameCount())
	fmt.Printf("  Shape:        %s\n", l.Shape)
	fmt.Printf("  Element type: %v\n", l.DType)
	fmt.Printf("  Radius axis:  %d points\n", len(l.Radius))
	fmt.Printf("  Dummy:        %g\n", l.Dummy)

	counts := make([]float64, series.FrameCount())
	for n := range counts {
		counts[n] = float64(l.FramePtr[n+1] - l.FramePtr[n])
	}
	s := validation.Summarize(counts)
	fmt.Printf("  Overrides:    %d total, %.0f to %.0f per frame (mean %.1f)\n",
		len(l.Index), s.Min, s.Max, s.Mean)

	cur := seq.Current()
	fs := validation.Summarize(cur.Float64s())
	fmt.Printf("Frame 0: min %g, max %g, mean %.3f, stddev %.3f\n", fs.Min, fs.Max, fs.Mean, fs.StdDev)
	return nil
}

func runDensify(cfg *config.Config, input string, logger *log.Logger) error {
	seq, err := openSequence(cfg, input, logger)
	if err != nil {
		return err
	}
	defer seq.Close()

	viewer := visualization.NewViewer(seq.Series().Layout().Dummy)
	start := time.Now()
	n, err := viewer.SaveSequence(context.Background(), seq, cfg.Output.Directory, cfg.Output.Format, cfg.Processing.Workers)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d frames to %s in %.2f seconds\n", n, cfg.Output.Directory, time.Since(start).Seconds())

	if cfg.Output.SaveProfiles {
		plotFile := filepath.Join(cfg.Output.Directory, "background_profiles.png")
		if err := visualization.SaveProfilePlot(seq.Series(), nil, plotFile); err != nil {
			return err
		}
		fmt.Printf("Background profiles plotted to %s\n", plotFile)
	}
	return nil
}

func runGenerate(cfg *config.Config, output string, logger *log.Logger) error {
	if output == "" {
		return errors.New("-output is required")
	}
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("%s already exists", output)
	}

	series, err := synth.Generate(cfg.Synth)
	if err != nil {
		return err
	}
	compression := zarrstore.Raw
	if cfg.Output.Compression == "zstd" {
		compression = zarrstore.Zstd
	}
	store, err := zarrstore.Create(output, zarrstore.WithCompression(compression))
	if err != nil {
		return err
	}
	defer store.Close()

	root, err := store.Builder()
	if err != nil {
		return err
	}
	if err := source.WriteLayout(root, series.Layout, source.WriteOptions{}); err != nil {
		return fmt.Errorf("write series: %w", err)
	}
	logger.Printf("generated %d frames of %s with seed %d", cfg.Synth.Frames, cfg.Synth.Shape, cfg.Synth.Seed)
	fmt.Printf("Wrote %d frame series (%d overrides) to %s\n", series.Layout.FrameCount(), len(series.Layout.Index), output)
	return nil
}

// runVerify densifies a generated series with every available strategy and
// compares each frame with the dense frames it was generated from
func runVerify(cfg *config.Config, logger *log.Logger) error {
	generated, err := synth.Generate(cfg.Synth)
	if err != nil {
		return err
	}
	store, err := memstore.FromLayout(generated.Layout, source.WriteOptions{})
	if err != nil {
		return err
	}
	layout, err := source.Load(store)
	if err != nil {
		return err
	}
	series, err := sequence.NewSeries(layout)
	if err != nil {
		return err
	}

	strategies := []densify.Strategy{densify.StrategyReference}
	if densify.OptimizedAvailable() {
		strategies = append(strategies, densify.StrategyOptimized)
	} else {
		logger.Printf("optimized strategy unavailable, verifying the reference strategy only")
	}

	limit := cfg.Verify.MaxDifferingFraction
	failed := false
	frames := make(map[densify.Strategy][]*models.Frame)
	for _, s := range strategies {
		m, err := densify.ForStrategy(s)
		if err != nil {
			return err
		}
		seq, err := sequence.FromSeries(series, sequence.WithMaterializer(m), sequence.WithLogger(logger))
		if err != nil {
			return err
		}

		start := time.Now()
		err = seq.MaterializeAll(context.Background(), cfg.Processing.Workers, func(f *models.Frame) error {
			frames[s] = append(frames[s], f)
			truth := make([]float64, len(generated.Truth[f.Number]))
			for i, v := range generated.Truth[f.Number] {
				truth[i] = float64(v)
			}
			values := f.Float64s()
			metrics, err := validation.Compare(truth, values, cfg.Verify.Tolerance)
			if err != nil {
				return err
			}
			sim, err := validation.CompareStructure(truth, values)
			if err != nil {
				return err
			}
			ok := metrics.BeyondTolerance == 0 && metrics.DifferingFraction < limit
			if !ok {
				failed = true
			}
			fmt.Printf("%-9v frame %d: max |diff| %g, %d pixels differ (%.4f%%), rmse %.4f, ssim %.5f, entropy diff %.4f bits, ok=%v\n",
				s, f.Number, metrics.MaxAbsDiff, metrics.Differing, 100*metrics.DifferingFraction,
				metrics.RMSE, sim.SSIM, sim.EntropyDiff, ok)
			return nil
		})
		seq.Close()
		if err != nil {
			return err
		}
		fmt.Printf("%v strategy: %d frames in %.3f seconds\n", s, len(frames[s]), time.Since(start).Seconds())
	}

	if ref, opt := frames[densify.StrategyReference], frames[densify.StrategyOptimized]; len(opt) > 0 {
		for n := range ref {
			metrics, err := validation.Compare(ref[n].Float64s(), opt[n].Float64s(), 0)
			if err != nil {
				return err
			}
			if metrics.Differing != 0 {
				failed = true
				fmt.Printf("strategies disagree on frame %d at %d pixels\n", n, metrics.Differing)
			}
		}
	}

	if failed {
		return errors.New("densified frames do not match the generated series")
	}
	fmt.Println("All frames verified")
	return nil
}
