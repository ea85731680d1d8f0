// Package batch converts whole directories of slides, a bounded number of
// files at a time. One file failing is recorded and never stops the rest.
package batch

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"isyntax2tiff/contracts"
	"isyntax2tiff/converter"
	"isyntax2tiff/files_manager"
)

const logFileName = "batch_conversion.log"

// Result records the outcome of one file's conversion.
type Result struct {
	Input    string
	Output   string
	Err      error
	Duration time.Duration
	Skipped  bool
}

type Summary struct {
	Results   []Result
	Total     int
	Converted int
	Skipped   int
	Failed    int
	WallTime  time.Duration
}

type Orchestrator struct {
	Config Config
	// OpenSource overrides the slide backend for every job. Nil means the
	// default dispatch.
	OpenSource func(string) (contracts.RegionSource, error)
}

// Run converts every matching file under inputDir into outputDir and
// returns the per-file results. The log is teed to batch_conversion.log in
// the output directory.
func (o *Orchestrator) Run(ctx context.Context, inputDir, outputDir string) (Summary, error) {
	start := time.Now()

	files, err := files_manager.FindSlideFiles(inputDir, o.Config.Extensions)
	if err != nil {
		return Summary{}, fmt.Errorf("scan input directory: %w", err)
	}
	if len(files) == 0 {
		return Summary{}, fmt.Errorf("no slide files found in %s", inputDir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output directory: %w", err)
	}

	if logFile, err := os.Create(filepath.Join(outputDir, logFileName)); err == nil {
		defer logFile.Close()
		prev := log.Writer()
		log.SetOutput(io.MultiWriter(prev, logFile))
		defer log.SetOutput(prev)
	}

	log.Printf("batch conversion: %d files, %d file workers, %d conversion workers each",
		len(files), o.Config.FileWorkers, o.Config.ConversionWorkers)
	log.Printf("tile size %d, compression %s (quality %d), pyramid-512 %v, skip existing %v",
		o.Config.TileSize, o.Config.Compression, o.Config.Quality, o.Config.Pyramid512, o.Config.SkipExisting)

	results := make([]Result, len(files))
	g := &errgroup.Group{}
	g.SetLimit(o.Config.FileWorkers)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			results[i] = o.convertOne(ctx, file, outputDir)
			return nil
		})
	}
	g.Wait()

	s := Summary{Results: results, Total: len(results), WallTime: time.Since(start)}
	for _, r := range results {
		switch {
		case r.Skipped:
			s.Skipped++
		case r.Err != nil:
			s.Failed++
		default:
			s.Converted++
		}
	}

	log.Printf("batch summary: %d total, %d converted, %d skipped, %d failed in %s",
		s.Total, s.Converted, s.Skipped, s.Failed, s.WallTime.Round(time.Millisecond))
	for _, r := range results {
		if r.Err != nil {
			log.Printf("failed: %s: %v", filepath.Base(r.Input), r.Err)
		}
	}
	return s, nil
}

func (o *Orchestrator) convertOne(ctx context.Context, inputPath, outputDir string) Result {
	start := time.Now()
	out := files_manager.OutputPath(inputPath, outputDir)
	r := Result{Input: inputPath, Output: out}

	if o.Config.SkipExisting && files_manager.ShouldSkip(out) {
		r.Skipped = true
		r.Duration = time.Since(start)
		log.Printf("skipped (already exists): %s", filepath.Base(out))
		return r
	}

	eng, err := converter.New(o.Config.Options())
	if err != nil {
		r.Err = err
		r.Duration = time.Since(start)
		return r
	}
	if o.OpenSource != nil {
		eng.OpenSource = o.OpenSource
	}

	log.Printf("starting conversion: %s", filepath.Base(inputPath))
	if err := eng.ConvertFile(ctx, inputPath, out); err != nil {
		r.Err = err
		r.Duration = time.Since(start)
		log.Printf("conversion failed: %s: %v (%s)", filepath.Base(inputPath), err, r.Duration.Round(time.Millisecond))
		return r
	}
	r.Duration = time.Since(start)
	return r
}
