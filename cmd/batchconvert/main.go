// Command batchconvert converts every slide file in a directory into
// pyramidal tiled BigTIFFs, several files at a time.
//
// Usage:
//
//	batchconvert [flags] input_dir output_dir
//
// A YAML config (via --config) provides defaults; flags given explicitly
// on the command line win over the config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"isyntax2tiff/batch"
)

func main() {
	defaults := batch.DefaultConfig()

	configPath := flag.String("config", "", "YAML config file")
	fileWorkers := flag.Int("file-workers", defaults.FileWorkers, "Files converted concurrently")
	convWorkers := flag.Int("conversion-workers", defaults.ConversionWorkers, "Tile workers per file")
	tileSize := flag.Int("tile-size", defaults.TileSize, "Tile edge length in pixels")
	batchSize := flag.Int("batch-size", defaults.BatchSize, "Tiles dispatched per work batch")
	fillColor := flag.Int("fill-color", defaults.FillColor, "Gray value (0-255) for padding and unreadable regions")
	compression := flag.String("compression", defaults.Compression, "Tile compression: jpeg, lzw, deflate or none")
	quality := flag.Int("quality", defaults.Quality, "JPEG quality (1-100)")
	pyramid512 := flag.Bool("pyramid-512", defaults.Pyramid512, "Also write a 512px-tile pyramid")
	extensions := flag.String("extensions", strings.Join(defaults.Extensions, ","), "Comma-separated slide extensions")
	noSkip := flag.Bool("no-skip-existing", false, "Reconvert files that already have a finished output")
	debug := flag.Bool("debug", false, "Verbose per-level logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <input_dir> <output_dir>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	inputDir, outputDir := flag.Arg(0), flag.Arg(1)

	cfg := defaults
	if *configPath != "" {
		var err error
		cfg, err = batch.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR]: %v\n", err)
			os.Exit(1)
		}
	}

	// Explicit flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "file-workers":
			cfg.FileWorkers = *fileWorkers
		case "conversion-workers":
			cfg.ConversionWorkers = *convWorkers
		case "tile-size":
			cfg.TileSize = *tileSize
		case "batch-size":
			cfg.BatchSize = *batchSize
		case "fill-color":
			cfg.FillColor = *fillColor
		case "compression":
			cfg.Compression = *compression
		case "quality":
			cfg.Quality = *quality
		case "pyramid-512":
			cfg.Pyramid512 = *pyramid512
		case "extensions":
			cfg.Extensions = splitExtensions(*extensions)
		case "no-skip-existing":
			cfg.SkipExisting = !*noSkip
		case "debug":
			cfg.Debug = *debug
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR]: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := &batch.Orchestrator{Config: cfg}
	summary, err := o.Run(ctx, inputDir, outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR]: %v\n", err)
		os.Exit(1)
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func splitExtensions(s string) []string {
	var exts []string
	for _, e := range strings.Split(s, ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}
