// Command convert turns a single slide file into a pyramidal tiled BigTIFF.
//
// Usage:
//
//	convert [flags] input.isyntax output.tiff
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"isyntax2tiff/contracts"
	"isyntax2tiff/converter"
)

func main() {
	opts := contracts.DefaultOptions()

	flag.IntVar(&opts.TileSize, "tile-size", opts.TileSize, "Tile edge length in pixels")
	flag.IntVar(&opts.MaxWorkers, "max-workers", opts.MaxWorkers, "Concurrent tile workers")
	flag.IntVar(&opts.BatchSize, "batch-size", opts.BatchSize, "Tiles dispatched per work batch")
	flag.IntVar(&opts.FillColor, "fill-color", opts.FillColor, "Gray value (0-255) for padding and unreadable regions")
	flag.StringVar(&opts.Compression, "compression", opts.Compression, "Tile compression: jpeg, lzw, deflate or none")
	flag.IntVar(&opts.Quality, "quality", opts.Quality, "JPEG quality (1-100)")
	flag.BoolVar(&opts.Pyramid512, "pyramid-512", false, "Also write a 512px-tile pyramid")
	flag.BoolVar(&opts.Debug, "debug", false, "Verbose per-level logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <input> <output.tiff>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	input, output := flag.Arg(0), flag.Arg(1)

	eng, err := converter.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR]: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.ConvertFile(ctx, input, output); err != nil {
		log.Printf("conversion failed: %v", err)
		os.Exit(1)
	}
}
