// Package converter turns a slide region source into a pyramidal tiled
// BigTIFF. Tile rendering fans out to a bounded worker pool; a single
// assembler goroutine owns the container writer and finalizes levels
// strictly finest first.
package converter

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"isyntax2tiff/codec"
	"isyntax2tiff/contracts"
	"isyntax2tiff/philipsxml"
	"isyntax2tiff/pyramid"
	"isyntax2tiff/slide"
	"isyntax2tiff/tiffwriter"
)

type Engine struct {
	Opts contracts.Options
	// OpenSource lets callers substitute the slide backend. Defaults to
	// slide.Open.
	OpenSource func(string) (contracts.RegionSource, error)

	enc  codec.Encoder
	comp codec.Compression
}

func New(opts contracts.Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	comp, err := codec.Parse(opts.Compression)
	if err != nil {
		return nil, err
	}
	enc, err := codec.NewEncoder(comp, opts.Quality)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Opts:       opts,
		OpenSource: slide.Open,
		enc:        enc,
		comp:       comp,
	}, nil
}

// ConvertFile converts one slide file into a pyramidal BigTIFF at
// outputPath. Nothing appears at outputPath unless the whole conversion
// succeeds.
func (e *Engine) ConvertFile(ctx context.Context, inputPath, outputPath string) error {
	start := time.Now()

	src, err := e.OpenSource(inputPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	// The metadata timestamp comes from the source file so repeat runs
	// are byte identical.
	var sourceTime time.Time
	if fi, err := os.Stat(inputPath); err == nil {
		sourceTime = fi.ModTime().UTC()
	}

	if err := e.Convert(ctx, src, filepath.Base(inputPath), outputPath, sourceTime); err != nil {
		return err
	}
	log.Printf("converted %s -> %s in %s", inputPath, outputPath, time.Since(start).Round(time.Millisecond))
	return nil
}

// Convert runs the full pipeline against an already opened source.
func (e *Engine) Convert(ctx context.Context, src contracts.RegionSource, sourceName, outputPath string, sourceTime time.Time) error {
	width, height := src.Dimensions(0)
	levels, err := pyramid.Plan(width, height, e.Opts.TileSize)
	if err != nil {
		return err
	}

	macro, macroJPEG := e.fetchAux(src, contracts.AuxMacro)
	label, labelJPEG := e.fetchAux(src, contracts.AuxLabel)

	pxX, pxY := src.PixelSize()
	xmlLevels := make([]philipsxml.Level, len(levels))
	for i, lv := range levels {
		xmlLevels[i] = philipsxml.Level{Width: lv.Width, Height: lv.Height}
	}
	description := philipsxml.Generate(philipsxml.Info{
		SourceFilename: sourceName,
		Width:          width,
		Height:         height,
		PixelSpacing:   effectivePixelSize(pxX) / 1000, // microns to millimeters
		Levels:         xmlLevels,
		Macro:          macroJPEG,
		Label:          labelJPEG,
		Timestamp:      sourceTime,
	})

	w, err := tiffwriter.Create(outputPath, effectivePixelSize(pxX), effectivePixelSize(pxY))
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	if err := e.writePyramid(ctx, src, w, levels, e.Opts.TileSize, description); err != nil {
		w.Discard()
		return err
	}

	if e.Opts.Pyramid512 {
		levels512, err := pyramid.Plan(width, height, 512)
		if err != nil {
			w.Discard()
			return err
		}
		if err := e.writePyramid(ctx, src, w, levels512, 512, ""); err != nil {
			w.Discard()
			return err
		}
	}

	if macro != nil {
		if err := w.WriteAuxiliary("Macro", macro.Width, macro.Height, macroJPEG); err != nil {
			w.Discard()
			return fmt.Errorf("write macro image: %w", err)
		}
	}
	if label != nil {
		if err := w.WriteAuxiliary("Label", label.Width, label.Height, labelJPEG); err != nil {
			w.Discard()
			return fmt.Errorf("write label image: %w", err)
		}
	}

	if err := w.Finish(); err != nil {
		return fmt.Errorf("finalize output: %w", err)
	}
	return nil
}

// fetchAux pulls an auxiliary image and its JPEG rendition. Failures here
// degrade the output but never abort a conversion.
func (e *Engine) fetchAux(src contracts.RegionSource, kind contracts.AuxKind) (*contracts.AuxImage, []byte) {
	aux, err := src.AuxImage(kind)
	if err != nil {
		log.Printf("warning: reading %s image failed: %v", kind, err)
		return nil, nil
	}
	if aux == nil {
		return nil, nil
	}
	jpegEnc, err := codec.NewEncoder(codec.JPEG, e.Opts.Quality)
	if err != nil {
		return nil, nil
	}
	data, err := jpegEnc.Encode(aux.RGB, aux.Width, aux.Height)
	if err != nil {
		log.Printf("warning: encoding %s image failed: %v", kind, err)
		return nil, nil
	}
	return aux, data
}

// writePyramid renders and writes one complete level set. Workers render
// and encode; this goroutine is the only one touching the writer.
func (e *Engine) writePyramid(ctx context.Context, src contracts.RegionSource, w *tiffwriter.Writer, levels []pyramid.Level, tileSize int, description string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := pyramid.NewQueue(levels, e.Opts.BatchSize)
	batchChan := make(chan []contracts.TileCoord)
	resultChan := make(chan contracts.Tile, e.Opts.BatchSize)
	errChan := make(chan error, e.Opts.MaxWorkers)

	wg := &sync.WaitGroup{}
	for i := 0; i < e.Opts.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batchChan {
				for _, coord := range batch {
					if ctx.Err() != nil {
						return
					}
					data, err := e.renderEncodeTile(ctx, src, levels[coord.Level], coord, tileSize)
					if err != nil {
						select {
						case errChan <- err:
						default:
						}
						cancel()
						return
					}
					select {
					case resultChan <- contracts.Tile{Coord: coord, Data: data}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		defer close(batchChan)
		for {
			batch, ok := queue.Next()
			if !ok {
				return
			}
			select {
			case batchChan <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Ordered consumer: buffer out-of-order arrivals per level, finalize
	// levels strictly finest first.
	buffers := make(map[int][][]byte)
	counts := make(map[int]int)
	nextLevel := 0
	var writeErr error

	for tile := range resultChan {
		if writeErr != nil {
			continue // drain so workers can exit
		}
		lv := levels[tile.Coord.Level]
		buf, ok := buffers[tile.Coord.Level]
		if !ok {
			buf = make([][]byte, lv.TileCount())
			buffers[tile.Coord.Level] = buf
		}
		buf[tile.Coord.Row*lv.TilesAcross+tile.Coord.Col] = tile.Data
		counts[tile.Coord.Level]++

		for nextLevel < len(levels) && counts[nextLevel] == levels[nextLevel].TileCount() {
			info := tiffwriter.LevelInfo{
				Width:       levels[nextLevel].Width,
				Height:      levels[nextLevel].Height,
				TileSize:    tileSize,
				Compression: e.comp,
				Subfile:     1,
			}
			if nextLevel == 0 && description != "" {
				info.Subfile = 0
				info.Description = description
			}
			if err := w.WriteLevel(info, buffers[nextLevel]); err != nil {
				writeErr = fmt.Errorf("write level %d: %w", nextLevel, err)
				cancel()
				break
			}
			if e.Opts.Debug {
				log.Printf("level %d: %dx%d, %d tiles written", nextLevel, levels[nextLevel].Width, levels[nextLevel].Height, levels[nextLevel].TileCount())
			}
			delete(buffers, nextLevel)
			delete(counts, nextLevel)
			nextLevel++
		}
	}

	if writeErr != nil {
		return writeErr
	}
	select {
	case err := <-errChan:
		return err
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if nextLevel != len(levels) {
		return fmt.Errorf("pyramid incomplete: %d of %d levels written", nextLevel, len(levels))
	}
	return nil
}

func effectivePixelSize(microns float64) float64 {
	if microns <= 0 {
		return 1.0
	}
	return microns
}
