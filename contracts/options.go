package contracts

import "fmt"

// Options carries the per-job conversion parameters shared by the single-file
// and batch front ends.
type Options struct {
	TileSize    int
	MaxWorkers  int
	BatchSize   int
	FillColor   int
	Compression string
	Quality     int
	Pyramid512  bool
	Debug       bool
}

func DefaultOptions() Options {
	return Options{
		TileSize:    1024,
		MaxWorkers:  4,
		BatchSize:   250,
		FillColor:   0,
		Compression: "jpeg",
		Quality:     75,
	}
}

func (o Options) Validate() error {
	if o.TileSize <= 0 {
		return fmt.Errorf("%w: tile size %d", ErrInvalidPlan, o.TileSize)
	}
	if o.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive, got %d", o.MaxWorkers)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", o.BatchSize)
	}
	if o.FillColor < 0 || o.FillColor > 255 {
		return fmt.Errorf("fill color must be 0-255, got %d", o.FillColor)
	}
	return nil
}
