//go:build cgo && vips

package slide

import (
	"context"
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"isyntax2tiff/contracts"
)

var vipsOnce sync.Once

// vipsSource serves formats neither backend above understands through
// libvips. Single level; libvips handles its own tile cache.
type vipsSource struct {
	path   string
	width  int64
	height int64
}

func openNative(path string) (contracts.RegionSource, error) {
	vipsOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelError)
		vips.Startup(nil)
	})
	img, err := vips.NewImageFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("libvips open %s: %w", path, err)
	}
	defer img.Close()
	return &vipsSource{
		path:   path,
		width:  int64(img.Width()),
		height: int64(img.Height()),
	}, nil
}

func (s *vipsSource) Dimensions(level int) (int64, int64) {
	return ceilHalve(s.width, s.height, level)
}

func (s *vipsSource) NumLevels() int { return 1 }

func (s *vipsSource) PixelSize() (float64, float64) { return 1.0, 1.0 }

func (s *vipsSource) ReadRegion(ctx context.Context, level int, x, y, w, h int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if level != 0 {
		return nil, fmt.Errorf("libvips source has a single level, got %d", level)
	}
	if err := validRegion(w, h); err != nil {
		return nil, err
	}
	img, err := vips.NewImageFromFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("libvips open %s: %w", s.path, err)
	}
	defer img.Close()
	if err := img.ExtractArea(int(x), int(y), int(w), int(h)); err != nil {
		return nil, fmt.Errorf("libvips extract %d,%d %dx%d: %w", x, y, w, h, contracts.ErrRegionUnavailable)
	}
	if err := img.ToColorSpace(vips.InterpretationSRGB); err != nil {
		return nil, fmt.Errorf("libvips colorspace: %w", err)
	}
	raw, err := img.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("libvips raw export: %w", err)
	}
	bands := img.Bands()
	if bands == 3 {
		return raw, nil
	}
	// Drop any alpha band.
	out := make([]byte, w*h*3)
	for i := int64(0); i < w*h; i++ {
		copy(out[i*3:], raw[i*int64(bands):i*int64(bands)+3])
	}
	return out, nil
}

func (s *vipsSource) AuxImage(contracts.AuxKind) (*contracts.AuxImage, error) {
	return nil, nil
}

func (s *vipsSource) Close() error { return nil }
