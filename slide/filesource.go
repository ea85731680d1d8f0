package slide

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"isyntax2tiff/contracts"
)

// fileSource serves a plain raster image (TIFF or PNG) decoded fully into
// memory as a single-level source. Useful for testing pipelines without
// slide hardware formats and for converting already-flattened exports.
type fileSource struct {
	img    *image.RGBA
	width  int64
	height int64
}

func openFile(path string) (contracts.RegionSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source file: %w", err)
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err = png.Decode(f)
	default:
		img, err = tiff.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return &fileSource{
		img:    rgba,
		width:  int64(b.Dx()),
		height: int64(b.Dy()),
	}, nil
}

func (s *fileSource) Dimensions(level int) (int64, int64) {
	return ceilHalve(s.width, s.height, level)
}

func (s *fileSource) NumLevels() int { return 1 }

func (s *fileSource) PixelSize() (float64, float64) { return 1.0, 1.0 }

func (s *fileSource) ReadRegion(ctx context.Context, level int, x, y, w, h int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if level != 0 {
		return nil, fmt.Errorf("file source has a single level, got %d", level)
	}
	if err := validRegion(w, h); err != nil {
		return nil, err
	}
	if x < 0 || y < 0 || x+w > s.width || y+h > s.height {
		return nil, fmt.Errorf("region %d,%d %dx%d outside %dx%d image", x, y, w, h, s.width, s.height)
	}

	buf := make([]byte, w*h*3)
	for row := int64(0); row < h; row++ {
		src := s.img.Pix[(y+row)*int64(s.img.Stride)+x*4:]
		dst := buf[row*w*3:]
		for col := int64(0); col < w; col++ {
			dst[col*3+0] = src[col*4+0]
			dst[col*3+1] = src[col*4+1]
			dst[col*3+2] = src[col*4+2]
		}
	}
	return buf, nil
}

func (s *fileSource) AuxImage(contracts.AuxKind) (*contracts.AuxImage, error) {
	return nil, nil
}

func (s *fileSource) Close() error { return nil }
