// Package slide opens whole slide sources and exposes them as region
// readers. Philips iSyntax files are served by a decoder daemon subprocess;
// plain TIFF and PNG images are decoded in process; other formats go
// through the libvips backend when it is compiled in.
package slide

import (
	"fmt"
	"path/filepath"
	"strings"

	"isyntax2tiff/contracts"
)

// Open picks a backend for path by extension.
func Open(path string) (contracts.RegionSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".isyntax", ".i2syntax":
		return openISyntax(path)
	case ".tif", ".tiff", ".png":
		return openFile(path)
	default:
		return openNative(path)
	}
}

// ceilHalve returns the dimensions of resolution level relative to the
// level 0 size, halving with ceil rounding per step.
func ceilHalve(width, height int64, level int) (int64, int64) {
	for i := 0; i < level; i++ {
		width = (width + 1) / 2
		height = (height + 1) / 2
	}
	return width, height
}

func validRegion(w, h int64) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid region size %dx%d", w, h)
	}
	return nil
}
