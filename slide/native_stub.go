//go:build !(cgo && vips)

package slide

import (
	"fmt"
	"path/filepath"

	"isyntax2tiff/contracts"
)

// openNative without the vips build tag: nothing can serve the format.
func openNative(path string) (contracts.RegionSource, error) {
	return nil, fmt.Errorf("no decoder for %q files (build with the vips tag for libvips support)", filepath.Ext(path))
}
