package pyramid

import (
	"fmt"

	"isyntax2tiff/contracts"
)

// Level is one resolution level of the output pyramid. Index 0 is full
// resolution; every following level halves both dimensions (rounded up).
type Level struct {
	Index       int
	Downsample  int64
	Width       int64
	Height      int64
	TilesAcross int
	TilesDown   int
}

func (l Level) TileCount() int {
	return l.TilesAcross * l.TilesDown
}

// Plan computes the full level sequence for the given native dimensions and
// tile size. The pyramid terminates at the smallest level whose largest
// dimension fits in a single tile, inclusive.
func Plan(width, height int64, tileSize int) ([]Level, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image dimensions %dx%d", contracts.ErrInvalidPlan, width, height)
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size %d", contracts.ErrInvalidPlan, tileSize)
	}

	t := int64(tileSize)
	var levels []Level
	w, h := width, height
	for i := 0; ; i++ {
		levels = append(levels, Level{
			Index:       i,
			Downsample:  1 << uint(i),
			Width:       w,
			Height:      h,
			TilesAcross: int((w + t - 1) / t),
			TilesDown:   int((h + t - 1) / t),
		})
		if w <= t && h <= t {
			break
		}
		w = (w + 1) / 2
		h = (h + 1) / 2
	}
	return levels, nil
}

// TotalTiles is the tile count across all levels.
func TotalTiles(levels []Level) int {
	n := 0
	for _, l := range levels {
		n += l.TileCount()
	}
	return n
}
