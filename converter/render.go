package converter

import (
	"context"
	"errors"
	"log"

	"isyntax2tiff/contracts"
	"isyntax2tiff/pyramid"
)

// renderEncodeTile produces the compressed payload for one tile. The source
// rectangle is read from the deepest native level at or above the requested
// level; any residual factor is box averaged down. Out-of-bounds area and
// unavailable regions become fill color.
func (e *Engine) renderEncodeTile(ctx context.Context, src contracts.RegionSource, lv pyramid.Level, coord contracts.TileCoord, tileSize int) ([]byte, error) {
	T := int64(tileSize)
	fill := byte(e.Opts.FillColor)

	native := lv.Index
	if max := src.NumLevels() - 1; native > max {
		native = max
	}
	factor := int64(1) << uint(lv.Index-native)
	nativeW, nativeH := src.Dimensions(native)

	// Tile footprint in native level pixels.
	x0 := int64(coord.Col) * T * factor
	y0 := int64(coord.Row) * T * factor
	regionW := T * factor
	regionH := T * factor
	if x0+regionW > nativeW {
		regionW = nativeW - x0
	}
	if y0+regionH > nativeH {
		regionH = nativeH - y0
	}

	out := make([]byte, T*T*3)
	if fill != 0 {
		for i := range out {
			out[i] = fill
		}
	}

	if regionW > 0 && regionH > 0 {
		data, err := src.ReadRegion(ctx, native, x0, y0, regionW, regionH)
		switch {
		case err == nil:
			if factor == 1 {
				copyRegion(out, data, T, regionW, regionH)
			} else {
				downsampleRegion(out, data, T, regionW, regionH, factor)
			}
		case errors.Is(err, contracts.ErrRegionUnavailable):
			log.Printf("warning: level %d tile (%d,%d): %v, substituting fill", lv.Index, coord.Row, coord.Col, err)
		default:
			return nil, err
		}
	}

	return e.enc.Encode(out, tileSize, tileSize)
}

// copyRegion places a w x h region at the top left of a T x T tile.
func copyRegion(out, data []byte, T, w, h int64) {
	for row := int64(0); row < h; row++ {
		copy(out[row*T*3:row*T*3+w*3], data[row*w*3:])
	}
}

// downsampleRegion box averages a w x h region by factor into the top left
// of a T x T tile. Partial boxes at the right and bottom edges average
// whatever pixels they cover.
func downsampleRegion(out, data []byte, T, w, h, factor int64) {
	outW := (w + factor - 1) / factor
	outH := (h + factor - 1) / factor
	for oy := int64(0); oy < outH; oy++ {
		yEnd := (oy + 1) * factor
		if yEnd > h {
			yEnd = h
		}
		for ox := int64(0); ox < outW; ox++ {
			xEnd := (ox + 1) * factor
			if xEnd > w {
				xEnd = w
			}
			var sumR, sumG, sumB, n uint64
			for y := oy * factor; y < yEnd; y++ {
				base := (y*w + ox*factor) * 3
				for x := ox * factor; x < xEnd; x++ {
					sumR += uint64(data[base+0])
					sumG += uint64(data[base+1])
					sumB += uint64(data[base+2])
					base += 3
					n++
				}
			}
			i := (oy*T + ox) * 3
			out[i+0] = byte(sumR / n)
			out[i+1] = byte(sumG / n)
			out[i+2] = byte(sumB / n)
		}
	}
}
