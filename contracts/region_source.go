package contracts

import (
	"context"
	"errors"
)

// ErrRegionUnavailable marks a localized decode gap: the requested rectangle
// could not be produced, but the source as a whole is still readable. Workers
// substitute a fill-color tile instead of failing the job.
var ErrRegionUnavailable = errors.New("region unavailable")

// ErrInvalidPlan is returned for pyramid plans that cannot be built
// (non-positive dimensions or tile size).
var ErrInvalidPlan = errors.New("invalid pyramid plan")

type AuxKind string

const (
	AuxMacro AuxKind = "macro"
	AuxLabel AuxKind = "label"
)

// AuxImage is a non-pyramid reference image (slide macro photo or label).
type AuxImage struct {
	Width  int
	Height int
	RGB    []byte // interleaved, Width*Height*3 bytes
}

// RegionSource abstracts the vendor decoder that turns a proprietary slide
// format into raw pixel rectangles on demand. Implementations live in the
// slide package. ReadRegion returns interleaved 8-bit RGB of exactly w*h*3
// bytes, or an error wrapping ErrRegionUnavailable for a localized gap; any
// other error is fatal for the conversion job.
type RegionSource interface {
	// Dimensions reports the pixel size of the given native resolution level.
	Dimensions(level int) (width, height int64)
	// NumLevels reports how many native resolution levels the source holds.
	NumLevels() int
	// PixelSize reports the full-resolution pixel pitch in microns.
	PixelSize() (x, y float64)
	ReadRegion(ctx context.Context, level int, x, y, w, h int64) ([]byte, error)
	// AuxImage returns the requested auxiliary image, or (nil, nil) when the
	// source does not carry one.
	AuxImage(kind AuxKind) (*AuxImage, error)
	Close() error
}
