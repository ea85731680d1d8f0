// Package codec compresses individual pyramid tiles. Every encoder takes an
// interleaved 8-bit RGB buffer and returns a payload ready to be written into
// the container's tile stream.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/klauspost/compress/zlib"
)

type Compression int

const (
	None Compression = iota
	JPEG
	LZW
	Deflate
)

// Parse maps a CLI compression name to its codec.
func Parse(name string) (Compression, error) {
	switch name {
	case "none":
		return None, nil
	case "jpeg":
		return JPEG, nil
	case "lzw":
		return LZW, nil
	case "deflate":
		return Deflate, nil
	}
	return None, fmt.Errorf("unsupported compression %q (want jpeg, lzw, deflate or none)", name)
}

func (c Compression) String() string {
	switch c {
	case JPEG:
		return "jpeg"
	case LZW:
		return "lzw"
	case Deflate:
		return "deflate"
	}
	return "none"
}

// TIFFTag is the value for the container's Compression directory tag.
func (c Compression) TIFFTag() uint16 {
	switch c {
	case JPEG:
		return 7
	case LZW:
		return 5
	case Deflate:
		return 8 // Adobe deflate, zlib stream
	}
	return 1
}

type Encoder struct {
	compression Compression
	quality     int
}

func NewEncoder(c Compression, quality int) (Encoder, error) {
	if quality < 1 || quality > 100 {
		return Encoder{}, fmt.Errorf("jpeg quality must be 1-100, got %d", quality)
	}
	return Encoder{compression: c, quality: quality}, nil
}

func (e Encoder) Compression() Compression {
	return e.compression
}

// Encode compresses one width x height RGB tile.
func (e Encoder) Encode(rgb []byte, width, height int) ([]byte, error) {
	if len(rgb) != width*height*3 {
		return nil, fmt.Errorf("tile buffer is %d bytes, want %d for %dx%d RGB",
			len(rgb), width*height*3, width, height)
	}
	switch e.compression {
	case None:
		out := make([]byte, len(rgb))
		copy(out, rgb)
		return out, nil
	case JPEG:
		return e.encodeJPEG(rgb, width, height)
	case LZW:
		return encodeLZW(rgb), nil
	case Deflate:
		return encodeDeflate(rgb)
	}
	return nil, fmt.Errorf("unknown compression %d", e.compression)
}

func (e Encoder) encodeJPEG(rgb []byte, width, height int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		src := rgb[y*width*3:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			dst[x*4+0] = src[x*3+0]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xFF
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeDeflate(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("deflate encode: %w", err)
	}
	if _, err := zw.Write(src); err != nil {
		return nil, fmt.Errorf("deflate encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("deflate encode: %w", err)
	}
	return buf.Bytes(), nil
}
