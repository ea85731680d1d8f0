package codec

import (
	"bytes"
	"image/jpeg"
	"io"
	"testing"

	"github.com/klauspost/compress/zlib"
	tifflzw "golang.org/x/image/tiff/lzw"
)

// gradientTile builds a deterministic RGB test tile.
func gradientTile(width, height int) []byte {
	buf := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			buf[i+0] = byte(x)
			buf[i+1] = byte(y)
			buf[i+2] = byte(x + y)
		}
	}
	return buf
}

// noisyBytes generates incompressible data from a small LCG so LZW burns
// through its code table quickly.
func noisyBytes(n int) []byte {
	buf := make([]byte, n)
	state := uint32(12345)
	for i := range buf {
		state = state*1664525 + 1013904223
		buf[i] = byte(state >> 24)
	}
	return buf
}

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		want Compression
	}{
		{"none", None},
		{"jpeg", JPEG},
		{"lzw", LZW},
		{"deflate", Deflate},
	}
	for _, tc := range cases {
		got, err := Parse(tc.name)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
	if _, err := Parse("zstd"); err == nil {
		t.Error("Parse accepted an unsupported name")
	}
}

func TestTIFFTags(t *testing.T) {
	tags := map[Compression]uint16{None: 1, LZW: 5, JPEG: 7, Deflate: 8}
	for c, want := range tags {
		if got := c.TIFFTag(); got != want {
			t.Errorf("%v tag: got %d, want %d", c, got, want)
		}
	}
}

func TestEncoderQualityValidation(t *testing.T) {
	if _, err := NewEncoder(JPEG, 0); err == nil {
		t.Error("quality 0 accepted")
	}
	if _, err := NewEncoder(JPEG, 101); err == nil {
		t.Error("quality 101 accepted")
	}
	if _, err := NewEncoder(JPEG, 75); err != nil {
		t.Errorf("quality 75 rejected: %v", err)
	}
}

func TestEncodeBufferSizeMismatch(t *testing.T) {
	enc, _ := NewEncoder(None, 75)
	if _, err := enc.Encode(make([]byte, 10), 4, 4); err == nil {
		t.Error("short buffer accepted")
	}
}

func TestEncodeNone(t *testing.T) {
	enc, _ := NewEncoder(None, 75)
	tile := gradientTile(64, 48)
	out, err := enc.Encode(tile, 64, 48)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(out, tile) {
		t.Error("uncompressed payload differs from input")
	}
	out[0] ^= 0xFF
	if tile[0] == out[0] {
		t.Error("payload aliases the input buffer")
	}
}

func TestEncodeJPEGDecodes(t *testing.T) {
	enc, err := NewEncoder(JPEG, 85)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	out, err := enc.Encode(gradientTile(96, 64), 96, 64)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("payload is not a valid JPEG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 96 || b.Dy() != 64 {
		t.Errorf("decoded dimensions: got %dx%d, want 96x64", b.Dx(), b.Dy())
	}
}

func lzwRoundTrip(t *testing.T, src []byte) {
	t.Helper()
	out := encodeLZW(src)
	r := tifflzw.NewReader(bytes.NewReader(out), tifflzw.MSB, 8)
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil && err != io.ErrUnexpectedEOF {
		t.Fatalf("lzw decode: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Fatalf("lzw round trip mismatch: %d bytes in, %d bytes out", len(src), len(got))
	}
}

func TestLZWRoundTrip(t *testing.T) {
	t.Run("empty", func(t *testing.T) { lzwRoundTrip(t, nil) })
	t.Run("single byte", func(t *testing.T) { lzwRoundTrip(t, []byte{0x42}) })
	t.Run("uniform", func(t *testing.T) { lzwRoundTrip(t, bytes.Repeat([]byte{0xAB}, 10000)) })
	t.Run("gradient tile", func(t *testing.T) { lzwRoundTrip(t, gradientTile(256, 256)) })
	t.Run("all byte values", func(t *testing.T) {
		src := make([]byte, 256)
		for i := range src {
			src[i] = byte(i)
		}
		lzwRoundTrip(t, src)
	})
	// Incompressible input forces the code table past 4093 entries and
	// exercises the mid-stream clear.
	t.Run("table reset", func(t *testing.T) { lzwRoundTrip(t, noisyBytes(64 * 1024)) })
}

func TestLZWCompressesUniformData(t *testing.T) {
	src := bytes.Repeat([]byte{0xF0}, 1024*1024)
	out := encodeLZW(src)
	if len(out) >= len(src)/10 {
		t.Errorf("uniform megabyte compressed to %d bytes", len(out))
	}
}

func TestDeflateRoundTrip(t *testing.T) {
	enc, _ := NewEncoder(Deflate, 75)
	tile := gradientTile(128, 128)
	out, err := enc.Encode(tile, 128, 128)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("payload is not a zlib stream: %v", err)
	}
	defer zr.Close()
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("deflate decode: %v", err)
	}
	if !bytes.Equal(got, tile) {
		t.Error("deflate round trip mismatch")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	for _, c := range []Compression{None, JPEG, LZW, Deflate} {
		enc, err := NewEncoder(c, 75)
		if err != nil {
			t.Fatalf("NewEncoder(%v): %v", c, err)
		}
		tile := gradientTile(64, 64)
		a, err := enc.Encode(tile, 64, 64)
		if err != nil {
			t.Fatalf("Encode(%v): %v", c, err)
		}
		b, err := enc.Encode(tile, 64, 64)
		if err != nil {
			t.Fatalf("Encode(%v): %v", c, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%v: repeated encode is not byte identical", c)
		}
	}
}
