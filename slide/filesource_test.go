package slide

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeTestPNG renders a gradient image to disk.
func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = byte(x)
			img.Pix[i+1] = byte(y)
			img.Pix[i+2] = byte(x ^ y)
			img.Pix[i+3] = 0xFF
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestFileSourceOpenAndDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slide.png")
	writeTestPNG(t, path, 200, 120)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if src.NumLevels() != 1 {
		t.Errorf("NumLevels: got %d, want 1", src.NumLevels())
	}
	w, h := src.Dimensions(0)
	if w != 200 || h != 120 {
		t.Errorf("level 0: got %dx%d, want 200x120", w, h)
	}
	w, h = src.Dimensions(2)
	if w != 50 || h != 30 {
		t.Errorf("level 2: got %dx%d, want 50x30", w, h)
	}
	px, py := src.PixelSize()
	if px != 1.0 || py != 1.0 {
		t.Errorf("PixelSize: got %v,%v, want 1,1", px, py)
	}
}

func TestFileSourceReadRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slide.png")
	writeTestPNG(t, path, 64, 64)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	buf, err := src.ReadRegion(context.Background(), 0, 10, 20, 8, 4)
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	if len(buf) != 8*4*3 {
		t.Fatalf("region length: got %d, want %d", len(buf), 8*4*3)
	}
	// Pixel at source (10, 20) is the first of the region.
	if buf[0] != 10 || buf[1] != 20 || buf[2] != 10^20 {
		t.Errorf("pixel 0: got %v, want [10 20 %d]", buf[:3], 10^20)
	}
	// Pixel at source (13, 22) sits at region (3, 2).
	i := (2*8 + 3) * 3
	if buf[i] != 13 || buf[i+1] != 22 || buf[i+2] != 13^22 {
		t.Errorf("pixel (3,2): got %v, want [13 22 %d]", buf[i:i+3], 13^22)
	}
}

func TestFileSourceRejectsBadRegions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slide.png")
	writeTestPNG(t, path, 32, 32)
	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	cases := []struct {
		name             string
		level            int
		x, y, w, h       int64
	}{
		{"nonzero level", 1, 0, 0, 8, 8},
		{"negative origin", 0, -1, 0, 8, 8},
		{"overruns width", 0, 28, 0, 8, 8},
		{"zero size", 0, 0, 0, 0, 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := src.ReadRegion(context.Background(), tc.level, tc.x, tc.y, tc.w, tc.h); err == nil {
				t.Error("bad region accepted")
			}
		})
	}
}

func TestFileSourceCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slide.png")
	writeTestPNG(t, path, 16, 16)
	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.ReadRegion(ctx, 0, 0, 0, 8, 8); err == nil {
		t.Error("cancelled context not honored")
	}
}

func TestFileSourceNoAuxImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slide.png")
	writeTestPNG(t, path, 16, 16)
	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	aux, err := src.AuxImage("macro")
	if err != nil {
		t.Fatalf("AuxImage: %v", err)
	}
	if aux != nil {
		t.Error("file source claims to carry a macro image")
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.png")); err == nil {
		t.Error("missing file accepted")
	}
}
