package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"isyntax2tiff/contracts"
	"isyntax2tiff/tiffwriter"
)

// stubSource is a tiny single-level gradient slide.
type stubSource struct {
	width, height int64
}

func (s *stubSource) Dimensions(level int) (int64, int64) {
	w, h := s.width, s.height
	for i := 0; i < level; i++ {
		w, h = (w+1)/2, (h+1)/2
	}
	return w, h
}

func (s *stubSource) NumLevels() int { return 1 }

func (s *stubSource) PixelSize() (float64, float64) { return 1.0, 1.0 }

func (s *stubSource) ReadRegion(ctx context.Context, level int, x, y, w, h int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, w*h*3)
	for i := range buf {
		buf[i] = byte(x + y)
	}
	return buf, nil
}

func (s *stubSource) AuxImage(contracts.AuxKind) (*contracts.AuxImage, error) { return nil, nil }

func (s *stubSource) Close() error { return nil }

func testOrchestrator() *Orchestrator {
	cfg := DefaultConfig()
	cfg.TileSize = 64
	cfg.BatchSize = 10
	cfg.Compression = "none"
	return &Orchestrator{
		Config: cfg,
		OpenSource: func(path string) (contracts.RegionSource, error) {
			if strings.Contains(path, "corrupt") {
				return nil, errors.New("truncated slide data")
			}
			return &stubSource{width: 150, height: 100}, nil
		},
	}
}

func seedInputDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{
		"slide-a.isyntax", "slide-b.isyntax", "slide-c.isyntax",
		"slide-corrupt.isyntax", "slide-d.i2syntax",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("stub"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRunConvertsAllButCorrupt(t *testing.T) {
	in := seedInputDir(t)
	out := t.TempDir()

	s, err := testOrchestrator().Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Total != 5 || s.Converted != 4 || s.Failed != 1 || s.Skipped != 0 {
		t.Fatalf("summary: %+v", s)
	}

	for _, name := range []string{"slide-a.tiff", "slide-b.tiff", "slide-c.tiff", "slide-d.tiff"} {
		path := filepath.Join(out, name)
		if err := tiffwriter.CheckHeader(path); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "slide-corrupt.tiff")); !os.IsNotExist(err) {
		t.Error("corrupt input produced an output file")
	}

	logData, err := os.ReadFile(filepath.Join(out, "batch_conversion.log"))
	if err != nil {
		t.Fatalf("batch log missing: %v", err)
	}
	if !strings.Contains(string(logData), "slide-corrupt.isyntax") {
		t.Error("batch log does not mention the failed file")
	}
	if !strings.Contains(string(logData), "1 failed") {
		t.Error("batch log lacks the summary line")
	}
}

func TestRunSkipsExisting(t *testing.T) {
	in := seedInputDir(t)
	out := t.TempDir()
	o := testOrchestrator()

	if _, err := o.Run(context.Background(), in, out); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	s, err := o.Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if s.Skipped != 4 {
		t.Errorf("skipped: got %d, want 4", s.Skipped)
	}
	if s.Failed != 1 {
		t.Errorf("failed: got %d, want 1 (corrupt file retried)", s.Failed)
	}
}

func TestRunNoSkipReconverts(t *testing.T) {
	in := seedInputDir(t)
	out := t.TempDir()
	o := testOrchestrator()

	if _, err := o.Run(context.Background(), in, out); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	o.Config.SkipExisting = false
	s, err := o.Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if s.Skipped != 0 || s.Converted != 4 {
		t.Errorf("summary without skip-existing: %+v", s)
	}
}

func TestRunEmptyDirectory(t *testing.T) {
	if _, err := testOrchestrator().Run(context.Background(), t.TempDir(), t.TempDir()); err == nil {
		t.Error("empty input directory accepted")
	}
}

func TestRunHonorsExtensionFilter(t *testing.T) {
	in := seedInputDir(t)
	out := t.TempDir()
	o := testOrchestrator()
	o.Config.Extensions = []string{".i2syntax"}

	s, err := o.Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Total != 1 || s.Converted != 1 {
		t.Errorf("summary with extension filter: %+v", s)
	}
}
