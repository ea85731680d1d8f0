package pyramid

import (
	"errors"
	"testing"

	"isyntax2tiff/contracts"
)

func TestPlanWholeSlideScenario(t *testing.T) {
	// 100,000 x 80,000 source with 1024 tiles: level 0 grid must be 98x79
	// and the pyramid must descend to a single-tile level.
	levels, err := Plan(100000, 80000, 1024)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if levels[0].Width != 100000 || levels[0].Height != 80000 {
		t.Errorf("level 0 dimensions: got %dx%d, want 100000x80000", levels[0].Width, levels[0].Height)
	}
	if levels[0].TilesAcross != 98 || levels[0].TilesDown != 79 {
		t.Errorf("level 0 grid: got %dx%d, want 98x79", levels[0].TilesAcross, levels[0].TilesDown)
	}
	if levels[1].Width != 50000 || levels[1].Height != 40000 {
		t.Errorf("level 1 dimensions: got %dx%d, want 50000x40000", levels[1].Width, levels[1].Height)
	}
	if levels[2].Width != 25000 || levels[2].Height != 20000 {
		t.Errorf("level 2 dimensions: got %dx%d, want 25000x20000", levels[2].Width, levels[2].Height)
	}

	last := levels[len(levels)-1]
	if last.Width > 1024 || last.Height > 1024 {
		t.Errorf("terminal level %dx%d does not fit one tile", last.Width, last.Height)
	}
	for i := 1; i < len(levels); i++ {
		prev, cur := levels[i-1], levels[i]
		if cur.Width >= prev.Width || cur.Height >= prev.Height {
			t.Errorf("level %d dimensions do not strictly decrease: %dx%d -> %dx%d",
				i, prev.Width, prev.Height, cur.Width, cur.Height)
		}
		if cur.Width != (prev.Width+1)/2 || cur.Height != (prev.Height+1)/2 {
			t.Errorf("level %d is not the ceil-halving of level %d", i, i-1)
		}
		if cur.Downsample != prev.Downsample*2 {
			t.Errorf("level %d downsample: got %d, want %d", i, cur.Downsample, prev.Downsample*2)
		}
	}
}

func TestPlanGridMatchesCeil(t *testing.T) {
	levels, err := Plan(1025, 3000, 512)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	for _, lv := range levels {
		wantAcross := int((lv.Width + 511) / 512)
		wantDown := int((lv.Height + 511) / 512)
		if lv.TilesAcross != wantAcross || lv.TilesDown != wantDown {
			t.Errorf("level %d grid: got %dx%d, want %dx%d",
				lv.Index, lv.TilesAcross, lv.TilesDown, wantAcross, wantDown)
		}
	}
}

func TestPlanSingleLevel(t *testing.T) {
	levels, err := Plan(512, 400, 1024)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("expected 1 level, got %d", len(levels))
	}
	if levels[0].TileCount() != 1 {
		t.Errorf("expected a single tile, got %d", levels[0].TileCount())
	}
}

func TestPlanInvalid(t *testing.T) {
	cases := []struct {
		name     string
		w, h     int64
		tileSize int
	}{
		{"zero width", 0, 100, 1024},
		{"zero height", 100, 0, 1024},
		{"negative dims", -5, 100, 1024},
		{"zero tile size", 100, 100, 0},
		{"negative tile size", 100, 100, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Plan(tc.w, tc.h, tc.tileSize)
			if !errors.Is(err, contracts.ErrInvalidPlan) {
				t.Errorf("expected ErrInvalidPlan, got %v", err)
			}
		})
	}
}

func TestQueueOrderingAndBatching(t *testing.T) {
	levels, err := Plan(1000, 700, 256)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	q := NewQueue(levels, 7)

	var got []contracts.TileCoord
	for {
		batch, ok := q.Next()
		if !ok {
			break
		}
		if len(batch) == 0 || len(batch) > 7 {
			t.Fatalf("batch size %d out of range", len(batch))
		}
		got = append(got, batch...)
	}

	if len(got) != q.Total() {
		t.Fatalf("coordinate count: got %d, want %d", len(got), q.Total())
	}

	var want []contracts.TileCoord
	for li, lv := range levels {
		for r := 0; r < lv.TilesDown; r++ {
			for c := 0; c < lv.TilesAcross; c++ {
				want = append(want, contracts.TileCoord{Level: li, Row: r, Col: c})
			}
		}
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("coordinate %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestQueueReset(t *testing.T) {
	levels, err := Plan(300, 300, 100)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	q := NewQueue(levels, 4)

	first, ok := q.Next()
	if !ok {
		t.Fatal("queue empty on first Next")
	}
	for {
		if _, ok := q.Next(); !ok {
			break
		}
	}

	q.Reset()
	again, ok := q.Next()
	if !ok {
		t.Fatal("queue empty after Reset")
	}
	if len(first) != len(again) {
		t.Fatalf("batch length after reset: got %d, want %d", len(again), len(first))
	}
	for i := range first {
		if first[i] != again[i] {
			t.Errorf("coordinate %d after reset: got %+v, want %+v", i, again[i], first[i])
		}
	}
}
