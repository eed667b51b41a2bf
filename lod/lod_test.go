package lod_test

import (
	"testing"

	"github.com/eak1mov/go-libwall/lod"
	"github.com/eak1mov/go-libwall/tile"
	"github.com/google/go-cmp/cmp"
)

func TestInvalidContent(t *testing.T) {
	for _, tc := range []struct{ w, h, edge int }{
		{0, 100, 512},
		{100, 0, 512},
		{-1, 100, 512},
		{100, 100, 0},
	} {
		if _, err := lod.New(tc.w, tc.h, tc.edge); err == nil {
			t.Errorf("New(%v, %v, %v) succeeded, want error", tc.w, tc.h, tc.edge)
		}
	}
}

func TestPyramid2048(t *testing.T) {
	ix, err := lod.New(2048, 2048, 512)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got, want := ix.MaxLevel(), uint32(2); got != want {
		t.Errorf("MaxLevel() = %v, want = %v", got, want)
	}
	for level, want := range map[uint32]int{0: 1, 1: 4, 2: 16} {
		if got := ix.LevelTileCount(level); got != want {
			t.Errorf("LevelTileCount(%v) = %v, want = %v", level, got, want)
		}
	}
	for level, want := range map[uint32]tile.Index{2: 0, 1: 16, 0: 20} {
		if got := ix.FirstIndex(level); got != want {
			t.Errorf("FirstIndex(%v) = %v, want = %v", level, got, want)
		}
	}
	if got, want := ix.TileCount(), 21; got != want {
		t.Errorf("TileCount() = %v, want = %v", got, want)
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, tc := range []struct{ w, h, edge int }{
		{2048, 2048, 512},
		{1000, 600, 256},
		{4096, 1024, 512},
		{100, 100, 512},
	} {
		ix, err := lod.New(tc.w, tc.h, tc.edge)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		seen := make(map[tile.Index]bool)
		for level := uint32(0); level <= ix.MaxLevel(); level++ {
			cols, rows := ix.GridSize(level)
			for y := range rows {
				for x := range cols {
					id := tile.ID{Level: level, X: uint32(x), Y: uint32(y)}
					idx := ix.Encode(id)
					if seen[idx] {
						t.Fatalf("Encode(%v) = %v already used", id, idx)
					}
					seen[idx] = true
					if diff := cmp.Diff(id, ix.Decode(idx)); diff != "" {
						t.Errorf("Decode(Encode(%v)) mismatch (-want+got):\n%v", id, diff)
					}
				}
			}
		}
		if got, want := len(seen), ix.TileCount(); got != want {
			t.Errorf("distinct indices = %v, want = %v", got, want)
		}
	}
}

func TestTileRectExactCover(t *testing.T) {
	for _, tc := range []struct{ w, h, edge int }{
		{2048, 2048, 512},
		{1000, 600, 256},
		{513, 511, 512},
	} {
		ix, err := lod.New(tc.w, tc.h, tc.edge)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		for level := uint32(0); level <= ix.MaxLevel(); level++ {
			scale := 1 << (ix.MaxLevel() - level)
			area := 0
			cols, rows := ix.GridSize(level)
			for y := range rows {
				for x := range cols {
					r := ix.TileRect(tile.ID{Level: level, X: uint32(x), Y: uint32(y)})
					if r.X < 0 || r.Y < 0 || r.X+r.W > tc.w || r.Y+r.H > tc.h {
						t.Errorf("TileRect out of bounds: %+v at level %v", r, level)
					}
					if r.W > tc.edge*scale || r.H > tc.edge*scale {
						t.Errorf("TileRect too large: %+v at level %v", r, level)
					}
					area += r.W * r.H
				}
			}
			// Disjoint axis-aligned grid cells cover exactly iff areas add up.
			if got, want := area, tc.w*tc.h; got != want {
				t.Errorf("level %v area = %v, want = %v (%vx%v edge %v)",
					level, got, want, tc.w, tc.h, tc.edge)
			}
		}
	}
}

func TestLevelForDisplayMonotonic(t *testing.T) {
	ix, err := lod.New(2048, 2048, 512)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	last := uint32(0)
	for size := 1; size <= 4096; size++ {
		level := ix.LevelForDisplay(tile.Size{W: size, H: size})
		if level < last {
			t.Fatalf("LevelForDisplay(%v) = %v, coarser than previous %v", size, level, last)
		}
		last = level
	}

	if got, want := ix.LevelForDisplay(tile.Size{W: 512, H: 512}), uint32(0); got != want {
		t.Errorf("LevelForDisplay(512) = %v, want = %v", got, want)
	}
	if got, want := ix.LevelForDisplay(tile.Size{W: 513, H: 513}), uint32(1); got != want {
		t.Errorf("LevelForDisplay(513) = %v, want = %v", got, want)
	}
	if got, want := ix.LevelForDisplay(tile.Size{W: 4096, H: 4096}), uint32(2); got != want {
		t.Errorf("LevelForDisplay(4096) = %v, want = %v", got, want)
	}
}
