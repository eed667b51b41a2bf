package pyr_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/eak1mov/go-libwall/pyr"
	"github.com/eak1mov/go-libwall/pyramid"
	"github.com/eak1mov/go-libwall/tile"
	"github.com/google/go-cmp/cmp"
)

func TestWriterReader(t *testing.T) {
	for _, tc := range []struct {
		name   string
		levels uint32
	}{
		{"single", 0},
		{"three-levels", 2},
		{"five-levels", 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tiles := make(map[tile.ID][]byte)
			for level := uint32(0); level <= tc.levels; level++ {
				for x := uint32(0); x < 1<<level; x++ {
					for y := uint32(0); y < 1<<level; y++ {
						id := tile.ID{Level: level, X: x, Y: y}
						tiles[id] = fmt.Appendf(nil, "tile-%v-%v-%v", level, x, y)
					}
				}
			}

			filePath := filepath.Join(t.TempDir(), "content.wlpyr")
			meta := pyramid.Meta{Width: 4096, Height: 4096}

			w, err := pyr.NewWriter(filePath, meta, 512)
			if err != nil {
				t.Fatalf("NewWriter failed: %v", err)
			}
			defer w.Close()

			for id, data := range tiles {
				if err := w.WriteTile(id, data); err != nil {
					t.Fatalf("WriteTile(%v) failed: %v", id, err)
				}
			}
			if err := w.Finalize(); err != nil {
				t.Fatalf("Finalize failed: %v", err)
			}

			r, err := pyr.NewReader(filePath)
			if err != nil {
				t.Fatalf("NewReader failed: %v", err)
			}
			defer r.Close()

			if got, want := r.Meta().Width, 4096; got != want {
				t.Errorf("Meta().Width = %v, want = %v", got, want)
			}
			if got, want := r.TileEdge(), 512; got != want {
				t.Errorf("TileEdge() = %v, want = %v", got, want)
			}

			for id, want := range tiles {
				got, err := r.ReadTile(id)
				if err != nil {
					t.Fatalf("ReadTile(%v) failed: %v", id, err)
				}
				if !cmp.Equal(got, want) {
					t.Errorf("ReadTile(%v) = %q, want = %q", id, got, want)
				}
			}

			visited := make(map[tile.ID][]byte)
			err = r.VisitTiles(func(id tile.ID, data []byte) error {
				visited[id] = data
				return nil
			})
			if err != nil {
				t.Fatalf("VisitTiles failed: %v", err)
			}
			if diff := cmp.Diff(tiles, visited); diff != "" {
				t.Errorf("VisitTiles mismatch (-want+got):\n%v", diff)
			}
		})
	}
}

func TestReadMissingTile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "sparse.wlpyr")

	w, err := pyr.NewWriter(filePath, pyramid.Meta{Width: 1024, Height: 1024}, 512)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	defer w.Close()
	if err := w.WriteTile(tile.ID{Level: 1, X: 0, Y: 0}, []byte("only")); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}

	r, err := pyr.NewReader(filePath)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	data, err := r.ReadTile(tile.ID{Level: 1, X: 1, Y: 1})
	if err != nil {
		t.Fatalf("ReadTile failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("missing tile = %q, want empty", data)
	}
}

func TestDeduplicatedTiles(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "dedup.wlpyr")

	w, err := pyr.NewWriter(filePath, pyramid.Meta{Width: 1024, Height: 1024}, 512)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	defer w.Close()

	// The same solid-color payload for every tile of level 1.
	payload := []byte("solid-black-tile-payload")
	for x := uint32(0); x < 2; x++ {
		for y := uint32(0); y < 2; y++ {
			if err := w.WriteTile(tile.ID{Level: 1, X: x, Y: y}, payload); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}

	r, err := pyr.NewReader(filePath)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	for x := uint32(0); x < 2; x++ {
		for y := uint32(0); y < 2; y++ {
			got, err := r.ReadTile(tile.ID{Level: 1, X: x, Y: y})
			if err != nil {
				t.Fatal(err)
			}
			if !cmp.Equal(got, payload) {
				t.Errorf("ReadTile(1,%v,%v) = %q, want = %q", x, y, got, payload)
			}
		}
	}
}
