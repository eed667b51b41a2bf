package sq_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/eak1mov/go-libwall/pyramid"
	"github.com/eak1mov/go-libwall/sq"
	"github.com/eak1mov/go-libwall/tile"
	"github.com/google/go-cmp/cmp"

	_ "github.com/mattn/go-sqlite3"
)

var (
	_ tile.Writer  = (*sq.Writer)(nil)
	_ tile.Reader  = (*sq.Reader)(nil)
	_ tile.Visitor = (*sq.Reader)(nil)
)

func TestWriterReader(t *testing.T) {
	tiles := make(map[tile.ID][]byte)
	for level := uint32(0); level <= 2; level++ {
		for x := uint32(0); x < 1<<level; x++ {
			for y := uint32(0); y < 1<<level; y++ {
				id := tile.ID{Level: level, X: x, Y: y}
				tiles[id] = fmt.Appendf(nil, "tile-%v-%v-%v", level, x, y)
			}
		}
	}

	filePath := filepath.Join(t.TempDir(), "content.db")
	meta := pyramid.Meta{PyramidPath: "content.pyr", Width: 2048, Height: 2048}

	w, err := sq.NewWriter(filePath, meta, 512)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for id, data := range tiles {
		if err := w.WriteTile(id, data); err != nil {
			t.Fatalf("WriteTile(%v) failed: %v", id, err)
		}
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := sq.NewReader(filePath)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	gotMeta, tileEdge, err := r.ReadMeta()
	if err != nil {
		t.Fatalf("ReadMeta failed: %v", err)
	}
	if diff := cmp.Diff(meta, gotMeta); diff != "" {
		t.Errorf("ReadMeta mismatch (-want+got):\n%v", diff)
	}
	if got, want := tileEdge, 512; got != want {
		t.Errorf("tileEdge = %v, want = %v", got, want)
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

	missing, err := r.ReadTile(tile.ID{Level: 2, X: 9, Y: 9})
	if err != nil {
		t.Fatalf("ReadTile failed: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("missing tile = %q, want empty", missing)
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
}
