// Package lod implements the level-of-detail quadtree math for one content
// item: grid dimensions per level, tile index encoding and tile pixel
// rectangles. An Index is pure and immutable; every process constructs it
// from the same content size and derives identical values independently.
package lod

import (
	"errors"
	"fmt"

	"github.com/eak1mov/go-libwall/tile"
)

var ErrInvalidContent = errors.New("libwall: invalid content size")

// Index holds the derived pyramid geometry for a content item.
//
// Level numbering follows the LOD convention: level 0 is the coarsest
// (single downscaled tile), MaxLevel is full resolution. Dense tile indices
// run the other way: the finest level starts at index 0 and coarser levels
// occupy the higher index ranges.
type Index struct {
	width    int
	height   int
	tileEdge int
	maxLevel uint32
}

// New derives the pyramid geometry for a full-resolution content size and a
// fixed tile edge length.
func New(width, height, tileEdge int) (*Index, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidContent, width, height)
	}
	if tileEdge <= 0 {
		return nil, fmt.Errorf("%w: tile edge %d", ErrInvalidContent, tileEdge)
	}

	maxLevel := uint32(0)
	for max(width, height)>>maxLevel > tileEdge {
		maxLevel++
	}

	return &Index{
		width:    width,
		height:   height,
		tileEdge: tileEdge,
		maxLevel: maxLevel,
	}, nil
}

func (ix *Index) ContentSize() tile.Size { return tile.Size{W: ix.width, H: ix.height} }
func (ix *Index) TileEdge() int          { return ix.tileEdge }
func (ix *Index) MaxLevel() uint32       { return ix.maxLevel }

// LevelSize returns the content resolution rendered at the given level.
func (ix *Index) LevelSize(level uint32) tile.Size {
	shift := ix.maxLevel - level
	return tile.Size{W: ix.width >> shift, H: ix.height >> shift}
}

// GridSize returns the tile grid dimensions at the given level.
func (ix *Index) GridSize(level uint32) (cols, rows int) {
	size := ix.LevelSize(level)
	cols = ceilDiv(size.W, ix.tileEdge)
	rows = ceilDiv(size.H, ix.tileEdge)
	return max(cols, 1), max(rows, 1)
}

// LevelTileCount returns the number of tiles at the given level.
func (ix *Index) LevelTileCount(level uint32) int {
	cols, rows := ix.GridSize(level)
	return cols * rows
}

// TileCount returns the total number of tiles across all levels.
func (ix *Index) TileCount() int {
	count := 0
	for level := uint32(0); level <= ix.maxLevel; level++ {
		count += ix.LevelTileCount(level)
	}
	return count
}

// FirstIndex returns the dense index of the first tile of a level. The
// finest level starts at 0; coarser levels are offset by the cumulative
// tile counts of all finer levels.
func (ix *Index) FirstIndex(level uint32) tile.Index {
	offset := 0
	for l := ix.maxLevel; l > level; l-- {
		offset += ix.LevelTileCount(l)
	}
	return tile.Index(offset)
}

// Encode maps tile coordinates to the dense index. The mapping is a pure
// bijection, stable across processes and runs.
func (ix *Index) Encode(id tile.ID) tile.Index {
	cols, _ := ix.GridSize(id.Level)
	return ix.FirstIndex(id.Level) + tile.Index(int(id.Y)*cols+int(id.X))
}

// Decode is the inverse of Encode.
func (ix *Index) Decode(idx tile.Index) tile.ID {
	for level := ix.maxLevel; ; level-- {
		first := ix.FirstIndex(level)
		if idx >= first && int(idx-first) < ix.LevelTileCount(level) {
			cols, _ := ix.GridSize(level)
			offset := int(idx - first)
			return tile.ID{
				Level: level,
				X:     uint32(offset % cols),
				Y:     uint32(offset / cols),
			}
		}
		if level == 0 {
			return tile.ID{}
		}
	}
}

// TileRect returns the tile's pixel rectangle within the full-resolution
// content. Edge tiles are clamped to the content bounds, so the rectangles
// of one level tile the content exactly with no gaps or overlaps.
func (ix *Index) TileRect(id tile.ID) tile.Rect {
	scale := 1 << (ix.maxLevel - id.Level)
	edge := ix.tileEdge * scale
	x := int(id.X) * edge
	y := int(id.Y) * edge
	return tile.Rect{
		X: x,
		Y: y,
		W: min(edge, ix.width-x),
		H: min(edge, ix.height-y),
	}
}

// LevelForDisplay returns the coarsest level whose rendered resolution
// covers the requested display size, capped at the finest level. It is
// monotonic: a larger display size never yields a coarser level.
func (ix *Index) LevelForDisplay(display tile.Size) uint32 {
	level := ix.maxLevel
	for level > 0 {
		coarser := ix.LevelSize(level - 1)
		if coarser.W < display.W || coarser.H < display.H {
			break
		}
		level--
	}
	return level
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
