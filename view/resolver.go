// Package view selects which tiles of a content pyramid are visible for a
// given viewport and display size, and reports the change versus the
// previous selection.
package view

import (
	"math"
	"slices"

	"github.com/eak1mov/go-libwall/lod"
	"github.com/eak1mov/go-libwall/tile"
)

// Resolver computes the visible tile set per update call. It carries only
// the previous visible set and level between calls; the delta it emits, not
// the raw set, drives downstream tile mutation, which bounds per-frame work
// to the actual change.
//
// Not safe for concurrent use; the render thread owns it.
type Resolver struct {
	ix *lod.Index

	primed       bool
	lastViewport tile.RectF
	lastDisplay  tile.Size
	lastLevel    uint32
	visible      map[tile.Index]struct{}
}

func NewResolver(ix *lod.Index) *Resolver {
	return &Resolver{
		ix:      ix,
		visible: make(map[tile.Index]struct{}),
	}
}

// Update recomputes the visible set for a viewport (content-normalized) and
// a target display size. Calling it again with identical arguments is a
// no-op that returns empty deltas. An empty viewport empties the visible
// set, reporting all previous tiles as removed.
//
// The returned added and removed slices are disjoint and sorted.
func (r *Resolver) Update(viewport tile.RectF, display tile.Size) (level uint32, added, removed []tile.Index) {
	if r.primed && viewport == r.lastViewport && display == r.lastDisplay {
		return r.lastLevel, nil, nil
	}

	level = r.ix.LevelForDisplay(display)
	next := r.enumerate(viewport, level)

	for idx := range next {
		if _, ok := r.visible[idx]; !ok {
			added = append(added, idx)
		}
	}
	for idx := range r.visible {
		if _, ok := next[idx]; !ok {
			removed = append(removed, idx)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)

	r.primed = true
	r.lastViewport = viewport
	r.lastDisplay = display
	r.lastLevel = level
	r.visible = next
	return level, added, removed
}

// Level returns the level selected by the last Update.
func (r *Resolver) Level() uint32 { return r.lastLevel }

// Visible returns the current visible set, sorted.
func (r *Resolver) Visible() []tile.Index {
	indices := make([]tile.Index, 0, len(r.visible))
	for idx := range r.visible {
		indices = append(indices, idx)
	}
	slices.Sort(indices)
	return indices
}

// Reset forgets the previous selection so the next Update reports every
// visible tile as added.
func (r *Resolver) Reset() {
	r.primed = false
	r.visible = make(map[tile.Index]struct{})
}

func (r *Resolver) enumerate(viewport tile.RectF, level uint32) map[tile.Index]struct{} {
	next := make(map[tile.Index]struct{})
	content := tile.RectF{X: 0, Y: 0, W: 1, H: 1}
	if !viewport.Intersects(content) {
		return next
	}

	// Map through level pixels, not grid cells: with partial edge tiles
	// the grid spans more pixels than the content, so scaling by cols/rows
	// would misplace tile boundaries.
	size := r.ix.LevelSize(level)
	edge := float64(r.ix.TileEdge())
	cols, rows := r.ix.GridSize(level)
	x0 := clamp(int(math.Floor(viewport.X*float64(size.W)/edge)), 0, cols-1)
	y0 := clamp(int(math.Floor(viewport.Y*float64(size.H)/edge)), 0, rows-1)
	x1 := clamp(int(math.Ceil((viewport.X+viewport.W)*float64(size.W)/edge))-1, 0, cols-1)
	y1 := clamp(int(math.Ceil((viewport.Y+viewport.H)*float64(size.H)/edge))-1, 0, rows-1)

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			id := tile.ID{Level: level, X: uint32(x), Y: uint32(y)}
			next[r.ix.Encode(id)] = struct{}{}
		}
	}
	return next
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
