// Package frame handles externally produced, pre-segmented content: frames
// arriving from live sources as independent rectangular segments. Segments
// are not LOD-leveled; a frame is one flat level and the segment index
// stands in for the tile index.
package frame

import (
	"cmp"
	"slices"

	"github.com/eak1mov/go-libwall/tile"
	"github.com/google/uuid"
)

// Segment is an independently delivered rectangular chunk of a frame. Its
// rect is in frame pixel coordinates. Data holds the segment bytes, still
// compressed when Compressed is set.
type Segment struct {
	Rect       tile.Rect
	Compressed bool
	Data       []byte
}

// Frame is one unit of externally produced content. Frames are immutable
// once constructed; a newer frame of the same content supersedes them,
// never mutates them in place.
type Frame struct {
	ContentID uuid.UUID
	Segments  []Segment

	// Extent is the frame size, the union of all segment rects. Computed
	// once on construction; exported so it survives serialization through
	// a swap round.
	Extent tile.Size
}

// New builds a frame from segments, sorting them into canonical row-major
// order by origin so that segment indices are stable regardless of the
// order the source delivered them in.
func New(contentID uuid.UUID, segments []Segment) *Frame {
	sorted := slices.Clone(segments)
	slices.SortFunc(sorted, func(a, b Segment) int {
		if c := cmp.Compare(a.Rect.Y, b.Rect.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.Rect.X, b.Rect.X)
	})

	extent := tile.Size{}
	for _, s := range sorted {
		extent.W = max(extent.W, s.Rect.X+s.Rect.W)
		extent.H = max(extent.H, s.Rect.Y+s.Rect.H)
	}

	return &Frame{
		ContentID: contentID,
		Segments:  sorted,
		Extent:    extent,
	}
}

// Size returns the frame extent.
func (f *Frame) Size() tile.Size {
	return f.Extent
}

func (f *Frame) SegmentCount() int { return len(f.Segments) }

// SegmentRect returns the rect of segment i in content-normalized
// coordinates.
func (f *Frame) SegmentRect(i int) tile.RectF {
	r := f.Segments[i].Rect
	size := f.Size()
	if size.W == 0 || size.H == 0 {
		return tile.RectF{}
	}
	w := float64(size.W)
	h := float64(size.H)
	return tile.RectF{
		X: float64(r.X) / w,
		Y: float64(r.Y) / h,
		W: float64(r.W) / w,
		H: float64(r.H) / h,
	}
}
