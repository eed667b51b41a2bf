// Package tile provides the common tile types and interfaces shared by the
// pyramid storage formats and the runtime synchronizers.
package tile

// ID represents tile coordinates within the level-of-detail pyramid.
// Level 0 is the coarsest level (a single tile covering the whole content),
// each finer level doubles the grid resolution.
type ID struct {
	Level uint32
	X     uint32
	Y     uint32
}

func (t ID) Valid() bool {
	return t.Level < 32 && t.X < (1<<t.Level) && t.Y < (1<<t.Level)
}

// Index is the dense per-content tile index. The finest level occupies
// indices starting at 0, coarser levels follow. The mapping to ID is a pure
// bijection computed by lod.Index; every process derives identical values.
type Index uint32

// Rect is an axis-aligned rectangle in full-resolution pixel coordinates.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// RectF is an axis-aligned rectangle in content-normalized coordinates,
// where (0,0)-(1,1) spans the whole content.
type RectF struct {
	X, Y, W, H float64
}

func (r RectF) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r RectF) Intersects(o RectF) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Size is a display or content size in pixels.
type Size struct {
	W, H int
}

// Tile is the runtime entity tracked by a Set. It is owned exclusively by
// the synchronizer that created it; renderers hold a non-owning reference
// for the duration of one draw.
type Tile struct {
	Index   Index
	ID      ID
	Rect    Rect
	Visible bool

	// Pixels is the decoded pixel buffer, nil until a load completes.
	// Tiles without pixel data render as blank.
	Pixels []byte
}

// Reader defines an interface for reading tiles from a pyramid store.
type Reader interface {
	// ReadTile reads a single tile. If the tile does not exist,
	// it returns an empty slice with no error.
	ReadTile(id ID) ([]byte, error)
}

// Writer defines an interface for writing tiles to a pyramid store.
type Writer interface {
	// WriteTile writes a single tile to the store.
	WriteTile(id ID, data []byte) error

	// Finalize completes the writing process: flushes buffers, writes
	// headers and indices. It must be called before closing the Writer.
	Finalize() error
}

type Visitor interface {
	// VisitTiles visits all tiles in the store, calling the visitor for each.
	// Order of tiles, upfront cpu and memory consumption are implementation-defined.
	VisitTiles(visitor func(ID, []byte) error) error
}

// Observer receives tile lifecycle notifications from a Set. This is the
// surface a renderer attaches to; callbacks run on the thread mutating the
// Set and must not block.
type Observer interface {
	OnTileAdded(t *Tile)
	OnTileRemoved(t *Tile)
	OnTileUpdated(t *Tile)
}
