package tile

import (
	"cmp"
	"slices"
	"sync"
)

// Set is the registry of currently-active tiles for one content item in one
// process. The owning synchronizer mutates it from the render thread; other
// threads may only take snapshots.
type Set struct {
	mu        sync.Mutex
	tiles     map[Index]*Tile
	observers []Observer
	dirty     bool
}

func NewSet() *Set {
	return &Set{tiles: make(map[Index]*Tile)}
}

// Attach registers an observer for tile lifecycle notifications.
// Callbacks run synchronously on the mutating thread.
func (s *Set) Attach(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

func (s *Set) Add(t *Tile) {
	s.mu.Lock()
	s.tiles[t.Index] = t
	s.dirty = true
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o.OnTileAdded(t)
	}
}

// Remove deletes a tile by index and returns it, or nil if absent.
func (s *Set) Remove(idx Index) *Tile {
	s.mu.Lock()
	t, ok := s.tiles[idx]
	if ok {
		delete(s.tiles, idx)
		s.dirty = true
	}
	observers := s.observers
	s.mu.Unlock()

	if !ok {
		return nil
	}
	for _, o := range observers {
		o.OnTileRemoved(t)
	}
	return t
}

func (s *Set) Get(idx Index) (*Tile, bool) {
	s.mu.Lock()
	t, ok := s.tiles[idx]
	s.mu.Unlock()
	return t, ok
}

// SetPixels stores a completed pixel buffer on a tile and marks it visible.
// It is a no-op if the tile has left the set meanwhile (late load result).
func (s *Set) SetPixels(idx Index, pixels []byte) {
	s.mu.Lock()
	t, ok := s.tiles[idx]
	if ok {
		t.Pixels = pixels
		t.Visible = true
		s.dirty = true
	}
	observers := s.observers
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, o := range observers {
		o.OnTileUpdated(t)
	}
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tiles)
}

// Snapshot returns the current tiles ordered by index.
func (s *Set) Snapshot() []*Tile {
	s.mu.Lock()
	tiles := make([]*Tile, 0, len(s.tiles))
	for _, t := range s.tiles {
		tiles = append(tiles, t)
	}
	s.mu.Unlock()

	slices.SortFunc(tiles, func(a, b *Tile) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return tiles
}

// Dirty reports whether the set changed since the last ClearDirty.
func (s *Set) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Set) ClearDirty() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// Clear removes every tile, notifying observers for each.
func (s *Set) Clear() {
	s.mu.Lock()
	tiles := make([]*Tile, 0, len(s.tiles))
	for _, t := range s.tiles {
		tiles = append(tiles, t)
	}
	s.tiles = make(map[Index]*Tile)
	s.dirty = len(tiles) > 0 || s.dirty
	observers := s.observers
	s.mu.Unlock()

	for _, t := range tiles {
		for _, o := range observers {
			o.OnTileRemoved(t)
		}
	}
}
