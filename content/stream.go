package content

import (
	"log/slog"

	"github.com/eak1mov/go-libwall/frame"
	"github.com/eak1mov/go-libwall/swap"
	"github.com/eak1mov/go-libwall/tile"
	"github.com/google/uuid"
)

// streamSync drives live frame-segmented content. Segments stand in for
// tiles: segment index is the tile index, there is only one level. The
// cluster agrees on which frame is current through the ingestor's swap
// object; the tick after a swap rebuilds the visible tiles from the new
// frame.
type streamSync struct {
	id     uuid.UUID
	logger *slog.Logger

	ing *frame.Ingestor
	set *tile.Set

	shown   *frame.Frame
	visible map[int]bool
}

func newStreamSync(cfg Config, logger *slog.Logger) *streamSync {
	return &streamSync{
		id:      cfg.ID,
		logger:  logger,
		ing:     cfg.Ingestor,
		set:     tile.NewSet(),
		visible: make(map[int]bool),
	}
}

func (s *streamSync) Update(viewport tile.RectF, display tile.Size) {
	current := s.ing.Current()
	refresh := current != s.shown
	s.shown = current

	if current == nil {
		return
	}
	if refresh {
		// New frame swapped in: every segment's pixels are stale.
		s.set.Clear()
		s.visible = make(map[int]bool)
	}

	next := make(map[int]bool)
	for _, i := range s.ing.VisibleSegments(viewport) {
		next[i] = true
	}

	for i := range s.visible {
		if !next[i] {
			s.set.Remove(tile.Index(i))
		}
	}
	for i := range next {
		if s.visible[i] {
			continue
		}
		t := &tile.Tile{
			Index: tile.Index(i),
			Rect:  current.Segments[i].Rect,
		}
		s.set.Add(t)

		pixels, err := s.ing.SegmentPixels(i)
		if err != nil {
			// Undecodable segments render blank, never fail the tick.
			s.logger.Warn("libwall: segment decode failed", "content", s.id, "segment", i, "error", err)
			continue
		}
		s.set.SetPixels(tile.Index(i), pixels)
	}
	s.visible = next
}

func (s *streamSync) Synchronize(c *swap.Coordinator) error {
	swapped, err := s.ing.Sync(c)
	if err != nil {
		return err
	}
	if swapped {
		s.logger.Debug("libwall: frame swapped", "content", s.id)
	}
	return nil
}

func (s *streamSync) Tiles() []*tile.Tile {
	tiles := s.set.Snapshot()
	s.set.ClearDirty()
	return tiles
}

func (s *streamSync) NeedRedraw() bool {
	return s.set.Dirty()
}

func (s *streamSync) Statistics() Stats {
	return Stats{
		ID:    s.id,
		Tiles: s.set.Len(),
	}
}

func (s *streamSync) Close() {
	s.set.Clear()
}
