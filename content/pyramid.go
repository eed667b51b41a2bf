package content

import (
	"log/slog"

	"github.com/eak1mov/go-libwall/loader"
	"github.com/eak1mov/go-libwall/lod"
	"github.com/eak1mov/go-libwall/swap"
	"github.com/eak1mov/go-libwall/tile"
	"github.com/eak1mov/go-libwall/view"
	"github.com/google/uuid"
)

// pyramidSync drives pre-tiled pyramid content. The swapped value is a
// revision counter bumped on every local tile change; agreeing on it keeps
// the cluster presenting the same generation of the content.
type pyramidSync struct {
	id     uuid.UUID
	logger *slog.Logger

	ix  *lod.Index
	res *view.Resolver
	set *tile.Set
	ld  *loader.Loader
	obj *swap.Object[uint64]

	revision uint64
}

func newPyramidSync(cfg Config, logger *slog.Logger) *pyramidSync {
	return &pyramidSync{
		id:     cfg.ID,
		logger: logger,
		ix:     cfg.Index,
		res:    view.NewResolver(cfg.Index),
		set:    tile.NewSet(),
		ld:     loader.New(cfg.NewSource, loader.WithLogger(logger)),
		obj:    swap.NewObject[uint64](),
	}
}

func (s *pyramidSync) Update(viewport tile.RectF, display tile.Size) {
	changed := false

	// Completions from previous ticks first: a load finishing for a tile
	// that meanwhile left the set is dropped by SetPixels.
	for _, res := range s.ld.Drain() {
		if res.Err != nil {
			// Already logged by the loader; the tile renders blank.
			continue
		}
		s.set.SetPixels(res.Index, res.Pixels)
		changed = true
	}

	level, added, removed := s.res.Update(viewport, display)

	for _, idx := range removed {
		s.ld.Cancel(idx)
		s.set.Remove(idx)
		changed = true
	}
	for _, idx := range added {
		id := s.ix.Decode(idx)
		s.set.Add(&tile.Tile{Index: idx, ID: id, Rect: s.ix.TileRect(id)})
		if err := s.ld.Request(idx, id); err != nil {
			s.logger.Warn("libwall: tile request failed", "content", s.id, "tile", id, "error", err)
		}
		changed = true
	}

	if changed {
		s.revision++
		s.obj.Update(s.revision)
		s.logger.Debug("libwall: content updated",
			"content", s.id, "level", level, "added", len(added), "removed", len(removed))
	}
}

func (s *pyramidSync) Synchronize(c *swap.Coordinator) error {
	_, err := s.obj.Sync(c)
	return err
}

func (s *pyramidSync) Tiles() []*tile.Tile {
	tiles := s.set.Snapshot()
	s.set.ClearDirty()
	return tiles
}

func (s *pyramidSync) NeedRedraw() bool {
	return s.set.Dirty()
}

func (s *pyramidSync) Statistics() Stats {
	return Stats{
		ID:           s.id,
		Level:        s.res.Level(),
		Tiles:        s.set.Len(),
		PendingLoads: s.ld.Pending(),
		LoadFailures: s.ld.Failures(),
	}
}

func (s *pyramidSync) Close() {
	s.ld.CancelAll()
	s.ld.Close()
	s.set.Clear()
	s.res.Reset()
}
