// Package content provides the per-content synchronizer façade: one
// Synchronizer per content item per window, composing visibility
// resolution, tile loading and cluster swap agreement into the update
// cycle the render thread drives once per tick.
package content

import (
	"context"
	"errors"
	"log/slog"

	"github.com/eak1mov/go-libwall/frame"
	"github.com/eak1mov/go-libwall/loader"
	"github.com/eak1mov/go-libwall/lod"
	"github.com/eak1mov/go-libwall/swap"
	"github.com/eak1mov/go-libwall/tile"
	"github.com/google/uuid"
)

var ErrInvalidConfig = errors.New("libwall: invalid content config")

// Type selects the synchronizer variant for a content item.
type Type int

const (
	// TypePyramid is static pre-tiled content read from a pyramid store.
	TypePyramid Type = iota + 1
	// TypeStream is live frame-segmented content fed through an Ingestor.
	TypeStream
)

// Config describes one content item. Type selects the variant; the
// remaining fields are variant-specific collaborators.
type Config struct {
	Type Type
	ID   uuid.UUID

	// Pyramid content: the level-of-detail index and a per-worker tile
	// source factory (see loader.New).
	Index     *lod.Index
	NewSource func() loader.Source

	// Stream content: the frame ingestor the live source delivers into.
	Ingestor *frame.Ingestor
}

// Stats is a diagnostic snapshot; none of it is load-bearing.
type Stats struct {
	ID           uuid.UUID
	Level        uint32
	Tiles        int
	PendingLoads int
	LoadFailures uint64
}

// Synchronizer is the four-operation per-tick contract every content
// variant implements. The render thread owns it: Update then Synchronize,
// in that order, never interleaved within a tick.
type Synchronizer interface {
	// Update recomputes the visible set for the viewport and applies the
	// delta: removed tiles cancel their in-flight loads, added tiles issue
	// load requests.
	Update(viewport tile.RectF, display tile.Size)

	// Synchronize runs one cluster swap round, strictly after Update.
	Synchronize(c *swap.Coordinator) error

	// Tiles returns the current tile snapshot for drawing and resets the
	// redraw flag.
	Tiles() []*tile.Tile

	// NeedRedraw reports whether tiles changed since the last Tiles call.
	NeedRedraw() bool

	Statistics() Stats

	// Close tears the synchronizer down, blocking until all outstanding
	// work has observably finished.
	Close()
}

type Option func(*options)

type options struct {
	logger *slog.Logger
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds the synchronizer variant for cfg.Type.
func New(cfg Config, opts ...Option) (Synchronizer, error) {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Type {
	case TypePyramid:
		if cfg.Index == nil || cfg.NewSource == nil {
			return nil, errors.Join(ErrInvalidConfig,
				errors.New("libwall: pyramid content needs Index and NewSource"))
		}
		return newPyramidSync(cfg, o.logger), nil
	case TypeStream:
		if cfg.Ingestor == nil {
			return nil, errors.Join(ErrInvalidConfig,
				errors.New("libwall: stream content needs Ingestor"))
		}
		return newStreamSync(cfg, o.logger), nil
	default:
		return nil, ErrInvalidConfig
	}
}

// ReaderSource adapts a tile.Reader into a loader source factory. The
// reader must be safe for concurrent ReadTile calls; the storage readers in
// this module all are.
func ReaderSource(r tile.Reader) func() loader.Source {
	return func() loader.Source {
		return loader.SourceFunc(func(_ context.Context, id tile.ID) ([]byte, error) {
			return r.ReadTile(id)
		})
	}
}
