package frame

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/eak1mov/go-libwall/swap"
	"github.com/eak1mov/go-libwall/tile"
)

var (
	ErrOutOfRange = errors.New("libwall: segment index out of range")
	ErrNoFrame    = errors.New("libwall: no frame swapped in yet")
)

// Decoder turns one segment into a pixel buffer in a fixed channel order.
// Implementations are format-specific external collaborators. A Decoder
// instance may hold scratch state and must be either stateless or confined
// to a single goroutine.
type Decoder interface {
	Decode(s Segment) ([]byte, error)
}

// RawDecoder passes uncompressed segment bytes through unchanged and
// rejects compressed segments.
type RawDecoder struct{}

func (RawDecoder) Decode(s Segment) ([]byte, error) {
	if s.Compressed {
		return nil, errors.New("libwall: raw decoder cannot decode compressed segment")
	}
	return s.Data, nil
}

// GzipDecoder gunzips compressed segments and passes raw ones through.
// Stateless, safe to share across workers.
type GzipDecoder struct{}

func (GzipDecoder) Decode(s Segment) ([]byte, error) {
	if !s.Compressed {
		return s.Data, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(s.Data))
	if err != nil {
		return nil, fmt.Errorf("libwall: decode segment: %w", err)
	}
	defer r.Close()
	pixels, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("libwall: decode segment: %w", err)
	}
	return pixels, nil
}

// Ingestor receives frames from a live source and exposes per-segment pixel
// access to the current (cluster-agreed) frame. Ingest never queues: the
// latest frame replaces an unswapped pending one, so every process swaps to
// the newest frame available at the round, identical everywhere.
type Ingestor struct {
	obj     *swap.Object[*Frame]
	decoder Decoder
	logger  *slog.Logger
}

type IngestorOption func(*Ingestor)

func WithDecoder(d Decoder) IngestorOption {
	return func(in *Ingestor) { in.decoder = d }
}

func WithLogger(logger *slog.Logger) IngestorOption {
	return func(in *Ingestor) { in.logger = logger }
}

func NewIngestor(opts ...IngestorOption) *Ingestor {
	in := &Ingestor{
		obj:     swap.NewObject[*Frame](),
		decoder: RawDecoder{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest stores the frame as the latest pending one for the next swap
// round. Safe to call from the source's delivery goroutine.
func (in *Ingestor) Ingest(f *Frame) {
	in.obj.Update(f)
	in.logger.Debug("libwall: frame ingested",
		"content", f.ContentID, "segments", f.SegmentCount())
}

// Sync runs one swap round; see swap.Object.Sync.
func (in *Ingestor) Sync(c *swap.Coordinator) (bool, error) {
	return in.obj.Sync(c)
}

// Current returns the current frame, or nil if none has been swapped in.
func (in *Ingestor) Current() *Frame {
	f, ok := in.obj.Current()
	if !ok {
		return nil
	}
	return f
}

// SegmentPixels decodes segment i of the current frame. Compressed segments
// are decoded per call, not cached: the decoder may hold thread-local
// scratch state, so results must not outlive the call site's tick.
func (in *Ingestor) SegmentPixels(i int) ([]byte, error) {
	f := in.Current()
	if f == nil {
		return nil, ErrNoFrame
	}
	if i < 0 || i >= f.SegmentCount() {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, f.SegmentCount())
	}
	return in.decoder.Decode(f.Segments[i])
}

// VisibleSegments returns the indices of the current frame's segments
// intersecting the viewport (content-normalized). Stands in for the
// visibility resolver when content arrives pre-segmented.
func (in *Ingestor) VisibleSegments(viewport tile.RectF) []int {
	f := in.Current()
	if f == nil {
		return nil
	}
	var visible []int
	for i := range f.Segments {
		if f.SegmentRect(i).Intersects(viewport) {
			visible = append(visible, i)
		}
	}
	return visible
}
