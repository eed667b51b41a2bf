package pyramid

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	_ "image/jpeg"

	"github.com/eak1mov/go-libwall/lod"
	"github.com/eak1mov/go-libwall/tile"
	"golang.org/x/image/draw"
)

// DefaultTileEdge is the tile edge length used when no option overrides it.
const DefaultTileEdge = 512

const tileExt = ".png"

type builderConfig struct {
	tileEdge int
	logger   *slog.Logger
	onTile   func(TreePath)
}

type BuildOption func(*builderConfig)

func WithTileEdge(edge int) BuildOption {
	return func(c *builderConfig) { c.tileEdge = edge }
}

func WithBuildLogger(logger *slog.Logger) BuildOption {
	return func(c *builderConfig) { c.logger = logger }
}

// WithTileWritten registers a callback invoked after each tile file is
// written. Callbacks may run concurrently.
func WithTileWritten(fn func(TreePath)) BuildOption {
	return func(c *builderConfig) { c.onTile = fn }
}

// Build decomposes a full-resolution image into a quadtree of tile images
// under outputDir and writes the two metadata records. It runs once per
// content item, outside the render loop.
//
// Each node covers the pixel rectangle lod.Index assigns to its tree path,
// downscaled to at most tileEdge² and written as one file named by the
// path. Subdivision recurses down to the finest LOD level, skipping
// quadtree cells outside the content bounds, so every leaf fits one tile
// and every tile the LOD math can name has a file. Independent subtrees
// are built in parallel.
//
// Any write error aborts the whole build; a partial pyramid may remain and
// is the caller's to clean up.
func Build(sourcePath, outputDir string, opts ...BuildOption) error {
	cfg := builderConfig{
		tileEdge: DefaultTileEdge,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	src, err := loadImage(sourcePath)
	if err != nil {
		return fmt.Errorf("libwall: load source image: %w", err)
	}
	bounds := src.Bounds()

	ix, err := lod.New(bounds.Dx(), bounds.Dy(), cfg.tileEdge)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	cfg.logger.Debug("libwall: pyramid build start",
		"source", sourcePath, "size", fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()),
		"levels", ix.MaxLevel()+1)

	b := &builder{
		cfg:    cfg,
		ix:     ix,
		src:    src,
		origin: bounds.Min,
		outDir: outputDir,
		sem:    make(chan struct{}, runtime.GOMAXPROCS(0)),
	}
	b.wg.Add(1)
	b.node(TreePath{})
	b.wg.Wait()
	if b.err != nil {
		return b.err
	}

	meta := Meta{
		PyramidPath: outputDir,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}
	if err := WriteMeta(outputDir, meta); err != nil {
		return err
	}

	cfg.logger.Debug("libwall: pyramid build done", "dir", outputDir)
	return nil
}

type builder struct {
	cfg    builderConfig
	ix     *lod.Index
	src    image.Image
	origin image.Point
	outDir string

	sem chan struct{}
	wg  sync.WaitGroup

	mu  sync.Mutex
	err error
}

func (b *builder) fail(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
}

func (b *builder) failed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err != nil
}

// node writes one tile and fans out into quadrants. The caller must have
// incremented wg for this node.
func (b *builder) node(path TreePath) {
	defer b.wg.Done()
	if b.failed() {
		return
	}

	id := path.ID()
	region := b.ix.TileRect(id)
	if region.Empty() {
		// Quadtree cell outside the content bounds.
		return
	}

	if err := b.writeTile(path, region); err != nil {
		b.fail(err)
		return
	}

	if id.Level == b.ix.MaxLevel() {
		return
	}

	for q := range uint8(4) {
		child := path.Child(q)
		b.wg.Add(1)
		select {
		case b.sem <- struct{}{}:
			go func() {
				defer func() { <-b.sem }()
				b.node(child)
			}()
		default:
			b.node(child)
		}
	}
}

func (b *builder) writeTile(path TreePath, region tile.Rect) error {
	scale := 1 << (b.ix.MaxLevel() - uint32(len(path)))
	dw := (region.W + scale - 1) / scale
	dh := (region.H + scale - 1) / scale

	srcRect := image.Rect(region.X, region.Y, region.X+region.W, region.Y+region.H).
		Add(b.origin)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), b.src, srcRect, draw.Src, nil)

	filePath := filepath.Join(b.outDir, path.String()+tileExt)
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dst); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if b.cfg.onTile != nil {
		b.cfg.onTile(path)
	}
	return nil
}

func loadImage(filePath string) (image.Image, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
