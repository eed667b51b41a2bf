package pyramid

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/eak1mov/go-libwall/tile"
)

// Reader implements tile.Reader for a built pyramid folder.
type Reader struct {
	meta Meta
	dir  string
}

// NewReader opens a pyramid via either metadata record (the sidecar beside
// the folder or the copy inside it).
func NewReader(metaPath string) (*Reader, error) {
	meta, err := ReadMeta(metaPath)
	if err != nil {
		return nil, err
	}
	return &Reader{meta: meta, dir: meta.PyramidPath}, nil
}

func (r *Reader) Meta() Meta { return r.meta }

// ReadTile reads the encoded tile image for the given coordinates.
// A tile without a file (outside the content bounds, or never built)
// yields an empty slice with no error.
func (r *Reader) ReadTile(id tile.ID) ([]byte, error) {
	filePath := filepath.Join(r.dir, PathForID(id).String()+tileExt)
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return make([]byte, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// VisitTiles visits every tile file in the pyramid folder.
func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, tileExt) {
			continue
		}
		path, err := ParsePath(strings.TrimSuffix(name, tileExt))
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			return err
		}
		if err := visitor(path.ID(), data); err != nil {
			return err
		}
	}
	return nil
}
