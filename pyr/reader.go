package pyr

import (
	"os"
	"sort"

	"github.com/eak1mov/go-libwall/pyramid"
	"github.com/eak1mov/go-libwall/tile"
)

// Reader reads tiles from a pyramid archive. The index is loaded once at
// open; tile reads are a binary search plus one ReadAt.
type Reader struct {
	file    *os.File
	hdr     *header
	entries []entry
}

func NewReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}

	headerData := make([]byte, headerLength)
	if _, err := file.ReadAt(headerData, 0); err != nil {
		file.Close()
		return nil, err
	}
	hdr, err := deserializeHeader(headerData)
	if err != nil {
		file.Close()
		return nil, err
	}

	indexData := make([]byte, hdr.IndexLength)
	if _, err := file.ReadAt(indexData, int64(hdr.IndexOffset)); err != nil {
		file.Close()
		return nil, err
	}
	entries, err := deserializeIndex(indexData)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Reader{file: file, hdr: hdr, entries: entries}, nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Meta returns the content metadata stored in the archive header. The
// pyramid path is the archive file itself.
func (r *Reader) Meta() pyramid.Meta {
	return pyramid.Meta{
		PyramidPath: r.file.Name(),
		Width:       int(r.hdr.Width),
		Height:      int(r.hdr.Height),
	}
}

func (r *Reader) TileEdge() int { return int(r.hdr.TileEdge) }

// ReadTile reads a single tile. A tile absent from the archive yields an
// empty slice with no error.
func (r *Reader) ReadTile(id tile.ID) ([]byte, error) {
	code := encodeCode(id)
	i := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].Code >= code
	})
	if i == len(r.entries) || r.entries[i].Code != code {
		return make([]byte, 0), nil
	}
	return r.readEntry(r.entries[i])
}

func (r *Reader) readEntry(e entry) ([]byte, error) {
	data := make([]byte, e.Length)
	if _, err := r.file.ReadAt(data, int64(r.hdr.TileDataOffset+e.Offset)); err != nil {
		return nil, err
	}
	return data, nil
}

// VisitTiles visits all tiles in storage-code order.
func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	for _, e := range r.entries {
		data, err := r.readEntry(e)
		if err != nil {
			return err
		}
		if err := visitor(decodeCode(e.Code), data); err != nil {
			return err
		}
	}
	return nil
}
