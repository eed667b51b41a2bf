package pyr

import (
	"bufio"
	"cmp"
	"crypto/md5"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/eak1mov/go-libwall/pyramid"
	"github.com/eak1mov/go-libwall/tile"
)

// Writer writes a pyramid archive. Tiles may arrive in any order; Finalize
// sorts the index by storage code. Identical tile payloads are stored once.
type Writer struct {
	logger *slog.Logger
	file   *os.File
	hdr    header

	tileWriter *bufio.Writer
	tileOffset uint64

	entries []entry
	digests map[[16]byte]uint32 // payload hash -> entry index
}

type WriterOption func(*Writer)

func WithLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = logger }
}

func NewWriter(filePath string, meta pyramid.Meta, tileEdge int, opts ...WriterOption) (*Writer, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(headerLength, io.SeekStart); err != nil {
		file.Close()
		return nil, err
	}

	w := &Writer{
		logger: slog.New(slog.DiscardHandler),
		file:   file,
		hdr: header{
			Magic:          archiveMagic,
			Width:          uint32(meta.Width),
			Height:         uint32(meta.Height),
			TileEdge:       uint32(tileEdge),
			TileDataOffset: headerLength,
		},
		tileWriter: bufio.NewWriter(file),
		digests:    make(map[[16]byte]uint32),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Writer) WriteTile(id tile.ID, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	digest := md5.Sum(data)
	if i, exists := w.digests[digest]; exists {
		w.entries = append(w.entries, entry{
			Code:   encodeCode(id),
			Offset: w.entries[i].Offset,
			Length: w.entries[i].Length,
		})
		return nil
	}

	if _, err := w.tileWriter.Write(data); err != nil {
		return err
	}
	w.digests[digest] = uint32(len(w.entries))
	w.entries = append(w.entries, entry{
		Code:   encodeCode(id),
		Offset: w.tileOffset,
		Length: uint32(len(data)),
	})
	w.tileOffset += uint64(len(data))
	return nil
}

func (w *Writer) Finalize() error {
	if w.tileWriter == nil {
		panic("libwall: archive finalize called twice")
	}

	w.logger.Debug("libwall: archive flush tiles", "entries", len(w.entries))
	if err := w.tileWriter.Flush(); err != nil {
		return err
	}
	w.hdr.TileDataLength = w.tileOffset
	w.tileWriter = nil

	slices.SortFunc(w.entries, func(a, b entry) int {
		return cmp.Compare(a.Code, b.Code)
	})

	indexData, err := serializeIndex(w.entries)
	if err != nil {
		return err
	}

	indexOffset, err := w.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := w.file.Write(indexData); err != nil {
		return err
	}
	w.hdr.IndexOffset = uint64(indexOffset)
	w.hdr.IndexLength = uint64(len(indexData))
	w.hdr.EntryCount = uint32(len(w.entries))

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.file.Write(serializeHeader(&w.hdr)); err != nil {
		return err
	}

	w.logger.Debug("libwall: archive done")
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil
	return nil
}

func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
