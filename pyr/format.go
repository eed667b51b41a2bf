// Package pyr provides API for reading and writing pyramid archives: a
// single-file container for a built tile pyramid, with a fixed header, a
// compressed tile index and tile payloads clustered for read locality.
package pyr

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/eak1mov/go-libwall/tile"
	"github.com/google/hilbert"
)

var ErrInvalidHeader = errors.New("libwall: invalid archive header")

const (
	archiveMagic uint64 = 0x0172795772506C57 // "WlPrWyr" + version 1

	headerLength = 56
)

// header is the fixed-size little-endian archive header.
type header struct {
	Magic          uint64
	Width          uint32
	Height         uint32
	TileEdge       uint32
	EntryCount     uint32
	IndexOffset    uint64
	IndexLength    uint64
	TileDataOffset uint64
	TileDataLength uint64
}

func serializeHeader(h *header) []byte {
	var buffer bytes.Buffer
	binary.Write(&buffer, binary.LittleEndian, h)
	return buffer.Bytes()
}

func deserializeHeader(data []byte) (*header, error) {
	h := header{}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if h.Magic != archiveMagic {
		return nil, ErrInvalidHeader
	}
	return &h, nil
}

// entry locates one tile's payload within the tile data section.
type entry struct {
	Code   uint64
	Offset uint64
	Length uint32
}

// encodeCode maps tile coordinates to the archive's storage key: the
// Hilbert-curve position within the level, offset by the cumulative cell
// count of all coarser levels. Neighboring tiles get neighboring codes,
// which clusters a viewport's tiles together on disk.
func encodeCode(id tile.ID) uint64 {
	h, _ := hilbert.NewHilbert(1 << id.Level)
	code, _ := h.MapInverse(int(id.X), int(id.Y))

	cellsAbove := (1<<(id.Level*2) - 1) / 3
	return uint64(code + cellsAbove)
}

func decodeCode(code uint64) tile.ID {
	level := (bits.Len64(3*code+1) - 1) / 2
	cellsAbove := (1<<(level*2) - 1) / 3

	h, _ := hilbert.NewHilbert(1 << level)
	x, y, _ := h.Map(int(code) - cellsAbove)

	return tile.ID{Level: uint32(level), X: uint32(x), Y: uint32(y)}
}

// serializeIndex delta-encodes sorted entries with uvarints and gzips the
// result.
func serializeIndex(entries []entry) ([]byte, error) {
	buffer := make([]byte, 0)
	buffer = binary.AppendUvarint(buffer, uint64(len(entries)))

	lastCode := uint64(0)
	for _, e := range entries {
		buffer = binary.AppendUvarint(buffer, e.Code-lastCode)
		lastCode = e.Code
	}
	for _, e := range entries {
		buffer = binary.AppendUvarint(buffer, uint64(e.Length))
	}
	nextOffset := uint64(0)
	for i, e := range entries {
		if i > 0 && e.Offset == nextOffset {
			buffer = binary.AppendUvarint(buffer, 0)
		} else {
			buffer = binary.AppendUvarint(buffer, e.Offset+1)
		}
		nextOffset = e.Offset + uint64(e.Length)
	}

	var compressed bytes.Buffer
	w := gzip.NewWriter(&compressed)
	if _, err := w.Write(buffer); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

func deserializeIndex(data []byte) ([]entry, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}

	byteReader := bytes.NewReader(raw)
	readUvarint := func() uint64 {
		if err != nil {
			return 0
		}
		var value uint64
		value, err = binary.ReadUvarint(byteReader)
		return value
	}

	numEntries := readUvarint()
	entries := make([]entry, numEntries)

	lastCode := uint64(0)
	for i := range numEntries {
		entries[i].Code = lastCode + readUvarint()
		lastCode = entries[i].Code
	}
	for i := range numEntries {
		entries[i].Length = uint32(readUvarint())
	}
	for i := range numEntries {
		value := readUvarint()
		if value == 0 && i > 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = value - 1
		}
	}

	return entries, err
}
