// Package sq provides API for reading and writing wall content tiles in a
// sqlite database.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this package.
package sq

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/eak1mov/go-libwall/pyramid"
	"github.com/eak1mov/go-libwall/tile"
)

var ErrMissingMeta = errors.New("libwall: content metadata missing from store")

// Reader implements tile.Reader interface for sqlite tile stores.
type Reader struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// NewReader creates a new Reader for the given store file path.
//
// The returned Reader must be closed after use to release database resources.
func NewReader(filePath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, err
	}

	stmt, err := db.Prepare("SELECT tile_data FROM tiles WHERE level = ? AND tile_x = ? AND tile_y = ?")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Reader{db: db, stmt: stmt}, nil
}

func (r *Reader) Close() error {
	return errors.Join(r.stmt.Close(), r.db.Close())
}

// ReadMeta returns the content metadata recorded at export time.
func (r *Reader) ReadMeta() (pyramid.Meta, int, error) {
	metadata := make(map[string]string)

	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return pyramid.Meta{}, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return pyramid.Meta{}, 0, err
		}
		metadata[name] = value
	}
	if err := rows.Err(); err != nil {
		return pyramid.Meta{}, 0, err
	}

	meta := pyramid.Meta{}
	tileEdge := 0
	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"width", &meta.Width},
		{"height", &meta.Height},
		{"tile_edge", &tileEdge},
	} {
		value, exists := metadata[field.name]
		if !exists {
			return pyramid.Meta{}, 0, fmt.Errorf("%w: %q", ErrMissingMeta, field.name)
		}
		if *field.dst, err = strconv.Atoi(value); err != nil {
			return pyramid.Meta{}, 0, fmt.Errorf("%w: %q: %w", ErrMissingMeta, field.name, err)
		}
	}
	meta.PyramidPath = metadata["pyramid_path"]

	return meta, tileEdge, nil
}

func (r *Reader) ReadTile(id tile.ID) ([]byte, error) {
	var tileData []byte
	if err := r.stmt.QueryRow(id.Level, id.X, id.Y).Scan(&tileData); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return make([]byte, 0), nil
		}
		return nil, err
	}

	return tileData, nil
}

func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	rows, err := r.db.Query("SELECT level, tile_x, tile_y, tile_data FROM tiles")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id tile.ID
		var tileData []byte

		if err := rows.Scan(&id.Level, &id.X, &id.Y, &tileData); err != nil {
			return err
		}

		if err := visitor(id, tileData); err != nil {
			return err
		}
	}

	return rows.Err()
}
