package sq

import (
	"database/sql"
	"errors"
	"log/slog"
	"strconv"

	"github.com/eak1mov/go-libwall/pyramid"
	"github.com/eak1mov/go-libwall/tile"
)

// Writer implements tile.Writer interface for sqlite tile stores.
type Writer struct {
	db     *sql.DB
	stmt   *sql.Stmt
	logger *slog.Logger
}

type writerConfig struct {
	Logger *slog.Logger
}

type WriterOption func(*writerConfig)

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates a new Writer for writing to a sqlite tile store.
// It applies given options and initializes the database schema.
func NewWriter(filePath string, meta pyramid.Meta, tileEdge int, opts ...WriterOption) (*Writer, error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	var err error
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	_, err = db.Exec(`
		CREATE TABLE metadata (name TEXT, value TEXT);
		CREATE TABLE tiles (
			level INTEGER,
			tile_x INTEGER,
			tile_y INTEGER,
			tile_data BLOB,
			PRIMARY KEY (level, tile_x, tile_y)
		);
	`)
	if err != nil {
		return nil, err
	}

	for k, v := range map[string]string{
		"width":        strconv.Itoa(meta.Width),
		"height":       strconv.Itoa(meta.Height),
		"tile_edge":    strconv.Itoa(tileEdge),
		"pyramid_path": meta.PyramidPath,
	} {
		_, err = db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", k, v)
		if err != nil {
			return nil, err
		}
	}

	stmt, err := db.Prepare("INSERT INTO tiles (level, tile_x, tile_y, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}

	return &Writer{db, stmt, config.Logger}, nil
}

func (w *Writer) Close() error {
	return errors.Join(w.stmt.Close(), w.db.Close())
}

// Finalize completes the write. The store's index is the tiles table's
// primary key, maintained as rows are inserted, so there is nothing left
// to build.
func (w *Writer) Finalize() error {
	w.logger.Debug("libwall: sqlite store done")
	return nil
}

func (w *Writer) WriteTile(id tile.ID, tileData []byte) error {
	_, err := w.stmt.Exec(id.Level, id.X, id.Y, tileData)
	return err
}
