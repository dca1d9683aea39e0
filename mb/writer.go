package mb

import (
	"database/sql"
	"errors"
	"log/slog"
	"sync"

	"github.com/eak1mov/go-multires/tile"
)

// Writer implements tile.Writer interface for MBTiles format.
// WriteTile is safe for concurrent use; all tiles are written in a single
// transaction committed by Finalize.
type Writer struct {
	mu     sync.Mutex
	db     *sql.DB
	tx     *sql.Tx
	stmt   *sql.Stmt
	logger *slog.Logger
}

type writerConfig struct {
	Metadata map[string]string
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

func WithMetadata(metadata map[string]string) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates a new Writer for writing to a MBTiles file.
// It applies given options and initializes database for writing tiles.
//
// The returned Writer must be closed after use to release database resources.
func NewWriter(filePath string, opts ...WriterOption) (*Writer, error) {
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
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE metadata (name TEXT, value TEXT);
		CREATE TABLE tiles (
			zoom_level INTEGER,
			tile_column INTEGER,
			tile_row INTEGER,
			tile_data BLOB
		);
	`)
	if err != nil {
		return nil, err
	}

	for k, v := range config.Metadata {
		_, err = db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", k, v)
		if err != nil {
			return nil, err
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	stmt, err := tx.Prepare("INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	return &Writer{db: db, tx: tx, stmt: stmt, logger: config.Logger}, nil
}

// Close releases database resources. Tiles written after the last
// Finalize are discarded.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	if w.tx != nil {
		errs = append(errs, w.stmt.Close(), w.tx.Rollback())
		w.tx = nil
	}
	return errors.Join(append(errs, w.db.Close())...)
}

// WriteTile stores the tile with zoom_level = level. Rows count from the
// top of the level, so no TMS flip is applied.
func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tx == nil {
		return errWriterFinalized
	}
	_, err := w.stmt.Exec(tileID.Level, tileID.Col, tileID.Row, tileData)
	return err
}

var errWriterFinalized = errors.New("multires: mbtiles writer already finalized")

func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tx == nil {
		return errWriterFinalized
	}

	w.logger.Debug("multires: creating index")
	_, err := w.tx.Exec("CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)")
	if err != nil {
		return err
	}
	if err := errors.Join(w.stmt.Close(), w.tx.Commit()); err != nil {
		return err
	}
	w.tx = nil

	w.logger.Debug("multires: done!")
	return nil
}
