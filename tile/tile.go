// Package tile provides common tile interfaces and types.
package tile

import "fmt"

// ID addresses a single tile of a multires pyramid.
// Level is 1-based (1 is the coarsest level), Row and Col are 0-based
// and count from the top-left corner of the level.
type ID struct {
	Level uint32
	Row   uint32
	Col   uint32
}

func (t ID) Valid() bool {
	return t.Level >= 1
}

func (t ID) String() string {
	return fmt.Sprintf("%d/%d_%d", t.Level, t.Row, t.Col)
}

// Writer defines an interface for writing tiles to a tileset.
//
// Implementations in this module are safe for concurrent use of WriteTile.
type Writer interface {
	// WriteTile writes a single encoded tile to the tileset.
	WriteTile(tileID ID, tileData []byte) error

	// Finalize completes the writing process: flushes buffers, writes header and indices.
	// It must be called before closing the Writer.
	Finalize() error
}

type Reader interface {
	// ReadTile reads a single tile from the tileset.
	// If the tile does not exist, it returns an empty slice with no error.
	ReadTile(tileID ID) ([]byte, error)
}

type Visitor interface {
	// VisitTiles visits all tiles in the tileset, calling the visitor for each.
	// Order of tiles is implementation-defined.
	VisitTiles(visitor func(ID, []byte) error) error
}
