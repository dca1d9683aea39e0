package spec

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/eak1mov/go-multires/tile"
	"github.com/google/hilbert"
)

// MaxZoom is the deepest zoom level whose tile ids fit into uint64.
const MaxZoom = 31

var ErrTileOutOfRange = errors.New("multires: tile out of pmtiles range")

// Pyramid tiles are mapped to PMTiles z/x/y as z = level, x = col, y = row.
// A level never has more than 2^level rows or columns.

// EncodeTileID returns the PMTiles v3 tile id (Hilbert order within a zoom,
// zooms concatenated) of the given tile.
func EncodeTileID(tileID tile.ID) (uint64, error) {
	z := tileID.Level
	if z > MaxZoom || tileID.Col >= 1<<z || tileID.Row >= 1<<z {
		return 0, fmt.Errorf("%w: %v", ErrTileOutOfRange, tileID)
	}
	h, err := hilbert.NewHilbert(1 << z)
	if err != nil {
		return 0, err
	}
	code, err := h.MapInverse(int(tileID.Col), int(tileID.Row))
	if err != nil {
		return 0, err
	}
	return zoomOffset(int(z)) + uint64(code), nil
}

// DecodeTileID is the inverse of EncodeTileID.
func DecodeTileID(tileCode uint64) tile.ID {
	z := (bits.Len64(3*tileCode+1) - 1) / 2

	h, _ := hilbert.NewHilbert(1 << z)
	x, y, _ := h.Map(int(tileCode - zoomOffset(z)))

	return tile.ID{Level: uint32(z), Row: uint32(y), Col: uint32(x)}
}

// zoomOffset returns the number of tiles on all zooms above z.
func zoomOffset(z int) uint64 {
	return (1<<(2*z) - 1) / 3
}
