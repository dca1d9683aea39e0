package pyramid

import (
	"image"

	"github.com/eak1mov/go-multires/tile"
)

// Tile is a rectangle of a level raster together with its address.
type Tile struct {
	Level int
	Row   int
	Col   int
	X     int
	Y     int
	W     int
	H     int
}

// ID returns the address of t used by tile writers.
func (t Tile) ID() tile.ID {
	return tile.ID{Level: uint32(t.Level), Row: uint32(t.Row), Col: uint32(t.Col)}
}

func (t Tile) Rect() image.Rectangle {
	return image.Rect(t.X, t.Y, t.X+t.W, t.Y+t.H)
}

// Grid is the tiling of a single level, tiles in row-major order.
type Grid struct {
	Level int
	Rows  int
	Cols  int
	Tiles []Tile
}

// Tile returns the tile at the given row and column.
func (g Grid) Tile(row, col int) Tile {
	return g.Tiles[row*g.Cols+col]
}

// BuildGrid splits a width x height level raster into tiles of size
// tileSize. Tiles on the last row and column are clipped to the raster.
func BuildGrid(level, width, height, tileSize int) Grid {
	cols := (width + tileSize - 1) / tileSize
	rows := (height + tileSize - 1) / tileSize

	g := Grid{Level: level, Rows: rows, Cols: cols, Tiles: make([]Tile, 0, rows*cols)}
	for r := range rows {
		for c := range cols {
			x, y := c*tileSize, r*tileSize
			g.Tiles = append(g.Tiles, Tile{
				Level: level,
				Row:   r,
				Col:   c,
				X:     x,
				Y:     y,
				W:     min(tileSize, width-x),
				H:     min(tileSize, height-y),
			})
		}
	}
	return g
}

// CountTiles returns the total number of tiles in all levels.
func CountTiles(levels []Level, tileSize int) int {
	n := 0
	for _, l := range levels {
		g := BuildGrid(l.Index, l.Width, l.Height, tileSize)
		n += len(g.Tiles)
	}
	return n
}
