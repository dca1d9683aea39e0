package pyramid

import (
	"errors"
	"fmt"
)

var ErrInvalidConfiguration = errors.New("multires: invalid configuration")

// TileError reports a failure to produce a single tile.
type TileError struct {
	Level int
	Row   int
	Col   int
	Op    string // "crop", "encode" or "write"
	Err   error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("multires: %s tile %d/%d_%d: %v", e.Op, e.Level, e.Row, e.Col, e.Err)
}

func (e *TileError) Unwrap() error { return e.Err }

// LevelError reports a failure to derive the raster of a level.
type LevelError struct {
	Level  int
	Width  int
	Height int
	Err    error
}

func (e *LevelError) Error() string {
	return fmt.Sprintf("multires: resample level %d to %dx%d: %v", e.Level, e.Width, e.Height, e.Err)
}

func (e *LevelError) Unwrap() error { return e.Err }
