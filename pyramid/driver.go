package pyramid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/eak1mov/go-multires/tile"
	"golang.org/x/sync/errgroup"
)

// DefaultTileSize is the nominal tile edge length used when none is given.
const DefaultTileSize = 512

// Raster is a decoded image the driver can scale and cut into tiles.
type Raster interface {
	Size() (width, height int)
	Resample(width, height int) (Raster, error)
	Crop(x, y, width, height int) (Raster, error)
}

// Encoder turns a tile raster into the bytes stored by a tile.Writer.
type Encoder interface {
	Encode(r Raster) ([]byte, error)
}

var errDriverUsed = errors.New("multires: driver already run")

// CheckConfig validates the tile size and worker count of a run.
func CheckConfig(tileSize, workers int) error {
	if tileSize < 1 {
		return fmt.Errorf("%w: tile size %d", ErrInvalidConfiguration, tileSize)
	}
	if workers < 1 {
		return fmt.Errorf("%w: %d workers", ErrInvalidConfiguration, workers)
	}
	return nil
}

type State int

const (
	StatePlanning State = iota
	StateLevelLoop
	StateTilingLevel
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePlanning:
		return "planning"
	case StateLevelLoop:
		return "level-loop"
	case StateTilingLevel:
		return "tiling-level"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type driverConfig struct {
	TileSize int
	Workers  int
	Policy   Policy
	Logger   *slog.Logger
	Progress func(Tile)
}

type DriverOption func(*driverConfig)

func WithTileSize(tileSize int) DriverOption {
	return func(c *driverConfig) { c.TileSize = tileSize }
}

// WithWorkers limits the number of tiles processed concurrently.
func WithWorkers(workers int) DriverOption {
	return func(c *driverConfig) { c.Workers = workers }
}

func WithPolicy(policy Policy) DriverOption {
	return func(c *driverConfig) { c.Policy = policy }
}

func WithLogger(logger *slog.Logger) DriverOption {
	return func(c *driverConfig) { c.Logger = logger }
}

// WithProgress registers a callback invoked after each tile is written.
// It is called from worker goroutines and must be safe for concurrent use.
func WithProgress(progress func(Tile)) DriverOption {
	return func(c *driverConfig) { c.Progress = progress }
}

// Driver renders every level of a pyramid and hands the encoded tiles
// to a tile.Writer.
type Driver struct {
	src    Raster
	enc    Encoder
	writer tile.Writer
	config driverConfig

	mu     sync.Mutex
	state  State
	level  int
	levels []Level
}

// NewDriver creates a Driver for the given source raster.
// The writer is not finalized by the driver.
func NewDriver(src Raster, enc Encoder, writer tile.Writer, opts ...DriverOption) *Driver {
	config := driverConfig{
		TileSize: DefaultTileSize,
		Workers:  runtime.NumCPU(),
		Policy:   DefaultPolicy,
		Logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Driver{src: src, enc: enc, writer: writer, config: config}
}

// State returns the current state and the level being processed, if any.
func (d *Driver) State() (State, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.level
}

// Levels returns the plan computed by Run.
func (d *Driver) Levels() []Level {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.levels
}

func (d *Driver) setState(state State, level int) {
	d.mu.Lock()
	d.state, d.level = state, level
	d.mu.Unlock()
	d.config.Logger.Debug("multires: state", "state", state, "level", level)
}

func (d *Driver) fail(err error) error {
	_, level := d.State()
	d.setState(StateFailed, level)
	return err
}

// Run renders all levels, finest first. Each level raster is resampled
// from the previous (finer) one; the native level is the source itself.
// The driver drops its reference to the source once the source is no
// longer needed, so Run can be called only once.
// A failed run may leave already written tiles behind.
func (d *Driver) Run(ctx context.Context) error {
	d.setState(StatePlanning, 0)

	if d.src == nil {
		return d.fail(errDriverUsed)
	}
	if err := CheckConfig(d.config.TileSize, d.config.Workers); err != nil {
		return d.fail(err)
	}

	width, height := d.src.Size()
	levels, err := d.config.Policy.Plan(width, height, d.config.TileSize)
	if err != nil {
		return d.fail(err)
	}

	d.mu.Lock()
	d.levels = levels
	d.mu.Unlock()

	d.config.Logger.Info("multires: planned pyramid",
		"width", width, "height", height, "tileSize", d.config.TileSize, "maxLevel", len(levels))

	buf := levelBuffer{current: d.src}
	d.src = nil
	defer buf.release()

	for i := len(levels) - 1; i >= 0; i-- {
		level := levels[i]
		d.setState(StateLevelLoop, level.Index)

		if i < len(levels)-1 {
			if err := buf.derive(level.Width, level.Height); err != nil {
				return d.fail(&LevelError{Level: level.Index, Width: level.Width, Height: level.Height, Err: err})
			}
		}

		d.setState(StateTilingLevel, level.Index)
		if err := d.tileLevel(ctx, level, buf.current); err != nil {
			return d.fail(err)
		}
	}

	d.setState(StateDone, 0)
	return nil
}

func (d *Driver) tileLevel(ctx context.Context, level Level, r Raster) error {
	grid := BuildGrid(level.Index, level.Width, level.Height, d.config.TileSize)
	d.config.Logger.Debug("multires: tiling level",
		"level", level.Index, "width", level.Width, "height", level.Height,
		"rows", grid.Rows, "cols", grid.Cols)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.Workers)
	for _, t := range grid.Tiles {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return d.writeTile(t, r)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (d *Driver) writeTile(t Tile, level Raster) error {
	cropped, err := level.Crop(t.X, t.Y, t.W, t.H)
	if err != nil {
		return &TileError{Level: t.Level, Row: t.Row, Col: t.Col, Op: "crop", Err: err}
	}
	data, err := d.enc.Encode(cropped)
	if err != nil {
		return &TileError{Level: t.Level, Row: t.Row, Col: t.Col, Op: "encode", Err: err}
	}
	if err := d.writer.WriteTile(t.ID(), data); err != nil {
		return &TileError{Level: t.Level, Row: t.Row, Col: t.Col, Op: "write", Err: err}
	}
	if d.config.Progress != nil {
		d.config.Progress(t)
	}
	return nil
}

// levelBuffer holds the raster of the level being tiled and the finer
// raster it was derived from. At most these two rasters are referenced.
type levelBuffer struct {
	current  Raster
	previous Raster
}

// derive resamples current into the next coarser level. The previous
// slot is released before resampling starts.
func (b *levelBuffer) derive(width, height int) error {
	b.previous = nil
	next, err := b.current.Resample(width, height)
	if err != nil {
		return err
	}
	b.previous, b.current = b.current, next
	return nil
}

func (b *levelBuffer) release() {
	b.current, b.previous = nil, nil
}
