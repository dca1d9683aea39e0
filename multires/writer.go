package multires

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/eak1mov/go-multires/tile"
)

type config struct {
	Pattern string
	Prefix  string
	Logger  *slog.Logger
}

type Option func(*config)

func newConfig(opts []Option) config {
	c := config{
		Pattern: DefaultPattern,
		Logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithPattern overrides DefaultPattern. The pattern must contain
// {level}, {row} and {col} placeholders and may contain {prefix}.
func WithPattern(pattern string) Option {
	return func(c *config) { c.Pattern = pattern }
}

// WithPrefix sets a file name prefix shared by all tiles of the run.
func WithPrefix(prefix string) Option {
	return func(c *config) { c.Prefix = prefix }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

// Writer implements tile.Writer interface for tiles in multires layout.
// WriteTile is safe for concurrent use.
type Writer struct {
	layout  layout
	logger  *slog.Logger
	dirs    sync.Map // directories already created
	written atomic.Uint64
}

// NewWriter creates a new Writer storing tiles with the given extension
// (e.g. "jpg") under rootDir.
func NewWriter(rootDir, ext string, opts ...Option) (*Writer, error) {
	config := newConfig(opts)
	l, err := newLayout(rootDir, ext, config)
	if err != nil {
		return nil, err
	}
	return &Writer{layout: l, logger: config.Logger}, nil
}

// Path returns the file path of the given tile.
func (w *Writer) Path(tileID tile.ID) string {
	return w.layout.path(tileID)
}

func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	filePath := w.layout.path(tileID)

	dirPath := filepath.Dir(filePath)
	if _, ok := w.dirs.Load(dirPath); !ok {
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return err
		}
		if _, loaded := w.dirs.LoadOrStore(dirPath, struct{}{}); !loaded {
			w.logger.Debug("multires: created directory", "path", dirPath)
		}
	}

	if err := os.WriteFile(filePath, tileData, 0644); err != nil {
		return err
	}

	w.written.Add(1)
	return nil
}

func (w *Writer) Finalize() error {
	w.logger.Info("multires: tiles written", "root", w.layout.root, "count", w.written.Load())
	return nil
}

// CheckOutput reports ErrOutputCollision if rootDir exists and is not an
// empty directory. A missing rootDir is not an error.
func CheckOutput(rootDir string) error {
	info, err := os.Stat(rootDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrOutputCollision, rootDir)
	}
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s is not empty", ErrOutputCollision, rootDir)
	}
	return nil
}
