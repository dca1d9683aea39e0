package multires

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/eak1mov/go-multires/tile"
)

// Reader implements tile.Reader and tile.Visitor interfaces for tiles in multires layout.
type Reader struct {
	layout     layout
	pathRegexp *regexp.Regexp
}

// NewReader creates a new Reader for tiles with the given extension under rootDir.
// Options must match the ones the tiles were written with.
func NewReader(rootDir, ext string, opts ...Option) (*Reader, error) {
	l, err := newLayout(rootDir, ext, newConfig(opts))
	if err != nil {
		return nil, err
	}
	re, err := l.pathRegexp()
	if err != nil {
		return nil, err
	}
	return &Reader{layout: l, pathRegexp: re}, nil
}

func (r *Reader) ReadTile(tileID tile.ID) ([]byte, error) {
	tileData, err := os.ReadFile(r.layout.path(tileID))
	if errors.Is(err, fs.ErrNotExist) {
		return make([]byte, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return tileData, nil
}

func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	return filepath.WalkDir(r.layout.root, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(r.layout.root, filePath)
		if err != nil {
			return err
		}
		tileID, ok := r.parse(filepath.ToSlash(relPath))
		if !ok {
			return nil // foreign files are ignored
		}

		tileData, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}
		return visitor(tileID, tileData)
	})
}

func (r *Reader) parse(relPath string) (tile.ID, bool) {
	matches := r.pathRegexp.FindStringSubmatch(relPath)
	if matches == nil {
		return tile.ID{}, false
	}
	var values [3]uint32
	for i, name := range []string{"level", "row", "col"} {
		v, err := strconv.ParseUint(matches[r.pathRegexp.SubexpIndex(name)], 10, 32)
		if err != nil {
			return tile.ID{}, false
		}
		values[i] = uint32(v)
	}
	tileID := tile.ID{Level: values[0], Row: values[1], Col: values[2]}
	return tileID, tileID.Valid()
}
