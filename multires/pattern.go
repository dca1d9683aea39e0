// Package multires provides API for reading and writing tiles in the multires
// directory layout, where tiles are stored as individual files with paths
// like "<root>/<level>/<row>_<col>.<ext>".
package multires

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/eak1mov/go-multires/tile"
)

var (
	ErrInvalidPattern  = errors.New("multires: invalid file pattern")
	ErrOutputCollision = errors.New("multires: output already exists")
)

// DefaultPattern is the tile path relative to the output root, without extension.
const DefaultPattern = "{level}/{prefix}{row}_{col}"

func validatePattern(pattern string) error {
	for _, p := range []string{"{level}", "{row}", "{col}"} {
		if !strings.Contains(pattern, p) {
			return fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, p)
		}
	}
	if filepath.IsAbs(pattern) {
		return fmt.Errorf("%w: pattern %q must be relative", ErrInvalidPattern, pattern)
	}
	return nil
}

// layout maps tile addresses to file paths under root.
type layout struct {
	root    string
	pattern string
	prefix  string
	ext     string
}

func newLayout(rootDir, ext string, c config) (layout, error) {
	if err := validatePattern(c.Pattern); err != nil {
		return layout{}, err
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		return layout{}, fmt.Errorf("%w: extension %q", ErrInvalidPattern, ext)
	}
	if strings.ContainsAny(c.Prefix, `/\`) {
		return layout{}, fmt.Errorf("%w: prefix %q", ErrInvalidPattern, c.Prefix)
	}
	return layout{root: rootDir, pattern: c.Pattern, prefix: c.Prefix, ext: ext}, nil
}

func (l *layout) path(tileID tile.ID) string {
	result := strings.NewReplacer(
		"{level}", strconv.FormatUint(uint64(tileID.Level), 10),
		"{row}", strconv.FormatUint(uint64(tileID.Row), 10),
		"{col}", strconv.FormatUint(uint64(tileID.Col), 10),
		"{prefix}", l.prefix,
	).Replace(l.pattern)
	return filepath.Join(l.root, filepath.FromSlash(result)) + "." + l.ext
}

// pathRegexp returns an expression matching slash-separated paths relative to root.
func (l *layout) pathRegexp() (*regexp.Regexp, error) {
	expr := strings.NewReplacer(
		`\{level\}`, `(?P<level>\d+)`,
		`\{row\}`, `(?P<row>\d+)`,
		`\{col\}`, `(?P<col>\d+)`,
		`\{prefix\}`, regexp.QuoteMeta(l.prefix),
	).Replace(regexp.QuoteMeta(l.pattern))
	re, err := regexp.Compile("^" + expr + `\.` + regexp.QuoteMeta(l.ext) + "$")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return re, nil
}
