// Package pyramid computes and renders multires image pyramids.
//
// A pyramid consists of levels numbered from 1 (coarsest) to maxLevel
// (native resolution). Each level is split into a grid of tiles of a
// nominal edge length; tiles on the last row or column may be smaller.
package pyramid

import "fmt"

// Level is one resolution step of a pyramid.
type Level struct {
	Index  int
	Width  int
	Height int
}

func (l Level) String() string {
	return fmt.Sprintf("level %d (%dx%d)", l.Index, l.Width, l.Height)
}

// Rounding maps num / 2^shift to an integer.
type Rounding func(num, shift int) int

// RoundNearest rounds to the nearest integer, ties away from zero.
func RoundNearest(num, shift int) int {
	if shift == 0 {
		return num
	}
	return (num + 1<<(shift-1)) >> shift
}

// RoundFloor rounds towards zero.
func RoundFloor(num, shift int) int {
	return num >> shift
}

// RoundCeil rounds away from zero.
func RoundCeil(num, shift int) int {
	return (num + 1<<shift - 1) >> shift
}

// Policy controls how level dimensions are derived from the source size.
//
// Viewers address tiles by level, row and column only, so a tileset must
// be generated with the same policy as the one its consumers expect.
type Policy struct {
	Round Rounding

	// CollapseNearDuplicate drops the extra level that would otherwise be
	// emitted when the long edge is already a near-exact power-of-two
	// multiple of the tile size.
	CollapseNearDuplicate bool
}

// DefaultPolicy rounds to nearest and collapses near-duplicate levels.
var DefaultPolicy = Policy{Round: RoundNearest, CollapseNearDuplicate: true}

// Plan returns the levels of a pyramid for a width x height source split
// into tiles of size tileSize, using DefaultPolicy.
func Plan(width, height, tileSize int) ([]Level, error) {
	return DefaultPolicy.Plan(width, height, tileSize)
}

// MaxLevel returns the number of levels Plan would produce.
func MaxLevel(width, height, tileSize int) (int, error) {
	levels, err := Plan(width, height, tileSize)
	if err != nil {
		return 0, err
	}
	return len(levels), nil
}

// Plan returns the pyramid levels ordered from coarsest to native.
// The last level always equals the source dimensions.
func (p Policy) Plan(width, height, tileSize int) ([]Level, error) {
	if err := validate(width, height, tileSize); err != nil {
		return nil, err
	}
	round := p.Round
	if round == nil {
		round = RoundNearest
	}

	maxLevel := p.maxLevel(max(width, height), tileSize, round)

	levels := make([]Level, maxLevel)
	for i := range levels {
		shift := maxLevel - 1 - i
		levels[i] = Level{
			Index:  i + 1,
			Width:  max(1, round(width, shift)),
			Height: max(1, round(height, shift)),
		}
	}
	levels[maxLevel-1].Width = width
	levels[maxLevel-1].Height = height
	return levels, nil
}

func (p Policy) maxLevel(longEdge, tileSize int, round Rounding) int {
	if longEdge <= tileSize {
		return 1
	}

	// ceil(log2(longEdge / tileSize)): the smallest steps with
	// tileSize<<steps >= longEdge, shifting longEdge to stay in range.
	steps := 0
	for (longEdge-1)>>steps >= tileSize {
		steps++
	}
	levels := steps + 1

	if p.CollapseNearDuplicate && round(longEdge, levels-2) == tileSize {
		levels--
	}
	return levels
}

func validate(width, height, tileSize int) error {
	if tileSize < 1 {
		return fmt.Errorf("%w: tile size %d", ErrInvalidConfiguration, tileSize)
	}
	if width < 1 || height < 1 {
		return fmt.Errorf("%w: source size %dx%d", ErrInvalidConfiguration, width, height)
	}
	return nil
}
