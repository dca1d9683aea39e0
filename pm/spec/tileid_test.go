package spec_test

import (
	"errors"
	"testing"

	"github.com/eak1mov/go-multires/pm/spec"
	"github.com/eak1mov/go-multires/pyramid"
	"github.com/eak1mov/go-multires/tile"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTileID(t *testing.T) {
	for level := range 8 {
		for row := range 1 << level {
			for col := range 1 << level {
				tileID := tile.ID{Level: uint32(level), Row: uint32(row), Col: uint32(col)}
				code, err := spec.EncodeTileID(tileID)
				require.NoError(t, err)
				if diff := cmp.Diff(tileID, spec.DecodeTileID(code)); diff != "" {
					t.Errorf("DecodeTileID(EncodeTileID(%v)) mismatch (-want+got):\n%v", tileID, diff)
				}
			}
		}
	}
	for level := range spec.MaxZoom {
		edge := uint32(1<<level) - 1
		tileID := tile.ID{Level: uint32(level), Row: edge, Col: edge}
		code, err := spec.EncodeTileID(tileID)
		require.NoError(t, err)
		if diff := cmp.Diff(tileID, spec.DecodeTileID(code)); diff != "" {
			t.Errorf("DecodeTileID(EncodeTileID(%v)) mismatch (-want+got):\n%v", tileID, diff)
		}
	}
}

func TestEncodeTileIDOrder(t *testing.T) {
	// Zoom levels are stored one after another.
	for _, tc := range []struct {
		tileID tile.ID
		want   uint64
	}{
		{tile.ID{Level: 0}, 0},
		{tile.ID{Level: 1, Row: 0, Col: 0}, 1},
		{tile.ID{Level: 2, Row: 0, Col: 0}, 5},
		{tile.ID{Level: 3, Row: 0, Col: 0}, 21},
	} {
		code, err := spec.EncodeTileID(tc.tileID)
		require.NoError(t, err)
		require.Equal(t, tc.want, code, "%v", tc.tileID)
	}
}

func TestEncodeTileIDOutOfRange(t *testing.T) {
	for _, tileID := range []tile.ID{
		{Level: 1, Row: 0, Col: 2},
		{Level: 2, Row: 4, Col: 0},
		{Level: spec.MaxZoom + 1},
	} {
		_, err := spec.EncodeTileID(tileID)
		require.True(t, errors.Is(err, spec.ErrTileOutOfRange), "%v: %v", tileID, err)
	}
}

func TestEncodeTileIDCollapsedLevel(t *testing.T) {
	// The near-duplicate level is collapsed: level 3 is native with 5 columns.
	levels, err := pyramid.Plan(2049, 2049, 512)
	require.NoError(t, err)
	require.Len(t, levels, 3)

	for _, level := range levels {
		grid := pyramid.BuildGrid(level.Index, level.Width, level.Height, 512)
		require.LessOrEqual(t, grid.Cols, 1<<level.Index)
		for _, pt := range grid.Tiles {
			code, err := spec.EncodeTileID(pt.ID())
			require.NoError(t, err, pt.ID())
			require.Equal(t, pt.ID(), spec.DecodeTileID(code))
		}
	}
	require.Equal(t, 5, pyramid.BuildGrid(3, 2049, 2049, 512).Cols)
}
