package spec_test

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/eak1mov/go-multires/pm/spec"
	"github.com/eak1mov/go-multires/pyramid"
	gcmp "github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// pyramidEntries returns sorted entries for every tile of a pyramid,
// each tile with its own data block.
func pyramidEntries(t *testing.T, width, height, tileSize int) []spec.Entry {
	t.Helper()
	levels, err := pyramid.Plan(width, height, tileSize)
	require.NoError(t, err)

	var entries []spec.Entry
	offset := uint64(0)
	for _, level := range levels {
		for _, tile := range pyramid.BuildGrid(level.Index, level.Width, level.Height, tileSize).Tiles {
			code, err := spec.EncodeTileID(tile.ID())
			require.NoError(t, err)
			length := uint32(100 + tile.Col%7)
			entries = append(entries, spec.Entry{TileCode: code, Offset: offset, Length: length, RunLength: 1})
			offset += uint64(length)
		}
	}
	slices.SortFunc(entries, func(a, b spec.Entry) int {
		return cmp.Compare(a.TileCode, b.TileCode)
	})
	return entries
}

var directoryCases = []struct{ width, height, tileSize int }{
	{300, 300, 512},
	{2000, 1000, 512},
	{8192, 8192, 512},
	{30000, 20000, 256},
}

func TestDirectorySerializer(t *testing.T) {
	for _, tc := range directoryCases {
		t.Run(fmt.Sprintf("%dx%d/%d", tc.width, tc.height, tc.tileSize), func(t *testing.T) {
			t.Parallel()
			entries := pyramidEntries(t, tc.width, tc.height, tc.tileSize)

			deserialized, err := spec.DeserializeDirectory(spec.SerializeDirectory(entries))
			require.NoError(t, err)
			if !gcmp.Equal(entries, deserialized) {
				t.Error("DeserializeDirectory(SerializeDirectory(input)) != input")
			}
		})
	}
}

func TestDirectoryEmpty(t *testing.T) {
	entries, err := spec.DeserializeDirectory(spec.SerializeDirectory(nil))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDirectoryErrors(t *testing.T) {
	data := spec.SerializeDirectory([]spec.Entry{{TileCode: 1, Offset: 0, Length: 10, RunLength: 1}})
	for _, input := range [][]byte{
		data[:len(data)-1],
		{0xff, 0xff, 0xff, 0x0f},
	} {
		_, err := spec.DeserializeDirectory(input)
		require.Truef(t, errors.Is(err, spec.ErrInvalidDirectory), "%v", err)
	}
}

func TestCompactEntries(t *testing.T) {
	entries := []spec.Entry{
		{TileCode: 1, Offset: 0, Length: 10, RunLength: 1},
		{TileCode: 2, Offset: 0, Length: 10, RunLength: 1},
		{TileCode: 3, Offset: 0, Length: 10, RunLength: 1},
		{TileCode: 4, Offset: 10, Length: 5, RunLength: 1},
		{TileCode: 6, Offset: 10, Length: 5, RunLength: 1},
	}
	want := []spec.Entry{
		{TileCode: 1, Offset: 0, Length: 10, RunLength: 3},
		{TileCode: 4, Offset: 10, Length: 5, RunLength: 1},
		{TileCode: 6, Offset: 10, Length: 5, RunLength: 1},
	}
	if diff := gcmp.Diff(want, spec.CompactEntries(entries)); diff != "" {
		t.Errorf("CompactEntries mismatch (-want+got):\n%v", diff)
	}

	entry, found := spec.FindEntry(want, 2)
	require.True(t, found)
	require.Equal(t, want[0], entry)

	_, found = spec.FindEntry(want, 5)
	require.False(t, found)
	_, found = spec.FindEntry(want, 0)
	require.False(t, found)
}

func TestBuildDirectories(t *testing.T) {
	for _, tc := range directoryCases {
		t.Run(fmt.Sprintf("%dx%d/%d", tc.width, tc.height, tc.tileSize), func(t *testing.T) {
			t.Parallel()
			entries := pyramidEntries(t, tc.width, tc.height, tc.tileSize)

			dirs, err := spec.BuildDirectories(entries, spec.CompressionGzip)
			require.NoError(t, err)
			require.LessOrEqual(t, len(dirs.Root), spec.RootDirMaxLength)

			rootData, err := spec.Decompress(dirs.Root, spec.CompressionGzip)
			require.NoError(t, err)
			root, err := spec.DeserializeDirectory(rootData)
			require.NoError(t, err)

			if len(dirs.Leaves) == 0 {
				require.Equal(t, entries, root)
				return
			}

			var all []spec.Entry
			for _, leafPtr := range root {
				require.Zero(t, leafPtr.RunLength)
				leafData, err := spec.Decompress(dirs.Leaves[leafPtr.Offset:leafPtr.Offset+uint64(leafPtr.Length)], spec.CompressionGzip)
				require.NoError(t, err)
				leaf, err := spec.DeserializeDirectory(leafData)
				require.NoError(t, err)
				require.Equal(t, leafPtr.TileCode, leaf[0].TileCode)
				all = append(all, leaf...)
			}
			require.Equal(t, entries, all)
		})
	}
}
