package mb_test

import (
	"fmt"
	"maps"
	"path/filepath"
	"sync"
	"testing"

	"github.com/eak1mov/go-multires/mb"
	"github.com/eak1mov/go-multires/tile"
	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func TestWriterReader(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "pyramid.mbtiles")

	tiles := map[tile.ID][]byte{
		{Level: 1, Row: 0, Col: 0}: []byte("tile100"),
		{Level: 2, Row: 0, Col: 1}: []byte("tile201"),
		{Level: 3, Row: 1, Col: 3}: []byte("tile313"),
		{Level: 3, Row: 1, Col: 0}: []byte("tile310"),
	}
	metadata := map[string]string{"format": "jpg", "tileSize": "512"}

	writer, err := mb.NewWriter(filePath, mb.WithMetadata(metadata))
	require.NoError(t, err)
	for tileID, tileData := range tiles {
		require.NoError(t, writer.WriteTile(tileID, tileData), "WriteTile(%v)", tileID)
	}
	require.NoError(t, writer.Finalize())
	require.NoError(t, writer.Close())

	reader, err := mb.NewReader(filePath)
	require.NoError(t, err)
	defer reader.Close()

	gotMetadata, err := reader.ReadMetadata()
	require.NoError(t, err)
	if diff := cmp.Diff(metadata, gotMetadata); diff != "" {
		t.Errorf("ReadMetadata mismatch (-want+got):\n%v", diff)
	}

	if diff := cmp.Diff(tiles, maps.Collect(tile.IterTiles(reader))); diff != "" {
		t.Errorf("VisitTiles mismatch (-want+got):\n%v", diff)
	}

	for tileID, tileData := range tiles {
		data, err := reader.ReadTile(tileID)
		require.NoError(t, err)
		require.Equal(t, tileData, data, "ReadTile(%v)", tileID)
	}

	data, err := reader.ReadTile(tile.ID{Level: 9, Row: 9, Col: 9})
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestWriterConcurrent(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "pyramid.mbtiles")
	writer, err := mb.NewWriter(filePath)
	require.NoError(t, err)

	tiles := make(map[tile.ID][]byte)
	for row := range uint32(6) {
		for col := range uint32(6) {
			tileID := tile.ID{Level: 4, Row: row, Col: col}
			tiles[tileID] = fmt.Appendf(nil, "%v", tileID)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(tiles))
	for tileID, tileData := range tiles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- writer.WriteTile(tileID, tileData)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.NoError(t, writer.Finalize())
	require.NoError(t, writer.Close())

	reader, err := mb.NewReader(filePath)
	require.NoError(t, err)
	defer reader.Close()
	if diff := cmp.Diff(tiles, maps.Collect(tile.IterTiles(reader))); diff != "" {
		t.Errorf("VisitTiles mismatch (-want+got):\n%v", diff)
	}
}

func TestWriterDuplicateTile(t *testing.T) {
	writer, err := mb.NewWriter(filepath.Join(t.TempDir(), "pyramid.mbtiles"))
	require.NoError(t, err)
	defer writer.Close()

	tileID := tile.ID{Level: 1, Row: 0, Col: 0}
	require.NoError(t, writer.WriteTile(tileID, []byte("a")))
	require.NoError(t, writer.WriteTile(tileID, []byte("b")))
	require.Error(t, writer.Finalize())
}

func TestWriterAfterFinalize(t *testing.T) {
	writer, err := mb.NewWriter(filepath.Join(t.TempDir(), "pyramid.mbtiles"))
	require.NoError(t, err)
	defer writer.Close()

	require.NoError(t, writer.Finalize())
	require.Error(t, writer.WriteTile(tile.ID{Level: 1}, []byte("a")))
	require.Error(t, writer.Finalize())
}
