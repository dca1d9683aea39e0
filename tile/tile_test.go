package tile_test

import (
	"errors"
	"maps"
	"testing"

	"github.com/eak1mov/go-multires/tile"
	"github.com/google/go-cmp/cmp"
)

type memTiles map[tile.ID][]byte

func (m memTiles) WriteTile(tileID tile.ID, tileData []byte) error {
	if !tileID.Valid() {
		return errors.New("invalid tile")
	}
	m[tileID] = tileData
	return nil
}

func (m memTiles) Finalize() error { return nil }

func (m memTiles) VisitTiles(visitor func(tile.ID, []byte) error) error {
	for id, data := range m {
		if err := visitor(id, data); err != nil {
			return err
		}
	}
	return nil
}

func TestCopy(t *testing.T) {
	src := memTiles{
		{Level: 1, Row: 0, Col: 0}: []byte("a"),
		{Level: 2, Row: 0, Col: 1}: []byte("b"),
		{Level: 2, Row: 1, Col: 1}: []byte("c"),
	}
	dst := memTiles{}

	var copied int
	if err := tile.Copy(dst, src, func(tile.ID) { copied++ }); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if got, want := copied, len(src); got != want {
		t.Errorf("progress called %d times, want %d", got, want)
	}
	if diff := cmp.Diff(map[tile.ID][]byte(src), map[tile.ID][]byte(dst)); diff != "" {
		t.Errorf("Copy mismatch (-want+got):\n%v", diff)
	}
}

func TestCopyStopsOnError(t *testing.T) {
	src := memTiles{{Level: 0, Row: 0, Col: 0}: []byte("bad")}
	if err := tile.Copy(memTiles{}, src, nil); err == nil {
		t.Errorf("Copy of invalid tile succeeded")
	}
}

func TestIterTiles(t *testing.T) {
	src := memTiles{
		{Level: 1, Row: 0, Col: 0}: []byte("a"),
		{Level: 3, Row: 2, Col: 1}: []byte("b"),
	}
	if got, want := maps.Collect(tile.IterTiles(src)), map[tile.ID][]byte(src); !cmp.Equal(got, want) {
		t.Errorf("IterTiles mismatch: got %v, want %v", got, want)
	}
}

func TestIDString(t *testing.T) {
	if got, want := (tile.ID{Level: 3, Row: 1, Col: 2}).String(), "3/1_2"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
