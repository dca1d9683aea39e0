// Package pm provides API for reading and writing pyramid tiles in PMTiles v3 format.
// Levels are stored as zoom levels; see spec.EncodeTileID for the mapping.
package pm

import (
	"errors"
	"os"

	"github.com/eak1mov/go-multires/pm/spec"
	"github.com/eak1mov/go-multires/tile"
)

var ErrTileOutOfRange = spec.ErrTileOutOfRange

// Location is the absolute position of tile data in the archive.
type Location struct {
	Offset uint64
	Length uint64
}

type FileAccessFunc = func(offset, length uint64) ([]byte, error)

// Reader implements tile.Reader and tile.Visitor interfaces for PMTiles format.
type Reader struct {
	fileAccess FileAccessFunc
	fileCloser func() error
	header     *spec.Header
}

// NewFileReader opens the archive at filePath.
// The returned Reader must be closed after use.
func NewFileReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	fileAccess := func(offset, length uint64) ([]byte, error) {
		buffer := make([]byte, length)
		if _, err := file.ReadAt(buffer, int64(offset)); err != nil {
			return nil, err
		}
		return buffer, nil
	}
	r, err := newReader(fileAccess, file.Close)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// NewReader creates a Reader over an arbitrary random access function.
func NewReader(fileAccess FileAccessFunc) (*Reader, error) {
	return newReader(fileAccess, func() error { return nil })
}

func newReader(fileAccess FileAccessFunc, fileCloser func() error) (*Reader, error) {
	headerData, err := fileAccess(0, spec.HeaderLength)
	if err != nil {
		return nil, err
	}
	header, err := spec.DeserializeHeader(headerData)
	if err != nil {
		return nil, err
	}
	return &Reader{fileAccess: fileAccess, fileCloser: fileCloser, header: header}, nil
}

func (r *Reader) Close() error {
	return r.fileCloser()
}

func (r *Reader) Header() spec.Header {
	return *r.header
}

func (r *Reader) ReadMetadata() ([]byte, error) {
	if r.header.MetadataLength == 0 {
		return nil, nil
	}
	data, err := r.fileAccess(r.header.MetadataOffset, r.header.MetadataLength)
	if err != nil {
		return nil, err
	}
	return spec.Decompress(data, r.header.InternalCompression)
}

func (r *Reader) readDirectory(dirOffset, dirLength uint64) ([]spec.Entry, error) {
	dirCompressed, err := r.fileAccess(dirOffset, dirLength)
	if err != nil {
		return nil, err
	}
	dirData, err := spec.Decompress(dirCompressed, r.header.InternalCompression)
	if err != nil {
		return nil, err
	}
	return spec.DeserializeDirectory(dirData)
}

// maxDepth bounds directory traversal on malformed archives.
const maxDepth = 4

var errTooDeep = errors.New("multires: pmtiles directory nesting too deep")

// ReadLocation returns the location of the tile data, or a zero Location
// if the tile is absent.
func (r *Reader) ReadLocation(tileID tile.ID) (Location, error) {
	tileCode, err := spec.EncodeTileID(tileID)
	if errors.Is(err, ErrTileOutOfRange) {
		return Location{}, nil
	}
	if err != nil {
		return Location{}, err
	}

	dirOffset, dirLength := r.header.RootOffset, r.header.RootLength
	for range maxDepth {
		dirEntries, err := r.readDirectory(dirOffset, dirLength)
		if err != nil {
			return Location{}, err
		}
		entry, found := spec.FindEntry(dirEntries, tileCode)
		if !found {
			return Location{}, nil
		}
		if entry.RunLength > 0 {
			return Location{
				Offset: r.header.TileDataOffset + entry.Offset,
				Length: uint64(entry.Length),
			}, nil
		}
		dirOffset = r.header.LeafDirectoryOffset + entry.Offset
		dirLength = uint64(entry.Length)
	}
	return Location{}, errTooDeep
}

func (r *Reader) ReadTile(tileID tile.ID) ([]byte, error) {
	location, err := r.ReadLocation(tileID)
	if err != nil {
		return nil, err
	}
	if location.Length == 0 {
		return make([]byte, 0), nil
	}
	return r.fileAccess(location.Offset, location.Length)
}

func (r *Reader) VisitTileLocations(visitor func(tile.ID, Location) error) error {
	var traverse func(dirOffset, dirLength uint64, depth int) error
	traverse = func(dirOffset, dirLength uint64, depth int) error {
		if depth >= maxDepth {
			return errTooDeep
		}
		dirEntries, err := r.readDirectory(dirOffset, dirLength)
		if err != nil {
			return err
		}
		for _, entry := range dirEntries {
			if entry.RunLength == 0 {
				err := traverse(r.header.LeafDirectoryOffset+entry.Offset, uint64(entry.Length), depth+1)
				if err != nil {
					return err
				}
				continue
			}
			location := Location{
				Offset: r.header.TileDataOffset + entry.Offset,
				Length: uint64(entry.Length),
			}
			for i := range uint64(entry.RunLength) {
				if err := visitor(spec.DecodeTileID(entry.TileCode+i), location); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return traverse(r.header.RootOffset, r.header.RootLength, 0)
}

func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	return r.VisitTileLocations(func(tileID tile.ID, location Location) error {
		tileData, err := r.fileAccess(location.Offset, location.Length)
		if err != nil {
			return err
		}
		return visitor(tileID, tileData)
	})
}
