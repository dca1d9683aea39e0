package pm

import (
	"bufio"
	"cmp"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/eak1mov/go-multires/pm/spec"
	"github.com/eak1mov/go-multires/tile"
)

type writerConfig struct {
	Metadata []byte
	TileType spec.TileType
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

// WithMetadata sets the JSON metadata stored in the archive.
func WithMetadata(metadata []byte) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithTileType(tileType spec.TileType) WriterOption {
	return func(c *writerConfig) { c.TileType = tileType }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

var errWriterFinalized = errors.New("multires: pmtiles writer already finalized")

// Writer implements tile.Writer interface for PMTiles format.
// Tile data is appended in arrival order; identical tiles are stored once.
// WriteTile is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	logger *slog.Logger
	file   *os.File
	header spec.Header

	tileWriter *bufio.Writer
	tileOffset uint64

	entries   []spec.Entry
	locations map[[16]byte]int // hash -> entry index
}

// NewWriter creates a new Writer for the given file path.
// The returned Writer must be closed after use.
func NewWriter(filePath string, opts ...WriterOption) (w *Writer, err error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			file.Close()
		}
	}()

	header := spec.Header{
		HeaderMagic:         spec.HeaderMagicV3,
		Clustered:           false,
		InternalCompression: spec.CompressionGzip,
		TileCompression:     spec.CompressionNone,
		TileType:            config.TileType,
	}
	offset := uint64(spec.HeaderRootDirMaxLength)

	if _, err = file.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}

	if config.Metadata != nil {
		metadata, err := spec.Compress(config.Metadata, header.InternalCompression)
		if err != nil {
			return nil, err
		}
		if _, err := file.Write(metadata); err != nil {
			return nil, err
		}
		header.MetadataOffset = offset
		header.MetadataLength = uint64(len(metadata))
		offset += header.MetadataLength
	}
	header.TileDataOffset = offset

	return &Writer{
		logger:     config.Logger,
		file:       file,
		header:     header,
		tileWriter: bufio.NewWriter(file),
		locations:  make(map[[16]byte]int),
	}, nil
}

func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	if len(tileData) == 0 {
		return nil
	}
	tileCode, err := spec.EncodeTileID(tileID)
	if err != nil {
		return err
	}
	digest := md5.Sum(tileData)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tileWriter == nil {
		return errWriterFinalized
	}

	if idx, exists := w.locations[digest]; exists {
		w.entries = append(w.entries, spec.Entry{
			TileCode:  tileCode,
			Offset:    w.entries[idx].Offset,
			Length:    w.entries[idx].Length,
			RunLength: 1,
		})
		return nil
	}

	if _, err := w.tileWriter.Write(tileData); err != nil {
		return err
	}
	w.locations[digest] = len(w.entries)
	w.entries = append(w.entries, spec.Entry{
		TileCode:  tileCode,
		Offset:    w.tileOffset,
		Length:    uint32(len(tileData)),
		RunLength: 1,
	})
	w.tileOffset += uint64(len(tileData))
	return nil
}

// Finalize writes directories and header and closes the file.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tileWriter == nil {
		return errWriterFinalized
	}

	w.logger.Debug("multires: flush tile data")
	if err := w.tileWriter.Flush(); err != nil {
		return err
	}
	w.tileWriter = nil
	w.header.TileDataLength = w.tileOffset
	w.header.TileContentsCount = uint64(len(w.locations))
	w.header.AddressedTilesCount = uint64(len(w.entries))

	slices.SortFunc(w.entries, func(a, b spec.Entry) int {
		return cmp.Compare(a.TileCode, b.TileCode)
	})
	for i := 1; i < len(w.entries); i++ {
		if w.entries[i].TileCode == w.entries[i-1].TileCode {
			return fmt.Errorf("multires: duplicate tile %v", spec.DecodeTileID(w.entries[i].TileCode))
		}
	}
	if len(w.entries) > 0 {
		w.header.MinZoom = uint8(spec.DecodeTileID(w.entries[0].TileCode).Level)
		w.header.MaxZoom = uint8(spec.DecodeTileID(w.entries[len(w.entries)-1].TileCode).Level)
		w.header.CenterZoom = w.header.MinZoom
	}

	w.entries = spec.CompactEntries(w.entries)
	w.header.TileEntriesCount = uint64(len(w.entries))

	w.logger.Debug("multires: build directories", "entries", len(w.entries))
	dirs, err := spec.BuildDirectories(w.entries, w.header.InternalCompression)
	if err != nil {
		return err
	}

	leavesOffset := w.header.TileDataOffset + w.header.TileDataLength
	if _, err := w.file.WriteAt(dirs.Leaves, int64(leavesOffset)); err != nil {
		return err
	}
	w.header.LeafDirectoryOffset = leavesOffset
	w.header.LeafDirectoryLength = uint64(len(dirs.Leaves))

	if _, err := w.file.WriteAt(dirs.Root, spec.RootDirOffset); err != nil {
		return err
	}
	w.header.RootOffset = spec.RootDirOffset
	w.header.RootLength = uint64(len(dirs.Root))

	if _, err := w.file.WriteAt(spec.SerializeHeader(&w.header), 0); err != nil {
		return err
	}

	err = w.file.Close()
	w.file = nil
	if err != nil {
		return err
	}
	w.logger.Debug("multires: done!")
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
