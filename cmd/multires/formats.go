package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eak1mov/go-multires/mb"
	"github.com/eak1mov/go-multires/multires"
	"github.com/eak1mov/go-multires/pm"
	"github.com/eak1mov/go-multires/pm/spec"
	"github.com/eak1mov/go-multires/tile"
)

const (
	formatDir     = "dir"
	formatMBTiles = "mbtiles"
	formatPMTiles = "pmtiles"
)

func deduceFormat(format, filePath string) string {
	if format != "" {
		return format
	}
	if strings.HasSuffix(filePath, ".mbtiles") {
		return formatMBTiles
	}
	if strings.HasSuffix(filePath, ".pmtiles") {
		return formatPMTiles
	}
	return formatDir
}

// pyramidInfo is stored as archive metadata next to the tiles.
type pyramidInfo struct {
	Name     string
	Format   string
	TileSize int
	Width    int
	Height   int
	MaxLevel int
}

func (p pyramidInfo) metadata() map[string]string {
	return map[string]string{
		"name":           p.Name,
		"type":           "multires",
		"format":         p.Format,
		"tileResolution": strconv.Itoa(p.TileSize),
		"width":          strconv.Itoa(p.Width),
		"height":         strconv.Itoa(p.Height),
		"maxLevel":       strconv.Itoa(p.MaxLevel),
	}
}

// checkOutput fails with multires.ErrOutputCollision if the output holds data.
func checkOutput(format, outputPath string) error {
	if format == formatDir {
		return multires.CheckOutput(outputPath)
	}
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("%w: %s", multires.ErrOutputCollision, outputPath)
	}
	return nil
}

func openWriter(format, outputPath, ext string, metadata map[string]string, opts ...multires.Option) (tile.Writer, error) {
	logger := slog.Default()
	switch format {
	case formatDir:
		writer, err := multires.NewWriter(outputPath, ext, append(opts, multires.WithLogger(logger))...)
		if err != nil {
			return nil, err
		}
		return writer, nil
	case formatMBTiles:
		writer, err := mb.NewWriter(outputPath, mb.WithMetadata(metadata), mb.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return writer, nil
	case formatPMTiles:
		jsonMetadata, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		writer, err := pm.NewWriter(
			outputPath,
			pm.WithMetadata(jsonMetadata),
			pm.WithTileType(spec.TileTypeForExtension(ext)),
			pm.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return writer, nil
	}
	return nil, fmt.Errorf("invalid output format: %q", format)
}

// openReader returns the tiles at inputPath and their metadata, if any.
func openReader(format, inputPath, ext string, opts ...multires.Option) (tile.Visitor, map[string]string, error) {
	switch format {
	case formatDir:
		if ext == "" {
			ext = "jpg"
		}
		reader, err := multires.NewReader(inputPath, ext, opts...)
		if err != nil {
			return nil, nil, err
		}
		metadata := map[string]string{"name": filepath.Base(inputPath), "format": ext}
		return reader, metadata, nil
	case formatMBTiles:
		reader, err := mb.NewReader(inputPath)
		if err != nil {
			return nil, nil, err
		}
		metadata, err := reader.ReadMetadata()
		if err != nil {
			reader.Close()
			return nil, nil, err
		}
		return reader, metadata, nil
	case formatPMTiles:
		reader, err := pm.NewFileReader(inputPath)
		if err != nil {
			return nil, nil, err
		}
		metadata, err := readPMTilesMetadata(reader)
		if err != nil {
			reader.Close()
			return nil, nil, err
		}
		return reader, metadata, nil
	}
	return nil, nil, fmt.Errorf("invalid input format: %q", format)
}

func readPMTilesMetadata(reader *pm.Reader) (map[string]string, error) {
	metadata := make(map[string]string)
	data, err := reader.ReadMetadata()
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
	}
	if _, ok := metadata["format"]; !ok {
		if ext := reader.Header().TileType.Extension(); ext != "" {
			metadata["format"] = ext
		}
	}
	return metadata, nil
}
