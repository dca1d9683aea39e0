package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/eak1mov/go-multires/multires"
	"github.com/eak1mov/go-multires/pyramid"
	"github.com/eak1mov/go-multires/raster"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type tileCmd struct {
	tileSize     int
	png          bool
	quality      int
	outputPath   string
	outputFormat string
	prefix       string
	filter       string
	compression  string
	noOrient     bool
	workers      int
	verbose      bool
}

func (c *tileCmd) Name() string     { return "tile" }
func (c *tileCmd) Synopsis() string { return "generate multires tiles from an image" }
func (c *tileCmd) Usage() string {
	return "multires tile [-s <size>] [-png] [-q <quality>] [-o <path>] [-of <format>] [-prefix <prefix>] <image>\n"
}
func (c *tileCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.tileSize, "s", pyramid.DefaultTileSize, "Tile size in pixels")
	f.BoolVar(&c.png, "png", false, "Write PNG tiles instead of JPEG")
	f.IntVar(&c.quality, "q", raster.DefaultQuality, "JPEG quality (1-100)")
	f.StringVar(&c.outputPath, "o", "output", "Output path")
	f.StringVar(&c.outputFormat, "of", "", "Output format (dir, mbtiles, pmtiles)")
	f.StringVar(&c.prefix, "prefix", "", "Tile file name prefix (dir output only)")
	f.StringVar(&c.filter, "filter", "lanczos", "Resampling filter")
	f.StringVar(&c.compression, "png-compression", "default", "PNG compression (default, none, fast, best)")
	f.BoolVar(&c.noOrient, "no-orient", false, "Ignore the EXIF orientation of the source")
	f.IntVar(&c.workers, "j", runtime.NumCPU(), "Number of tiles encoded concurrently")
	f.BoolVar(&c.verbose, "v", false, "Verbose logging")
}

func (c *tileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		log.Print(c.Usage())
		return subcommands.ExitUsageError
	}
	if c.verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	if err := c.run(ctx, f.Arg(0)); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *tileCmd) run(ctx context.Context, imagePath string) error {
	if err := pyramid.CheckConfig(c.tileSize, c.workers); err != nil {
		return err
	}
	format := raster.FormatJPEG
	if c.png {
		format = raster.FormatPNG
	}
	compression, err := raster.ParseCompression(c.compression)
	if err != nil {
		return err
	}
	enc, err := raster.NewEncoder(format, raster.WithQuality(c.quality), raster.WithCompression(compression))
	if err != nil {
		return err
	}
	filter, err := raster.ParseFilter(c.filter)
	if err != nil {
		return err
	}

	outputFormat := deduceFormat(c.outputFormat, c.outputPath)
	if err := checkOutput(outputFormat, c.outputPath); err != nil {
		return err
	}

	src, err := raster.Open(imagePath, raster.WithFilter(filter), raster.WithAutoOrientation(!c.noOrient))
	if err != nil {
		return err
	}
	width, height := src.Size()
	levels, err := pyramid.Plan(width, height, c.tileSize)
	if err != nil {
		return err
	}

	info := pyramidInfo{
		Name:     strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath)),
		Format:   format.Extension(),
		TileSize: c.tileSize,
		Width:    width,
		Height:   height,
		MaxLevel: len(levels),
	}
	writer, err := openWriter(outputFormat, c.outputPath, format.Extension(), info.metadata(), multires.WithPrefix(c.prefix))
	if err != nil {
		return err
	}
	if closer, ok := writer.(io.Closer); ok {
		defer closer.Close()
	}

	bar := progressbar.NewOptions(pyramid.CountTiles(levels, c.tileSize),
		progressbar.OptionSetDescription("tiling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)
	driver := pyramid.NewDriver(src, enc, writer,
		pyramid.WithTileSize(c.tileSize),
		pyramid.WithWorkers(c.workers),
		pyramid.WithLogger(slog.Default()),
		pyramid.WithProgress(func(pyramid.Tile) { bar.Add(1) }),
	)
	err = driver.Run(ctx)
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	if err := writer.Finalize(); err != nil {
		return err
	}

	fmt.Printf("maxLevel: %d\n", info.MaxLevel)
	fmt.Printf("tileResolution: %d\n", info.TileSize)
	fmt.Printf("size: %dx%d\n", info.Width, info.Height)
	return nil
}
