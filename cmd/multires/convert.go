package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/eak1mov/go-multires/multires"
	"github.com/eak1mov/go-multires/tile"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type convertCmd struct {
	inputFormat  string
	inputPath    string
	outputFormat string
	outputPath   string
	ext          string
	prefix       string
}

func (c *convertCmd) Name() string     { return "convert" }
func (c *convertCmd) Synopsis() string { return "convert between tile storage formats" }
func (c *convertCmd) Usage() string {
	return "multires convert -i <path> -o <path> [-if <format> | -of <format>] [-ext <ext>]\n"
}
func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (dir, mbtiles, pmtiles)")
	f.StringVar(&c.outputPath, "o", "", "Output path")
	f.StringVar(&c.outputFormat, "of", "", "Output format (dir, mbtiles, pmtiles)")
	f.StringVar(&c.ext, "ext", "", "Tile file extension of dir input and output (default: from metadata, or jpg)")
	f.StringVar(&c.prefix, "prefix", "", "Tile file name prefix of dir input and output")
}

func (c *convertCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputPath == "" || c.outputPath == "" {
		log.Print(c.Usage())
		return subcommands.ExitUsageError
	}
	if err := c.run(); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *convertCmd) run() error {
	inputFormat := deduceFormat(c.inputFormat, c.inputPath)
	outputFormat := deduceFormat(c.outputFormat, c.outputPath)
	if err := checkOutput(outputFormat, c.outputPath); err != nil {
		return err
	}

	opts := []multires.Option{multires.WithPrefix(c.prefix)}
	reader, metadata, err := openReader(inputFormat, c.inputPath, c.ext, opts...)
	if err != nil {
		return err
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	ext := c.ext
	if ext == "" {
		ext = metadata["format"]
	}
	if ext == "" {
		ext = "jpg"
	}

	writer, err := openWriter(outputFormat, c.outputPath, ext, metadata, opts...)
	if err != nil {
		return err
	}
	if closer, ok := writer.(io.Closer); ok {
		defer closer.Close()
	}

	bar := progressbar.NewOptions(-1, progressbar.OptionShowIts(), progressbar.OptionShowCount())
	err = tile.Copy(writer, reader, func(tile.ID) { bar.Add(1) })
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	return writer.Finalize()
}
