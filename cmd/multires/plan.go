package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/eak1mov/go-multires/pyramid"
	"github.com/google/subcommands"
)

type planCmd struct {
	tileSize int
}

func (c *planCmd) Name() string     { return "plan" }
func (c *planCmd) Synopsis() string { return "print pyramid levels for an image size" }
func (c *planCmd) Usage() string {
	return "multires plan [-s <size>] <width> <height>\n"
}
func (c *planCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.tileSize, "s", pyramid.DefaultTileSize, "Tile size in pixels")
}

func (c *planCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 2 {
		log.Print(c.Usage())
		return subcommands.ExitUsageError
	}
	width, err := strconv.Atoi(f.Arg(0))
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}
	height, err := strconv.Atoi(f.Arg(1))
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}

	if err := printPlan(os.Stdout, width, height, c.tileSize); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printPlan(w io.Writer, width, height, tileSize int) error {
	levels, err := pyramid.Plan(width, height, tileSize)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "level\twidth\theight\trows\tcols\ttiles\t")
	for _, level := range levels {
		grid := pyramid.BuildGrid(level.Index, level.Width, level.Height, tileSize)
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t\n",
			level.Index, level.Width, level.Height, grid.Rows, grid.Cols, len(grid.Tiles))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "maxLevel: %d, total tiles: %d\n", len(levels), pyramid.CountTiles(levels, tileSize))
	return err
}
