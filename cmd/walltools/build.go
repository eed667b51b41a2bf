package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/eak1mov/go-libwall/pyramid"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type buildCmd struct {
	inputPath  string
	outputPath string
	tileEdge   int
}

func (c *buildCmd) Name() string     { return "build" }
func (c *buildCmd) Synopsis() string { return "build a tile pyramid from a source image" }
func (c *buildCmd) Usage() string {
	return "walltools build -i <image> -o <pyramid dir> [-e <tile edge>]\n"
}
func (c *buildCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Source image path (png, jpeg)")
	f.StringVar(&c.outputPath, "o", "", "Output pyramid directory")
	f.IntVar(&c.tileEdge, "e", pyramid.DefaultTileEdge, "Tile edge length in pixels")
}

func (c *buildCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputPath == "" || c.outputPath == "" {
		log.Println("build: -i and -o are required")
		return subcommands.ExitUsageError
	}

	bar := progressbar.NewOptions(-1, progressbar.OptionShowIts(), progressbar.OptionShowCount())

	err := pyramid.Build(c.inputPath, c.outputPath,
		pyramid.WithTileEdge(c.tileEdge),
		pyramid.WithTileWritten(func(pyramid.TreePath) {
			bar.Add(1)
		}))
	bar.Finish()
	fmt.Println()

	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
