package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/eak1mov/go-libwall/pyr"
	"github.com/eak1mov/go-libwall/pyramid"
	"github.com/eak1mov/go-libwall/tile"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type packCmd struct {
	inputPath  string
	outputPath string
	tileEdge   int
}

func (c *packCmd) Name() string     { return "pack" }
func (c *packCmd) Synopsis() string { return "pack a pyramid folder into a single archive" }
func (c *packCmd) Usage() string {
	return "walltools pack -i <pyramid dir> -o <archive> [-e <tile edge>]\n"
}
func (c *packCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input pyramid directory")
	f.StringVar(&c.outputPath, "o", "", "Output archive path")
	f.IntVar(&c.tileEdge, "e", pyramid.DefaultTileEdge, "Tile edge length the pyramid was built with")
}

func (c *packCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputPath == "" || c.outputPath == "" {
		log.Println("pack: -i and -o are required")
		return subcommands.ExitUsageError
	}

	reader, err := pyramid.NewReader(pyramid.SidecarPath(c.inputPath))
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	writer, err := pyr.NewWriter(c.outputPath, reader.Meta(), c.tileEdge)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer writer.Close()

	bar := progressbar.NewOptions(-1, progressbar.OptionShowIts(), progressbar.OptionShowCount())

	err = reader.VisitTiles(func(id tile.ID, data []byte) error {
		if err := writer.WriteTile(id, data); err != nil {
			return err
		}
		bar.Add(1)
		return nil
	})
	bar.Finish()
	fmt.Println()

	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if err := writer.Finalize(); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
