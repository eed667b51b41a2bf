package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/eak1mov/go-libwall/pyr"
	"github.com/eak1mov/go-libwall/pyramid"
	"github.com/eak1mov/go-libwall/sq"
	"github.com/eak1mov/go-libwall/tile"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type exportCmd struct {
	inputFormat string
	inputPath   string
	outputPath  string
	tileEdge    int
}

func (c *exportCmd) Name() string     { return "export" }
func (c *exportCmd) Synopsis() string { return "export a pyramid into a sqlite tile store" }
func (c *exportCmd) Usage() string {
	return "walltools export -i <pyramid dir | archive> -o <sqlite file> [-if <format> -e <tile edge>]\n"
}
func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (folder, archive)")
	f.StringVar(&c.outputPath, "o", "", "Output sqlite file path")
	f.IntVar(&c.tileEdge, "e", pyramid.DefaultTileEdge, "Tile edge length (folder input only)")
}

type metaVisitor interface {
	tile.Visitor
	Meta() pyramid.Meta
}

func (c *exportCmd) open() (metaVisitor, int, error) {
	format := c.inputFormat
	if format == "" {
		if filepath.Ext(c.inputPath) == ".wlpyr" {
			format = "archive"
		} else {
			format = "folder"
		}
	}

	switch format {
	case "folder":
		reader, err := pyramid.NewReader(pyramid.SidecarPath(c.inputPath))
		if err != nil {
			return nil, 0, err
		}
		return reader, c.tileEdge, nil
	case "archive":
		reader, err := pyr.NewReader(c.inputPath)
		if err != nil {
			return nil, 0, err
		}
		return reader, reader.TileEdge(), nil
	default:
		return nil, 0, fmt.Errorf("invalid input format: %q", format)
	}
}

func (c *exportCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputPath == "" || c.outputPath == "" {
		log.Println("export: -i and -o are required")
		return subcommands.ExitUsageError
	}

	reader, tileEdge, err := c.open()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	writer, err := sq.NewWriter(c.outputPath, reader.Meta(), tileEdge)
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
