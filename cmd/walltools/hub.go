package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/eak1mov/go-libwall/swap/wschannel"
	"github.com/google/subcommands"
	"github.com/gorilla/mux"
)

type hubCmd struct {
	addr    string
	verbose bool
}

func (c *hubCmd) Name() string     { return "hub" }
func (c *hubCmd) Synopsis() string { return "run the swap synchronization relay hub" }
func (c *hubCmd) Usage() string {
	return "walltools hub [-addr <host:port>] [-v]\n"
}
func (c *hubCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", ":9180", "Listen address")
	f.BoolVar(&c.verbose, "v", false, "Debug logging")
}

func (c *hubCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	hub := wschannel.NewHub(wschannel.WithHubLogger(logger))
	go hub.Run(ctx)

	router := mux.NewRouter()
	router.Handle("/ws", hub.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	logger.Info("libwall: hub listening", "addr", c.addr)
	if err := http.ListenAndServe(c.addr, router); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
