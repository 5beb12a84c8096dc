package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MaxiNavarro97/proyectAR/pkg/config"
	"github.com/MaxiNavarro97/proyectAR/pkg/server"
)

func main() {
	var cfgFile string
	flag.StringVar(&cfgFile, "config", "", "Config file (default is config.yaml when present)")
	flag.String("addr", "", "Listen address (default 0.0.0.0:3000)")
	flag.String("data-dir", "", "Directory holding the published files")
	flag.String("log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Build(cfgFile, config.GoFlags(flag.CommandLine))
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stderr, "server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, logger)
	logger.Info("starting server", "addr", cfg.Server.Addr)
	if err := srv.Start(ctx, cfg.Server.Addr); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
