package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MaxiNavarro97/proyectAR/pkg/config"
	"github.com/MaxiNavarro97/proyectAR/pkg/engine"
	"github.com/MaxiNavarro97/proyectAR/pkg/reporting"
)

func main() {
	var cfgFile string
	flag.StringVar(&cfgFile, "config", "", "Config file (default is config.yaml when present)")
	flag.String("data-dir", "", "Directory the published files are written to")
	flag.String("log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Build(cfgFile, config.GoFlags(flag.CommandLine))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dataengine: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stderr, "dataengine")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := reporting.Init(cfg.Sentry.DSN, cfg.Sentry.Environment, "", logger)
	summary := engine.New(cfg, engine.Deps{Reporter: reporter}, logger).Run(ctx)
	reporter.Flush()

	if err := summary.Err(); err != nil {
		logger.Error("data engine finished with errors", "error", err)
		os.Exit(1)
	}
}
