package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridworm/gridworm/internal/buildinfo"
	"github.com/gridworm/gridworm/internal/cli"
	"github.com/gridworm/gridworm/internal/config"
	"github.com/gridworm/gridworm/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger, os.Stdin, os.Stdout)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}
	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error(ctx, "gridworm stopped", "error", err)
		os.Exit(1)
	}
}
