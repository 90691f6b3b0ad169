// healthtips-mcp is a standalone MCP server for the health tips dataset.
// It reads the same config as the web server and serves read-only tip and
// recommendation tools over stdio.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matthewjhunter/healthtips"
	"github.com/matthewjhunter/healthtips/internal/logging"
	"github.com/matthewjhunter/healthtips/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "path to YAML or TOML config file")
	reloadEvery := flag.Duration("reload", time.Minute, "how often to check the dataset for changes (0 disables)")
	flag.Parse()

	cfg, err := storage.LoadConfig(*configPath)
	if err != nil {
		logging.Error().Err(err).Msg("load config")
		os.Exit(1)
	}
	// stdout carries the protocol; logs always go to stderr.
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: os.Stderr})

	engine, err := healthtips.NewEngineFromConfig(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("create engine")
		os.Exit(1)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newServer(engine)
	if *reloadEvery > 0 {
		srv.reloader = newReloader(engine, *reloadEvery)
		srv.reloader.start(ctx)
		defer srv.reloader.stop()
	}

	if err := srv.run(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}
