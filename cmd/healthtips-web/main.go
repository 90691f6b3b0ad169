package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matthewjhunter/healthtips"
	"github.com/matthewjhunter/healthtips/internal/logging"
	"github.com/matthewjhunter/healthtips/internal/session"
	"github.com/matthewjhunter/healthtips/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "path to YAML or TOML config file")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	flag.Parse()

	cfg, err := storage.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthtips-web: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	engine, err := healthtips.NewEngineFromConfig(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to start engine")
		os.Exit(1)
	}
	defer engine.Close()

	if cfg.Session.Secret == "" {
		logging.Warn().Msg("session.secret not set; using a random secret, sessions will not survive a restart")
	}
	sessions, err := session.NewManager(session.Config{
		Secret:     []byte(cfg.Session.Secret),
		CookieName: cfg.Session.CookieName,
		MaxAge:     cfg.Session.MaxAge,
		Secure:     cfg.Session.Secure,
	})
	if err != nil {
		logging.Error().Err(err).Msg("failed to create session manager")
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      requestLogging(recovery(newRouter(engine, sessions))),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logging.Info().
			Str("addr", cfg.Server.Addr).
			Str("backend", cfg.Storage.Backend).
			Int("tips", engine.TipCount()).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	<-done
	logging.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("shutdown error")
		return
	}
	logging.Info().Msg("stopped")
}
