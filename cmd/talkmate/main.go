package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/talkmate/internal/app"
	"github.com/ent0n29/talkmate/internal/config"
	"github.com/ent0n29/talkmate/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New(os.Stderr, "info", "console")
		boot.Fatal().Err(err).Msg("config error")
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	built, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build failed")
	}
	log.Info().
		Str("agent_provider", built.Agent.Provider).
		Str("agent_detail", built.Agent.Detail).
		Str("translation", enabled(cfg.TranslationEnabled)).
		Float64("startup_ms", logging.Since(start)).
		Msg("conversation backend ready")

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           built.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	built.Sessions.StartJanitor(ctx, 5*time.Second)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown failed")
			_ = httpServer.Close()
		}
		return built.Cleanup(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
