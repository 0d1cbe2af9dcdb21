// cmd/discord/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/keshon/soundboard-stats/internal/config"
	"github.com/keshon/soundboard-stats/internal/discord"
	"github.com/keshon/soundboard-stats/internal/logging"
	"github.com/keshon/soundboard-stats/internal/storage"
	"github.com/keshon/soundboard-stats/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, logCloser := logging.New(cfg.Log)
	err = run(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("discord bot exited with error")
	} else {
		log.Info().Msg("discord bot exited cleanly")
	}
	_ = logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

// run returns instead of exiting so the store and log file are always released.
func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().Str("driver", cfg.StorageDriver).Msg("starting soundboard stats bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open usage store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close usage store")
		}
	}()

	bot, err := discord.New(cfg, store, log)
	if err != nil {
		return fmt.Errorf("create discord bot: %w", err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			if err := telemetry.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		// Run leaves voice channels before returning
		return <-errCh
	case err := <-errCh:
		return err
	}
}
