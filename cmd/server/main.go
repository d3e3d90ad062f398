package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"forumoauth/internal/app"
	"forumoauth/internal/config"
)

func main() {
	configPath := flag.String("config", "./configs/config.json", "path to the config file")
	flag.Parse()

	// A .env file is optional; a missing one is not an error.
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info().Msg("shutdown signal received, initiating graceful shutdown")
		if err := application.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("error during graceful shutdown")
		}
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application failed to start")
	}

	<-ctx.Done()
	log.Info().Msg("application has stopped")
}
