package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ent0n29/taskbot/internal/app"
	"github.com/ent0n29/taskbot/internal/config"
	"github.com/ent0n29/taskbot/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("config error")
	}

	logger, err := observability.NewLogger(cfg.Env, os.Stdout)
	if err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("logger init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}

	runErr := res.Run(ctx)
	if err := res.Cleanup(); err != nil {
		logger.Warn().Err(err).Msg("cleanup failed")
	}
	if runErr != nil {
		logger.Fatal().Err(runErr).Msg("stopped with error")
	}
	logger.Info().Msg("shutdown complete")
}
