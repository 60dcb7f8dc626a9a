package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"shoplive-backend/internal/app"
	"shoplive-backend/internal/config"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	fiberApp, res, err := app.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create failed")
	}

	sqlDB, err := res.DB.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("database handle unavailable")
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if err := res.Rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("connections verified")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go res.Scheduler.Start(ctx)

	go func() {
		if err := fiberApp.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("listener stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	if res.Notifier != nil {
		_ = res.Notifier.Close()
	}
	_ = fiberApp.Shutdown()
}
