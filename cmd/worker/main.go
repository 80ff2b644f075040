package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"estately/internal/pkg/logger"
	"estately/internal/platform/audit"
	"estately/internal/platform/config"
	"estately/internal/platform/database"
	"estately/internal/platform/repositories"
	"estately/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	once := flag.Bool("once", false, "Prune once and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)

	db, err := database.OpenAndMigrate(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	pruners := workers.Pruners{
		Events: repositories.NewWebhookEventRepository(db),
		Audit:  audit.NewLogger(db),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Dur("retention", cfg.Webhooks.Retention).
		Dur("interval", cfg.Webhooks.PruneInterval).
		Msg("starting estately background workers")

	if *once {
		if err := workers.PruneOnce(ctx, pruners, cfg.Webhooks.Retention, time.Now()); err != nil {
			log.Fatal().Err(err).Msg("prune failed")
		}
		return
	}

	workers.RunPruner(ctx, pruners, cfg.Webhooks.Retention, cfg.Webhooks.PruneInterval)
	log.Info().Msg("workers stopped")
}
