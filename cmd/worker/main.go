package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pagecraft/backend/internal/app"
	"github.com/pagecraft/backend/internal/config"
	"github.com/pagecraft/backend/internal/db"
	"github.com/pagecraft/backend/internal/events"
	"github.com/pagecraft/backend/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)
	defer log.Sync()
	cfg.Validate(log)

	if cfg.JobQueue == config.QueueMemory {
		log.Fatal("worker needs JOB_QUEUE=redis; with the memory queue the API runs jobs itself")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	generator, err := app.NewGenerator(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to create content generator", zap.Error(err))
	}

	publisher := events.NewRedisPublisher(rdb, log)
	svc := app.NewServices(cfg, pool, app.NewQueue(cfg, rdb), publisher, generator, log)
	runner := svc.NewRunner(cfg, log)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down worker")
		cancel()
	}()

	go svc.RunReapers(ctx, cfg, log)

	log.Info("worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Duration("stale_campaign_after", cfg.StaleCampaignAfter),
	)
	// Returns once in-flight jobs have finished.
	runner.Run(ctx)
	log.Info("worker stopped")
}
