package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/pagecraft/backend/internal/app"
	"github.com/pagecraft/backend/internal/config"
	"github.com/pagecraft/backend/internal/db"
	"github.com/pagecraft/backend/internal/events"
	apphttp "github.com/pagecraft/backend/internal/http"
	"github.com/pagecraft/backend/internal/http/handlers"
	"github.com/pagecraft/backend/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)
	defer log.Sync()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, db.Migrations(), log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services. With the in-process queue nobody else drains jobs, so this
	// process generates too.
	queue := app.NewQueue(cfg, rdb)
	inProcess := cfg.JobQueue == config.QueueMemory

	var svc *app.Services
	if inProcess {
		generator, err := app.NewGenerator(ctx, cfg, log)
		if err != nil {
			log.Fatal("failed to create content generator", zap.Error(err))
		}
		svc = app.NewServices(cfg, pool, queue, publisher, generator, log)
	} else {
		svc = app.NewServices(cfg, pool, queue, publisher, nil, log)
	}

	runnerDone := make(chan struct{})
	if inProcess {
		runner := svc.NewRunner(cfg, log)
		go func() {
			defer close(runnerDone)
			runner.Run(ctx)
		}()
		go svc.RunReapers(ctx, cfg, log)
		log.Info("running jobs in-process", zap.Int("concurrency", cfg.WorkerConcurrency))
	} else {
		close(runnerDone)
	}

	// Handlers
	campaignHandler := handlers.NewCampaignHandler(svc.Campaigns, log)
	scheduleHandler := handlers.NewScheduleHandler(svc.Schedule, svc.Analysis, log)
	wsHub := handlers.NewWSHub(cfg.JWTSecret, subscriber, log)
	wsHub.Start(ctx)

	server := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(server, cfg, log, rdb, campaignHandler, scheduleHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		_ = server.Shutdown()
		cancel()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.String("queue", cfg.JobQueue))
	if err := server.Listen(addr); err != nil {
		log.Error("server error", zap.Error(err))
	}

	cancel()
	<-runnerDone
}
