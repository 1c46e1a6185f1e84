// Package app wires repositories, queue and services for the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pagecraft/backend/internal/ai"
	"github.com/pagecraft/backend/internal/config"
	"github.com/pagecraft/backend/internal/events"
	"github.com/pagecraft/backend/internal/jobs"
	"github.com/pagecraft/backend/internal/repositories"
	"github.com/pagecraft/backend/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const memoryQueueCapacity = 1000

type Services struct {
	Campaigns *services.CampaignService
	Schedule  *services.ScheduleService
	Analysis  *services.OptimalTimeService
	Queue     jobs.Queue
}

func NewQueue(cfg *config.Config, rdb *redis.Client) jobs.Queue {
	if cfg.JobQueue == config.QueueMemory {
		return jobs.NewMemoryQueue(memoryQueueCapacity)
	}
	return jobs.NewRedisQueue(rdb)
}

// NewGenerator connects to Gemini. Only processes that execute generation jobs need one.
func NewGenerator(ctx context.Context, cfg *config.Config, log *zap.Logger) (ai.ContentGenerator, error) {
	model, err := ai.NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	log.Info("content generator ready", zap.String("model", model.Name()))
	return ai.NewJSONGenerator(model, cfg.GenerationTimeout, log), nil
}

// NewServices builds the service layer. generator may be nil in processes that
// only enqueue generation jobs.
func NewServices(
	cfg *config.Config,
	pool *pgxpool.Pool,
	queue jobs.Queue,
	publisher events.Publisher,
	generator ai.ContentGenerator,
	log *zap.Logger,
) *Services {
	campaignRepo := repositories.NewCampaignRepo(pool)
	assetRepo := repositories.NewAssetRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	postRepo := repositories.NewScheduledPostRepo(pool)
	optimalRepo := repositories.NewOptimalTimeRepo(pool)
	engagementRepo := repositories.NewEngagementRepo(pool)
	analysisRepo := repositories.NewAnalysisJobRepo(pool)
	sourceRepo := repositories.NewSourceRepo(pool)

	limiter := services.NewRateLimiter(campaignRepo, cfg.CampaignRateLimit, cfg.CampaignRateWindow)
	resolver := services.NewSourceResolver(sourceRepo)
	pipeline := services.NewAssetPipeline(generator, assetRepo, cfg.GenerationMaxRetries, cfg.GenerationMaxTokens, log)

	return &Services{
		Campaigns: services.NewCampaignService(campaignRepo, assetRepo, auditRepo, limiter, resolver, pipeline, queue, publisher, log),
		Schedule:  services.NewScheduleService(postRepo, assetRepo, optimalRepo, auditRepo, publisher, log),
		Analysis: services.NewOptimalTimeService(engagementRepo, optimalRepo, analysisRepo, queue, publisher,
			cfg.AnalysisLookbackDays, cfg.AnalysisMinEvents, cfg.AnalysisTimeout, log),
		Queue: queue,
	}
}

func (s *Services) NewRunner(cfg *config.Config, log *zap.Logger) *jobs.Runner {
	runner := jobs.NewRunner(s.Queue, cfg.WorkerConcurrency, log)
	runner.Register(jobs.TypeCampaignGenerate, s.Campaigns.HandleGenerationJob)
	runner.Register(jobs.TypeScheduleAnalyze, s.Analysis.HandleAnalysisJob)
	return runner
}

// RunReapers fails campaigns and analyses abandoned by a crashed worker. Blocks until ctx is done.
func (s *Services) RunReapers(ctx context.Context, cfg *config.Config, log *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := s.Campaigns.ReapStale(ctx, cfg.StaleCampaignAfter); err != nil {
				log.Error("campaign reaper failed", zap.Error(err))
			} else if n > 0 {
				log.Warn("failed stale campaigns", zap.Int("count", n))
			}

			if n, err := s.Analysis.ReapStale(ctx, 2*cfg.AnalysisTimeout); err != nil {
				log.Error("analysis reaper failed", zap.Error(err))
			} else if n > 0 {
				log.Warn("failed stale analysis jobs", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
