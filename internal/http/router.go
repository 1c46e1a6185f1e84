package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pagecraft/backend/internal/config"
	"github.com/pagecraft/backend/internal/http/handlers"
	"github.com/pagecraft/backend/internal/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	campaignHandler *handlers.CampaignHandler,
	scheduleHandler *handlers.ScheduleHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.APIRateLimitPerMinute, time.Minute, log))

	protected := api.Group("", middleware.AuthMiddleware(cfg.JWTSecret, log))

	// Campaigns
	protected.Post("/campaigns/generate", campaignHandler.GenerateCampaign)
	protected.Get("/campaigns", campaignHandler.ListCampaigns)
	protected.Get("/campaigns/:id", campaignHandler.GetCampaign)
	protected.Delete("/campaigns/:id", campaignHandler.DeleteCampaign)
	protected.Get("/campaigns/:id/history", campaignHandler.CampaignHistory)

	// Scheduling
	protected.Post("/schedule/posts", scheduleHandler.SchedulePost)
	protected.Get("/schedule/posts", scheduleHandler.ListPosts)
	protected.Delete("/schedule/posts/:id", scheduleHandler.CancelPost)
	protected.Post("/schedule/bulk", scheduleHandler.BulkSchedule)

	// Optimal times
	protected.Post("/schedule/analyze", scheduleHandler.RequestAnalysis)
	protected.Get("/schedule/analyze/latest", scheduleHandler.LatestAnalysisJob)
	protected.Get("/schedule/analyze/:jobId", scheduleHandler.GetAnalysisJob)
	protected.Get("/schedule/optimal-times", scheduleHandler.OptimalTimes)

	// WebSocket
	if wsHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(wsHub.HandleWS))
	}
}
