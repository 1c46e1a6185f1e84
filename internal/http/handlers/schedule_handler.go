package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/http/dto"
	"github.com/pagecraft/backend/internal/middleware"
	"github.com/pagecraft/backend/internal/models"
	"github.com/pagecraft/backend/internal/repositories"
	"github.com/pagecraft/backend/internal/services"
	"go.uber.org/zap"
)

type ScheduleAPI interface {
	BulkSchedule(ctx context.Context, userID uuid.UUID, in services.BulkScheduleInput) (*services.BulkScheduleResult, error)
	SchedulePost(ctx context.Context, userID uuid.UUID, in services.SchedulePostInput) (*models.ScheduledPost, error)
	ListPosts(ctx context.Context, userID uuid.UUID, f repositories.PostFilter) ([]models.ScheduledPost, error)
	CancelPost(ctx context.Context, userID, id uuid.UUID) (*models.ScheduledPost, error)
}

type AnalysisAPI interface {
	RequestAnalysis(ctx context.Context, userID uuid.UUID, timezone string) (*services.AnalysisAccepted, error)
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*models.AnalysisJob, error)
	LatestJob(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error)
	GetOptimalTimes(ctx context.Context, userID uuid.UUID, platform *models.Platform) ([]models.OptimalTime, error)
}

type ScheduleHandler struct {
	schedule ScheduleAPI
	analysis AnalysisAPI
	log      *zap.Logger
}

func NewScheduleHandler(schedule ScheduleAPI, analysis AnalysisAPI, log *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule, analysis: analysis, log: log}
}

func (h *ScheduleHandler) BulkSchedule(c *fiber.Ctx) error {
	var req services.BulkScheduleInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.schedule.BulkSchedule(c.UserContext(), middleware.GetUserID(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *ScheduleHandler) SchedulePost(c *fiber.Ctx) error {
	var req services.SchedulePostInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	post, err := h.schedule.SchedulePost(c.UserContext(), middleware.GetUserID(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// ListPosts backs the calendar view: from/to are RFC3339 instants.
func (h *ScheduleHandler) ListPosts(c *fiber.Ctx) error {
	var q dto.PostListQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "invalid query")
	}
	clampPage(&q.ListQuery, 100, 200)

	filter := repositories.PostFilter{Limit: q.Limit, Offset: q.Offset}
	verr := &services.ValidationError{}
	if q.From != "" {
		if t, err := time.Parse(time.RFC3339, q.From); err == nil {
			filter.From = &t
		} else {
			verr.Add("from", "must be an RFC3339 timestamp")
		}
	}
	if q.To != "" {
		if t, err := time.Parse(time.RFC3339, q.To); err == nil {
			filter.To = &t
		} else {
			verr.Add("to", "must be an RFC3339 timestamp")
		}
	}
	if q.Platform != "" {
		if p, err := models.ParsePlatform(q.Platform); err == nil {
			filter.Platform = &p
		} else {
			verr.Add("platform", "unknown platform %q", q.Platform)
		}
	}
	if q.Status != "" {
		if s := models.PostStatus(q.Status); s.IsValid() {
			filter.Status = &s
		} else {
			verr.Add("status", "unknown status %q", q.Status)
		}
	}
	if err := verr.Err(); err != nil {
		return respondError(c, h.log, err)
	}

	posts, err := h.schedule.ListPosts(c.UserContext(), middleware.GetUserID(c), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if posts == nil {
		posts = []models.ScheduledPost{}
	}
	return c.JSON(dto.ListResponse{Items: posts, Limit: q.Limit, Offset: q.Offset})
}

func (h *ScheduleHandler) CancelPost(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid post id")
	}

	post, err := h.schedule.CancelPost(c.UserContext(), middleware.GetUserID(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(post)
}

func (h *ScheduleHandler) RequestAnalysis(c *fiber.Ctx) error {
	var req dto.AnalyzeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	accepted, err := h.analysis.RequestAnalysis(c.UserContext(), middleware.GetUserID(c), req.Timezone)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(accepted)
}

func (h *ScheduleHandler) GetAnalysisJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("jobId"))
	if err != nil {
		return badRequest(c, "invalid job id")
	}

	job, err := h.analysis.GetJob(c.UserContext(), middleware.GetUserID(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(job)
}

func (h *ScheduleHandler) LatestAnalysisJob(c *fiber.Ctx) error {
	job, err := h.analysis.LatestJob(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(job)
}

func (h *ScheduleHandler) OptimalTimes(c *fiber.Ctx) error {
	var platform *models.Platform
	if v := c.Query("platform"); v != "" {
		p, err := models.ParsePlatform(v)
		if err != nil || !p.IsSocial() {
			verr := &services.ValidationError{}
			verr.Add("platform", "unknown social platform %q", v)
			return respondError(c, h.log, verr)
		}
		platform = &p
	}

	slots, err := h.analysis.GetOptimalTimes(c.UserContext(), middleware.GetUserID(c), platform)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"items": slots})
}
