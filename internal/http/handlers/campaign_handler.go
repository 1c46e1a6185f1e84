package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/http/dto"
	"github.com/pagecraft/backend/internal/middleware"
	"github.com/pagecraft/backend/internal/models"
	"github.com/pagecraft/backend/internal/repositories"
	"github.com/pagecraft/backend/internal/services"
	"go.uber.org/zap"
)

type CampaignAPI interface {
	Generate(ctx context.Context, userID uuid.UUID, in services.GenerateCampaignInput) (*services.GenerateCampaignResult, error)
	List(ctx context.Context, userID uuid.UUID, f repositories.CampaignFilter) ([]models.CampaignSummary, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*models.Campaign, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	History(ctx context.Context, id, userID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}

type CampaignHandler struct {
	campaigns CampaignAPI
	log       *zap.Logger
}

func NewCampaignHandler(campaigns CampaignAPI, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, log: log}
}

// GenerateCampaign accepts the request and returns 202 while the worker builds assets.
func (h *CampaignHandler) GenerateCampaign(c *fiber.Ctx) error {
	var req services.GenerateCampaignInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.campaigns.Generate(c.UserContext(), middleware.GetUserID(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(res)
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	var q dto.CampaignListQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "invalid query")
	}
	clampPage(&q.ListQuery, 20, 100)

	filter := repositories.CampaignFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		status := models.CampaignStatus(q.Status)
		if _, ok := models.ValidCampaignTransitions[status]; !ok {
			verr := &services.ValidationError{}
			verr.Add("status", "must be one of GENERATING, READY, FAILED")
			return respondError(c, h.log, verr)
		}
		filter.Status = &status
	}

	campaigns, err := h.campaigns.List(c.UserContext(), middleware.GetUserID(c), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if campaigns == nil {
		campaigns = []models.CampaignSummary{}
	}
	return c.JSON(dto.ListResponse{Items: campaigns, Limit: q.Limit, Offset: q.Offset})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	campaign, err := h.campaigns.Get(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(campaign)
}

func (h *CampaignHandler) DeleteCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	if err := h.campaigns.Delete(c.UserContext(), id, middleware.GetUserID(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CampaignHandler) CampaignHistory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	var q dto.ListQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "invalid query")
	}
	clampPage(&q, 50, 200)

	entries, err := h.campaigns.History(c.UserContext(), id, middleware.GetUserID(c), q.Limit, q.Offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	return c.JSON(dto.ListResponse{Items: entries, Limit: q.Limit, Offset: q.Offset})
}
