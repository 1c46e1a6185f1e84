package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pagecraft/backend/internal/http/dto"
	"github.com/pagecraft/backend/internal/middleware"
	"github.com/pagecraft/backend/internal/services"
	"go.uber.org/zap"
)

// respondError maps service errors onto HTTP statuses. Anything unrecognised is
// logged and reported as a generic 500.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	resp := dto.ErrorResponse{RequestID: middleware.GetRequestID(c)}
	status := fiber.StatusInternalServerError

	var (
		verr *services.ValidationError
		rerr *services.RateLimitError
		derr *services.InsufficientDataError
		oerr *services.InsufficientOptimalTimesError
	)
	switch {
	case errors.As(err, &verr):
		status = fiber.StatusUnprocessableEntity
		resp.Error = "validation failed"
		resp.Code = dto.CodeValidation
		resp.Fields = verr.Fields

	case errors.As(err, &rerr):
		status = fiber.StatusTooManyRequests
		resp.Error = rerr.Error()
		resp.Code = dto.CodeRateLimited
		resp.Details = map[string]any{"limit": rerr.Limit, "window_seconds": int(rerr.Window.Seconds())}
		c.Set("Retry-After", strconv.Itoa(int(rerr.Window.Seconds())))

	case errors.As(err, &derr):
		status = fiber.StatusUnprocessableEntity
		resp.Error = derr.Error()
		resp.Code = dto.CodeInsufficientData
		resp.Details = map[string]any{"found": derr.Found, "required": derr.Required, "lookback_days": derr.LookbackDays}

	case errors.As(err, &oerr):
		status = fiber.StatusUnprocessableEntity
		resp.Error = oerr.Error()
		resp.Code = dto.CodeInsufficientOptimalTimes
		resp.Details = map[string]any{"platform": oerr.Platform, "available": oerr.Available, "required": oerr.Required}

	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
		resp.Error = "not found"
		resp.Code = dto.CodeNotFound

	case errors.Is(err, services.ErrInvalidTransition):
		status = fiber.StatusConflict
		resp.Error = err.Error()
		resp.Code = dto.CodeConflict

	default:
		log.Error("request failed",
			zap.String("request_id", resp.RequestID),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		resp.Error = "internal error"
		resp.Code = dto.CodeInternal
	}

	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:     msg,
		Code:      dto.CodeBadRequest,
		RequestID: middleware.GetRequestID(c),
	})
}

func clampPage(q *dto.ListQuery, def, max int) {
	if q.Limit <= 0 {
		q.Limit = def
	}
	if q.Limit > max {
		q.Limit = max
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}
