package dto

import "github.com/pagecraft/backend/internal/services"

// Error codes returned alongside non-2xx responses.
const (
	CodeBadRequest               = "BAD_REQUEST"
	CodeValidation               = "VALIDATION_ERROR"
	CodeRateLimited              = "RATE_LIMITED"
	CodeInsufficientData         = "INSUFFICIENT_DATA"
	CodeInsufficientOptimalTimes = "INSUFFICIENT_OPTIMAL_TIMES"
	CodeNotFound                 = "NOT_FOUND"
	CodeConflict                 = "INVALID_STATE"
	CodeInternal                 = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Error     string                `json:"error"`
	Code      string                `json:"code,omitempty"`
	Fields    []services.FieldError `json:"fields,omitempty"`
	Details   map[string]any        `json:"details,omitempty"`
	RequestID string                `json:"request_id,omitempty"`
}

type ListResponse struct {
	Items  any `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
