package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/models"
	"github.com/pagecraft/backend/internal/repositories"
)

var (
	ErrNotFound          = repositories.ErrNotFound
	ErrInvalidTransition = errors.New("invalid status transition")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field violation of one request.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// Err returns nil when nothing was collected, so callers can `return verr.Err()`.
func (e *ValidationError) Err() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

type RateLimitError struct {
	Limit  int
	Window time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: at most %d campaigns per %s", e.Limit, formatWindow(e.Window))
}

func formatWindow(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}

type InsufficientDataError struct {
	Found        int
	Required     int
	LookbackDays int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient engagement data: %d events in the last %d days, at least %d required",
		e.Found, e.LookbackDays, e.Required)
}

type InsufficientOptimalTimesError struct {
	Platform  models.Platform
	Available int
	Required  int
}

func (e *InsufficientOptimalTimesError) Error() string {
	return fmt.Sprintf("not enough optimal time slots for %s: %d available, %d posts to schedule; use the EVENLY strategy instead",
		e.Platform, e.Available, e.Required)
}

// GenerationFailure is one asset slice (a platform, the email sequence or the page
// variants) that exhausted its retries. It is logged and skipped, never surfaced.
type GenerationFailure struct {
	Slice string
	Err   error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generation failed for %s: %v", e.Slice, e.Err)
}

func (e *GenerationFailure) Unwrap() error { return e.Err }

// PipelineFailure is an error that reached the pipeline boundary and failed the campaign.
type PipelineFailure struct {
	CampaignID uuid.UUID
	Err        error
}

func (e *PipelineFailure) Error() string {
	return fmt.Sprintf("campaign %s generation failed: %v", e.CampaignID, e.Err)
}

func (e *PipelineFailure) Unwrap() error { return e.Err }
