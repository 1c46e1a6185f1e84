package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
}

type GenerateOptions struct {
	MaxRetries int
}

// ContentGenerator turns a structured prompt into parsed JSON stored in out.
type ContentGenerator interface {
	GenerateJSON(ctx context.Context, req GenerationRequest, opts GenerateOptions, out any) error
}

// TextModel is a single raw completion call.
type TextModel interface {
	Complete(ctx context.Context, req GenerationRequest) (string, error)
}

var ErrEmptyResponse = errors.New("model returned an empty response")

// JSONGenerator adds retries and JSON parsing on top of a TextModel. Unparsable
// output counts as a failed attempt.
type JSONGenerator struct {
	model   TextModel
	timeout time.Duration
	backoff time.Duration
	log     *zap.Logger
}

func NewJSONGenerator(model TextModel, timeout time.Duration, log *zap.Logger) *JSONGenerator {
	return &JSONGenerator{
		model:   model,
		timeout: timeout,
		backoff: time.Second,
		log:     log,
	}
}

func (g *JSONGenerator) GenerateJSON(ctx context.Context, req GenerationRequest, opts GenerateOptions, out any) error {
	attempts := opts.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = g.attempt(ctx, req, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		g.log.Warn("generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(lastErr),
		)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * g.backoff):
		}
	}

	return fmt.Errorf("generation failed after %d attempts: %w", attempts, lastErr)
}

func (g *JSONGenerator) attempt(ctx context.Context, req GenerationRequest, out any) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := g.model.Complete(ctx, req)
	if err != nil {
		return err
	}

	raw := ExtractJSON(text)
	if raw == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("parse model output: %w", err)
	}
	return nil
}

// ExtractJSON strips markdown code fences and any prose around the outermost JSON
// array or object.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return ""
	}
	closing := byte(']')
	if s[start] == '{' {
		closing = '}'
	}
	end := strings.LastIndexByte(s, closing)
	if end < start {
		return ""
	}
	return s[start : end+1]
}
