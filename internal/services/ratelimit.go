package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCampaignLimit  = 5
	DefaultCampaignWindow = time.Hour
)

type CampaignCounter interface {
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// RateLimiter caps campaign creations per user over a sliding window. The count is
// derived from persisted campaigns, so limits hold across processes and restarts.
type RateLimiter struct {
	counter CampaignCounter
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter(counter CampaignCounter, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultCampaignLimit
	}
	if window <= 0 {
		window = DefaultCampaignWindow
	}
	return &RateLimiter{counter: counter, limit: limit, window: window, now: time.Now}
}

// Enforce returns a *RateLimitError when the user already created limit campaigns
// inside the window ending now.
func (l *RateLimiter) Enforce(ctx context.Context, userID uuid.UUID) error {
	n, err := l.counter.CountCreatedSince(ctx, userID, l.now().Add(-l.window))
	if err != nil {
		return fmt.Errorf("count recent campaigns: %w", err)
	}
	if n >= l.limit {
		return &RateLimitError{Limit: l.limit, Window: l.window}
	}
	return nil
}
