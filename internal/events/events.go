package events

import (
	"context"

	"github.com/google/uuid"
)

// Streams
const (
	StreamCampaign = "events:campaign"
	StreamSchedule = "events:schedule"
)

// Event types
const (
	EventCampaignStatusChanged = "campaign_status_changed"
	EventAnalysisCompleted     = "analysis_completed"
	EventPostsScheduled        = "posts_scheduled"
)

type Event struct {
	Type    string         `json:"type"`
	UserID  uuid.UUID      `json:"user_id"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NopPublisher drops events. Used where no push channel is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
