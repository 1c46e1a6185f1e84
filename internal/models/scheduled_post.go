package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PostStatus string

// Scheduled post statuses. PROCESSING/PUBLISHED/FAILED are written by the publisher.
const (
	PostStatusPending    PostStatus = "PENDING"
	PostStatusProcessing PostStatus = "PROCESSING"
	PostStatusPublished  PostStatus = "PUBLISHED"
	PostStatusFailed     PostStatus = "FAILED"
	PostStatusCancelled  PostStatus = "CANCELLED"
)

func (s PostStatus) IsValid() bool {
	switch s {
	case PostStatusPending, PostStatusProcessing, PostStatusPublished, PostStatusFailed, PostStatusCancelled:
		return true
	}
	return false
}

func (s PostStatus) CanCancel() bool {
	return s == PostStatusPending
}

type PostType string

const (
	PostTypePost     PostType = "POST"
	PostTypeStory    PostType = "STORY"
	PostTypeReel     PostType = "REEL"
	PostTypeVideo    PostType = "VIDEO"
	PostTypeThread   PostType = "THREAD"
	PostTypeCarousel PostType = "CAROUSEL"
)

func ParsePostType(s string) (PostType, bool) {
	t := PostType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case PostTypePost, PostTypeStory, PostTypeReel, PostTypeVideo, PostTypeThread, PostTypeCarousel:
		return t, true
	}
	return "", false
}

// MinScheduleLead is how far ahead a single post must be scheduled.
const MinScheduleLead = 5 * time.Minute

type ScheduledPost struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	CampaignAssetID *uuid.UUID `json:"campaign_asset_id,omitempty"`
	Content         string     `json:"content"`
	Platform        Platform   `json:"platform"`
	PostType        PostType   `json:"post_type"`
	ScheduledFor    time.Time  `json:"scheduled_for"`
	Timezone        string     `json:"timezone"`
	Status          PostStatus `json:"status"`
	AutoPost        bool       `json:"auto_post"`
	MediaURLs       []string   `json:"media_urls"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
