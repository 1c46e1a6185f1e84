package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AssetType string

const (
	AssetTypeSocialPost  AssetType = "SOCIAL_POST"
	AssetTypeEmail       AssetType = "EMAIL"
	AssetTypePageVariant AssetType = "PAGE_VARIANT"
)

type AssetStatus string

const (
	AssetStatusDraft     AssetStatus = "DRAFT"
	AssetStatusScheduled AssetStatus = "SCHEDULED"
	AssetStatusPublished AssetStatus = "PUBLISHED"
	AssetStatusArchived  AssetStatus = "ARCHIVED"
)

type Platform string

const (
	PlatformTwitter   Platform = "TWITTER"
	PlatformInstagram Platform = "INSTAGRAM"
	PlatformFacebook  Platform = "FACEBOOK"
	PlatformLinkedIn  Platform = "LINKEDIN"
	PlatformTikTok    Platform = "TIKTOK"
	PlatformEmail     Platform = "EMAIL"
	PlatformLinkInBio Platform = "LINK_IN_BIO"
)

var allPlatforms = []Platform{
	PlatformTwitter, PlatformInstagram, PlatformFacebook, PlatformLinkedIn,
	PlatformTikTok, PlatformEmail, PlatformLinkInBio,
}

// SocialPlatforms are the platforms social posts can be generated for.
func SocialPlatforms() []Platform {
	return []Platform{PlatformTwitter, PlatformInstagram, PlatformFacebook, PlatformLinkedIn, PlatformTikTok}
}

func (p Platform) IsValid() bool {
	for _, v := range allPlatforms {
		if v == p {
			return true
		}
	}
	return false
}

func (p Platform) IsSocial() bool {
	for _, v := range SocialPlatforms() {
		if v == p {
			return true
		}
	}
	return false
}

// ParsePlatform accepts any casing ("twitter", "Twitter", "TWITTER").
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

type CampaignAsset struct {
	ID          uuid.UUID   `json:"id"`
	CampaignID  uuid.UUID   `json:"campaign_id"`
	Type        AssetType   `json:"type"`
	Platform    *Platform   `json:"platform,omitempty"`
	Content     string      `json:"content"` // plain text for posts, JSON for emails and page variants
	Status      AssetStatus `json:"status"`
	Views       int         `json:"views"`
	Clicks      int         `json:"clicks"`
	Conversions int         `json:"conversions"`
	CreatedAt   time.Time   `json:"created_at"`
}
