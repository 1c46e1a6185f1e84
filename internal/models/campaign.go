package models

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

// Campaign statuses
const (
	CampaignStatusGenerating CampaignStatus = "GENERATING"
	CampaignStatusReady      CampaignStatus = "READY"
	CampaignStatusFailed     CampaignStatus = "FAILED"
)

// Valid state transitions: from -> []to. READY and FAILED are terminal;
// regeneration creates a new campaign.
var ValidCampaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusGenerating: {CampaignStatusReady, CampaignStatusFailed},
	CampaignStatusReady:      {},
	CampaignStatusFailed:     {},
}

func IsValidCampaignTransition(from, to CampaignStatus) bool {
	allowed, ok := ValidCampaignTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusReady || s == CampaignStatusFailed
}

// Source kinds; exactly one is set on a campaign.
const (
	SourceProduct = "product"
	SourceBlock   = "block"
	SourceCustom  = "custom"
)

type Campaign struct {
	ID             uuid.UUID      `json:"id"`
	UserID         uuid.UUID      `json:"user_id"`
	Name           string         `json:"name"`
	ProductID      *uuid.UUID     `json:"product_id,omitempty"`
	BlockID        *uuid.UUID     `json:"block_id,omitempty"`
	CustomContent  *string        `json:"custom_content,omitempty"`
	Goal           string         `json:"goal"`
	TargetAudience *string        `json:"target_audience,omitempty"`
	Tone           string         `json:"tone"`
	Status         CampaignStatus `json:"status"`
	ErrorMessage   *string        `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	Assets []CampaignAsset `json:"assets,omitempty"`
}

func (c *Campaign) SourceKind() string {
	switch {
	case c.ProductID != nil:
		return SourceProduct
	case c.BlockID != nil:
		return SourceBlock
	case c.CustomContent != nil:
		return SourceCustom
	}
	return ""
}

// CampaignSummary is the list view row.
type CampaignSummary struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Goal       string         `json:"goal"`
	SourceKind string         `json:"source_kind"`
	Status     CampaignStatus `json:"status"`
	AssetCount int            `json:"asset_count"`
	CreatedAt  time.Time      `json:"created_at"`
}
